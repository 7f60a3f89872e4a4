package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// PostgresSlotRepository implements SlotRepository using PostgreSQL.
type PostgresSlotRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSlotRepository creates a new PostgresSlotRepository.
func NewPostgresSlotRepository(pool *pgxpool.Pool) *PostgresSlotRepository {
	return &PostgresSlotRepository{pool: pool}
}

const slotColumns = `
	id, event_kind, event_id, num, leader_id, COALESCE(team_name, ''), members,
	COALESCE(message_id, ''), COALESCE(jump_url, ''), created_at`

// Create inserts a new assigned slot and fills in its generated id.
func (r *PostgresSlotRepository) Create(ctx context.Context, slot *domain.AssignedSlot) error {
	query := `
		INSERT INTO assigned_slots (event_kind, event_id, num, leader_id, team_name,
			members, message_id, jump_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		slot.EventKind,
		slot.EventID,
		slot.Num,
		slot.LeaderID,
		nullStringOrValue(slot.TeamName),
		slot.Members,
		nullStringOrValue(slot.MessageID),
		nullStringOrValue(slot.JumpURL),
		slot.CreatedAt,
	).Scan(&slot.ID)
}

// ListByEvent retrieves the slots of one event ordered by slot number.
func (r *PostgresSlotRepository) ListByEvent(ctx context.Context, kind domain.EventKind, eventID int64) ([]*domain.AssignedSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM assigned_slots WHERE event_kind = $1 AND event_id = $2 ORDER BY num`
	rows, err := r.pool.Query(ctx, query, kind, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]*domain.AssignedSlot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// CountByEvent counts the slots assigned in one event.
func (r *PostgresSlotRepository) CountByEvent(ctx context.Context, kind domain.EventKind, eventID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM assigned_slots WHERE event_kind = $1 AND event_id = $2`
	err := r.pool.QueryRow(ctx, query, kind, eventID).Scan(&count)
	return count, err
}

// HighestNum returns the highest assigned slot number, or 0 when none exist.
func (r *PostgresSlotRepository) HighestNum(ctx context.Context, kind domain.EventKind, eventID int64) (int, error) {
	var num int
	query := `SELECT COALESCE(MAX(num), 0) FROM assigned_slots WHERE event_kind = $1 AND event_id = $2`
	err := r.pool.QueryRow(ctx, query, kind, eventID).Scan(&num)
	return num, err
}

// GetByMessageID retrieves the slot created from a registration message.
func (r *PostgresSlotRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.AssignedSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM assigned_slots WHERE message_id = $1`
	slot, err := scanSlot(r.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return slot, nil
}

// DeleteByEvent removes every slot of one event, used on reopen and delete.
func (r *PostgresSlotRepository) DeleteByEvent(ctx context.Context, kind domain.EventKind, eventID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM assigned_slots WHERE event_kind = $1 AND event_id = $2`, kind, eventID)
	return err
}

func scanSlot(row rowScanner) (*domain.AssignedSlot, error) {
	slot := &domain.AssignedSlot{}
	err := row.Scan(
		&slot.ID,
		&slot.EventKind,
		&slot.EventID,
		&slot.Num,
		&slot.LeaderID,
		&slot.TeamName,
		&slot.Members,
		&slot.MessageID,
		&slot.JumpURL,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// PostgresReservationRepository implements ReservationRepository using PostgreSQL.
type PostgresReservationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresReservationRepository creates a new PostgresReservationRepository.
func NewPostgresReservationRepository(pool *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{pool: pool}
}

// Create inserts a new reservation and fills in its generated id.
func (r *PostgresReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		INSERT INTO reserved_slots (scrim_id, num, user_id, team_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		reservation.ScrimID,
		reservation.Num,
		nullStringOrValue(reservation.UserID),
		reservation.TeamName,
	).Scan(&reservation.ID)
}

// ListByScrim retrieves a scrim's reservations ordered by slot number.
func (r *PostgresReservationRepository) ListByScrim(ctx context.Context, scrimID int64) ([]*domain.Reservation, error) {
	query := `SELECT id, scrim_id, num, COALESCE(user_id, ''), team_name FROM reserved_slots WHERE scrim_id = $1 ORDER BY num`
	rows, err := r.pool.Query(ctx, query, scrimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]*domain.Reservation, 0)
	for rows.Next() {
		reservation := &domain.Reservation{}
		if err := rows.Scan(&reservation.ID, &reservation.ScrimID, &reservation.Num, &reservation.UserID, &reservation.TeamName); err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}

// Delete removes a reservation row.
func (r *PostgresReservationRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM reserved_slots WHERE id = $1`, id)
	return err
}
