package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// PostgresScrimRepository implements ScrimRepository using PostgreSQL.
type PostgresScrimRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresScrimRepository creates a new PostgresScrimRepository.
func NewPostgresScrimRepository(pool *pgxpool.Pool) *PostgresScrimRepository {
	return &PostgresScrimRepository{pool: pool}
}

const scrimColumns = `
	id, guild_id, name, registration_channel_id, role_id, mod_role_id,
	open_role_id, ping_role_id, required_mentions, total_slots, available_slots,
	open_time, open_days, toggle, autoclean_time, autoclean, opened_at, closed_at,
	slotlist_message_id, autodelete_rejected, multi_register, teamname_compulsion, created_at`

// Create inserts a new scrim and fills in its generated id.
func (r *PostgresScrimRepository) Create(ctx context.Context, scrim *domain.Scrim) error {
	query := `
		INSERT INTO scrims (guild_id, name, registration_channel_id, role_id, mod_role_id,
			open_role_id, ping_role_id, required_mentions, total_slots, available_slots,
			open_time, open_days, toggle, autoclean_time, autoclean,
			autodelete_rejected, multi_register, teamname_compulsion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		scrim.GuildID,
		scrim.Name,
		scrim.RegistrationChannelID,
		scrim.RoleID,
		nullStringOrValue(scrim.ModRoleID),
		nullStringOrValue(scrim.OpenRoleID),
		nullStringOrValue(scrim.PingRoleID),
		scrim.RequiredMentions,
		scrim.TotalSlots,
		intsToInt32(scrim.AvailableSlots),
		scrim.OpenTime,
		weekdaysToInt32(scrim.OpenDays),
		scrim.Toggle,
		scrim.AutocleanTime,
		autocleanToStrings(scrim.Autoclean),
		scrim.AutodeleteRejected,
		scrim.MultiRegister,
		scrim.TeamNameCompulsion,
		scrim.CreatedAt,
	).Scan(&scrim.ID)
}

// GetByID retrieves a scrim by id.
func (r *PostgresScrimRepository) GetByID(ctx context.Context, id int64) (*domain.Scrim, error) {
	query := `SELECT ` + scrimColumns + ` FROM scrims WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByChannelID retrieves the scrim registered on a channel.
func (r *PostgresScrimRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Scrim, error) {
	query := `SELECT ` + scrimColumns + ` FROM scrims WHERE registration_channel_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, channelID))
}

// ListByGuild retrieves all scrims owned by a guild, oldest first.
func (r *PostgresScrimRepository) ListByGuild(ctx context.Context, guildID string) ([]*domain.Scrim, error) {
	query := `SELECT ` + scrimColumns + ` FROM scrims WHERE guild_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scrims := make([]*domain.Scrim, 0)
	for rows.Next() {
		scrim, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		scrims = append(scrims, scrim)
	}
	return scrims, rows.Err()
}

// ListOpenChannelIDs returns registration channel ids of currently open scrims.
func (r *PostgresScrimRepository) ListOpenChannelIDs(ctx context.Context) ([]string, error) {
	query := `SELECT registration_channel_id FROM scrims WHERE opened_at IS NOT NULL AND closed_at IS NULL`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update rewrites every mutable column of a scrim.
func (r *PostgresScrimRepository) Update(ctx context.Context, scrim *domain.Scrim) error {
	query := `
		UPDATE scrims
		SET name = $2, registration_channel_id = $3, role_id = $4, mod_role_id = $5,
			open_role_id = $6, ping_role_id = $7, required_mentions = $8, total_slots = $9,
			available_slots = $10, open_time = $11, open_days = $12, toggle = $13,
			autoclean_time = $14, autoclean = $15, opened_at = $16, closed_at = $17,
			slotlist_message_id = $18, autodelete_rejected = $19, multi_register = $20,
			teamname_compulsion = $21
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		scrim.ID,
		scrim.Name,
		scrim.RegistrationChannelID,
		scrim.RoleID,
		nullStringOrValue(scrim.ModRoleID),
		nullStringOrValue(scrim.OpenRoleID),
		nullStringOrValue(scrim.PingRoleID),
		scrim.RequiredMentions,
		scrim.TotalSlots,
		intsToInt32(scrim.AvailableSlots),
		scrim.OpenTime,
		weekdaysToInt32(scrim.OpenDays),
		scrim.Toggle,
		scrim.AutocleanTime,
		autocleanToStrings(scrim.Autoclean),
		scrim.OpenedAt,
		scrim.ClosedAt,
		scrim.SlotlistMessageID,
		scrim.AutodeleteRejected,
		scrim.MultiRegister,
		scrim.TeamNameCompulsion,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOpenTime records the next scheduled open.
func (r *PostgresScrimRepository) SetOpenTime(ctx context.Context, id int64, t time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE scrims SET open_time = $2 WHERE id = $1`, id, t)
	return err
}

// SetAutocleanTime records the next scheduled autoclean.
func (r *PostgresScrimRepository) SetAutocleanTime(ctx context.Context, id int64, t time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE scrims SET autoclean_time = $2 WHERE id = $1`, id, t)
	return err
}

// SetAvailableSlots replaces the available pool, used on reopen.
func (r *PostgresScrimRepository) SetAvailableSlots(ctx context.Context, id int64, nums []int) error {
	_, err := r.pool.Exec(ctx, `UPDATE scrims SET available_slots = $2 WHERE id = $1`, id, intsToInt32(nums))
	return err
}

// RemoveAvailableSlot atomically removes one claimed number from the pool column.
func (r *PostgresScrimRepository) RemoveAvailableSlot(ctx context.Context, id int64, num int) error {
	query := `UPDATE scrims SET available_slots = array_remove(available_slots, $2::int) WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, num)
	return err
}

// MarkOpened records a fresh open cycle and clears stale close-state markers.
func (r *PostgresScrimRepository) MarkOpened(ctx context.Context, id int64, openedAt time.Time) error {
	query := `UPDATE scrims SET opened_at = $2, closed_at = NULL, slotlist_message_id = NULL WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, openedAt)
	return err
}

// MarkClosed records the close transition.
func (r *PostgresScrimRepository) MarkClosed(ctx context.Context, id int64, closedAt time.Time) error {
	query := `UPDATE scrims SET closed_at = $2, opened_at = NULL WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, closedAt)
	return err
}

// Delete removes a scrim row.
func (r *PostgresScrimRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scrims WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresScrimRepository) scanOne(row rowScanner) (*domain.Scrim, error) {
	scrim := &domain.Scrim{}
	var (
		modRole, openRole, pingRole *string
		available, days             []int32
		autoclean                   []string
	)
	err := row.Scan(
		&scrim.ID,
		&scrim.GuildID,
		&scrim.Name,
		&scrim.RegistrationChannelID,
		&scrim.RoleID,
		&modRole,
		&openRole,
		&pingRole,
		&scrim.RequiredMentions,
		&scrim.TotalSlots,
		&available,
		&scrim.OpenTime,
		&days,
		&scrim.Toggle,
		&scrim.AutocleanTime,
		&autoclean,
		&scrim.OpenedAt,
		&scrim.ClosedAt,
		&scrim.SlotlistMessageID,
		&scrim.AutodeleteRejected,
		&scrim.MultiRegister,
		&scrim.TeamNameCompulsion,
		&scrim.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	scrim.ModRoleID = derefString(modRole)
	scrim.OpenRoleID = derefString(openRole)
	scrim.PingRoleID = derefString(pingRole)
	scrim.AvailableSlots = int32sToInts(available)
	scrim.OpenDays = int32sToWeekdays(days)
	scrim.Autoclean = stringsToAutoclean(autoclean)
	return scrim, nil
}
