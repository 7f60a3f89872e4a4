package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// PostgresBanRepository implements BanRepository using PostgreSQL.
type PostgresBanRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBanRepository creates a new PostgresBanRepository.
func NewPostgresBanRepository(pool *pgxpool.Pool) *PostgresBanRepository {
	return &PostgresBanRepository{pool: pool}
}

// Create inserts a new ban record.
func (r *PostgresBanRepository) Create(ctx context.Context, ban *domain.BanRecord) error {
	query := `
		INSERT INTO ban_records (id, event_kind, event_id, guild_id, user_id, reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		ban.ID,
		ban.EventKind,
		ban.EventID,
		ban.GuildID,
		ban.UserID,
		nullStringOrValue(ban.Reason),
		ban.ExpiresAt,
		ban.CreatedAt,
	)
	return err
}

// IsBanned reports whether the user currently holds a ban in the event.
func (r *PostgresBanRepository) IsBanned(ctx context.Context, kind domain.EventKind, eventID int64, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ban_records WHERE event_kind = $1 AND event_id = $2 AND user_id = $3)`
	var banned bool
	err := r.pool.QueryRow(ctx, query, kind, eventID, userID).Scan(&banned)
	return banned, err
}

// ListByUser retrieves the user's bans across the given events.
func (r *PostgresBanRepository) ListByUser(ctx context.Context, kind domain.EventKind, eventIDs []int64, userID string) ([]*domain.BanRecord, error) {
	query := `
		SELECT id, event_kind, event_id, guild_id, user_id, COALESCE(reason, ''), expires_at, created_at
		FROM ban_records
		WHERE event_kind = $1 AND event_id = ANY($2) AND user_id = $3
	`
	rows, err := r.pool.Query(ctx, query, kind, eventIDs, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bans := make([]*domain.BanRecord, 0)
	for rows.Next() {
		ban := &domain.BanRecord{}
		err := rows.Scan(&ban.ID, &ban.EventKind, &ban.EventID, &ban.GuildID, &ban.UserID, &ban.Reason, &ban.ExpiresAt, &ban.CreatedAt)
		if err != nil {
			return nil, err
		}
		bans = append(bans, ban)
	}
	return bans, rows.Err()
}

// DeleteByUser removes all of the user's bans across the given events.
func (r *PostgresBanRepository) DeleteByUser(ctx context.Context, kind domain.EventKind, eventIDs []int64, userID string) (int64, error) {
	query := `DELETE FROM ban_records WHERE event_kind = $1 AND event_id = ANY($2) AND user_id = $3`
	result, err := r.pool.Exec(ctx, query, kind, eventIDs, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
