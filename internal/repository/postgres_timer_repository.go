package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// PostgresTimerRepository implements TimerRepository using PostgreSQL.
// Timers live in a single table scanned by the delivery worker; a row is
// only deleted after its handler returns, which is what makes delivery
// at-least-once across restarts.
type PostgresTimerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTimerRepository creates a new PostgresTimerRepository.
func NewPostgresTimerRepository(pool *pgxpool.Pool) *PostgresTimerRepository {
	return &PostgresTimerRepository{pool: pool}
}

// Create inserts a new durable timer.
func (r *PostgresTimerRepository) Create(ctx context.Context, timer *domain.Timer) error {
	query := `
		INSERT INTO timers (id, kind, expires_at, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		timer.ID,
		timer.Kind,
		timer.ExpiresAt,
		timer.Payload,
		timer.CreatedAt,
	)
	return err
}

// ListExpired returns due timers, oldest first.
func (r *PostgresTimerRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Timer, error) {
	query := `
		SELECT id, kind, expires_at, payload, created_at
		FROM timers
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	timers := make([]*domain.Timer, 0)
	for rows.Next() {
		timer := &domain.Timer{}
		if err := rows.Scan(&timer.ID, &timer.Kind, &timer.ExpiresAt, &timer.Payload, &timer.CreatedAt); err != nil {
			return nil, err
		}
		timers = append(timers, timer)
	}
	return timers, rows.Err()
}

// Delete removes a delivered timer.
func (r *PostgresTimerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM timers WHERE id = $1`, id)
	return err
}
