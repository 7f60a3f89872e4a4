package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// PostgresTourneyRepository implements TourneyRepository using PostgreSQL.
type PostgresTourneyRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTourneyRepository creates a new PostgresTourneyRepository.
func NewPostgresTourneyRepository(pool *pgxpool.Pool) *PostgresTourneyRepository {
	return &PostgresTourneyRepository{pool: pool}
}

const tourneyColumns = `
	id, guild_id, name, registration_channel_id, confirm_channel_id, role_id,
	mod_role_id, open_role_id, ping_role_id, required_mentions, total_slots,
	started_at, closed_at, no_duplicate_name, autodelete_rejected, multi_register,
	teamname_compulsion, COALESCE(success_message, ''), check_emoji, cross_emoji, created_at`

// Create inserts a new tourney and fills in its generated id.
func (r *PostgresTourneyRepository) Create(ctx context.Context, tourney *domain.Tourney) error {
	query := `
		INSERT INTO tourneys (guild_id, name, registration_channel_id, confirm_channel_id,
			role_id, mod_role_id, open_role_id, ping_role_id, required_mentions, total_slots,
			started_at, no_duplicate_name, autodelete_rejected, multi_register,
			teamname_compulsion, success_message, check_emoji, cross_emoji, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		tourney.GuildID,
		tourney.Name,
		tourney.RegistrationChannelID,
		tourney.ConfirmChannelID,
		tourney.RoleID,
		nullStringOrValue(tourney.ModRoleID),
		nullStringOrValue(tourney.OpenRoleID),
		nullStringOrValue(tourney.PingRoleID),
		tourney.RequiredMentions,
		tourney.TotalSlots,
		tourney.StartedAt,
		tourney.NoDuplicateName,
		tourney.AutodeleteRejected,
		tourney.MultiRegister,
		tourney.TeamNameCompulsion,
		nullStringOrValue(tourney.SuccessMessage),
		tourney.Check(),
		tourney.Cross(),
		tourney.CreatedAt,
	).Scan(&tourney.ID)
}

// GetByID retrieves a tourney by id.
func (r *PostgresTourneyRepository) GetByID(ctx context.Context, id int64) (*domain.Tourney, error) {
	query := `SELECT ` + tourneyColumns + ` FROM tourneys WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByChannelID retrieves the tourney registered on a channel.
func (r *PostgresTourneyRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Tourney, error) {
	query := `SELECT ` + tourneyColumns + ` FROM tourneys WHERE registration_channel_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, channelID))
}

// ListByGuild retrieves all tourneys owned by a guild, oldest first.
func (r *PostgresTourneyRepository) ListByGuild(ctx context.Context, guildID string) ([]*domain.Tourney, error) {
	query := `SELECT ` + tourneyColumns + ` FROM tourneys WHERE guild_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tourneys := make([]*domain.Tourney, 0)
	for rows.Next() {
		tourney, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		tourneys = append(tourneys, tourney)
	}
	return tourneys, rows.Err()
}

// ListOpenChannelIDs returns registration channel ids of currently running tourneys.
func (r *PostgresTourneyRepository) ListOpenChannelIDs(ctx context.Context) ([]string, error) {
	query := `SELECT registration_channel_id FROM tourneys WHERE started_at IS NOT NULL AND closed_at IS NULL`
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

// Update rewrites every mutable column of a tourney.
func (r *PostgresTourneyRepository) Update(ctx context.Context, tourney *domain.Tourney) error {
	query := `
		UPDATE tourneys
		SET name = $2, registration_channel_id = $3, confirm_channel_id = $4, role_id = $5,
			mod_role_id = $6, open_role_id = $7, ping_role_id = $8, required_mentions = $9,
			total_slots = $10, started_at = $11, closed_at = $12, no_duplicate_name = $13,
			autodelete_rejected = $14, multi_register = $15, teamname_compulsion = $16,
			success_message = $17, check_emoji = $18, cross_emoji = $19
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		tourney.ID,
		tourney.Name,
		tourney.RegistrationChannelID,
		tourney.ConfirmChannelID,
		tourney.RoleID,
		nullStringOrValue(tourney.ModRoleID),
		nullStringOrValue(tourney.OpenRoleID),
		nullStringOrValue(tourney.PingRoleID),
		tourney.RequiredMentions,
		tourney.TotalSlots,
		tourney.StartedAt,
		tourney.ClosedAt,
		tourney.NoDuplicateName,
		tourney.AutodeleteRejected,
		tourney.MultiRegister,
		tourney.TeamNameCompulsion,
		nullStringOrValue(tourney.SuccessMessage),
		tourney.Check(),
		tourney.Cross(),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkClosed records the close transition.
func (r *PostgresTourneyRepository) MarkClosed(ctx context.Context, id int64, closedAt time.Time) error {
	query := `UPDATE tourneys SET closed_at = $2, started_at = NULL WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, closedAt)
	return err
}

// Delete removes a tourney row.
func (r *PostgresTourneyRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tourneys WHERE id = $1`, id)
	return err
}

func (r *PostgresTourneyRepository) scanOne(row rowScanner) (*domain.Tourney, error) {
	tourney := &domain.Tourney{}
	var modRole, openRole, pingRole *string
	err := row.Scan(
		&tourney.ID,
		&tourney.GuildID,
		&tourney.Name,
		&tourney.RegistrationChannelID,
		&tourney.ConfirmChannelID,
		&tourney.RoleID,
		&modRole,
		&openRole,
		&pingRole,
		&tourney.RequiredMentions,
		&tourney.TotalSlots,
		&tourney.StartedAt,
		&tourney.ClosedAt,
		&tourney.NoDuplicateName,
		&tourney.AutodeleteRejected,
		&tourney.MultiRegister,
		&tourney.TeamNameCompulsion,
		&tourney.SuccessMessage,
		&tourney.CheckEmoji,
		&tourney.CrossEmoji,
		&tourney.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	tourney.ModRoleID = derefString(modRole)
	tourney.OpenRoleID = derefString(openRole)
	tourney.PingRoleID = derefString(pingRole)
	return tourney, nil
}
