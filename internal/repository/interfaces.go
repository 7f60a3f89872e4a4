package repository

import (
	"context"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// Lookups return (nil, nil) when no row matches; callers treat absence as a
// business condition, not an error.

// ScrimRepository persists scrim event records.
type ScrimRepository interface {
	Create(ctx context.Context, scrim *domain.Scrim) error
	GetByID(ctx context.Context, id int64) (*domain.Scrim, error)
	GetByChannelID(ctx context.Context, channelID string) (*domain.Scrim, error)
	ListByGuild(ctx context.Context, guildID string) ([]*domain.Scrim, error)
	// ListOpenChannelIDs returns registration channel ids of scrims whose
	// window is currently open, used to warm the fast-path index on boot.
	ListOpenChannelIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, scrim *domain.Scrim) error
	// SetOpenTime records the next scheduled open without touching other columns.
	SetOpenTime(ctx context.Context, id int64, t time.Time) error
	SetAutocleanTime(ctx context.Context, id int64, t time.Time) error
	// SetAvailableSlots replaces the whole pool (reopen reset).
	SetAvailableSlots(ctx context.Context, id int64, nums []int) error
	// RemoveAvailableSlot atomically removes one number from the pool column.
	RemoveAvailableSlot(ctx context.Context, id int64, num int) error
	// MarkOpened sets opened_at, clears closed_at and the stale slotlist marker.
	MarkOpened(ctx context.Context, id int64, openedAt time.Time) error
	// MarkClosed sets closed_at and clears opened_at.
	MarkClosed(ctx context.Context, id int64, closedAt time.Time) error
	Delete(ctx context.Context, id int64) error
}

// TourneyRepository persists tournament event records.
type TourneyRepository interface {
	Create(ctx context.Context, tourney *domain.Tourney) error
	GetByID(ctx context.Context, id int64) (*domain.Tourney, error)
	GetByChannelID(ctx context.Context, channelID string) (*domain.Tourney, error)
	ListByGuild(ctx context.Context, guildID string) ([]*domain.Tourney, error)
	ListOpenChannelIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, tourney *domain.Tourney) error
	// MarkClosed sets closed_at and clears started_at.
	MarkClosed(ctx context.Context, id int64, closedAt time.Time) error
	Delete(ctx context.Context, id int64) error
}

// SlotRepository persists assigned slots for both event kinds.
type SlotRepository interface {
	Create(ctx context.Context, slot *domain.AssignedSlot) error
	ListByEvent(ctx context.Context, kind domain.EventKind, eventID int64) ([]*domain.AssignedSlot, error)
	CountByEvent(ctx context.Context, kind domain.EventKind, eventID int64) (int, error)
	// HighestNum returns 0 when the event has no slots yet.
	HighestNum(ctx context.Context, kind domain.EventKind, eventID int64) (int, error)
	GetByMessageID(ctx context.Context, messageID string) (*domain.AssignedSlot, error)
	DeleteByEvent(ctx context.Context, kind domain.EventKind, eventID int64) error
}

// ReservationRepository persists pre-assigned scrim slot numbers.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	ListByScrim(ctx context.Context, scrimID int64) ([]*domain.Reservation, error)
	Delete(ctx context.Context, id int64) error
}

// BanRepository persists per-event participant bans.
type BanRepository interface {
	Create(ctx context.Context, ban *domain.BanRecord) error
	IsBanned(ctx context.Context, kind domain.EventKind, eventID int64, userID string) (bool, error)
	ListByUser(ctx context.Context, kind domain.EventKind, eventIDs []int64, userID string) ([]*domain.BanRecord, error)
	// DeleteByUser removes every matching ban and reports how many went away.
	DeleteByUser(ctx context.Context, kind domain.EventKind, eventIDs []int64, userID string) (int64, error)
}

// TimerRepository persists durable timers for the delivery worker.
type TimerRepository interface {
	Create(ctx context.Context, timer *domain.Timer) error
	// ListExpired returns timers due at or before the given instant, oldest first.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Timer, error)
	Delete(ctx context.Context, id string) error
}
