package service

import (
	"context"
	"sync"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/plovers390-cloud/ScrimX/pkg/redis"
	"go.uber.org/zap"
)

// ActiveChannels is the fast-path index of channel ids currently accepting
// registrations. It is consulted before any store lookup on each inbound
// message, populated on open and evicted on close or delete.
//
// The index is an optimization, not a correctness dependency: a miss means
// the message is ignored even if a record technically still exists. The
// in-memory set is authoritative for lookups; Redis mirrors it so an
// operator can inspect the live set and a restarted process can be compared
// against the warm-from-store result.
type ActiveChannels struct {
	mu       sync.RWMutex
	channels map[domain.EventKind]map[string]struct{}
	rdb      *redis.Client // optional mirror, may be nil
	log      *logger.Logger
}

// NewActiveChannels creates the index. rdb may be nil to disable mirroring.
func NewActiveChannels(rdb *redis.Client, log *logger.Logger) *ActiveChannels {
	if log == nil {
		log = logger.Get()
	}
	return &ActiveChannels{
		channels: map[domain.EventKind]map[string]struct{}{
			domain.KindScrim:   {},
			domain.KindTourney: {},
		},
		rdb: rdb,
		log: log,
	}
}

func mirrorKey(kind domain.EventKind) string {
	return "scrimx:active:" + string(kind)
}

// Add registers a channel as accepting registrations.
func (a *ActiveChannels) Add(ctx context.Context, kind domain.EventKind, channelID string) {
	a.mu.Lock()
	a.channels[kind][channelID] = struct{}{}
	a.mu.Unlock()

	if a.rdb != nil {
		if err := a.rdb.SAdd(ctx, mirrorKey(kind), channelID).Err(); err != nil {
			a.log.Warn("failed to mirror active channel to redis",
				zap.String("channel_id", channelID), zap.Error(err))
		}
	}
}

// Remove evicts a channel from the index.
func (a *ActiveChannels) Remove(ctx context.Context, kind domain.EventKind, channelID string) {
	a.mu.Lock()
	delete(a.channels[kind], channelID)
	a.mu.Unlock()

	if a.rdb != nil {
		if err := a.rdb.SRem(ctx, mirrorKey(kind), channelID).Err(); err != nil {
			a.log.Warn("failed to evict active channel from redis",
				zap.String("channel_id", channelID), zap.Error(err))
		}
	}
}

// Contains reports whether a channel is currently accepting registrations.
func (a *ActiveChannels) Contains(kind domain.EventKind, channelID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.channels[kind][channelID]
	return ok
}

// Count returns the number of active channels for a kind.
func (a *ActiveChannels) Count(kind domain.EventKind) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.channels[kind])
}

// Warm rebuilds the index from the store after a restart. The store is the
// source of truth; the Redis mirror is rewritten from it.
func (a *ActiveChannels) Warm(ctx context.Context, scrims repository.ScrimRepository, tourneys repository.TourneyRepository) error {
	scrimChannels, err := scrims.ListOpenChannelIDs(ctx)
	if err != nil {
		return err
	}
	tourneyChannels, err := tourneys.ListOpenChannelIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range scrimChannels {
		a.Add(ctx, domain.KindScrim, id)
	}
	for _, id := range tourneyChannels {
		a.Add(ctx, domain.KindTourney, id)
	}

	a.log.Info("active channel index warmed",
		zap.Int("scrim_channels", len(scrimChannels)),
		zap.Int("tourney_channels", len(tourneyChannels)),
	)
	return nil
}
