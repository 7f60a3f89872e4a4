package service

import (
	"context"
	"sync"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/plovers390-cloud/ScrimX/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EventCloser transitions an event to closed, idempotently. It is invoked
// both from the allocator's final-slot path and from manual close, and the
// two may race; invocations serialize on an internal mutex and the second
// one is a no-op because closed_at is already set.
type EventCloser struct {
	mu         sync.Mutex
	scrims     repository.ScrimRepository
	tourneys   repository.TourneyRepository
	chat       platform.ChatClient
	active     *ActiveChannels
	dispatcher *Dispatcher
	log        *logger.Logger
	closes     *telemetry.Counter
}

// NewEventCloser creates a new event closer.
func NewEventCloser(
	scrims repository.ScrimRepository,
	tourneys repository.TourneyRepository,
	chat platform.ChatClient,
	active *ActiveChannels,
	dispatcher *Dispatcher,
	log *logger.Logger,
) *EventCloser {
	if log == nil {
		log = logger.Get()
	}
	closes, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "scrimx.events.closed",
		Description: "Registration windows closed",
		Unit:        "{event}",
	})
	return &EventCloser{
		scrims:     scrims,
		tourneys:   tourneys,
		chat:       chat,
		active:     active,
		dispatcher: dispatcher,
		log:        log,
		closes:     closes,
	}
}

// CloseScrim closes a scrim's registration window.
func (c *EventCloser) CloseScrim(ctx context.Context, scrimID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scrim, err := c.scrims.GetByID(ctx, scrimID)
	if err != nil {
		return err
	}
	if scrim == nil || scrim.Closed() {
		return nil
	}

	if err := c.scrims.MarkClosed(ctx, scrim.ID, time.Now()); err != nil {
		return err
	}

	changed := c.restrictChannel(ctx, scrim.GuildID, scrim.RegistrationChannelID, scrim.OpenRoleID)
	c.active.Remove(ctx, domain.KindScrim, scrim.RegistrationChannelID)
	c.closes.Inc(ctx, attribute.String("kind", string(domain.KindScrim)))
	c.dispatcher.Dispatch(ctx, &LogEntry{
		Kind:      domain.LogClosed,
		EventKind: domain.KindScrim,
		EventID:   scrim.ID,
		GuildID:   scrim.GuildID,
		ChannelID: scrim.RegistrationChannelID,
		Fields:    map[string]any{"permission_updated": changed},
	})
	return nil
}

// CloseTourney closes a tourney's registration window.
func (c *EventCloser) CloseTourney(ctx context.Context, tourneyID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tourney, err := c.tourneys.GetByID(ctx, tourneyID)
	if err != nil {
		return err
	}
	if tourney == nil || tourney.Closed() {
		return nil
	}

	if err := c.tourneys.MarkClosed(ctx, tourney.ID, time.Now()); err != nil {
		return err
	}

	changed := c.restrictChannel(ctx, tourney.GuildID, tourney.RegistrationChannelID, tourney.OpenRoleID)
	c.active.Remove(ctx, domain.KindTourney, tourney.RegistrationChannelID)
	c.closes.Inc(ctx, attribute.String("kind", string(domain.KindTourney)))
	c.dispatcher.Dispatch(ctx, &LogEntry{
		Kind:      domain.LogClosed,
		EventKind: domain.KindTourney,
		EventID:   tourney.ID,
		GuildID:   tourney.GuildID,
		ChannelID: tourney.RegistrationChannelID,
		Fields:    map[string]any{"permission_updated": changed},
	})
	return nil
}

// restrictChannel toggles the intake channel back to restricted and posts
// the closed notice. Both are best-effort; a channel left open self-heals on
// the next timer or manual toggle.
func (c *EventCloser) restrictChannel(ctx context.Context, guildID, channelID, openRoleID string) bool {
	changed, err := c.chat.ToggleChannelWrite(ctx, guildID, channelID, openRoleID, false)
	if err != nil {
		c.log.Warn("failed to restrict registration channel",
			zap.String("channel_id", channelID), zap.Error(err))
		changed = false
	}
	embed := &platform.Embed{Description: "Registration is now closed.", Color: colorError}
	if err := c.chat.SendMessage(ctx, channelID, "", embed); err != nil {
		c.log.Warn("failed to post close notice",
			zap.String("channel_id", channelID), zap.Error(err))
	}
	return changed
}
