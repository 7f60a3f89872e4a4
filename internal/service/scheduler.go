package service

import (
	"context"
	"fmt"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/internal/timer"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/plovers390-cloud/ScrimX/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// openCycle is the recurrence interval of the open and autoclean schedules.
const openCycle = 24 * time.Hour

// minuteFormat detects two timers firing for the same scheduled instant.
const minuteFormat = "2006-01-02 15:04"

// defaultPurgeLimit bounds a single autoclean purge batch.
const defaultPurgeLimit = 100

// LifecycleScheduler reacts to durable timer deliveries: it reopens
// registration windows, runs autoclean passes and expires temporary bans,
// re-arming each recurring schedule itself.
//
// Delivery is at-least-once, so every handler is idempotent. Recurring
// handlers re-arm the next occurrence before evaluating any business
// condition; a disabled or misconfigured event keeps its heartbeat and
// never silently drops off the schedule.
type LifecycleScheduler struct {
	scrims       repository.ScrimRepository
	tourneys     repository.TourneyRepository
	slots        repository.SlotRepository
	reservations repository.ReservationRepository
	bans         repository.BanRepository
	timers       *timer.Service
	chat         platform.ChatClient
	allocator    *SlotAllocator
	active       *ActiveChannels
	dispatcher   *Dispatcher
	log          *logger.Logger
	purgeLimit   int

	handlers map[domain.TimerKind]func(context.Context, *domain.Timer) error
	opens    *telemetry.Counter
}

// NewLifecycleScheduler creates a new lifecycle scheduler.
func NewLifecycleScheduler(
	scrims repository.ScrimRepository,
	tourneys repository.TourneyRepository,
	slots repository.SlotRepository,
	reservations repository.ReservationRepository,
	bans repository.BanRepository,
	timers *timer.Service,
	chat platform.ChatClient,
	allocator *SlotAllocator,
	active *ActiveChannels,
	dispatcher *Dispatcher,
	log *logger.Logger,
	purgeLimit int,
) *LifecycleScheduler {
	if log == nil {
		log = logger.Get()
	}
	if purgeLimit <= 0 {
		purgeLimit = defaultPurgeLimit
	}
	opens, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "scrimx.events.opened",
		Description: "Registration windows opened",
		Unit:        "{event}",
	})

	s := &LifecycleScheduler{
		scrims:       scrims,
		tourneys:     tourneys,
		slots:        slots,
		reservations: reservations,
		bans:         bans,
		timers:       timers,
		chat:         chat,
		allocator:    allocator,
		active:       active,
		dispatcher:   dispatcher,
		log:          log,
		purgeLimit:   purgeLimit,
		opens:        opens,
	}
	s.handlers = map[domain.TimerKind]func(context.Context, *domain.Timer) error{
		domain.TimerScrimOpen: s.handleScrimOpen,
		domain.TimerAutoclean: s.handleAutoclean,
		domain.TimerBanExpiry: s.handleBanExpiry,
	}
	return s
}

// HandleTimer routes a delivered timer to its kind handler. Unknown kinds
// are dropped; returning nil lets the delivery worker delete the row.
func (s *LifecycleScheduler) HandleTimer(ctx context.Context, t *domain.Timer) error {
	handler, ok := s.handlers[t.Kind]
	if !ok {
		s.log.Warn("dropping timer of unknown kind",
			zap.String("timer_id", t.ID), zap.String("kind", string(t.Kind)))
		return nil
	}
	return handler(ctx, t)
}

// handleScrimOpen drives the recurring open cycle of one scrim.
//
// The next occurrence is armed before any guard runs. The stale guard then
// compares the fired timer's expiry against the open time the record held
// when it was read: a mismatch means this delivery belongs to an older or
// duplicate schedule and stops here. Two timers firing for the same instant
// both pass that guard; the same-minute check on opened_at stops the second.
func (s *LifecycleScheduler) handleScrimOpen(ctx context.Context, t *domain.Timer) error {
	scrimID, ok := t.Int64("scrim_id")
	if !ok {
		s.log.Warn("scrim open timer missing scrim_id", zap.String("timer_id", t.ID))
		return nil
	}

	scrim, err := s.scrims.GetByID(ctx, scrimID)
	if err != nil {
		return err
	}
	if scrim == nil {
		// Deleted; let the schedule die with it.
		return nil
	}

	recordedOpen := scrim.OpenTime
	next := t.ExpiresAt.Add(openCycle)
	if err := s.scrims.SetOpenTime(ctx, scrim.ID, next); err != nil {
		return err
	}
	if _, err := s.timers.CreateTimer(ctx, next, domain.TimerScrimOpen, map[string]any{"scrim_id": scrim.ID}); err != nil {
		return err
	}

	if !t.ExpiresAt.Equal(recordedOpen) {
		return nil
	}
	if !scrim.Toggle || !scrim.OpensOn(time.Now().Weekday()) {
		return nil
	}
	if !s.chat.GuildAvailable(scrim.GuildID) {
		return nil
	}
	if scrim.OpenedAt != nil && scrim.OpenedAt.Format(minuteFormat) == time.Now().Format(minuteFormat) {
		return nil
	}

	return s.OpenScrim(ctx, scrim)
}

// OpenScrim performs the open transition: full slot reset, pool recompute,
// reservation re-seeding, state flip, channel unlock and announcement.
// Exported for the manual open path; guards belong to the timer handler.
func (s *LifecycleScheduler) OpenScrim(ctx context.Context, scrim *domain.Scrim) error {
	if err := s.slots.DeleteByEvent(ctx, domain.KindScrim, scrim.ID); err != nil {
		return err
	}

	reservations, err := s.reservations.ListByScrim(ctx, scrim.ID)
	if err != nil {
		return err
	}
	reserved := make(map[int]struct{}, len(reservations))
	for _, r := range reservations {
		reserved[r.Num] = struct{}{}
	}

	pool := make([]int, 0, scrim.TotalSlots)
	for n := 1; n <= scrim.TotalSlots; n++ {
		if _, ok := reserved[n]; !ok {
			pool = append(pool, n)
		}
	}
	if err := s.scrims.SetAvailableSlots(ctx, scrim.ID, pool); err != nil {
		return err
	}

	// Reservations become assigned slots before any public claim can land.
	for _, r := range reservations {
		slot := &domain.AssignedSlot{
			EventKind: domain.KindScrim,
			EventID:   scrim.ID,
			Num:       r.Num,
			LeaderID:  r.UserID,
			TeamName:  r.TeamName,
			CreatedAt: time.Now(),
		}
		if r.UserID != "" {
			slot.Members = []string{r.UserID}
		}
		if err := s.slots.Create(ctx, slot); err != nil {
			return err
		}
		if r.UserID != "" && s.chat.MemberExists(ctx, scrim.GuildID, r.UserID) {
			if err := s.chat.AddRole(ctx, scrim.GuildID, r.UserID, scrim.RoleID); err != nil {
				s.log.Warn("failed to grant role for reserved slot",
					zap.String("user_id", r.UserID), zap.Error(err))
			}
		}
	}

	if err := s.scrims.MarkOpened(ctx, scrim.ID, time.Now()); err != nil {
		return err
	}

	if _, err := s.chat.ToggleChannelWrite(ctx, scrim.GuildID, scrim.RegistrationChannelID, scrim.OpenRoleID, true); err != nil {
		s.log.Warn("failed to unlock registration channel",
			zap.String("channel_id", scrim.RegistrationChannelID), zap.Error(err))
	}

	content := ""
	if scrim.PingRoleID != "" {
		content = fmt.Sprintf("<@&%s>", scrim.PingRoleID)
	}
	embed := &platform.Embed{
		Title:       scrim.Name,
		Description: fmt.Sprintf("Registration is now open!\nAvailable slots: %d", len(pool)),
		Color:       colorSuccess,
	}
	if err := s.chat.SendMessage(ctx, scrim.RegistrationChannelID, content, embed); err != nil {
		s.log.Warn("failed to post open announcement",
			zap.String("channel_id", scrim.RegistrationChannelID), zap.Error(err))
	}

	s.active.Add(ctx, domain.KindScrim, scrim.RegistrationChannelID)
	s.opens.Inc(ctx, attribute.String("kind", string(domain.KindScrim)))
	s.dispatcher.Dispatch(ctx, &LogEntry{
		Kind:      domain.LogOpen,
		EventKind: domain.KindScrim,
		EventID:   scrim.ID,
		GuildID:   scrim.GuildID,
		ChannelID: scrim.RegistrationChannelID,
		Fields:    map[string]any{"available_slots": len(pool), "reserved_slots": len(reservations)},
	})
	return nil
}

// handleAutoclean runs the recurring janitorial pass of one scrim. It holds
// the allocation lock so a purge or role strip never interleaves with a
// concurrent claim or reopen.
//
// Unlike the open handler, the stale guard here runs before the reschedule:
// a delivery whose expiry no longer matches the recorded autoclean time is
// an older or duplicate schedule, and re-arming from it would both clobber
// a moved autoclean time and leave a second daily schedule running forever.
func (s *LifecycleScheduler) handleAutoclean(ctx context.Context, t *domain.Timer) error {
	scrimID, ok := t.Int64("scrim_id")
	if !ok {
		s.log.Warn("autoclean timer missing scrim_id", zap.String("timer_id", t.ID))
		return nil
	}

	scrim, err := s.scrims.GetByID(ctx, scrimID)
	if err != nil {
		return err
	}
	if scrim == nil {
		return nil
	}

	if !t.ExpiresAt.Equal(scrim.AutocleanTime) {
		return nil
	}

	next := t.ExpiresAt.Add(openCycle)
	if err := s.scrims.SetAutocleanTime(ctx, scrim.ID, next); err != nil {
		return err
	}
	if _, err := s.timers.CreateTimer(ctx, next, domain.TimerAutoclean, map[string]any{"scrim_id": scrim.ID}); err != nil {
		return err
	}

	if !scrim.Toggle {
		return nil
	}
	if len(scrim.Autoclean) == 0 {
		return nil
	}

	var retErr error
	s.allocator.WithScrimLock(func() {
		if scrim.AutocleanEnabled(domain.AutocleanChannel) {
			if err := s.chat.PurgeChannel(ctx, scrim.RegistrationChannelID, s.purgeLimit); err != nil {
				s.log.Warn("autoclean purge failed",
					zap.String("channel_id", scrim.RegistrationChannelID), zap.Error(err))
			}
		}
		if scrim.AutocleanEnabled(domain.AutocleanRole) {
			retErr = s.stripRoles(ctx, scrim)
		}
	})
	return retErr
}

// stripRoles removes the eligibility role from every assigned participant
// and from any remaining holders whose slot record is already gone.
func (s *LifecycleScheduler) stripRoles(ctx context.Context, scrim *domain.Scrim) error {
	slots, err := s.slots.ListByEvent(ctx, domain.KindScrim, scrim.ID)
	if err != nil {
		return err
	}

	stripped := make(map[string]struct{})
	for _, slot := range slots {
		for _, member := range slot.Members {
			if _, ok := stripped[member]; ok {
				continue
			}
			stripped[member] = struct{}{}
			if err := s.chat.RemoveRole(ctx, scrim.GuildID, member, scrim.RoleID); err != nil {
				s.log.Warn("failed to strip role",
					zap.String("user_id", member), zap.Error(err))
			}
		}
	}

	holders, err := s.chat.RoleMembers(ctx, scrim.GuildID, scrim.RoleID)
	if err != nil {
		s.log.Warn("failed to list remaining role holders", zap.Error(err))
		return nil
	}
	for _, member := range holders {
		if _, ok := stripped[member]; ok {
			continue
		}
		if err := s.chat.RemoveRole(ctx, scrim.GuildID, member, scrim.RoleID); err != nil {
			s.log.Warn("failed to strip role",
				zap.String("user_id", member), zap.Error(err))
		}
	}
	return nil
}

// handleBanExpiry deletes the bans a one-shot expiry timer points at. If
// nothing was deleted the participant was already unbanned manually and no
// log is emitted. This timer never re-arms.
func (s *LifecycleScheduler) handleBanExpiry(ctx context.Context, t *domain.Timer) error {
	kind := domain.EventKind(t.String("event_kind"))
	userID := t.String("user_id")
	eventIDs := t.Int64Slice("event_ids")
	if userID == "" || len(eventIDs) == 0 {
		s.log.Warn("ban expiry timer with incomplete payload", zap.String("timer_id", t.ID))
		return nil
	}

	deleted, err := s.bans.DeleteByUser(ctx, kind, eventIDs, userID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}

	reason := t.String("reason")
	if reason == "" {
		reason = "no reason given"
	}
	s.dispatcher.Dispatch(ctx, &LogEntry{
		Kind:      domain.LogUnban,
		EventKind: kind,
		GuildID:   t.String("guild_id"),
		UserID:    userID,
		Reason:    reason + " (auto-expired)",
		Fields:    map[string]any{"event_ids": eventIDs, "bans_removed": deleted},
	})
	return nil
}
