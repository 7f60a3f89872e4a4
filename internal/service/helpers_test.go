package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/internal/timer"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/stretchr/testify/require"
)

var allWeekdays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// fixture wires the full engine against in-memory stores and the mock chat
// client.
type fixture struct {
	scrims       *repository.MemoryScrimRepository
	tourneys     *repository.MemoryTourneyRepository
	slots        *repository.MemorySlotRepository
	reservations *repository.MemoryReservationRepository
	bans         *repository.MemoryBanRepository
	timerRepo    *repository.MemoryTimerRepository
	timers       *timer.Service
	chat         *MockChatClient
	active       *ActiveChannels
	dispatcher   *Dispatcher
	gate         *RegistrationGate
	closer       *EventCloser
	allocator    *SlotAllocator
	scheduler    *LifecycleScheduler

	mu      sync.Mutex
	entries []*LogEntry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Get()

	f := &fixture{
		scrims:       repository.NewMemoryScrimRepository(),
		tourneys:     repository.NewMemoryTourneyRepository(),
		slots:        repository.NewMemorySlotRepository(),
		reservations: repository.NewMemoryReservationRepository(),
		bans:         repository.NewMemoryBanRepository(),
		timerRepo:    repository.NewMemoryTimerRepository(),
		chat:         NewMockChatClient(),
	}

	f.dispatcher = NewDispatcher(log)
	f.dispatcher.Subscribe(func(ctx context.Context, entry *LogEntry) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.entries = append(f.entries, entry)
	})
	f.active = NewActiveChannels(nil, log)
	f.gate = NewRegistrationGate(f.slots, f.bans, log)
	f.closer = NewEventCloser(f.scrims, f.tourneys, f.chat, f.active, f.dispatcher, log)
	f.allocator = NewSlotAllocator(f.scrims, f.tourneys, f.slots, f.gate, f.closer, f.chat, f.active, f.dispatcher, log)

	// The timer service and scheduler reference each other; bind late.
	var sched *LifecycleScheduler
	f.timers = timer.NewService(f.timerRepo, timer.HandlerFunc(func(ctx context.Context, tm *domain.Timer) error {
		return sched.HandleTimer(ctx, tm)
	}), log, nil)
	sched = NewLifecycleScheduler(
		f.scrims, f.tourneys, f.slots, f.reservations, f.bans,
		f.timers, f.chat, f.allocator, f.active, f.dispatcher, log, 50,
	)
	f.scheduler = sched
	return f
}

func (f *fixture) logEntries(kind domain.LogKind) []*LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*LogEntry
	for _, e := range f.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// seedScrim creates an open scrim with the given pool.
func (f *fixture) seedScrim(t *testing.T, pool []int, total int) *domain.Scrim {
	t.Helper()
	now := time.Now()
	scrim := &domain.Scrim{
		GuildID:               "guild-1",
		Name:                  "Daily Scrims",
		RegistrationChannelID: "chan-scrim",
		RoleID:                "role-elig",
		ModRoleID:             "role-mod",
		RequiredMentions:      1,
		TotalSlots:            total,
		AvailableSlots:        pool,
		OpenTime:              now.Add(openCycle),
		OpenDays:              allWeekdays,
		Toggle:                true,
		OpenedAt:              &now,
	}
	require.NoError(t, f.scrims.Create(context.Background(), scrim))
	f.active.Add(context.Background(), domain.KindScrim, scrim.RegistrationChannelID)
	return scrim
}

// seedTourney creates an open tourney.
func (f *fixture) seedTourney(t *testing.T, total int) *domain.Tourney {
	t.Helper()
	now := time.Now()
	tourney := &domain.Tourney{
		GuildID:               "guild-1",
		Name:                  "Weekly Cup",
		RegistrationChannelID: "chan-tourney",
		RoleID:                "role-elig",
		ModRoleID:             "role-mod",
		RequiredMentions:      1,
		TotalSlots:            total,
		StartedAt:             &now,
	}
	require.NoError(t, f.tourneys.Create(context.Background(), tourney))
	f.active.Add(context.Background(), domain.KindTourney, tourney.RegistrationChannelID)
	return tourney
}

// msg builds a candidate registration message with non-bot mentions.
func msg(id, channelID, authorID, content string, mentions ...string) *platform.InboundMessage {
	m := &platform.InboundMessage{
		ID:        id,
		GuildID:   "guild-1",
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
	}
	for _, userID := range mentions {
		m.Mentions = append(m.Mentions, platform.Mention{UserID: userID})
	}
	return m
}
