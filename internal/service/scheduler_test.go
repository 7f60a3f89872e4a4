package service

import (
	"context"
	"testing"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTimer builds a delivered scrim open timer whose expiry matches the
// scrim's recorded open time.
func openTimer(scrim *domain.Scrim) *domain.Timer {
	return &domain.Timer{
		ID:        "timer-open",
		Kind:      domain.TimerScrimOpen,
		ExpiresAt: scrim.OpenTime,
		Payload:   map[string]any{"scrim_id": scrim.ID},
	}
}

func TestScrimOpenResetsAndReseeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 10)
	scrim.OpenTime = time.Now().Add(-time.Minute)
	scrim.PingRoleID = "role-ping"
	scrim.OpenedAt = nil
	require.NoError(t, f.scrims.Update(ctx, scrim))
	f.active.Remove(ctx, domain.KindScrim, scrim.RegistrationChannelID)

	// Stale slots from the previous cycle plus a reservation for slot 3.
	require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
		EventKind: domain.KindScrim, EventID: scrim.ID, Num: 1, LeaderID: "old-user",
	}))
	require.NoError(t, f.reservations.Create(ctx, &domain.Reservation{
		ScrimID: scrim.ID, Num: 3, UserID: "vip-1", TeamName: "reserved kings",
	}))

	require.NoError(t, f.scheduler.HandleTimer(ctx, openTimer(scrim)))

	slots, err := f.slots.ListByEvent(ctx, domain.KindScrim, scrim.ID)
	require.NoError(t, err)
	require.Len(t, slots, 1, "old slots wiped, reservation re-seeded")
	assert.Equal(t, 3, slots[0].Num)
	assert.Equal(t, "vip-1", slots[0].LeaderID)
	assert.Equal(t, "reserved kings", slots[0].TeamName)

	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.OpenedAt)
	assert.Nil(t, stored.ClosedAt)
	assert.Len(t, stored.AvailableSlots, 9, "reserved number excluded from pool")
	assert.NotContains(t, stored.AvailableSlots, 3)
	assert.Equal(t, scrim.OpenTime.Add(openCycle).Unix(), stored.OpenTime.Unix())

	require.Len(t, f.chat.Granted, 1)
	assert.Equal(t, "vip-1", f.chat.Granted[0].UserID)
	require.Len(t, f.chat.Toggles, 1)
	assert.True(t, f.chat.Toggles[0].Open)
	require.Equal(t, 1, f.chat.MessageCount())
	assert.Equal(t, "<@&role-ping>", f.chat.Messages[0].Content)

	assert.True(t, f.active.Contains(domain.KindScrim, scrim.RegistrationChannelID))
	assert.Len(t, f.logEntries(domain.LogOpen), 1)
	assert.Equal(t, 1, f.timerRepo.Pending(), "next occurrence armed")
}

func TestDuplicateOpenDeliveryOpensOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 5)
	scrim.OpenTime = time.Now().Add(-time.Minute)
	scrim.OpenedAt = nil
	require.NoError(t, f.scrims.Update(ctx, scrim))

	tm := openTimer(scrim)
	require.NoError(t, f.scheduler.HandleTimer(ctx, tm))
	require.NoError(t, f.scheduler.HandleTimer(ctx, tm))

	assert.Len(t, f.logEntries(domain.LogOpen), 1, "second delivery absorbed")
	assert.Equal(t, 1, f.chat.ToggleCount())
	// Both deliveries keep the heartbeat alive.
	assert.Equal(t, 2, f.timerRepo.Pending())
}

func TestDisabledScrimStillRearms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 5)
	scrim.OpenTime = time.Now().Add(-time.Minute)
	scrim.Toggle = false
	scrim.OpenedAt = nil
	require.NoError(t, f.scrims.Update(ctx, scrim))

	require.NoError(t, f.scheduler.HandleTimer(ctx, openTimer(scrim)))

	assert.Empty(t, f.logEntries(domain.LogOpen))
	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.OpenedAt)
	assert.Equal(t, scrim.OpenTime.Add(openCycle).Unix(), stored.OpenTime.Unix())
	assert.Equal(t, 1, f.timerRepo.Pending(), "schedule never silently stops")
}

func TestStaleOpenTimerAbsorbed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 5)
	scrim.OpenTime = time.Now().Add(2 * time.Hour)
	scrim.OpenedAt = nil
	require.NoError(t, f.scrims.Update(ctx, scrim))

	stale := &domain.Timer{
		ID:        "timer-stale",
		Kind:      domain.TimerScrimOpen,
		ExpiresAt: time.Now().Add(-time.Hour),
		Payload:   map[string]any{"scrim_id": scrim.ID},
	}
	require.NoError(t, f.scheduler.HandleTimer(ctx, stale))

	assert.Empty(t, f.logEntries(domain.LogOpen))
	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.OpenedAt)
}

func TestOpenTimerForDeletedScrim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tm := &domain.Timer{
		ID:        "timer-gone",
		Kind:      domain.TimerScrimOpen,
		ExpiresAt: time.Now(),
		Payload:   map[string]any{"scrim_id": int64(999)},
	}
	require.NoError(t, f.scheduler.HandleTimer(ctx, tm))
	assert.Zero(t, f.timerRepo.Pending(), "schedule dies with the record")
}

// cleanTimer builds a delivered autoclean timer whose expiry matches the
// scrim's recorded autoclean time.
func cleanTimer(scrim *domain.Scrim) *domain.Timer {
	return &domain.Timer{
		ID:        "timer-clean",
		Kind:      domain.TimerAutoclean,
		ExpiresAt: scrim.AutocleanTime,
		Payload:   map[string]any{"scrim_id": scrim.ID},
	}
}

func TestAutocleanPurgeOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1, 2}, 2)
	scrim.Autoclean = []domain.AutocleanType{domain.AutocleanChannel}
	scrim.AutocleanTime = time.Now().Add(-time.Minute)
	require.NoError(t, f.scrims.Update(ctx, scrim))

	tm := cleanTimer(scrim)
	require.NoError(t, f.scheduler.HandleTimer(ctx, tm))

	require.Len(t, f.chat.Purges, 1)
	assert.Equal(t, scrim.RegistrationChannelID, f.chat.Purges[0].ChannelID)
	assert.Empty(t, f.chat.Removed, "role membership unchanged")

	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.Equal(t, tm.ExpiresAt.Add(openCycle).Unix(), stored.AutocleanTime.Unix())
	assert.Equal(t, 1, f.timerRepo.Pending())
}

func TestAutocleanRoleStrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 2)
	scrim.Autoclean = []domain.AutocleanType{domain.AutocleanRole}
	scrim.AutocleanTime = time.Now()
	require.NoError(t, f.scrims.Update(ctx, scrim))

	require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
		EventKind: domain.KindScrim, EventID: scrim.ID, Num: 1,
		LeaderID: "u1", Members: []string{"u1", "u2"},
	}))
	// Holder whose slot record is already gone.
	f.chat.RoleHolders["role-elig"] = []string{"u2", "orphan-1"}

	require.NoError(t, f.scheduler.HandleTimer(ctx, cleanTimer(scrim)))

	stripped := make(map[string]int)
	for _, call := range f.chat.Removed {
		stripped[call.UserID]++
	}
	assert.Equal(t, map[string]int{"u1": 1, "u2": 1, "orphan-1": 1}, stripped)
	assert.Empty(t, f.chat.Purges)
}

func TestAutocleanDisabledReschedulesOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 2)
	scrim.AutocleanTime = time.Now()
	require.NoError(t, f.scrims.Update(ctx, scrim))

	require.NoError(t, f.scheduler.HandleTimer(ctx, cleanTimer(scrim)))

	assert.Empty(t, f.chat.Purges)
	assert.Empty(t, f.chat.Removed)
	assert.Equal(t, 1, f.timerRepo.Pending())
}

func TestAutocleanToggledOffReschedulesOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 2)
	scrim.Autoclean = []domain.AutocleanType{domain.AutocleanChannel, domain.AutocleanRole}
	scrim.AutocleanTime = time.Now().Add(-time.Minute)
	scrim.Toggle = false
	require.NoError(t, f.scrims.Update(ctx, scrim))
	f.chat.RoleHolders["role-elig"] = []string{"u1"}

	tm := cleanTimer(scrim)
	require.NoError(t, f.scheduler.HandleTimer(ctx, tm))

	assert.Empty(t, f.chat.Purges, "disabled scrim is left alone")
	assert.Empty(t, f.chat.Removed)

	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.Equal(t, tm.ExpiresAt.Add(openCycle).Unix(), stored.AutocleanTime.Unix())
	assert.Equal(t, 1, f.timerRepo.Pending(), "schedule never silently stops")
}

func TestAutocleanStaleTimerAbsorbed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{}, 2)
	scrim.Autoclean = []domain.AutocleanType{domain.AutocleanChannel}
	// Autoclean moved to a new time after this timer was armed.
	moved := time.Now().Add(2 * time.Hour)
	scrim.AutocleanTime = moved
	require.NoError(t, f.scrims.Update(ctx, scrim))

	stale := &domain.Timer{
		ID:        "timer-stale-clean",
		Kind:      domain.TimerAutoclean,
		ExpiresAt: time.Now().Add(-time.Hour),
		Payload:   map[string]any{"scrim_id": scrim.ID},
	}
	require.NoError(t, f.scheduler.HandleTimer(ctx, stale))

	assert.Empty(t, f.chat.Purges, "stale delivery runs nothing")
	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.Unix(), stored.AutocleanTime.Unix(), "moved schedule kept")
	assert.Zero(t, f.timerRepo.Pending(), "stale delivery arms no successor")
}

func TestBanExpiryDeletesAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	expiry := time.Now()
	require.NoError(t, f.bans.Create(ctx, &domain.BanRecord{
		ID: "ban-1", EventKind: domain.KindScrim, EventID: 7,
		GuildID: "guild-1", UserID: "u1", Reason: "toxic", ExpiresAt: &expiry,
	}))

	tm := &domain.Timer{
		ID:        "timer-ban",
		Kind:      domain.TimerBanExpiry,
		ExpiresAt: expiry,
		Payload: map[string]any{
			"event_kind": "scrim",
			"event_ids":  []any{float64(7)},
			"user_id":    "u1",
			"guild_id":   "guild-1",
			"reason":     "toxic",
		},
	}
	require.NoError(t, f.scheduler.HandleTimer(ctx, tm))

	banned, err := f.bans.IsBanned(ctx, domain.KindScrim, 7, "u1")
	require.NoError(t, err)
	assert.False(t, banned)

	unbans := f.logEntries(domain.LogUnban)
	require.Len(t, unbans, 1)
	assert.Equal(t, "toxic (auto-expired)", unbans[0].Reason)
	assert.Equal(t, "u1", unbans[0].UserID)
	assert.Zero(t, f.timerRepo.Pending(), "ban expiry never re-arms")
}

func TestBanExpiryAlreadyUnbanned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tm := &domain.Timer{
		ID:        "timer-ban",
		Kind:      domain.TimerBanExpiry,
		ExpiresAt: time.Now(),
		Payload: map[string]any{
			"event_kind": "scrim",
			"event_ids":  []any{float64(7)},
			"user_id":    "u1",
		},
	}
	require.NoError(t, f.scheduler.HandleTimer(ctx, tm))
	assert.Empty(t, f.logEntries(domain.LogUnban), "no log when nothing was deleted")
}

func TestUnknownTimerKindDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tm := &domain.Timer{ID: "timer-x", Kind: "mystery", ExpiresAt: time.Now()}
	assert.NoError(t, f.scheduler.HandleTimer(ctx, tm))
}
