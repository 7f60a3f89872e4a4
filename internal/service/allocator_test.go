package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentScrimClaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 10)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			author := fmt.Sprintf("user-%d", i)
			m := msg(fmt.Sprintf("msg-%d", i), scrim.RegistrationChannelID, author,
				fmt.Sprintf("team name: squad %d", i), fmt.Sprintf("mate-%d", i))
			require.NoError(t, f.allocator.HandleScrimMessage(ctx, m))
		}(i)
	}
	wg.Wait()

	slots, err := f.slots.ListByEvent(ctx, domain.KindScrim, scrim.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(slots), 10)
	assert.GreaterOrEqual(t, len(slots), 9)

	seen := make(map[int]bool)
	for _, slot := range slots {
		assert.False(t, seen[slot.Num], "slot number %d claimed twice", slot.Num)
		seen[slot.Num] = true
		assert.GreaterOrEqual(t, slot.Num, 1)
		assert.LessOrEqual(t, slot.Num, 10)
	}

	// The window closes when the pool drops to its last number, exactly once.
	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed())
	assert.Len(t, f.logEntries(domain.LogClosed), 1)
}

func TestLastSlotRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{5}, 25)

	var wg sync.WaitGroup
	for _, author := range []string{"racer-a", "racer-b"} {
		wg.Add(1)
		go func(author string) {
			defer wg.Done()
			m := msg("msg-"+author, scrim.RegistrationChannelID, author,
				"team name: "+author, "mate-"+author)
			require.NoError(t, f.allocator.HandleScrimMessage(ctx, m))
		}(author)
	}
	wg.Wait()

	slots, err := f.slots.ListByEvent(ctx, domain.KindScrim, scrim.ID)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 5, slots[0].Num)

	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed())
	assert.Len(t, f.logEntries(domain.LogClosed), 1)
	assert.Equal(t, 1, f.chat.ToggleCount())
}

func TestScrimClaimGrantsRoleAndReacts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1, 2, 3, 4}, 4)

	m := msg("msg-1", scrim.RegistrationChannelID, "leader-1", "team name: phoenix", "mate-1")
	require.NoError(t, f.allocator.HandleScrimMessage(ctx, m))

	slots, err := f.slots.ListByEvent(ctx, domain.KindScrim, scrim.ID)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 1, slots[0].Num, "lowest number claimed first")
	assert.Equal(t, "phoenix", slots[0].TeamName)
	assert.Equal(t, []string{"leader-1", "mate-1"}, slots[0].Members)

	require.Len(t, f.chat.Granted, 1)
	assert.Equal(t, RoleCall{GuildID: "guild-1", UserID: "leader-1", RoleID: "role-elig"}, f.chat.Granted[0])
	require.Len(t, f.chat.Reactions, 1)
	assert.Equal(t, domain.DefaultCheckEmoji, f.chat.Reactions[0].Emoji)

	success := f.logEntries(domain.LogSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, 1, success[0].Fields["slot_num"])
}

func TestInactiveChannelIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1, 2}, 2)
	f.active.Remove(ctx, domain.KindScrim, scrim.RegistrationChannelID)

	m := msg("msg-1", scrim.RegistrationChannelID, "u1", "team name: x", "u2")
	require.NoError(t, f.allocator.HandleScrimMessage(ctx, m))

	count, err := f.slots.CountByEvent(ctx, domain.KindScrim, scrim.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.chat.MessageCount())
}

func TestRejectionNoticeAndAutodelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1, 2}, 2)
	scrim.AutodeleteRejected = true
	scrim.RequiredMentions = 2
	require.NoError(t, f.scrims.Update(ctx, scrim))

	m := msg("msg-1", scrim.RegistrationChannelID, "u1", "team name: x", "u2")
	require.NoError(t, f.allocator.HandleScrimMessage(ctx, m))

	require.Equal(t, 1, f.chat.MessageCount())
	assert.Contains(t, f.chat.Messages[0].Desc, "mention 2 teammate")
	require.Len(t, f.chat.Reactions, 1)
	assert.Equal(t, domain.DefaultCrossEmoji, f.chat.Reactions[0].Emoji)
	assert.Equal(t, []string{"msg-1"}, f.chat.Deleted)

	denies := f.logEntries(domain.LogDeny)
	require.Len(t, denies, 1)
	assert.Equal(t, string(domain.DenyNotEnoughTags), denies[0].Reason)
}

func TestBannedSenderGetsReactionOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1, 2}, 2)
	require.NoError(t, f.bans.Create(ctx, &domain.BanRecord{
		ID: "ban-1", EventKind: domain.KindScrim, EventID: scrim.ID, GuildID: "guild-1", UserID: "u1",
	}))

	m := msg("msg-1", scrim.RegistrationChannelID, "u1", "team name: x", "u2")
	require.NoError(t, f.allocator.HandleScrimMessage(ctx, m))

	assert.Zero(t, f.chat.MessageCount(), "bans produce no channel notice")
	require.Len(t, f.chat.Reactions, 1)
	assert.Equal(t, domain.DefaultCrossEmoji, f.chat.Reactions[0].Emoji)
	assert.Len(t, f.logEntries(domain.LogDeny), 1)
}

func TestTourneyDuplicateName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tourney := f.seedTourney(t, 3)
	tourney.NoDuplicateName = true
	require.NoError(t, f.tourneys.Update(ctx, tourney))

	require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
		EventKind: domain.KindTourney, EventID: tourney.ID, Num: 1, LeaderID: "u-a", TeamName: "alpha",
	}))
	require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
		EventKind: domain.KindTourney, EventID: tourney.ID, Num: 2, LeaderID: "u-b", TeamName: "beta",
	}))

	m := msg("msg-1", tourney.RegistrationChannelID, "u-c", "Team Name: ALPHA", "u-d")
	require.NoError(t, f.allocator.HandleTourneyMessage(ctx, m))

	count, err := f.slots.CountByEvent(ctx, domain.KindTourney, tourney.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "no slot numbered 3 created")

	denies := f.logEntries(domain.LogDeny)
	require.Len(t, denies, 1)
	assert.Equal(t, string(domain.DenyDuplicateName), denies[0].Reason)
	require.Equal(t, 1, f.chat.MessageCount())
	assert.Contains(t, f.chat.Messages[0].Desc, "already registered")
}

func TestTourneyFillsAndCloses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tourney := f.seedTourney(t, 2)
	tourney.SuccessMessage = "See you on the battlefield!"
	require.NoError(t, f.tourneys.Update(ctx, tourney))

	m1 := msg("msg-1", tourney.RegistrationChannelID, "u1", "team name: alpha", "u2")
	require.NoError(t, f.allocator.HandleTourneyMessage(ctx, m1))
	m2 := msg("msg-2", tourney.RegistrationChannelID, "u3", "team name: beta", "u4")
	require.NoError(t, f.allocator.HandleTourneyMessage(ctx, m2))

	slots, err := f.slots.ListByEvent(ctx, domain.KindTourney, tourney.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	nums := []int{slots[0].Num, slots[1].Num}
	assert.ElementsMatch(t, []int{1, 2}, nums)

	stored, err := f.tourneys.GetByID(ctx, tourney.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed())
	assert.Nil(t, stored.StartedAt)

	require.Len(t, f.chat.DMs, 2)
	assert.Equal(t, "See you on the battlefield!", f.chat.DMs[0].Desc)
	assert.Len(t, f.logEntries(domain.LogSuccess), 2)
	assert.Len(t, f.logEntries(domain.LogClosed), 1)

	// Capacity reached; a third candidate is denied as full.
	stored.ClosedAt = nil
	now := stored.CreatedAt
	stored.StartedAt = &now
	require.NoError(t, f.tourneys.Update(ctx, stored))
	f.active.Add(ctx, domain.KindTourney, tourney.RegistrationChannelID)

	m3 := msg("msg-3", tourney.RegistrationChannelID, "u5", "team name: gamma", "u6")
	require.NoError(t, f.allocator.HandleTourneyMessage(ctx, m3))
	denies := f.logEntries(domain.LogDeny)
	require.Len(t, denies, 1)
	assert.Equal(t, string(domain.DenyFull), denies[0].Reason)
}

func TestTourneyReactionRegisters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tourney := f.seedTourney(t, 4)
	tourney.NoDuplicateName = true
	require.NoError(t, f.tourneys.Update(ctx, tourney))
	f.chat.RoleHolders["role-mod"] = []string{"mod-1"}

	require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
		EventKind: domain.KindTourney, EventID: tourney.ID, Num: 1, LeaderID: "u-a", TeamName: "alpha",
	}))

	// Duplicate name is allowed on the moderator reaction path.
	m := msg("msg-react", tourney.RegistrationChannelID, "u-b", "team name: alpha", "u-c")
	require.NoError(t, f.allocator.HandleTourneyReaction(ctx, m, "mod-1", domain.DefaultCheckEmoji))

	slots, err := f.slots.ListByEvent(ctx, domain.KindTourney, tourney.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	// A second reaction on the same message is a no-op.
	require.NoError(t, f.allocator.HandleTourneyReaction(ctx, m, "mod-1", domain.DefaultCheckEmoji))
	count, err := f.slots.CountByEvent(ctx, domain.KindTourney, tourney.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Non-moderators cannot force-register.
	m2 := msg("msg-react-2", tourney.RegistrationChannelID, "u-d", "team name: delta", "u-e")
	require.NoError(t, f.allocator.HandleTourneyReaction(ctx, m2, "rando", domain.DefaultCheckEmoji))
	count, err = f.slots.CountByEvent(ctx, domain.KindTourney, tourney.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTourneyCrossReactionUnimplemented(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tourney := f.seedTourney(t, 4)

	m := msg("msg-1", tourney.RegistrationChannelID, "u1", "team name: alpha", "u2")
	err := f.allocator.HandleTourneyReaction(ctx, m, "mod-1", domain.DefaultCrossEmoji)
	assert.ErrorIs(t, err, ErrCancelNotImplemented)
}

func TestTourneyReactionFullNotice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tourney := f.seedTourney(t, 1)
	f.chat.RoleHolders["role-mod"] = []string{"mod-1"}

	require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
		EventKind: domain.KindTourney, EventID: tourney.ID, Num: 1, LeaderID: "u-a", TeamName: "alpha",
	}))

	m := msg("msg-1", tourney.RegistrationChannelID, "u-b", "team name: beta", "u-c")
	require.NoError(t, f.allocator.HandleTourneyReaction(ctx, m, "mod-1", domain.DefaultCheckEmoji))

	require.Equal(t, 1, f.chat.MessageCount())
	assert.Equal(t, "Slots are already full.", f.chat.Messages[0].Desc)
}
