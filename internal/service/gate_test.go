package service

import (
	"context"
	"testing"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTeamName(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
		found    bool
	}{
		{
			name:     "plain team name",
			content:  "Team Name: Phoenix Rising",
			expected: "phoenix rising",
			found:    true,
		},
		{
			name:     "dash separator",
			content:  "TEAM-NAME - Soul Crushers",
			expected: "soul crushers",
			found:    true,
		},
		{
			name:     "fullwidth characters fold to ascii",
			content:  "team name: ＳＯＵＬ",
			expected: "soul",
			found:    true,
		},
		{
			name:     "mentions stripped from name",
			content:  "team name: alpha <@123456> <@!987654>",
			expected: "alpha",
			found:    true,
		},
		{
			name:    "no team name present",
			content: "we want to play",
			found:   false,
		},
		{
			name:    "empty after cleanup",
			content: "team name: <@123>",
			found:   false,
		},
		{
			name:     "long name truncated",
			content:  "team name: " + "abcdefghij" + "abcdefghij" + "abcdefghij" + "extra",
			expected: "abcdefghijabcdefghijabcdefghij",
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, found := ExtractTeamName(tt.content)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.expected, name)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "team soul", Normalize("ＴＥＡＭ ＳＯＵＬ"))
	assert.Equal(t, "alpha", Normalize("ALPHA"))
}

func TestCheckScrimOrdering(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	base := func() *domain.Scrim {
		return &domain.Scrim{
			ID:                    1,
			GuildID:               "guild-1",
			RegistrationChannelID: "chan-1",
			RoleID:                "role-elig",
			ModRoleID:             "role-mod",
			RequiredMentions:      1,
			OpenedAt:              &now,
		}
	}

	t.Run("not open is ignored silently", func(t *testing.T) {
		f := newFixture(t)
		scrim := base()
		scrim.OpenedAt = nil
		verdict, err := f.gate.CheckScrim(ctx, scrim, msg("m1", "chan-1", "u1", "team name: x", "u2"))
		require.NoError(t, err)
		assert.True(t, verdict.Ignore)
	})

	t.Run("closed is ignored silently", func(t *testing.T) {
		f := newFixture(t)
		scrim := base()
		scrim.ClosedAt = &now
		verdict, err := f.gate.CheckScrim(ctx, scrim, msg("m1", "chan-1", "u1", "team name: x", "u2"))
		require.NoError(t, err)
		assert.True(t, verdict.Ignore)
	})

	t.Run("bot author is ignored", func(t *testing.T) {
		f := newFixture(t)
		m := msg("m1", "chan-1", "u1", "team name: x", "u2")
		m.AuthorIsBot = true
		verdict, err := f.gate.CheckScrim(ctx, base(), m)
		require.NoError(t, err)
		assert.True(t, verdict.Ignore)
	})

	t.Run("moderator is ignored entirely", func(t *testing.T) {
		f := newFixture(t)
		m := msg("m1", "chan-1", "u1", "team name: x", "u2")
		m.AuthorRoleIDs = []string{"role-mod"}
		verdict, err := f.gate.CheckScrim(ctx, base(), m)
		require.NoError(t, err)
		assert.True(t, verdict.Ignore)
	})

	t.Run("not enough mentions is denied", func(t *testing.T) {
		f := newFixture(t)
		scrim := base()
		scrim.RequiredMentions = 2
		verdict, err := f.gate.CheckScrim(ctx, scrim, msg("m1", "chan-1", "u1", "team name: x", "u2"))
		require.NoError(t, err)
		assert.Equal(t, domain.DenyNotEnoughTags, verdict.Deny)
	})

	t.Run("bot mentions do not count", func(t *testing.T) {
		f := newFixture(t)
		m := msg("m1", "chan-1", "u1", "team name: x")
		m.Mentions = []platform.Mention{{UserID: "bot-1", Bot: true}}
		verdict, err := f.gate.CheckScrim(ctx, base(), m)
		require.NoError(t, err)
		assert.Equal(t, domain.DenyNotEnoughTags, verdict.Deny)
	})

	t.Run("team name compulsion", func(t *testing.T) {
		f := newFixture(t)
		scrim := base()
		scrim.TeamNameCompulsion = true
		verdict, err := f.gate.CheckScrim(ctx, scrim, msg("m1", "chan-1", "u1", "no name here", "u2"))
		require.NoError(t, err)
		assert.Equal(t, domain.DenyNoTeamName, verdict.Deny)
	})

	t.Run("missing team name falls back without compulsion", func(t *testing.T) {
		f := newFixture(t)
		verdict, err := f.gate.CheckScrim(ctx, base(), msg("m1", "chan-1", "u1", "no name here", "u2"))
		require.NoError(t, err)
		require.True(t, verdict.Accepted())
		assert.Equal(t, "u1's team", verdict.TeamName)
	})

	t.Run("second registration denied", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
			EventKind: domain.KindScrim, EventID: 1, Num: 1, LeaderID: "u1",
		}))
		verdict, err := f.gate.CheckScrim(ctx, base(), msg("m1", "chan-1", "u1", "team name: x", "u2"))
		require.NoError(t, err)
		assert.Equal(t, domain.DenyMultiRegister, verdict.Deny)
	})

	t.Run("multi register flag allows repeats", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.slots.Create(ctx, &domain.AssignedSlot{
			EventKind: domain.KindScrim, EventID: 1, Num: 1, LeaderID: "u1",
		}))
		scrim := base()
		scrim.MultiRegister = true
		verdict, err := f.gate.CheckScrim(ctx, scrim, msg("m1", "chan-1", "u1", "team name: x", "u2"))
		require.NoError(t, err)
		assert.True(t, verdict.Accepted())
	})

	t.Run("banned sender denied", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.bans.Create(ctx, &domain.BanRecord{
			ID: "ban-1", EventKind: domain.KindScrim, EventID: 1, GuildID: "guild-1", UserID: "u1",
		}))
		verdict, err := f.gate.CheckScrim(ctx, base(), msg("m1", "chan-1", "u1", "team name: x", "u2"))
		require.NoError(t, err)
		assert.Equal(t, domain.DenyBanned, verdict.Deny)
	})

	t.Run("accepted builds deduplicated claimant set", func(t *testing.T) {
		f := newFixture(t)
		m := msg("m1", "chan-1", "u1", "team name: phoenix", "u2", "u2", "u3")
		verdict, err := f.gate.CheckScrim(ctx, base(), m)
		require.NoError(t, err)
		require.True(t, verdict.Accepted())
		assert.Equal(t, []string{"u1", "u2", "u3"}, verdict.Members)
		assert.Equal(t, "phoenix", verdict.TeamName)
	})
}

func TestCheckTourney(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tourney := &domain.Tourney{
		ID:                    1,
		GuildID:               "guild-1",
		RegistrationChannelID: "chan-1",
		RoleID:                "role-elig",
		ModRoleID:             "role-mod",
		RequiredMentions:      1,
		TotalSlots:            16,
		StartedAt:             &now,
	}

	t.Run("not started is ignored", func(t *testing.T) {
		f := newFixture(t)
		idle := *tourney
		idle.StartedAt = nil
		verdict, err := f.gate.CheckTourney(ctx, &idle, msg("m1", "chan-1", "u1", "team name: x", "u2"))
		require.NoError(t, err)
		assert.True(t, verdict.Ignore)
	})

	t.Run("accepted", func(t *testing.T) {
		f := newFixture(t)
		verdict, err := f.gate.CheckTourney(ctx, tourney, msg("m1", "chan-1", "u1", "team name: alpha", "u2"))
		require.NoError(t, err)
		require.True(t, verdict.Accepted())
		assert.Equal(t, "alpha", verdict.TeamName)
	})
}
