package service

import (
	"context"
	"testing"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseScrimIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1, 2}, 2)

	require.NoError(t, f.closer.CloseScrim(ctx, scrim.ID))
	require.NoError(t, f.closer.CloseScrim(ctx, scrim.ID))

	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed())
	assert.Nil(t, stored.OpenedAt)

	assert.Equal(t, 1, f.chat.ToggleCount(), "second close is a no-op")
	assert.False(t, f.chat.Toggles[0].Open)
	assert.Equal(t, 1, f.chat.MessageCount())
	assert.Len(t, f.logEntries(domain.LogClosed), 1)
	assert.False(t, f.active.Contains(domain.KindScrim, scrim.RegistrationChannelID))
}

func TestCloseMissingScrimIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.closer.CloseScrim(ctx, 404))
	assert.Zero(t, f.chat.ToggleCount())
}

func TestCloseTourneyClearsStarted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tourney := f.seedTourney(t, 4)

	require.NoError(t, f.closer.CloseTourney(ctx, tourney.ID))

	stored, err := f.tourneys.GetByID(ctx, tourney.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed())
	assert.Nil(t, stored.StartedAt)
	assert.False(t, f.active.Contains(domain.KindTourney, tourney.RegistrationChannelID))

	closed := f.logEntries(domain.LogClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, domain.KindTourney, closed[0].EventKind)
	assert.Equal(t, true, closed[0].Fields["permission_updated"])
}

func TestCloseSurvivesChatFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scrim := f.seedScrim(t, []int{1}, 1)
	f.chat.ShouldFail = true

	require.NoError(t, f.closer.CloseScrim(ctx, scrim.ID))

	stored, err := f.scrims.GetByID(ctx, scrim.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed(), "state flips even when the platform call fails")

	closed := f.logEntries(domain.LogClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, false, closed[0].Fields["permission_updated"])
}
