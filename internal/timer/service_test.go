package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu        sync.Mutex
	delivered []*domain.Timer
	failNext  bool
}

func (h *recordingHandler) HandleTimer(ctx context.Context, timer *domain.Timer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failNext {
		h.failNext = false
		return errors.New("handler failed")
	}
	h.delivered = append(h.delivered, timer)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.delivered)
}

func TestCreateTimer(t *testing.T) {
	repo := repository.NewMemoryTimerRepository()
	svc := NewService(repo, &recordingHandler{}, nil, nil)

	expiresAt := time.Now().Add(time.Hour)
	timer, err := svc.CreateTimer(context.Background(), expiresAt, domain.TimerScrimOpen, map[string]any{"scrim_id": int64(7)})
	require.NoError(t, err)
	assert.NotEmpty(t, timer.ID)
	assert.Equal(t, domain.TimerScrimOpen, timer.Kind)
	assert.Equal(t, 1, repo.Pending())
}

func TestScanDeliversDueTimersOnly(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryTimerRepository()
	handler := &recordingHandler{}
	svc := NewService(repo, handler, nil, nil)

	_, err := svc.CreateTimer(ctx, time.Now().Add(-time.Minute), domain.TimerScrimOpen, map[string]any{"scrim_id": int64(1)})
	require.NoError(t, err)
	_, err = svc.CreateTimer(ctx, time.Now().Add(time.Hour), domain.TimerAutoclean, map[string]any{"scrim_id": int64(2)})
	require.NoError(t, err)

	svc.ScanOnce(ctx)

	assert.Equal(t, 1, handler.count())
	assert.Equal(t, 1, repo.Pending(), "future timer untouched")

	stats := svc.GetStats()
	assert.Equal(t, int64(1), stats.TotalDelivered)
	assert.Equal(t, int64(0), stats.TotalFailed)
}

func TestFailedHandlerLeavesTimerForRedelivery(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryTimerRepository()
	handler := &recordingHandler{failNext: true}
	svc := NewService(repo, handler, nil, nil)

	_, err := svc.CreateTimer(ctx, time.Now().Add(-time.Minute), domain.TimerBanExpiry, map[string]any{"user_id": "u1"})
	require.NoError(t, err)

	svc.ScanOnce(ctx)
	assert.Equal(t, 0, handler.count())
	assert.Equal(t, 1, repo.Pending(), "row stays for redelivery")
	assert.Equal(t, int64(1), svc.GetStats().TotalFailed)

	// Next scan redelivers and the row is gone only after success.
	svc.ScanOnce(ctx)
	assert.Equal(t, 1, handler.count())
	assert.Equal(t, 0, repo.Pending())
}

func TestStartStop(t *testing.T) {
	repo := repository.NewMemoryTimerRepository()
	svc := NewService(repo, &recordingHandler{}, nil, &ServiceConfig{
		ScanInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	assert.True(t, svc.GetStats().IsRunning)
	svc.Start(ctx) // second start is a no-op

	_, err := svc.CreateTimer(ctx, time.Now().Add(-time.Second), domain.TimerScrimOpen, map[string]any{"scrim_id": int64(1)})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return repo.Pending() == 0
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	assert.False(t, svc.GetStats().IsRunning)
	svc.Stop() // second stop is a no-op
}
