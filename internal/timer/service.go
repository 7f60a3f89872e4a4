// Package timer provides durable, at-least-once scheduled callbacks.
//
// Timers are rows scanned by a polling worker. A row is deleted only after
// its handler returns without error, so a crash between delivery and delete
// redelivers the timer on the next scan; handlers must be idempotent.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"go.uber.org/zap"
)

// Handler consumes a delivered timer. Returning an error leaves the timer
// in place for redelivery on a later scan.
type Handler interface {
	HandleTimer(ctx context.Context, timer *domain.Timer) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, timer *domain.Timer) error

// HandleTimer calls the wrapped function.
func (f HandlerFunc) HandleTimer(ctx context.Context, timer *domain.Timer) error {
	return f(ctx, timer)
}

// ServiceConfig holds configuration for the timer delivery worker.
type ServiceConfig struct {
	ScanInterval time.Duration // how often the due-timer scan runs
	BatchSize    int           // max timers delivered per scan
}

// DefaultServiceConfig returns default timer service configuration.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		ScanInterval: 5 * time.Second,
		BatchSize:    100,
	}
}

// Service creates durable timers and delivers them when due.
type Service struct {
	repo    repository.TimerRepository
	handler Handler
	log     *logger.Logger
	config  *ServiceConfig

	mu             sync.Mutex
	running        bool
	stopChan       chan struct{}
	wg             sync.WaitGroup
	totalDelivered int64
	totalFailed    int64
	lastScanTime   time.Time
	lastBatchCount int
}

// ServiceStats reports delivery worker counters.
type ServiceStats struct {
	IsRunning      bool      `json:"is_running"`
	TotalDelivered int64     `json:"total_delivered"`
	TotalFailed    int64     `json:"total_failed"`
	LastScanTime   time.Time `json:"last_scan_time"`
	LastBatchCount int       `json:"last_batch_count"`
}

// NewService creates a new timer service.
func NewService(repo repository.TimerRepository, handler Handler, log *logger.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		repo:    repo,
		handler: handler,
		log:     log,
		config:  config,
	}
}

// CreateTimer persists a timer that fires at or after expiresAt.
func (s *Service) CreateTimer(ctx context.Context, expiresAt time.Time, kind domain.TimerKind, payload map[string]any) (*domain.Timer, error) {
	timer := &domain.Timer{
		ID:        uuid.New().String(),
		Kind:      kind,
		ExpiresAt: expiresAt,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, timer); err != nil {
		return nil, err
	}
	return timer, nil
}

// Start launches the delivery loop. It is a no-op if already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
	s.log.Info("timer service started",
		zap.Duration("scan_interval", s.config.ScanInterval),
		zap.Int("batch_size", s.config.BatchSize),
	)
}

// Stop halts the delivery loop and waits for the in-flight scan to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("timer service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce delivers one batch of due timers. Exported so tests and the
// boot-time catch-up path can drive delivery without the ticker.
func (s *Service) ScanOnce(ctx context.Context) {
	now := time.Now()
	timers, err := s.repo.ListExpired(ctx, now, s.config.BatchSize)
	if err != nil {
		s.log.Error("timer scan failed", zap.Error(err))
		return
	}

	delivered := 0
	for _, timer := range timers {
		if err := s.handler.HandleTimer(ctx, timer); err != nil {
			// Leave the row in place; it will be redelivered next scan.
			s.mu.Lock()
			s.totalFailed++
			s.mu.Unlock()
			s.log.Warn("timer handler failed, will redeliver",
				zap.String("timer_id", timer.ID),
				zap.String("kind", string(timer.Kind)),
				zap.Error(err),
			)
			continue
		}
		if err := s.repo.Delete(ctx, timer.ID); err != nil {
			// Handler succeeded but the delete did not; the duplicate
			// delivery this causes is absorbed by idempotent handlers.
			s.log.Warn("failed to delete delivered timer",
				zap.String("timer_id", timer.ID),
				zap.Error(err),
			)
		}
		delivered++
	}

	s.mu.Lock()
	s.totalDelivered += int64(delivered)
	s.lastScanTime = now
	s.lastBatchCount = delivered
	s.mu.Unlock()
}

// GetStats returns a snapshot of delivery counters.
func (s *Service) GetStats() *ServiceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &ServiceStats{
		IsRunning:      s.running,
		TotalDelivered: s.totalDelivered,
		TotalFailed:    s.totalFailed,
		LastScanTime:   s.lastScanTime,
		LastBatchCount: s.lastBatchCount,
	}
}
