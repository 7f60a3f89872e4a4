package service

import (
	"context"
	"sync"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
)

// LogEntry is one lifecycle transition published to audit consumers.
type LogEntry struct {
	Kind      domain.LogKind `json:"kind"`
	EventKind domain.EventKind
	EventID   int64
	GuildID   string
	ChannelID string
	UserID    string
	Reason    string
	Fields    map[string]any
	At        time.Time
}

// LogConsumer receives dispatched log entries. Consumers must not block for
// long; dispatch is synchronous on the transition's own task.
type LogConsumer func(ctx context.Context, entry *LogEntry)

// Dispatcher fans lifecycle log entries out to subscribed consumers.
// It carries no business logic of its own; the engine stays correct with
// zero subscribers.
type Dispatcher struct {
	mu        sync.RWMutex
	consumers []LogConsumer
	log       *logger.Logger
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Get()
	}
	return &Dispatcher{log: log}
}

// Subscribe registers a consumer for all future dispatches.
func (d *Dispatcher) Subscribe(fn LogConsumer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, fn)
}

// Dispatch delivers an entry to every subscriber.
func (d *Dispatcher) Dispatch(ctx context.Context, entry *LogEntry) {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	d.mu.RLock()
	consumers := make([]LogConsumer, len(d.consumers))
	copy(consumers, d.consumers)
	d.mu.RUnlock()

	for _, fn := range consumers {
		fn(ctx, entry)
	}
}
