// Package async provides an event publisher that hands events to a background
// worker through a bounded queue.
package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// Publisher decouples the RUM processing goroutine from storage latency.
// Publish never blocks: when the queue is full the event is discarded.
type Publisher struct {
	next   ports.EventPublisher
	queue  chan domain.Event
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher starts the worker that forwards queued events to next.
func NewPublisher(next ports.EventPublisher, size int, logger *slog.Logger) (*Publisher, error) {
	if next == nil {
		return nil, fmt.Errorf("downstream publisher required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", size)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		next:   next,
		queue:  make(chan domain.Event, size),
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.run()
	return p, nil
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.next.Publish(context.Background(), event); err != nil {
			p.logger.Error("failed to publish event",
				slog.String("event_type", string(event.EventType())),
				slog.String("error", err.Error()))
		}
	}
}

// Publish enqueues the event.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return domain.ErrMonitorStopped
	}

	select {
	case p.queue <- event:
		return nil
	default:
		p.dropped.Add(1)
		p.logger.Warn("event queue full, dropping event",
			slog.String("event_type", string(event.EventType())),
			slog.String("view_id", event.ViewID()))
		return domain.ErrQueueFull
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close drains the queue and closes the downstream publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}
