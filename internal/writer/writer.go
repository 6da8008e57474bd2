// Package writer implements the event sink handed to the scope tree: it runs
// the event mapper and forwards kept events to a publisher.
package writer

import (
	"context"
	"log/slog"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/telemetry"
)

// Writer implements ports.EventWriter.
type Writer struct {
	mapper    ports.EventMapper
	publisher ports.EventPublisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

var _ ports.EventWriter = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithMapper sets the event mapper. Without one every event is kept.
func WithMapper(m ports.EventMapper) Option {
	return func(w *Writer) { w.mapper = m }
}

// WithPublisher sets where kept events go. Without one kept events are
// counted and discarded.
func WithPublisher(p ports.EventPublisher) Option {
	return func(w *Writer) { w.publisher = p }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// New creates a writer.
func New(opts ...Option) *Writer {
	w := &Writer{logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write maps and publishes one event and reports whether it was kept.
// View events are never dropped so that document versions stay contiguous.
// Publishing failures are logged; the event still counts as kept since the
// scope tree already accounted for it.
func (w *Writer) Write(event domain.Event) bool {
	ctx := context.Background()
	eventType := string(event.EventType())

	if w.mapper != nil {
		mapped, ok := w.mapper.Map(ctx, event)
		switch {
		case ok:
			event = mapped
		case event.EventType() == domain.EventTypeView:
			w.logger.Warn("view events cannot be dropped, keeping original",
				slog.String("view_id", event.ViewID()))
		default:
			w.metrics.EventDropped(eventType, "mapper")
			return false
		}
	}

	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, event); err != nil {
			w.metrics.EventDropped(eventType, "publish")
			w.logger.Error("failed to publish event",
				slog.String("event_type", eventType),
				slog.String("view_id", event.ViewID()),
				slog.String("error", err.Error()))
			return true
		}
	}

	w.metrics.EventWritten(eventType)
	return true
}
