// Package ports defines the interfaces between the RUM core and the
// collaborators it is wired to.
package ports

import (
	"context"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based (default), static.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// EventWriter receives built events from the scope tree.
// Write is synchronous and must not block; it reports whether the event was
// kept. A false return means the event was dropped by the sink and the caller
// must roll back any counter it incremented for it.
type EventWriter interface {
	Write(event domain.Event) bool
}

// EventPublisher hands kept events to their destination.
// Implementations: direct storage (default), async queue.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}

// Sampler makes accept/reject decisions.
// Implementations: probability based, identity based (stable hash of seed).
type Sampler interface {
	// Sample decides for the given seed. Probability samplers ignore it.
	Sample(seed string) bool
	// Rate returns the configured sample rate in [0, 100].
	Rate() float64
}

// UUIDGenerator produces scope identifiers.
type UUIDGenerator interface {
	NewUUID() domain.RUMUUID
}

// TNSMetricFactory creates a Time-to-Network-Settled tracker for a new view.
type TNSMetricFactory func(viewStart time.Time, viewName string) TNSMetricTracker

// TNSMetricTracker computes the time it takes for the initial resources of a
// view to settle.
type TNSMetricTracker interface {
	TrackResourceStart(at time.Time, resourceID domain.RUMUUID, resourceURL string)
	TrackResourceEnd(at time.Time, resourceID domain.RUMUUID, resourceDuration time.Duration)
	TrackResourceDropped(resourceID domain.RUMUUID)
	TrackViewWasStopped()
	// Value returns the settled time, or false when not (yet) available.
	Value(at time.Time, appState domain.ApplicationState) (time.Duration, bool)
}

// INVMetricTracker computes Interaction-to-Next-View across views.
type INVMetricTracker interface {
	TrackAction(start, end time.Time, actionName string, actionType domain.ActionType, viewID domain.RUMUUID)
	TrackViewStart(at time.Time, viewName string, viewID domain.RUMUUID)
	TrackViewComplete(viewID domain.RUMUUID)
	// Value returns INV for the view, or false when not available.
	Value(viewID domain.RUMUUID) (time.Duration, bool)
}

// ViewHitchesFactory creates a hitches tracker for a new view.
type ViewHitchesFactory func() ViewHitchesTracker

// ViewHitchesTracker collects slow frames while a view is visible.
type ViewHitchesTracker interface {
	Start(at time.Time)
	Stop(at time.Time)
	Snapshot() domain.HitchesSnapshot
}
