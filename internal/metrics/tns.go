package metrics

import (
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// DefaultTNSInitialResourceThreshold is how long after view start a resource
// may start and still count as initial.
const DefaultTNSInitialResourceThreshold = 100 * time.Millisecond

type tnsResource struct {
	start time.Time
	end   time.Time
	done  bool
}

// TNSTracker computes Time-to-Network-Settled for one view. It is owned by a
// single view scope and is not safe for concurrent use.
type TNSTracker struct {
	viewStart time.Time
	threshold time.Duration

	resources   map[domain.RUMUUID]*tnsResource
	viewStopped bool
	invalid     bool
}

var _ ports.TNSMetricTracker = (*TNSTracker)(nil)

func NewTNSTracker(viewStart time.Time, threshold time.Duration) *TNSTracker {
	return &TNSTracker{
		viewStart: viewStart,
		threshold: threshold,
		resources: make(map[domain.RUMUUID]*tnsResource),
	}
}

// NewTNSFactory returns a factory creating one tracker per view.
func NewTNSFactory(threshold time.Duration) ports.TNSMetricFactory {
	if threshold <= 0 {
		threshold = DefaultTNSInitialResourceThreshold
	}
	return func(viewStart time.Time, _ string) ports.TNSMetricTracker {
		return NewTNSTracker(viewStart, threshold)
	}
}

func (t *TNSTracker) TrackResourceStart(at time.Time, resourceID domain.RUMUUID, _ string) {
	if t.viewStopped {
		return
	}
	if offset := at.Sub(t.viewStart); offset < 0 || offset > t.threshold {
		return
	}
	t.resources[resourceID] = &tnsResource{start: at}
}

func (t *TNSTracker) TrackResourceEnd(at time.Time, resourceID domain.RUMUUID, resourceDuration time.Duration) {
	r, ok := t.resources[resourceID]
	if !ok {
		return
	}
	r.end = at
	if resourceDuration > 0 {
		r.end = r.start.Add(resourceDuration)
	}
	r.done = true
}

// TrackResourceDropped invalidates the metric when an initial resource was
// dropped since its completion time is unknown.
func (t *TNSTracker) TrackResourceDropped(resourceID domain.RUMUUID) {
	if _, ok := t.resources[resourceID]; ok {
		t.invalid = true
	}
}

func (t *TNSTracker) TrackViewWasStopped() {
	t.viewStopped = true
}

// Value returns the settled time once every initial resource completed.
// Views in background do not report it.
func (t *TNSTracker) Value(_ time.Time, appState domain.ApplicationState) (time.Duration, bool) {
	if t.invalid || len(t.resources) == 0 || appState == domain.ApplicationStateBackground {
		return 0, false
	}

	var settled time.Time
	for _, r := range t.resources {
		if !r.done {
			return 0, false
		}
		if r.end.After(settled) {
			settled = r.end
		}
	}

	if d := settled.Sub(t.viewStart); d > 0 {
		return d, true
	}
	return 0, false
}
