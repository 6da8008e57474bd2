package metrics

import (
	"sync"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// HitchesMonitor receives slow frames from the host frame observer and fans
// them out to the trackers of the views visible at that time. It is safe for
// concurrent use: hitches are recorded from the host's render goroutine while
// views read snapshots on the processing goroutine.
type HitchesMonitor struct {
	mu       sync.Mutex
	trackers map[*HitchesTracker]struct{}
}

func NewHitchesMonitor() *HitchesMonitor {
	return &HitchesMonitor{trackers: make(map[*HitchesTracker]struct{})}
}

// Factory returns a view hitches factory bound to this monitor.
func (m *HitchesMonitor) Factory() ports.ViewHitchesFactory {
	return func() ports.ViewHitchesTracker {
		return &HitchesTracker{monitor: m}
	}
}

// RecordHitch reports a slow frame that started at start.
func (m *HitchesMonitor) RecordHitch(start time.Time, duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for tr := range m.trackers {
		if start.Before(tr.start) {
			continue
		}
		tr.hitches = append(tr.hitches, domain.Hitch{Start: start, Duration: duration})
		tr.total += duration
	}
}

// HitchesTracker collects the hitches of one view between Start and Stop.
type HitchesTracker struct {
	monitor *HitchesMonitor
	start   time.Time
	hitches []domain.Hitch
	total   time.Duration
}

var _ ports.ViewHitchesTracker = (*HitchesTracker)(nil)

func (t *HitchesTracker) Start(at time.Time) {
	t.monitor.mu.Lock()
	defer t.monitor.mu.Unlock()
	t.start = at
	t.monitor.trackers[t] = struct{}{}
}

func (t *HitchesTracker) Stop(time.Time) {
	t.monitor.mu.Lock()
	defer t.monitor.mu.Unlock()
	delete(t.monitor.trackers, t)
}

func (t *HitchesTracker) Snapshot() domain.HitchesSnapshot {
	t.monitor.mu.Lock()
	defer t.monitor.mu.Unlock()
	return domain.HitchesSnapshot{
		Hitches:       append([]domain.Hitch(nil), t.hitches...),
		TotalDuration: t.total,
	}
}
