package metrics

import (
	"sync"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// DefaultINVMaxDuration is the longest interaction-to-next-view accepted.
const DefaultINVMaxDuration = 3 * time.Second

type invAction struct {
	at     time.Time
	viewID domain.RUMUUID
}

// INVTracker computes Interaction-to-Next-View. One tracker is shared by all
// views of the application.
type INVTracker struct {
	maxDuration time.Duration

	mu         sync.Mutex
	lastAction *invAction
	values     map[domain.RUMUUID]time.Duration
}

var _ ports.INVMetricTracker = (*INVTracker)(nil)

func NewINVTracker(maxDuration time.Duration) *INVTracker {
	if maxDuration <= 0 {
		maxDuration = DefaultINVMaxDuration
	}
	return &INVTracker{
		maxDuration: maxDuration,
		values:      make(map[domain.RUMUUID]time.Duration),
	}
}

// TrackAction records a qualifying action. Taps and clicks are measured from
// their start, swipes from their end.
func (t *INVTracker) TrackAction(start, end time.Time, _ string, actionType domain.ActionType, viewID domain.RUMUUID) {
	var at time.Time
	switch actionType {
	case domain.ActionTypeTap, domain.ActionTypeClick:
		at = start
	case domain.ActionTypeSwipe:
		at = end
	default:
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastAction == nil || !at.Before(t.lastAction.at) {
		t.lastAction = &invAction{at: at, viewID: viewID}
	}
}

func (t *INVTracker) TrackViewStart(at time.Time, _ string, viewID domain.RUMUUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last := t.lastAction
	if last == nil || last.viewID == viewID {
		return
	}
	if d := at.Sub(last.at); d >= 0 && d <= t.maxDuration {
		t.values[viewID] = d
	}
}

func (t *INVTracker) TrackViewComplete(viewID domain.RUMUUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.values, viewID)
}

func (t *INVTracker) Value(viewID domain.RUMUUID) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.values[viewID]
	return d, ok
}
