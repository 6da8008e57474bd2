package scope

import (
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

// UserActionScope tracks one pending user action. Discrete actions close
// once the discrete timeout elapsed; continuous actions close on a matching
// StopUserAction or once the maximum duration elapsed. Both are evaluated
// against command timestamps.
type UserActionScope struct {
	view *ViewScope

	id              domain.RUMUUID
	actionType      domain.ActionType
	name            string
	instrumentation domain.Instrumentation
	continuous      bool
	startTime       time.Time
	attributes      map[string]any

	resourceKeys  map[string]struct{}
	resourceCount int64
	errorCount    int64
	longTaskCount int64
}

func newUserActionScope(view *ViewScope, at time.Time, actionType domain.ActionType, name string, instrumentation domain.Instrumentation, continuous bool, attributes map[string]any) *UserActionScope {
	return &UserActionScope{
		view:            view,
		id:              view.deps.UUIDs.NewUUID(),
		actionType:      actionType,
		name:            name,
		instrumentation: instrumentation,
		continuous:      continuous,
		startTime:       at,
		attributes:      attributes,
		resourceKeys:    make(map[string]struct{}),
	}
}

// ID returns the action identifier.
func (a *UserActionScope) ID() domain.RUMUUID { return a.id }

func (a *UserActionScope) limit() time.Duration {
	if a.continuous {
		return a.view.deps.Settings.ContinuousActionMaxDuration
	}
	return a.view.deps.Settings.DiscreteActionTimeout
}

// Process closes the action on timeout or on a matching StopUserAction.
// It returns false once the action event was produced.
func (a *UserActionScope) Process(cmd domain.Command, sdk domain.SDKContext) bool {
	if !a.tick(cmd.CommandTime(), sdk) {
		return false
	}

	stop, ok := cmd.(domain.StopUserAction)
	if !ok || !a.continuous || stop.ActionType != a.actionType {
		return true
	}
	if stop.ActionName != "" {
		a.name = stop.ActionName
	}
	a.attributes = mergeAttributes(a.attributes, stop.Attributes)
	a.close(stop.Time, sdk)
	return false
}

// tick closes the action if its deadline passed at the given time.
func (a *UserActionScope) tick(at time.Time, sdk domain.SDKContext) bool {
	deadline := a.startTime.Add(a.limit())
	if at.Before(deadline) {
		return true
	}
	a.close(deadline, sdk)
	return false
}

func (a *UserActionScope) attachResource(key string) {
	a.resourceKeys[key] = struct{}{}
}

// resourceCompleted counts a kept resource or resource error started while
// the action was open.
func (a *UserActionScope) resourceCompleted(key string, isError bool) {
	if _, ok := a.resourceKeys[key]; !ok {
		return
	}
	delete(a.resourceKeys, key)
	if isError {
		a.errorCount++
	} else {
		a.resourceCount++
	}
}

func (a *UserActionScope) errorAdded() { a.errorCount++ }
func (a *UserActionScope) longTaskAdded() { a.longTaskCount++ }

func (a *UserActionScope) close(at time.Time, sdk domain.SDKContext) {
	loadingTime := at.Sub(a.startTime)
	if limit := a.limit(); loadingTime > limit {
		loadingTime = limit
	}
	loadingTime = positiveDuration(loadingTime)

	var frustration *domain.ActionFrustration
	if a.view.deps.Settings.FrustrationsTracking && a.actionType == domain.ActionTypeTap && a.errorCount > 0 {
		frustration = &domain.ActionFrustration{Type: []domain.FrustrationType{domain.FrustrationErrorTap}}
	}

	lt := nanos(loadingTime)
	event := &domain.ActionEvent{
		EventCommon: a.view.eventCommon(a.startTime, a.attributes, sdk),
		View:        a.view.ref(),
		Action: domain.ActionDetails{
			ID:          a.id.String(),
			Type:        a.actionType,
			Target:      domain.ActionTarget{Name: a.name},
			LoadingTime: &lt,
			Resource:    domain.Count{Count: a.resourceCount},
			Error:       domain.Count{Count: a.errorCount},
			LongTask:    domain.Count{Count: a.longTaskCount},
			Frustration: frustration,
		},
	}

	a.view.writeAction(event, a.startTime, a.startTime.Add(loadingTime))
}
