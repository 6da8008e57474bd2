package scope

import (
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

// ResourceScope tracks one in-flight network resource until its stop command.
type ResourceScope struct {
	view *ViewScope

	id         domain.RUMUUID
	key        string
	url        string
	method     string
	kindHint   domain.ResourceType
	startTime  time.Time
	attributes map[string]any
	// actionID is the user action pending when the resource started.
	actionID *domain.RUMUUID
	metrics  *domain.ResourceMetrics
}

func newResourceScope(view *ViewScope, cmd domain.StartResource, actionID *domain.RUMUUID) *ResourceScope {
	return &ResourceScope{
		view:       view,
		id:         view.deps.UUIDs.NewUUID(),
		key:        cmd.Key,
		url:        cmd.URL,
		method:     cmd.Method,
		kindHint:   cmd.KindHint,
		startTime:  cmd.Time,
		attributes: cmd.Attributes,
		actionID:   actionID,
	}
}

// ID returns the resource identifier.
func (r *ResourceScope) ID() domain.RUMUUID { return r.id }

// Process handles metrics and stop commands for this resource's key.
// It returns false once the terminal event was produced.
func (r *ResourceScope) Process(cmd domain.Command, sdk domain.SDKContext) bool {
	switch c := cmd.(type) {
	case domain.AddResourceMetrics:
		metrics := c.Metrics
		r.metrics = &metrics
		return true
	case domain.StopResource:
		r.stop(c, sdk)
		return false
	case domain.StopResourceWithError:
		r.stopWithError(c, sdk)
		return false
	}
	return true
}

func (r *ResourceScope) duration(stop time.Time) time.Duration {
	if r.metrics != nil {
		if d := r.metrics.Fetch.Duration(); d > 0 {
			return d
		}
	}
	return positiveDuration(stop.Sub(r.startTime))
}

func (r *ResourceScope) kind(stopKind domain.ResourceType) domain.ResourceType {
	switch {
	case r.kindHint != "":
		return r.kindHint
	case stopKind != "":
		return stopKind
	default:
		return domain.ResourceTypeOther
	}
}

func (r *ResourceScope) actionRef() *domain.ActionRef {
	if r.actionID == nil {
		return nil
	}
	return &domain.ActionRef{ID: r.actionID.String()}
}

func (r *ResourceScope) stop(cmd domain.StopResource, sdk domain.SDKContext) {
	duration := r.duration(cmd.Time)

	details := domain.ResourceDetails{
		ID:       r.id.String(),
		Type:     r.kind(cmd.Kind),
		URL:      r.url,
		Method:   r.method,
		Duration: nanos(duration),
		Size:     cmd.Size,
	}
	if cmd.StatusCode != 0 {
		code := cmd.StatusCode
		details.StatusCode = &code
	}
	if r.metrics != nil {
		fetchStart := r.metrics.Fetch.Start
		details.DNS = phase(fetchStart, r.metrics.DNS)
		details.Connect = phase(fetchStart, r.metrics.Connect)
		details.SSL = phase(fetchStart, r.metrics.SSL)
		details.FirstByte = phase(fetchStart, r.metrics.FirstByte)
		details.Download = phase(fetchStart, r.metrics.Download)
		if details.Size == nil {
			details.Size = r.metrics.ResponseSize
		}
	}

	event := &domain.ResourceEvent{
		EventCommon: r.view.eventCommon(r.startTime, mergeAttributes(r.attributes, cmd.Attributes), sdk),
		View:        r.view.ref(),
		Action:      r.actionRef(),
		Resource:    details,
	}

	r.complete(cmd.Time, duration, event, false)
}

func (r *ResourceScope) stopWithError(cmd domain.StopResourceWithError, sdk domain.SDKContext) {
	source := cmd.Source
	if source == "" {
		source = domain.ErrorSourceNetwork
	}

	event := &domain.ErrorEvent{
		EventCommon: r.view.eventCommon(cmd.Time, mergeAttributes(r.attributes, cmd.Attributes), sdk),
		View:        r.view.ref(),
		Action:      r.actionRef(),
		Error: domain.ErrorDetails{
			ID:       r.view.deps.UUIDs.NewUUID().String(),
			Message:  cmd.ErrorMessage,
			Type:     cmd.ErrorType,
			Source:   source,
			Stack:    cmd.Stack,
			Category: domain.ErrorCategoryException,
			Resource: &domain.ErrorResource{
				URL:        r.url,
				Method:     r.method,
				StatusCode: cmd.StatusCode,
			},
		},
	}

	r.complete(cmd.Time, r.duration(cmd.Time), event, true)
}

func (r *ResourceScope) complete(at time.Time, duration time.Duration, event domain.Event, isError bool) {
	if r.view.writeResourceEvent(r.key, event, isError) {
		r.view.tns.TrackResourceEnd(at, r.id, duration)
	} else {
		r.view.tns.TrackResourceDropped(r.id)
	}
}

func phase(fetchStart time.Time, tr *domain.TimeRange) *domain.PhaseTiming {
	if tr == nil {
		return nil
	}
	return &domain.PhaseTiming{
		Start:    nanos(tr.Start.Sub(fetchStart)),
		Duration: nanos(tr.Duration()),
	}
}
