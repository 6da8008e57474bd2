package domain

import "time"

// EventType identifies the category of an emitted telemetry event.
type EventType string

const (
	EventTypeView     EventType = "view"
	EventTypeAction   EventType = "action"
	EventTypeResource EventType = "resource"
	EventTypeError    EventType = "error"
	EventTypeLongTask EventType = "long_task"
)

// Event is a built telemetry event handed to the sink.
type Event interface {
	EventType() EventType
	// Common exposes the fields shared by every event so mappers can
	// rewrite them in place.
	Common() *EventCommon
	// ViewID returns the id of the view the event belongs to.
	ViewID() string
}

// EventCommon holds the fields every event carries.
type EventCommon struct {
	Date        time.Time      `json:"date"`
	Application ApplicationRef `json:"application"`
	Session     SessionRef     `json:"session"`
	Service     string         `json:"service,omitempty"`
	Version     string         `json:"version,omitempty"`
	Source      string         `json:"source,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Internal    EventInternal  `json:"_dd"`
}

// ApplicationRef identifies the monitored application.
type ApplicationRef struct {
	ID string `json:"id"`
}

// SessionRef identifies the session an event belongs to.
type SessionRef struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// ViewRef identifies the view an event belongs to.
type ViewRef struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// ActionRef links an event to the user action that was active.
type ActionRef struct {
	ID string `json:"id"`
}

// EventInternal carries SDK bookkeeping.
type EventInternal struct {
	FormatVersion       int                 `json:"format_version"`
	DocumentVersion     int64               `json:"document_version,omitempty"`
	SessionPrecondition SessionPrecondition `json:"session_precondition,omitempty"`
}

// Count wraps a counter so the serialized form matches the RUM schema.
type Count struct {
	Count int64 `json:"count"`
}

// ViewEvent is a versioned snapshot of one view.
type ViewEvent struct {
	EventCommon
	View         ViewDetails    `json:"view"`
	FeatureFlags map[string]any `json:"feature_flags,omitempty"`
}

// ViewDetails is the view payload of a ViewEvent.
type ViewDetails struct {
	ID                        string           `json:"id"`
	URL                       string           `json:"url"`
	Name                      string           `json:"name,omitempty"`
	TimeSpent                 int64            `json:"time_spent"`
	IsActive                  bool             `json:"is_active"`
	Action                    Count            `json:"action"`
	Error                     Count            `json:"error"`
	Resource                  Count            `json:"resource"`
	LongTask                  Count            `json:"long_task"`
	FrozenFrame               Count            `json:"frozen_frame"`
	Frustration               Count            `json:"frustration"`
	CustomTimings             map[string]int64 `json:"custom_timings,omitempty"`
	NetworkSettledTime        *int64           `json:"network_settled_time,omitempty"`
	InteractionToNextViewTime *int64           `json:"interaction_to_next_view_time,omitempty"`
	SlowFrames                []SlowFrame      `json:"slow_frames,omitempty"`
	SlowFramesRate            *float64         `json:"slow_frames_rate,omitempty"`
	FreezeRate                *float64         `json:"freeze_rate,omitempty"`
	InternalAttributes        map[string]any   `json:"internal_attributes,omitempty"`
}

// SlowFrame is a hitch relative to the view start.
type SlowFrame struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

func (e *ViewEvent) EventType() EventType { return EventTypeView }
func (e *ViewEvent) Common() *EventCommon { return &e.EventCommon }
func (e *ViewEvent) ViewID() string { return e.View.ID }

// ActionEvent is the terminal event of a user action.
type ActionEvent struct {
	EventCommon
	View   ViewRef       `json:"view"`
	Action ActionDetails `json:"action"`
}

// ActionDetails is the action payload of an ActionEvent.
type ActionDetails struct {
	ID          string             `json:"id"`
	Type        ActionType         `json:"type"`
	Target      ActionTarget       `json:"target"`
	LoadingTime *int64             `json:"loading_time,omitempty"`
	Resource    Count              `json:"resource"`
	Error       Count              `json:"error"`
	LongTask    Count              `json:"long_task"`
	Frustration *ActionFrustration `json:"frustration,omitempty"`
}

// ActionTarget names the element the user interacted with.
type ActionTarget struct {
	Name string `json:"name"`
}

// ActionFrustration lists the frustration signals of an action.
type ActionFrustration struct {
	Type []FrustrationType `json:"type"`
}

func (e *ActionEvent) EventType() EventType { return EventTypeAction }
func (e *ActionEvent) Common() *EventCommon { return &e.EventCommon }
func (e *ActionEvent) ViewID() string { return e.View.ID }

// ResourceEvent is the terminal event of a successful resource.
type ResourceEvent struct {
	EventCommon
	View     ViewRef         `json:"view"`
	Action   *ActionRef      `json:"action,omitempty"`
	Resource ResourceDetails `json:"resource"`
}

// ResourceDetails is the resource payload of a ResourceEvent.
type ResourceDetails struct {
	ID         string       `json:"id"`
	Type       ResourceType `json:"type"`
	URL        string       `json:"url"`
	Method     string       `json:"method,omitempty"`
	StatusCode *int         `json:"status_code,omitempty"`
	Size       *int64       `json:"size,omitempty"`
	Duration   int64        `json:"duration"`
	DNS        *PhaseTiming `json:"dns,omitempty"`
	Connect    *PhaseTiming `json:"connect,omitempty"`
	SSL        *PhaseTiming `json:"ssl,omitempty"`
	FirstByte  *PhaseTiming `json:"first_byte,omitempty"`
	Download   *PhaseTiming `json:"download,omitempty"`
}

// PhaseTiming is a request phase relative to the fetch start, in nanoseconds.
type PhaseTiming struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

func (e *ResourceEvent) EventType() EventType { return EventTypeResource }
func (e *ResourceEvent) Common() *EventCommon { return &e.EventCommon }
func (e *ResourceEvent) ViewID() string { return e.View.ID }

// ErrorEvent reports a view error, a failed resource or an app hang.
type ErrorEvent struct {
	EventCommon
	View   ViewRef      `json:"view"`
	Action *ActionRef   `json:"action,omitempty"`
	Error  ErrorDetails `json:"error"`
}

// ErrorDetails is the error payload of an ErrorEvent.
type ErrorDetails struct {
	ID       string         `json:"id"`
	Message  string         `json:"message"`
	Type     string         `json:"type,omitempty"`
	Source   ErrorSource    `json:"source"`
	Stack    string         `json:"stack,omitempty"`
	IsCrash  bool           `json:"is_crash"`
	Category ErrorCategory  `json:"category,omitempty"`
	Resource *ErrorResource `json:"resource,omitempty"`
	Freeze   *ErrorFreeze   `json:"freeze,omitempty"`
}

// ErrorResource describes the failed request of a network error.
type ErrorResource struct {
	URL        string `json:"url"`
	Method     string `json:"method,omitempty"`
	StatusCode int    `json:"status_code"`
}

// ErrorFreeze is the hang duration of an app hang, in nanoseconds.
type ErrorFreeze struct {
	Duration int64 `json:"duration"`
}

func (e *ErrorEvent) EventType() EventType { return EventTypeError }
func (e *ErrorEvent) Common() *EventCommon { return &e.EventCommon }
func (e *ErrorEvent) ViewID() string { return e.View.ID }

// LongTaskEvent reports a long task on the view.
type LongTaskEvent struct {
	EventCommon
	View     ViewRef         `json:"view"`
	Action   *ActionRef      `json:"action,omitempty"`
	LongTask LongTaskDetails `json:"long_task"`
}

// LongTaskDetails is the payload of a LongTaskEvent.
type LongTaskDetails struct {
	ID            string `json:"id"`
	Duration      int64  `json:"duration"`
	IsFrozenFrame bool   `json:"is_frozen_frame"`
}

func (e *LongTaskEvent) EventType() EventType { return EventTypeLongTask }
func (e *LongTaskEvent) Common() *EventCommon { return &e.EventCommon }
func (e *LongTaskEvent) ViewID() string { return e.View.ID }
