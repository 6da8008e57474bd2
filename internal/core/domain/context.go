package domain

import "time"

// ScopeContext is the read-only snapshot a scope exposes to its children and
// to the host. It is recomputed on every read.
type ScopeContext struct {
	ApplicationID       string              `json:"application_id"`
	SessionID           RUMUUID             `json:"session_id"`
	IsSessionActive     bool                `json:"is_session_active"`
	SessionPrecondition SessionPrecondition `json:"session_precondition,omitempty"`
	ActiveViewID        *RUMUUID            `json:"active_view_id,omitempty"`
	ActiveViewPath      string              `json:"active_view_path,omitempty"`
	ActiveViewName      string              `json:"active_view_name,omitempty"`
	ActiveUserActionID  *RUMUUID            `json:"active_user_action_id,omitempty"`
}

// SDKContext describes the host environment at the time a command is processed.
type SDKContext struct {
	Service          string
	Version          string
	Source           string
	ApplicationState ApplicationState
	// LaunchTime is the measured application launch duration, zero when unknown.
	LaunchTime time.Duration
}

// IsBackgrounded reports whether the host application is in background.
func (c SDKContext) IsBackgrounded() bool {
	return c.ApplicationState == ApplicationStateBackground
}

// TimeRange is a phase of a network request.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the phase length, never negative.
func (r TimeRange) Duration() time.Duration {
	if d := r.End.Sub(r.Start); d > 0 {
		return d
	}
	return 0
}

// ResourceMetrics holds precise network timings captured by the platform.
type ResourceMetrics struct {
	Fetch        TimeRange
	DNS          *TimeRange
	Connect      *TimeRange
	SSL          *TimeRange
	FirstByte    *TimeRange
	Download     *TimeRange
	ResponseSize *int64
}

// Hitch is a single slow frame.
type Hitch struct {
	Start    time.Time
	Duration time.Duration
}

// HitchesSnapshot is what a view hitches tracker reports for one view.
type HitchesSnapshot struct {
	Hitches       []Hitch
	TotalDuration time.Duration
}
