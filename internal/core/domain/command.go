package domain

import (
	"fmt"
	"time"
)

// Command is a single timestamped occurrence submitted to the RUM core.
// The set of implementations is closed: scopes dispatch on the concrete type
// with a type switch.
type Command interface {
	// CommandName is the stable identifier used in logs and the wire codec.
	CommandName() string
	CommandTime() time.Time
	CommandAttributes() map[string]any

	// IsUserInteraction reports whether the command refreshes session activity
	// and may restart a stopped session.
	IsUserInteraction() bool
	// CanStartSession reports whether the command may create a session.
	CanStartSession() bool
	// CanStartBackgroundView reports whether the command may create the
	// synthetic background view.
	CanStartBackgroundView() bool
	// CanStartApplicationLaunchView reports whether the command may create the
	// synthetic application launch view.
	CanStartApplicationLaunchView() bool

	command()
}

// ResourceCommand is implemented by commands correlated by a resource key.
type ResourceCommand interface {
	Command
	ResourceKey() string
}

// CommandBase carries the fields every command has.
type CommandBase struct {
	Time       time.Time
	Attributes map[string]any
}

func (b CommandBase) CommandTime() time.Time { return b.Time }
func (b CommandBase) CommandAttributes() map[string]any { return b.Attributes }
func (CommandBase) IsUserInteraction() bool { return false }
func (CommandBase) CanStartSession() bool { return true }
func (CommandBase) CanStartBackgroundView() bool { return false }
func (CommandBase) CanStartApplicationLaunchView() bool { return false }
func (CommandBase) command() {}

// ViewIdentity correlates StartView and StopView commands for one view instance.
type ViewIdentity string

// StartView starts tracking a view.
type StartView struct {
	CommandBase
	Identity ViewIdentity
	Path     string
	Name     string
}

func (StartView) CommandName() string { return "start_view" }
func (StartView) IsUserInteraction() bool { return true }

// DisplayName returns the view name, falling back to the path.
func (c StartView) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Path
}

// StopView stops tracking the view with the given identity.
type StopView struct {
	CommandBase
	Identity ViewIdentity
}

func (StopView) CommandName() string { return "stop_view" }
func (StopView) CanStartSession() bool { return false }

// ApplicationStart reports that the host application finished launching.
type ApplicationStart struct {
	CommandBase
}

func (ApplicationStart) CommandName() string { return "application_start" }
func (ApplicationStart) CanStartApplicationLaunchView() bool { return true }

// StartResource starts tracking a network resource.
type StartResource struct {
	CommandBase
	Key    string
	URL    string
	Method string
	// KindHint is the request-time classification, empty when unknown.
	KindHint ResourceType
}

func (StartResource) CommandName() string { return "start_resource" }
func (c StartResource) ResourceKey() string { return c.Key }
func (StartResource) CanStartBackgroundView() bool { return true }
func (StartResource) CanStartApplicationLaunchView() bool { return true }

// StopResource completes a resource successfully.
type StopResource struct {
	CommandBase
	Key string
	// StatusCode is zero when unknown.
	StatusCode int
	Kind       ResourceType
	// Size is the response size in bytes, nil when unknown.
	Size *int64
}

func (StopResource) CommandName() string { return "stop_resource" }
func (c StopResource) ResourceKey() string { return c.Key }
func (StopResource) CanStartSession() bool { return false }

// StopResourceWithError completes a resource with a failure.
type StopResourceWithError struct {
	CommandBase
	Key          string
	ErrorMessage string
	ErrorType    string
	// StatusCode is zero when unknown.
	StatusCode int
	Source     ErrorSource
	Stack      string
}

func (StopResourceWithError) CommandName() string { return "stop_resource_with_error" }
func (c StopResourceWithError) ResourceKey() string { return c.Key }
func (StopResourceWithError) CanStartSession() bool { return false }

// AddResourceMetrics registers precise network timings for a pending resource.
type AddResourceMetrics struct {
	CommandBase
	Key     string
	Metrics ResourceMetrics
}

func (AddResourceMetrics) CommandName() string { return "add_resource_metrics" }
func (c AddResourceMetrics) ResourceKey() string { return c.Key }
func (AddResourceMetrics) CanStartSession() bool { return false }

// StartUserAction starts a continuous user action.
type StartUserAction struct {
	CommandBase
	ActionType      ActionType
	ActionName      string
	Instrumentation Instrumentation
}

func (StartUserAction) CommandName() string { return "start_user_action" }
func (StartUserAction) IsUserInteraction() bool { return true }
func (StartUserAction) CanStartBackgroundView() bool { return true }
func (StartUserAction) CanStartApplicationLaunchView() bool { return true }

// StopUserAction stops the pending continuous action of the given type.
type StopUserAction struct {
	CommandBase
	ActionType ActionType
	// ActionName overrides the name given at start when non-empty.
	ActionName string
}

func (StopUserAction) CommandName() string { return "stop_user_action" }
func (StopUserAction) CanStartSession() bool { return false }

// AddUserAction reports a discrete action. Custom actions are emitted
// immediately, other types wait for the discrete action timeout.
type AddUserAction struct {
	CommandBase
	ActionType      ActionType
	ActionName      string
	Instrumentation Instrumentation
}

func (AddUserAction) CommandName() string { return "add_user_action" }
func (AddUserAction) IsUserInteraction() bool { return true }
func (AddUserAction) CanStartBackgroundView() bool { return true }
func (AddUserAction) CanStartApplicationLaunchView() bool { return true }

// AddCurrentViewError reports an error on the current view.
type AddCurrentViewError struct {
	CommandBase
	Message   string
	ErrorType string
	Source    ErrorSource
	Stack     string
	IsCrash   bool
}

// NewAddCurrentViewError builds an error command from a Go error value.
func NewAddCurrentViewError(at time.Time, err error, source ErrorSource, attributes map[string]any) AddCurrentViewError {
	return AddCurrentViewError{
		CommandBase: CommandBase{Time: at, Attributes: attributes},
		Message:     err.Error(),
		ErrorType:   fmt.Sprintf("%T", err),
		Source:      source,
	}
}

func (AddCurrentViewError) CommandName() string { return "add_current_view_error" }
func (AddCurrentViewError) CanStartBackgroundView() bool { return true }
func (AddCurrentViewError) CanStartApplicationLaunchView() bool { return true }

// AddCurrentViewAppHang reports a main-thread hang on the current view.
type AddCurrentViewAppHang struct {
	CommandBase
	Message      string
	ErrorType    string
	Stack        string
	HangDuration time.Duration
}

func (AddCurrentViewAppHang) CommandName() string { return "add_current_view_app_hang" }
func (AddCurrentViewAppHang) CanStartBackgroundView() bool { return true }
func (AddCurrentViewAppHang) CanStartApplicationLaunchView() bool { return true }

// AddLongTask reports a long task that ended at the command time.
type AddLongTask struct {
	CommandBase
	Duration time.Duration
}

func (AddLongTask) CommandName() string { return "add_long_task" }
func (AddLongTask) CanStartBackgroundView() bool { return true }
func (AddLongTask) CanStartApplicationLaunchView() bool { return true }

// AddViewTiming records a custom timing on the active view.
type AddViewTiming struct {
	CommandBase
	TimingName string
}

func (AddViewTiming) CommandName() string { return "add_view_timing" }

// AddFeatureFlagEvaluation records a feature flag value on the active view.
type AddFeatureFlagEvaluation struct {
	CommandBase
	FlagName string
	Value    any
}

func (AddFeatureFlagEvaluation) CommandName() string { return "add_feature_flag_evaluation" }

// SetInternalViewAttribute sets an SDK-internal attribute on the active view.
type SetInternalViewAttribute struct {
	CommandBase
	Key   string
	Value any
}

func (SetInternalViewAttribute) CommandName() string { return "set_internal_view_attribute" }

// StopSession explicitly stops the current session.
type StopSession struct {
	CommandBase
}

func (StopSession) CommandName() string { return "stop_session" }
func (StopSession) CanStartSession() bool { return false }

// KeepSessionAlive refreshes session activity without touching views.
type KeepSessionAlive struct {
	CommandBase
}

func (KeepSessionAlive) CommandName() string { return "keep_session_alive" }
