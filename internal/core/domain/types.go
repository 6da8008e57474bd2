package domain

// ActionType identifies the kind of user action.
type ActionType string

const (
	ActionTypeTap              ActionType = "tap"
	ActionTypeClick            ActionType = "click"
	ActionTypeScroll           ActionType = "scroll"
	ActionTypeSwipe            ActionType = "swipe"
	ActionTypeCustom           ActionType = "custom"
	ActionTypeApplicationStart ActionType = "application_start"
)

// Instrumentation identifies which source reported a user action.
type Instrumentation string

const (
	InstrumentationManual  Instrumentation = "manual"
	InstrumentationUIKit   Instrumentation = "uikit"
	InstrumentationSwiftUI Instrumentation = "swiftui"
)

// IsManual reports whether the action came from an explicit API call.
func (i Instrumentation) IsManual() bool {
	return i == InstrumentationManual || i == ""
}

// ResourceType classifies a network resource.
type ResourceType string

const (
	ResourceTypeImage    ResourceType = "image"
	ResourceTypeXHR      ResourceType = "xhr"
	ResourceTypeBeacon   ResourceType = "beacon"
	ResourceTypeCSS      ResourceType = "css"
	ResourceTypeDocument ResourceType = "document"
	ResourceTypeFetch    ResourceType = "fetch"
	ResourceTypeFont     ResourceType = "font"
	ResourceTypeJS       ResourceType = "js"
	ResourceTypeMedia    ResourceType = "media"
	ResourceTypeNative   ResourceType = "native"
	ResourceTypeOther    ResourceType = "other"
)

// ErrorSource identifies where an error originated.
type ErrorSource string

const (
	ErrorSourceSource  ErrorSource = "source"
	ErrorSourceNetwork ErrorSource = "network"
	ErrorSourceWebView ErrorSource = "webview"
	ErrorSourceConsole ErrorSource = "console"
	ErrorSourceLogger  ErrorSource = "logger"
	ErrorSourceCustom  ErrorSource = "custom"
)

// ErrorCategory distinguishes plain exceptions from app hangs.
type ErrorCategory string

const (
	ErrorCategoryException ErrorCategory = "exception"
	ErrorCategoryAppHang   ErrorCategory = "app_hang"
)

// FrustrationType identifies a frustration signal attached to an action.
type FrustrationType string

const (
	FrustrationErrorTap FrustrationType = "error_tap"
)

// ApplicationState is the host application's lifecycle state.
type ApplicationState string

const (
	ApplicationStateForeground ApplicationState = "foreground"
	ApplicationStateBackground ApplicationState = "background"
)

// SessionPrecondition describes why a session started.
type SessionPrecondition string

const (
	SessionPreconditionUserAppLaunch     SessionPrecondition = "user_app_launch"
	SessionPreconditionBackgroundLaunch  SessionPrecondition = "background_launch"
	SessionPreconditionInactivityTimeout SessionPrecondition = "inactivity_timeout"
	SessionPreconditionMaxDuration       SessionPrecondition = "max_duration"
	SessionPreconditionExplicitStop      SessionPrecondition = "explicit_stop"
)

// Synthetic views created by the session when no view is tracked.
const (
	ApplicationLaunchViewName = "ApplicationLaunch"
	ApplicationLaunchViewPath = "com/datadog/application-launch/view"
	BackgroundViewName        = "Background"
	BackgroundViewPath        = "com/datadog/background/view"
)
