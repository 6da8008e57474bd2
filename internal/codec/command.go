// Package codec decodes the JSON command envelopes accepted by the intake
// server into domain commands, and renders command errors.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

// Envelope is the wire form of a command. Fields not used by a command type
// are ignored.
type Envelope struct {
	Type       string         `json:"type"`
	Time       *time.Time     `json:"time,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`

	// Views
	Identity string `json:"identity,omitempty"`
	Path     string `json:"path,omitempty"`
	Name     string `json:"name,omitempty"`

	// Resources
	Key        string         `json:"key,omitempty"`
	URL        string         `json:"url,omitempty"`
	Method     string         `json:"method,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Size       *int64         `json:"size,omitempty"`
	Metrics    *MetricsFields `json:"metrics,omitempty"`

	// Errors
	Message   string `json:"message,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Source    string `json:"source,omitempty"`
	Stack     string `json:"stack,omitempty"`
	IsCrash   bool   `json:"is_crash,omitempty"`

	// Actions
	ActionType      string `json:"action_type,omitempty"`
	ActionName      string `json:"action_name,omitempty"`
	Instrumentation string `json:"instrumentation,omitempty"`

	// Long tasks and app hangs
	Duration     Duration `json:"duration,omitempty"`
	HangDuration Duration `json:"hang_duration,omitempty"`

	// Timings, flags, internal attributes
	TimingName string `json:"timing_name,omitempty"`
	FlagName   string `json:"flag_name,omitempty"`
	Value      any    `json:"value,omitempty"`
}

// MetricsFields carries precise resource timings.
type MetricsFields struct {
	Fetch        RangeFields  `json:"fetch"`
	DNS          *RangeFields `json:"dns,omitempty"`
	Connect      *RangeFields `json:"connect,omitempty"`
	SSL          *RangeFields `json:"ssl,omitempty"`
	FirstByte    *RangeFields `json:"first_byte,omitempty"`
	Download     *RangeFields `json:"download,omitempty"`
	ResponseSize *int64       `json:"response_size,omitempty"`
}

// RangeFields is a phase of a request.
type RangeFields struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r *RangeFields) toDomain() *domain.TimeRange {
	if r == nil {
		return nil
	}
	return &domain.TimeRange{Start: r.Start, End: r.End}
}

// Duration accepts either a Go duration string ("250ms") or a number of
// nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds: %w", err)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DecodeCommands decodes a single envelope or an array of envelopes. Commands
// without a time are dated at now.
func DecodeCommands(data []byte, now time.Time) ([]domain.Command, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, domain.NewInvalidCommandError("", "empty body")
	}

	var envelopes []Envelope
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &envelopes); err != nil {
			return nil, invalidJSON(err)
		}
	} else {
		var env Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, invalidJSON(err)
		}
		envelopes = []Envelope{env}
	}

	commands := make([]domain.Command, 0, len(envelopes))
	for i, env := range envelopes {
		cmd, err := env.Command(now)
		if err != nil {
			if len(envelopes) > 1 {
				return nil, fmt.Errorf("command %d: %w", i, err)
			}
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// DecodeCommand decodes one envelope.
func DecodeCommand(data []byte, now time.Time) (domain.Command, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, invalidJSON(err)
	}
	return env.Command(now)
}

func invalidJSON(err error) error {
	return domain.NewInvalidCommandError("", "malformed JSON: "+err.Error())
}

// Command converts the envelope into its domain command.
func (e Envelope) Command(now time.Time) (domain.Command, error) {
	if e.Type == "" {
		return nil, domain.NewInvalidCommandError("type", "missing command type")
	}

	base := domain.CommandBase{Time: now, Attributes: e.Attributes}
	if e.Time != nil {
		base.Time = *e.Time
	}

	switch e.Type {
	case "start_view":
		if e.Identity == "" {
			return nil, domain.NewInvalidCommandError("identity", "required")
		}
		path := e.Path
		if path == "" {
			path = e.Identity
		}
		return domain.StartView{CommandBase: base, Identity: domain.ViewIdentity(e.Identity), Path: path, Name: e.Name}, nil

	case "stop_view":
		if e.Identity == "" {
			return nil, domain.NewInvalidCommandError("identity", "required")
		}
		return domain.StopView{CommandBase: base, Identity: domain.ViewIdentity(e.Identity)}, nil

	case "application_start":
		return domain.ApplicationStart{CommandBase: base}, nil

	case "start_resource":
		if err := requireKey(e.Key); err != nil {
			return nil, err
		}
		if e.URL == "" {
			return nil, domain.NewInvalidCommandError("url", "required")
		}
		kind, err := resourceType(e.Kind)
		if err != nil {
			return nil, err
		}
		return domain.StartResource{CommandBase: base, Key: e.Key, URL: e.URL, Method: e.Method, KindHint: kind}, nil

	case "stop_resource":
		if err := requireKey(e.Key); err != nil {
			return nil, err
		}
		kind, err := resourceType(e.Kind)
		if err != nil {
			return nil, err
		}
		return domain.StopResource{CommandBase: base, Key: e.Key, StatusCode: e.StatusCode, Kind: kind, Size: e.Size}, nil

	case "stop_resource_with_error":
		if err := requireKey(e.Key); err != nil {
			return nil, err
		}
		source, err := errorSource(e.Source, domain.ErrorSourceNetwork)
		if err != nil {
			return nil, err
		}
		return domain.StopResourceWithError{
			CommandBase:  base,
			Key:          e.Key,
			ErrorMessage: e.Message,
			ErrorType:    e.ErrorType,
			StatusCode:   e.StatusCode,
			Source:       source,
			Stack:        e.Stack,
		}, nil

	case "add_resource_metrics":
		if err := requireKey(e.Key); err != nil {
			return nil, err
		}
		if e.Metrics == nil {
			return nil, domain.NewInvalidCommandError("metrics", "required")
		}
		return domain.AddResourceMetrics{
			CommandBase: base,
			Key:         e.Key,
			Metrics: domain.ResourceMetrics{
				Fetch:        domain.TimeRange{Start: e.Metrics.Fetch.Start, End: e.Metrics.Fetch.End},
				DNS:          e.Metrics.DNS.toDomain(),
				Connect:      e.Metrics.Connect.toDomain(),
				SSL:          e.Metrics.SSL.toDomain(),
				FirstByte:    e.Metrics.FirstByte.toDomain(),
				Download:     e.Metrics.Download.toDomain(),
				ResponseSize: e.Metrics.ResponseSize,
			},
		}, nil

	case "start_user_action":
		actionType, instrumentation, err := e.action()
		if err != nil {
			return nil, err
		}
		return domain.StartUserAction{CommandBase: base, ActionType: actionType, ActionName: e.ActionName, Instrumentation: instrumentation}, nil

	case "stop_user_action":
		actionType, err := userActionType(e.ActionType)
		if err != nil {
			return nil, err
		}
		return domain.StopUserAction{CommandBase: base, ActionType: actionType, ActionName: e.ActionName}, nil

	case "add_user_action":
		actionType, instrumentation, err := e.action()
		if err != nil {
			return nil, err
		}
		return domain.AddUserAction{CommandBase: base, ActionType: actionType, ActionName: e.ActionName, Instrumentation: instrumentation}, nil

	case "add_current_view_error":
		if e.Message == "" {
			return nil, domain.NewInvalidCommandError("message", "required")
		}
		source, err := errorSource(e.Source, domain.ErrorSourceCustom)
		if err != nil {
			return nil, err
		}
		return domain.AddCurrentViewError{
			CommandBase: base,
			Message:     e.Message,
			ErrorType:   e.ErrorType,
			Source:      source,
			Stack:       e.Stack,
			IsCrash:     e.IsCrash,
		}, nil

	case "add_current_view_app_hang":
		if e.HangDuration <= 0 {
			return nil, domain.NewInvalidCommandError("hang_duration", "must be positive")
		}
		return domain.AddCurrentViewAppHang{
			CommandBase:  base,
			Message:      e.Message,
			ErrorType:    e.ErrorType,
			Stack:        e.Stack,
			HangDuration: time.Duration(e.HangDuration),
		}, nil

	case "add_long_task":
		if e.Duration <= 0 {
			return nil, domain.NewInvalidCommandError("duration", "must be positive")
		}
		return domain.AddLongTask{CommandBase: base, Duration: time.Duration(e.Duration)}, nil

	case "add_view_timing":
		if e.TimingName == "" {
			return nil, domain.NewInvalidCommandError("timing_name", "required")
		}
		return domain.AddViewTiming{CommandBase: base, TimingName: e.TimingName}, nil

	case "add_feature_flag_evaluation":
		if e.FlagName == "" {
			return nil, domain.NewInvalidCommandError("flag_name", "required")
		}
		return domain.AddFeatureFlagEvaluation{CommandBase: base, FlagName: e.FlagName, Value: e.Value}, nil

	case "set_internal_view_attribute":
		if err := requireKey(e.Key); err != nil {
			return nil, err
		}
		return domain.SetInternalViewAttribute{CommandBase: base, Key: e.Key, Value: e.Value}, nil

	case "stop_session":
		return domain.StopSession{CommandBase: base}, nil

	case "keep_session_alive":
		return domain.KeepSessionAlive{CommandBase: base}, nil

	default:
		return nil, domain.NewUnknownCommandError(e.Type)
	}
}

func (e Envelope) action() (domain.ActionType, domain.Instrumentation, error) {
	actionType, err := userActionType(e.ActionType)
	if err != nil {
		return "", "", err
	}
	switch instrumentation := domain.Instrumentation(e.Instrumentation); instrumentation {
	case "":
		return actionType, domain.InstrumentationManual, nil
	case domain.InstrumentationManual, domain.InstrumentationUIKit, domain.InstrumentationSwiftUI:
		return actionType, instrumentation, nil
	default:
		return "", "", domain.NewInvalidCommandError("instrumentation", fmt.Sprintf("unsupported instrumentation %q", e.Instrumentation))
	}
}

func requireKey(key string) error {
	if key == "" {
		return domain.NewInvalidCommandError("key", "required")
	}
	return nil
}

func userActionType(s string) (domain.ActionType, error) {
	switch t := domain.ActionType(s); t {
	case domain.ActionTypeTap, domain.ActionTypeClick, domain.ActionTypeScroll, domain.ActionTypeSwipe, domain.ActionTypeCustom:
		return t, nil
	case "":
		return "", domain.NewInvalidCommandError("action_type", "required")
	default:
		return "", domain.NewInvalidCommandError("action_type", fmt.Sprintf("unsupported action type %q", s))
	}
}

func resourceType(s string) (domain.ResourceType, error) {
	switch t := domain.ResourceType(s); t {
	case "", domain.ResourceTypeImage, domain.ResourceTypeXHR, domain.ResourceTypeBeacon, domain.ResourceTypeCSS,
		domain.ResourceTypeDocument, domain.ResourceTypeFetch, domain.ResourceTypeFont, domain.ResourceTypeJS,
		domain.ResourceTypeMedia, domain.ResourceTypeNative, domain.ResourceTypeOther:
		return t, nil
	default:
		return "", domain.NewInvalidCommandError("kind", fmt.Sprintf("unsupported resource kind %q", s))
	}
}

func errorSource(s string, fallback domain.ErrorSource) (domain.ErrorSource, error) {
	switch src := domain.ErrorSource(s); src {
	case "":
		return fallback, nil
	case domain.ErrorSourceSource, domain.ErrorSourceNetwork, domain.ErrorSourceWebView,
		domain.ErrorSourceConsole, domain.ErrorSourceLogger, domain.ErrorSourceCustom:
		return src, nil
	default:
		return "", domain.NewInvalidCommandError("source", fmt.Sprintf("unsupported error source %q", s))
	}
}
