package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/codec"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// DefaultMaxBodyBytes bounds a command batch when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Monitor is the subset of the RUM monitor the intake drives.
type Monitor interface {
	Submit(ctx context.Context, cmd domain.Command) error
	Flush(ctx context.Context) error
	CurrentContext() domain.ScopeContext
	Now() time.Time
	QueueStats() (depth, capacity int)
}

// HitchRecorder receives slow frames reported by the host.
type HitchRecorder interface {
	RecordHitch(start time.Time, duration time.Duration)
}

// ApplicationState holds the foreground/background state last reported by
// the host. Its Get method is a runtime.AppStateProvider.
type ApplicationState struct {
	state atomic.Pointer[domain.ApplicationState]
}

// NewApplicationState starts in the foreground.
func NewApplicationState() *ApplicationState {
	s := &ApplicationState{}
	s.Set(domain.ApplicationStateForeground)
	return s
}

func (s *ApplicationState) Get() domain.ApplicationState { return *s.state.Load() }

func (s *ApplicationState) Set(state domain.ApplicationState) { s.state.Store(&state) }

// IntakeConfig wires the intake handlers. Store and Hitches are optional.
type IntakeConfig struct {
	Monitor      Monitor
	Store        ports.EventStore
	Hitches      HitchRecorder
	AppState     *ApplicationState
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Intake serves the command API.
type Intake struct {
	monitor      Monitor
	store        ports.EventStore
	hitches      HitchRecorder
	appState     *ApplicationState
	maxBodyBytes int64
	logger       *slog.Logger
}

func NewIntake(cfg IntakeConfig) (*Intake, error) {
	if cfg.Monitor == nil {
		return nil, errors.New("monitor required")
	}
	if cfg.AppState == nil {
		cfg.AppState = NewApplicationState()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Intake{
		monitor:      cfg.Monitor,
		store:        cfg.Store,
		hitches:      cfg.Hitches,
		appState:     cfg.AppState,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger,
	}, nil
}

// Routes registers the intake endpoints on r.
func (h *Intake) Routes(r chi.Router) {
	r.With(QueueHeadersMiddleware).Post("/commands", h.handleCommands)
	r.Post("/flush", h.handleFlush)
	r.Get("/context", h.handleContext)
	r.Get("/application-state", h.handleGetApplicationState)
	r.Put("/application-state", h.handleSetApplicationState)
	if h.hitches != nil {
		r.Post("/hitches", h.handleHitch)
	}
	if h.store != nil {
		r.Get("/events", h.handleListEvents)
	}
}

type commandsResponse struct {
	Accepted int `json:"accepted"`
}

func (h *Intake) handleCommands(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AddError(r.Context(), err)
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		codec.WriteError(w, domain.NewInvalidCommandError("", "read body: "+err.Error()))
		return
	}

	commands, err := codec.DecodeCommands(body, h.monitor.Now())
	if err != nil {
		AddError(r.Context(), err)
		codec.WriteError(w, err)
		return
	}

	for i, cmd := range commands {
		if err := h.monitor.Submit(r.Context(), cmd); err != nil {
			AddError(r.Context(), err)
			AddLogField(r.Context(), "accepted", strconv.Itoa(i))
			codec.WriteError(w, fmt.Errorf("submit %s: %w", cmd.CommandName(), err))
			return
		}
	}

	if info := GetQueueInfo(r.Context()); info != nil {
		info.Depth, info.Capacity = h.monitor.QueueStats()
	}
	AddLogField(r.Context(), "accepted", strconv.Itoa(len(commands)))
	writeJSON(w, http.StatusAccepted, commandsResponse{Accepted: len(commands)})
}

func (h *Intake) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Flush(r.Context()); err != nil {
		AddError(r.Context(), err)
		codec.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Intake) handleContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.CurrentContext())
}

type applicationStateBody struct {
	State domain.ApplicationState `json:"state"`
}

func (h *Intake) handleGetApplicationState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, applicationStateBody{State: h.appState.Get()})
}

func (h *Intake) handleSetApplicationState(w http.ResponseWriter, r *http.Request) {
	var body applicationStateBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&body); err != nil {
		codec.WriteError(w, domain.NewInvalidCommandError("", "malformed JSON: "+err.Error()))
		return
	}
	switch body.State {
	case domain.ApplicationStateForeground, domain.ApplicationStateBackground:
	default:
		codec.WriteError(w, domain.NewInvalidCommandError("state", fmt.Sprintf("unsupported application state %q", body.State)))
		return
	}

	h.appState.Set(body.State)
	h.logger.Debug("application state changed", slog.String("state", string(body.State)))
	w.WriteHeader(http.StatusNoContent)
}

type hitchBody struct {
	Start    time.Time      `json:"start"`
	Duration codec.Duration `json:"duration"`
}

func (h *Intake) handleHitch(w http.ResponseWriter, r *http.Request) {
	var body hitchBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
		codec.WriteError(w, domain.NewInvalidCommandError("", "malformed JSON: "+err.Error()))
		return
	}
	if body.Duration <= 0 {
		codec.WriteError(w, domain.NewInvalidCommandError("duration", "must be positive"))
		return
	}
	if body.Start.IsZero() {
		body.Start = h.monitor.Now()
	}

	h.hitches.RecordHitch(body.Start, time.Duration(body.Duration))
	w.WriteHeader(http.StatusNoContent)
}

type eventsResponse struct {
	Events []*ports.StoredEvent `json:"events"`
}

func (h *Intake) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := ports.ListOptions{
		SessionID: q.Get("session_id"),
		ViewID:    q.Get("view_id"),
		Type:      domain.EventType(q.Get("type")),
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			codec.WriteError(w, domain.NewInvalidCommandError(name, "must be a non-negative integer"))
			return
		}
		*dst = n
	}

	events, err := h.store.ListEvents(r.Context(), opts)
	if err != nil {
		AddError(r.Context(), err)
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*ports.StoredEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
