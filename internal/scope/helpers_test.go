package scope

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

var foreground = domain.SDKContext{
	Service:          "shop",
	Version:          "1.2.3",
	Source:           "ios",
	ApplicationState: domain.ApplicationStateForeground,
	LaunchTime:       2 * time.Second,
}

var background = domain.SDKContext{
	Service:          "shop",
	ApplicationState: domain.ApplicationStateBackground,
}

func at(d time.Duration) domain.CommandBase {
	return domain.CommandBase{Time: t0.Add(d)}
}

// recordingWriter keeps every written event; drop decides which are rejected.
type recordingWriter struct {
	mu      sync.Mutex
	events  []domain.Event
	dropped []domain.Event
	drop    func(domain.Event) bool
}

func (w *recordingWriter) Write(e domain.Event) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drop != nil && w.drop(e) {
		w.dropped = append(w.dropped, e)
		return false
	}
	w.events = append(w.events, e)
	return true
}

func (w *recordingWriter) viewEvents() []*domain.ViewEvent {
	var out []*domain.ViewEvent
	for _, e := range w.events {
		if v, ok := e.(*domain.ViewEvent); ok {
			out = append(out, v)
		}
	}
	return out
}

func (w *recordingWriter) viewEventsFor(viewID string) []*domain.ViewEvent {
	var out []*domain.ViewEvent
	for _, v := range w.viewEvents() {
		if v.View.ID == viewID {
			out = append(out, v)
		}
	}
	return out
}

func (w *recordingWriter) lastView() *domain.ViewEvent {
	views := w.viewEvents()
	if len(views) == 0 {
		return nil
	}
	return views[len(views)-1]
}

func (w *recordingWriter) actionEvents() []*domain.ActionEvent {
	var out []*domain.ActionEvent
	for _, e := range w.events {
		if a, ok := e.(*domain.ActionEvent); ok {
			out = append(out, a)
		}
	}
	return out
}

func (w *recordingWriter) userActions() []*domain.ActionEvent {
	var out []*domain.ActionEvent
	for _, a := range w.actionEvents() {
		if a.Action.Type != domain.ActionTypeApplicationStart {
			out = append(out, a)
		}
	}
	return out
}

func (w *recordingWriter) resourceEvents() []*domain.ResourceEvent {
	var out []*domain.ResourceEvent
	for _, e := range w.events {
		if r, ok := e.(*domain.ResourceEvent); ok {
			out = append(out, r)
		}
	}
	return out
}

func (w *recordingWriter) errorEvents() []*domain.ErrorEvent {
	var out []*domain.ErrorEvent
	for _, e := range w.events {
		if r, ok := e.(*domain.ErrorEvent); ok {
			out = append(out, r)
		}
	}
	return out
}

func (w *recordingWriter) count(eventType domain.EventType) int {
	n := 0
	for _, e := range w.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type fixedSampler struct{ keep bool }

func (s fixedSampler) Sample(string) bool { return s.keep }
func (s fixedSampler) Rate() float64 {
	if s.keep {
		return 100
	}
	return 0
}

// fakeTNS records the calls it receives.
type fakeTNS struct {
	started []domain.RUMUUID
	ended   []domain.RUMUUID
	dropped []domain.RUMUUID
	stopped bool
	value   *time.Duration
}

func (f *fakeTNS) TrackResourceStart(_ time.Time, id domain.RUMUUID, _ string) {
	f.started = append(f.started, id)
}
func (f *fakeTNS) TrackResourceEnd(_ time.Time, id domain.RUMUUID, _ time.Duration) {
	f.ended = append(f.ended, id)
}
func (f *fakeTNS) TrackResourceDropped(id domain.RUMUUID) { f.dropped = append(f.dropped, id) }
func (f *fakeTNS) TrackViewWasStopped() { f.stopped = true }
func (f *fakeTNS) Value(time.Time, domain.ApplicationState) (time.Duration, bool) {
	if f.value == nil {
		return 0, false
	}
	return *f.value, true
}

type fakeINV struct {
	viewStarts    []domain.RUMUUID
	viewCompletes []domain.RUMUUID
	actions       []string
}

func (f *fakeINV) TrackAction(_, _ time.Time, name string, _ domain.ActionType, _ domain.RUMUUID) {
	f.actions = append(f.actions, name)
}
func (f *fakeINV) TrackViewStart(_ time.Time, _ string, id domain.RUMUUID) {
	f.viewStarts = append(f.viewStarts, id)
}
func (f *fakeINV) TrackViewComplete(id domain.RUMUUID) {
	f.viewCompletes = append(f.viewCompletes, id)
}
func (f *fakeINV) Value(domain.RUMUUID) (time.Duration, bool) { return 0, false }

type fakeHitches struct {
	snapshot domain.HitchesSnapshot
	started  bool
	stopped  bool
}

func (f *fakeHitches) Start(time.Time) { f.started = true }
func (f *fakeHitches) Stop(time.Time) { f.stopped = true }
func (f *fakeHitches) Snapshot() domain.HitchesSnapshot { return f.snapshot }

type harness struct {
	app    *ApplicationScope
	writer *recordingWriter
	logs   *bytes.Buffer
	tns    []*fakeTNS
	inv    *fakeINV
}

type harnessOption func(*Dependencies)

func withSettings(mutate func(*Settings)) harnessOption {
	return func(d *Dependencies) { mutate(&d.Settings) }
}

func withSampler(s ports.Sampler) harnessOption {
	return func(d *Dependencies) { d.Sampler = s }
}

func withHitches(h *fakeHitches) harnessOption {
	return func(d *Dependencies) {
		d.HitchesFactory = func() ports.ViewHitchesTracker { return h }
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		writer: &recordingWriter{},
		logs:   &bytes.Buffer{},
		inv:    &fakeINV{},
	}
	settings := DefaultSettings()
	settings.ApplicationID = "app-id"

	deps := Dependencies{
		Settings:   settings,
		Writer:     h.writer,
		INVTracker: h.inv,
		TNSFactory: func(time.Time, string) ports.TNSMetricTracker {
			tns := &fakeTNS{}
			h.tns = append(h.tns, tns)
			return tns
		},
		Logger: slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.app = NewApplicationScope(deps)
	return h
}

func (h *harness) process(sdk domain.SDKContext, cmds ...domain.Command) {
	for _, cmd := range cmds {
		h.app.Process(cmd, sdk)
	}
}

func startView(d time.Duration, identity, name string) domain.StartView {
	return domain.StartView{CommandBase: at(d), Identity: domain.ViewIdentity(identity), Path: identity, Name: name}
}

func stopView(d time.Duration, identity string) domain.StopView {
	return domain.StopView{CommandBase: at(d), Identity: domain.ViewIdentity(identity)}
}

func startResource(d time.Duration, key, url string) domain.StartResource {
	return domain.StartResource{CommandBase: at(d), Key: key, URL: url, Method: "GET"}
}

func stopResource(d time.Duration, key string) domain.StopResource {
	return domain.StopResource{CommandBase: at(d), Key: key, StatusCode: 200, Kind: domain.ResourceTypeXHR}
}

func failResource(d time.Duration, key string) domain.StopResourceWithError {
	return domain.StopResourceWithError{CommandBase: at(d), Key: key, ErrorMessage: "timeout", ErrorType: "URLError", StatusCode: 504}
}

func viewError(d time.Duration, message string) domain.AddCurrentViewError {
	return domain.AddCurrentViewError{CommandBase: at(d), Message: message, ErrorType: "Error"}
}

func assertVersions(t *testing.T, views []*domain.ViewEvent) {
	t.Helper()
	for i, v := range views {
		if want := int64(i + 1); v.Internal.DocumentVersion != want {
			t.Fatalf("view update %d document_version = %d, want %d", i, v.Internal.DocumentVersion, want)
		}
	}
}
