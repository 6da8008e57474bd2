package scope

import (
	"strings"
	"testing"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/metrics"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/sampling"
)

func TestApplication_FirstCommandStartsInitialSession(t *testing.T) {
	h := newHarness(t)
	h.process(foreground, startView(0, "home", "Home"))

	s := h.app.ActiveSession()
	if s == nil {
		t.Fatal("ActiveSession() = nil, want a session")
	}
	if s.precondition != domain.SessionPreconditionUserAppLaunch {
		t.Errorf("precondition = %q, want %q", s.precondition, domain.SessionPreconditionUserAppLaunch)
	}
	if !s.isInitialSession {
		t.Error("first session should be the initial session")
	}

	actions := h.writer.actionEvents()
	if len(actions) != 1 || actions[0].Action.Type != domain.ActionTypeApplicationStart {
		t.Fatalf("actions = %+v, want one application_start action", actions)
	}
	if lt := actions[0].Action.LoadingTime; lt == nil || *lt != int64(2*time.Second) {
		t.Errorf("application_start loading_time = %v, want 2s", lt)
	}

	view := h.writer.lastView()
	if view == nil {
		t.Fatal("no view update written")
	}
	if view.Internal.DocumentVersion != 1 {
		t.Errorf("document_version = %d, want 1", view.Internal.DocumentVersion)
	}
	if view.View.Action.Count != 1 {
		t.Errorf("view action count = %d, want 1", view.View.Action.Count)
	}
	if view.Session.ID != s.ID().String() || view.Application.ID != "app-id" {
		t.Errorf("event ids = (%s, %s), want (%s, app-id)", view.Session.ID, view.Application.ID, s.ID())
	}
	if view.Service != "shop" || view.Version != "1.2.3" {
		t.Errorf("service/version = %s/%s, want shop/1.2.3", view.Service, view.Version)
	}
}

func TestApplication_StopCommandsDoNotStartSession(t *testing.T) {
	h := newHarness(t)
	h.process(foreground,
		stopView(0, "home"),
		stopResource(0, "r1"),
		domain.StopSession{CommandBase: at(0)},
		domain.StopUserAction{CommandBase: at(0), ActionType: domain.ActionTypeScroll},
	)

	if len(h.app.Sessions()) != 0 {
		t.Fatalf("sessions = %d, want 0", len(h.app.Sessions()))
	}
	if got := h.app.Context().SessionID; !got.IsNull() {
		t.Errorf("Context().SessionID = %s, want null", got)
	}
}

func TestApplication_BackgroundLaunchPrecondition(t *testing.T) {
	h := newHarness(t)
	h.process(background, domain.KeepSessionAlive{CommandBase: at(0)})

	s := h.app.ActiveSession()
	if s == nil {
		t.Fatal("ActiveSession() = nil")
	}
	if s.precondition != domain.SessionPreconditionBackgroundLaunch {
		t.Errorf("precondition = %q, want background_launch", s.precondition)
	}
}

func TestApplication_MaxDurationMigratesViews(t *testing.T) {
	h := newHarness(t, withSettings(func(s *Settings) {
		s.SessionMaxDuration = time.Hour
		s.SessionInactivityTimeout = 2 * time.Hour
	}))

	h.process(foreground, startView(0, "home", "Home"))
	first := h.app.ActiveSession()
	oldView := first.activeView()

	h.process(foreground, startResource(time.Hour, "r1", "https://api/items"))

	second := h.app.ActiveSession()
	if second == nil || second == first {
		t.Fatal("expected a replacement session")
	}
	if second.ID() == first.ID() {
		t.Error("replacement session reuses the expired session id")
	}
	if second.precondition != domain.SessionPreconditionMaxDuration {
		t.Errorf("precondition = %q, want max_duration", second.precondition)
	}
	if len(h.app.Sessions()) != 1 {
		t.Errorf("sessions = %d, want 1", len(h.app.Sessions()))
	}

	migrated := second.activeView()
	if migrated == nil {
		t.Fatal("active view was not migrated")
	}
	if migrated.ID() == oldView.ID() {
		t.Error("migrated view keeps the old view id")
	}
	if migrated.path != "home" || migrated.name != "Home" {
		t.Errorf("migrated view = (%s, %s), want (home, Home)", migrated.path, migrated.name)
	}
	if !migrated.startTime.Equal(t0.Add(time.Hour)) {
		t.Errorf("migrated view start = %v, want command time", migrated.startTime)
	}
	if !migrated.HasPendingResources() {
		t.Error("command was not processed by the new session")
	}

	updates := h.writer.viewEventsFor(migrated.ID().String())
	assertVersions(t, updates)
	last := updates[len(updates)-1]
	if last.Session.ID != second.ID().String() {
		t.Errorf("migrated view session id = %s, want %s", last.Session.ID, second.ID())
	}
	if last.Internal.SessionPrecondition != domain.SessionPreconditionMaxDuration {
		t.Errorf("session_precondition = %q, want max_duration", last.Internal.SessionPrecondition)
	}
	for _, a := range h.writer.actionEvents() {
		if a.View.ID == migrated.ID().String() {
			t.Error("migrated view must not report application_start")
		}
	}
}

func TestApplication_ExpiryWithoutReplacement(t *testing.T) {
	h := newHarness(t)

	h.process(foreground, startView(0, "home", "Home"))
	h.process(foreground, stopView(20*time.Minute, "home"))

	if h.app.ActiveSession() != nil {
		t.Fatal("StopView must not start a replacement session")
	}

	h.process(foreground, viewError(21*time.Minute, "boom"))

	s := h.app.ActiveSession()
	if s == nil {
		t.Fatal("error command should start a new session")
	}
	if s.precondition != domain.SessionPreconditionInactivityTimeout {
		t.Errorf("precondition = %q, want inactivity_timeout", s.precondition)
	}
	if s.isInitialSession {
		t.Error("new session must not be initial")
	}
	if !strings.Contains(h.logs.String(), "command=add_current_view_error") {
		t.Errorf("expected a no-active-view warning, logs:\n%s", h.logs.String())
	}
	if n := h.writer.count(domain.EventTypeError); n != 0 {
		t.Errorf("errors written = %d, want 0", n)
	}
}

func TestApplication_ExpiryReleasesViewTrackers(t *testing.T) {
	mon := metrics.NewHitchesMonitor()
	inv := metrics.NewINVTracker(0)
	var trackers []ports.ViewHitchesTracker
	h := newHarness(t, func(d *Dependencies) {
		factory := mon.Factory()
		d.HitchesFactory = func() ports.ViewHitchesTracker {
			tr := factory()
			trackers = append(trackers, tr)
			return tr
		}
		d.INVTracker = inv
	})

	h.process(foreground, startView(0, "home", "Home"))
	home := h.app.ActiveSession().activeView()
	inv.TrackAction(t0.Add(time.Second), t0.Add(time.Second), "checkout", domain.ActionTypeTap, home.ID())
	h.process(foreground, startView(2*time.Second, "cart", "Cart"))
	cart := h.app.ActiveSession().activeView()

	if _, ok := inv.Value(cart.ID()); !ok {
		t.Fatal("cart should have an INV value while the session runs")
	}
	mon.RecordHitch(t0.Add(3*time.Second), 50*time.Millisecond)
	cartTracker := trackers[len(trackers)-1]
	if n := len(cartTracker.Snapshot().Hitches); n != 1 {
		t.Fatalf("cart hitches before expiry = %d, want 1", n)
	}

	h.process(foreground, stopView(20*time.Minute, "cart"))
	if n := len(h.app.Sessions()); n != 0 {
		t.Fatalf("sessions after expiry = %d, want 0", n)
	}

	mon.RecordHitch(t0.Add(21*time.Minute), 50*time.Millisecond)
	for i, tr := range trackers {
		for _, hitch := range tr.Snapshot().Hitches {
			if hitch.Start.After(t0.Add(20 * time.Minute)) {
				t.Errorf("tracker %d collected a hitch after its session expired", i)
			}
		}
	}
	if _, ok := inv.Value(cart.ID()); ok {
		t.Error("cart INV value should be released with the expired session")
	}
}

func TestApplication_ExplicitStopAndRestart(t *testing.T) {
	h := newHarness(t)

	h.process(foreground,
		startView(0, "home", "Home"),
		startResource(time.Second, "r1", "https://api/a"),
		domain.StopSession{CommandBase: at(2 * time.Second)},
	)
	stopped := h.app.Sessions()[0]
	if stopped.IsActive() {
		t.Fatal("session should be inactive after StopSession")
	}
	if h.app.ActiveSession() != nil {
		t.Fatal("no session should be active after StopSession")
	}

	// Non-interactive commands do not revive the session.
	written := len(h.writer.events)
	h.process(foreground, startResource(3*time.Second, "r2", "https://api/b"))
	if h.app.ActiveSession() != nil {
		t.Fatal("StartResource must not start a session after an explicit stop")
	}
	if len(h.writer.events) != written {
		t.Errorf("events written while stopped = %d, want 0", len(h.writer.events)-written)
	}

	// The pending resource still completes in the stopped session.
	h.process(foreground, stopResource(4*time.Second, "r1"))
	if n := len(h.writer.resourceEvents()); n != 1 {
		t.Fatalf("resource events = %d, want 1", n)
	}
	if len(h.app.Sessions()) != 0 {
		t.Errorf("drained session should be removed, sessions = %d", len(h.app.Sessions()))
	}

	h.process(foreground, domain.AddUserAction{CommandBase: at(5 * time.Second), ActionType: domain.ActionTypeTap, ActionName: "Buy"})

	next := h.app.ActiveSession()
	if next == nil {
		t.Fatal("user interaction should start a new session")
	}
	if next.ID() == stopped.ID() {
		t.Error("new session reuses the stopped session id")
	}
	if next.precondition != domain.SessionPreconditionExplicitStop {
		t.Errorf("precondition = %q, want explicit_stop", next.precondition)
	}
	restarted := next.activeView()
	if restarted == nil || restarted.name != "Home" {
		t.Fatalf("restarted view = %+v, want Home", restarted)
	}
	if restarted.action == nil {
		t.Error("tap should be pending on the restarted view")
	}
}

func TestApplication_StartViewAfterStopDoesNotRestartLastView(t *testing.T) {
	h := newHarness(t)

	h.process(foreground,
		startView(0, "home", "Home"),
		domain.StopSession{CommandBase: at(time.Second)},
		startView(2*time.Second, "cart", "Cart"),
	)

	s := h.app.ActiveSession()
	if s == nil {
		t.Fatal("StartView should start a new session")
	}
	if len(s.Views()) != 1 || s.Views()[0].name != "Cart" {
		t.Fatalf("views = %d, want only Cart", len(s.Views()))
	}
}

func TestApplication_ContextSnapshot(t *testing.T) {
	h := newHarness(t)
	h.process(foreground,
		startView(0, "home", "Home"),
		domain.StartUserAction{CommandBase: at(time.Second), ActionType: domain.ActionTypeScroll, ActionName: "list"},
	)

	ctx := h.app.Context()
	view := h.app.ActiveSession().activeView()
	if ctx.ApplicationID != "app-id" || !ctx.IsSessionActive {
		t.Errorf("context = %+v", ctx)
	}
	if ctx.ActiveViewID == nil || *ctx.ActiveViewID != view.ID() {
		t.Errorf("ActiveViewID = %v, want %s", ctx.ActiveViewID, view.ID())
	}
	if ctx.ActiveViewPath != "home" || ctx.ActiveViewName != "Home" {
		t.Errorf("active view = (%s, %s), want (home, Home)", ctx.ActiveViewPath, ctx.ActiveViewName)
	}
	if ctx.ActiveUserActionID == nil || *ctx.ActiveUserActionID != view.action.ID() {
		t.Errorf("ActiveUserActionID = %v, want pending action", ctx.ActiveUserActionID)
	}
}

func TestApplication_Sampling(t *testing.T) {
	commands := func() []domain.Command {
		return []domain.Command{
			startView(0, "home", "Home"),
			startResource(time.Second, "r1", "https://api/a"),
			stopResource(2*time.Second, "r1"),
			domain.AddUserAction{CommandBase: at(3 * time.Second), ActionType: domain.ActionTypeCustom, ActionName: "c"},
			viewError(4*time.Second, "boom"),
			domain.AddLongTask{CommandBase: at(5 * time.Second), Duration: time.Second},
			stopView(6*time.Second, "home"),
		}
	}

	t.Run("rate 0 writes nothing", func(t *testing.T) {
		h := newHarness(t, withSampler(sampling.NewProbabilitySampler(0, 1)))
		h.process(foreground, commands()...)

		if n := len(h.writer.events); n != 0 {
			t.Fatalf("events written = %d, want 0", n)
		}
		if got := h.app.Context().SessionID; !got.IsNull() {
			t.Errorf("SessionID = %s, want null", got)
		}
		if len(h.app.Sessions()) != 1 {
			t.Errorf("unsampled session should still be tracked, sessions = %d", len(h.app.Sessions()))
		}
	})

	t.Run("rate 100 writes everything", func(t *testing.T) {
		h := newHarness(t, withSampler(sampling.NewProbabilitySampler(100, 1)))
		h.process(foreground, commands()...)

		for _, typ := range []domain.EventType{domain.EventTypeView, domain.EventTypeAction, domain.EventTypeResource, domain.EventTypeError, domain.EventTypeLongTask} {
			if h.writer.count(typ) == 0 {
				t.Errorf("no %s event written", typ)
			}
		}
	})

	t.Run("rate 50 over 400 sessions", func(t *testing.T) {
		sampler := sampling.NewProbabilitySampler(50, 7)
		emitting := 0
		for i := 0; i < 400; i++ {
			h := newHarness(t, withSampler(sampler))
			h.process(foreground, commands()...)
			if len(h.writer.events) > 0 {
				emitting++
			}
		}
		if emitting < 120 || emitting > 280 {
			t.Errorf("sessions with events = %d of 400, want within [120, 280]", emitting)
		}
	})
}
