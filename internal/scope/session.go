package scope

import (
	"log/slog"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

type sessionEnd int

const (
	sessionRunning sessionEnd = iota
	sessionStopped
	sessionInactivityTimeout
	sessionMaxDuration
)

// precondition maps an expiry to the precondition of the session replacing it.
func (e sessionEnd) precondition() domain.SessionPrecondition {
	switch e {
	case sessionInactivityTimeout:
		return domain.SessionPreconditionInactivityTimeout
	case sessionMaxDuration:
		return domain.SessionPreconditionMaxDuration
	default:
		return domain.SessionPreconditionExplicitStop
	}
}

// SessionScope owns the views of one session. It expires after the maximum
// session duration or the inactivity timeout, and can be stopped explicitly,
// in which case it stays around until its views have no pending work.
type SessionScope struct {
	app    *ApplicationScope
	deps   *Dependencies
	logger *slog.Logger

	id               domain.RUMUUID
	isSampled        bool
	isInitialSession bool
	isActive         bool
	end              sessionEnd
	precondition     domain.SessionPrecondition
	startTime        time.Time
	lastActivity     time.Time

	views      []*ViewScope
	viewsTotal int
	// stoppedView is the view that was active when the session was stopped.
	stoppedView *viewStart
}

func newSessionScope(app *ApplicationScope, at time.Time, initial bool, precondition domain.SessionPrecondition) *SessionScope {
	deps := app.deps
	id := deps.UUIDs.NewUUID()
	sampled := deps.Sampler.Sample(id.String())
	if !sampled {
		id = domain.NullUUID
	}

	s := &SessionScope{
		app:              app,
		deps:             deps,
		id:               id,
		isSampled:        sampled,
		isInitialSession: initial,
		isActive:         true,
		precondition:     precondition,
		startTime:        at,
		lastActivity:     at,
	}
	s.logger = deps.Logger.With(slog.String("session_id", id.String()))
	deps.OnSessionStart(precondition, sampled)
	s.logger.Debug("session started",
		slog.String("precondition", string(precondition)),
		slog.Bool("sampled", sampled))
	return s
}

// ID returns the session identifier, or the null UUID when unsampled.
func (s *SessionScope) ID() domain.RUMUUID { return s.id }

// IsActive reports whether the session was neither stopped nor expired.
func (s *SessionScope) IsActive() bool { return s.isActive }

// Views returns the views still owned by the session, oldest first.
func (s *SessionScope) Views() []*ViewScope { return s.views }

func (s *SessionScope) sampled() bool { return s.isSampled }

func (s *SessionScope) sessionContext() domain.ScopeContext {
	return domain.ScopeContext{
		ApplicationID:       s.deps.Settings.ApplicationID,
		SessionID:           s.id,
		IsSessionActive:     s.isActive,
		SessionPrecondition: s.precondition,
	}
}

func (s *SessionScope) scopeContext() domain.ScopeContext {
	if v := s.activeView(); v != nil {
		return v.scopeContext()
	}
	return s.sessionContext()
}

// activeView returns the most recent view that was not stopped.
func (s *SessionScope) activeView() *ViewScope {
	for i := len(s.views) - 1; i >= 0; i-- {
		if s.views[i].isActive {
			return s.views[i]
		}
	}
	return nil
}

func (s *SessionScope) expiry(at time.Time) sessionEnd {
	switch {
	case at.Sub(s.startTime) >= s.deps.Settings.SessionMaxDuration:
		return sessionMaxDuration
	case at.Sub(s.lastActivity) >= s.deps.Settings.SessionInactivityTimeout:
		return sessionInactivityTimeout
	default:
		return sessionRunning
	}
}

// Process handles one command. It returns false when the session expired,
// or when it was stopped and no view has pending work left.
func (s *SessionScope) Process(cmd domain.Command, sdk domain.SDKContext) bool {
	at := cmd.CommandTime()

	if end := s.expiry(at); end != sessionRunning {
		s.logger.Debug("session expired", slog.String("reason", string(end.precondition())))
		if s.isActive {
			s.isActive = false
			s.end = end
		}
		s.terminate(at)
		return false
	}

	if !s.isActive {
		return s.processInactive(cmd, sdk)
	}

	if cmd.IsUserInteraction() {
		s.lastActivity = at
	}

	switch c := cmd.(type) {
	case domain.KeepSessionAlive:
		s.lastActivity = at
		s.tick(cmd, sdk)
		return true
	case domain.StartView:
		s.broadcast(cmd, sdk)
		s.startView(viewStart{identity: c.Identity, path: c.Path, name: c.DisplayName(), attributes: c.Attributes, at: c.Time}, sdk)
		return true
	case domain.StopView:
		s.broadcast(cmd, sdk)
		return true
	case domain.StopSession:
		if v := s.activeView(); v != nil {
			s.stoppedView = &viewStart{identity: v.identity, path: v.path, name: v.name, attributes: v.attributes}
		}
		s.isActive = false
		s.end = sessionStopped
		s.broadcast(cmd, sdk)
		return len(s.views) > 0
	case domain.ApplicationStart:
		if s.canStartApplicationLaunchView(cmd, sdk) {
			s.startView(s.applicationLaunchView(at), sdk)
		}
		s.tick(cmd, sdk)
		return true
	}

	target := s.target(cmd)
	if target == nil {
		target = s.startImplicitView(cmd, sdk)
	}
	if target == nil {
		switch cmd.(type) {
		case domain.StopResource, domain.StopResourceWithError, domain.AddResourceMetrics:
			s.logger.Debug("no view owns the resource", slog.String("command", cmd.CommandName()))
		default:
			s.logger.Warn("command ignored, no active view",
				slog.String("command", cmd.CommandName()))
		}
	}
	s.dispatch(cmd, sdk, target)
	return true
}

// processInactive lets a stopped session finish the resources it still owns.
func (s *SessionScope) processInactive(cmd domain.Command, sdk domain.SDKContext) bool {
	var target *ViewScope
	switch cmd.(type) {
	case domain.StopResource, domain.StopResourceWithError, domain.AddResourceMetrics:
		target = s.resourceOwner(cmd.(domain.ResourceCommand).ResourceKey())
	default:
		s.logger.Debug("session stopped, command ignored", slog.String("command", cmd.CommandName()))
	}
	s.dispatch(cmd, sdk, target)
	return len(s.views) > 0
}

// target picks the view a command is addressed to.
func (s *SessionScope) target(cmd domain.Command) *ViewScope {
	switch c := cmd.(type) {
	case domain.StopResource, domain.StopResourceWithError, domain.AddResourceMetrics:
		return s.resourceOwner(c.(domain.ResourceCommand).ResourceKey())
	case domain.AddCurrentViewError, domain.AddCurrentViewAppHang, domain.AddLongTask:
		if v := s.activeView(); v != nil {
			return v
		}
		if n := len(s.views); n > 0 {
			return s.views[n-1]
		}
		return nil
	default:
		return s.activeView()
	}
}

func (s *SessionScope) resourceOwner(key string) *ViewScope {
	for i := len(s.views) - 1; i >= 0; i-- {
		if _, ok := s.views[i].resources[key]; ok {
			return s.views[i]
		}
	}
	return nil
}

// dispatch routes cmd to target and ticks every other view, dropping the
// views that completed.
func (s *SessionScope) dispatch(cmd domain.Command, sdk domain.SDKContext, target *ViewScope) {
	kept := s.views[:0]
	for _, v := range s.views {
		if v.Process(cmd, sdk, v == target) {
			kept = append(kept, v)
		}
	}
	clear(s.views[len(kept):])
	s.views = kept
}

func (s *SessionScope) broadcast(cmd domain.Command, sdk domain.SDKContext) {
	kept := s.views[:0]
	for _, v := range s.views {
		if v.Process(cmd, sdk, true) {
			kept = append(kept, v)
		}
	}
	clear(s.views[len(kept):])
	s.views = kept
}

// terminate releases the trackers of every view still owned by an expired
// session.
func (s *SessionScope) terminate(at time.Time) {
	for _, v := range s.views {
		v.release(at)
	}
}

func (s *SessionScope) tick(cmd domain.Command, sdk domain.SDKContext) {
	s.dispatch(cmd, sdk, nil)
}

func (s *SessionScope) startView(vs viewStart, sdk domain.SDKContext) *ViewScope {
	vs.initial = s.isInitialSession && s.viewsTotal == 0
	v := newViewScope(s, s.deps, vs)
	s.views = append(s.views, v)
	s.viewsTotal++
	v.start(sdk)
	return v
}

func (s *SessionScope) canStartApplicationLaunchView(cmd domain.Command, sdk domain.SDKContext) bool {
	return s.isInitialSession && s.viewsTotal == 0 && !sdk.IsBackgrounded() && cmd.CanStartApplicationLaunchView()
}

func (s *SessionScope) applicationLaunchView(at time.Time) viewStart {
	return viewStart{
		identity: domain.ViewIdentity(domain.ApplicationLaunchViewPath),
		path:     domain.ApplicationLaunchViewPath,
		name:     domain.ApplicationLaunchViewName,
		at:       at,
	}
}

// startImplicitView creates the application launch or background view when
// no view can receive cmd.
func (s *SessionScope) startImplicitView(cmd domain.Command, sdk domain.SDKContext) *ViewScope {
	at := cmd.CommandTime()
	switch {
	case s.canStartApplicationLaunchView(cmd, sdk):
		return s.startView(s.applicationLaunchView(at), sdk)
	case sdk.IsBackgrounded() && s.deps.Settings.BackgroundEventsTracking && cmd.CanStartBackgroundView():
		return s.startView(viewStart{
			identity: domain.ViewIdentity(domain.BackgroundViewPath),
			path:     domain.BackgroundViewPath,
			name:     domain.BackgroundViewName,
			at:       at,
		}, sdk)
	default:
		return nil
	}
}

// resumable describes the active views to recreate in a replacement session.
func (s *SessionScope) resumable() []viewStart {
	var out []viewStart
	for _, v := range s.views {
		if !v.isActive {
			continue
		}
		out = append(out, viewStart{identity: v.identity, path: v.path, name: v.name, attributes: v.attributes})
	}
	return out
}
