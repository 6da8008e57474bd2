package scope

import (
	"log/slog"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

// ApplicationScope is the root of the scope tree. It owns at most one active
// session plus stopped sessions that still drain pending resources.
type ApplicationScope struct {
	deps   *Dependencies
	logger *slog.Logger

	sessions []*SessionScope
	started  bool
	// lastEnd is how the most recent active session ended.
	lastEnd sessionEnd
	// stoppedView is restarted when a user interaction revives a stopped session.
	stoppedView *viewStart
}

// NewApplicationScope returns an empty scope tree.
func NewApplicationScope(deps Dependencies) *ApplicationScope {
	deps.applyDefaults()
	return &ApplicationScope{
		deps:   &deps,
		logger: deps.Logger,
	}
}

// ActiveSession returns the active session, or nil.
func (a *ApplicationScope) ActiveSession() *SessionScope {
	if n := len(a.sessions); n > 0 && a.sessions[n-1].isActive {
		return a.sessions[n-1]
	}
	return nil
}

// Sessions returns every session still owned, oldest first.
func (a *ApplicationScope) Sessions() []*SessionScope { return a.sessions }

// Context returns a snapshot of the active session and view.
func (a *ApplicationScope) Context() domain.ScopeContext {
	if s := a.ActiveSession(); s != nil {
		return s.scopeContext()
	}
	return domain.ScopeContext{
		ApplicationID: a.deps.Settings.ApplicationID,
		SessionID:     domain.NullUUID,
	}
}

// Process routes cmd through the tree. The application scope is never
// removed, so it always returns true.
func (a *ApplicationScope) Process(cmd domain.Command, sdk domain.SDKContext) bool {
	if a.ActiveSession() == nil {
		a.startSessionIfNeeded(cmd, sdk)
	}

	var kept []*SessionScope
	for _, s := range a.sessions {
		wasActive := s.isActive
		if s.Process(cmd, sdk) {
			kept = append(kept, s)
		}
		if !wasActive || s.isActive {
			continue
		}

		a.lastEnd = s.end
		switch s.end {
		case sessionStopped:
			a.stoppedView = s.stoppedView
		case sessionInactivityTimeout, sessionMaxDuration:
			a.stoppedView = nil
			if !cmd.CanStartSession() {
				a.logger.Debug("session expired, command cannot start a new one",
					slog.String("command", cmd.CommandName()))
				continue
			}
			next := a.replaceSession(s, cmd, sdk)
			if next.Process(cmd, sdk) {
				kept = append(kept, next)
			}
		}
	}
	a.sessions = kept
	return true
}

// startSessionIfNeeded opens a session when none is active and cmd may start one.
func (a *ApplicationScope) startSessionIfNeeded(cmd domain.Command, sdk domain.SDKContext) {
	at := cmd.CommandTime()

	switch {
	case !a.started:
		if !cmd.CanStartSession() {
			return
		}
		precondition := domain.SessionPreconditionUserAppLaunch
		if sdk.IsBackgrounded() {
			precondition = domain.SessionPreconditionBackgroundLaunch
		}
		a.started = true
		a.sessions = append(a.sessions, newSessionScope(a, at, true, precondition))

	case a.lastEnd == sessionStopped:
		if !cmd.IsUserInteraction() {
			a.logger.Debug("session stopped, waiting for a user interaction",
				slog.String("command", cmd.CommandName()))
			return
		}
		s := newSessionScope(a, at, false, domain.SessionPreconditionExplicitStop)
		a.sessions = append(a.sessions, s)
		if _, isStartView := cmd.(domain.StartView); !isStartView && a.stoppedView != nil {
			restart := *a.stoppedView
			restart.at = at
			s.startView(restart, sdk)
		}
		a.stoppedView = nil

	default:
		if !cmd.CanStartSession() {
			return
		}
		a.sessions = append(a.sessions, newSessionScope(a, at, false, a.lastEnd.precondition()))
	}
}

// replaceSession opens a session after expired ended, resuming its active
// views under new ids starting at the command time.
func (a *ApplicationScope) replaceSession(expired *SessionScope, cmd domain.Command, sdk domain.SDKContext) *SessionScope {
	at := cmd.CommandTime()
	next := newSessionScope(a, at, false, expired.end.precondition())
	for _, vs := range expired.resumable() {
		vs.at = at
		next.startView(vs, sdk)
	}
	return next
}
