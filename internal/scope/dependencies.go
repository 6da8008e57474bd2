// Package scope implements the RUM scope tree: Application, Session, View,
// Resource and UserAction scopes. Every scope exposes Process, which handles a
// single command and reports whether the scope must be kept alive. All
// processing happens on one goroutine owned by the runtime monitor.
package scope

import (
	"log/slog"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
)

// eventFormatVersion is reported in the _dd block of every event.
const eventFormatVersion = 2

// Settings are the read-only knobs consumed by the scope tree.
type Settings struct {
	ApplicationID string

	SessionMaxDuration       time.Duration
	SessionInactivityTimeout time.Duration

	DiscreteActionTimeout       time.Duration
	ContinuousActionMaxDuration time.Duration

	BackgroundEventsTracking bool
	FrustrationsTracking     bool

	// MinViewDurationForRates gates slow frame and freeze rates.
	MinViewDurationForRates time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		SessionMaxDuration:          4 * time.Hour,
		SessionInactivityTimeout:    15 * time.Minute,
		DiscreteActionTimeout:       100 * time.Millisecond,
		ContinuousActionMaxDuration: 10 * time.Second,
		FrustrationsTracking:        true,
		MinViewDurationForRates:     time.Second,
	}
}

// SettingsFromConfig maps the loaded configuration onto scope settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ApplicationID:               cfg.Application.ID,
		SessionMaxDuration:          cfg.Session.MaxDuration,
		SessionInactivityTimeout:    cfg.Session.InactivityTimeout,
		DiscreteActionTimeout:       cfg.Actions.DiscreteTimeout,
		ContinuousActionMaxDuration: cfg.Actions.ContinuousMaxDuration,
		BackgroundEventsTracking:    cfg.Tracking.BackgroundEvents,
		FrustrationsTracking:        cfg.Tracking.Frustrations,
		MinViewDurationForRates:     cfg.Views.MinRateDuration,
	}
}

// Dependencies are the collaborators shared by every scope of one tree.
// Nil fields are replaced with no-op implementations by NewApplicationScope.
type Dependencies struct {
	Settings Settings

	Sampler ports.Sampler
	Writer  ports.EventWriter
	UUIDs   ports.UUIDGenerator

	TNSFactory     ports.TNSMetricFactory
	INVTracker     ports.INVMetricTracker
	HitchesFactory ports.ViewHitchesFactory

	Logger *slog.Logger

	// OnSessionStart is called for every new session, sampled or not.
	OnSessionStart func(precondition domain.SessionPrecondition, sampled bool)
}

func (d *Dependencies) applyDefaults() {
	if d.Sampler == nil {
		d.Sampler = acceptAll{}
	}
	if d.Writer == nil {
		d.Writer = discardWriter{}
	}
	if d.UUIDs == nil {
		d.UUIDs = randomUUIDs{}
	}
	if d.TNSFactory == nil {
		d.TNSFactory = func(time.Time, string) ports.TNSMetricTracker { return noopTNS{} }
	}
	if d.INVTracker == nil {
		d.INVTracker = noopINV{}
	}
	if d.HitchesFactory == nil {
		d.HitchesFactory = func() ports.ViewHitchesTracker { return noopHitches{} }
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.OnSessionStart == nil {
		d.OnSessionStart = func(domain.SessionPrecondition, bool) {}
	}
}

type acceptAll struct{}

func (acceptAll) Sample(string) bool { return true }
func (acceptAll) Rate() float64 { return 100 }

type discardWriter struct{}

func (discardWriter) Write(domain.Event) bool { return true }

type randomUUIDs struct{}

func (randomUUIDs) NewUUID() domain.RUMUUID { return domain.NewRUMUUID() }

type noopTNS struct{}

func (noopTNS) TrackResourceStart(time.Time, domain.RUMUUID, string) {}
func (noopTNS) TrackResourceEnd(time.Time, domain.RUMUUID, time.Duration) {}
func (noopTNS) TrackResourceDropped(domain.RUMUUID) {}
func (noopTNS) TrackViewWasStopped() {}
func (noopTNS) Value(time.Time, domain.ApplicationState) (time.Duration, bool) {
	return 0, false
}

type noopINV struct{}

func (noopINV) TrackAction(time.Time, time.Time, string, domain.ActionType, domain.RUMUUID) {}
func (noopINV) TrackViewStart(time.Time, string, domain.RUMUUID) {}
func (noopINV) TrackViewComplete(domain.RUMUUID) {}
func (noopINV) Value(domain.RUMUUID) (time.Duration, bool) { return 0, false }

type noopHitches struct{}

func (noopHitches) Start(time.Time) {}
func (noopHitches) Stop(time.Time) {}
func (noopHitches) Snapshot() domain.HitchesSnapshot { return domain.HitchesSnapshot{} }

// mergeAttributes returns a new map holding base overridden by extra.
func mergeAttributes(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func nanos(d time.Duration) int64 { return int64(d) }

// positiveDuration clamps non-positive durations to 1ns.
func positiveDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}
