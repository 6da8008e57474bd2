// Package rum provides the public API for embedding the RUM core.
// This is the stable API for external consumers.
//
//	monitor, err := rum.Initialize(ctx,
//	    rum.WithFileConfig("rum.yaml"),
//	    rum.WithWriter(sink),
//	)
//	...
//	rum.Submit(ctx, rum.StartView{CommandBase: rum.At(time.Now()), Identity: "home", Path: "Home"})
//	...
//	rum.Shutdown(ctx)
package rum

import (
	"context"
	"fmt"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/registry"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/runtime"
)

// Monitor records RUM commands. See internal/runtime.Monitor for full
// documentation.
type Monitor = runtime.Monitor

// Option is a functional option for configuring a Monitor.
type Option = runtime.Option

// New creates a Monitor that is not registered as the process default.
var New = runtime.New

// Configuration options
var (
	WithConfig         = runtime.WithConfig
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	WithLogger  = runtime.WithLogger
	WithWriter  = runtime.WithWriter
	WithSampler = runtime.WithSampler
	WithMetrics = runtime.WithMetrics
	WithTracer  = runtime.WithTracer
	WithClock   = runtime.WithClock

	WithTNSTracker       = runtime.WithTNSTracker
	WithINVTracker       = runtime.WithINVTracker
	WithHitchesTracker   = runtime.WithHitchesTracker
	WithDefaultTrackers  = runtime.WithDefaultTrackers
	WithAppStateProvider = runtime.WithAppStateProvider
	WithLaunchTime       = runtime.WithLaunchTime
)

// Commands
type (
	Command                  = domain.Command
	CommandBase              = domain.CommandBase
	StartView                = domain.StartView
	StopView                 = domain.StopView
	ApplicationStart         = domain.ApplicationStart
	StartResource            = domain.StartResource
	StopResource             = domain.StopResource
	StopResourceWithError    = domain.StopResourceWithError
	AddResourceMetrics       = domain.AddResourceMetrics
	StartUserAction          = domain.StartUserAction
	StopUserAction           = domain.StopUserAction
	AddUserAction            = domain.AddUserAction
	AddCurrentViewError      = domain.AddCurrentViewError
	AddCurrentViewAppHang    = domain.AddCurrentViewAppHang
	AddLongTask              = domain.AddLongTask
	AddViewTiming            = domain.AddViewTiming
	AddFeatureFlagEvaluation = domain.AddFeatureFlagEvaluation
	SetInternalViewAttribute = domain.SetInternalViewAttribute
	StopSession              = domain.StopSession
	KeepSessionAlive         = domain.KeepSessionAlive

	ScopeContext = domain.ScopeContext
	Event        = domain.Event
)

// At returns a command base dated at t.
func At(t time.Time) CommandBase {
	return CommandBase{Time: t}
}

var defaultRegistry = registry.New()

// Initialize creates and starts a Monitor and registers it as the process
// default.
func Initialize(ctx context.Context, opts ...Option) (*Monitor, error) {
	m, err := runtime.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := defaultRegistry.Register(m); err != nil {
		return nil, err
	}
	if err := m.Start(ctx); err != nil {
		_ = defaultRegistry.Reset(ctx)
		return nil, fmt.Errorf("start monitor: %w", err)
	}
	return m, nil
}

// Default returns the process default monitor.
func Default() (*Monitor, error) {
	return defaultRegistry.Default()
}

// Submit records a command on the process default monitor.
func Submit(ctx context.Context, cmd Command) error {
	m, err := defaultRegistry.Default()
	if err != nil {
		return err
	}
	return m.Submit(ctx, cmd)
}

// CurrentContext returns the scope context of the process default monitor.
func CurrentContext() (ScopeContext, error) {
	m, err := defaultRegistry.Default()
	if err != nil {
		return ScopeContext{}, err
	}
	return m.CurrentContext(), nil
}

// Shutdown stops and unregisters the process default monitor.
func Shutdown(ctx context.Context) error {
	return defaultRegistry.Reset(ctx)
}
