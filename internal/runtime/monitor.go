// Package runtime provides the Monitor, the actor that owns the RUM scope tree
// and serializes every command onto a single processing goroutine.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/sampling"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/scope"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/telemetry"
)

// DefaultQueueSize is the command queue capacity when none is configured.
const DefaultQueueSize = 1024

// AppStateProvider reports the host application state when a command is
// submitted.
type AppStateProvider func() domain.ApplicationState

type envelope struct {
	cmd      domain.Command
	appState domain.ApplicationState
	flushed  chan struct{}
}

// Monitor is the entry point for recording RUM commands.
// Submit may be called from any goroutine; commands are processed in
// submission order on the monitor goroutine.
type Monitor struct {
	// Dependencies (injected via options)
	config   *config.Config
	provider ports.ConfigProvider
	writer   ports.EventWriter
	sampler  ports.Sampler
	tns      ports.TNSMetricFactory
	inv      ports.INVMetricTracker
	hitches  ports.ViewHitchesFactory
	appState AppStateProvider
	launch   time.Duration
	clock    func() time.Time
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger

	// Internal state, owned by the processing goroutine
	app         *scope.ApplicationScope
	liveSampler *sampling.Swappable
	queue       chan envelope
	current     atomic.Pointer[domain.ScopeContext]

	// Lifecycle management
	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New creates a Monitor with the given options.
// Without options it uses the default configuration, samples every session
// and discards events.
func New(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		logger:   slog.Default(),
		appState: func() domain.ApplicationState { return domain.ApplicationStateForeground },
		clock:    time.Now,
		tracer:   telemetry.Tracer(),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if m.config == nil && m.provider != nil {
		cfg, err := m.provider.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		m.config = cfg
	}

	settings := scope.DefaultSettings()
	queueSize := DefaultQueueSize
	if m.config != nil {
		settings = scope.SettingsFromConfig(m.config)
		if m.config.Queue.Size > 0 {
			queueSize = m.config.Queue.Size
		}
	}

	if m.sampler == nil {
		m.sampler = m.samplerFromConfig(m.config)
	}
	m.liveSampler = sampling.NewSwappable(m.sampler)

	m.app = scope.NewApplicationScope(scope.Dependencies{
		Settings:       settings,
		Sampler:        m.liveSampler,
		Writer:         m.writer,
		TNSFactory:     m.tns,
		INVTracker:     m.inv,
		HitchesFactory: m.hitches,
		Logger:         m.logger,
		OnSessionStart: func(precondition domain.SessionPrecondition, sampled bool) {
			m.metrics.SessionStarted(string(precondition), sampled)
			m.logger.Debug("session started",
				slog.String("precondition", string(precondition)),
				slog.Bool("sampled", sampled))
		},
	})
	m.queue = make(chan envelope, queueSize)

	initial := m.app.Context()
	m.current.Store(&initial)

	return m, nil
}

func (m *Monitor) samplerFromConfig(cfg *config.Config) ports.Sampler {
	if cfg == nil {
		return sampling.New(100, false, uint64(m.clock().UnixNano()))
	}
	return sampling.New(cfg.Sampling.SessionSampleRate, cfg.Sampling.Deterministic, uint64(m.clock().UnixNano()))
}

// Start launches the processing goroutine and, if a config provider was
// given, watches it for sample rate changes.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return domain.ErrMonitorStopped
	}
	if m.started {
		return errors.New("monitor already started")
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.group, ctx = errgroup.WithContext(ctx)

	m.group.Go(func() error {
		m.run(ctx)
		return nil
	})

	if m.provider != nil {
		if err := m.provider.Watch(ctx, m.reload); err != nil {
			m.logger.Warn("config watch unavailable", slog.String("error", err.Error()))
		}
	}

	m.started = true
	m.logger.Info("rum monitor started",
		slog.Int("queue_size", cap(m.queue)),
		slog.Float64("session_sample_rate", m.liveSampler.Rate()))
	return nil
}

// reload applies a new configuration. Only the sampler changes: the running
// scope tree is never mutated.
func (m *Monitor) reload(cfg *config.Config) {
	next := m.samplerFromConfig(cfg)
	m.liveSampler.Swap(next)
	m.logger.Info("session sampler reloaded", slog.Float64("session_sample_rate", next.Rate()))
}

// Submit enqueues a command. It blocks while the queue is full until ctx is
// done.
func (m *Monitor) Submit(ctx context.Context, cmd domain.Command) error {
	return m.enqueue(ctx, envelope{cmd: cmd, appState: m.appState()})
}

// Flush waits until every command submitted before it has been processed.
func (m *Monitor) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	if err := m.enqueue(ctx, envelope{flushed: flushed}); err != nil {
		return err
	}
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) enqueue(ctx context.Context, env envelope) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stopped {
		return domain.ErrMonitorStopped
	}

	select {
	case m.queue <- env:
		m.metrics.SetQueueDepth(len(m.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Now reads the monitor clock.
func (m *Monitor) Now() time.Time {
	return m.clock()
}

// QueueStats reports how many commands are waiting and the queue capacity.
func (m *Monitor) QueueStats() (depth, capacity int) {
	return len(m.queue), cap(m.queue)
}

// CurrentContext returns the scope context published after the last
// processed command. Safe to call from any goroutine.
func (m *Monitor) CurrentContext() domain.ScopeContext {
	return *m.current.Load()
}

func (m *Monitor) run(ctx context.Context) {
	for env := range m.queue {
		m.metrics.SetQueueDepth(len(m.queue))
		if env.flushed != nil {
			close(env.flushed)
			continue
		}
		m.process(ctx, env.cmd, env.appState)
	}
}

func (m *Monitor) process(ctx context.Context, cmd domain.Command, state domain.ApplicationState) {
	_, span := m.tracer.Start(ctx, "rum.process",
		trace.WithAttributes(attribute.String("rum.command", cmd.CommandName())))
	defer span.End()

	m.app.Process(cmd, m.sdkContext(state))

	snapshot := m.app.Context()
	m.current.Store(&snapshot)
	m.metrics.CommandProcessed(cmd.CommandName())

	span.SetAttributes(
		attribute.String("rum.session_id", snapshot.SessionID.String()),
		attribute.Bool("rum.session_active", snapshot.IsSessionActive))
}

func (m *Monitor) sdkContext(state domain.ApplicationState) domain.SDKContext {
	sdk := domain.SDKContext{
		ApplicationState: state,
		LaunchTime:       m.launch,
	}
	if m.config != nil {
		sdk.Service = m.config.Application.Service
		sdk.Version = m.config.Application.Version
		sdk.Source = m.config.Application.Source
	}
	return sdk
}

// Shutdown stops accepting commands, drains the queue and waits for the
// processing goroutine to exit.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	close(m.queue)
	started := m.started
	m.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.cancel()
	if m.provider != nil {
		if cerr := m.provider.Close(); cerr != nil {
			m.logger.Error("failed to close config provider", slog.String("error", cerr.Error()))
		}
	}

	m.logger.Info("rum monitor stopped")
	return err
}
