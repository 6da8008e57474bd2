package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/adapters/config/file"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/metrics"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/telemetry"
)

// Option is a functional option for configuring a Monitor.
type Option func(*Monitor) error

// WithConfig uses a static configuration.
func WithConfig(cfg *config.Config) Option {
	return func(m *Monitor) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		m.config = cfg
		return nil
	}
}

// WithFileConfig loads configuration from a YAML file and reloads the session
// sample rate when the file changes.
func WithFileConfig(path string) Option {
	return func(m *Monitor) error {
		provider, err := file.NewProvider(path, m.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		m.provider = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(m *Monitor) error {
		m.provider = provider
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) error {
		m.logger = logger
		return nil
	}
}

// WithWriter sets the event sink.
func WithWriter(writer ports.EventWriter) Option {
	return func(m *Monitor) error {
		m.writer = writer
		return nil
	}
}

// WithSampler overrides the sampler built from configuration. Config reloads
// replace it.
func WithSampler(sampler ports.Sampler) Option {
	return func(m *Monitor) error {
		m.sampler = sampler
		return nil
	}
}

// WithTNSTracker sets the Time-to-Network-Settled tracker factory.
func WithTNSTracker(factory ports.TNSMetricFactory) Option {
	return func(m *Monitor) error {
		m.tns = factory
		return nil
	}
}

// WithINVTracker sets the Interaction-to-Next-View tracker.
func WithINVTracker(tracker ports.INVMetricTracker) Option {
	return func(m *Monitor) error {
		m.inv = tracker
		return nil
	}
}

// WithHitchesTracker sets the view hitches tracker factory.
func WithHitchesTracker(factory ports.ViewHitchesFactory) Option {
	return func(m *Monitor) error {
		m.hitches = factory
		return nil
	}
}

// WithDefaultTrackers installs the built-in TNS and INV trackers configured
// from cfg and the hitches trackers of monitor.
func WithDefaultTrackers(cfg config.MetricsConfig, monitor *metrics.HitchesMonitor) Option {
	return func(m *Monitor) error {
		m.tns = metrics.NewTNSFactory(cfg.TNSInitialResourceThreshold)
		m.inv = metrics.NewINVTracker(cfg.INVMaxDuration)
		if monitor != nil {
			m.hitches = monitor.Factory()
		}
		return nil
	}
}

// WithAppStateProvider sets how the foreground/background state is read.
func WithAppStateProvider(provider AppStateProvider) Option {
	return func(m *Monitor) error {
		if provider == nil {
			return fmt.Errorf("app state provider must not be nil")
		}
		m.appState = provider
		return nil
	}
}

// WithLaunchTime sets the measured application launch duration reported by
// the application_start action.
func WithLaunchTime(d time.Duration) Option {
	return func(m *Monitor) error {
		m.launch = d
		return nil
	}
}

// WithClock sets the clock that dates commands received without a time and
// seeds the sampler.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) error {
		m.clock = clock
		return nil
	}
}

// WithMetrics records self metrics.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Monitor) error {
		m.metrics = metrics
		return nil
	}
}

// WithTracer sets the tracer used for command processing spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Monitor) error {
		m.tracer = tracer
		return nil
	}
}

// Background is an AppStateProvider that always reports background.
func Background() domain.ApplicationState { return domain.ApplicationStateBackground }
