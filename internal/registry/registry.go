// Package registry holds the swappable handle to the default RUM monitor used
// by the public entry points.
//
// A Registry is an ordinary value: the process default lives in pkg/rum, and
// tests create their own instead of touching process-wide state.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/runtime"
)

var (
	// ErrAlreadyRegistered is returned when a monitor is registered twice.
	ErrAlreadyRegistered = errors.New("a monitor is already registered")

	// ErrNotRegistered is returned when no monitor was registered.
	ErrNotRegistered = errors.New("no monitor registered")
)

// Registry holds at most one monitor.
type Registry struct {
	mu      sync.RWMutex
	monitor *runtime.Monitor
}

func New() *Registry {
	return &Registry{}
}

// Register installs m as the default monitor.
func (r *Registry) Register(m *runtime.Monitor) error {
	if m == nil {
		return errors.New("monitor must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.monitor != nil {
		return ErrAlreadyRegistered
	}
	r.monitor = m
	return nil
}

// Default returns the registered monitor.
func (r *Registry) Default() (*runtime.Monitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.monitor == nil {
		return nil, ErrNotRegistered
	}
	return r.monitor, nil
}

// Reset removes the registered monitor and shuts it down.
func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	m := r.monitor
	r.monitor = nil
	r.mu.Unlock()

	if m == nil {
		return nil
	}
	return m.Shutdown(ctx)
}
