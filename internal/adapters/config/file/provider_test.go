package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestNewProvider_EmptyPath(t *testing.T) {
	if _, err := NewProvider("", nil); err == nil {
		t.Fatal("NewProvider(\"\") error = nil, want error")
	}
}

func TestProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rum.yaml")
	writeConfig(t, path, "sampling:\n  session_sample_rate: 40\n")

	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Close()

	cfg, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sampling.SessionSampleRate != 40 {
		t.Errorf("SessionSampleRate = %v, want 40", cfg.Sampling.SessionSampleRate)
	}
	if p.Current() != cfg {
		t.Error("Current() should return the loaded config")
	}
}

func TestProvider_LoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rum.yaml")
	writeConfig(t, path, "sampling:\n  session_sample_rate: 400\n")

	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if _, err := p.Load(context.Background()); err == nil {
		t.Fatal("Load() error = nil, want validation error")
	}
}

func TestProvider_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rum.yaml")
	writeConfig(t, path, "sampling:\n  session_sample_rate: 10\n")

	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeConfig(t, path, "sampling:\n  session_sample_rate: 70\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Sampling.SessionSampleRate == 70 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

func TestProvider_WatchIgnoresInvalidEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rum.yaml")
	writeConfig(t, path, "sampling:\n  session_sample_rate: 10\n")

	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeConfig(t, filepath.Join(dir, "other.yaml"), "sampling:\n  session_sample_rate: 90\n")
	writeConfig(t, path, "sampling:\n  session_sample_rate: 400\n")

	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload with rate %v", cfg.Sampling.SessionSampleRate)
	case <-time.After(500 * time.Millisecond):
	}

	if got := p.Current().Sampling.SessionSampleRate; got != 10 {
		t.Errorf("Current() rate = %v, want previous value 10", got)
	}
}

func TestProvider_WatchMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.yaml")

	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() of a missing file error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeConfig(t, path, "sampling:\n  session_sample_rate: 25\n")

	select {
	case cfg := <-changes:
		if cfg.Sampling.SessionSampleRate != 25 {
			t.Errorf("rate = %v, want 25", cfg.Sampling.SessionSampleRate)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the created file to load")
	}
}
