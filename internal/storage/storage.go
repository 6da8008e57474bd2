// Package storage opens the configured event store.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/storage/memory"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/storage/sqlite"
)

// Re-export storage types from core/ports.
type (
	EventStore  = ports.EventStore
	StoredEvent = ports.StoredEvent
	ListOptions = ports.ListOptions
)

// Open creates the event store described by cfg.
// It returns a nil store for type "none".
func Open(cfg config.StorageConfig) (ports.EventStore, error) {
	switch cfg.Type {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
		}
		return sqlite.New(cfg.SQLite.Path)
	case "memory", "":
		return memory.New(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
