package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

// EventStore persists kept events.
// Implementations: SQLite (default), in-memory.
type EventStore interface {
	// AppendEvent stores one event.
	AppendEvent(ctx context.Context, event *StoredEvent) error

	// ListEvents lists events matching the options, oldest first.
	ListEvents(ctx context.Context, opts ListOptions) ([]*StoredEvent, error)

	// Close closes the storage connection.
	Close() error
}

// StoredEvent is the persisted form of a domain.Event.
type StoredEvent struct {
	ID              string           `json:"id"`
	Type            domain.EventType `json:"type"`
	ApplicationID   string           `json:"application_id"`
	SessionID       string           `json:"session_id"`
	ViewID          string           `json:"view_id"`
	DocumentVersion int64            `json:"document_version,omitempty"`
	Date            time.Time        `json:"date"`
	Payload         json.RawMessage  `json:"payload"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ListOptions filters ListEvents.
type ListOptions struct {
	SessionID string
	ViewID    string
	Type      domain.EventType
	Limit     int
	Offset    int
}

// NewStoredEvent converts a domain event to its persisted form.
func NewStoredEvent(id string, event domain.Event) (*StoredEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	common := event.Common()
	return &StoredEvent{
		ID:              id,
		Type:            event.EventType(),
		ApplicationID:   common.Application.ID,
		SessionID:       common.Session.ID,
		ViewID:          event.ViewID(),
		DocumentVersion: common.Internal.DocumentVersion,
		Date:            common.Date,
		Payload:         payload,
	}, nil
}
