// Package direct provides a direct event publisher that writes to storage.
package direct

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// Publisher implements ports.EventPublisher by writing directly to storage.
// This is the default implementation for single-instance deployments.
type Publisher struct {
	store ports.EventStore
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(store ports.EventStore) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("event store required")
	}
	return &Publisher{store: store}, nil
}

// Publish writes an event directly to storage. Every write gets its own
// storage id since view updates share the view id.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	stored, err := ports.NewStoredEvent(uuid.NewString(), event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.EventType(), err)
	}
	return p.store.AppendEvent(ctx, stored)
}

// Close is a no-op for direct publisher. The store is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}
