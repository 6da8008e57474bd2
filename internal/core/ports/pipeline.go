package ports

import (
	"context"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

// StageAction is the result action from a mapper stage.
type StageAction string

const (
	// ActionKeep lets the event continue unchanged.
	ActionKeep StageAction = "keep"
	// ActionDrop discards the event.
	ActionDrop StageAction = "drop"
	// ActionMutate replaces the event with StageOutput.Event.
	ActionMutate StageAction = "mutate"
)

// StageInput is the data sent to a mapper stage.
type StageInput struct {
	Event domain.Event
}

// StageOutput is returned from a mapper stage.
type StageOutput struct {
	// Action indicates what should happen: keep, drop, or mutate.
	Action StageAction
	// Event is the replacement event (only if Action is mutate).
	Event domain.Event
	// Reason explains why the event was dropped.
	Reason string
}

// Stage inspects, rewrites or drops one built event.
type Stage interface {
	// Name returns the unique identifier for this stage.
	Name() string
	// Process executes the stage logic. It must not block.
	Process(ctx context.Context, in *StageInput) (*StageOutput, error)
}

// EventMapper runs the configured stages over an event.
type EventMapper interface {
	// Map returns the (possibly rewritten) event, or false if it was dropped.
	Map(ctx context.Context, event domain.Event) (domain.Event, bool)
}
