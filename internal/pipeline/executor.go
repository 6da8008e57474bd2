package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// Executor orchestrates mapper stage execution.
// It keeps the stages sorted by order and executes them sequentially.
type Executor struct {
	stages  []ports.Stage
	onError ports.StageAction
	logger  *slog.Logger
}

// ExecutorConfig configures an executor from stage configurations.
type ExecutorConfig struct {
	Stages []StageConfig
	// OnError is applied when a stage fails: keep (default) or drop.
	OnError ports.StageAction
	Logger  *slog.Logger
}

// StageConfig is the configuration for a single stage.
type StageConfig struct {
	Name  string
	Order int
	Stage ports.Stage
}

// NewExecutor creates an executor from configuration.
func NewExecutor(cfg ExecutorConfig) *Executor {
	stages := append([]StageConfig(nil), cfg.Stages...)
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Order < stages[j].Order
	})

	onError := cfg.OnError
	if onError == "" {
		onError = ports.ActionKeep
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		stages:  make([]ports.Stage, len(stages)),
		onError: onError,
		logger:  logger,
	}
	for i, s := range stages {
		e.stages[i] = s.Stage
	}
	return e
}

// Run executes all stages in order.
// Returns the (possibly mutated) event, or a *DroppedError if a stage dropped it.
func (e *Executor) Run(ctx context.Context, event domain.Event) (domain.Event, error) {
	current := event
	for _, stage := range e.stages {
		output, err := stage.Process(ctx, &ports.StageInput{Event: current})
		if err != nil {
			if e.onError == ports.ActionDrop {
				return nil, &DroppedError{StageName: stage.Name(), Reason: err.Error()}
			}
			return nil, fmt.Errorf("mapper stage %s error: %w", stage.Name(), err)
		}

		switch output.Action {
		case ports.ActionDrop:
			reason := output.Reason
			if reason == "" {
				reason = "dropped by mapper stage " + stage.Name()
			}
			return nil, &DroppedError{StageName: stage.Name(), Reason: reason}
		case ports.ActionMutate:
			if output.Event != nil {
				current = output.Event
			}
		case ports.ActionKeep:
			// Continue with current event
		}
	}
	return current, nil
}

// Map implements ports.EventMapper. Failing stages keep the event unchanged.
func (e *Executor) Map(ctx context.Context, event domain.Event) (domain.Event, bool) {
	mapped, err := e.Run(ctx, event)
	switch {
	case err == nil:
		return mapped, true
	case IsDropped(err):
		return nil, false
	default:
		e.logger.Warn("event mapper failed, keeping event",
			slog.String("event_type", string(event.EventType())),
			slog.String("error", err.Error()))
		return event, true
	}
}

// HasStages returns true if there are any stages configured.
func (e *Executor) HasStages() bool {
	return len(e.stages) > 0
}

// DroppedError is returned when a stage drops an event.
type DroppedError struct {
	StageName string
	Reason    string
}

func (e *DroppedError) Error() string {
	return fmt.Sprintf("event dropped by %s: %s", e.StageName, e.Reason)
}

// IsDropped returns true if the error is a mapper drop.
func IsDropped(err error) bool {
	var dropped *DroppedError
	return errors.As(err, &dropped)
}

// Ensure Executor implements the interface.
var _ ports.EventMapper = (*Executor)(nil)
