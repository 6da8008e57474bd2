package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
)

var knownEventTypes = map[domain.EventType]bool{
	domain.EventTypeView:     true,
	domain.EventTypeAction:   true,
	domain.EventTypeResource: true,
	domain.EventTypeError:    true,
	domain.EventTypeLongTask: true,
}

// NewExecutorFromConfig creates a mapper executor from configuration plus
// host stages. Configured stages run first.
func NewExecutorFromConfig(cfg config.PipelineConfig, logger *slog.Logger, extra ...StageConfig) (*Executor, error) {
	var stages []StageConfig

	if len(cfg.DropEventTypes) > 0 {
		types := make([]domain.EventType, 0, len(cfg.DropEventTypes))
		for _, name := range cfg.DropEventTypes {
			t := domain.EventType(name)
			if !knownEventTypes[t] {
				return nil, fmt.Errorf("pipeline.drop_event_types: unknown event type %q", name)
			}
			types = append(types, t)
		}
		stages = append(stages, StageConfig{Name: "drop_types", Order: -20, Stage: NewDropTypesStage(types...)})
	}

	if len(cfg.RedactAttributes) > 0 {
		stages = append(stages, StageConfig{Name: "redact_attributes", Order: -10, Stage: NewRedactAttributesStage(cfg.RedactAttributes...)})
	}

	stages = append(stages, extra...)
	return NewExecutor(ExecutorConfig{Stages: stages, Logger: logger}), nil
}
