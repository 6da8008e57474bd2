package pipeline

import (
	"context"
	"slices"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// DropTypesStage drops every event of the configured types.
type DropTypesStage struct {
	types []domain.EventType
}

func NewDropTypesStage(types ...domain.EventType) *DropTypesStage {
	return &DropTypesStage{types: types}
}

func (s *DropTypesStage) Name() string { return "drop_types" }

func (s *DropTypesStage) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	if slices.Contains(s.types, in.Event.EventType()) {
		return &ports.StageOutput{Action: ports.ActionDrop, Reason: "event type " + string(in.Event.EventType()) + " is dropped"}, nil
	}
	return &ports.StageOutput{Action: ports.ActionKeep}, nil
}

// RedactAttributesStage removes attribute keys from the event context.
type RedactAttributesStage struct {
	keys []string
}

func NewRedactAttributesStage(keys ...string) *RedactAttributesStage {
	return &RedactAttributesStage{keys: keys}
}

func (s *RedactAttributesStage) Name() string { return "redact_attributes" }

func (s *RedactAttributesStage) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	common := in.Event.Common()
	redacted := false
	for _, key := range s.keys {
		if _, ok := common.Context[key]; ok {
			delete(common.Context, key)
			redacted = true
		}
	}
	if !redacted {
		return &ports.StageOutput{Action: ports.ActionKeep}, nil
	}
	return &ports.StageOutput{Action: ports.ActionMutate, Event: in.Event}, nil
}

// MapperFunc rewrites an event; returning nil drops it.
type MapperFunc func(domain.Event) domain.Event

// FuncStage adapts a host-supplied MapperFunc.
type FuncStage struct {
	name string
	fn   MapperFunc
}

func NewFuncStage(name string, fn MapperFunc) *FuncStage {
	return &FuncStage{name: name, fn: fn}
}

func (s *FuncStage) Name() string { return s.name }

func (s *FuncStage) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	out := s.fn(in.Event)
	if out == nil {
		return &ports.StageOutput{Action: ports.ActionDrop, Reason: "mapper returned nil"}, nil
	}
	return &ports.StageOutput{Action: ports.ActionMutate, Event: out}, nil
}
