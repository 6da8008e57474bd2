package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
)

// mockStage is a test helper that records calls and returns configured responses.
type mockStage struct {
	name   string
	output *ports.StageOutput
	err    error
	calls  []*ports.StageInput
}

func (s *mockStage) Name() string { return s.name }

func (s *mockStage) Process(ctx context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return nil, s.err
	}
	if s.output != nil {
		return s.output, nil
	}
	return &ports.StageOutput{Action: ports.ActionKeep}, nil
}

func errorEvent(attrs map[string]any) *domain.ErrorEvent {
	return &domain.ErrorEvent{
		EventCommon: domain.EventCommon{Context: attrs},
		View:        domain.ViewRef{ID: "view-1"},
		Error:       domain.ErrorDetails{ID: "err-1", Message: "boom"},
	}
}

func TestExecutor_Map_Empty(t *testing.T) {
	e := NewExecutor(ExecutorConfig{})
	event := errorEvent(nil)

	result, ok := e.Map(context.Background(), event)
	if !ok {
		t.Fatal("expected event to be kept")
	}
	if result != event {
		t.Error("expected same event when no stages")
	}
	if e.HasStages() {
		t.Error("expected no stages")
	}
}

func TestExecutor_Map_Keep(t *testing.T) {
	stage := &mockStage{name: "test-stage"}
	e := NewExecutor(ExecutorConfig{
		Stages: []StageConfig{{Name: "test-stage", Order: 1, Stage: stage}},
	})

	event := errorEvent(nil)
	result, ok := e.Map(context.Background(), event)
	if !ok || result != event {
		t.Fatalf("Map() = %v, %v; want same event kept", result, ok)
	}
	if len(stage.calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(stage.calls))
	}
}

func TestExecutor_Run_Drop(t *testing.T) {
	dropper := &mockStage{
		name:   "dropper",
		output: &ports.StageOutput{Action: ports.ActionDrop, Reason: "not wanted"},
	}
	after := &mockStage{name: "after"}

	e := NewExecutor(ExecutorConfig{
		Stages: []StageConfig{
			{Name: "after", Order: 2, Stage: after},
			{Name: "dropper", Order: 1, Stage: dropper},
		},
	})

	_, err := e.Run(context.Background(), errorEvent(nil))
	if !IsDropped(err) {
		t.Fatalf("expected DroppedError, got %v", err)
	}
	var dropped *DroppedError
	if !errors.As(err, &dropped) {
		t.Fatal("expected *DroppedError")
	}
	if dropped.StageName != "dropper" || dropped.Reason != "not wanted" {
		t.Errorf("unexpected dropped error: %+v", dropped)
	}
	if len(after.calls) != 0 {
		t.Error("stages after a drop must not run")
	}

	if _, ok := e.Map(context.Background(), errorEvent(nil)); ok {
		t.Error("Map should report the drop")
	}
}

func TestExecutor_Run_Mutate(t *testing.T) {
	replacement := errorEvent(map[string]any{"mutated": true})
	mutator := &mockStage{
		name:   "mutator",
		output: &ports.StageOutput{Action: ports.ActionMutate, Event: replacement},
	}
	observer := &mockStage{name: "observer"}

	e := NewExecutor(ExecutorConfig{
		Stages: []StageConfig{
			{Name: "mutator", Order: 1, Stage: mutator},
			{Name: "observer", Order: 2, Stage: observer},
		},
	})

	result, err := e.Run(context.Background(), errorEvent(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != replacement {
		t.Error("expected mutated event")
	}
	if observer.calls[0].Event != replacement {
		t.Error("later stages should see the mutated event")
	}
}

func TestExecutor_StageError(t *testing.T) {
	failing := func() *mockStage {
		return &mockStage{name: "failing", err: errors.New("boom")}
	}

	t.Run("keep by default", func(t *testing.T) {
		e := NewExecutor(ExecutorConfig{Stages: []StageConfig{{Name: "failing", Stage: failing()}}})
		event := errorEvent(nil)

		if _, err := e.Run(context.Background(), event); err == nil || IsDropped(err) {
			t.Fatalf("Run() error = %v, want stage error", err)
		}
		result, ok := e.Map(context.Background(), event)
		if !ok || result != event {
			t.Error("failing stage should keep the original event")
		}
	})

	t.Run("drop when configured", func(t *testing.T) {
		e := NewExecutor(ExecutorConfig{
			Stages:  []StageConfig{{Name: "failing", Stage: failing()}},
			OnError: ports.ActionDrop,
		})
		if _, ok := e.Map(context.Background(), errorEvent(nil)); ok {
			t.Error("failing stage should drop the event")
		}
	})
}

func TestExecutor_Order(t *testing.T) {
	var order []string
	record := func(name string) StageConfig {
		return StageConfig{Name: name, Stage: NewFuncStage(name, func(e domain.Event) domain.Event {
			order = append(order, name)
			return e
		})}
	}

	first, second, third := record("first"), record("second"), record("third")
	first.Order, second.Order, third.Order = -5, 0, 10

	e := NewExecutor(ExecutorConfig{Stages: []StageConfig{third, first, second}})
	if _, ok := e.Map(context.Background(), errorEvent(nil)); !ok {
		t.Fatal("expected event to be kept")
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestNewExecutorFromConfig(t *testing.T) {
	t.Run("drop and redact", func(t *testing.T) {
		e, err := NewExecutorFromConfig(config.PipelineConfig{
			DropEventTypes:   []string{"long_task"},
			RedactAttributes: []string{"email"},
		}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		longTask := &domain.LongTaskEvent{View: domain.ViewRef{ID: "v"}}
		if _, ok := e.Map(context.Background(), longTask); ok {
			t.Error("long task should be dropped")
		}

		event := errorEvent(map[string]any{"email": "a@b.c", "plan": "pro"})
		result, ok := e.Map(context.Background(), event)
		if !ok {
			t.Fatal("error event should be kept")
		}
		ctx := result.Common().Context
		if _, found := ctx["email"]; found {
			t.Error("email should be redacted")
		}
		if ctx["plan"] != "pro" {
			t.Error("other attributes should survive")
		}
	})

	t.Run("unknown event type", func(t *testing.T) {
		if _, err := NewExecutorFromConfig(config.PipelineConfig{DropEventTypes: []string{"crash"}}, nil); err == nil {
			t.Error("expected error for unknown event type")
		}
	})

	t.Run("extra stages run after configured ones", func(t *testing.T) {
		var seen map[string]any
		extra := StageConfig{Name: "inspect", Stage: NewFuncStage("inspect", func(e domain.Event) domain.Event {
			seen = e.Common().Context
			return e
		})}
		e, err := NewExecutorFromConfig(config.PipelineConfig{RedactAttributes: []string{"token"}}, nil, extra)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		e.Map(context.Background(), errorEvent(map[string]any{"token": "secret"}))
		if _, found := seen["token"]; found {
			t.Error("host stage should see the redacted event")
		}
	})
}

func TestFuncStage_NilDrops(t *testing.T) {
	stage := NewFuncStage("nil", func(domain.Event) domain.Event { return nil })
	out, err := stage.Process(context.Background(), &ports.StageInput{Event: errorEvent(nil)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Action != ports.ActionDrop {
		t.Errorf("Action = %s, want drop", out.Action)
	}
}
