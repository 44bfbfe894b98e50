package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentcookbook/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context, InstructionContext) (string, error) {
	return m.text, m.err
}

func newTestInstructionContext() InstructionContext {
	return InstructionContext{ThreadID: "test-thread", State: core.NewState(nil), Runtime: "beginner"}
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	if !inst.IsStatic() {
		t.Fatalf("expected static instruction")
	}

	got, err := inst.Resolve(context.Background(), newTestInstructionContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "static instruction" {
		t.Fatalf("expected 'static instruction', got %q", got)
	}
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ context.Context, ic InstructionContext) (string, error) {
		return "level: " + ic.Runtime.(string), nil
	})
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}

	got, err := inst.Resolve(context.Background(), newTestInstructionContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "level: beginner" {
		t.Fatalf("expected 'level: beginner', got %q", got)
	}
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}

	got, err := inst.Resolve(context.Background(), newTestInstructionContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "provider text" {
		t.Fatalf("expected 'provider text', got %q", got)
	}
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: expectedErr})

	_, err := inst.Resolve(context.Background(), newTestInstructionContext())
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error %v, got %v", expectedErr, err)
	}
}
