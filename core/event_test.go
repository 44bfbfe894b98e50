package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	call := Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "checking"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Rio"}`}},
	}}

	e := NewEvent(NodeModel, 1, call)
	if e.ID == "" || e.Timestamp.IsZero() || e.Node != NodeModel || e.Step != 1 {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	calls := e.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "get_weather" {
		t.Fatalf("FunctionCalls extraction failed: %+v", calls)
	}

	if e.IsFinalResponse() {
		t.Fatalf("event with pending calls must not be final")
	}

	tools := NewEvent(NodeTools, 2, NewToolResponse("c1", "get_weather", "sunny", nil), NewToolResponse("c2", "calc", nil, errors.New("boom")))

	resps := tools.FunctionResponses()
	if len(resps) != 2 || resps[0].Response != "sunny" || resps[1].Error != "boom" {
		t.Fatalf("FunctionResponses extraction failed: %+v", resps)
	}

	if tools.IsFinalResponse() {
		t.Fatalf("tools event must not be final")
	}

	final := NewEvent(NodeModel, 3, NewAssistantText("done"))
	if !final.IsFinalResponse() {
		t.Fatalf("plain assistant answer must be final")
	}
}

func TestModelLimiter(t *testing.T) {
	l := NewModelLimiter(2)
	if err := l.Increment(); err != nil {
		t.Fatal(err)
	}

	if err := l.Increment(); err != nil {
		t.Fatal(err)
	}

	if l.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", l.Remaining())
	}

	if err := l.Increment(); !errors.Is(err, ErrModelCallLimit) {
		t.Fatalf("expected ErrModelCallLimit, got %v", err)
	}

	if NewModelLimiter(0).Remaining() != -1 {
		t.Fatalf("zero limit should be unlimited")
	}
}
