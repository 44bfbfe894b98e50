package run

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/agentcookbook/model"
)

// EventType identifies the lifecycle point a handler is notified about.
type EventType string

// Lifecycle points.
const (
	EventModelStart EventType = "model_start"
	EventModelEnd   EventType = "model_end"
	EventToolStart  EventType = "tool_start"
	EventToolEnd    EventType = "tool_end"
	EventAgentStart EventType = "agent_start"
	EventAgentEnd   EventType = "agent_end"
	EventError      EventType = "error"
)

// Event describes one lifecycle point of a run. Fields not relevant to the
// event type are left zero.
type Event struct {
	Type     EventType
	Config   Config
	CallID   string
	Name     string // model name, tool name or agent name
	Provider string
	Request  *model.Request
	Response *model.Response
	Args     string
	Result   any
	Err      error
	Start    time.Time
	Duration time.Duration
}

// Handler receives run events. Handlers run synchronously on the calling
// goroutine and must be safe for concurrent use.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

// On returns a handler invoking fn only for events of type t.
func On(t EventType, fn func(ctx context.Context, ev Event)) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event) {
		if ev.Type == t {
			fn(ctx, ev)
		}
	})
}

// Dispatch notifies every handler of the run config in ctx. An event with a
// non-nil Err is followed by an EventError notification.
func Dispatch(ctx context.Context, ev Event) {
	cfg := FromContext(ctx)

	hs := slices.Concat(inherited(ctx), cfg.Handlers)
	if len(hs) == 0 {
		return
	}

	ev.Config = cfg

	for _, h := range hs {
		h.Handle(ctx, ev)
	}

	if ev.Err != nil && ev.Type != EventError {
		errEv := ev
		errEv.Type = EventError

		for _, h := range hs {
			h.Handle(ctx, errEv)
		}
	}
}

// observer bridges model observers to run handlers.
type observer struct{}

func (observer) OnModelStart(ctx context.Context, call model.Call) {
	req := call.Request

	Dispatch(ctx, Event{
		Type:     EventModelStart,
		CallID:   call.ID,
		Name:     call.Info.Name,
		Provider: call.Info.Provider,
		Request:  &req,
		Start:    call.Start,
	})
}

func (observer) OnModelEnd(ctx context.Context, call model.Call, resp *model.Response, err error) {
	req := call.Request

	Dispatch(ctx, Event{
		Type:     EventModelEnd,
		CallID:   call.ID,
		Name:     call.Info.Name,
		Provider: call.Info.Provider,
		Request:  &req,
		Response: resp,
		Err:      err,
		Start:    call.Start,
		Duration: time.Since(call.Start),
	})
}
