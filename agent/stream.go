package agent

import (
	"context"

	"github.com/hupe1980/agentcookbook/core"
)

// StreamMode selects what Stream emits after each step.
type StreamMode string

// Stream modes.
const (
	// StreamValues emits the full conversation and a state snapshot after
	// every step, starting with the input.
	StreamValues StreamMode = "values"
	// StreamUpdates emits only the messages each model or tools step added.
	StreamUpdates StreamMode = "updates"
)

// Stream runs the agent and emits an event per step on the first channel.
// A failure is delivered on the second channel. Both channels are closed
// when the run ends.
func (a *Agent) Stream(ctx context.Context, in Input, mode StreamMode, optFns ...func(o *InvokeOptions)) (<-chan core.Event, <-chan error) {
	out := make(chan core.Event, 32)
	errCh := make(chan error, 1)

	opts := resolveInvokeOptions(optFns)

	go func() {
		defer close(out)
		defer close(errCh)

		send := func(ev core.Event) error {
			if mode == StreamUpdates && ev.Node == core.NodeInput {
				return nil
			}

			if mode != StreamUpdates {
				ev.Messages = ev.State.History()
			}

			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if _, err := a.run(ctx, in, opts, send); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (a *Agent) emit(emit emitFunc, rs *runState, node string, msgs []core.Content) error {
	if emit == nil {
		return nil
	}

	ev := core.NewEvent(node, rs.step, msgs...)
	ev.ThreadID = rs.opts.ThreadID
	ev.State = rs.state.Clone()
	ev.Metadata = map[string]any{"agent": a.opts.Name}

	return emit(ev)
}
