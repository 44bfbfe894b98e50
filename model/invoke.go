package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcookbook/core"
)

// ErrNoResponse is returned when a model closes its stream without a final response.
var ErrNoResponse = errors.New("model returned no final response")

// Call describes one model invocation as seen by observers.
type Call struct {
	ID      string
	Info    Info
	Request Request
	Start   time.Time
}

// Observer is notified around every model call made through Invoke, Stream
// or Batch with a context carrying it.
type Observer interface {
	OnModelStart(ctx context.Context, call Call)
	OnModelEnd(ctx context.Context, call Call, resp *Response, err error)
}

type observersKey struct{}

// WithObservers returns a context that notifies obs in addition to any
// observers already attached.
func WithObservers(ctx context.Context, obs ...Observer) context.Context {
	existing := ObserversFrom(ctx)
	all := make([]Observer, 0, len(existing)+len(obs))
	all = append(all, existing...)
	all = append(all, obs...)

	return context.WithValue(ctx, observersKey{}, all)
}

// ObserversFrom returns the observers attached to ctx.
func ObserversFrom(ctx context.Context) []Observer {
	obs, _ := ctx.Value(observersKey{}).([]Observer)
	return obs
}

// Invoke runs a non-streaming generation and returns the final response.
func Invoke(ctx context.Context, m Model, req Request) (*Response, error) {
	return Stream(ctx, m, req, nil)
}

// Stream runs a streaming generation, passing each partial response to
// onPartial, and returns the final response. A nil onPartial disables
// streaming.
func Stream(ctx context.Context, m Model, req Request, onPartial func(Response) error) (*Response, error) {
	req.Stream = onPartial != nil

	call := Call{
		ID:      core.NewID(),
		Info:    m.Info(),
		Request: req,
		Start:   time.Now(),
	}

	observers := ObserversFrom(ctx)
	for _, o := range observers {
		o.OnModelStart(ctx, call)
	}

	resp, err := collect(ctx, m, req, onPartial)

	for _, o := range observers {
		o.OnModelEnd(ctx, call, resp, err)
	}

	return resp, err
}

func collect(ctx context.Context, m Model, req Request, onPartial func(Response) error) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	respCh, errCh := m.Generate(ctx, req)

	var final *Response

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if resp.Partial {
				if onPartial != nil {
					if err := onPartial(resp); err != nil {
						return nil, err
					}
				}

				continue
			}

			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if final == nil {
		return nil, ErrNoResponse
	}

	return final, nil
}

// Batch invokes m once per request with at most maxConcurrency calls in
// flight (unlimited when <= 0). Responses are returned in request order; the
// first error cancels the remaining calls.
func Batch(ctx context.Context, m Model, reqs []Request, maxConcurrency int) ([]*Response, error) {
	out := make([]*Response, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}

	for i, req := range reqs {
		g.Go(func() error {
			resp, err := Invoke(gctx, m, req)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}

			out[i] = resp

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// Prompt builds a request holding a single user message.
func Prompt(text string) Request {
	return Request{Contents: []core.Content{core.NewUserText(text)}}
}
