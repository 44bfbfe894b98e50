// Package ratelimit throttles model calls with a shared token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentcookbook/model"
)

// Options configures a Limiter.
type Options struct {
	// RequestsPerSecond is the refill rate of the bucket.
	RequestsPerSecond float64
	// MaxBucketSize caps how many requests may burst after an idle period.
	MaxBucketSize int
}

// Limiter is a token bucket shared by any number of models and goroutines.
// The bucket starts empty, so the first request waits one refill interval.
type Limiter struct {
	limiter *rate.Limiter
	opts    Options
}

// New creates a limiter. RequestsPerSecond must be positive; MaxBucketSize
// defaults to 1.
func New(optFns ...func(o *Options)) (*Limiter, error) {
	opts := Options{RequestsPerSecond: 1, MaxBucketSize: 1}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("ratelimit: requests per second must be positive, got %v", opts.RequestsPerSecond)
	}

	if opts.MaxBucketSize < 1 {
		opts.MaxBucketSize = 1
	}

	l := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.MaxBucketSize)
	l.AllowN(time.Now(), opts.MaxBucketSize)

	return &Limiter{limiter: l, opts: opts}, nil
}

// Acquire blocks until a request may proceed or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// TryAcquire takes a token if one is available without waiting.
func (l *Limiter) TryAcquire() bool {
	return l.limiter.Allow()
}

// Options returns the configuration the limiter was built with.
func (l *Limiter) Options() Options { return l.opts }

// Model gates every generation of an underlying model on a Limiter.
type Model struct {
	model   model.Model
	limiter *Limiter
}

// Wrap returns m throttled by l. Several wrapped models may share l.
func Wrap(m model.Model, l *Limiter) *Model {
	return &Model{model: m, limiter: l}
}

// Unwrap returns the underlying model.
func (m *Model) Unwrap() model.Model { return m.model }

// Info implements model.Model.
func (m *Model) Info() model.Info { return m.model.Info() }

// Generate waits for a token, then delegates to the wrapped model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if err := m.limiter.Acquire(ctx); err != nil {
			errCh <- fmt.Errorf("rate limit wait: %w", err)
			return
		}

		respCh, innerErr := m.model.Generate(ctx, req)

		for respCh != nil || innerErr != nil {
			select {
			case resp, ok := <-respCh:
				if !ok {
					respCh = nil
					continue
				}

				select {
				case out <- resp:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			case err, ok := <-innerErr:
				if !ok {
					innerErr = nil
					continue
				}

				if err != nil {
					errCh <- err
					return
				}
			}
		}
	}()

	return out, errCh
}
