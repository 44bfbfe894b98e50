package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentcookbook/core"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
//
// Responses are chosen in this order: the handler (if set), the next scripted
// response (if any remain), a canned response for the last user prompt, and
// finally an echo of the prompt.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	script    []Response
	handler   func(ctx context.Context, req Request) (Response, error)
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:                     name,
			Provider:                 provider,
			SupportsTools:            true,
			SupportsStructuredOutput: true,
			SupportsVision:           true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted responses returned one per generation.
func (m *MockModel) Enqueue(resps ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resps...)
}

// SetHandler installs a function computing every response.
func (m *MockModel) SetHandler(fn func(ctx context.Context, req Request) (Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// Generate implements Model; emits optional streaming word chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		full, err := m.next(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		if full.Content.Role == "" {
			full.Content.Role = core.RoleAssistant
		}

		if full.FinishReason == "" {
			full.FinishReason = "stop"
			if full.Content.HasFunctionCalls() {
				full.FinishReason = "tool_calls"
			}
		}

		if full.Model == "" {
			full.Model = m.info.Name
		}

		if req.Stream {
			for _, chunk := range SplitWords(full.Content.Text()) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					ID:      full.ID,
					Model:   full.Model,
					Partial: true,
					Content: core.NewAssistantText(chunk),
				}:
				}
			}
		}

		full.Partial = false

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- full:
		}
	}()

	return respCh, errCh
}

func (m *MockModel) next(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.handler

	if handler == nil && len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		m.mu.Unlock()

		return resp, nil
	}

	prompt := req.LastUserText()
	canned := m.responses[prompt]
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}

	if canned == "" {
		canned = fmt.Sprintf("Mock response to: %s", prompt)
	}

	return Response{ID: core.NewID(), Content: core.NewAssistantText(canned)}, nil
}

// SplitWords splits text into chunks that each end after a space, so that
// concatenating the chunks yields text again.
func SplitWords(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string

	for len(text) > 0 {
		i := strings.IndexByte(text, ' ')
		if i < 0 {
			chunks = append(chunks, text)
			break
		}

		chunks = append(chunks, text[:i+1])
		text = text[i+1:]
	}

	return chunks
}
