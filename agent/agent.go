package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcookbook/checkpoint"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/logging"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/run"
	"github.com/hupe1980/agentcookbook/structured"
	"github.com/hupe1980/agentcookbook/tool"
)

// ErrMaxModelCalls is returned when a run exceeds Options.MaxModelCalls.
var ErrMaxModelCalls = core.ErrModelCallLimit

// DefaultMaxModelCalls bounds a run when Options.MaxModelCalls is zero.
const DefaultMaxModelCalls = 25

// Options configures an Agent.
type Options struct {
	Name        string
	Instruction Instruction
	Tools       []tool.Tool
	// ResponseFormat makes the agent finish with a structured response.
	ResponseFormat *structured.Strategy
	// Checkpointer persists the conversation per thread. Without one every
	// invocation starts from an empty history.
	Checkpointer checkpoint.Saver
	Middleware   []Middleware
	// StateDefaults seeds state values missing from a new or loaded thread.
	StateDefaults map[string]any
	// MaxModelCalls bounds model calls per invocation; negative disables the guard.
	MaxModelCalls int
	// MaxParallelTools bounds concurrent tool executions; zero is unlimited.
	MaxParallelTools int
	Logger           logging.Logger
}

// Agent drives a model/tool loop until the model produces a final answer.
type Agent struct {
	model    model.Model
	opts     Options
	tools    map[string]tool.Tool
	executor *toolExecutor
}

// New creates an agent around m.
func New(m model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Name:          "agent",
		MaxModelCalls: DefaultMaxModelCalls,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	tools := make(map[string]tool.Tool, len(opts.Tools))
	for _, t := range opts.Tools {
		tools[t.Name()] = t
	}

	return &Agent{
		model:    m,
		opts:     opts,
		tools:    tools,
		executor: newToolExecutor(opts.Name, tools, opts.MaxParallelTools, opts.Middleware, opts.Logger),
	}
}

// WithInstruction sets a static system prompt.
func WithInstruction(text string) func(o *Options) {
	return func(o *Options) { o.Instruction = NewInstructionFromText(text) }
}

// WithTools registers tools.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithMiddleware appends middleware.
func WithMiddleware(mw ...Middleware) func(o *Options) {
	return func(o *Options) { o.Middleware = append(o.Middleware, mw...) }
}

// WithLogger sets the logger for run, model and tool events.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCheckpointer sets the thread persistence.
func WithCheckpointer(s checkpoint.Saver) func(o *Options) {
	return func(o *Options) { o.Checkpointer = s }
}

// WithResponseFormat sets the structured response strategy.
func WithResponseFormat(s structured.Strategy) func(o *Options) {
	return func(o *Options) { o.ResponseFormat = &s }
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.opts.Name }

// Model returns the default model.
func (a *Agent) Model() model.Model { return a.model }

// Tools returns the registered tool definitions.
func (a *Agent) Tools() []model.ToolDefinition {
	return tool.Definitions(a.opts.Tools...)
}

// Input is what one invocation adds to the thread.
type Input struct {
	Messages []core.Content
	// State is merged into the thread state before the run.
	State map[string]any
}

// Text builds an input holding a single user message.
func Text(text string) Input {
	return Input{Messages: []core.Content{core.NewUserText(text)}}
}

// Messages builds an input from a message sequence.
func Messages(msgs ...core.Content) Input {
	return Input{Messages: msgs}
}

// InvokeOptions are per-invocation settings.
type InvokeOptions struct {
	ThreadID string
	Runtime  any
}

// WithThread selects the checkpoint thread.
func WithThread(id string) func(o *InvokeOptions) {
	return func(o *InvokeOptions) { o.ThreadID = id }
}

// WithRuntime passes an invocation-scoped value to tools, instructions and
// middleware.
func WithRuntime(v any) func(o *InvokeOptions) {
	return func(o *InvokeOptions) { o.Runtime = v }
}

// Result is the outcome of an invocation.
type Result struct {
	ThreadID string
	Messages []core.Content
	State    *core.State
	// StructuredResponse holds the decoded JSON object when a response format
	// is configured.
	StructuredResponse map[string]any
	ModelCalls         int
}

// LastMessage returns the final message of the conversation.
func (r *Result) LastMessage() core.Content {
	if len(r.Messages) == 0 {
		return core.Content{}
	}

	return r.Messages[len(r.Messages)-1]
}

// Text returns the text of the final message.
func (r *Result) Text() string { return r.LastMessage().Text() }

// Decode unmarshals the structured response into v.
func (r *Result) Decode(v any) error {
	if r.StructuredResponse == nil {
		return structured.ErrNoStructuredResponse
	}

	b, err := json.Marshal(r.StructuredResponse)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, v)
}

// Structured decodes the structured response of r as T.
func Structured[T any](r *Result) (T, error) {
	var v T
	err := r.Decode(&v)

	return v, err
}

// Invoke runs the agent to completion.
func (a *Agent) Invoke(ctx context.Context, in Input, optFns ...func(o *InvokeOptions)) (*Result, error) {
	return a.run(ctx, in, resolveInvokeOptions(optFns), nil)
}

func resolveInvokeOptions(optFns []func(o *InvokeOptions)) InvokeOptions {
	opts := InvokeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// emitFunc receives an event after each step; nil disables emission.
type emitFunc func(ev core.Event) error

type runState struct {
	opts     InvokeOptions
	state    *core.State
	step     int
	limiter  *core.ModelLimiter
	retries  int
	response map[string]any
	done     bool
}

func (a *Agent) run(ctx context.Context, in Input, opts InvokeOptions, emit emitFunc) (res *Result, err error) {
	start := time.Now()

	run.Dispatch(ctx, run.Event{Type: run.EventAgentStart, Name: a.opts.Name, Start: start})

	defer func() {
		run.Dispatch(ctx, run.Event{Type: run.EventAgentEnd, Name: a.opts.Name, Start: start, Duration: time.Since(start), Err: err})
	}()

	rs, err := a.load(ctx, opts)
	if err != nil {
		return nil, err
	}

	rs.state.Merge(in.State)
	rs.state.Append(in.Messages...)

	a.opts.Logger.Debug("agent.run.start", "agent", a.opts.Name, "thread", opts.ThreadID, "history", rs.state.Len())

	if err := a.emit(emit, rs, core.NodeInput, in.Messages); err != nil {
		return nil, err
	}

	for !rs.done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := a.step(ctx, rs, emit); err != nil {
			a.opts.Logger.Error("agent.run.error", "agent", a.opts.Name, "thread", opts.ThreadID, "error", err.Error())
			return nil, err
		}
	}

	if err := a.save(ctx, rs); err != nil {
		return nil, err
	}

	a.opts.Logger.Info(
		"agent.run.complete",
		"agent", a.opts.Name,
		"thread", opts.ThreadID,
		"model_calls", rs.limiter.Count(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		ThreadID:           opts.ThreadID,
		Messages:           rs.state.History(),
		State:              rs.state,
		StructuredResponse: rs.response,
		ModelCalls:         rs.limiter.Count(),
	}, nil
}

func (a *Agent) load(ctx context.Context, opts InvokeOptions) (*runState, error) {
	maxCalls := a.opts.MaxModelCalls
	if maxCalls < 0 {
		maxCalls = 0
	}

	rs := &runState{opts: opts, limiter: core.NewModelLimiter(maxCalls)}

	if a.opts.Checkpointer != nil && opts.ThreadID != "" {
		cp, err := a.opts.Checkpointer.Get(ctx, opts.ThreadID)

		switch {
		case err == nil:
			rs.state = cp.State
			rs.step = cp.Step
		case errors.Is(err, checkpoint.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
	}

	if rs.state == nil {
		rs.state = core.NewState(nil)
	}

	for k, v := range a.opts.StateDefaults {
		if _, ok := rs.state.Get(k); !ok {
			rs.state.Set(k, v)
		}
	}

	return rs, nil
}

func (a *Agent) save(ctx context.Context, rs *runState) error {
	if a.opts.Checkpointer == nil || rs.opts.ThreadID == "" {
		return nil
	}

	cp := &checkpoint.Checkpoint{ThreadID: rs.opts.ThreadID, State: rs.state, Step: rs.step}
	if err := a.opts.Checkpointer.Put(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// step performs one model call and executes any tools it requested.
func (a *Agent) step(ctx context.Context, rs *runState, emit emitFunc) error {
	for _, mw := range a.opts.Middleware {
		if mw.BeforeModel == nil {
			continue
		}

		if err := mw.BeforeModel(ctx, rs.state, rs.opts.Runtime); err != nil {
			return fmt.Errorf("middleware %s: %w", mw.Name, err)
		}
	}

	if err := rs.limiter.Increment(); err != nil {
		return err
	}

	req, err := a.buildRequest(ctx, rs)
	if err != nil {
		return err
	}

	start := time.Now()

	resp, err := chainModel(a.opts.Middleware, invokeModel)(ctx, req)
	a.logModelCall(req, resp, time.Since(start), err)

	if err != nil {
		return err
	}

	msg := resp.Content
	msg.Role = core.RoleAssistant

	rs.state.Append(msg)
	rs.step++

	if err := a.emit(emit, rs, core.NodeModel, []core.Content{msg}); err != nil {
		return err
	}

	calls := msg.FunctionCalls()
	if len(calls) == 0 {
		return a.finish(rs, msg)
	}

	var (
		regular  []core.FunctionCall
		response *core.FunctionCall
	)

	for i, fc := range calls {
		if a.isResponseTool(fc.Name) && response == nil {
			response = &calls[i]
			continue
		}

		regular = append(regular, fc)
	}

	toolMsgs := a.executor.execute(ctx, regular, rs.state, rs.opts.Runtime)

	if response != nil {
		reply, err := a.acceptToolResponse(rs, *response)
		if err != nil {
			return err
		}

		toolMsgs = append(toolMsgs, reply)
	}

	rs.state.Append(toolMsgs...)
	rs.step++

	return a.emit(emit, rs, core.NodeTools, toolMsgs)
}

func (a *Agent) logModelCall(req *ModelRequest, resp *model.Response, dur time.Duration, err error) {
	name := req.Model.Info().Name

	tokens := 0
	if resp != nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}

	if cl, ok := a.opts.Logger.(logging.CallLogger); ok {
		cl.LogModelCall(name, tokens, dur, err == nil, err)
		return
	}

	a.opts.Logger.Debug("agent.model.call", "agent", a.opts.Name, "model", name, "tokens", tokens, "duration_ms", dur.Milliseconds(), "error", err != nil)
}

func invokeModel(ctx context.Context, req *ModelRequest) (*model.Response, error) {
	return model.Invoke(ctx, req.Model, req.Request)
}

func (a *Agent) buildRequest(ctx context.Context, rs *runState) (*ModelRequest, error) {
	instructions, err := a.opts.Instruction.Resolve(ctx, InstructionContext{
		ThreadID: rs.opts.ThreadID,
		State:    rs.state,
		Runtime:  rs.opts.Runtime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve instruction: %w", err)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     rs.state.History(),
		Tools:        tool.Definitions(a.opts.Tools...),
	}

	if rf := a.opts.ResponseFormat; rf != nil {
		switch rf.Kind {
		case structured.KindProvider:
			req.ResponseFormat = rf.Format.ResponseFormat()
		default:
			req.Tools = append(req.Tools, rf.Format.ToolDefinition())
		}
	}

	return &ModelRequest{
		Model:    a.model,
		Request:  req,
		State:    rs.state,
		Runtime:  rs.opts.Runtime,
		ThreadID: rs.opts.ThreadID,
	}, nil
}

func (a *Agent) isResponseTool(name string) bool {
	rf := a.opts.ResponseFormat
	return rf != nil && rf.Kind == structured.KindTool && rf.Format.Name == name
}

// finish handles a model turn without tool calls.
func (a *Agent) finish(rs *runState, msg core.Content) error {
	rs.done = true

	rf := a.opts.ResponseFormat
	if rf == nil {
		return nil
	}

	parsed, err := structured.Decode[map[string]any](msg.Text(), rf.Format)
	if err != nil {
		if rf.Kind == structured.KindProvider {
			return fmt.Errorf("failed to parse structured response: %w", err)
		}

		// A tool strategy model that answered in prose leaves no structured response.
		a.opts.Logger.Warn("agent.structured.missing", "agent", a.opts.Name, "error", err.Error())

		return nil
	}

	rs.response = parsed

	return nil
}

// acceptToolResponse validates the arguments of the structured response
// tool. Invalid arguments are reported back so the model can retry.
func (a *Agent) acceptToolResponse(rs *runState, fc core.FunctionCall) (core.Content, error) {
	f := a.opts.ResponseFormat.Format

	args := map[string]any{}
	err := json.Unmarshal([]byte(fc.Arguments), &args)

	if err == nil {
		err = f.Validate(args)
	}

	if err != nil {
		rs.retries++
		if rs.retries > a.opts.ResponseFormat.Retries() {
			return core.Content{}, fmt.Errorf("structured response %s failed validation after %d retries: %w", f.Name, rs.retries-1, err)
		}

		a.opts.Logger.Warn("agent.structured.retry", "agent", a.opts.Name, "format", f.Name, "attempt", rs.retries, "error", err.Error())

		return core.NewToolResponse(fc.ID, fc.Name, nil, fmt.Errorf("invalid structured response: %w. Please fix your mistakes", err)), nil
	}

	rs.response = args
	rs.done = true

	b, _ := json.Marshal(args)

	return core.NewToolResponse(fc.ID, fc.Name, "Returning structured response: "+string(b), nil), nil
}
