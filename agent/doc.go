// Package agent implements a tool-calling agent loop on top of the model,
// tool, structured and checkpoint packages.
//
// Execution Model:
//   - Invoke loads the thread checkpoint (if a checkpointer and thread id are
//     set), appends the input and repeats middleware hooks, a model call and
//     tool execution until the model answers without tool calls or returns a
//     structured response
//   - Tool calls of one turn run in parallel; results are appended in call order
//   - Tool failures, panics and unknown tools become error responses the model
//     can react to; they never abort the run
//   - Stream runs the same loop and emits a core.Event per step
//
// Middleware wraps model and tool calls the way HTTP middleware wraps
// handlers: the first registered middleware is the outermost.
package agent
