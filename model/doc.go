// Package model defines the provider-agnostic abstractions for talking to
// language models.
//
// A Model streams partial responses and a final response over channels.
// Invoke, Stream and Batch wrap that channel protocol for callers that want a
// single result, a callback per chunk, or bounded fan-out, and they notify any
// Observer attached to the context (usage tracking, run handlers, telemetry).
//
// Bind attaches request defaults such as sampling Settings, tools or a tool
// choice to a model. Vendor adapters live in the openai, anthropic and gemini
// subpackages; MockModel serves tests and examples.
package model
