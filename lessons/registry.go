package lessons

var registry = []Lesson{
	{ID: "001", Slug: "basic-agent", Title: "Basic agent", Summary: "An agent with only a system prompt.", Run: runBasicAgent},
	{ID: "002", Slug: "tool-agent", Title: "Agent with a tool", Summary: "An arithmetic tool the agent calls on its own.", Run: runToolAgent},
	{ID: "003", Slug: "model-parameters", Title: "Provider model with parameters", Summary: "Temperature, timeout and max tokens on a provider model.", Run: runModelParameters},
	{ID: "004", Slug: "init-model", Title: "Provider-independent model", Summary: "Initialise a model from a provider:model identifier.", Run: runInitModel},
	{ID: "005", Slug: "runtime-context", Title: "Runtime context", Summary: "Tools reading an invocation-scoped user role.", Run: runRuntimeContext},
	{ID: "006", Slug: "structured-response", Title: "Structured response", Summary: "Runtime context plus a typed response format.", Run: runStructuredResponse},
	{ID: "007", Slug: "no-memory", Title: "Agent without memory", Summary: "Each invocation starts from scratch.", Run: runNoMemory},
	{ID: "008", Slug: "memory", Title: "Agent with memory", Summary: "A checkpointer keeps the conversation per thread.", Run: runMemory},
	{ID: "009", Slug: "thread-isolation", Title: "Thread isolation", Summary: "Different threads keep separate histories.", Run: runThreadIsolation},
	{ID: "010", Slug: "dynamic-model", Title: "Dynamic model selection", Summary: "Middleware picks the model by conversation length.", Run: runDynamicModel},
	{ID: "011", Slug: "tool-errors", Title: "Tool error handling", Summary: "Middleware maps tool failures to friendly messages.", Run: runToolErrors},
	{ID: "012", Slug: "dynamic-prompt", Title: "Dynamic system prompt", Summary: "The system prompt follows the user's expertise level.", Run: runDynamicPrompt},
	{ID: "013", Slug: "message-sequences", Title: "Message sequences", Summary: "Single messages, history and typed messages as input.", Run: runMessageSequences},
	{ID: "014", Slug: "tool-strategy", Title: "Tool strategy", Summary: "Structured output through a synthetic tool call.", Run: runToolStrategy},
	{ID: "015", Slug: "provider-strategy", Title: "Provider strategy", Summary: "Structured output enforced natively by the provider.", Run: runProviderStrategy},
	{ID: "016", Slug: "custom-state", Title: "Custom state", Summary: "Middleware-owned state read by tools.", Run: runCustomState},
	{ID: "017", Slug: "state-schema", Title: "State defaults", Summary: "Typed state values seeded per thread.", Run: runStateSchema},
	{ID: "018", Slug: "agent-streaming", Title: "Agent streaming", Summary: "Streaming state values and per-step updates.", Run: runAgentStreaming},
	{ID: "019", Slug: "model-vs-agent", Title: "Model vs agent", Summary: "A bare model does not execute tools, an agent does.", Run: runModelVsAgent},
	{ID: "020", Slug: "manual-tool-loop", Title: "Manual tool loop", Summary: "Binding tools and running the loop by hand.", Run: runManualToolLoop},
	{ID: "021", Slug: "with-structured-output", Title: "Structured output models", Summary: "Typed models, raw results and output methods.", Run: runWithStructuredOutput},
	{ID: "022", Slug: "vision", Title: "Vision", Summary: "Images by URL, base64 and local files.", Run: runVision},
	{ID: "023", Slug: "multimodal-media", Title: "Audio, video and PDF", Summary: "Gemini media parts and Whisper transcription.", Run: runMultimodalMedia},
	{ID: "024", Slug: "reasoning-models", Title: "Reasoning models", Summary: "Standard vs reasoning model on a logic puzzle.", Run: runReasoningModels},
	{ID: "025", Slug: "invoke-stream-batch", Title: "Invoke, stream and batch", Summary: "The three ways to call a model.", Run: runInvokeStreamBatch},
	{ID: "026", Slug: "sampling-parameters", Title: "Sampling parameters", Summary: "Temperature, top_p, penalties, stop, seed and presets.", Run: runSamplingParameters},
	{ID: "027", Slug: "rate-limiting", Title: "Rate limiting", Summary: "A shared token bucket in front of model calls.", Run: runRateLimiting},
	{ID: "028", Slug: "token-usage", Title: "Token usage", Summary: "Usage metadata, running totals and cost.", Run: runTokenUsage},
	{ID: "029", Slug: "run-config", Title: "Run config", Summary: "Tags, metadata, callbacks and concurrency per run.", Run: runRunConfig},
	{ID: "030", Slug: "configurable-models", Title: "Configurable models", Summary: "Runtime-selected fields and model alternatives.", Run: runConfigurableModels},
	{ID: "031", Slug: "logprobs", Title: "Log probabilities", Summary: "Token confidence and uncertainty detection.", Run: runLogprobs},
	{ID: "032", Slug: "tool-choice", Title: "Tool choice", Summary: "Forcing, selecting and disabling tool calls.", Run: runToolChoice},
}
