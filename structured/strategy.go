package structured

// StrategyKind selects how an agent obtains structured output.
type StrategyKind string

// Strategy kinds.
const (
	// KindTool exposes the schema as a synthetic tool; invalid arguments are
	// reported back to the model so it can retry.
	KindTool StrategyKind = "tool"
	// KindProvider asks the provider to enforce the schema natively.
	KindProvider StrategyKind = "provider"
)

// Strategy pairs a Format with the mechanism used to enforce it.
type Strategy struct {
	Kind   StrategyKind
	Format Format
	// MaxRetries bounds validation retries for KindTool; zero means 2.
	MaxRetries int
}

// ToolStrategy enforces f through a synthetic tool call.
func ToolStrategy(f Format) Strategy {
	return Strategy{Kind: KindTool, Format: f}
}

// ProviderStrategy enforces f with the provider's native JSON schema support.
func ProviderStrategy(f Format) Strategy {
	return Strategy{Kind: KindProvider, Format: f}
}

// Retries returns the effective retry budget.
func (s Strategy) Retries() int {
	if s.MaxRetries <= 0 {
		return 2
	}

	return s.MaxRetries
}
