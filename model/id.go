package model

import "strings"

// Providers understood by ParseID.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ParseID splits a "provider:model" identifier. A bare model name gets its
// provider inferred from well-known prefixes (gpt-, o1, o3, claude-,
// gemini-); unknown names default to openai.
func ParseID(id string) (provider, name string) {
	if p, n, ok := strings.Cut(id, ":"); ok {
		p = strings.ToLower(p)
		if p == "google" || p == "google_genai" {
			p = ProviderGemini
		}

		return p, n
	}

	lower := strings.ToLower(id)

	switch {
	case strings.HasPrefix(lower, "claude"):
		return ProviderAnthropic, id
	case strings.HasPrefix(lower, "gemini"):
		return ProviderGemini, id
	default:
		return ProviderOpenAI, id
	}
}
