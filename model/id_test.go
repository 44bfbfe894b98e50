package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		id       string
		provider string
		name     string
	}{
		{"openai:gpt-4o-mini", ProviderOpenAI, "gpt-4o-mini"},
		{"gpt-4o", ProviderOpenAI, "gpt-4o"},
		{"o3-mini", ProviderOpenAI, "o3-mini"},
		{"claude-3-5-sonnet-20241022", ProviderAnthropic, "claude-3-5-sonnet-20241022"},
		{"Anthropic:claude-3-haiku", ProviderAnthropic, "claude-3-haiku"},
		{"gemini-2.0-flash", ProviderGemini, "gemini-2.0-flash"},
		{"google_genai:gemini-1.5-pro", ProviderGemini, "gemini-1.5-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, n := ParseID(tt.id)
			assert.Equal(t, tt.provider, p)
			assert.Equal(t, tt.name, n)
		})
	}
}
