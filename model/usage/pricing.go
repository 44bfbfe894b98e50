package usage

import (
	"strings"

	"github.com/hupe1980/agentcookbook/model"
)

// Price is a model price in USD per one million tokens.
type Price struct {
	Input  float64
	Output float64
}

// Catalog maps model names (or name prefixes) to prices.
type Catalog map[string]Price

// DefaultCatalog returns list prices for the models the lessons use.
func DefaultCatalog() Catalog {
	return Catalog{
		"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
		"gpt-4o":            {Input: 2.50, Output: 10.00},
		"gpt-4-turbo":       {Input: 10.00, Output: 30.00},
		"gpt-3.5-turbo":     {Input: 0.50, Output: 1.50},
		"o1-mini":           {Input: 1.10, Output: 4.40},
		"o3-mini":           {Input: 1.10, Output: 4.40},
		"o1":                {Input: 15.00, Output: 60.00},
		"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
		"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
		"claude-3-opus":     {Input: 15.00, Output: 75.00},
		"claude-3-haiku":    {Input: 0.25, Output: 1.25},
		"gemini-2.0-flash":  {Input: 0.10, Output: 0.40},
		"gemini-1.5-pro":    {Input: 1.25, Output: 5.00},
	}
}

// With returns a copy of c with overrides applied.
func (c Catalog) With(overrides map[string]Price) Catalog {
	out := make(Catalog, len(c)+len(overrides))
	for k, v := range c {
		out[k] = v
	}

	for k, v := range overrides {
		out[k] = v
	}

	return out
}

// Lookup finds the price for modelName: an exact match first, then the
// longest catalog key that prefixes the name (dated snapshots such as
// gpt-4o-mini-2024-07-18 resolve to gpt-4o-mini).
func (c Catalog) Lookup(modelName string) (Price, bool) {
	if p, ok := c[modelName]; ok {
		return p, true
	}

	best := ""

	for key := range c {
		if strings.HasPrefix(modelName, key) && len(key) > len(best) {
			best = key
		}
	}

	if best == "" {
		return Price{}, false
	}

	return c[best], true
}

// Cost returns the USD cost of u on modelName. Reasoning tokens are billed
// as output tokens and are already part of CompletionTokens.
func (c Catalog) Cost(modelName string, u model.TokenUsage) (float64, bool) {
	p, ok := c.Lookup(modelName)
	if !ok {
		return 0, false
	}

	return float64(u.PromptTokens)/1e6*p.Input + float64(u.CompletionTokens)/1e6*p.Output, true
}
