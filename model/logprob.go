package model

import "math"

// Confidence levels reported by ConfidenceLevel.
const (
	ConfidenceHigh     = "high"
	ConfidenceModerate = "moderate"
	ConfidenceLow      = "low"
)

// Probability converts a natural-log probability to a probability in [0, 1].
func Probability(logprob float64) float64 {
	return math.Exp(logprob)
}

// Confidence returns the mean token probability, or 0 when there are no tokens.
func Confidence(tokens []TokenLogprob) float64 {
	if len(tokens) == 0 {
		return 0
	}

	var sum float64
	for _, t := range tokens {
		sum += Probability(t.Logprob)
	}

	return sum / float64(len(tokens))
}

// ConfidenceLevel buckets a confidence value: above 0.8 is high, above 0.5 is
// moderate, anything else is low.
func ConfidenceLevel(c float64) string {
	switch {
	case c > 0.8:
		return ConfidenceHigh
	case c > 0.5:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}

// UncertainToken is a generated token whose probability fell below a threshold.
type UncertainToken struct {
	Index       int
	Token       string
	Probability float64
}

// UncertainTokens returns the tokens whose probability is below threshold.
func UncertainTokens(tokens []TokenLogprob, threshold float64) []UncertainToken {
	var out []UncertainToken

	for i, t := range tokens {
		if p := Probability(t.Logprob); p < threshold {
			out = append(out, UncertainToken{Index: i, Token: t.Token, Probability: p})
		}
	}

	return out
}

// Accept reports whether the average confidence reaches minConfidence.
func Accept(tokens []TokenLogprob, minConfidence float64) (bool, float64) {
	c := Confidence(tokens)
	return c >= minConfidence, c
}
