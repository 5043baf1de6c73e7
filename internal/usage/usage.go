// Package usage estimates and prices token consumption.
package usage

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Estimation constants for a full architecture run.
const (
	// CharsPerToken approximates English text tokenization.
	CharsPerToken = 4
	// PromptOverhead covers the role prompts and schemas of every agent.
	PromptOverhead = 2300
	// ExpectedOutput is the typical completion size of a run.
	ExpectedOutput = 1500
)

// Rates are blended USD prices per million tokens, keyed by provider.
type Rates map[string]float64

// DefaultRates prices the built-in providers. Local providers are free.
var DefaultRates = Rates{
	"openai":     10,
	"gemini":     3.5,
	"claude":     9,
	"ollama":     0,
	"claude-cli": 0,
}

// Rate returns the price per million tokens for provider; unknown
// providers cost nothing.
func (r Rates) Rate(provider string) float64 {
	return r[strings.ToLower(provider)]
}

// Cost prices totalTokens for provider.
func (r Rates) Cost(provider string, totalTokens int) float64 {
	if totalTokens <= 0 {
		return 0
	}
	return float64(totalTokens) / 1_000_000 * r.Rate(provider)
}

// Cost prices totalTokens with DefaultRates.
func Cost(provider string, totalTokens int) float64 {
	return DefaultRates.Cost(provider, totalTokens)
}

// Estimate is a pre-run projection.
type Estimate struct {
	Provider     string  `json:"provider"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// EstimateRun projects the tokens and cost of running request through the
// architecture pipeline once.
func (r Rates) EstimateRun(provider, request string) Estimate {
	input := int(math.Ceil(float64(utf8.RuneCountInString(request))/CharsPerToken)) + PromptOverhead
	total := input + ExpectedOutput
	return Estimate{
		Provider:     provider,
		InputTokens:  input,
		OutputTokens: ExpectedOutput,
		TotalTokens:  total,
		Cost:         r.Cost(provider, total),
	}
}

// EstimateRun uses DefaultRates.
func EstimateRun(provider, request string) Estimate {
	return DefaultRates.EstimateRun(provider, request)
}
