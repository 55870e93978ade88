// Package llm provides the provider gateway: one implementation per hosted
// model family, each exposing generation plus that family's cost model.
// Providers are injected as a constructed registry map rather than looked up
// dynamically by string.
package llm

import (
	"context"
	"fmt"

	"github.com/jonathan/image-labeler/internal/pricing"
)

// Family identifies a provider family. Each family has a distinct
// image-costing formula.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyGemini    Family = "gemini"
	FamilyOllama    Family = "ollama"
)

// GenerateRequest describes one model call.
type GenerateRequest struct {
	Model         string
	Prompt        string
	SystemMessage string
	// Image and ImageMIME are optional; steps after the first typically send
	// text only.
	Image       []byte
	ImageMIME   string
	Temperature float64
	MaxTokens   int
}

// GenerateResult is the provider's response.
type GenerateResult struct {
	Text      string
	LatencyMs int64
	Usage     pricing.Usage
}

// EstimateInput carries the pre-run inputs for cost estimation.
type EstimateInput struct {
	InputText string
	// OutputEstimate is representative output text used to size the
	// completion.
	OutputEstimate string
	Images         [][]byte
}

// Provider is a single model family: generation plus that family's cost
// accounting. Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider family.
	Name() Family
	// Generate performs one model call.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	// EstimateCost computes the pre-run estimate for one call using this
	// family's image token formula.
	EstimateCost(in EstimateInput, cfg pricing.Config) pricing.Estimate
	// ActualCost computes post-call cost from provider-reported usage,
	// rounded to 6 decimal places.
	ActualCost(usage pricing.Usage, cfg pricing.Config, hasImage bool) float64
}

// Credentials holds per-family API configuration for building a registry.
type Credentials struct {
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	OllamaHost   string
}

// Registry maps families to providers. Built once at startup and injected.
type Registry map[Family]Provider

// NewRegistry constructs all provider families. Families without credentials
// still estimate costs; their Generate fails with a configuration error.
func NewRegistry(creds Credentials) Registry {
	return Registry{
		FamilyOpenAI:    NewOpenAIProvider(creds.OpenAIKey),
		FamilyAnthropic: NewAnthropicProvider(creds.AnthropicKey),
		FamilyGemini:    NewGeminiProvider(creds.GeminiKey),
		FamilyOllama:    NewOllamaProvider(creds.OllamaHost),
	}
}

// Get returns the provider for a family name.
func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[Family(name)]
	if !ok {
		return nil, fmt.Errorf("unknown provider family %q", name)
	}
	return p, nil
}
