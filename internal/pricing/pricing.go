// Package pricing computes estimated and actual costs for LLM calls across
// provider families. Text token counts come from a tokenizer where one is
// available and a characters/4 heuristic otherwise; image token counts use a
// provider-specific formula.
package pricing

import (
	"fmt"
	"math"
)

// ImagePriceMode selects how a provider bills images.
type ImagePriceMode string

const (
	// PricePerImage bills a flat price per image.
	PricePerImage ImagePriceMode = "per_image"
	// PricePerTile bills images as a token count derived from dimensions.
	PricePerTile ImagePriceMode = "per_tile"
)

// Config holds per-provider pricing. Prices are USD per million tokens.
// A zero-value Config prices everything at 0.
type Config struct {
	InputPricePer1M  float64        `json:"input_price_per_1m"`
	OutputPricePer1M float64        `json:"output_price_per_1m"`
	ImagePriceMode   ImagePriceMode `json:"image_price_mode,omitempty"`
	ImagePriceVal    float64        `json:"image_price_val,omitempty"`
	DiscountPercent  float64        `json:"discount_percent,omitempty"`
}

// Validate checks pricing values for sanity.
func (c Config) Validate() error {
	if c.InputPricePer1M < 0 || c.OutputPricePer1M < 0 || c.ImagePriceVal < 0 {
		return fmt.Errorf("prices must be non-negative")
	}
	if c.DiscountPercent < 0 || c.DiscountPercent > 100 {
		return fmt.Errorf("discount_percent must be in [0,100], got %v", c.DiscountPercent)
	}
	if c.ImagePriceMode != "" && c.ImagePriceMode != PricePerImage && c.ImagePriceMode != PricePerTile {
		return fmt.Errorf("unknown image_price_mode %q", c.ImagePriceMode)
	}
	return nil
}

// Usage is the provider-reported token usage for a single call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Estimate is a pre-run cost breakdown for one call.
type Estimate struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	ImageTokens  int     `json:"image_tokens"`
	ImageCost    float64 `json:"image_cost"`
	TotalCost    float64 `json:"total_cost"`
}

// EstimateCost computes the pre-run cost of a call given token counts already
// split into text and image portions. Image tokens are billed at the input
// rate; flat image cost (per_image mode) is added after the token math.
// The result is never negative; an all-zero config yields 0.
func EstimateCost(inputTokens, outputTokens, imageTokens int, flatImageCost float64, cfg Config) float64 {
	cost := float64(inputTokens+imageTokens)/1e6*cfg.InputPricePer1M +
		float64(outputTokens)/1e6*cfg.OutputPricePer1M
	cost += flatImageCost
	cost *= 1 - cfg.DiscountPercent/100
	if cost < 0 {
		return 0
	}
	return cost
}

// ActualCost computes post-call cost from provider-reported usage. Providers
// that fold image tokens into prompt_tokens need no separate image term;
// providers billing images flatly add the flat image price when hasImage is
// set and the config is in per_image mode. Rounded to 6 decimal places.
func ActualCost(usage Usage, cfg Config, hasImage bool) float64 {
	cost := float64(usage.PromptTokens)/1e6*cfg.InputPricePer1M +
		float64(usage.CompletionTokens)/1e6*cfg.OutputPricePer1M
	if hasImage && cfg.ImagePriceMode == PricePerImage {
		cost += cfg.ImagePriceVal
	}
	cost *= 1 - cfg.DiscountPercent/100
	return Round6(cost)
}

// Round6 rounds a cost to 6 decimal places, clamping at zero.
func Round6(cost float64) float64 {
	if cost <= 0 {
		return 0
	}
	return math.Round(cost*1e6) / 1e6
}
