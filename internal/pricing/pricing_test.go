package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActualCost(t *testing.T) {
	cfg := Config{InputPricePer1M: 2.50, OutputPricePer1M: 10.00}

	// 1000 prompt + 500 completion tokens:
	// 1000/1e6*2.50 + 500/1e6*10.00 = 0.0025 + 0.005 = 0.0075
	cost := ActualCost(Usage{PromptTokens: 1000, CompletionTokens: 500}, cfg, false)
	assert.Equal(t, 0.0075, cost)
}

func TestActualCostDiscount(t *testing.T) {
	cfg := Config{InputPricePer1M: 1.00, OutputPricePer1M: 1.00, DiscountPercent: 50}
	cost := ActualCost(Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}, cfg, false)
	assert.Equal(t, 1.0, cost)
}

func TestActualCostFlatImage(t *testing.T) {
	cfg := Config{
		InputPricePer1M: 1.00,
		ImagePriceMode:  PricePerImage,
		ImagePriceVal:   0.0025,
	}

	withImage := ActualCost(Usage{PromptTokens: 1000}, cfg, true)
	withoutImage := ActualCost(Usage{PromptTokens: 1000}, cfg, false)
	assert.Equal(t, 0.0035, withImage)
	assert.Equal(t, 0.001, withoutImage)
}

func TestActualCostRounding(t *testing.T) {
	cfg := Config{InputPricePer1M: 0.1}
	// 7/1e6*0.1 = 0.0000007 -> rounds to 0.000001
	cost := ActualCost(Usage{PromptTokens: 7}, cfg, false)
	assert.Equal(t, 0.000001, cost)
}

func TestActualCostNeverNegative(t *testing.T) {
	cost := ActualCost(Usage{}, Config{}, false)
	assert.GreaterOrEqual(t, cost, 0.0)
	assert.Equal(t, 0.0, cost)
}

func TestEstimateCost(t *testing.T) {
	cfg := Config{InputPricePer1M: 2.00, OutputPricePer1M: 8.00}

	// (1000 input + 500 image) tokens at input rate + 200 output tokens.
	cost := EstimateCost(1000, 200, 500, 0, cfg)
	assert.InDelta(t, 1500.0/1e6*2.00+200.0/1e6*8.00, cost, 1e-12)
}

func TestEstimateCostMissingConfigIsZero(t *testing.T) {
	assert.Equal(t, 0.0, EstimateCost(10_000, 10_000, 5000, 0, Config{}))
}

func TestOpenAIImageTokens(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		lowDetail     bool
		want          int
	}{
		// 512x512 fits a single tile: 170*1 + 85
		{"single tile", 512, 512, false, 255},
		// 1024x1024 scales to 768x768 -> 2x2 tiles: 170*4 + 85
		{"square scales to short side", 1024, 1024, false, 765},
		// 2048x4096 bounds to 1024x2048, then scales to 768x1536 -> 2x3 tiles
		{"tall image", 2048, 4096, false, 170*6 + 85},
		{"low detail flat", 4000, 3000, true, 85},
		{"unknown dimensions fall back to base", 0, 0, false, 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OpenAIImageTokens(tt.width, tt.height, tt.lowDetail))
		})
	}
}

func TestAnthropicImageTokens(t *testing.T) {
	// ceil(1000*750/750) = 1000
	assert.Equal(t, 1000, AnthropicImageTokens(1000, 750))
	// ceil(100*100/750) = ceil(13.33) = 14
	assert.Equal(t, 14, AnthropicImageTokens(100, 100))
	assert.Equal(t, 0, AnthropicImageTokens(0, 100))
}

func TestGeminiImageTokens(t *testing.T) {
	assert.Equal(t, 258, GeminiImageTokens())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{InputPricePer1M: 1, ImagePriceMode: PricePerImage}.Validate())
	assert.Error(t, Config{InputPricePer1M: -1}.Validate())
	assert.Error(t, Config{DiscountPercent: 120}.Validate())
	assert.Error(t, Config{ImagePriceMode: "per_pixel"}.Validate())
}

func TestHeuristicTokens(t *testing.T) {
	assert.Equal(t, 0, heuristicTokens(""))
	assert.Equal(t, 1, heuristicTokens("ab"))
	assert.Equal(t, 3, heuristicTokens("twelve chars"))
}
