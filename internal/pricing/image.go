package pricing

import (
	"bytes"
	"image"
	"math"

	// Registered for image.DecodeConfig dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// openAIMaxDim is the bound applied to the longest image side before tiling.
	openAIMaxDim = 2048
	// openAIShortSide is the target for the short side after bounding.
	openAIShortSide = 768
	// openAITileSize is the square tile edge used for token accounting.
	openAITileSize = 512
	// openAITileTokens is the token cost per 512px tile.
	openAITileTokens = 170
	// openAIBaseTokens is the flat token cost added to every image, and the
	// entire cost in low-detail mode.
	openAIBaseTokens = 85

	// anthropicTokenDivisor converts pixel area to tokens: ceil(w*h/750).
	anthropicTokenDivisor = 750

	// geminiImageTokens is the approximate fixed token-equivalent used when
	// Gemini-style providers are configured for token billing.
	geminiImageTokens = 258
)

// Dimensions reports an image's width and height from its encoded bytes.
// Only the header is decoded.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// OpenAIImageTokens computes the token cost of an image for OpenAI-style
// providers: the image is bounded to 2048px on its longest side, scaled so
// the short side is 768px, then tiled into 512px blocks at 170 tokens each
// plus an 85-token base. Low-detail mode costs the flat 85 tokens.
func OpenAIImageTokens(width, height int, lowDetail bool) int {
	if lowDetail {
		return openAIBaseTokens
	}
	if width <= 0 || height <= 0 {
		return openAIBaseTokens
	}

	w, h := float64(width), float64(height)

	// Bound the longest side to 2048px.
	if longest := math.Max(w, h); longest > openAIMaxDim {
		scale := openAIMaxDim / longest
		w *= scale
		h *= scale
	}

	// Scale the short side down to 768px.
	if shortest := math.Min(w, h); shortest > openAIShortSide {
		scale := openAIShortSide / shortest
		w *= scale
		h *= scale
	}

	tiles := math.Ceil(w/openAITileSize) * math.Ceil(h/openAITileSize)
	return int(tiles)*openAITileTokens + openAIBaseTokens
}

// AnthropicImageTokens computes the token cost of an image for
// Anthropic-style providers: ceil(width*height/750).
func AnthropicImageTokens(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return int(math.Ceil(float64(width) * float64(height) / anthropicTokenDivisor))
}

// GeminiImageTokens returns the fixed token-equivalent used for Gemini-style
// providers configured for per-tile (token) billing. Flat per-image billing
// bypasses tokens entirely and is handled by the cost functions.
func GeminiImageTokens() int {
	return geminiImageTokens
}
