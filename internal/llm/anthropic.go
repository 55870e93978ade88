package llm

import (
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/jonathan/image-labeler/internal/pricing"
)

// NewAnthropicProvider builds the Anthropic family. Images are billed by
// pixel area: ceil(width*height/750) tokens.
func NewAnthropicProvider(apiKey string) Provider {
	return &langchainProvider{
		family: FamilyAnthropic,
		newModel: func() (llms.Model, error) {
			if err := requireKey(FamilyAnthropic, apiKey); err != nil {
				return nil, err
			}
			return anthropic.New(anthropic.WithToken(apiKey))
		},
		imageTokens: func(data []byte) int {
			w, h, err := pricing.Dimensions(data)
			if err != nil {
				return 0
			}
			return pricing.AnthropicImageTokens(w, h)
		},
	}
}
