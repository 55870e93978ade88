package llm

import (
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/jonathan/image-labeler/internal/pricing"
)

// NewOpenAIProvider builds the OpenAI family. Images are billed as 512px
// tiles after the detail-mode rescale.
func NewOpenAIProvider(apiKey string) Provider {
	return &langchainProvider{
		family: FamilyOpenAI,
		newModel: func() (llms.Model, error) {
			if err := requireKey(FamilyOpenAI, apiKey); err != nil {
				return nil, err
			}
			return openai.New(openai.WithToken(apiKey))
		},
		imageTokens: func(data []byte) int {
			w, h, err := pricing.Dimensions(data)
			if err != nil {
				// Unreadable header: bill the low-detail floor.
				return pricing.OpenAIImageTokens(0, 0, true)
			}
			return pricing.OpenAIImageTokens(w, h, false)
		},
	}
}
