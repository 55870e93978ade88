package llm

import (
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// NewOllamaProvider builds the local Ollama family. Local inference has no
// per-token billing, so images contribute no token cost; a nonzero pricing
// config still prices text tokens for comparison runs.
func NewOllamaProvider(host string) Provider {
	return &langchainProvider{
		family: FamilyOllama,
		newModel: func() (llms.Model, error) {
			opts := []ollama.Option{}
			if host != "" {
				opts = append(opts, ollama.WithServerURL(host))
			}
			return ollama.New(opts...)
		},
		imageTokens: func([]byte) int { return 0 },
	}
}
