package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/image-labeler/internal/pricing"
)

// geminiProvider speaks to Google Gemini through the genai SDK. Images are
// billed flat per image by default; when the pricing config asks for token
// billing each image counts as a fixed token-equivalent.
type geminiProvider struct {
	apiKey string

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// NewGeminiProvider builds the Gemini family.
func NewGeminiProvider(apiKey string) Provider {
	return &geminiProvider{apiKey: apiKey}
}

func (p *geminiProvider) Name() Family {
	return FamilyGemini
}

func (p *geminiProvider) init(ctx context.Context) (*genai.Client, error) {
	p.initOnce.Do(func() {
		if err := requireKey(FamilyGemini, p.apiKey); err != nil {
			p.initErr = err
			return
		}
		p.client, p.initErr = genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	})
	if p.initErr != nil {
		return nil, &ProviderError{Provider: FamilyGemini, Message: "client init failed", Err: p.initErr}
	}
	return p.client, nil
}

func (p *geminiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	client, err := p.init(ctx)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.SystemMessage != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemMessage)},
		}
	}

	var parts []genai.Part
	if len(req.Image) > 0 {
		parts = append(parts, genai.ImageData(mimeSubtype(req.ImageMIME), req.Image))
	}
	parts = append(parts, genai.Text(req.Prompt))

	return generateWithRetry(ctx, func() (*GenerateResult, error) {
		start := time.Now()
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return nil, &ProviderError{Provider: FamilyGemini, Message: err.Error(), Err: err}
		}

		text, err := geminiText(resp)
		if err != nil {
			return nil, err
		}

		result := &GenerateResult{
			Text:      text,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if resp.UsageMetadata != nil {
			result.Usage = pricing.Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			}
		}
		return result, nil
	})
}

func (p *geminiProvider) EstimateCost(in EstimateInput, cfg pricing.Config) pricing.Estimate {
	return estimateWith(in, cfg, func([]byte) int { return pricing.GeminiImageTokens() })
}

func (p *geminiProvider) ActualCost(usage pricing.Usage, cfg pricing.Config, hasImage bool) float64 {
	return pricing.ActualCost(usage, cfg, hasImage)
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", &ProviderError{Provider: FamilyGemini, Message: "no candidates in response"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &ProviderError{Provider: FamilyGemini, Message: "no content in response"}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", &ProviderError{Provider: FamilyGemini, Message: "no text parts in response"}
	}
	return strings.Join(parts, ""), nil
}

// mimeSubtype converts "image/png" to the bare format name genai expects.
func mimeSubtype(mime string) string {
	if idx := strings.IndexByte(mime, '/'); idx >= 0 {
		return mime[idx+1:]
	}
	if mime == "" {
		return "jpeg"
	}
	return mime
}
