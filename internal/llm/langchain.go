package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/jonathan/image-labeler/internal/pricing"
)

// langchainProvider is the shared implementation behind the langchaingo-backed
// families. The concrete families differ only in client construction, image
// token formula, and the usage keys their backend reports.
type langchainProvider struct {
	family   Family
	newModel func() (llms.Model, error)
	// imageTokens converts one image's bytes into that family's token cost,
	// used for per-tile estimation.
	imageTokens func(data []byte) int

	initOnce sync.Once
	model    llms.Model
	initErr  error
}

func (p *langchainProvider) Name() Family {
	return p.family
}

// client builds the backend lazily so a registry can be constructed without
// credentials for families the caller never generates with.
func (p *langchainProvider) client() (llms.Model, error) {
	p.initOnce.Do(func() {
		p.model, p.initErr = p.newModel()
	})
	if p.initErr != nil {
		return nil, &ProviderError{Provider: p.family, Message: "client init failed", Err: p.initErr}
	}
	return p.model, nil
}

func (p *langchainProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model, err := p.client()
	if err != nil {
		return nil, err
	}

	var messages []llms.MessageContent
	if req.SystemMessage != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemMessage))
	}
	human := llms.MessageContent{Role: llms.ChatMessageTypeHuman}
	if len(req.Image) > 0 {
		human.Parts = append(human.Parts, llms.BinaryPart(req.ImageMIME, req.Image))
	}
	human.Parts = append(human.Parts, llms.TextContent{Text: req.Prompt})
	messages = append(messages, human)

	opts := []llms.CallOption{llms.WithModel(req.Model)}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	return generateWithRetry(ctx, func() (*GenerateResult, error) {
		start := time.Now()
		resp, err := model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return nil, &ProviderError{Provider: p.family, Message: err.Error(), Err: err}
		}
		if len(resp.Choices) == 0 {
			return nil, &ProviderError{Provider: p.family, Message: "empty response"}
		}
		choice := resp.Choices[0]
		return &GenerateResult{
			Text:      choice.Content,
			LatencyMs: time.Since(start).Milliseconds(),
			Usage:     usageFromGenerationInfo(choice.GenerationInfo),
		}, nil
	})
}

func (p *langchainProvider) EstimateCost(in EstimateInput, cfg pricing.Config) pricing.Estimate {
	return estimateWith(in, cfg, p.imageTokens)
}

func (p *langchainProvider) ActualCost(usage pricing.Usage, cfg pricing.Config, hasImage bool) float64 {
	return pricing.ActualCost(usage, cfg, hasImage)
}

// estimateWith computes a pre-run estimate: text tokens from the tokenizer,
// image cost either flat per image or via the family's token formula.
func estimateWith(in EstimateInput, cfg pricing.Config, imageTokens func([]byte) int) pricing.Estimate {
	est := pricing.Estimate{
		InputTokens:  pricing.CountTokens(in.InputText),
		OutputTokens: pricing.CountTokens(in.OutputEstimate),
	}

	var flat float64
	for _, img := range in.Images {
		if cfg.ImagePriceMode == pricing.PricePerImage {
			flat += cfg.ImagePriceVal
		} else if imageTokens != nil {
			est.ImageTokens += imageTokens(img)
		}
	}
	est.ImageCost = pricing.Round6(flat)
	est.TotalCost = pricing.Round6(
		pricing.EstimateCost(est.InputTokens, est.OutputTokens, est.ImageTokens, flat, cfg))
	return est
}

// usageFromGenerationInfo pulls token usage out of a langchaingo choice.
// Backends disagree on the key names (OpenAI reports PromptTokens /
// CompletionTokens, Anthropic InputTokens / OutputTokens) and on the numeric
// type, so both are normalized here.
func usageFromGenerationInfo(info map[string]any) pricing.Usage {
	return pricing.Usage{
		PromptTokens:     intFromInfo(info, "PromptTokens", "InputTokens"),
		CompletionTokens: intFromInfo(info, "CompletionTokens", "OutputTokens"),
	}
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		v, ok := info[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

func requireKey(family Family, key string) error {
	if key == "" {
		return fmt.Errorf("%s API key not configured", family)
	}
	return nil
}
