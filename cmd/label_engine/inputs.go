package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/image-labeler/internal/chain"
	"github.com/jonathan/image-labeler/internal/pricing"
	"github.com/jonathan/image-labeler/internal/schemas"
	"github.com/jonathan/image-labeler/internal/selection"
)

// loadChainFile reads, schema-validates, and decodes a prompt chain JSON
// file, then applies the semantic chain rules (contiguous steps, valid
// references).
func loadChainFile(path string) ([]chain.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain file: %w", err)
	}
	if err := schemas.ValidatePromptChain(data); err != nil {
		return nil, err
	}

	var steps []chain.Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse chain JSON: %w", err)
	}
	if err := chain.Validate(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// loadSelectionFile reads and validates a selection config file. An empty
// path selects all items.
func loadSelectionFile(path string) (selection.Config, error) {
	if path == "" {
		return selection.Config{Mode: selection.ModeAll}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return selection.Config{}, fmt.Errorf("failed to read selection file: %w", err)
	}
	if err := schemas.ValidateSelectionConfig(data); err != nil {
		return selection.Config{}, err
	}

	var cfg selection.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return selection.Config{}, fmt.Errorf("failed to parse selection JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return selection.Config{}, err
	}
	return cfg, nil
}

// loadPricingFile reads and validates a pricing config file. An empty path
// yields the zero config, which prices everything at 0.
func loadPricingFile(path string) (pricing.Config, error) {
	if path == "" {
		return pricing.Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pricing.Config{}, fmt.Errorf("failed to read pricing file: %w", err)
	}
	if err := schemas.ValidatePricingConfig(data); err != nil {
		return pricing.Config{}, err
	}

	var cfg pricing.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return pricing.Config{}, fmt.Errorf("failed to parse pricing JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return pricing.Config{}, err
	}
	return cfg, nil
}
