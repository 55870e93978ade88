package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/image-labeler/internal/chain"
	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/llm"
	"github.com/jonathan/image-labeler/internal/pricing"
)

var estimateCommand = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the cost of a run without executing it",
	Long: `Computes the pre-run cost of a chain over the selected items using the
provider family's token accounting: tokenized prompt text plus the family's
image formula (512px tiles, pixel area, or flat per-image pricing).`,
	RunE: estimateCmd,
}

var (
	estCollection     string
	estChainPath      string
	estSelectionPath  string
	estPricingPath    string
	estProvider       string
	estOutputEstimate string
)

func init() {
	estimateCommand.Flags().StringVarP(&estCollection, "collection", "c", "", "Collection UUID to estimate over")
	estimateCommand.Flags().StringVar(&estChainPath, "chain", "", "Path to prompt chain JSON file")
	estimateCommand.Flags().StringVar(&estSelectionPath, "selection", "", "Path to selection config JSON file (default: all items)")
	estimateCommand.Flags().StringVar(&estPricingPath, "pricing", "", "Path to pricing config JSON file")
	estimateCommand.Flags().StringVarP(&estProvider, "provider", "p", "openai", "Provider family: openai, anthropic, gemini, ollama")
	estimateCommand.Flags().StringVar(&estOutputEstimate, "output-estimate", "yes", "Representative output text used to size completions")

	_ = estimateCommand.MarkFlagRequired("collection")
	_ = estimateCommand.MarkFlagRequired("chain")
	_ = estimateCommand.MarkFlagRequired("pricing")

	rootCmd.AddCommand(estimateCommand)
}

func estimateCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	collectionID, err := uuid.Parse(estCollection)
	if err != nil {
		return fmt.Errorf("invalid collection id: %w", err)
	}
	steps, err := loadChainFile(estChainPath)
	if err != nil {
		return err
	}
	sel, err := loadSelectionFile(estSelectionPath)
	if err != nil {
		return err
	}
	pricingCfg, err := loadPricingFile(estPricingPath)
	if err != nil {
		return err
	}
	provider, err := a.providers.Get(estProvider)
	if err != nil {
		return err
	}

	items, err := a.database.ListForSelection(ctx, collectionID, sel)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("selection matched no items")
	}

	total := estimateItems(ctx, a, provider, items, steps, pricingCfg)
	fmt.Printf("Estimated cost for %d items on %s: $%.6f ($%.6f per item)\n",
		len(items), estProvider, total, total/float64(len(items)))
	return nil
}

// estimateItems sums the per-item estimate over all items. Each item's image
// bytes feed the provider family's image token formula; items whose bytes
// cannot be read are estimated as text-only.
func estimateItems(ctx context.Context, a *app, provider llm.Provider, items []db.Item, steps []chain.Step, cfg pricing.Config) float64 {
	prompts := make([]string, len(steps))
	for i, step := range steps {
		prompts[i] = step.SystemMessage + "\n" + step.Prompt
	}
	inputText := strings.Join(prompts, "\n")
	outputEstimate := estOutputEstimate
	if outputEstimate == "" {
		outputEstimate = "yes"
	}

	var total float64
	for _, item := range items {
		in := llm.EstimateInput{InputText: inputText, OutputEstimate: outputEstimate}
		data, err := a.store.Download(ctx, item.StoragePath)
		if err != nil {
			a.logger.Warn("estimating without image bytes", "item_id", item.ID, "error", err)
		} else {
			in.Images = [][]byte{data}
		}
		total += provider.EstimateCost(in, cfg).TotalCost
	}
	return pricing.Round6(total)
}
