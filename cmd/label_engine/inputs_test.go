package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/image-labeler/internal/pricing"
	"github.com/jonathan/image-labeler/internal/selection"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadChainFile(t *testing.T) {
	path := writeTempFile(t, "chain.json",
		`[{"step_number":1,"prompt":"Describe."},{"step_number":2,"system_message":"Be terse.","prompt":"Given {output1}, answer yes or no."}]`)

	steps, err := loadChainFile(path)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, "Be terse.", steps[1].SystemMessage)
}

func TestLoadChainFileRejectsForwardReference(t *testing.T) {
	// Passes the schema but violates the semantic reference rule.
	path := writeTempFile(t, "chain.json",
		`[{"step_number":1,"prompt":"Use {output1} before it exists."}]`)

	_, err := loadChainFile(path)
	require.Error(t, err)
}

func TestLoadChainFileRejectsSchemaViolation(t *testing.T) {
	path := writeTempFile(t, "chain.json", `[{"step_number":1}]`)

	_, err := loadChainFile(path)
	require.Error(t, err)
}

func TestLoadChainFileMissing(t *testing.T) {
	_, err := loadChainFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadSelectionFileDefaultsToAll(t *testing.T) {
	cfg, err := loadSelectionFile("")
	require.NoError(t, err)
	assert.Equal(t, selection.ModeAll, cfg.Mode)
}

func TestLoadSelectionFile(t *testing.T) {
	path := writeTempFile(t, "selection.json", `{"mode":"random_count","count":25}`)

	cfg, err := loadSelectionFile(path)
	require.NoError(t, err)
	assert.Equal(t, selection.ModeRandomCount, cfg.Mode)
	assert.Equal(t, 25, cfg.Count)
}

func TestLoadSelectionFileRejectsBadMode(t *testing.T) {
	path := writeTempFile(t, "selection.json", `{"mode":"everything"}`)

	_, err := loadSelectionFile(path)
	require.Error(t, err)
}

func TestLoadPricingFileDefaultsToZero(t *testing.T) {
	cfg, err := loadPricingFile("")
	require.NoError(t, err)
	assert.Zero(t, cfg.InputPricePer1M)
	assert.Zero(t, cfg.OutputPricePer1M)
}

func TestLoadPricingFile(t *testing.T) {
	path := writeTempFile(t, "pricing.json",
		`{"input_price_per_1m":2.5,"output_price_per_1m":10,"image_price_mode":"per_tile","discount_percent":20}`)

	cfg, err := loadPricingFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.InputPricePer1M)
	assert.Equal(t, pricing.PricePerTile, cfg.ImagePriceMode)
	assert.Equal(t, 20.0, cfg.DiscountPercent)
}

func TestLoadPricingFileRejectsNegativePrice(t *testing.T) {
	path := writeTempFile(t, "pricing.json", `{"input_price_per_1m":-1,"output_price_per_1m":1}`)

	_, err := loadPricingFile(path)
	require.Error(t, err)
}
