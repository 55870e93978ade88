package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSelectionConfig(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"all mode", `{"mode":"all"}`, false},
		{"manual with ids", `{"mode":"manual","image_ids":["8b7a3f6e-1d2c-4e5f-9a8b-7c6d5e4f3a2b"]}`, false},
		{"manual without ids", `{"mode":"manual"}`, true},
		{"random_count", `{"mode":"random_count","count":10}`, false},
		{"random_count missing count", `{"mode":"random_count"}`, true},
		{"random_percent", `{"mode":"random_percent","percent":25.5}`, false},
		{"percent over 100", `{"mode":"random_percent","percent":120}`, true},
		{"zero count", `{"mode":"random_count","count":0}`, true},
		{"unknown mode", `{"mode":"everything"}`, true},
		{"extra field", `{"mode":"all","shuffle":true}`, true},
		{"missing mode", `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelectionConfig([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePromptChain(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"single step", `[{"step_number":1,"prompt":"Is there a person?"}]`, false},
		{"with system message", `[{"step_number":1,"system_message":"Be terse.","prompt":"Describe."}]`, false},
		{
			"two steps",
			`[{"step_number":1,"prompt":"Describe."},{"step_number":2,"prompt":"Given {output1}, answer yes or no."}]`,
			false,
		},
		{"empty array", `[]`, true},
		{"empty prompt", `[{"step_number":1,"prompt":""}]`, true},
		{"missing prompt", `[{"step_number":1}]`, true},
		{"step number zero", `[{"step_number":0,"prompt":"x"}]`, true},
		{
			"six steps",
			`[{"step_number":1,"prompt":"a"},{"step_number":2,"prompt":"b"},{"step_number":3,"prompt":"c"},{"step_number":4,"prompt":"d"},{"step_number":5,"prompt":"e"},{"step_number":6,"prompt":"f"}]`,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePromptChain([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePricingConfig(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"minimal", `{"input_price_per_1m":10,"output_price_per_1m":30}`, false},
		{
			"full",
			`{"input_price_per_1m":2.5,"output_price_per_1m":10,"image_price_mode":"per_image","image_price_val":0.0025,"discount_percent":15}`,
			false,
		},
		{"missing output price", `{"input_price_per_1m":10}`, true},
		{"negative price", `{"input_price_per_1m":-1,"output_price_per_1m":30}`, true},
		{"bad mode", `{"input_price_per_1m":1,"output_price_per_1m":1,"image_price_mode":"per_pixel"}`, true},
		{"discount over 100", `{"input_price_per_1m":1,"output_price_per_1m":1,"discount_percent":150}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePricingConfig([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationErrorReportsFields(t *testing.T) {
	err := ValidateSelectionConfig([]byte(`{"mode":"random_count"}`))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Errors)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateMalformedJSON(t *testing.T) {
	err := ValidatePricingConfig([]byte(`{not json`))
	require.Error(t, err)

	var lerr *SchemaLoadError
	assert.ErrorAs(t, err, &lerr)
}
