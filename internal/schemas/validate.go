// Package schemas validates the engine's JSON contracts (selection config,
// prompt chain, pricing config) against embedded JSON Schemas before any
// structural decoding happens.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed selection_config.schema.json
var selectionConfigSchema string

//go:embed prompt_chain.schema.json
var promptChainSchema string

//go:embed pricing_config.schema.json
var pricingConfigSchema string

// ValidationError represents a schema validation failure with field paths.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing a schema or document.
type SchemaLoadError struct {
	Schema  string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to validate against %s: %s: %v", e.Schema, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to validate against %s: %s", e.Schema, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateSelectionConfig checks a raw selection config JSON document.
func ValidateSelectionConfig(doc []byte) error {
	return validate("SelectionConfig", selectionConfigSchema, doc)
}

// ValidatePromptChain checks a raw prompt chain JSON document. Contiguity of
// step numbers is a semantic rule checked separately by the chain package.
func ValidatePromptChain(doc []byte) error {
	return validate("PromptChain", promptChainSchema, doc)
}

// ValidatePricingConfig checks a raw pricing config JSON document.
func ValidatePricingConfig(doc []byte) error {
	return validate("PricingConfig", pricingConfigSchema, doc)
}

func validate(name, schema string, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return &SchemaLoadError{
			Schema:  name,
			Message: "document could not be validated",
			Cause:   err,
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
