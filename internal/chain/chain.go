// Package chain provides validation and resolution of multi-step prompt chains.
// Later steps may reference earlier steps' outputs via {outputN} placeholders;
// validation happens once at run creation so a bad chain never starts executing.
package chain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MinSteps is the minimum number of steps in a chain
	MinSteps = 1
	// MaxSteps is the maximum number of steps in a chain
	MaxSteps = 5
)

// Step is a single prompt chain step. StepNumber is 1-based and contiguous.
type Step struct {
	StepNumber    int    `json:"step_number"`
	SystemMessage string `json:"system_message,omitempty"`
	Prompt        string `json:"prompt"`
}

// ReferenceError reports an invalid {outputN} reference in a chain step.
// It is raised at run-creation time; a chain that fails validation never executes.
type ReferenceError struct {
	StepNumber int
	Reference  int
	Reason     string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("step %d: invalid reference {output%d}: %s", e.StepNumber, e.Reference, e.Reason)
}

var outputRef = regexp.MustCompile(`\{output(\d+)\}`)

// Validate checks a chain for structural correctness: 1-5 steps, contiguous
// 1-based step numbers, non-empty prompts, and every {outputN} reference
// pointing to a strictly earlier step.
func Validate(steps []Step) error {
	if len(steps) < MinSteps || len(steps) > MaxSteps {
		return fmt.Errorf("chain must have between %d and %d steps, got %d", MinSteps, MaxSteps, len(steps))
	}

	for i, step := range steps {
		if step.StepNumber != i+1 {
			return fmt.Errorf("step numbers must be contiguous starting at 1: position %d has step_number %d", i+1, step.StepNumber)
		}
		if strings.TrimSpace(step.Prompt) == "" {
			return fmt.Errorf("step %d: prompt is empty", step.StepNumber)
		}

		for _, ref := range References(step.Prompt) {
			if ref < 1 {
				return &ReferenceError{StepNumber: step.StepNumber, Reference: ref, Reason: "step numbers start at 1"}
			}
			if ref >= step.StepNumber {
				return &ReferenceError{StepNumber: step.StepNumber, Reference: ref, Reason: "may only reference earlier steps"}
			}
		}
	}

	return nil
}

// References returns the step numbers referenced by {outputN} placeholders in
// a prompt template, in order of appearance. Duplicates are preserved.
func References(prompt string) []int {
	matches := outputRef.FindAllStringSubmatch(prompt, -1)
	refs := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// \d+ guarantees digits; only overflow lands here
			continue
		}
		refs = append(refs, n)
	}
	return refs
}

// Resolve substitutes earlier steps' outputs into a step's prompt template.
// Substitution is literal, performed once, and never re-evaluates substituted
// text, so a prompt with no remaining references resolves to itself.
// Every reference must be present in outputs; Validate guarantees this for
// chains that passed creation-time checks.
func Resolve(step Step, outputs map[int]string) (string, error) {
	var refErr *ReferenceError
	resolved := outputRef.ReplaceAllStringFunc(step.Prompt, func(placeholder string) string {
		n, err := strconv.Atoi(outputRef.FindStringSubmatch(placeholder)[1])
		if err != nil {
			return placeholder
		}
		out, ok := outputs[n]
		if !ok {
			if refErr == nil {
				refErr = &ReferenceError{StepNumber: step.StepNumber, Reference: n, Reason: "output not available"}
			}
			return placeholder
		}
		return out
	})
	if refErr != nil {
		return "", refErr
	}
	return resolved, nil
}
