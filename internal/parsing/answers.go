// Package parsing turns raw model output into typed answers and compares them
// against ground truth. Parsers are independent of the provider call so they
// can be tested without a network.
package parsing

import (
	"regexp"
	"strconv"
	"strings"
)

// QuestionType determines how a final step's output is parsed and scored.
type QuestionType string

const (
	QuestionBinary         QuestionType = "binary"
	QuestionCount          QuestionType = "count"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionText           QuestionType = "text"
)

// Valid reports whether q is a known question type.
func (q QuestionType) Valid() bool {
	switch q {
	case QuestionBinary, QuestionCount, QuestionMultipleChoice, QuestionText:
		return true
	}
	return false
}

// Answer is the parsed form of a model's final output. Exactly one of Bool
// and Int is set for binary/count questions; Text carries the trimmed string
// for the other types. Raw always preserves the original output.
type Answer struct {
	Raw    string
	Bool   *bool
	Int    *int
	Text   string
	Parsed bool
}

var (
	yesWords = map[string]bool{"yes": true, "true": true, "1": true}
	noWords  = map[string]bool{"no": true, "false": true, "0": true}

	firstInt = regexp.MustCompile(`-?\d+`)
)

// Parse interprets raw model output according to the question type.
// Binary answers match {yes,true,1} / {no,false,0} on the first word of the
// cleaned output; count answers take the first integer substring. Outputs
// that cannot be interpreted keep Parsed=false with the raw text retained.
func Parse(qt QuestionType, raw string) Answer {
	ans := Answer{Raw: raw}
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, ".!,\"'")

	switch qt {
	case QuestionBinary:
		word := cleaned
		if idx := strings.IndexAny(cleaned, " \t\n.,:;"); idx > 0 {
			word = cleaned[:idx]
		}
		if yesWords[word] {
			v := true
			ans.Bool = &v
			ans.Parsed = true
		} else if noWords[word] {
			v := false
			ans.Bool = &v
			ans.Parsed = true
		}

	case QuestionCount:
		if m := firstInt.FindString(cleaned); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				ans.Int = &n
				ans.Parsed = true
			}
		}

	case QuestionMultipleChoice, QuestionText:
		ans.Text = strings.TrimSpace(raw)
		ans.Parsed = ans.Text != ""
	}

	return ans
}

// Matches compares a parsed answer against ground truth using
// type-appropriate equality: exact for booleans and integers,
// case-insensitive trimmed comparison for strings. An unparsed answer or
// empty ground truth never matches.
func Matches(qt QuestionType, ans Answer, groundTruth string) bool {
	gt := strings.TrimSpace(groundTruth)
	if gt == "" || !ans.Parsed {
		return false
	}

	switch qt {
	case QuestionBinary:
		expected := Parse(QuestionBinary, gt)
		return expected.Bool != nil && ans.Bool != nil && *expected.Bool == *ans.Bool

	case QuestionCount:
		n, err := strconv.Atoi(gt)
		if err != nil {
			return false
		}
		return ans.Int != nil && *ans.Int == n

	default:
		return strings.EqualFold(ans.Text, gt)
	}
}

// String renders the parsed answer for persistence: "true"/"false" for
// binary, the integer for count, the trimmed text otherwise. Unparsed
// answers render as the raw output.
func (a Answer) String() string {
	switch {
	case a.Bool != nil:
		return strconv.FormatBool(*a.Bool)
	case a.Int != nil:
		return strconv.Itoa(*a.Int)
	case a.Parsed:
		return a.Text
	default:
		return a.Raw
	}
}
