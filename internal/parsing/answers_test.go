package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinary(t *testing.T) {
	tests := []struct {
		raw    string
		want   *bool
		parsed bool
	}{
		{"yes", boolPtr(true), true},
		{"Yes.", boolPtr(true), true},
		{"TRUE", boolPtr(true), true},
		{"1", boolPtr(true), true},
		{"no", boolPtr(false), true},
		{"False", boolPtr(false), true},
		{"0", boolPtr(false), true},
		{"Yes, there is a cat in the image.", boolPtr(true), true},
		{"No - the image shows a dog.", boolPtr(false), true},
		{"maybe", nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ans := Parse(QuestionBinary, tt.raw)
			assert.Equal(t, tt.parsed, ans.Parsed)
			if tt.want == nil {
				assert.Nil(t, ans.Bool)
				assert.Equal(t, tt.raw, ans.Raw, "raw output must be retained")
			} else {
				require.NotNil(t, ans.Bool)
				assert.Equal(t, *tt.want, *ans.Bool)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw    string
		want   *int
		parsed bool
	}{
		{"3", intPtr(3), true},
		{"There are 12 birds in the photo.", intPtr(12), true},
		{"I count zero.", nil, false},
		{"none", nil, false},
		{"-2 degrees", intPtr(-2), true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ans := Parse(QuestionCount, tt.raw)
			assert.Equal(t, tt.parsed, ans.Parsed)
			if tt.want != nil {
				require.NotNil(t, ans.Int)
				assert.Equal(t, *tt.want, *ans.Int)
			} else {
				assert.Nil(t, ans.Int)
			}
		})
	}
}

func TestParseText(t *testing.T) {
	ans := Parse(QuestionText, "  A red bicycle.  ")
	assert.True(t, ans.Parsed)
	assert.Equal(t, "A red bicycle.", ans.Text)

	ans = Parse(QuestionMultipleChoice, "B")
	assert.True(t, ans.Parsed)
	assert.Equal(t, "B", ans.Text)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		qt   QuestionType
		raw  string
		gt   string
		want bool
	}{
		{"binary exact", QuestionBinary, "yes", "yes", true},
		{"binary synonym", QuestionBinary, "true", "yes", true},
		{"binary mismatch", QuestionBinary, "no", "yes", false},
		{"binary unparsed", QuestionBinary, "unsure", "yes", false},
		{"count exact", QuestionCount, "there are 4", "4", true},
		{"count mismatch", QuestionCount, "5", "4", false},
		{"count bad ground truth", QuestionCount, "4", "four", false},
		{"text case insensitive", QuestionText, "Red Bicycle", "red bicycle", true},
		{"text trimmed", QuestionText, "  B  ", "B", true},
		{"text mismatch", QuestionText, "car", "truck", false},
		{"empty ground truth never matches", QuestionBinary, "yes", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := Parse(tt.qt, tt.raw)
			assert.Equal(t, tt.want, Matches(tt.qt, ans, tt.gt))
		})
	}
}

func TestAnswerString(t *testing.T) {
	assert.Equal(t, "true", Parse(QuestionBinary, "Yes").String())
	assert.Equal(t, "7", Parse(QuestionCount, "7 dogs").String())
	assert.Equal(t, "B", Parse(QuestionMultipleChoice, " B ").String())
	assert.Equal(t, "garbled", Parse(QuestionBinary, "garbled").String())
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }
