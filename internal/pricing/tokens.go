package pricing

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the heuristic used when no tokenizer encoding is available.
const charsPerToken = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens estimates the token count of text. It uses the cl100k_base
// tiktoken encoding when it can be loaded and falls back to the
// characters/4 heuristic otherwise (the encoding fetch can fail offline).
func CountTokens(text string) int {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return heuristicTokens(text)
}

func heuristicTokens(text string) int {
	n := len(text) / charsPerToken
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
