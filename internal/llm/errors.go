package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ProviderError wraps a failed provider call with its HTTP status when known.
type ProviderError struct {
	Provider Family
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether an error is a provider rate-limit rejection.
// Only these errors are retried; everything else fails the call immediately.
func IsRateLimit(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Status == http.StatusTooManyRequests {
		return true
	}
	// Client libraries do not always surface a typed status. Fall back to
	// matching the status code or phrase in the message.
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit")
}
