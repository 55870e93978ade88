package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryWait is the fixed pause between attempts after a rate-limit
// rejection. Providers signal 429 when a window is exhausted; waiting a
// fixed interval is enough for the window to roll over. A variable so tests
// can shorten the wait.
var retryWait = 30 * time.Second

// maxRetries bounds how many times a rate-limited call is reattempted.
const maxRetries = 3

// generateWithRetry invokes fn, retrying only rate-limit errors with a fixed
// wait. Any other error is returned immediately.
func generateWithRetry(ctx context.Context, fn func() (*GenerateResult, error)) (*GenerateResult, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryWait), maxRetries),
		ctx,
	)
	return backoff.RetryWithData(func() (*GenerateResult, error) {
		res, err := fn()
		if err != nil {
			if IsRateLimit(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return res, nil
	}, policy)
}
