package task

import "time"

const (
	// baseRetryDelay is the delay before the first retry.
	baseRetryDelay = time.Minute

	// maxRetryDelay caps the exponential growth.
	maxRetryDelay = 5 * time.Minute
)

// RetryDelay returns how long a task must wait before its next attempt
// after retryCount prior failures: base * 2^retryCount, capped at
// maxRetryDelay. The cap is reached from the third retry onward.
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	// 2^3 already exceeds the cap, so larger shifts cannot change the
	// result and would eventually overflow.
	if retryCount > 3 {
		return maxRetryDelay
	}

	delay := baseRetryDelay << uint(retryCount)
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
