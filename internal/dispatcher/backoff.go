package dispatcher

import "time"

const (
	backoffBase = time.Minute
	backoffCap  = 24 * time.Hour
)

// NextRetryDelay returns the wait before the next attempt: 1m after the
// first failure, doubling per attempt, capped at 24h.
func NextRetryDelay(attemptCount int) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}

	delay := backoffBase
	for i := 1; i < attemptCount; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	return delay
}
