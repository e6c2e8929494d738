package fetch

import (
	"math/rand"
	"time"
)

const maxBackoff = 2 * time.Minute

// calculateBackoff doubles baseDelay per retry and adds +/- 10% jitter.
func calculateBackoff(retryCount int, baseDelay time.Duration) time.Duration {
	if baseDelay <= 0 {
		return 0
	}

	delay := baseDelay * (1 << uint(min(retryCount, 20)))

	jitter := time.Duration(rand.Float64() * float64(delay) * 0.2)
	finalDelay := delay + jitter - (time.Duration(float64(delay) * 0.1))

	if finalDelay > maxBackoff {
		finalDelay = maxBackoff
	}

	return finalDelay
}
