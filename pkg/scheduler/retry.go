package scheduler

import (
	"math"
	"math/rand/v2"
	"time"
)

// nextDelay computes the retry delay for a given attempt (1-indexed),
// per spec §4.5 step 5:
//   delay = min(maxDelay, initialDelay × backoffMultiplier^(attempt-1)) × (1 + jitter × random)
func nextDelay(policy RetryPolicy, attempt int) time.Duration {
	raw := float64(policy.InitialDelay) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	capped := math.Min(float64(policy.MaxDelay), raw)
	jittered := capped * (1 + policy.Jitter*rand.Float64())
	return time.Duration(jittered)
}
