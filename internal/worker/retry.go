package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy decides whether a failed outbox task is attempted again and when.
type RetryPolicy struct {
	// MaxRetries is the number of attempts a task gets before it is failed for good.
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter spreads every delay by up to ±Jitter of itself, so API instances
	// sharing one database do not hit a flaky channel in lockstep. 0 disables it.
	Jitter float64

	random func() float64
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}
	if r.Jitter < 0 {
		r.Jitter = 0
	}
	if r.Jitter > 1 {
		r.Jitter = 1
	}
	if r.random == nil {
		r.random = rand.Float64
	}
	return r
}

// ShouldRetry reports whether a task whose attempt-th try (1-based) just failed gets another one.
func (r RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < r.withDefaults().MaxRetries
}

// NextDelay returns the wait after the attempt-th failure, clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if r.Jitter > 0 {
		// random() in [0,1) -> factor in [1-Jitter, 1+Jitter)
		delay *= 1 + r.Jitter*(2*r.random()-1)
	}

	d := time.Duration(delay).Round(time.Millisecond)
	if d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = r.InitialDelay
	}
	return d
}

// NextAttemptAt is when the task failed at now on its attempt-th try becomes due again.
func (r RetryPolicy) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(r.NextDelay(attempt))
}
