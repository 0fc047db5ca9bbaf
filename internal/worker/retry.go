package worker

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy governs how the export worker re-attempts artifact
// rendering after a transient write failure. Zero fields fall back to
// DefaultRetryPolicy.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter — доля случайного разброса задержки (0..1), чтобы
	// несколько воркеров не били по диску синхронно
	Jitter float64
}

// DefaultRetryPolicy is tuned for artifact writes: three attempts
// cover short disk hiccups, after that the job is marked failed.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if r.MaxRetries <= 0 {
		r.MaxRetries = def.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = def.InitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = def.MaxDelay
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = def.BackoffFactor
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		r.Jitter = 0
	}
	return r
}

// NextDelay returns the pause before the given 1-based attempt:
// exponential growth clamped to MaxDelay, optionally spread by Jitter.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1)))
	if delay <= 0 || delay > r.MaxDelay {
		delay = r.MaxDelay
	}
	if r.Jitter > 0 {
		spread := 1 - r.Jitter + rand.Float64()*2*r.Jitter
		delay = time.Duration(float64(delay) * spread)
	}
	return delay
}
