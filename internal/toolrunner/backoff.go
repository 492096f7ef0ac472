package toolrunner

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds the configuration for spawn retry backoff.
type BackoffConfig struct {
	Initial    time.Duration // Initial backoff delay (default: 20ms)
	Max        time.Duration // Maximum backoff delay (default: 500ms)
	Multiplier float64       // Multiplier for each attempt (default: 2)
	JitterPct  float64       // Jitter as a percentage of delay (default: 0.2 = ±10%)
}

// DefaultBackoffConfig returns defaults tuned for "text file busy" retries,
// where the writer of a freshly built binary closes it within milliseconds.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    20 * time.Millisecond,
		Max:        500 * time.Millisecond,
		Multiplier: 2,
		JitterPct:  0.2,
	}
}

// Backoff calculates exponential backoff delays with jitter.
// A Backoff is not safe for concurrent use; each spawn gets its own.
type Backoff struct {
	config   BackoffConfig
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a Backoff whose jitter sequence is fixed by seed.
func NewBackoff(seed int64, cfg BackoffConfig) *Backoff {
	return &Backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next backoff delay and increments the attempt counter.
func (b *Backoff) Next() time.Duration {
	delay := b.Calculate()
	b.attempts++
	return delay
}

// Calculate returns the current backoff delay without incrementing attempts.
func (b *Backoff) Calculate() time.Duration {
	// initial * multiplier^attempts
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))

	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	// ±(JitterPct/2) of the delay
	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait sleeps for the next delay or until ctx is done.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Attempts returns the current attempt count.
func (b *Backoff) Attempts() int {
	return b.attempts
}
