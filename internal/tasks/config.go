package tasks

import "time"

// Config holds tuning knobs for the background notice queue.
type Config struct {
	// Workers is the number of goroutines draining the notice queue. Default: 2
	Workers int

	// MaxRetries caps delivery attempts for a failed notice. Default: 3
	MaxRetries int

	// RetryDelay is the backoff between delivery attempts. Default: 1m
	RetryDelay time.Duration

	// TaskTimeout bounds a single notice delivery. Default: 5m
	TaskTimeout time.Duration

	// ReleaseAfter is when a claimed but unfinished notice is handed back
	// to the queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often delivered notices are pruned. Default: 1h
	CleanupInterval time.Duration

	// RetentionDuration is how long delivered notices stay visible for
	// inspection before pruning. Default: 24h
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}
