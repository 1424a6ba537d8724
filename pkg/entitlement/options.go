package entitlement

import (
	"log/slog"
	"time"
)

// Option configures an Evaluator.
type Option func(*evaluator)

// WithCounter registers a counter for a single limit.
// Panics if a counter for the same limit has already been registered.
func WithCounter(l Limit, fn CounterFunc) Option {
	return func(e *evaluator) {
		if fn == nil {
			return
		}
		if _, exists := e.counters[l]; exists {
			panic("entitlement: counter for limit " + string(l) + " already registered")
		}
		e.counters[l] = fn
	}
}

// WithUsageCounter registers uc for every limit not covered by WithCounter.
// If uc also implements SnapshotReader, dashboards read one consistent snapshot.
func WithUsageCounter(uc UsageCounter) Option {
	return func(e *evaluator) {
		e.usage = uc
	}
}

// WithLogger sets the logger used for configuration warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *evaluator) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the time source used for monthly quotas.
func WithClock(now func() time.Time) Option {
	return func(e *evaluator) {
		if now != nil {
			e.now = now
		}
	}
}
