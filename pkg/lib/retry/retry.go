// Package retry polls an action until its result satisfies a predicate.
package retry

import (
	"time"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/errors"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

// Policy bounds a polling loop. The delay is constant between attempts.
type Policy struct {
	MaxAttempts    int
	Delay          time.Duration
	FailureMessage string
}

// sleep is replaced in tests.
var sleep = time.Sleep

// Async calls action until predicate accepts its result, at most policy.MaxAttempts times.
//
// Attempts never overlap. An error returned by action ends the loop immediately and is
// returned unchanged. When every attempt is rejected the result is a *errors.TimeoutError
// carrying policy.FailureMessage.
func Async[T any](action func() (T, error), predicate func(T) bool, policy Policy) (T, error) {
	return AsyncWithLogger(nil, action, predicate, policy)
}

// AsyncWithLogger is Async with per-attempt debug logging.
func AsyncWithLogger[T any](log *logger.Logger, action func() (T, error), predicate func(T) bool, policy Policy) (T, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := action()
		if err != nil {
			return zero, err
		}
		if predicate(result) {
			if log != nil {
				log.Debug("retry predicate satisfied", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		if log != nil {
			log.Debug("retry predicate not satisfied",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", policy.Delay))
		}
		if attempt < attempts {
			sleep(policy.Delay)
		}
	}

	return zero, errors.NewTimeoutError(policy.FailureMessage, attempts)
}
