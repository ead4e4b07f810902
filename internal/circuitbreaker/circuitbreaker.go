// Package circuitbreaker builds the breakers guarding calls to the catalog and order backends.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
)

type Settings struct {
	Name string
	// consecutive failures that open the breaker
	FailureThreshold uint32
	// how long the breaker stays open before letting a trial request through
	OpenTimeout time.Duration
	// IsSuccessful decides whether err counts against the backend. Nil counts every error.
	IsSuccessful func(err error) bool
}

// New returns a breaker that opens after FailureThreshold consecutive failures and
// logs every state change.
func New[T any](s Settings, log *zap.Logger) *gobreaker.CircuitBreaker[T] {
	log = logger.OrNop(log)
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = DefaultOpenTimeout
	}
	threshold := s.FailureThreshold

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: s.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// IsOpen reports whether err was returned because the breaker refused the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
