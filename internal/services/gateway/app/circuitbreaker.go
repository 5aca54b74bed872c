package app

import (
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig trips the breaker after Fails consecutive failures and keeps
// it open for Open. Interval resets the counts while closed.
type BreakerConfig struct {
	Fails    int
	Open     time.Duration
	Interval time.Duration
}

// NewBreaker builds the circuit breaker guarding the server API. An
// authorization failure means the server answered, so it does not count.
func NewBreaker(name string, c BreakerConfig, logger *log.Logger) *gobreaker.CircuitBreaker {
	if c.Fails < 1 {
		c.Fails = 1
	}
	if c.Open <= 0 {
		c.Open = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	fails := uint32(c.Fails)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: c.Interval,
		Timeout:  c.Open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= fails
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("%s: breaker %s -> %s", name, from, to)
		},
	})
}
