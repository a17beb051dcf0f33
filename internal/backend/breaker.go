package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures a Breaker.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker once reached.
	ConsecutiveFailures uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the settings used by the server.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// Breaker wraps a Backend in a circuit breaker so that a dead inference
// server fails requests immediately. It never retries.
type Breaker struct {
	Backend
	cb *gobreaker.CircuitBreaker
}

// NewBreaker wraps b.
func NewBreaker(b Backend, settings BreakerSettings) *Breaker {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(b.Provider()),
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Callers going away says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Backend circuit breaker changed state", "backend", name, "from", from.String(), "to", to.String())
		},
	})

	return &Breaker{Backend: b, cb: cb}
}

// Infer runs the wrapped backend through the breaker.
func (b *Breaker) Infer(ctx context.Context, req *Request) (*Response, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.Backend.Infer(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.Provider(), err)
		}
		return nil, err
	}

	resp, _ := out.(*Response)
	return resp, nil
}

// Load forwards to the wrapped backend when it is a Loader.
func (b *Breaker) Load(ctx context.Context, modelID, modelPath string, params map[string]any) error {
	if l, ok := b.Backend.(Loader); ok {
		return l.Load(ctx, modelID, modelPath, params)
	}
	return nil
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
