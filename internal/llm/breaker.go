package llm

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/metrics"
)

// BreakerSettings configures BreakerClient.
type BreakerSettings struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
}

// BreakerClient wraps a Client with a circuit breaker. While open, calls fail
// immediately with gobreaker.ErrOpenState; nothing is retried.
type BreakerClient struct {
	next   Client
	cb     *gobreaker.CircuitBreaker[string]
	name   string
	logger *zap.Logger
}

// NewBreakerClient wraps next.
func NewBreakerClient(next Client, settings BreakerSettings, logger *zap.Logger) *BreakerClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Name == "" {
		settings.Name = "llm"
	}
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(settings.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Caller cancellation does not count as a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerClient{next: next, cb: cb, name: settings.Name, logger: logger}
}

// CreateChatCompletion forwards req through the breaker.
func (b *BreakerClient) CreateChatCompletion(ctx context.Context, req Request) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.next.CreateChatCompletion(ctx, req)
	})
}

// State returns the breaker state name: "closed", "half-open" or "open".
func (b *BreakerClient) State() string {
	return b.cb.State().String()
}

// IsRejected reports whether err came from the breaker rather than the provider.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
