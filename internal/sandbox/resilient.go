package sandbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// ResilientProvider wraps an ExecProvider with a concurrency cap and a
// circuit breaker. There is deliberately no retry: a grading run is only
// re-executed by an explicit learner action. Timed-out and test-failing
// runs return a result with a nil error, so only infrastructure failures
// count against the breaker.
type ResilientProvider struct {
	provider       ExecProvider
	circuitBreaker circuitbreaker.CircuitBreaker[*ExecResult]
	bulkhead       bulkhead.Bulkhead[*ExecResult]
	logger         *slog.Logger
}

// ResilientConfig holds configuration for the resilience wrapper
type ResilientConfig struct {
	// MaxConcurrent caps in-flight sandbox runs (default: 3)
	MaxConcurrent int

	// QueueTimeout is how long a run may wait for a slot (default: 30s)
	QueueTimeout time.Duration

	// Logger for resilience events
	Logger *slog.Logger
}

// NewResilientProvider wraps a provider with bulkhead and circuit breaker
func NewResilientProvider(provider ExecProvider, cfg ResilientConfig) *ResilientProvider {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	queueTimeout := cfg.QueueTimeout
	if queueTimeout <= 0 {
		queueTimeout = 30 * time.Second
	}

	rp := &ResilientProvider{
		provider: provider,
		logger:   cfg.Logger,
	}

	rp.bulkhead = bulkhead.New[*ExecResult](bulkhead.Config{
		MaxConcurrent: maxConcurrent,
		MaxQueue:      maxConcurrent * 2,
		QueueTimeout:  queueTimeout,
	})

	rp.circuitBreaker = circuitbreaker.New[*ExecResult](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if rp.logger != nil {
				rp.logger.Warn("sandbox circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			}
		},
	})

	return rp
}

// Execute runs the request through the circuit breaker and bulkhead
func (p *ResilientProvider) Execute(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	return p.circuitBreaker.Execute(ctx, func(ctx context.Context) (*ExecResult, error) {
		return p.bulkhead.Execute(ctx, func(ctx context.Context) (*ExecResult, error) {
			return p.provider.Execute(ctx, req)
		})
	})
}

// Close closes the underlying provider
func (p *ResilientProvider) Close() error {
	return p.provider.Close()
}
