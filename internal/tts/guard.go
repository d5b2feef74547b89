package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lexiqai/tts-gateway/internal/config"
	"github.com/lexiqai/tts-gateway/internal/observability"
	"github.com/lexiqai/tts-gateway/internal/resilience"
)

// guard wraps provider calls in a circuit breaker. It never retries:
// a failed call fails the request, an open circuit fails it sooner.
type guard struct {
	name    string
	breaker *resilience.CircuitBreaker
}

func newGuard(name string, cfg *config.Config) guard {
	breaker := resilience.NewCircuitBreaker(
		name,
		cfg.CircuitBreakerMaxFailures,
		cfg.CircuitBreakerResetDuration(),
	)
	breaker.SetIsFailure(countsAgainstProvider)
	breaker.OnStateChange(func(service string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(service, int(state))
	})
	observability.UpdateCircuitBreakerState(name, int(resilience.StateClosed))

	return guard{name: name, breaker: breaker}
}

// Name returns the provider identifier
func (g guard) Name() string {
	return g.name
}

// Ready reports false while the circuit is open and still cooling down
func (g guard) Ready(ctx context.Context) (bool, error) {
	if !g.breaker.Accepting() {
		state, calls, failures, _ := g.breaker.GetStats()
		return false, fmt.Errorf("%s circuit is %s (%d of %d calls failed)", g.name, state, failures, calls)
	}
	return true, nil
}

func (g guard) call(ctx context.Context, chunk int, fn func() error) error {
	err := g.breaker.Call(ctx, fn)
	if err == nil {
		return nil
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &ProviderError{
			Provider: g.name,
			Chunk:    chunk,
			Message:  "provider temporarily disabled after repeated failures",
			Cause:    err,
		}
	}
	if ctx.Err() == nil && g.breaker.Counts(err) {
		observability.IncrementCircuitBreakerFailures(g.name)
	}
	return err
}

// countsAgainstProvider rejects upstream 4xx replies caused by the request
// itself (unknown voice, bad parameters). Timeouts and rate limiting still
// count.
func countsAgainstProvider(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return true
	}
	switch {
	case pe.StatusCode == http.StatusRequestTimeout, pe.StatusCode == http.StatusTooManyRequests:
		return true
	case pe.StatusCode >= http.StatusBadRequest && pe.StatusCode < http.StatusInternalServerError:
		return false
	default:
		return true
	}
}

func (g guard) fail(chunk, status int, message string, cause error) *ProviderError {
	return &ProviderError{
		Provider:   g.name,
		Chunk:      chunk,
		StatusCode: status,
		Message:    message,
		Cause:      cause,
	}
}

func newHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.ProviderTimeoutDuration()}
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
