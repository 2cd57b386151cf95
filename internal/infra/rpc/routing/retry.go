package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior against a single node.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
	// Clock times the backoff waits. Nil uses the wall clock.
	Clock           clock.Clock
}

// DefaultRetryConfig keeps per-node retries short; longer waits belong to the caller's retry scope.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        5 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrNoProviders is returned when no node is configured.
var ErrNoProviders = errors.New("no rpc providers configured")

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	}
	return "unknown"
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}

	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "rate limit") || strings.Contains(sLower, "throttle") ||
		strings.Contains(sLower, "unauthorized") {
		return ActionFailover
	}

	// Network, 5xx, node assertion failures
	return ActionRetry
}

// CallWithRetry executes an RPC call against one node with exponential backoff.
func CallWithRetry(
	ctx context.Context,
	p provider.Provider,
	method string,
	params []any,
	config RetryConfig,
) (json.RawMessage, error) {
	clk := config.Clock
	if clk == nil {
		clk = clock.New()
	}
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := p.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}

		lastErr = err

		action := ClassifyError(err)
		if action == ActionFatal || action == ActionFailover {
			return nil, err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		timer := clk.Timer(calculateBackoff(attempt, config))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// CallWithRetryAndFailover tries every node in router order with retry.
func CallWithRetryAndFailover(
	ctx context.Context,
	router *Router,
	method string,
	params []any,
	config RetryConfig,
) (json.RawMessage, error) {
	providers := router.Providers()
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, p := range providers {
		start := time.Now()
		result, err := CallWithRetry(ctx, p, method, params, config)
		if err == nil {
			router.RecordSuccess(p.GetName(), time.Since(start))
			return result, nil
		}

		lastErr = err
		router.RecordFailure(p.GetName(), err)

		if ClassifyError(err) == ActionFatal {
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.GetName(), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
