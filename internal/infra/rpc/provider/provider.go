// Package provider implements JSON-RPC node providers.
//
// This package contains:
//   - Provider interface: core abstraction for a node endpoint
//   - HTTPProvider: JSON-RPC 2.0 over HTTP implementation
//   - ProviderMonitor: health and rate tracking
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Provider is one node endpoint.
type Provider interface {
	// GetName returns provider identifier (e.g., "api.steemit.com")
	GetName() string

	// Call makes a single JSON-RPC request and returns the raw result.
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Close cleans up resources
	Close() error
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool
	Latency       time.Duration
	ErrorRate     float64
	LastSuccessAt time.Time
	LastFailureAt time.Time
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}
