// Package routing handles node selection and failover.
//
// This package contains:
//   - Router: ordered node list with a circuit breaker per node
//   - Retry: retry logic with exponential backoff and failover
package routing

import (
	"sync"
	"time"

	"github.com/vietddude/steemstream/internal/infra/rpc/provider"
)

// circuitThreshold is the number of consecutive failures that opens a node's circuit.
const circuitThreshold = 5

// circuitCooldown is how long an open circuit keeps a node out of rotation.
const circuitCooldown = 30 * time.Second

type providerMetrics struct {
	successCount     int
	failureCount     int
	totalLatency     time.Duration
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	consecutiveFails int
	circuitOpen      bool
}

// Router orders the configured nodes for each call. The node that answered
// last is tried first; nodes with an open circuit go last.
type Router struct {
	mu        sync.RWMutex
	providers []provider.Provider
	health    map[string]*providerMetrics
	preferred int
}

// NewRouter creates a router over providers in configured order.
func NewRouter(providers ...provider.Provider) *Router {
	r := &Router{health: make(map[string]*providerMetrics)}
	for _, p := range providers {
		r.AddProvider(p)
	}
	return r
}

// AddProvider registers a node.
func (r *Router) AddProvider(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)
	r.health[p.GetName()] = &providerMetrics{lastSuccessAt: time.Now()}
}

// Providers returns every node in call order.
func (r *Router) Providers() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.providers)
	ordered := make([]provider.Provider, 0, n)
	var parked []provider.Provider
	for i := 0; i < n; i++ {
		p := r.providers[(r.preferred+i)%n]
		if r.parkedLocked(p) {
			parked = append(parked, p)
			continue
		}
		ordered = append(ordered, p)
	}
	return append(ordered, parked...)
}

func (r *Router) parkedLocked(p provider.Provider) bool {
	if !p.IsAvailable() {
		return true
	}
	m := r.health[p.GetName()]
	return m != nil && m.circuitOpen && time.Since(m.lastFailureAt) < circuitCooldown
}

// RecordSuccess records a successful call and prefers that node next time.
func (r *Router) RecordSuccess(providerName string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.health[providerName]
	if !ok {
		return
	}
	m.successCount++
	m.totalLatency += latency
	m.lastSuccessAt = time.Now()
	m.consecutiveFails = 0
	m.circuitOpen = false

	for i, p := range r.providers {
		if p.GetName() == providerName {
			r.preferred = i
			break
		}
	}
}

// RecordFailure records a failed call.
func (r *Router) RecordFailure(providerName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.health[providerName]
	if !ok {
		return
	}
	m.failureCount++
	m.lastFailureAt = time.Now()
	m.consecutiveFails++
	if m.consecutiveFails >= circuitThreshold {
		m.circuitOpen = true
	}
}

// Health returns each node's provider health keyed by name.
func (r *Router) Health() map[string]provider.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]provider.HealthStatus, len(r.providers))
	for _, p := range r.providers {
		out[p.GetName()] = p.GetHealth()
	}
	return out
}

// Close closes every node.
func (r *Router) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		_ = p.Close()
	}
	return nil
}
