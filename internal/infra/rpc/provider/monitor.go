package provider

import (
	"strings"
	"sync"
	"time"
)

// ProviderStatus represents the health state of a provider.
type ProviderStatus int

const (
	StatusHealthy   ProviderStatus = iota // Node is answering normally
	StatusDegraded                        // Node is slow but answering
	StatusThrottled                       // Node is rate limiting
	StatusBlocked                         // Node refused this client
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusBlocked:
		return "blocked"
	}
	return "unknown"
}

// MonitorStats holds monitoring statistics for a provider.
type MonitorStats struct {
	Status           ProviderStatus
	AverageLatency   time.Duration
	ThrottleCount429 int
	ThrottleCount403 int
	RequestsLastHour int
}

// ProviderMonitor tracks node latency and throttling.
type ProviderMonitor struct {
	mu sync.RWMutex

	latencies     []time.Duration
	latencyWindow int

	status429Count     int
	status403Count     int
	throttlePatterns   []string
	lastThrottleTime   time.Time
	retryAfterDuration time.Duration

	requests       []time.Time
	requestWindow  time.Duration
	slowThreshold  time.Duration
	throttleBudget int
}

// NewProviderMonitor creates a new monitor with default settings.
func NewProviderMonitor() *ProviderMonitor {
	return &ProviderMonitor{
		latencies:     make([]time.Duration, 0, 50),
		latencyWindow: 50,
		throttlePatterns: []string{
			"rate limit",
			"too many requests",
			"request limit exceeded",
		},
		requestWindow:  time.Hour,
		slowThreshold:  3 * time.Second,
		throttleBudget: 5,
	}
}

// RecordRequest records a successful request with its latency.
func (pm *ProviderMonitor) RecordRequest(latency time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := time.Now()

	pm.latencies = append(pm.latencies, latency)
	if len(pm.latencies) > pm.latencyWindow {
		pm.latencies = pm.latencies[1:]
	}

	pm.requests = append(pm.requests, now)
	cutoff := now.Add(-pm.requestWindow)
	i := 0
	for i < len(pm.requests) && !pm.requests[i].After(cutoff) {
		i++
	}
	pm.requests = pm.requests[i:]
}

// RecordThrottle records a rate limiting or blocking response.
func (pm *ProviderMonitor) RecordThrottle(statusCode int, retryAfter string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.lastThrottleTime = time.Now()

	switch statusCode {
	case 429:
		pm.status429Count++
		pm.retryAfterDuration = 30 * time.Second
		if d, err := time.ParseDuration(strings.TrimSpace(retryAfter) + "s"); err == nil && d > 0 {
			pm.retryAfterDuration = d
		}
	case 403:
		pm.status403Count++
		pm.retryAfterDuration = 10 * time.Minute
	}
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func (pm *ProviderMonitor) DetectThrottlePattern(message string) bool {
	lowerMsg := strings.ToLower(message)
	for _, pattern := range pm.throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}

// CheckProviderStatus returns the current status of the provider.
func (pm *ProviderMonitor) CheckProviderStatus() ProviderStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.statusLocked()
}

func (pm *ProviderMonitor) statusLocked() ProviderStatus {
	inPenalty := time.Since(pm.lastThrottleTime) < pm.retryAfterDuration

	if pm.status403Count > 0 && inPenalty {
		return StatusBlocked
	}
	if pm.status429Count > pm.throttleBudget && inPenalty {
		return StatusThrottled
	}
	if len(pm.latencies) > 10 && pm.averageLocked() > pm.slowThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// GetRetryAfter returns remaining time before retry is allowed.
func (pm *ProviderMonitor) GetRetryAfter() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	remaining := pm.retryAfterDuration - time.Since(pm.lastThrottleTime)
	if remaining > 0 {
		return remaining
	}
	return 0
}

func (pm *ProviderMonitor) averageLocked() time.Duration {
	if len(pm.latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range pm.latencies {
		total += lat
	}
	return total / time.Duration(len(pm.latencies))
}

// GetStats returns current monitoring statistics.
func (pm *ProviderMonitor) GetStats() MonitorStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return MonitorStats{
		Status:           pm.statusLocked(),
		AverageLatency:   pm.averageLocked(),
		ThrottleCount429: pm.status429Count,
		ThrottleCount403: pm.status403Count,
		RequestsLastHour: len(pm.requests),
	}
}
