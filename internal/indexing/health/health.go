// Package health reports ingestion and loop health over HTTP.
package health

import "time"

// SystemStatus represents the overall health state of the process or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// LoopState is the lifecycle state of a supervised loop.
type LoopState string

const (
	LoopRunning    LoopState = "running"
	LoopRestarting LoopState = "restarting"
	LoopStopped    LoopState = "stopped"
	LoopFailed     LoopState = "failed"
)

// LoopStatus describes one supervised loop.
type LoopStatus struct {
	Name      string    `json:"name"`
	State     LoopState `json:"state"`
	Restarts  int       `json:"restarts"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
}

// CheckpointHealth summarises the stream position against the chain head.
type CheckpointHealth struct {
	HeadBlock     uint64 `json:"head_block"`
	LastProcessed uint64 `json:"last_processed"`
	HighWater     uint64 `json:"high_water"`
	LastSeen      uint64 `json:"last_seen"`
	BlockLag      uint64 `json:"block_lag"`
	HeadError     string `json:"head_error,omitempty"`
}

// Report is the full health report served on /health/detailed.
type Report struct {
	Status          SystemStatus      `json:"system_status"`
	Checkpoint      *CheckpointHealth `json:"checkpoint,omitempty"`
	FailedFlushes   int               `json:"failed_flushes"`
	KnownAccounts   int               `json:"known_accounts"`
	PendingAccounts int               `json:"pending_accounts"`
	Loops           []LoopStatus      `json:"loops"`
	CheckedAt       time.Time         `json:"checked_at"`
}
