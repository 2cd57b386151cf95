package domain

import "time"

// Checkpoint is the durable stream position.
//
// LastProcessed is safe to resume from and only moves after a successful flush.
// HighWater is the furthest flushed block ever recorded and never decreases.
// LastSeen is the block of the most recent operation handed to the pipeline.
type Checkpoint struct {
	LastProcessed uint64
	HighWater     uint64
	LastSeen      uint64
	UpdatedAt     time.Time
}
