package domain

import (
	"encoding/json"
	"time"
)

// FailedFlush records a batch insert the sink rejected, kept for operator attention.
type FailedFlush struct {
	ID        string          `json:"id"`
	Procedure string          `json:"procedure"`
	Block     uint64          `json:"block"`
	Records   int             `json:"records"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error_msg"`
	CreatedAt time.Time       `json:"created_at"`
}
