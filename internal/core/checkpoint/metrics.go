package checkpoint

import (
	"time"
)

// flushRecord holds timing data for a committed checkpoint.
type flushRecord struct {
	BlockNumber uint64
	FlushedAt   time.Time
}

// Metrics holds checkpoint throughput data.
type Metrics struct {
	BlocksPerSecond      float64
	AverageFlushInterval time.Duration
	LastFlushAt          *time.Time
	Flushes              int
}

// MetricsCollector keeps a sliding window of committed checkpoints.
type MetricsCollector struct {
	windowSize int
	records    []flushRecord
	total      int
}

// NewMetricsCollector creates a collector tracking the last windowSize flushes.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	return &MetricsCollector{
		windowSize: windowSize,
		records:    make([]flushRecord, 0, windowSize),
	}
}

// RecordFlush records a committed checkpoint.
func (mc *MetricsCollector) RecordFlush(blockNumber uint64, flushedAt time.Time) {
	record := flushRecord{BlockNumber: blockNumber, FlushedAt: flushedAt}
	mc.total++

	if len(mc.records) >= mc.windowSize {
		copy(mc.records, mc.records[1:])
		mc.records[len(mc.records)-1] = record
	} else {
		mc.records = append(mc.records, record)
	}
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{Flushes: mc.total}
	if len(mc.records) == 0 {
		return m
	}

	last := mc.records[len(mc.records)-1]
	lastAt := last.FlushedAt
	m.LastFlushAt = &lastAt

	if len(mc.records) >= 2 {
		first := mc.records[0]
		duration := last.FlushedAt.Sub(first.FlushedAt)
		if duration > 0 && last.BlockNumber >= first.BlockNumber {
			m.BlocksPerSecond = float64(last.BlockNumber-first.BlockNumber) / duration.Seconds()
			m.AverageFlushInterval = duration / time.Duration(len(mc.records)-1)
		}
	}
	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.records = mc.records[:0]
	mc.total = 0
}
