package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsProcessed tracks stream operations handled per type
	OperationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_operations_processed_total",
			Help: "Total number of stream operations handled",
		},
		[]string{"type"},
	)

	// OperationsSkipped tracks operations dropped because of malformed payloads
	OperationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_operations_skipped_total",
			Help: "Total number of operations skipped due to malformed payloads",
		},
		[]string{"type"},
	)

	// FlushesTotal tracks batch flushes by outcome
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_flushes_total",
			Help: "Total number of batch flushes",
		},
		[]string{"result"},
	)

	// FlushFailures tracks rejected category inserts
	FlushFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_flush_failures_total",
			Help: "Total number of category inserts rejected by the sink",
		},
		[]string{"procedure"},
	)

	// FlushDuration tracks how long a full flush takes
	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "steemstream_flush_duration_seconds",
			Help:    "Duration of a full batch flush in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BatchRecords tracks records written per category
	BatchRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_batch_records_total",
			Help: "Total number of records flushed per category",
		},
		[]string{"category"},
	)

	// CheckpointBlock tracks the stored checkpoint values
	CheckpointBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "steemstream_checkpoint_block",
			Help: "Block number stored in the checkpoint",
		},
		[]string{"kind"},
	)

	// ChainHeadBlock tracks the latest irreversible block reported by the node
	ChainHeadBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "steemstream_chain_head_block",
			Help: "Latest irreversible block reported by the chain source",
		},
	)

	// RetriesTotal tracks retry attempts per scope
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_retries_total",
			Help: "Total number of retry attempts",
		},
		[]string{"scope"},
	)

	// RestartsTotal tracks stream reattachments and supervised task restarts
	RestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_restarts_total",
			Help: "Total number of restarts",
		},
		[]string{"task"},
	)

	// RPCCallsTotal tracks RPC calls per provider and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steemstream_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// HTTPRequestsTotal tracks calls to the follower and price services
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_http_requests_total",
			Help: "Total number of requests to external HTTP services",
		},
		[]string{"service", "status"},
	)

	// PriceRowsInserted tracks price days written by the backfill loop
	PriceRowsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "steemstream_price_rows_inserted_total",
			Help: "Total number of daily price rows inserted",
		},
	)

	// PriceDaysMissing tracks the size of the last missing-date query
	PriceDaysMissing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "steemstream_price_days_missing",
			Help: "Number of dates without a price row at the start of the last cycle",
		},
	)

	// MaintenanceRuns tracks maintenance rounds by outcome
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steemstream_maintenance_runs_total",
			Help: "Total number of maintenance procedure rounds",
		},
		[]string{"result"},
	)

	// KnownAccounts tracks the persisted username snapshot size
	KnownAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "steemstream_known_accounts",
			Help: "Number of usernames in the persisted snapshot",
		},
	)

	// DBConnectionPoolUsage tracks pool usage in percent
	DBConnectionPoolUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "steemstream_db_pool_usage_percent",
			Help: "Open connections as a percentage of the pool limit",
		},
		[]string{"pool"},
	)
)
