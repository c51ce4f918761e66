// Package metrics exposes the Prometheus hooks the pipeline calls.
// Metrics are an external collaborator per the indexing spec: this package
// defines the counters/gauges but never stands up its own HTTP server or
// registry wiring beyond registration — that belongs to the bootstrap harness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BlocksIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_blocks_ingested_total",
			Help: "Total number of blocks committed to storage",
		},
		[]string{"chain"},
	)

	ChainHead = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_chain_head",
			Help: "Latest known block number on the chain",
		},
		[]string{"chain"},
	)

	BlocksBehind = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_blocks_behind",
			Help: "Blocks between the last ingested block and chain head",
		},
		[]string{"chain"},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rpc_requests_total",
			Help: "Total JSON-RPC requests made, by outcome",
		},
		[]string{"chain", "method", "outcome"},
	)

	SourcifyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_sourcify_requests_total",
			Help: "Total Sourcify HTTP requests made, by outcome and proxy",
		},
		[]string{"proxy", "outcome"},
	)

	SourcifyRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_sourcify_retries_total",
			Help: "Total Sourcify fetch retries, by proxy",
		},
		[]string{"proxy"},
	)

	BatchesCommittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_batches_committed_total",
			Help: "Total pipeline batches committed to storage",
		},
		[]string{"chain"},
	)

	BatchesFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_batches_failed_total",
			Help: "Total pipeline batches that failed to commit",
		},
		[]string{"chain"},
	)

	DecodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_decode_failures_total",
			Help: "Total event logs stored without a successful decode",
		},
		[]string{"chain"},
	)
)

func init() {
	prometheus.MustRegister(
		BlocksIngestedTotal,
		ChainHead,
		BlocksBehind,
		RPCRequestsTotal,
		SourcifyRequestsTotal,
		SourcifyRetriesTotal,
		BatchesCommittedTotal,
		BatchesFailedTotal,
		DecodeFailuresTotal,
	)
}

// IncBlocksIngested records n newly-committed blocks for chain.
func IncBlocksIngested(chain string, n int) {
	BlocksIngestedTotal.WithLabelValues(chain).Add(float64(n))
}

// SetChainHead records the latest known head for chain.
func SetChainHead(chain string, head uint64) {
	ChainHead.WithLabelValues(chain).Set(float64(head))
}

// SetBlocksBehind records how far chain is from its head.
func SetBlocksBehind(chain string, behind int64) {
	if behind < 0 {
		behind = 0
	}
	BlocksBehind.WithLabelValues(chain).Set(float64(behind))
}

// IncRPCRequest records the outcome of a JSON-RPC call.
func IncRPCRequest(chain, method, outcome string) {
	RPCRequestsTotal.WithLabelValues(chain, method, outcome).Inc()
}

// IncSourcifyRequest records the outcome of a Sourcify HTTP call.
func IncSourcifyRequest(proxy, outcome string) {
	SourcifyRequestsTotal.WithLabelValues(proxy, outcome).Inc()
}

// IncSourcifyRetry records a retry attempt against proxy.
func IncSourcifyRetry(proxy string) {
	SourcifyRetriesTotal.WithLabelValues(proxy).Inc()
}

// IncBatchCommitted records a successfully committed batch.
func IncBatchCommitted(chain string) {
	BatchesCommittedTotal.WithLabelValues(chain).Inc()
}

// IncBatchFailed records a batch that failed to commit.
func IncBatchFailed(chain string) {
	BatchesFailedTotal.WithLabelValues(chain).Inc()
}

// IncDecodeFailure records a log stored without event_name/params.
func IncDecodeFailure(chain string) {
	DecodeFailuresTotal.WithLabelValues(chain).Inc()
}
