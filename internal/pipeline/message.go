// Package pipeline wires the producer → processors → batcher stages
// together for one chain: fetching each block's transactions and logs,
// collecting them into size/timeout-bounded batches, resolving ABIs,
// decoding events, and committing to storage.
package pipeline

import (
	"github.com/evmindexer/chainindexer/internal/rpc"
)

// blockMessage is one in-flight unit of work: a bare block-height message
// from the producer, enriched in place by a processor once fetched.
type blockMessage struct {
	chainID     uint32
	blockNumber uint64
	block       *rpc.Block
	logs        []rpc.Log
	failed      bool
	failErr     error
}
