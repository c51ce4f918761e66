package pipeline

import (
	"context"

	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/evmindexer/chainindexer/internal/rpc"
	"github.com/rs/zerolog"
)

// processor fetches a block's full transactions and logs for one
// blockMessage at a time. Ten of these run concurrently per pipeline.
type processor struct {
	chainID uint32
	fetcher BlockFetcher
	log     zerolog.Logger
}

// BlockFetcher is the subset of *rpc.Client a processor needs.
type BlockFetcher interface {
	GetBlockByNumber(ctx context.Context, n uint64) (*rpc.Block, error)
	GetLogs(ctx context.Context, fromBlock, toBlock uint64) ([]rpc.Log, error)
}

func newProcessor(chainID uint32, fetcher BlockFetcher) *processor {
	return &processor{chainID: chainID, fetcher: fetcher, log: logging.ForChain("processor", chainID)}
}

// process fetches block and logs for msg.blockNumber, attaching the result
// or marking the message failed without aborting the batch it feeds.
func (p *processor) process(ctx context.Context, msg *blockMessage) {
	block, err := p.fetcher.GetBlockByNumber(ctx, msg.blockNumber)
	if err != nil {
		msg.failed = true
		msg.failErr = err
		p.log.Warn().Uint64("block", msg.blockNumber).Err(err).Msg("block fetch failed")
		return
	}

	logs, err := p.fetcher.GetLogs(ctx, msg.blockNumber, msg.blockNumber)
	if err != nil {
		msg.failed = true
		msg.failErr = err
		p.log.Warn().Uint64("block", msg.blockNumber).Err(err).Msg("log fetch failed")
		return
	}

	msg.block = block
	msg.logs = logs
}
