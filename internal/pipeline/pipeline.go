package pipeline

import (
	"context"
	"sync"

	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/evmindexer/chainindexer/internal/producer"
	"github.com/rs/zerolog"
)

const (
	processorConcurrency = 10
	batcherConcurrency   = 5
	producerDemandChunk  = 20
)

// ChainClient is everything a pipeline needs from an RPC endpoint: chain
// head polling for the producer, and block/log fetches for the processors.
// *rpc.Client satisfies this; tests substitute a fake.
type ChainClient interface {
	BlockFetcher
	producer.HeadSource
}

// Pipeline runs one chain's full producer → processors → batcher → commit
// chain until its context is cancelled.
type Pipeline struct {
	chainID    uint32
	startBlock uint64
	producer   *producer.Producer
	client     ChainClient
	deps       Deps
	log        zerolog.Logger
}

// New builds a Pipeline for one chain. client is used both by the producer
// (head polling) and by the processor pool (block/log fetches).
func New(chainID uint32, startBlock uint64, client ChainClient, deps Deps) *Pipeline {
	p := producer.New(producer.Config{ChainID: chainID, StartBlock: startBlock, Head: client})
	return &Pipeline{
		chainID:    chainID,
		startBlock: startBlock,
		producer:   p,
		client:     client,
		deps:       deps,
		log:        logging.ForChain("pipeline", chainID),
	}
}

// Run drives the pipeline until ctx is cancelled, returning only on
// cancellation or an unrecoverable error the supervisor should restart on.
func (p *Pipeline) Run(ctx context.Context) error {
	toProcess := make(chan *blockMessage, processorConcurrency*2)
	processed := make(chan *blockMessage, processorConcurrency*2)
	ordered := make(chan *blockMessage, processorConcurrency*2)
	batches := make(chan []*blockMessage, batcherConcurrency)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runDemandLoop(ctx, toProcess)
	}()

	var procWG sync.WaitGroup
	for i := 0; i < processorConcurrency; i++ {
		procWG.Add(1)
		proc := newProcessor(p.chainID, p.client)
		go func() {
			defer procWG.Done()
			for msg := range toProcess {
				proc.process(ctx, msg)
				select {
				case processed <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		procWG.Wait()
		close(processed)
	}()

	seq := newSequencer(processed, ordered, p.startBlock)
	wg.Add(1)
	go func() {
		defer wg.Done()
		seq.run(ctx)
	}()

	b := newBatcher(ordered, batches)
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.run(ctx.Done())
	}()

	var commitWG sync.WaitGroup
	for i := 0; i < batcherConcurrency; i++ {
		commitWG.Add(1)
		c := newCommitter(p.chainID, p.deps)
		go func() {
			defer commitWG.Done()
			for batch := range batches {
				if err := c.commit(ctx, batch); err != nil {
					p.log.Error().Err(err).Int("batch_size", len(batch)).Msg("batch commit failed")
				}
			}
		}()
	}

	wg.Wait()
	commitWG.Wait()
	return ctx.Err()
}

// runDemandLoop feeds the processor pool from the producer. A single
// demand-issuing goroutine keeps the producer's pending demand topped up
// (the pipeline's one producer worker, per §5); this goroutine only drains
// Out() and forwards to toProcess.
func (p *Pipeline) runDemandLoop(ctx context.Context, toProcess chan<- *blockMessage) {
	defer close(toProcess)

	go func() {
		for ctx.Err() == nil {
			p.producer.Demand(ctx, producerDemandChunk)
		}
	}()

	for {
		select {
		case n := <-p.producer.Out():
			select {
			case toProcess <- &blockMessage{chainID: p.chainID, blockNumber: n}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
