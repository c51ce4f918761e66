package pipeline

import "context"

// sequencer restores producer order across processed messages. The
// processor pool fans block fetches out across processorConcurrency
// goroutines, so a later block can finish (and reach in) before an earlier
// one under varying per-block RPC latency; the batcher must still see
// blocks in the strictly increasing order the producer emitted them in,
// per the pipeline's per-chain insert-order guarantee.
//
// It holds out-of-order arrivals in a small buffer keyed by block number
// and releases them to out only once every block number below it has
// already been released, starting from startBlock.
type sequencer struct {
	in  <-chan *blockMessage
	out chan<- *blockMessage

	next   uint64
	buffer map[uint64]*blockMessage
}

func newSequencer(in <-chan *blockMessage, out chan<- *blockMessage, startBlock uint64) *sequencer {
	return &sequencer{
		in:     in,
		out:    out,
		next:   startBlock,
		buffer: make(map[uint64]*blockMessage),
	}
}

// run drains in, emitting to out in block-number order, until in is closed
// or ctx is cancelled.
func (s *sequencer) run(ctx context.Context) {
	defer close(s.out)
	for {
		select {
		case msg, ok := <-s.in:
			if !ok {
				return
			}
			s.buffer[msg.blockNumber] = msg
			for {
				ready, found := s.buffer[s.next]
				if !found {
					break
				}
				delete(s.buffer, s.next)
				select {
				case s.out <- ready:
				case <-ctx.Done():
					return
				}
				s.next++
			}
		case <-ctx.Done():
			return
		}
	}
}
