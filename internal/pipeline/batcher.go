package pipeline

import (
	"time"
)

const (
	batchSize    = 100
	batchTimeout = time.Second
)

// batcher collects processed blockMessages and releases a batch whenever
// either batchSize messages have accumulated or batchTimeout has elapsed
// since the first message of the current batch, whichever fires first.
type batcher struct {
	in  <-chan *blockMessage
	out chan<- []*blockMessage
}

func newBatcher(in <-chan *blockMessage, out chan<- []*blockMessage) *batcher {
	return &batcher{in: in, out: out}
}

// run drains in, emitting batches on out, until in is closed or done is
// closed; either way the partial batch is flushed and out is closed.
func (b *batcher) run(done <-chan struct{}) {
	var current []*blockMessage
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(current) == 0 {
			return
		}
		b.out <- current
		current = nil
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case msg, ok := <-b.in:
			if !ok {
				flush()
				close(b.out)
				return
			}
			current = append(current, msg)
			if len(current) == 1 {
				timer = time.NewTimer(batchTimeout)
				timerC = timer.C
			}
			if len(current) >= batchSize {
				flush()
			}
		case <-timerC:
			flush()
		case <-done:
			flush()
			close(b.out)
			return
		}
	}
}
