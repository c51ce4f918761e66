package pipeline

import (
	"testing"
	"time"
)

func TestBatcherFlushesOnSize(t *testing.T) {
	in := make(chan *blockMessage)
	out := make(chan []*blockMessage, 4)
	done := make(chan struct{})

	b := newBatcher(in, out)
	go b.run(done)

	for i := 0; i < batchSize; i++ {
		in <- &blockMessage{chainID: 1, blockNumber: uint64(i)}
	}

	select {
	case batch := <-out:
		if len(batch) != batchSize {
			t.Fatalf("expected batch of %d, got %d", batchSize, len(batch))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for size-triggered flush")
	}

	close(done)
}

func TestBatcherFlushesOnTimeout(t *testing.T) {
	in := make(chan *blockMessage)
	out := make(chan []*blockMessage, 4)
	done := make(chan struct{})

	b := newBatcher(in, out)
	go b.run(done)

	for i := 0; i < 30; i++ {
		in <- &blockMessage{chainID: 1, blockNumber: uint64(i)}
	}

	select {
	case batch := <-out:
		if len(batch) != 30 {
			t.Fatalf("expected timeout-triggered batch of 30, got %d", len(batch))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timeout-triggered flush")
	}

	close(done)
}
