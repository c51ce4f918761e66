package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestSequencerRestoresProducerOrder(t *testing.T) {
	in := make(chan *blockMessage)
	out := make(chan *blockMessage)

	seq := newSequencer(in, out, 10)
	go seq.run(context.Background())

	// Deliver blocks out of order, as a faster processor for a later block
	// might under varying per-block RPC latency.
	go func() {
		in <- &blockMessage{blockNumber: 12}
		in <- &blockMessage{blockNumber: 10}
		in <- &blockMessage{blockNumber: 11}
		in <- &blockMessage{blockNumber: 13}
		close(in)
	}()

	var got []uint64
	deadline := time.After(time.Second)
	for i := 0; i < 4; i++ {
		select {
		case msg := <-out:
			got = append(got, msg.blockNumber)
		case <-deadline:
			t.Fatalf("timed out waiting for message %d, got %v so far", i, got)
		}
	}

	want := []uint64{10, 11, 12, 13}
	for i, n := range want {
		if got[i] != n {
			t.Fatalf("out of order at position %d: got %v, want %v", i, got, want)
		}
	}
}
