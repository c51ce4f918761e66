package producer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHead struct {
	n atomic.Uint64
}

func (f *fakeHead) BlockNumber(ctx context.Context) (uint64, error) {
	return f.n.Load(), nil
}

func TestProducerBoundsToHeadAndParksDemand(t *testing.T) {
	head := &fakeHead{}
	head.n.Store(100)

	p := New(Config{ChainID: 1, StartBlock: 98, Head: head, PollInterval: 20 * time.Millisecond, BufferSize: 16})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Demand(ctx, 10)
		close(done)
	}()

	var got []uint64
	timeout := time.After(200 * time.Millisecond)
collect:
	for {
		select {
		case n := <-p.Out():
			got = append(got, n)
			if len(got) == 3 {
				break collect
			}
		case <-timeout:
			t.Fatalf("timed out waiting for emissions, got %v", got)
		}
	}

	if len(got) != 3 || got[0] != 98 || got[1] != 99 || got[2] != 100 {
		t.Fatalf("got %v, want [98 99 100]", got)
	}

	select {
	case extra := <-p.Out():
		t.Fatalf("expected no further emissions while parked, got %d", extra)
	case <-time.After(50 * time.Millisecond):
	}

	head.n.Store(105)
	var rest []uint64
	timeout = time.After(500 * time.Millisecond)
collectRest:
	for {
		select {
		case n := <-p.Out():
			rest = append(rest, n)
			if len(rest) == 5 {
				break collectRest
			}
		case <-timeout:
			t.Fatalf("timed out waiting for remaining emissions, got %v", rest)
		}
	}

	for i, n := range rest {
		if n != uint64(101+i) {
			t.Fatalf("rest[%d] = %d, want %d", i, n, 101+i)
		}
	}

	<-done
}

func TestProducerEmitsStrictlyIncreasing(t *testing.T) {
	head := &fakeHead{}
	head.n.Store(1000)

	p := New(Config{ChainID: 1, StartBlock: 0, Head: head, PollInterval: time.Millisecond, BufferSize: 256})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go p.Demand(ctx, 50)

	var last int64 = -1
	for i := 0; i < 50; i++ {
		select {
		case n := <-p.Out():
			if int64(n) <= last {
				t.Fatalf("non-increasing emission: %d after %d", n, last)
			}
			last = int64(n)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for emission")
		}
	}
}
