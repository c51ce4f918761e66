// Package supervisor runs one pipeline per configured chain and restarts
// any pipeline that returns an error, isolating one chain's failures from
// the rest — the same "stream ended, restarting in Ns" loop teacher's
// evm-ingestion/main.go runs for its single chain, generalized to many.
package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline is the subset of *pipeline.Pipeline the supervisor drives. A
// fresh Pipeline is built per restart attempt via Factory so a pipeline
// that exits can't be resumed into a half-broken state.
type Pipeline interface {
	Run(ctx context.Context) error
}

// Factory builds a fresh Pipeline instance for one chain, called once per
// (re)start attempt.
type Factory func(chainID uint32) Pipeline

const (
	baseBackoff = time.Second
	maxBackoff  = 2 * time.Minute
)

// Supervisor restarts a chain's pipeline with exponential backoff,
// capped at maxBackoff, resetting the delay whenever a run survives
// longer than one backoff period.
type Supervisor struct {
	chains  []uint32
	factory Factory
	log     zerolog.Logger
}

// New builds a Supervisor for the given chain IDs.
func New(chains []uint32, factory Factory) *Supervisor {
	return &Supervisor{chains: chains, factory: factory, log: logging.For("supervisor")}
}

// Run starts one restart loop per chain and blocks until ctx is cancelled
// and every chain's loop has exited. A panic or repeated failure in one
// chain's loop never stops the others.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, chainID := range s.chains {
		chainID := chainID
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runChain(ctx, chainID)
		}()
	}
	wg.Wait()
}

func (s *Supervisor) runChain(ctx context.Context, chainID uint32) {
	log := logging.ForChain("supervisor", chainID)
	backoff := baseBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		runID := uuid.New().String()
		log := log.With().Str("run_id", runID).Logger()
		p := s.factory(chainID)

		startedAt := time.Now()
		log.Info().Msg("pipeline starting")
		err := runRecovered(ctx, p)
		ran := time.Since(startedAt)

		if ctx.Err() != nil {
			log.Info().Dur("ran_for", ran).Msg("pipeline stopped on shutdown")
			return
		}

		if err != nil {
			log.Error().Err(err).Dur("ran_for", ran).Msg("pipeline exited with error")
		} else {
			log.Warn().Dur("ran_for", ran).Msg("pipeline exited without error")
		}

		if ran >= backoff {
			backoff = baseBackoff
		} else {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		log.Info().Dur("delay", backoff).Msg("restarting pipeline")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// runRecovered runs p.Run in its own goroutine and converts a panic into an
// error, so one chain's pipeline panicking restarts that chain's loop
// instead of crashing the process and taking every other chain down with
// it.
func runRecovered(ctx context.Context, p Pipeline) error {
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("pipeline panic: %v\n%s", r, debug.Stack())
			}
		}()
		errCh <- p.Run(ctx)
	}()
	return <-errCh
}
