// Command indexer boots one pipeline per configured chain under a
// supervisor and blocks until an OS signal requests shutdown, mirroring
// teacher evm-ingestion/main.go's wiring-then-select{} shape generalized
// to many chains.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evmindexer/chainindexer/internal/abi"
	"github.com/evmindexer/chainindexer/internal/config"
	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/evmindexer/chainindexer/internal/pipeline"
	"github.com/evmindexer/chainindexer/internal/rpc"
	"github.com/evmindexer/chainindexer/internal/sourcify"
	"github.com/evmindexer/chainindexer/internal/storage"
	"github.com/evmindexer/chainindexer/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logging.Init(cfg.LogLevel)
	log := logging.For("main")

	store, err := storage.NewClickHouseStorage(storage.Options{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to clickhouse")
	}
	defer store.Close()

	abiStore := abi.NewStore(store)

	sourcifyClient := sourcify.NewClient(sourcify.Config{
		ProxyURLs:  cfg.Sourcify.ProxyURLs,
		DirectURL:  cfg.Sourcify.DirectURL,
		Timeout:    cfg.Sourcify.Timeout,
		MaxRetries: cfg.Sourcify.MaxRetries,
		CacheTTL:   cfg.Sourcify.CacheTTL,
	})

	rpcURLByChain := make(map[uint32]string, len(cfg.Chains))
	chainIDs := make([]uint32, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		rpcURLByChain[c.ChainID] = c.RPCURL
		chainIDs = append(chainIDs, c.ChainID)
	}

	deps := pipeline.Deps{
		Storage:   store,
		ABIStore:  abiStore,
		Sourcify:  sourcifyClient,
		AbiFanout: 4,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := func(chainID uint32) supervisor.Pipeline {
		startBlock := cfg.StartBlock
		if latest, ok, err := store.LatestBlock(context.Background(), chainID); err != nil {
			log.Warn().Uint32("chain_id", chainID).Err(err).Msg("failed to resolve latest committed block, falling back to configured start block")
		} else if ok {
			startBlock = latest + 1
		}
		client := rpc.NewClient(chainID, rpcURLByChain[chainID], cfg.RPCTimeout)
		tracker := rpc.NewHeadTracker(client, chainID)
		tracker.Start(ctx)
		return pipeline.New(chainID, startBlock, tracker, deps)
	}

	sup := supervisor.New(chainIDs, factory)

	go startMetricsServer(cfg.MetricsAddr, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")
		cancel()
	}()

	log.Info().Int("chains", len(chainIDs)).Msg("supervisor starting")
	sup.Run(ctx)
	log.Info().Msg("supervisor stopped")
}

func startMetricsServer(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
