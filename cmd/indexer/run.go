package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"evmswaps/internal/chain"
	"evmswaps/internal/config"
	"evmswaps/internal/cursor"
	"evmswaps/internal/enrich"
	"evmswaps/internal/indexer"
	"evmswaps/internal/metadata"
	"evmswaps/internal/model"
	"evmswaps/internal/observability"
	"evmswaps/internal/protocol"
	"evmswaps/internal/source"
	"evmswaps/internal/storage"
	"evmswaps/internal/storage/clickhouse"
	"evmswaps/internal/storage/memory"
	"evmswaps/internal/storage/postgres"
	"evmswaps/internal/swaps"
)

func run(cmd *cobra.Command, mode swaps.Mode) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	withSink := mode == swaps.ModeSwaps
	if err := cfg.Validate(withSink); err != nil {
		return err
	}

	network, err := protocol.LookupNetwork(cfg.Network)
	if err != nil {
		return err
	}
	registry, err := protocol.NewDefaultRegistry()
	if err != nil {
		return err
	}
	entries, err := registry.Select(cfg.Network, cfg.Protocols)
	if err != nil {
		return err
	}

	priority := network.PriorityTokens
	if len(cfg.PriorityTokens) > 0 {
		priority, err = indexer.ParseAddresses(cfg.PriorityTokens)
		if err != nil {
			return fmt.Errorf("priority-tokens: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if chainID != network.ChainID {
		return fmt.Errorf("rpc chain id %d does not match network %s (%d)", chainID, network.Name, network.ChainID)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	var pgStore *postgres.Store
	if cfg.PGDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		if err := pgStore.Migrate(ctx); err != nil {
			return err
		}
	}

	pools, tokens := newRegistries(pgStore, cfg, logger)

	cursorStore, closeCursor, err := newCursorStore(ctx, cfg, pgStore)
	if err != nil {
		return err
	}
	defer closeCursor()

	var (
		sink     storage.Sink
		enricher swaps.Enricher
	)
	if withSink {
		sink, err = newSink(ctx, cfg)
		if err != nil {
			return err
		}
		defer sink.Close()

		client, err := enrich.NewClient(chainClient, enrich.Config{
			Network:   cfg.Network,
			Multicall: network.Multicall,
			ChunkSize: cfg.MulticallChunk,
			Workers:   cfg.MulticallWorkers,
		}, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		enricher = client
	}

	engineCfg := swaps.Config{
		Network:        cfg.Network,
		Mode:           mode,
		Registry:       registry,
		Protocols:      protocol.Keys(entries),
		PriorityTokens: priority,
	}
	var engine *swaps.Engine
	if withSink {
		engine, err = swaps.NewEngine(engineCfg, pools, tokens, enricher, metrics, logger)
	} else {
		engine, err = swaps.NewEngine(engineCfg, pools, nil, nil, metrics, logger)
	}
	if err != nil {
		return err
	}

	src := source.NewRPC(chainClient, source.Config{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		MaxRetryDelay: cfg.MaxRetryDelay,
	}, logger)

	runCfg := indexer.RunConfig{
		StreamID:  cfg.StreamIDFor(mode.String()),
		FromBlock: cfg.FromBlock,
		ToBlock:   cfg.ToBlock,
		Filters:   protocol.Filters(entries, !withSink),
	}
	var runner *indexer.Runner
	if withSink {
		runner = indexer.NewRunner(runCfg, src, cursorStore, engine, sink, metrics, logger)
	} else {
		runner = indexer.NewRunner(runCfg, src, cursorStore, engine, nil, metrics, logger)
	}

	logger.Info("indexer start",
		zap.String("network", cfg.Network),
		zap.Stringer("mode", mode),
		zap.String("stream_id", runCfg.StreamID),
		zap.Int("protocols", len(entries)),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("cursor", cfg.Cursor),
		zap.String("sink", sinkName(cfg, withSink)),
		zap.Bool("metadata_persistent", pgStore != nil),
	)

	return runner.Run(ctx)
}

func newRegistries(pgStore *postgres.Store, cfg config.Config, logger *zap.Logger) (*metadata.Pools, *metadata.Tokens) {
	opts := metadata.Options{MissTTL: cfg.PoolMissTTL}
	if pgStore == nil {
		logger.Warn("pg-dsn not set, pool and token metadata are kept in memory only")
		return metadata.NewPools(memory.NewMetadataStore[model.PoolRecord](), opts),
			metadata.NewTokens(memory.NewMetadataStore[model.TokenRecord](), metadata.Options{})
	}
	return metadata.NewPools(pgStore.Pools(), opts), metadata.NewTokens(pgStore.Tokens(), metadata.Options{})
}

func newCursorStore(ctx context.Context, cfg config.Config, pgStore *postgres.Store) (cursor.Store, func(), error) {
	switch cfg.Cursor {
	case config.CursorPostgres:
		return pgStore.Cursor(), func() {}, nil
	case config.CursorRedis:
		client, err := cursor.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return cursor.NewRedisStore(client), func() { _ = client.Close() }, nil
	default:
		return cursor.NewFileStore(cfg.Checkpoint), func() {}, nil
	}
}

func newSink(ctx context.Context, cfg config.Config) (storage.Sink, error) {
	if cfg.Sink != config.SinkClickhouse {
		return storage.NewJsonlSink(cfg.Out), nil
	}
	conn, err := clickhouse.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, err
	}
	sink, err := clickhouse.NewSink(conn, clickhouse.Config{Table: cfg.ClickhouseTable, Network: cfg.Network})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := sink.Migrate(ctx); err != nil {
		sink.Close()
		return nil, err
	}
	return sink, nil
}

func sinkName(cfg config.Config, withSink bool) string {
	if !withSink {
		return "none"
	}
	return cfg.Sink
}
