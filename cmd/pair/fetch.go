package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPair/internal/chain"
	"ammPair/internal/config"
	"ammPair/internal/dex"
	"ammPair/internal/indexer"
	"ammPair/internal/storage"
	"ammPair/internal/storage/postgres"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	pairs, err := indexer.ParsePairs(cfg.Pairs)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("pair list is required")
	}

	decoder, err := dex.NewPairDecoder(dex.DecoderConfig{})
	if err != nil {
		return err
	}
	topic0, err := indexer.ParseTopics(cfg.Topic0)
	if err != nil {
		return err
	}
	if len(topic0) == 0 {
		topic0 = decoder.Topics()
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var (
		cursor indexer.Cursor
		events storage.MultiEventSink
	)
	if cfg.Checkpoint != "" {
		cursor = indexer.NewFileCursor(cfg.Checkpoint)
	}
	if cfg.EventsOut != "" {
		events = append(events, storage.NewJsonlStorage(cfg.EventsOut))
	}
	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		events = append(events, store)
		// The database cursor supersedes the file checkpoint so events and
		// progress commit to the same place.
		cursor = indexer.NamedCursor{Store: store, Name: cursorName(pairs)}
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Pairs:        pairs,
		Topic0:       topic0,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, storage.NewJsonlStorage(cfg.Out), cursor, logger)
	if len(events) > 0 {
		runner.WithDecoding(decoder, events)
	}

	logger.Info("fetch start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("pairs", len(pairs)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("decode", len(events) > 0),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("fetch complete",
		zap.Int("batches", stats.Batches),
		zap.Int("logs", stats.Logs),
		zap.Int("events", stats.Events),
		zap.Int("removed", stats.Removed),
		zap.Uint64("last_block", stats.LastBlock),
	)
	return nil
}

// cursorName keys the database cursor by the set of pairs fetched.
func cursorName(pairs []common.Address) string {
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		names = append(names, strings.ToLower(p.Hex()))
	}
	sort.Strings(names)
	return "fetch:" + strings.Join(names, ",")
}
