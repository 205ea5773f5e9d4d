package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPair/internal/config"
	"ammPair/internal/sim"
	"ammPair/internal/storage"
	"ammPair/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}

	ctx, stop := signalContext()
	defer stop()

	var feeTo common.Address
	if cfg.FeeTo != "" {
		feeTo = sim.AccountAddress(cfg.FeeTo)
	}
	simulator, err := sim.New(sim.Options{
		ChainID:   cfg.ChainID,
		StartTime: cfg.StartTime,
		SymbolA:   cfg.SymbolA,
		SymbolB:   cfg.SymbolB,
		FeeTo:     feeTo,
	}, logger)
	if err != nil {
		return err
	}

	var input io.Reader = os.Stdin
	if cfg.Scenario != "-" {
		file, err := os.Open(cfg.Scenario)
		if err != nil {
			return fmt.Errorf("open scenario: %w", err)
		}
		defer file.Close()
		input = file
	}

	var sinks sim.Sinks
	var eventSinks storage.MultiEventSink
	if cfg.EventsOut != "" {
		writer, err := truncate(cfg.EventsOut)
		if err != nil {
			return err
		}
		eventSinks = append(eventSinks, writer)
	}
	if cfg.LogsOut != "" {
		writer, err := truncate(cfg.LogsOut)
		if err != nil {
			return err
		}
		sinks.Logs = writer
	}

	var pg *postgres.Store
	if cfg.PgDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		eventSinks = append(eventSinks, pg)
	}
	sinks.Events = eventSinks

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("pool", sim.PoolAddr.Hex()),
		zap.String("events_out", cfg.EventsOut),
		zap.String("state_out", cfg.StateOut),
		zap.Bool("postgres", pg != nil),
	)

	summary, err := simulator.Run(ctx, input, sinks)
	if err != nil {
		return err
	}

	snapshot := simulator.Pool().Snapshot()
	stores := []storage.StateStore{&storage.FileStateStore{Path: cfg.StateOut}}
	if pg != nil {
		stores = append(stores, pg)
	}
	for _, store := range stores {
		if err := store.SavePoolState(ctx, snapshot); err != nil {
			return err
		}
	}

	logger.Info("simulate complete",
		zap.Int("steps", summary.Steps),
		zap.Int("ok", summary.OK),
		zap.Int("failed", summary.Failed),
		zap.Int("events", summary.Events),
		zap.String("reserve_a", snapshot.ReserveA),
		zap.String("reserve_b", snapshot.ReserveB),
		zap.String("total_shares", snapshot.TotalShares),
	)
	return nil
}

// truncate starts a fresh JSONL file so reruns do not append to old output.
func truncate(path string) (*storage.JsonlStorage, error) {
	writer, err := storage.NewJSONLWriter(path, false)
	if err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return storage.NewJsonlStorage(path), nil
}
