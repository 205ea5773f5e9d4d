package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pair",
		Short:        "Constant-product pair engine tools",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a JSONL scenario against an in-memory pair",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("scenario", "", "scenario JSONL path (- for stdin)")
	simulateCmd.Flags().String("events-out", "./data/sim_events.jsonl", "typed events JSONL output")
	simulateCmd.Flags().String("logs-out", "", "optional raw pair logs JSONL output")
	simulateCmd.Flags().String("state-out", "./data/sim_state.json", "final pool snapshot path")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and snapshot")
	simulateCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on events")
	simulateCmd.Flags().Uint64("start-time", 1_700_000_000, "clock start (unix seconds)")
	simulateCmd.Flags().String("fee-to", "", "protocol fee recipient (account name or address)")
	simulateCmd.Flags().String("symbol-a", "TKA", "token a symbol")
	simulateCmd.Flags().String("symbol-b", "TKB", "token b symbol")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(simulateCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read a live V2-compatible pair over JSON-RPC",
		RunE:  runInspect,
	}
	inspectCmd.Flags().String("rpc", "", "JSON-RPC URL")
	inspectCmd.Flags().String("pair", "", "pair address")
	inspectCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	inspectCmd.Flags().String("amount-in", "", "optional input amount to quote")
	inspectCmd.Flags().String("input-side", "a", "token the quoted input is paid in (a or b)")
	inspectCmd.Flags().Duration("timeout", 30*time.Second, "overall RPC timeout")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(inspectCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw pair logs into typed events",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/pair_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().StringSlice("pair", nil, "only decode logs of these pairs (comma-separated)")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for decoded events")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(decodeCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch pair logs from a chain",
		RunE:  runFetch,
	}
	fetchCmd.Flags().String("rpc", "", "JSON-RPC URL")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().StringSlice("pair", nil, "pair addresses (comma-separated)")
	fetchCmd.Flags().StringSlice("topic0", nil, "event names or topic0 hashes, default all pair events")
	fetchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	fetchCmd.Flags().String("out", "./data/pair_logs.jsonl", "raw logs JSONL output")
	fetchCmd.Flags().String("events-out", "", "optional typed events JSONL output")
	fetchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path, empty disables")
	fetchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and the cursor")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(fetchCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
