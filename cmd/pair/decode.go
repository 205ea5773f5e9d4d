package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPair/internal/config"
	"ammPair/internal/dex"
	"ammPair/internal/indexer"
	"ammPair/internal/model"
	"ammPair/internal/storage"
	"ammPair/internal/storage/postgres"
)

const decodeFlushSize = 500

type decodeStats struct {
	total, decoded, skipped, failed int
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signalContext()
	defer stop()

	decoder, err := dex.NewPairDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	pairs, err := indexer.ParsePairs(cfg.Pairs)
	if err != nil {
		return err
	}
	decodeCtx := dex.DecodeContext{Logger: logger, Pairs: make(map[string]struct{}, len(pairs))}
	for _, p := range pairs {
		decodeCtx.Pairs[strings.ToLower(p.Hex())] = struct{}{}
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	var pg storage.EventSink
	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		pg = store
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Int("pairs", len(pairs)),
		zap.Bool("postgres", pg != nil),
	)

	stats, err := decodeStream(ctx, inputFile, decoder, decodeCtx, outWriter, errWriter, pg)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)
	return nil
}

type jsonlWriter interface {
	Write(value interface{}) error
}

// decodeStream decodes every raw log in r. Logs with an unknown topic0 are
// skipped; malformed ones go to errOut and the stream continues.
func decodeStream(
	ctx context.Context,
	r io.Reader,
	decoder dex.Decoder,
	decodeCtx dex.DecodeContext,
	out jsonlWriter,
	errOut jsonlWriter,
	sink storage.EventSink,
) (decodeStats, error) {
	var (
		stats   decodeStats
		pending []model.TypedEvent
	)
	flush := func() error {
		if sink == nil || len(pending) == 0 {
			return nil
		}
		if err := sink.PutEvents(ctx, pending); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		pending = pending[:0]
		return nil
	}

	err := storage.ScanJSONL(r, func(lineNo int, line []byte) error {
		stats.total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.failed++
			_ = errOut.Write(model.DecodeError{Line: lineNo, Error: err.Error()})
			return nil
		}
		if record.Removed {
			stats.skipped++
			return nil
		}
		if record.Topic0() == "" {
			stats.failed++
			_ = errOut.Write(model.NewDecodeError(lineNo, record, fmt.Errorf("missing topic0")))
			return nil
		}
		if !decoder.CanDecode(record.Topic0()) {
			stats.skipped++
			return nil
		}

		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			stats.failed++
			_ = errOut.Write(model.NewDecodeError(lineNo, record, err))
			return nil
		}
		if err := out.Write(event); err != nil {
			return err
		}
		stats.decoded++

		if sink != nil {
			pending = append(pending, *event)
			if len(pending) >= decodeFlushSize {
				return flush()
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, flush()
}
