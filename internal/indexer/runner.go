package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"ammPair/internal/chain"
	"ammPair/internal/dex"
	"ammPair/internal/model"
	"ammPair/internal/storage"
)

// LogSource is the slice of the chain client the fetcher needs.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for a pair log fetch.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	Pairs        []common.Address
	Topic0       []common.Hash
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner pulls pair logs from a chain in block batches, stores them raw and,
// when a decoder and event sink are set, stores the decoded events too.
type Runner struct {
	cfg     RunConfig
	source  LogSource
	logs    storage.LogSink
	events  storage.EventSink
	decoder dex.Decoder
	cursor  Cursor
	logger  *zap.Logger
	seen    map[string]struct{}
}

// Stats summarizes a finished run.
type Stats struct {
	Batches   int
	Logs      int
	Events    int
	Removed   int
	LastBlock uint64
}

func NewRunner(cfg RunConfig, source LogSource, logs storage.LogSink, cursor Cursor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		source: source,
		logs:   logs,
		cursor: cursor,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// WithDecoding makes the runner decode each stored batch into sink.
func (r *Runner) WithDecoding(decoder dex.Decoder, sink storage.EventSink) *Runner {
	r.decoder = decoder
	r.events = sink
	return r
}

// Run executes the fetch loop.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.source == nil {
		return stats, fmt.Errorf("log source is nil")
	}
	if r.logs == nil {
		return stats, fmt.Errorf("log sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Pairs) == 0 {
		return stats, fmt.Errorf("at least one pair address is required")
	}

	chainID, err := r.source.GetChainID(ctx)
	if err != nil {
		return stats, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return stats, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return stats, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.cursor != nil {
		last, ok, err := r.cursor.Load(ctx)
		if err != nil {
			return stats, err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from cursor", zap.Uint64("last_fetched", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to fetch", zap.Uint64("from", from), zap.Uint64("to", to))
		return stats, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	decodeCtx := dex.DecodeContext{Logger: r.logger, Pairs: pairSet(r.cfg.Pairs)}
	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		logs, err := r.filterLogs(ctx, blockRange)
		if err != nil {
			return stats, fmt.Errorf("filter logs: %w", err)
		}

		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				stats.Removed++
				r.logger.Warn("skip removed log", zap.Uint64("block_number", log.BlockNumber), zap.String("tx_hash", log.TxHash.Hex()))
				continue
			}
			if r.isDuplicate(log) {
				continue
			}
			ts, err := r.blockTimestamp(ctx, log.BlockNumber)
			if err != nil {
				return stats, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			records = append(records, buildLogRecord(chainIDValue, log, ts))
		}

		if err := r.logs.PutLogBatch(records); err != nil {
			return stats, fmt.Errorf("store logs: %w", err)
		}
		decoded, err := r.decodeBatch(ctx, records, decodeCtx)
		if err != nil {
			return stats, err
		}

		if r.cursor != nil {
			if err := r.cursor.Save(ctx, blockRange.To); err != nil {
				return stats, err
			}
		}

		stats.Batches++
		stats.Logs += len(records)
		stats.Events += decoded
		stats.LastBlock = blockRange.To
		r.logger.Info("batch complete",
			zap.Int("logs", len(records)),
			zap.Int("events", decoded),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return stats, nil
}

func (r *Runner) decodeBatch(ctx context.Context, records []model.LogRecord, decodeCtx dex.DecodeContext) (int, error) {
	if r.decoder == nil || r.events == nil || len(records) == 0 {
		return 0, nil
	}
	events := make([]model.TypedEvent, 0, len(records))
	for _, record := range records {
		if !r.decoder.CanDecode(record.Topic0()) {
			continue
		}
		event, err := r.decoder.Decode(record, decodeCtx)
		if err != nil {
			r.logger.Warn("decode failed",
				zap.Error(err),
				zap.Uint64("block_number", record.BlockNumber),
				zap.Uint64("log_index", record.LogIndex),
			)
			continue
		}
		if event != nil {
			events = append(events, *event)
		}
	}
	if err := r.events.PutEvents(ctx, events); err != nil {
		return 0, fmt.Errorf("store events: %w", err)
	}
	return len(events), nil
}

func (r *Runner) filterLogs(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	r.logger.Debug("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	var logs []types.Log
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, blockRange.From, blockRange.To, r.cfg.Pairs, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
