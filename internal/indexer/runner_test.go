package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"ammPair/internal/dex"
	"ammPair/internal/model"
	"ammPair/internal/pair"
)

var testPair = common.HexToAddress("0x00000000000000000000000000000000000000f1")

type fakeSource struct {
	logs       []types.Log
	latest     uint64
	failFirst  int
	calls      []BlockRange
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(56), nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("rpc unavailable")
	}
	f.calls = append(f.calls, BlockRange{From: from, To: to})
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

type memLogs struct{ records []model.LogRecord }

func (m *memLogs) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

type memEvents struct{ events []model.TypedEvent }

func (m *memEvents) PutEvents(_ context.Context, events []model.TypedEvent) error {
	m.events = append(m.events, events...)
	return nil
}

func chainLog(t *testing.T, event pair.Event, block uint64, index uint) types.Log {
	t.Helper()
	record, err := dex.EncodeEvent(testPair, event, dex.LogPosition{BlockNumber: block, LogIndex: uint64(index)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	topics := make([]common.Hash, 0, len(record.Topics))
	for _, topic := range record.Topics {
		topics = append(topics, common.HexToHash(topic))
	}
	return types.Log{
		Address:     testPair,
		Topics:      topics,
		Data:        hexutil.MustDecode(record.Data),
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func syncAt(t *testing.T, block uint64, index uint, a, b uint64) types.Log {
	return chainLog(t, pair.SyncEvent{ReserveA: uint256.NewInt(a), ReserveB: uint256.NewInt(b)}, block, index)
}

func TestRunnerStoresAndDecodes(t *testing.T) {
	removed := syncAt(t, 12, 1, 5, 5)
	removed.Removed = true
	source := &fakeSource{
		latest:    15,
		failFirst: 1,
		logs: []types.Log{
			syncAt(t, 10, 0, 1000, 1000),
			chainLog(t, pair.MintEvent{AmountA: uint256.NewInt(1), AmountB: uint256.NewInt(2)}, 11, 0),
			removed,
			syncAt(t, 14, 0, 2000, 2000),
		},
	}
	decoder, err := dex.NewPairDecoder(dex.DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	logs := &memLogs{}
	events := &memEvents{}
	cursor := NewFileCursor(filepath.Join(t.TempDir(), "cursor.json"))
	runner := NewRunner(RunConfig{
		FromBlock:    10,
		Pairs:        []common.Address{testPair},
		BatchSize:    3,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, source, logs, cursor, nil).WithDecoding(decoder, events)

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Batches != 2 || stats.Logs != 3 || stats.Events != 3 || stats.Removed != 1 || stats.LastBlock != 15 {
		t.Fatalf("stats: %+v", stats)
	}
	if len(logs.records) != 3 || logs.records[0].Timestamp != 1_700_000_010 || logs.records[0].ChainID != 56 {
		t.Fatalf("records: %+v", logs.records)
	}
	if events.events[1].EventName != pair.EventMint {
		t.Fatalf("second event: %+v", events.events[1])
	}
	sync, ok := events.events[2].Decoded.(model.SyncEventData)
	if !ok || sync.ReserveA != "2000" {
		t.Fatalf("last event: %+v", events.events[2].Decoded)
	}

	last, ok, err := cursor.Load(context.Background())
	if err != nil || !ok || last != 15 {
		t.Fatalf("cursor: %d ok=%v err=%v", last, ok, err)
	}
}

func TestRunnerResumesFromCursor(t *testing.T) {
	source := &fakeSource{latest: 20}
	cursor := NewFileCursor(filepath.Join(t.TempDir(), "cursor.json"))
	if err := cursor.Save(context.Background(), 17); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	runner := NewRunner(RunConfig{FromBlock: 10, Pairs: []common.Address{testPair}, BatchSize: 100}, source, &memLogs{}, cursor, nil)
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(source.calls) != 1 || source.calls[0] != (BlockRange{From: 18, To: 20}) {
		t.Fatalf("ranges fetched: %+v", source.calls)
	}

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(source.calls) != 1 {
		t.Fatalf("caught-up run fetched again: %+v", source.calls)
	}
}

func TestRunnerGivesUpAfterRetries(t *testing.T) {
	source := &fakeSource{latest: 5, failFirst: 10}
	runner := NewRunner(RunConfig{
		Pairs:        []common.Address{testPair},
		BatchSize:    10,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, source, &memLogs{}, nil, nil)
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected filter error")
	}
	if source.failFirst != 8 {
		t.Fatalf("attempts: %d", 10-source.failFirst)
	}
}

func TestRunnerRequiresPairs(t *testing.T) {
	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeSource{}, &memLogs{}, nil, nil)
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error without pairs")
	}
}

type memCursorStore map[string]uint64

func (m memCursorStore) LoadCursor(_ context.Context, name string) (uint64, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

func (m memCursorStore) SaveCursor(_ context.Context, name string, block uint64) error {
	m[name] = block
	return nil
}

func TestNamedCursor(t *testing.T) {
	store := memCursorStore{}
	cursor := NamedCursor{Store: store, Name: "pair-f1"}
	if err := cursor.Save(context.Background(), 9); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store["pair-f1"] != 9 {
		t.Fatalf("store: %+v", store)
	}
}

func TestParsePairsAndTopics(t *testing.T) {
	pairs, err := ParsePairs([]string{" 0x00000000000000000000000000000000000000f1", "", "0x00000000000000000000000000000000000000F1"})
	if err != nil || len(pairs) != 1 {
		t.Fatalf("pairs: %v %v", pairs, err)
	}
	if _, err := ParsePairs([]string{"0x0000000000000000000000000000000000000000"}); err == nil {
		t.Fatalf("zero address accepted")
	}
	if _, err := ParsePairs([]string{"nope"}); err == nil {
		t.Fatalf("invalid address accepted")
	}

	topics, err := ParseTopics([]string{"sync", "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822"})
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if topics[0].Hex() != "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1" {
		t.Fatalf("sync topic: %s", topics[0].Hex())
	}
	if _, err := ParseTopics([]string{"Transfer"}); err == nil {
		t.Fatalf("unknown event accepted")
	}
	if _, err := ParseTopics([]string{"0x1234"}); err == nil {
		t.Fatalf("short topic accepted")
	}
}
