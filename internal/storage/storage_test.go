package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ammPair/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	s := NewJsonlStorage(path)
	ctx := context.Background()

	first := []model.TypedEvent{{EventName: "Sync", LogIndex: 0, Decoded: model.SyncEventData{ReserveA: "1", ReserveB: "2"}}}
	second := []model.TypedEvent{{EventName: "Mint", LogIndex: 1}}
	if err := s.PutEvents(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.PutEvents(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := s.PutEvents(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var names []string
	err = ScanJSONL(file, func(_ int, line []byte) error {
		var event model.TypedEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return err
		}
		names = append(names, event.EventName)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if strings.Join(names, ",") != "Sync,Mint" {
		t.Fatalf("got %v", names)
	}
}

func TestScanJSONLSkipsBlankLinesAndStops(t *testing.T) {
	input := "{\"a\":1}\n\n   \n{\"a\":2}\n{\"a\":3}\n"
	stop := errors.New("stop")

	var seen []int
	err := ScanJSONL(strings.NewReader(input), func(lineNo int, _ []byte) error {
		seen = append(seen, lineNo)
		if lineNo == 4 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("got %v want stop", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 4 {
		t.Fatalf("line numbers: %v", seen)
	}
}

func TestFileStateStore(t *testing.T) {
	ctx := context.Background()
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}

	if _, ok, err := store.LoadPoolState(ctx, ""); err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}

	state := model.PoolState{
		Address:     "0x00000000000000000000000000000000000000F1",
		ReserveA:    "2000",
		ReserveB:    "2000",
		TotalShares: "2000",
		Balances:    map[string]string{"0xabc": "1000"},
	}
	if err := store.SavePoolState(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(store.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	got, ok, err := store.LoadPoolState(ctx, strings.ToLower(state.Address))
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.ReserveA != "2000" || got.Balances["0xabc"] != "1000" {
		t.Fatalf("state mismatch: %+v", got)
	}

	if _, ok, _ := store.LoadPoolState(ctx, "0x0000000000000000000000000000000000000001"); ok {
		t.Fatalf("other pool must not match")
	}
}

func TestMultiEventSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls []string
	sink := MultiEventSink{
		sinkFunc(func([]model.TypedEvent) error { calls = append(calls, "a"); return nil }),
		nil,
		sinkFunc(func([]model.TypedEvent) error { calls = append(calls, "b"); return boom }),
		sinkFunc(func([]model.TypedEvent) error { calls = append(calls, "c"); return nil }),
	}
	if err := sink.PutEvents(context.Background(), []model.TypedEvent{{}}); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if strings.Join(calls, "") != "ab" {
		t.Fatalf("calls: %v", calls)
	}
}

type sinkFunc func([]model.TypedEvent) error

func (f sinkFunc) PutEvents(_ context.Context, events []model.TypedEvent) error { return f(events) }
