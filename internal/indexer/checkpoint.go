package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ammPair/internal/storage"
)

// Cursor remembers the last block a fetch fully stored.
type Cursor interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastBlock uint64) error
}

// Checkpoint is the on-disk cursor record.
type Checkpoint struct {
	LastFetchedBlock uint64 `json:"last_fetched_block"`
	UpdatedAt        string `json:"updated_at"`
}

// FileCursor keeps the cursor in a JSON file.
type FileCursor struct {
	path string
}

func NewFileCursor(path string) *FileCursor {
	return &FileCursor{path: path}
}

func (c *FileCursor) Load(_ context.Context) (uint64, bool, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.LastFetchedBlock, true, nil
}

func (c *FileCursor) Save(_ context.Context, lastBlock uint64) error {
	data, err := json.Marshal(Checkpoint{
		LastFetchedBlock: lastBlock,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := storage.WriteFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// CursorStore is a named cursor table, such as the Postgres store.
type CursorStore interface {
	LoadCursor(ctx context.Context, name string) (uint64, bool, error)
	SaveCursor(ctx context.Context, name string, block uint64) error
}

// NamedCursor binds one cursor name in a CursorStore.
type NamedCursor struct {
	Store CursorStore
	Name  string
}

func (c NamedCursor) Load(ctx context.Context) (uint64, bool, error) {
	return c.Store.LoadCursor(ctx, c.Name)
}

func (c NamedCursor) Save(ctx context.Context, lastBlock uint64) error {
	return c.Store.SaveCursor(ctx, c.Name, lastBlock)
}
