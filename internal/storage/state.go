package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ammPair/internal/model"
)

// FileStateStore keeps the latest snapshot of one pool in a JSON file.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	State     model.PoolState `json:"state"`
	UpdatedAt string          `json:"updated_at"`
}

// LoadPoolState reads the stored snapshot. An address that does not match
// the stored pool reports not found.
func (s *FileStateStore) LoadPoolState(_ context.Context, address string) (model.PoolState, bool, error) {
	if s == nil || s.Path == "" {
		return model.PoolState{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.PoolState{}, false, nil
		}
		return model.PoolState{}, false, fmt.Errorf("read state: %w", err)
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.PoolState{}, false, fmt.Errorf("parse state: %w", err)
	}
	if address != "" && !strings.EqualFold(rec.State.Address, address) {
		return model.PoolState{}, false, nil
	}
	return rec.State, true, nil
}

func (s *FileStateStore) SavePoolState(_ context.Context, state model.PoolState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	data, err := json.MarshalIndent(stateRecord{State: state, UpdatedAt: nowRFC3339()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := WriteFileAtomic(s.Path, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
