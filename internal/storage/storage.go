package storage

import (
	"context"

	"ammPair/internal/model"
)

// LogSink stores raw pair logs.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}

// EventSink stores decoded pair events.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.TypedEvent) error
}

// StateStore persists pool snapshots.
type StateStore interface {
	LoadPoolState(ctx context.Context, address string) (model.PoolState, bool, error)
	SavePoolState(ctx context.Context, state model.PoolState) error
}

// MultiEventSink fans events out to every sink in order and stops at the
// first failure.
type MultiEventSink []EventSink

func (m MultiEventSink) PutEvents(ctx context.Context, events []model.TypedEvent) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutEvents(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
