package dex

import (
	"go.uber.org/zap"

	"ammPair/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Logger *zap.Logger
	// Pairs, when non-empty, restricts decoding to these pair addresses
	// (lower-cased hex).
	Pairs map[string]struct{}
}
