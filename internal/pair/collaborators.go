package pair

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenLedger is the capability the pool needs from each pooled asset.
// Every call into it is a potential reentry point.
type TokenLedger interface {
	Address() common.Address
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
}

// Reverter is implemented by ledgers that can roll back their own writes,
// mirroring go-ethereum's StateDB snapshots. The pool reverts every
// Reverter it touched when a call fails and discards the snapshot when it
// succeeds.
type Reverter interface {
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

// FeeSource reports the protocol fee recipient, if one is configured.
type FeeSource interface {
	ProtocolFeeRecipient() (common.Address, bool)
}

// StaticFeeSource is a FeeSource with a fixed recipient. The zero address
// disables the protocol fee.
type StaticFeeSource common.Address

func (s StaticFeeSource) ProtocolFeeRecipient() (common.Address, bool) {
	addr := common.Address(s)
	return addr, addr != (common.Address{})
}

// Clock returns the current time in seconds.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// EventSink receives events of successfully completed calls.
type EventSink interface {
	Emit(event Event)
}

// FlashCallee is invoked by FlashSwap after the optimistic transfers and
// before the invariant check, so it can repay within the same call.
type FlashCallee interface {
	OnFlashSwap(ctx context.Context, sender common.Address, amountAOut, amountBOut *uint256.Int, data []byte) error
}

type discardSink struct{}

func (discardSink) Emit(Event) {}
