package pair

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ammPair/internal/model"
	"ammPair/internal/numeric"
)

// Event names as they appear in logs.
const (
	EventMint = "Mint"
	EventBurn = "Burn"
	EventSwap = "Swap"
	EventSync = "Sync"
)

// Event is emitted by the pool after a call completes.
type Event interface {
	EventName() string
	// Payload returns the JSON-friendly form of the event.
	Payload() interface{}
}

type MintEvent struct {
	Sender  common.Address
	AmountA *uint256.Int
	AmountB *uint256.Int
}

func (MintEvent) EventName() string { return EventMint }

func (e MintEvent) Payload() interface{} {
	return model.MintEventData{
		Sender:  e.Sender.Hex(),
		AmountA: numeric.String(e.AmountA),
		AmountB: numeric.String(e.AmountB),
	}
}

type BurnEvent struct {
	Sender  common.Address
	AmountA *uint256.Int
	AmountB *uint256.Int
	To      common.Address
}

func (BurnEvent) EventName() string { return EventBurn }

func (e BurnEvent) Payload() interface{} {
	return model.BurnEventData{
		Sender:  e.Sender.Hex(),
		AmountA: numeric.String(e.AmountA),
		AmountB: numeric.String(e.AmountB),
		To:      e.To.Hex(),
	}
}

type SwapEvent struct {
	Sender     common.Address
	AmountAIn  *uint256.Int
	AmountBIn  *uint256.Int
	AmountAOut *uint256.Int
	AmountBOut *uint256.Int
	To         common.Address
}

func (SwapEvent) EventName() string { return EventSwap }

func (e SwapEvent) Payload() interface{} {
	return model.SwapEventData{
		Sender:     e.Sender.Hex(),
		AmountAIn:  numeric.String(e.AmountAIn),
		AmountBIn:  numeric.String(e.AmountBIn),
		AmountAOut: numeric.String(e.AmountAOut),
		AmountBOut: numeric.String(e.AmountBOut),
		To:         e.To.Hex(),
	}
}

type SyncEvent struct {
	ReserveA *uint256.Int
	ReserveB *uint256.Int
}

func (SyncEvent) EventName() string { return EventSync }

func (e SyncEvent) Payload() interface{} {
	return model.SyncEventData{
		ReserveA: numeric.String(e.ReserveA),
		ReserveB: numeric.String(e.ReserveB),
	}
}
