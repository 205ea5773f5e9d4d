package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"ammPair/internal/model"
	"ammPair/internal/pair"
)

// maxUint112 bounds Sync reserves on the wire.
var maxUint112 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))

// LogPosition places an encoded event in a log stream.
type LogPosition struct {
	ChainID     uint64
	BlockNumber uint64
	TxHash      string
	TxIndex     uint64
	LogIndex    uint64
	Timestamp   uint64
}

// EncodeEvent renders a pool event as the log a V2 pair would emit.
func EncodeEvent(pool common.Address, event pair.Event, pos LogPosition) (model.LogRecord, error) {
	pairABI, err := PairABI()
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("parse pair abi: %w", err)
	}

	var (
		indexed []common.Hash
		values  []interface{}
	)
	switch e := event.(type) {
	case pair.MintEvent:
		indexed = []common.Hash{addressTopic(e.Sender)}
		values = []interface{}{toBig(e.AmountA), toBig(e.AmountB)}
	case pair.BurnEvent:
		indexed = []common.Hash{addressTopic(e.Sender), addressTopic(e.To)}
		values = []interface{}{toBig(e.AmountA), toBig(e.AmountB)}
	case pair.SwapEvent:
		indexed = []common.Hash{addressTopic(e.Sender), addressTopic(e.To)}
		values = []interface{}{toBig(e.AmountAIn), toBig(e.AmountBIn), toBig(e.AmountAOut), toBig(e.AmountBOut)}
	case pair.SyncEvent:
		reserveA, reserveB := toBig(e.ReserveA), toBig(e.ReserveB)
		if reserveA.Cmp(maxUint112) > 0 || reserveB.Cmp(maxUint112) > 0 {
			return model.LogRecord{}, fmt.Errorf("sync reserves exceed uint112")
		}
		values = []interface{}{reserveA, reserveB}
	default:
		return model.LogRecord{}, fmt.Errorf("unsupported event type %T", event)
	}

	abiEvent, ok := pairABI.Events[event.EventName()]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unknown event %s", event.EventName())
	}
	data, err := abiEvent.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", abiEvent.Name, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, abiEvent.ID.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     pos.ChainID,
		BlockNumber: pos.BlockNumber,
		TxHash:      pos.TxHash,
		TxIndex:     pos.TxIndex,
		LogIndex:    pos.LogIndex,
		Address:     pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   pos.Timestamp,
	}, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func toBig(x *uint256.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x.ToBig()
}
