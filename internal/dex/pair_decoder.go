package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"ammPair/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 -> event name aliases for forks that rename
	// events but keep the V2 layout.
	Topic0Map map[string]string
}

// PairDecoder decodes Uniswap V2 compatible pair events.
type PairDecoder struct {
	pairABI     abi.ABI
	topicToName map[string]string
}

// NewPairDecoder builds a pair decoder.
func NewPairDecoder(cfg DecoderConfig) (*PairDecoder, error) {
	pairABI, err := PairABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, 4+len(cfg.Topic0Map))
	for _, name := range []string{"Mint", "Burn", "Swap", "Sync"} {
		topicToName[strings.ToLower(pairABI.Events[name].ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PairDecoder{pairABI: pairABI, topicToName: topicToName}, nil
}

// Topics returns every topic0 the decoder accepts.
func (d *PairDecoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *PairDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *PairDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pair address: %s", log.Address)
	}
	if len(ctx.Pairs) > 0 {
		if _, ok := ctx.Pairs[strings.ToLower(log.Address)]; !ok {
			return nil, fmt.Errorf("pair not tracked: %s", log.Address)
		}
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case "Mint":
		decoded, err = d.decodeMint(log)
	case "Burn":
		decoded, err = d.decodeBurn(log)
	case "Swap":
		decoded, err = d.decodeSwap(log)
	case "Sync":
		decoded, err = d.decodeSync(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}

	if ctx.Logger != nil {
		ctx.Logger.Debug("decoded pair event",
			zap.String("event", name),
			zap.Uint64("block", log.BlockNumber),
			zap.Uint64("log_index", log.LogIndex),
		)
	}
	return buildTypedEvent(log, name, decoded), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mint":
		return "Mint"
	case "burn":
		return "Burn"
	case "swap":
		return "Swap"
	case "sync":
		return "Sync"
	default:
		return ""
	}
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}
}

func (d *PairDecoder) decodeMint(log model.LogRecord) (model.MintEventData, error) {
	event := d.pairABI.Events["Mint"]
	var indexed struct {
		Sender common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.MintEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.MintEventData{}, err
	}
	return model.MintEventData{
		Sender:  indexed.Sender.Hex(),
		AmountA: amounts[0].String(),
		AmountB: amounts[1].String(),
	}, nil
}

func (d *PairDecoder) decodeBurn(log model.LogRecord) (model.BurnEventData, error) {
	event := d.pairABI.Events["Burn"]
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.BurnEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.BurnEventData{}, err
	}
	return model.BurnEventData{
		Sender:  indexed.Sender.Hex(),
		AmountA: amounts[0].String(),
		AmountB: amounts[1].String(),
		To:      indexed.To.Hex(),
	}, nil
}

func (d *PairDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.pairABI.Events["Swap"]
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.SwapEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 4)
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Sender:     indexed.Sender.Hex(),
		AmountAIn:  amounts[0].String(),
		AmountBIn:  amounts[1].String(),
		AmountAOut: amounts[2].String(),
		AmountBOut: amounts[3].String(),
		To:         indexed.To.Hex(),
	}, nil
}

func (d *PairDecoder) decodeSync(log model.LogRecord) (model.SyncEventData, error) {
	event := d.pairABI.Events["Sync"]
	if _, err := parseIndexedTopics(event, log.Topics); err != nil {
		return model.SyncEventData{}, err
	}
	reserves, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.SyncEventData{}, err
	}
	return model.SyncEventData{
		ReserveA: reserves[0].String(),
		ReserveB: reserves[1].String(),
	}, nil
}

func parseIndexed(event abi.Event, topics []string, out interface{}) error {
	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return err
	}
	if err := abi.ParseTopics(out, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func unpackAmounts(event abi.Event, dataHex string, want int) ([]*big.Int, error) {
	values, err := unpackNonIndexed(event, dataHex)
	if err != nil {
		return nil, err
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", strings.ToLower(event.Name), len(values))
	}
	out := make([]*big.Int, 0, want)
	for _, value := range values {
		amount, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
