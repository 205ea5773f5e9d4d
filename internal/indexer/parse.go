package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"ammPair/internal/dex"
)

// ParsePairs converts pair address strings into addresses. Blank entries are
// skipped and repeats collapse to one.
func ParsePairs(inputs []string) ([]common.Address, error) {
	seen := make(map[common.Address]struct{}, len(inputs))
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addr := common.HexToAddress(input)
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("zero address is not a pair")
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseTopics accepts pair event names (Mint, Burn, Swap, Sync) or raw
// 32-byte topic0 hashes.
func ParseTopics(inputs []string) ([]common.Hash, error) {
	var pairABIEvents map[string]common.Hash
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "0x") {
			if pairABIEvents == nil {
				parsed, err := dex.PairABI()
				if err != nil {
					return nil, err
				}
				pairABIEvents = make(map[string]common.Hash, len(parsed.Events))
				for name, event := range parsed.Events {
					pairABIEvents[strings.ToLower(name)] = event.ID
				}
			}
			id, ok := pairABIEvents[strings.ToLower(input)]
			if !ok {
				return nil, fmt.Errorf("unknown pair event: %s", input)
			}
			topics = append(topics, id)
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}
