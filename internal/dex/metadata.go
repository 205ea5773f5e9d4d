package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammPair/internal/model"
)

// Caller performs eth_call. *chain.Client and *ethclient.Client satisfy it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchPairState reads a pair's reserves, accumulators and supply at block
// (nil for latest), plus the pair's balance of each token. Token metadata
// is best effort and cached in tokenCache when non-nil.
func FetchPairState(ctx context.Context, chainClient Caller, pairAddr common.Address, block *big.Int, tokenCache *TokenMetaCache, logger *zap.Logger) (model.PairMeta, error) {
	if chainClient == nil {
		return model.PairMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pairABI, err := PairABI()
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("parse pair abi: %w", err)
	}
	call := func(method string) ([]interface{}, error) {
		return callMethod(ctx, chainClient, pairAddr, pairABI, method, block)
	}

	values, err := call("token0")
	if err != nil {
		return model.PairMeta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token0: %w", err)
	}
	values, err = call("token1")
	if err != nil {
		return model.PairMeta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token1: %w", err)
	}

	values, err = call("getReserves")
	if err != nil {
		return model.PairMeta{}, err
	}
	if len(values) != 3 {
		return model.PairMeta{}, fmt.Errorf("unexpected getReserves values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("reserve1: %w", err)
	}
	tsLast, err := asBigInt(values[2])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("block timestamp last: %w", err)
	}

	meta := model.PairMeta{
		Address:            pairAddr.Hex(),
		Reserve0:           reserve0.String(),
		Reserve1:           reserve1.String(),
		BlockTimestampLast: uint32(tsLast.Uint64()),
	}

	for _, field := range []struct {
		method string
		dst    *string
	}{
		{"price0CumulativeLast", &meta.Price0CumulativeLast},
		{"price1CumulativeLast", &meta.Price1CumulativeLast},
		{"kLast", &meta.KLast},
		{"totalSupply", &meta.TotalSupply},
	} {
		values, err := call(field.method)
		if err != nil {
			return model.PairMeta{}, err
		}
		v, err := asBigInt(values[0])
		if err != nil {
			return model.PairMeta{}, fmt.Errorf("%s: %w", field.method, err)
		}
		*field.dst = v.String()
	}

	balance0, err := FetchTokenBalance(ctx, chainClient, token0, pairAddr, block)
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token0 balance: %w", err)
	}
	balance1, err := FetchTokenBalance(ctx, chainClient, token1, pairAddr, block)
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token1 balance: %w", err)
	}
	meta.Balance0 = balance0.String()
	meta.Balance1 = balance1.String()

	meta.Token0 = cachedTokenMeta(ctx, chainClient, token0, tokenCache, logger)
	meta.Token1 = cachedTokenMeta(ctx, chainClient, token1, tokenCache, logger)
	return meta, nil
}

func cachedTokenMeta(ctx context.Context, chainClient Caller, token common.Address, cache *TokenMetaCache, logger *zap.Logger) model.TokenMeta {
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta
		}
	}
	meta, err := FetchTokenMeta(ctx, chainClient, token, logger)
	if err != nil {
		logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if cache != nil {
		cache.Set(token, meta)
	}
	return meta
}

// FetchTokenBalance returns account's ERC20 balance of token.
func FetchTokenBalance(ctx context.Context, chainClient Caller, token, account common.Address, block *big.Int) (*big.Int, error) {
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	values, err := callMethod(ctx, chainClient, token, erc20, "balanceOf", block, account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func callMethod(ctx context.Context, chainClient Caller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := chainClient.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: no values", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, chainClient Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if chainClient == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		return callMethod(ctx, chainClient, token, parsed, method, nil)
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
