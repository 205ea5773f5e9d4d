package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

type callArgs struct {
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
}

// fakeEth answers eth_call from canned responses keyed by contract and
// method selector.
type fakeEth struct {
	responses map[common.Address]map[string][]byte
}

func (f *fakeEth) Call(ctx context.Context, args callArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	input := args.Input
	if len(input) == 0 {
		input = args.Data
	}
	if args.To == nil || len(input) < 4 {
		return nil, errors.New("bad call")
	}
	if byMethod, ok := f.responses[*args.To]; ok {
		if out, ok := byMethod[hexutil.Encode(input[:4])]; ok {
			return out, nil
		}
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeEth) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("no method %s", method)
	}
	out, err := m.Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	if f.responses == nil {
		f.responses = make(map[common.Address]map[string][]byte)
	}
	if f.responses[to] == nil {
		f.responses[to] = make(map[string][]byte)
	}
	f.responses[to][hexutil.Encode(m.ID)] = out
}

func newInprocEthClient(t *testing.T, fe *fakeEth) *ethclient.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", fe); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	t.Cleanup(srv.Stop)
	c := gethrpc.DialInProc(srv)
	t.Cleanup(c.Close)
	return ethclient.NewClient(c)
}

func TestFetchPairState(t *testing.T) {
	pairABI, err := PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("erc20 abi parse: %v", err)
	}

	token0 := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token1 := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	fe := &fakeEth{}
	fe.respond(t, testPair, pairABI, "token0", token0)
	fe.respond(t, testPair, pairABI, "token1", token1)
	fe.respond(t, testPair, pairABI, "getReserves", big.NewInt(1_000_000), big.NewInt(2_000_000), uint32(1700000000))
	fe.respond(t, testPair, pairABI, "price0CumulativeLast", big.NewInt(111))
	fe.respond(t, testPair, pairABI, "price1CumulativeLast", big.NewInt(222))
	fe.respond(t, testPair, pairABI, "kLast", big.NewInt(0))
	fe.respond(t, testPair, pairABI, "totalSupply", big.NewInt(1_414_213))
	fe.respond(t, token0, erc20, "balanceOf", big.NewInt(1_000_500))
	fe.respond(t, token1, erc20, "balanceOf", big.NewInt(2_000_000))
	fe.respond(t, token0, erc20, "decimals", uint8(18))
	fe.respond(t, token0, erc20, "symbol", "AAA")
	fe.respond(t, token0, erc20, "name", "Token A")

	client := newInprocEthClient(t, fe)
	cache := NewTokenMetaCache()

	meta, err := FetchPairState(context.Background(), client, testPair, nil, cache, zap.NewNop())
	if err != nil {
		t.Fatalf("fetch pair state: %v", err)
	}

	if meta.Reserve0 != "1000000" || meta.Reserve1 != "2000000" || meta.BlockTimestampLast != 1700000000 {
		t.Fatalf("reserves mismatch: %+v", meta)
	}
	if meta.Price0CumulativeLast != "111" || meta.Price1CumulativeLast != "222" || meta.KLast != "0" {
		t.Fatalf("accumulators mismatch: %+v", meta)
	}
	if meta.TotalSupply != "1414213" || meta.Balance0 != "1000500" || meta.Balance1 != "2000000" {
		t.Fatalf("supply or balances mismatch: %+v", meta)
	}
	if meta.Token0.Symbol != "AAA" || meta.Token0.Decimals != 18 {
		t.Fatalf("token0 meta mismatch: %+v", meta.Token0)
	}
	// token1 has no metadata methods; the failure is cached, not fatal.
	if meta.Token1.Address != token1.Hex() || meta.Token1.Symbol != "" {
		t.Fatalf("token1 meta mismatch: %+v", meta.Token1)
	}
	if _, ok := cache.Get(token1); !ok {
		t.Fatalf("token1 meta not cached")
	}
}

func TestFetchPairStateReverted(t *testing.T) {
	client := newInprocEthClient(t, &fakeEth{})
	if _, err := FetchPairState(context.Background(), client, testPair, nil, nil, nil); err == nil {
		t.Fatalf("expected error from reverted call")
	}
}
