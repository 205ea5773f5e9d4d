package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

type fakeEth struct {
	headerCalls int
}

func (f *fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(56))
}

func (f *fakeEth) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(1234)
}

func (f *fakeEth) GetBlockByNumber(number rpc.BlockNumber, full bool) (*types.Header, error) {
	f.headerCalls++
	return &types.Header{
		Number:     big.NewInt(number.Int64()),
		Time:       uint64(1_700_000_000 + number.Int64()),
		Difficulty: big.NewInt(0),
	}, nil
}

func newTestClient(t *testing.T, fe *fakeEth) *Client {
	t.Helper()
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", fe); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	t.Cleanup(srv.Stop)
	c := NewClientFromRPC(rpc.DialInProc(srv))
	t.Cleanup(c.Close)
	return c
}

func TestClientReads(t *testing.T) {
	fe := &fakeEth{}
	c := newTestClient(t, fe)
	ctx := context.Background()

	id, err := c.GetChainID(ctx)
	if err != nil || id.Uint64() != 56 {
		t.Fatalf("chain id: got %v, %v", id, err)
	}
	latest, err := c.LatestBlockNumber(ctx)
	if err != nil || latest != 1234 {
		t.Fatalf("latest: got %d, %v", latest, err)
	}

	for i := 0; i < 2; i++ {
		ts, err := c.BlockTimestamp(ctx, 10)
		if err != nil {
			t.Fatalf("block timestamp: %v", err)
		}
		if ts != 1_700_000_010 {
			t.Fatalf("timestamp: got %d", ts)
		}
	}
	if fe.headerCalls != 1 {
		t.Fatalf("timestamp not cached: %d header calls", fe.headerCalls)
	}
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("got attempts=%d err=%v", attempts, err)
	}

	boom := errors.New("boom")
	attempts = 0
	err = WithRetry(context.Background(), 1, time.Millisecond, func(context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) || attempts != 2 {
		t.Fatalf("exhausted: attempts=%d err=%v", attempts, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithRetry(ctx, 5, time.Hour, func(context.Context) error { return boom })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled: got %v", err)
	}
}
