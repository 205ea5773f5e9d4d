package token

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	holderA = common.HexToAddress("0x0000000000000000000000000000000000000001")
	holderB = common.HexToAddress("0x0000000000000000000000000000000000000002")
	spender = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func balance(t *testing.T, l *Ledger, who common.Address) uint64 {
	t.Helper()
	v, err := l.BalanceOf(context.Background(), who)
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	return v.Uint64()
}

func TestTransferAndAllowance(t *testing.T) {
	ctx := context.Background()
	l := New(common.HexToAddress("0xaa"), "TK")
	if err := l.Mint(holderA, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := l.Transfer(ctx, holderA, holderB, uint256.NewInt(30)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, l, holderA); got != 70 {
		t.Fatalf("holder a: got %d want 70", got)
	}
	if err := l.Transfer(ctx, holderB, holderA, uint256.NewInt(31)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft: got %v", err)
	}

	if err := l.TransferFrom(ctx, spender, holderA, holderB, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("without allowance: got %v", err)
	}
	l.Approve(holderA, spender, uint256.NewInt(50))
	if err := l.TransferFrom(ctx, spender, holderA, holderB, uint256.NewInt(20)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := l.Allowance(holderA, spender).Uint64(); got != 30 {
		t.Fatalf("allowance: got %d want 30", got)
	}
	if got := l.TotalSupply().Uint64(); got != 100 {
		t.Fatalf("supply: got %d want 100", got)
	}
}

func TestRevertToSnapshot(t *testing.T) {
	ctx := context.Background()
	l := New(common.HexToAddress("0xaa"), "TK")
	_ = l.Mint(holderA, uint256.NewInt(100))

	outer := l.Snapshot()
	_ = l.Transfer(ctx, holderA, holderB, uint256.NewInt(10))
	inner := l.Snapshot()
	_ = l.Transfer(ctx, holderA, holderB, uint256.NewInt(20))
	_ = l.Mint(holderB, uint256.NewInt(5))

	l.RevertToSnapshot(inner)
	if got := balance(t, l, holderB); got != 10 {
		t.Fatalf("after inner revert: got %d want 10", got)
	}
	if got := l.TotalSupply().Uint64(); got != 100 {
		t.Fatalf("supply after inner revert: got %d want 100", got)
	}

	l.RevertToSnapshot(outer)
	if got := balance(t, l, holderA); got != 100 {
		t.Fatalf("after outer revert: got %d want 100", got)
	}
	if got := balance(t, l, holderB); got != 0 {
		t.Fatalf("holder b after outer revert: got %d want 0", got)
	}

	// Reverting twice is a no-op.
	l.RevertToSnapshot(outer)
	if got := balance(t, l, holderA); got != 100 {
		t.Fatalf("second revert: got %d want 100", got)
	}
}

func TestDiscardSnapshotKeepsWrites(t *testing.T) {
	ctx := context.Background()
	l := New(common.HexToAddress("0xaa"), "TK")
	_ = l.Mint(holderA, uint256.NewInt(100))

	id := l.Snapshot()
	_ = l.Transfer(ctx, holderA, holderB, uint256.NewInt(40))
	l.DiscardSnapshot(id)
	l.RevertToSnapshot(id)

	if got := balance(t, l, holderB); got != 40 {
		t.Fatalf("discarded snapshot reverted: got %d want 40", got)
	}
	if len(l.journal) != 0 {
		t.Fatalf("journal retained %d entries", len(l.journal))
	}
}

func TestHookFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	l := New(common.HexToAddress("0xaa"), "TK")
	_ = l.Mint(holderA, uint256.NewInt(100))

	boom := errors.New("boom")
	calls := 0
	l.SetHook(func(_ context.Context, from, to common.Address, amount *uint256.Int) error {
		calls++
		// The ledger is unlocked while the hook runs.
		if _, err := l.BalanceOf(ctx, from); err != nil {
			return err
		}
		return boom
	})

	id := l.Snapshot()
	err := l.Transfer(ctx, holderA, holderB, uint256.NewInt(1))
	if !errors.Is(err, boom) {
		t.Fatalf("got %v want boom", err)
	}
	if calls != 1 {
		t.Fatalf("hook calls: got %d want 1", calls)
	}
	l.RevertToSnapshot(id)
	if got := balance(t, l, holderA); got != 100 {
		t.Fatalf("after revert: got %d want 100", got)
	}
}
