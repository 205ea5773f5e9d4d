package numeric

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestAmountOut(t *testing.T) {
	// reserves 1000000 : 1000000, amountIn 1000
	out, err := AmountOut(uint256.NewInt(1_000), uint256.NewInt(1_000_000), uint256.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("amount out: %v", err)
	}
	// 997000*1000000 / (1000000000 + 997000) = 996
	if out.Uint64() != 996 {
		t.Fatalf("unexpected: got %d want 996", out.Uint64())
	}

	if _, err := AmountOut(new(uint256.Int), uint256.NewInt(1), uint256.NewInt(1)); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected insufficient amount, got %v", err)
	}
	if _, err := AmountOut(uint256.NewInt(1), new(uint256.Int), uint256.NewInt(1)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestAmountInInvertsAmountOut(t *testing.T) {
	rIn := uint256.NewInt(5_000_000)
	rOut := uint256.NewInt(10_000_000)
	want := uint256.NewInt(12_345)

	in, err := AmountIn(want, rIn, rOut)
	if err != nil {
		t.Fatalf("amount in: %v", err)
	}
	out, err := AmountOut(in, rIn, rOut)
	if err != nil {
		t.Fatalf("amount out: %v", err)
	}
	if out.Lt(want) {
		t.Fatalf("input %d yields %d, want at least %d", in.Uint64(), out.Uint64(), want.Uint64())
	}

	if _, err := AmountIn(rOut, rIn, rOut); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestQuote(t *testing.T) {
	got, err := Quote(uint256.NewInt(100), uint256.NewInt(1000), uint256.NewInt(2000))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got.Uint64() != 200 {
		t.Fatalf("quote mismatch: %d", got.Uint64())
	}
}
