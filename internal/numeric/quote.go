package numeric

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientAmount    = errors.New("insufficient amount")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// fee: 0.3% => multiplier 997/1000
var (
	feeMul = uint256.NewInt(997)
	feeDen = uint256.NewInt(1000)
)

// Quote returns the amount of the other asset equal in value to amountA at
// the current reserve ratio.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	return MulDiv("quote", amountA, reserveB, reserveA)
}

// AmountOut returns the largest output a swap of amountIn can withdraw
// while keeping the fee-adjusted product of reserves from decreasing.
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	inWithFee, err := Mul("amount out: in*997", amountIn, feeMul)
	if err != nil {
		return nil, err
	}
	numerator, err := Mul("amount out: numerator", inWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	scaled, err := Mul("amount out: reserve*1000", reserveIn, feeDen)
	if err != nil {
		return nil, err
	}
	denominator, err := Add("amount out: denominator", scaled, inWithFee)
	if err != nil {
		return nil, err
	}
	return Div("amount out", numerator, denominator)
}

// AmountIn returns the smallest input needed to withdraw amountOut.
func AmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	numerator, err := Mul("amount in: reserve*out", reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	numerator, err = Mul("amount in: numerator", numerator, feeDen)
	if err != nil {
		return nil, err
	}
	remaining := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator, err := Mul("amount in: denominator", remaining, feeMul)
	if err != nil {
		return nil, err
	}
	in, err := Div("amount in", numerator, denominator)
	if err != nil {
		return nil, err
	}
	return Add("amount in: round up", in, uint256.NewInt(1))
}
