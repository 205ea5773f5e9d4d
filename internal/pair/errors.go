package pair

import (
	"errors"
	"fmt"
)

// Invariant violations. The caller may retry with different amounts.
var (
	ErrKInvariant                  = errors.New("k invariant violated")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrInsufficientOutputAmount    = errors.New("insufficient output amount")
	ErrInsufficientInputAmount     = errors.New("insufficient input amount")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
)

// Access and state errors. Fatal to the call, not to the pool.
var (
	ErrReentrant          = errors.New("reentrant call")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrUnauthorized       = errors.New("caller is not the deployer")
	ErrIdenticalTokens    = errors.New("identical tokens")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrOverflow           = errors.New("reserve overflow")
	ErrPaused             = errors.New("pool is paused")
)

// Share ledger errors.
var (
	ErrInsufficientShares    = errors.New("insufficient share balance")
	ErrInsufficientAllowance = errors.New("insufficient share allowance")
	ErrBurnAccount           = errors.New("burn account cannot spend shares")
)

// OpError is returned by every pool entry point. Err is the first failure
// met by the operation, either one of the sentinels above, a
// *numeric.ArithmeticError or a wrapped collaborator error.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
