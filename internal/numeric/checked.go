// Package numeric provides overflow-checked 256-bit integer helpers used by
// the pair engine. None of the helpers wrap or panic.
package numeric

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow  = errors.New("arithmetic overflow")
	ErrUnderflow = errors.New("arithmetic underflow")
	ErrDivByZero = errors.New("division by zero")
)

// MaxUint128 is the largest value a reserve may hold.
var MaxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// ArithmeticError carries the failing operation and its operands.
type ArithmeticError struct {
	Op   string
	Kind error
	X    string
	Y    string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s: %v (x=%s, y=%s)", e.Op, e.Kind, e.X, e.Y)
}

func (e *ArithmeticError) Unwrap() error {
	return e.Kind
}

func arithErr(op string, kind error, x, y *uint256.Int) error {
	return &ArithmeticError{Op: op, Kind: kind, X: String(x), Y: String(y)}
}

// Add returns x+y or an overflow error.
func Add(op string, x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, arithErr(op, ErrOverflow, x, y)
	}
	return z, nil
}

// Sub returns x-y or an underflow error.
func Sub(op string, x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, arithErr(op, ErrUnderflow, x, y)
	}
	return z, nil
}

// Mul returns x*y or an overflow error.
func Mul(op string, x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, arithErr(op, ErrOverflow, x, y)
	}
	return z, nil
}

// Div returns floor(x/y) or a division-by-zero error.
func Div(op string, x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, arithErr(op, ErrDivByZero, x, y)
	}
	return new(uint256.Int).Div(x, y), nil
}

// MulDiv returns floor(x*y/d), failing if the product overflows 256 bits.
func MulDiv(op string, x, y, d *uint256.Int) (*uint256.Int, error) {
	p, err := Mul(op, x, y)
	if err != nil {
		return nil, err
	}
	return Div(op, p, d)
}

// Min returns a copy of the smaller operand.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x.Clone()
	}
	return y.Clone()
}

// ProductLess reports whether a*b < c*d. The products are compared at
// 512-bit width so operands up to 256 bits never overflow.
func ProductLess(a, b, c, d *uint256.Int) bool {
	left := new(big.Int).Mul(a.ToBig(), b.ToBig())
	right := new(big.Int).Mul(c.ToBig(), d.ToBig())
	return left.Cmp(right) < 0
}

// String renders x in base 10; nil renders as "0".
func String(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.ToBig().String()
}

// Parse reads a base-10 unsigned integer that fits in 256 bits.
func Parse(value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	b, ok := new(big.Int).SetString(value, 10)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("invalid uint: %s", value)
	}
	z, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("uint exceeds 256 bits: %s", value)
	}
	return z, nil
}
