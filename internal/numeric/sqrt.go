package numeric

import "github.com/holiman/uint256"

// Sqrt returns floor(sqrt(y)) using the Babylonian method.
func Sqrt(y *uint256.Int) *uint256.Int {
	if y.IsZero() {
		return new(uint256.Int)
	}
	if y.LtUint64(4) {
		return uint256.NewInt(1)
	}

	z := y.Clone()
	// x = y/2 + 1 cannot overflow because y >= 4.
	x := new(uint256.Int).Rsh(y, 1)
	x.AddUint64(x, 1)
	for x.Lt(z) {
		z.Set(x)
		// x = (y/x + x) / 2; y/x + x <= y/2 + 1 + 2 here, so no overflow.
		q := new(uint256.Int).Div(y, x)
		x.Add(q, x)
		x.Rsh(x, 1)
	}
	return z
}
