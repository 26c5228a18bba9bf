// Package fixedpoint provides overflow-checked signed 128-bit integer
// arithmetic for all monetary and probability quantities in the system.
// Values are big.Int instances constrained to the i128 range; every
// operation that leaves the range fails with ErrOverflow instead of
// wrapping. Probabilities and prices are integers scaled by Scale, so Scale
// means 100%. Division truncates toward zero; the settlement and invariant
// math depends on that rounding direction.
package fixedpoint

import (
	"errors"
	"math/big"
)

// Scale is the fixed-point unit. A price of Scale is one whole asset unit
// per share; a probability of Scale is certainty.
const Scale = 1_000_000

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	// ScaleInt is Scale as a big.Int for callers composing larger formulas.
	ScaleInt = big.NewInt(Scale)
)

// InRange reports whether v fits the signed 128-bit range.
func InRange(v *big.Int) bool {
	return v.Cmp(minInt128) >= 0 && v.Cmp(maxInt128) <= 0
}

func checked(v *big.Int) (*big.Int, error) {
	if !InRange(v) {
		return nil, ErrOverflow
	}
	return v, nil
}

// New returns v as a range-checked value.
func New(v int64) *big.Int { return big.NewInt(v) }

// Parse converts a decimal string into a range-checked value.
func Parse(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("fixedpoint: invalid integer " + s)
	}
	return checked(v)
}

// Add returns a+b or ErrOverflow.
func Add(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Add(a, b))
}

// Sub returns a-b or ErrOverflow.
func Sub(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Sub(a, b))
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Mul(a, b))
}

// Div returns a/b truncated toward zero. It fails with ErrDivisionByZero
// when b is zero.
func Div(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	return new(big.Int).Quo(a, b), nil
}

// MulDiv returns a*b/c with the intermediate product checked against the
// 128-bit range, matching what a native i128 computation would do.
func MulDiv(a, b, c *big.Int) (*big.Int, error) {
	p, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return Div(p, c)
}

// Clone returns an independent copy of v.
func Clone(v *big.Int) *big.Int { return new(big.Int).Set(v) }
