package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWithinRange(t *testing.T) {
	got, err := Add(New(40), New(2))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Int64())
}

func TestAddOverflow(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	_, err := Add(max, New(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSubUnderflow(t *testing.T) {
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	_, err := Sub(min, New(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMulOverflow(t *testing.T) {
	big64 := new(big.Int).Lsh(big.NewInt(1), 100)
	_, err := Mul(big64, big64)
	assert.ErrorIs(t, err, ErrOverflow)

	got, err := Mul(New(1000), New(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), got.Int64())
}

func TestDivByZero(t *testing.T) {
	_, err := Div(New(1), New(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestDivTruncatesTowardZero(t *testing.T) {
	got, err := Div(New(7), New(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Int64())

	got, err = Div(New(-7), New(2))
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got.Int64(), "negative division must truncate toward zero, not floor")
}

func TestMulDiv(t *testing.T) {
	// 100 * Scale / 3 truncates.
	got, err := MulDiv(New(100), ScaleInt, New(3))
	require.NoError(t, err)
	assert.Equal(t, int64(33_333_333), got.Int64())

	_, err = MulDiv(New(1), New(1), New(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestParse(t *testing.T) {
	v, err := Parse("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", v.String())

	_, err = Parse("not-a-number")
	assert.Error(t, err)

	// One past the i128 maximum.
	over := new(big.Int).Lsh(big.NewInt(1), 127)
	_, err = Parse(over.String())
	assert.ErrorIs(t, err, ErrOverflow)
}
