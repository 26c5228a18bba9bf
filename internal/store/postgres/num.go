package postgres

import (
	"fmt"
	"math/big"

	"github.com/soromarket/marketd/internal/fixedpoint"
)

// Monetary values cross the wire as decimal strings: inserts cast the
// parameter with ::numeric, selects cast the column with ::text. pgx never
// sees a float and the 128-bit range survives intact.

func numStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func numStrs(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = numStr(v)
	}
	return out
}

func parseNum(s string) (*big.Int, error) {
	v, err := fixedpoint.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse numeric %q: %w", s, err)
	}
	return v, nil
}

func parseNums(ss []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(ss))
	for i, s := range ss {
		v, err := parseNum(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
