package memory

import "fmt"

// Key construction for every logical entity. Nothing outside this file
// builds keys, which keeps the closed key set auditable in one place.

func marketKey(id string) string               { return "market:" + id }
func poolKey(marketID string) string           { return "pool:" + marketID }
func positionKey(marketID, acct string) string { return "position:" + marketID + ":" + acct }
func positionPrefix(marketID string) string    { return "position:" + marketID + ":" }
func tradeKey(marketID string, seq uint64) string {
	return fmt.Sprintf("trade:%s:%016d", marketID, seq)
}
func tradePrefix(marketID string) string { return "trade:" + marketID + ":" }
func auditKey(seq uint64) string         { return fmt.Sprintf("audit:%016d", seq) }

const auditPrefix = "audit:"
