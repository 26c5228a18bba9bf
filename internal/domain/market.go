package domain

import (
	"math/big"
	"time"
)

// MarketStatus represents the lifecycle state of a market. A market is
// created live, resolves exactly once, and may then be archived. No
// transition ever leaves a resolved state back to live.
type MarketStatus string

const (
	MarketStatusLive     MarketStatus = "live"
	MarketStatusResolved MarketStatus = "resolved"
	MarketStatusArchived MarketStatus = "archived"
)

// CurveType selects the pricing strategy fixed at market creation.
type CurveType string

const (
	// CurveCPMM prices binary trades against constant-product reserves.
	CurveCPMM CurveType = "cpmm"
	// CurveWeighted blends observed probability with a fixed liquidity
	// parameter to price binary shares.
	CurveWeighted CurveType = "weighted"
	// CurveParimutuel pools stakes per outcome and pays winners the losing
	// pools pro rata. Supports two or three outcomes; no selling.
	CurveParimutuel CurveType = "parimutuel"
)

// OutcomeUndecided marks a market whose result is not yet reported.
const OutcomeUndecided = -1

// Market is a single prediction market instance. Identity, curve, asset and
// oracle are immutable after setup; Prices and LiquidityParam may be updated
// by the admin while the market is live, Status and Outcome only through the
// state machine.
type Market struct {
	ID           string
	Description  string
	Curve        CurveType
	OutcomeCount int
	Outcomes     []string // display labels, e.g. ["Yes","No"] or ["Home","Draw","Away"]

	// Curve parameters. LiquidityParam is set for weighted markets
	// (0..Scale). Prices holds fixed odds per outcome for parimutuel
	// markets. InitialReserve seeds both CPMM reserves.
	LiquidityParam *big.Int
	Prices         []*big.Int
	InitialReserve *big.Int

	Asset  string // asset identifier on the external ledger
	Oracle string // account allowed to report the outcome
	Admin  string // account allowed to update parameters and archive

	Status  MarketStatus
	Outcome int // winning outcome index, OutcomeUndecided while live

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// Live reports whether the market still accepts trades.
func (m Market) Live() bool { return m.Status == MarketStatusLive }

// Resolved reports whether an outcome has been reported. Archived markets
// remain resolved.
func (m Market) Resolved() bool {
	return m.Status == MarketStatusResolved || m.Status == MarketStatusArchived
}

// ValidOutcome reports whether idx names one of the market's outcomes.
func (m Market) ValidOutcome(idx int) bool {
	return idx >= 0 && idx < m.OutcomeCount
}
