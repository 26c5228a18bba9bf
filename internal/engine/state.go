package engine

import (
	"time"

	"github.com/soromarket/marketd/internal/domain"
)

// Settle flips a live market to resolved with the given outcome. Resolution
// is terminal: a second settle fails with ErrAlreadySettled and nothing ever
// transitions a resolved market back to live.
func Settle(m *domain.Market, outcome int, now time.Time) error {
	if !m.Live() {
		return domain.ErrAlreadySettled
	}
	if !m.ValidOutcome(outcome) {
		return domain.ErrInvalidOutcome
	}
	m.Status = domain.MarketStatusResolved
	m.Outcome = outcome
	m.ResolvedAt = &now
	m.UpdatedAt = now
	return nil
}

// Archive moves a resolved market to archived. Live markets cannot be
// archived; resolution must happen first so outstanding claims stay
// computable.
func Archive(m *domain.Market, now time.Time) error {
	switch m.Status {
	case domain.MarketStatusResolved:
		m.Status = domain.MarketStatusArchived
		m.UpdatedAt = now
		return nil
	case domain.MarketStatusLive:
		return domain.ErrMarketNotSettled
	default:
		return domain.ErrAlreadyArchived
	}
}
