package domain

import "errors"

// Setup and lookup errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadySetup = errors.New("market already setup")
)

// Authorization errors.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrAuthDenied   = errors.New("authorization denied")
)

// Lifecycle state errors.
var (
	ErrMarketNotLive    = errors.New("market not live")
	ErrAlreadySettled   = errors.New("market already settled")
	ErrAlreadyClaimed   = errors.New("winnings already claimed")
	ErrMarketNotSettled = errors.New("market not settled")
	ErrAlreadyArchived  = errors.New("market already archived")
)

// Trade validation errors.
var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidOutcome     = errors.New("invalid outcome")
	ErrInvalidParams      = errors.New("invalid market parameters")
	ErrReserveWouldBeZero = errors.New("reserve would become zero")
	ErrZeroSharesReceived = errors.New("zero shares received")
	ErrZeroPayout         = errors.New("zero payout")
	ErrSellUnsupported    = errors.New("selling not supported for this market")
)

// Insufficient-resource errors. The caller may retry with a smaller amount.
var (
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientPool   = errors.New("insufficient pool balance")
)

// Infrastructure errors.
var (
	ErrLockHeld = errors.New("lock already held")
)
