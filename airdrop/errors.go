package airdrop

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil or empty.
	ErrNilParam = errors.New("airdrop: required parameter missing")

	// ErrInvalidRate indicates a zero per-unit rate.
	ErrInvalidRate = errors.New("airdrop: rate per unit must be positive")

	// ErrInsufficientFunds indicates the funding wallet cannot cover every
	// payout plus fees. Raised before any batch is submitted so a run
	// never strands mid-distribution for lack of funds.
	ErrInsufficientFunds = errors.New("airdrop: funding wallet cannot cover the distribution")

	// ErrNoHolders indicates the policy has no eligible holders.
	ErrNoHolders = errors.New("airdrop: no eligible holders")

	// ErrLogCorrupt indicates a distribution log that cannot be parsed.
	ErrLogCorrupt = errors.New("airdrop: distribution log corrupt")

	// ErrLogMismatch indicates a resumed log belongs to a different
	// protocol or network than the run. Its paid-set says nothing about
	// this run's holders, so resuming from it would be meaningless.
	ErrLogMismatch = errors.New("airdrop: distribution log does not match this run")

	// ErrAmountOverflow indicates a payout computation exceeds the
	// representable range.
	ErrAmountOverflow = errors.New("airdrop: payout amount overflows")
)
