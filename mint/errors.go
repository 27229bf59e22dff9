package mint

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil or empty.
	ErrNilParam = errors.New("mint: required parameter missing")

	// ErrStateNotFound indicates no live UTXO holds the protocol's
	// authenticity token. The protocol is either not bootstrapped on this
	// network or its policy identity is wrong.
	ErrStateNotFound = errors.New("mint: oracle state not found")

	// ErrStateCorrupt indicates the state UTXO exists but its datum does
	// not decode to a valid record.
	ErrStateCorrupt = errors.New("mint: oracle state corrupt")

	// ErrBatchTooLarge indicates the requested issuance quantity exceeds
	// the per-transaction ceiling.
	ErrBatchTooLarge = errors.New("mint: batch exceeds per-transaction ceiling")
)
