package oracle

import "errors"

var (
	// ErrInvalidRecord indicates the record datum is malformed or violates
	// a structural invariant.
	ErrInvalidRecord = errors.New("oracle: invalid record")

	// ErrMintingDisabled indicates issuance was attempted while the minting
	// flag is off.
	ErrMintingDisabled = errors.New("oracle: minting is disabled")

	// ErrCapacityExceeded indicates the requested quantity would push the
	// index past the supply ceiling. Bulk requests fail whole; there is no
	// partial issuance.
	ErrCapacityExceeded = errors.New("oracle: max supply exceeded")

	// ErrPermissionDenied indicates a toggle or stop was attempted by a
	// signer other than the fee collector.
	ErrPermissionDenied = errors.New("oracle: signer is not the fee collector")

	// ErrInvalidQuantity indicates a bulk quantity outside the valid range.
	ErrInvalidQuantity = errors.New("oracle: invalid quantity")
)
