package txbuild

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil or empty.
	ErrNilParam = errors.New("txbuild: required parameter missing")

	// ErrInsufficientFunds indicates the selected inputs cannot cover the
	// outputs plus the estimated fee.
	ErrInsufficientFunds = errors.New("txbuild: insufficient funds")

	// ErrUnbalanced indicates asset quantities do not balance across
	// inputs, mints, and outputs.
	ErrUnbalanced = errors.New("txbuild: unbalanced assets")

	// ErrBelowMinValue indicates an output carries less than the
	// protocol's minimum lovelace for its size.
	ErrBelowMinValue = errors.New("txbuild: output below minimum value")

	// ErrTxTooLarge indicates the built transaction exceeds the protocol's
	// size ceiling. For bulk issuance this is the practical bound on the
	// batch size.
	ErrTxTooLarge = errors.New("txbuild: transaction exceeds size limit")

	// ErrEncode indicates transaction body serialization failed.
	ErrEncode = errors.New("txbuild: body encoding failed")
)
