package bootstrap

import "errors"

var (
	// ErrInvalidParams indicates the genesis parameters are out of range.
	ErrInvalidParams = errors.New("bootstrap: invalid genesis parameters")

	// ErrInvalidReference indicates a malformed identity reference.
	ErrInvalidReference = errors.New("bootstrap: invalid identity reference")

	// ErrNoFunding indicates the funding address holds no output suitable
	// for genesis.
	ErrNoFunding = errors.New("bootstrap: no suitable funding output")

	// ErrProtocolExists indicates the identity store already holds an
	// entry for the derived policy identity.
	ErrProtocolExists = errors.New("bootstrap: protocol already registered")

	// ErrProtocolNotFound indicates the identity store has no entry for
	// the requested policy identity.
	ErrProtocolNotFound = errors.New("bootstrap: protocol not registered")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("bootstrap: required parameter is nil")
)
