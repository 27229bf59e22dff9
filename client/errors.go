package client

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("client: required parameter missing")

	// ErrSigner indicates the external signer failed or returned an
	// unusable payload.
	ErrSigner = errors.New("client: signer failed")

	// ErrRetriesExhausted indicates every submission attempt failed on a
	// transient or contention error.
	ErrRetriesExhausted = errors.New("client: submission attempts exhausted")

	// ErrResourceTimeout indicates a required ledger resource did not
	// appear within the wait budget. Unlike settlement, this is hard:
	// without the resource no further work is possible.
	ErrResourceTimeout = errors.New("client: resource did not appear in time")
)
