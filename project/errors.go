package project

import "errors"

var (
	// ErrInvalidMetadata indicates a unit's metadata is missing required
	// display fields.
	ErrInvalidMetadata = errors.New("project: invalid metadata")

	// ErrProjectNotFound indicates no configuration exists for the
	// requested network/protocol pair.
	ErrProjectNotFound = errors.New("project: project not found")

	// ErrProviderUnavailable indicates the configuration source could not
	// be read.
	ErrProviderUnavailable = errors.New("project: provider unavailable")
)
