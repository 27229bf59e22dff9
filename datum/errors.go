package datum

import "errors"

var (
	// ErrWrongKind indicates a value was accessed as the wrong variant.
	ErrWrongKind = errors.New("datum: wrong value kind")

	// ErrInvalidCBOR indicates the CBOR bytes do not encode a plutus data value.
	ErrInvalidCBOR = errors.New("datum: invalid CBOR data")

	// ErrInvalidJSON indicates the indexer JSON does not encode a plutus data value.
	ErrInvalidJSON = errors.New("datum: invalid JSON data")

	// ErrConstructorRange indicates a constructor alternative outside the
	// encodable tag range.
	ErrConstructorRange = errors.New("datum: constructor alternative out of range")
)
