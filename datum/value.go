// Package datum models plutus-style data values: the constructor/int/bytes
// tree carried by oracle datums and redeemers. It provides a CBOR codec for
// transaction construction and a normalizing decoder for the heterogeneous
// JSON shapes returned by ledger indexers.
package datum

import "fmt"

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindConstr is a tagged constructor with ordered fields.
	KindConstr Kind = iota
	// KindInt is a signed integer.
	KindInt
	// KindBytes is a raw byte string.
	KindBytes
	// KindText is a UTF-8 text string.
	KindText
	// KindList is an ordered list of values.
	KindList
)

// Value is one node of a plutus-style data tree. Values are built by the
// constructor functions below and never mutated after construction.
type Value struct {
	kind   Kind
	constr uint64
	fields []*Value
	num    int64
	bytes  []byte
	text   string
}

// NewConstr creates a constructor value with the given alternative index
// and ordered fields.
func NewConstr(alternative uint64, fields ...*Value) *Value {
	return &Value{kind: KindConstr, constr: alternative, fields: fields}
}

// NewInt creates an integer value.
func NewInt(n int64) *Value {
	return &Value{kind: KindInt, num: n}
}

// NewUint creates an integer value from an unsigned quantity.
// Quantities beyond the int64 range do not occur in this protocol.
func NewUint(n uint64) *Value {
	return &Value{kind: KindInt, num: int64(n)}
}

// NewBytes creates a byte-string value. The slice is copied.
func NewBytes(b []byte) *Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Value{kind: KindBytes, bytes: cp}
}

// NewText creates a text value.
func NewText(s string) *Value {
	return &Value{kind: KindText, text: s}
}

// NewList creates a list value.
func NewList(items ...*Value) *Value {
	return &Value{kind: KindList, fields: items}
}

// NewBool creates the canonical boolean encoding: constructor 1 for true,
// constructor 0 for false, no fields.
func NewBool(b bool) *Value {
	if b {
		return NewConstr(1)
	}
	return NewConstr(0)
}

// Kind returns the variant of the value.
func (v *Value) Kind() Kind { return v.kind }

// Constructor returns the alternative index of a constructor value.
func (v *Value) Constructor() uint64 { return v.constr }

// Fields returns the ordered fields of a constructor or list value.
func (v *Value) Fields() []*Value { return v.fields }

// Field returns the i-th field of a constructor value, or an error if the
// value is not a constructor or the index is out of range.
func (v *Value) Field(i int) (*Value, error) {
	if v.kind != KindConstr {
		return nil, fmt.Errorf("%w: field access on %v", ErrWrongKind, v.kind)
	}
	if i < 0 || i >= len(v.fields) {
		return nil, fmt.Errorf("%w: field %d of %d", ErrWrongKind, i, len(v.fields))
	}
	return v.fields[i], nil
}

// Int returns the integer payload.
func (v *Value) Int() (int64, error) {
	if v.kind != KindInt {
		return 0, fmt.Errorf("%w: expected int, got %v", ErrWrongKind, v.kind)
	}
	return v.num, nil
}

// Uint returns the integer payload as an unsigned quantity.
func (v *Value) Uint() (uint64, error) {
	n, err := v.Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative value %d", ErrWrongKind, n)
	}
	return uint64(n), nil
}

// Bytes returns a copy of the byte-string payload.
func (v *Value) Bytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, fmt.Errorf("%w: expected bytes, got %v", ErrWrongKind, v.kind)
	}
	cp := make([]byte, len(v.bytes))
	copy(cp, v.bytes)
	return cp, nil
}

// Text returns the text payload.
func (v *Value) Text() (string, error) {
	if v.kind != KindText {
		return "", fmt.Errorf("%w: expected text, got %v", ErrWrongKind, v.kind)
	}
	return v.text, nil
}

// Bool interprets the value as a boolean. The canonical encoding is
// constructor 0/1, but indexer decoders also surface booleans as bare
// integers 0/1; both are accepted here so that callers never branch on the
// raw decoded shape.
func (v *Value) Bool() (bool, error) {
	switch v.kind {
	case KindConstr:
		if len(v.fields) != 0 {
			return false, fmt.Errorf("%w: boolean constructor with %d fields", ErrWrongKind, len(v.fields))
		}
		switch v.constr {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("%w: boolean constructor %d", ErrWrongKind, v.constr)
	case KindInt:
		switch v.num {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("%w: boolean integer %d", ErrWrongKind, v.num)
	}
	return false, fmt.Errorf("%w: expected bool, got %v", ErrWrongKind, v.kind)
}

// String renders the value for error messages and logs.
func (k Kind) String() string {
	switch k {
	case KindConstr:
		return "constructor"
	case KindInt:
		return "int"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindList:
		return "list"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}
