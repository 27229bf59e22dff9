package datum

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Plutus data encodes constructor alternatives as CBOR tags: alternatives
// 0..6 map to tags 121..127, alternatives 7..127 map to tags 1280..1400.
const (
	smallConstrBase = 121
	smallConstrMax  = 6
	largeConstrBase = 1280
	largeConstrMax  = 127
)

// constrTag maps a constructor alternative to its CBOR tag number.
func constrTag(alternative uint64) (uint64, error) {
	switch {
	case alternative <= smallConstrMax:
		return smallConstrBase + alternative, nil
	case alternative <= largeConstrMax:
		return largeConstrBase + alternative - smallConstrMax - 1, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrConstructorRange, alternative)
}

// tagConstr maps a CBOR tag number back to a constructor alternative.
func tagConstr(tag uint64) (uint64, bool) {
	switch {
	case tag >= smallConstrBase && tag <= smallConstrBase+smallConstrMax:
		return tag - smallConstrBase, true
	case tag >= largeConstrBase && tag <= largeConstrBase+largeConstrMax-smallConstrMax-1:
		return tag - largeConstrBase + smallConstrMax + 1, true
	}
	return 0, false
}

// EncodeCBOR serializes a value to plutus-data CBOR.
func EncodeCBOR(v *Value) ([]byte, error) {
	raw, err := toCBOR(v)
	if err != nil {
		return nil, err
	}
	data, err := cbor.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCBOR, err)
	}
	return data, nil
}

// DecodeCBOR deserializes plutus-data CBOR into a value.
func DecodeCBOR(data []byte) (*Value, error) {
	var raw interface{}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCBOR, err)
	}
	return fromCBOR(raw)
}

func toCBOR(v *Value) (interface{}, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidCBOR)
	}
	switch v.kind {
	case KindInt:
		return v.num, nil
	case KindBytes:
		return v.bytes, nil
	case KindText:
		return v.text, nil
	case KindList:
		items := make([]interface{}, len(v.fields))
		for i, f := range v.fields {
			enc, err := toCBOR(f)
			if err != nil {
				return nil, err
			}
			items[i] = enc
		}
		return items, nil
	case KindConstr:
		tag, err := constrTag(v.constr)
		if err != nil {
			return nil, err
		}
		fields := make([]interface{}, len(v.fields))
		for i, f := range v.fields {
			enc, err := toCBOR(f)
			if err != nil {
				return nil, err
			}
			fields[i] = enc
		}
		return cbor.Tag{Number: tag, Content: fields}, nil
	}
	return nil, fmt.Errorf("%w: kind %v", ErrInvalidCBOR, v.kind)
}

func fromCBOR(raw interface{}) (*Value, error) {
	switch x := raw.(type) {
	case uint64:
		if x > maxInt64 {
			return nil, fmt.Errorf("%w: integer overflow %d", ErrInvalidCBOR, x)
		}
		return NewInt(int64(x)), nil
	case int64:
		return NewInt(x), nil
	case []byte:
		return NewBytes(x), nil
	case string:
		return NewText(x), nil
	case []interface{}:
		items := make([]*Value, len(x))
		for i, it := range x {
			dec, err := fromCBOR(it)
			if err != nil {
				return nil, err
			}
			items[i] = dec
		}
		return NewList(items...), nil
	case cbor.Tag:
		alt, ok := tagConstr(x.Number)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected tag %d", ErrInvalidCBOR, x.Number)
		}
		content, ok := x.Content.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: constructor content is %T", ErrInvalidCBOR, x.Content)
		}
		fields := make([]*Value, len(content))
		for i, it := range content {
			dec, err := fromCBOR(it)
			if err != nil {
				return nil, err
			}
			fields[i] = dec
		}
		return NewConstr(alt, fields...), nil
	}
	return nil, fmt.Errorf("%w: unexpected CBOR type %T", ErrInvalidCBOR, raw)
}

const maxInt64 = uint64(1)<<63 - 1
