package datum

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// jsonNode mirrors the union of datum JSON shapes observed across indexer
// responses. Older decoders emit booleans as bare 0/1 integers or JSON
// booleans, integers as numbers or decimal strings, and wrap every node in
// a single-key object; DecodeJSON folds all of them into the canonical
// Value form so nothing downstream ever branches on the raw shape.
type jsonNode struct {
	Constructor *uint64           `json:"constructor"`
	Fields      []json.RawMessage `json:"fields"`
	Int         *json.RawMessage  `json:"int"`
	Bytes       *string           `json:"bytes"`
	String      *string           `json:"string"`
	Bool        *bool             `json:"bool"`
	List        []json.RawMessage `json:"list"`
}

// DecodeJSON normalizes an indexer datum JSON document into a Value.
func DecodeJSON(data []byte) (*Value, error) {
	return decodeJSONNode(json.RawMessage(data))
}

func decodeJSONNode(raw json.RawMessage) (*Value, error) {
	// Bare scalar forms first: numbers and booleans from legacy decoders.
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return NewBool(b), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return intValue(string(n))
	}

	var node jsonNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	switch {
	case node.Constructor != nil:
		fields := make([]*Value, len(node.Fields))
		for i, f := range node.Fields {
			dec, err := decodeJSONNode(f)
			if err != nil {
				return nil, err
			}
			fields[i] = dec
		}
		return NewConstr(*node.Constructor, fields...), nil

	case node.Int != nil:
		// Either a JSON number or a decimal string.
		var num json.Number
		if err := json.Unmarshal(*node.Int, &num); err == nil {
			return intValue(string(num))
		}
		var s string
		if err := json.Unmarshal(*node.Int, &s); err == nil {
			return intValue(s)
		}
		return nil, fmt.Errorf("%w: unreadable int %s", ErrInvalidJSON, string(*node.Int))

	case node.Bytes != nil:
		b, err := hex.DecodeString(*node.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: bytes hex: %w", ErrInvalidJSON, err)
		}
		return NewBytes(b), nil

	case node.String != nil:
		return NewText(*node.String), nil

	case node.Bool != nil:
		return NewBool(*node.Bool), nil

	case node.List != nil:
		items := make([]*Value, len(node.List))
		for i, it := range node.List {
			dec, err := decodeJSONNode(it)
			if err != nil {
				return nil, err
			}
			items[i] = dec
		}
		return NewList(items...), nil
	}

	return nil, fmt.Errorf("%w: unrecognized node %s", ErrInvalidJSON, string(raw))
}

func intValue(s string) (*Value, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: integer %q: %w", ErrInvalidJSON, s, err)
	}
	return NewInt(v), nil
}
