package datum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCBOR_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value *Value
	}{
		{"int", NewInt(42)},
		{"negative int", NewInt(-7)},
		{"bytes", NewBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})},
		{"text", NewText("HarvestOracle")},
		{"empty constructor", NewConstr(0)},
		{"bool true", NewBool(true)},
		{"bool false", NewBool(false)},
		{"large alternative", NewConstr(9, NewInt(1))},
		{"nested", NewConstr(0,
			NewInt(15),
			NewUint(10_000_000),
			NewBytes(make([]byte, 28)),
			NewBool(true),
			NewBool(false),
			NewList(NewInt(3), NewInt(100)),
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeCBOR(tt.value)
			require.NoError(t, err)

			decoded, err := DecodeCBOR(data)
			require.NoError(t, err)
			assertValueEqual(t, tt.value, decoded)
		})
	}
}

func TestCBOR_ConstructorTags(t *testing.T) {
	// Alternative 0 encodes as tag 121, alternative 7 jumps to tag 1280.
	data, err := EncodeCBOR(NewConstr(0))
	require.NoError(t, err)
	assert.Equal(t, byte(0xD8), data[0]) // 1-byte tag follows
	assert.Equal(t, byte(121), data[1])

	data, err = EncodeCBOR(NewConstr(7))
	require.NoError(t, err)
	assert.Equal(t, byte(0xD9), data[0]) // 2-byte tag follows
	assert.Equal(t, byte(0x05), data[1])
	assert.Equal(t, byte(0x00), data[2]) // 0x0500 = 1280
}

func TestCBOR_AlternativeOutOfRange(t *testing.T) {
	_, err := EncodeCBOR(NewConstr(128))
	assert.ErrorIs(t, err, ErrConstructorRange)
}

func TestDecodeJSON_Shapes(t *testing.T) {
	tests := []struct {
		name string
		json string
		want *Value
	}{
		{"constructor", `{"constructor":0,"fields":[{"int":5}]}`, NewConstr(0, NewInt(5))},
		{"int number", `{"int":42}`, NewInt(42)},
		{"int string", `{"int":"42"}`, NewInt(42)},
		{"bare number", `42`, NewInt(42)},
		{"bytes", `{"bytes":"deadbeef"}`, NewBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})},
		{"string", `{"string":"TOKEN"}`, NewText("TOKEN")},
		{"bare bool", `true`, NewBool(true)},
		{"wrapped bool", `{"bool":false}`, NewBool(false)},
		{"list", `{"list":[{"int":1},{"int":2}]}`, NewList(NewInt(1), NewInt(2))},
		{"bool as constructor", `{"constructor":1,"fields":[]}`, NewBool(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON([]byte(tt.json))
			require.NoError(t, err)
			assertValueEqual(t, tt.want, got)
		})
	}
}

func TestDecodeJSON_Invalid(t *testing.T) {
	for _, bad := range []string{``, `{}`, `{"bytes":"zz"}`, `{"int":"abc"}`, `"loose"`} {
		_, err := DecodeJSON([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidJSON, "input %q", bad)
	}
}

func TestBool_NormalizesShapes(t *testing.T) {
	// All decoder shapes for a boolean collapse to one answer.
	for _, v := range []*Value{NewConstr(1), NewInt(1)} {
		b, err := v.Bool()
		require.NoError(t, err)
		assert.True(t, b)
	}
	for _, v := range []*Value{NewConstr(0), NewInt(0)} {
		b, err := v.Bool()
		require.NoError(t, err)
		assert.False(t, b)
	}

	_, err := NewInt(2).Bool()
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = NewConstr(2).Bool()
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestUint_RejectsNegative(t *testing.T) {
	_, err := NewInt(-1).Uint()
	assert.ErrorIs(t, err, ErrWrongKind)
}

// assertValueEqual compares two values structurally.
func assertValueEqual(t *testing.T, want, got *Value) {
	t.Helper()
	require.Equal(t, want.Kind(), got.Kind())
	switch want.Kind() {
	case KindInt:
		wi, _ := want.Int()
		gi, _ := got.Int()
		assert.Equal(t, wi, gi)
	case KindBytes:
		wb, _ := want.Bytes()
		gb, _ := got.Bytes()
		assert.Equal(t, wb, gb)
	case KindText:
		wt, _ := want.Text()
		gt, _ := got.Text()
		assert.Equal(t, wt, gt)
	case KindConstr:
		assert.Equal(t, want.Constructor(), got.Constructor())
		require.Len(t, got.Fields(), len(want.Fields()))
		for i := range want.Fields() {
			assertValueEqual(t, want.Fields()[i], got.Fields()[i])
		}
	case KindList:
		require.Len(t, got.Fields(), len(want.Fields()))
		for i := range want.Fields() {
			assertValueEqual(t, want.Fields()[i], got.Fields()[i])
		}
	}
}
