package txbuild

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/apas-port/harvestflow-go/datum"
	"github.com/apas-port/harvestflow-go/ledger"
)

// Transaction body map keys.
const (
	bodyKeyInputs     = 0
	bodyKeyOutputs    = 1
	bodyKeyFee        = 2
	bodyKeyMetadata   = 7
	bodyKeyMint       = 9
	bodyKeyRedeemers  = 11
	bodyKeyCollateral = 13
)

// encodeBody serializes the balanced transaction body to CBOR. The layout
// is a fixed integer-keyed map so the hash is deterministic for identical
// content.
func encodeBody(
	inputs []Input,
	outputs []Output,
	mint []MintEntry,
	collateral []*ledger.Utxo,
	metadata map[uint64]interface{},
	exUnits map[string]ledger.ExUnits,
	fee uint64,
) ([]byte, error) {
	body := make(map[uint64]interface{})

	ins := make([][]interface{}, len(inputs))
	for i, in := range inputs {
		ref, err := encodeOutRef(in.Utxo)
		if err != nil {
			return nil, err
		}
		ins[i] = ref
	}
	body[bodyKeyInputs] = ins

	outs := make([][]interface{}, len(outputs))
	for i, o := range outputs {
		enc := []interface{}{o.Address, o.Value}
		if o.Datum != nil {
			d, err := datum.EncodeCBOR(o.Datum)
			if err != nil {
				return nil, fmt.Errorf("%w: output[%d] datum: %w", ErrEncode, i, err)
			}
			enc = append(enc, d)
		}
		outs[i] = enc
	}
	body[bodyKeyOutputs] = outs
	body[bodyKeyFee] = fee

	if len(mint) > 0 {
		mints := make(map[string]int64, len(mint))
		for _, m := range mint {
			mints[m.Unit] += m.Quantity
		}
		body[bodyKeyMint] = mints
	}

	redeemers, err := encodeRedeemers(inputs, mint, exUnits)
	if err != nil {
		return nil, err
	}
	if len(redeemers) > 0 {
		body[bodyKeyRedeemers] = redeemers
	}

	if len(collateral) > 0 {
		cols := make([][]interface{}, len(collateral))
		for i, u := range collateral {
			ref, err := encodeOutRef(u)
			if err != nil {
				return nil, err
			}
			cols[i] = ref
		}
		body[bodyKeyCollateral] = cols
	}

	if len(metadata) > 0 {
		body[bodyKeyMetadata] = metadata
	}

	data, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// encodeRedeemers collects the spend redeemers (by input position) and the
// mint redeemers (by entry position) with their execution budgets.
func encodeRedeemers(inputs []Input, mint []MintEntry, exUnits map[string]ledger.ExUnits) ([][]interface{}, error) {
	var out [][]interface{}

	appendOne := func(purpose string, red *datum.Value) error {
		enc, err := datum.EncodeCBOR(red)
		if err != nil {
			return fmt.Errorf("%w: redeemer %s: %w", ErrEncode, purpose, err)
		}
		units := defaultExUnits
		if u, ok := exUnits[purpose]; ok {
			units = u
		}
		out = append(out, []interface{}{purpose, enc, []uint64{units.Memory, units.Steps}})
		return nil
	}

	for i, in := range inputs {
		if in.Redeemer == nil {
			continue
		}
		if err := appendOne(fmt.Sprintf("spend:%d", i), in.Redeemer); err != nil {
			return nil, err
		}
	}
	for i, m := range mint {
		if m.Redeemer == nil {
			continue
		}
		if err := appendOne(fmt.Sprintf("mint:%d", i), m.Redeemer); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeOutRef(u *ledger.Utxo) ([]interface{}, error) {
	h, err := hex.DecodeString(u.TxHash)
	if err != nil {
		return nil, fmt.Errorf("%w: tx hash %q: %w", ErrEncode, u.TxHash, err)
	}
	return []interface{}{h, u.Index}, nil
}

// BodyHash returns the hex blake2b-256 hash of a serialized body: the
// transaction reference used for settlement tracking.
func BodyHash(body []byte) string {
	h := blake2b.Sum256(body)
	return hex.EncodeToString(h[:])
}
