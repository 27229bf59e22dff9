// Package oracle models the protocol's shared state record and the closed
// set of transitions that advance it. Transitions are pure: they take a
// record snapshot and produce a successor (or an error) without touching
// the ledger. Embedding the successor in a transaction is the job of the
// mint package.
package oracle

import (
	"fmt"

	"github.com/apas-port/harvestflow-go/datum"
)

// AuthTokenName is the asset name of the authenticity token minted at
// bootstrap. The token travels with the record in the same UTXO and is the
// only proof that a candidate record is the genuine current state.
const AuthTokenName = "HarvestOracle"

// Record is the mutable shared state of one protocol instance. A record is
// live in exactly one ledger UTXO at a time; every successful transition
// consumes that UTXO and produces a successor holding the updated record.
type Record struct {
	Index          uint64 // next issuance sequence number
	UnitPrice      uint64 // lovelace per issued unit
	FeeCollector   string // address receiving payments and signing toggles
	MintingEnabled bool
	TradingEnabled bool
	APRNumerator   uint64
	APRDenominator uint64
	MaturationTime int64 // unix seconds
	MaxSupply      uint64
}

// Validate checks the structural invariants of a record.
func (r *Record) Validate() error {
	if r.FeeCollector == "" {
		return fmt.Errorf("%w: empty fee collector", ErrInvalidRecord)
	}
	if r.Index > r.MaxSupply {
		return fmt.Errorf("%w: index %d exceeds max supply %d", ErrInvalidRecord, r.Index, r.MaxSupply)
	}
	if r.UnitPrice == 0 {
		return fmt.Errorf("%w: zero unit price", ErrInvalidRecord)
	}
	return nil
}

// Remaining returns the number of units still issuable.
func (r *Record) Remaining() uint64 {
	return r.MaxSupply - r.Index
}

// recordFields is the current datum layout: constructor 0 with nine fields
// in declaration order. A legacy six-field layout (no APR or maturation)
// is still accepted on decode; see FromDatum.
const (
	recordFieldCount       = 9
	legacyRecordFieldCount = 6
)

// ToDatum encodes the record in the current datum layout.
func (r *Record) ToDatum() *datum.Value {
	return datum.NewConstr(0,
		datum.NewUint(r.Index),
		datum.NewUint(r.UnitPrice),
		datum.NewBytes([]byte(r.FeeCollector)),
		datum.NewBool(r.MintingEnabled),
		datum.NewBool(r.TradingEnabled),
		datum.NewUint(r.APRNumerator),
		datum.NewUint(r.APRDenominator),
		datum.NewInt(r.MaturationTime),
		datum.NewUint(r.MaxSupply),
	)
}

// FromDatum decodes a record from its datum value. Both the current
// nine-field layout and the legacy six-field layout are accepted; legacy
// records decode with zero APR and maturation. Encoding always emits the
// current layout, so legacy records migrate forward on their next
// transition.
func FromDatum(v *datum.Value) (*Record, error) {
	if v.Kind() != datum.KindConstr || v.Constructor() != 0 {
		return nil, fmt.Errorf("%w: not a record constructor", ErrInvalidRecord)
	}

	fields := v.Fields()
	legacy := false
	switch len(fields) {
	case recordFieldCount:
	case legacyRecordFieldCount:
		legacy = true
	default:
		return nil, fmt.Errorf("%w: %d fields", ErrInvalidRecord, len(fields))
	}

	r := &Record{}
	var err error
	if r.Index, err = fields[0].Uint(); err != nil {
		return nil, fmt.Errorf("%w: index: %w", ErrInvalidRecord, err)
	}
	if r.UnitPrice, err = fields[1].Uint(); err != nil {
		return nil, fmt.Errorf("%w: unit price: %w", ErrInvalidRecord, err)
	}
	collector, err := fields[2].Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: fee collector: %w", ErrInvalidRecord, err)
	}
	r.FeeCollector = string(collector)
	if r.MintingEnabled, err = fields[3].Bool(); err != nil {
		return nil, fmt.Errorf("%w: minting flag: %w", ErrInvalidRecord, err)
	}
	if r.TradingEnabled, err = fields[4].Bool(); err != nil {
		return nil, fmt.Errorf("%w: trading flag: %w", ErrInvalidRecord, err)
	}

	if legacy {
		if r.MaxSupply, err = fields[5].Uint(); err != nil {
			return nil, fmt.Errorf("%w: max supply: %w", ErrInvalidRecord, err)
		}
		return r, r.Validate()
	}

	if r.APRNumerator, err = fields[5].Uint(); err != nil {
		return nil, fmt.Errorf("%w: apr numerator: %w", ErrInvalidRecord, err)
	}
	if r.APRDenominator, err = fields[6].Uint(); err != nil {
		return nil, fmt.Errorf("%w: apr denominator: %w", ErrInvalidRecord, err)
	}
	if r.MaturationTime, err = fields[7].Int(); err != nil {
		return nil, fmt.Errorf("%w: maturation: %w", ErrInvalidRecord, err)
	}
	if r.MaxSupply, err = fields[8].Uint(); err != nil {
		return nil, fmt.Errorf("%w: max supply: %w", ErrInvalidRecord, err)
	}
	return r, r.Validate()
}

// UnitName returns the deterministic asset name for the unit at the given
// sequence index of a collection.
func UnitName(collection string, index uint64) string {
	return fmt.Sprintf("%s%d", collection, index)
}
