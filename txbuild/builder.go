// Package txbuild assembles unsigned transactions: script and wallet
// inputs, outputs with inline datums, mint entries with redeemers, fee
// estimation from protocol parameters, and change balancing. Signing is
// out of scope; builders return materials for an external signer.
package txbuild

import (
	"fmt"

	"github.com/apas-port/harvestflow-go/datum"
	"github.com/apas-port/harvestflow-go/ledger"
)

// Input is one transaction input. Script inputs carry the redeemer that
// authorizes their consumption.
type Input struct {
	Utxo     *ledger.Utxo
	Redeemer *datum.Value // nil for plain wallet inputs
}

// Output is one transaction output.
type Output struct {
	Address string
	Value   map[string]uint64 // unit -> quantity
	Datum   *datum.Value      // inline datum, nil if none
}

// Lovelace returns the native-currency quantity of the output.
func (o *Output) Lovelace() uint64 {
	return o.Value[ledger.LovelaceUnit]
}

// MintEntry mints (positive) or burns (negative) a quantity of one unit.
type MintEntry struct {
	Unit     string
	Quantity int64
	Redeemer *datum.Value
}

// Builder collects the pieces of one transaction and balances them in
// Build. A Builder is single-use.
type Builder struct {
	inputs     []Input
	outputs    []Output
	mint       []MintEntry
	collateral []*ledger.Utxo
	metadata   map[uint64]interface{}
	changeAddr string
	params     *ledger.ProtocolParams
	exUnits    map[string]ledger.ExUnits
}

// NewBuilder creates an empty builder using the given protocol parameters
// for fee and minimum-value calculation.
func NewBuilder(params *ledger.ProtocolParams) *Builder {
	return &Builder{params: params}
}

// AddInput appends a plain wallet input.
func (b *Builder) AddInput(u *ledger.Utxo) {
	b.inputs = append(b.inputs, Input{Utxo: u})
}

// AddScriptInput appends a script input with its redeemer.
func (b *Builder) AddScriptInput(u *ledger.Utxo, redeemer *datum.Value) {
	b.inputs = append(b.inputs, Input{Utxo: u, Redeemer: redeemer})
}

// AddOutput appends an output.
func (b *Builder) AddOutput(o Output) {
	b.outputs = append(b.outputs, o)
}

// AddMint appends a mint entry.
func (b *Builder) AddMint(m MintEntry) {
	b.mint = append(b.mint, m)
}

// SetCollateral sets the collateral inputs backing script execution.
func (b *Builder) SetCollateral(utxos ...*ledger.Utxo) {
	b.collateral = utxos
}

// SetMetadata attaches auxiliary metadata under the given label.
func (b *Builder) SetMetadata(label uint64, content interface{}) {
	if b.metadata == nil {
		b.metadata = make(map[uint64]interface{})
	}
	b.metadata[label] = content
}

// SetChange sets the address receiving the balancing output.
func (b *Builder) SetChange(addr string) {
	b.changeAddr = addr
}

// SetExUnits records evaluated execution budgets, keyed by script purpose.
// When unset, Build prices scripts with a conservative default budget.
func (b *Builder) SetExUnits(units map[string]ledger.ExUnits) {
	b.exUnits = units
}

// Unsigned holds the built transaction materials handed to the external
// signer, plus the references needed for audit and settlement tracking.
type Unsigned struct {
	BodyCBOR []byte   // serialized transaction body
	Hash     string   // blake2b-256 of the body, hex
	Fee      uint64   // lovelace
	Inputs   []string // consumed out-refs, in body order
	Outputs  []Output // produced outputs incl. change, in body order
}

// Build validates, balances, and serializes the transaction. The change
// output absorbs whatever lovelace remains after outputs and fee; asset
// quantities must balance exactly across inputs, mints, and outputs.
func (b *Builder) Build() (*Unsigned, error) {
	if b.params == nil {
		return nil, fmt.Errorf("%w: protocol parameters", ErrNilParam)
	}
	if len(b.inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrNilParam)
	}
	if b.changeAddr == "" {
		return nil, fmt.Errorf("%w: change address", ErrNilParam)
	}
	for i, in := range b.inputs {
		if in.Utxo == nil {
			return nil, fmt.Errorf("%w: input[%d]", ErrNilParam, i)
		}
	}
	hasScripts := len(b.mint) > 0
	for _, in := range b.inputs {
		if in.Redeemer != nil {
			hasScripts = true
		}
	}
	if hasScripts && len(b.collateral) == 0 {
		return nil, fmt.Errorf("%w: script transaction without collateral", ErrNilParam)
	}

	// Tally input-side value: consumed outputs plus minted quantities.
	available := make(map[string]uint64)
	for _, in := range b.inputs {
		for unit, q := range in.Utxo.Value {
			available[unit] += q
		}
	}
	for _, m := range b.mint {
		if m.Quantity > 0 {
			available[m.Unit] += uint64(m.Quantity)
		}
	}

	// Tally output-side value, including burns.
	needed := make(map[string]uint64)
	for _, o := range b.outputs {
		for unit, q := range o.Value {
			needed[unit] += q
		}
	}
	for _, m := range b.mint {
		if m.Quantity < 0 {
			needed[m.Unit] += uint64(-m.Quantity)
		}
	}

	// Non-lovelace assets must balance exactly; there is no asset change.
	for unit, q := range available {
		if unit == ledger.LovelaceUnit {
			continue
		}
		if needed[unit] != q {
			return nil, fmt.Errorf("%w: %s in %d out %d", ErrUnbalanced, unit, q, needed[unit])
		}
	}
	for unit, q := range needed {
		if unit == ledger.LovelaceUnit {
			continue
		}
		if available[unit] != q {
			return nil, fmt.Errorf("%w: %s in %d out %d", ErrUnbalanced, unit, available[unit], q)
		}
	}

	// Minimum value per output.
	for i, o := range b.outputs {
		if min := MinOutputLovelace(b.params, &o); o.Lovelace() < min {
			return nil, fmt.Errorf("%w: output[%d] has %d, needs %d", ErrBelowMinValue, i, o.Lovelace(), min)
		}
	}

	fee := b.estimateFee()

	inLovelace := available[ledger.LovelaceUnit]
	outLovelace := needed[ledger.LovelaceUnit]
	if inLovelace < outLovelace+fee {
		return nil, fmt.Errorf("%w: need %d lovelace, have %d", ErrInsufficientFunds, outLovelace+fee, inLovelace)
	}

	// Change absorbs the remainder when it clears the minimum; otherwise
	// the remainder folds into the fee.
	outputs := make([]Output, len(b.outputs))
	copy(outputs, b.outputs)
	change := inLovelace - outLovelace - fee
	changeOut := Output{Address: b.changeAddr, Value: map[string]uint64{ledger.LovelaceUnit: change}}
	if change >= MinOutputLovelace(b.params, &changeOut) {
		outputs = append(outputs, changeOut)
	} else {
		fee += change
	}

	body, err := encodeBody(b.inputs, outputs, b.mint, b.collateral, b.metadata, b.exUnits, fee)
	if err != nil {
		return nil, err
	}
	if b.params.MaxTxSize > 0 && uint64(len(body)) > b.params.MaxTxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTxTooLarge, len(body), b.params.MaxTxSize)
	}

	refs := make([]string, len(b.inputs))
	for i, in := range b.inputs {
		refs[i] = in.Utxo.OutRef()
	}

	return &Unsigned{
		BodyCBOR: body,
		Hash:     BodyHash(body),
		Fee:      fee,
		Inputs:   refs,
		Outputs:  outputs,
	}, nil
}

// Fee model: size-proportional base plus execution-unit pricing for
// script transactions.
const (
	baseTxBytes      = 180
	perInputBytes    = 70
	perOutputBytes   = 64
	perMintBytes     = 44
	perRedeemerBytes = 24
)

// defaultExUnits is the conservative per-script budget priced when the
// caller has not evaluated the transaction.
var defaultExUnits = ledger.ExUnits{Memory: 2_000_000, Steps: 700_000_000}

// EstimateTxSize returns the estimated serialized size in bytes.
func EstimateTxSize(numInputs, numOutputs, numMints, extraBytes int) uint64 {
	return uint64(baseTxBytes + numInputs*perInputBytes + numOutputs*perOutputBytes +
		numMints*perMintBytes + extraBytes)
}

func (b *Builder) estimateFee() uint64 {
	extra := 0
	numRedeemers := len(b.mint)
	for _, in := range b.inputs {
		if in.Redeemer != nil {
			numRedeemers++
		}
	}
	extra += numRedeemers * perRedeemerBytes
	for _, o := range b.outputs {
		if o.Datum != nil {
			if enc, err := datum.EncodeCBOR(o.Datum); err == nil {
				extra += len(enc)
			}
		}
	}

	size := EstimateTxSize(len(b.inputs), len(b.outputs)+1, len(b.mint), extra)
	fee := b.params.MinFeeConstant + b.params.MinFeeCoefficient*size

	if numRedeemers > 0 {
		units := b.exUnits
		if units == nil {
			units = make(map[string]ledger.ExUnits, numRedeemers)
			for i := 0; i < numRedeemers; i++ {
				units[fmt.Sprintf("default:%d", i)] = defaultExUnits
			}
		}
		for _, u := range units {
			fee += uint64(b.params.PriceMemory*float64(u.Memory) + b.params.PriceSteps*float64(u.Steps))
		}
	}
	return fee
}

// MinOutputLovelace returns the minimum lovelace an output must carry,
// scaled by its serialized footprint.
func MinOutputLovelace(params *ledger.ProtocolParams, o *Output) uint64 {
	size := perOutputBytes + 12*len(o.Value)
	if o.Datum != nil {
		if enc, err := datum.EncodeCBOR(o.Datum); err == nil {
			size += len(enc)
		}
	}
	return params.CoinsPerUtxoByte * uint64(size)
}

// SelectCoins picks wallet inputs covering the required value, largest
// lovelace first, skipping outputs that carry unrelated assets so units
// are never accidentally swept into a payment. Returns ErrInsufficientFunds
// if the available set cannot cover the requirement.
func SelectCoins(available []*ledger.Utxo, requiredLovelace uint64) ([]*ledger.Utxo, error) {
	candidates := make([]*ledger.Utxo, 0, len(available))
	for _, u := range available {
		if len(u.Value) == 1 && u.Lovelace() > 0 {
			candidates = append(candidates, u)
		}
	}
	// Largest first keeps the input count, and therefore the fee, low.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Lovelace() > candidates[j-1].Lovelace(); j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	var picked []*ledger.Utxo
	var total uint64
	for _, u := range candidates {
		if total >= requiredLovelace {
			break
		}
		picked = append(picked, u)
		total += u.Lovelace()
	}
	if total < requiredLovelace {
		return nil, fmt.Errorf("%w: need %d lovelace, wallet holds %d", ErrInsufficientFunds, requiredLovelace, total)
	}
	return picked, nil
}
