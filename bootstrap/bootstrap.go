package bootstrap

import (
	"context"
	"fmt"

	"github.com/apas-port/harvestflow-go/datum"
	"github.com/apas-port/harvestflow-go/ledger"
	"github.com/apas-port/harvestflow-go/oracle"
	"github.com/apas-port/harvestflow-go/txbuild"
)

// minFundingLovelace is the smallest funding output accepted for genesis.
// The output must cover the state output's minimum value, the fee, and
// still leave change above dust.
const minFundingLovelace = 5_000_000

// stateFloorLovelace is the lovelace floor of the state output. The
// computed minimum value wins when it is higher.
const stateFloorLovelace = 2_000_000

// Params are the genesis parameters of a new protocol instance. They seed
// the first oracle record; everything except the supply and economics can
// later be changed through transitions.
type Params struct {
	FundingAddress string // wallet funding genesis and receiving change
	FeeCollector   string // address receiving unit payments
	UnitPrice      uint64 // lovelace per issued unit
	MaxSupply      uint64
	APRNumerator   uint64
	APRDenominator uint64
	MaturationTime int64 // unix seconds
	Network        string
}

// Validate checks the genesis parameters.
func (p *Params) Validate() error {
	if p.FundingAddress == "" {
		return fmt.Errorf("%w: empty funding address", ErrInvalidParams)
	}
	if p.FeeCollector == "" {
		return fmt.Errorf("%w: empty fee collector", ErrInvalidParams)
	}
	if p.UnitPrice == 0 {
		return fmt.Errorf("%w: zero unit price", ErrInvalidParams)
	}
	if p.MaxSupply == 0 {
		return fmt.Errorf("%w: zero max supply", ErrInvalidParams)
	}
	if p.Network == "" {
		return fmt.Errorf("%w: empty network", ErrInvalidParams)
	}
	return nil
}

// Result holds everything produced by Prepare: the derived identity, the
// initial record, and the unsigned genesis transaction.
type Result struct {
	PolicyID     string
	Ref          IdentityReference
	StateAddress string
	Record       *oracle.Record
	Unsigned     *txbuild.Unsigned
}

// Bootstrapper prepares genesis transactions against a ledger gateway.
type Bootstrapper struct {
	gw ledger.Gateway
}

// NewBootstrapper creates a Bootstrapper using the given gateway.
func NewBootstrapper(gw ledger.Gateway) *Bootstrapper {
	return &Bootstrapper{gw: gw}
}

// Prepare builds the unsigned genesis transaction for a new protocol
// instance. It picks the funding output whose outpoint becomes the
// identity reference, derives the policy identity from it, mints the
// authenticity token, and places the initial record with the token at the
// state address. The funding output MUST be consumed by this transaction;
// signing a rebuilt transaction over a different outpoint creates a
// different protocol.
func (b *Bootstrapper) Prepare(ctx context.Context, params *Params) (*Result, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params", ErrNilParam)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	utxos, err := b.gw.UtxosByAddress(ctx, params.FundingAddress)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: query funding address: %w", err)
	}
	funding := pickFunding(utxos)
	if funding == nil {
		return nil, fmt.Errorf("%w: need a pure output of at least %d lovelace at %s",
			ErrNoFunding, minFundingLovelace, params.FundingAddress)
	}

	ref := IdentityReference{TxHash: funding.TxHash, Index: funding.Index}
	policyID, err := DeriveIdentity(ref)
	if err != nil {
		return nil, err
	}
	stateAddr := StateAddress(policyID)

	record := &oracle.Record{
		Index:          0,
		UnitPrice:      params.UnitPrice,
		FeeCollector:   params.FeeCollector,
		MintingEnabled: true,
		TradingEnabled: true,
		APRNumerator:   params.APRNumerator,
		APRDenominator: params.APRDenominator,
		MaturationTime: params.MaturationTime,
		MaxSupply:      params.MaxSupply,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	pp, err := b.gw.ProtocolParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: protocol parameters: %w", err)
	}

	authUnit := ledger.Unit(policyID, oracle.AuthTokenName)
	stateOut := txbuild.Output{
		Address: stateAddr,
		Value:   map[string]uint64{authUnit: 1},
		Datum:   record.ToDatum(),
	}
	stateLovelace := txbuild.MinOutputLovelace(pp, &stateOut)
	if stateLovelace < stateFloorLovelace {
		stateLovelace = stateFloorLovelace
	}
	stateOut.Value[ledger.LovelaceUnit] = stateLovelace

	builder := txbuild.NewBuilder(pp)
	builder.AddInput(funding)
	builder.AddMint(txbuild.MintEntry{
		Unit:     authUnit,
		Quantity: 1,
		Redeemer: genesisRedeemer(),
	})
	builder.AddOutput(stateOut)
	builder.SetCollateral(funding)
	builder.SetChange(params.FundingAddress)

	unsigned, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build genesis: %w", err)
	}

	return &Result{
		PolicyID:     policyID,
		Ref:          ref,
		StateAddress: stateAddr,
		Record:       record,
		Unsigned:     unsigned,
	}, nil
}

// pickFunding returns the largest pure-lovelace output of at least the
// funding minimum, or nil when none qualifies. Outputs carrying assets are
// skipped so genesis never sweeps unrelated units.
func pickFunding(utxos []*ledger.Utxo) *ledger.Utxo {
	var best *ledger.Utxo
	for _, u := range utxos {
		if len(u.Value) != 1 || u.Lovelace() < minFundingLovelace {
			continue
		}
		if best == nil || u.Lovelace() > best.Lovelace() {
			best = u
		}
	}
	return best
}

// genesisRedeemer is the policy redeemer authorizing the one-time mint of
// the authenticity token.
func genesisRedeemer() *datum.Value {
	return datum.NewConstr(0)
}
