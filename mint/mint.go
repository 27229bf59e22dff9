// Package mint coordinates protocol transitions end to end: it locates the
// live oracle state by its authenticity token, applies a transition to the
// decoded record, and assembles the unsigned transaction that consumes the
// state UTXO and produces its successor. Issuance transitions additionally
// mint the units, pay the fee collector, and attach display metadata.
package mint

import (
	"context"
	"errors"
	"fmt"

	"github.com/apas-port/harvestflow-go/ledger"
	"github.com/apas-port/harvestflow-go/oracle"
	"github.com/apas-port/harvestflow-go/project"
	"github.com/apas-port/harvestflow-go/txbuild"
)

// DefaultMaxBatchSize is the per-transaction issuance ceiling applied when
// the caller does not set one. The ceiling exists because every issued
// unit adds a mint entry, an output and metadata to the transaction, and
// the ledger caps transaction size.
const DefaultMaxBatchSize = 10

// metadataLabel is the auxiliary-metadata label carrying unit display
// metadata.
const metadataLabel = 721

// feeBudgetLovelace is the lovelace reserved for the fee when selecting
// payer inputs. The builder computes the exact fee; the budget only needs
// to cover it.
const feeBudgetLovelace = 2_000_000

// MintRequest describes one issuance: who pays, who receives, how many.
type MintRequest struct {
	PolicyID     string
	Recipient    string // address receiving the issued units
	PayerAddress string // wallet paying price and fee, receives change
	Quantity     uint64
}

// AdminRequest describes one admin-gated transition. The admin address
// must match the record's fee collector or the transition is rejected
// before any transaction is built.
type AdminRequest struct {
	PolicyID     string
	AdminAddress string
}

// Prepared is the outcome of preparing a transition: the unsigned
// transaction plus the state it was built against. Current is the record
// the transaction consumes; if another writer consumes the state UTXO
// first, submission fails with a contention error and the caller prepares
// again from fresh state.
type Prepared struct {
	Unsigned *txbuild.Unsigned
	Current  *oracle.Record
	Next     *oracle.Record
	Units    []string            // issued asset units, empty for admin transitions
	Indices  []uint64            // issued sequence indices, aligned with Units
	Metadata []*project.Metadata // validated display metadata, aligned with Units
	Payment  uint64              // lovelace paid to the fee collector
}

// Coordinator prepares transition transactions against a ledger gateway.
type Coordinator struct {
	gw       ledger.Gateway
	projects project.Provider
	network  string
	maxBatch uint64
}

// NewCoordinator creates a coordinator for the given network. A maxBatch
// of zero selects DefaultMaxBatchSize.
func NewCoordinator(gw ledger.Gateway, projects project.Provider, network string, maxBatch uint64) *Coordinator {
	if maxBatch == 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Coordinator{gw: gw, projects: projects, network: network, maxBatch: maxBatch}
}

// PrepareMint builds the unsigned issuance transaction for req. Quantity 1
// uses the single-unit transition, larger quantities the bulk transition.
// All protocol rules are checked against the live record before anything
// is built, so a doomed transaction is never assembled.
func (c *Coordinator) PrepareMint(ctx context.Context, req *MintRequest) (*Prepared, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request", ErrNilParam)
	}
	if req.PolicyID == "" || req.Recipient == "" || req.PayerAddress == "" {
		return nil, fmt.Errorf("%w: policy, recipient and payer are required", ErrNilParam)
	}
	if req.Quantity == 0 {
		return nil, fmt.Errorf("%w: zero quantity", oracle.ErrInvalidQuantity)
	}
	if req.Quantity > c.maxBatch {
		return nil, fmt.Errorf("%w: %d units, ceiling %d", ErrBatchTooLarge, req.Quantity, c.maxBatch)
	}

	stateUtxo, current, err := c.loadState(ctx, req.PolicyID)
	if err != nil {
		return nil, err
	}

	tr := oracle.Mint()
	if req.Quantity > 1 {
		if tr, err = oracle.BulkMint(req.Quantity); err != nil {
			return nil, err
		}
	}
	next, err := tr.Apply(current, oracle.Authorization{SignerAddress: req.PayerAddress})
	if err != nil {
		return nil, err
	}

	cfg, err := c.projects.Project(ctx, c.network, req.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("mint: project configuration: %w", err)
	}

	units := make([]string, 0, req.Quantity)
	indices := make([]uint64, 0, req.Quantity)
	metadata := make([]*project.Metadata, 0, req.Quantity)
	assetMeta := make(map[string]interface{}, req.Quantity)
	for index := current.Index; index < next.Index; index++ {
		meta := cfg.MetadataFor(index)
		if err := meta.Validate(); err != nil {
			return nil, fmt.Errorf("mint: metadata for index %d: %w", index, err)
		}
		name := oracle.UnitName(cfg.CollectionName, index)
		units = append(units, ledger.Unit(req.PolicyID, name))
		indices = append(indices, index)
		metadata = append(metadata, meta)
		assetMeta[name] = map[string]interface{}{
			"name":        meta.Name,
			"image":       meta.Image,
			"description": meta.Description,
		}
	}

	pp, err := c.gw.ProtocolParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint: protocol parameters: %w", err)
	}

	builder := txbuild.NewBuilder(pp)
	redeemer := tr.Redeemer()
	builder.AddScriptInput(stateUtxo, redeemer)
	builder.AddOutput(successorState(stateUtxo, next))

	// Units travel to the recipient in one output above its minimum value.
	recipientOut := txbuild.Output{Address: req.Recipient, Value: make(map[string]uint64, len(units)+1)}
	for _, unit := range units {
		builder.AddMint(txbuild.MintEntry{Unit: unit, Quantity: 1, Redeemer: redeemer})
		recipientOut.Value[unit] = 1
	}
	recipientLovelace := txbuild.MinOutputLovelace(pp, &recipientOut)
	recipientOut.Value[ledger.LovelaceUnit] = recipientLovelace
	builder.AddOutput(recipientOut)

	payment := tr.Payment(current)
	builder.AddOutput(txbuild.Output{
		Address: current.FeeCollector,
		Value:   map[string]uint64{ledger.LovelaceUnit: payment},
	})

	payerUtxos, err := c.gw.UtxosByAddress(ctx, req.PayerAddress)
	if err != nil {
		return nil, fmt.Errorf("mint: query payer: %w", err)
	}
	selected, err := txbuild.SelectCoins(payerUtxos, payment+recipientLovelace+feeBudgetLovelace)
	if err != nil {
		return nil, err
	}
	for _, u := range selected {
		builder.AddInput(u)
	}
	builder.SetCollateral(selected[0])
	builder.SetChange(req.PayerAddress)
	builder.SetMetadata(metadataLabel, map[string]interface{}{req.PolicyID: assetMeta})

	unsigned, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("mint: build: %w", err)
	}

	return &Prepared{
		Unsigned: unsigned,
		Current:  current,
		Next:     next,
		Units:    units,
		Indices:  indices,
		Metadata: metadata,
		Payment:  payment,
	}, nil
}

// PrepareAdmin builds the unsigned transaction for a flag toggle or the
// terminal stop. The transition must be admin-gated; issuance goes through
// PrepareMint.
func (c *Coordinator) PrepareAdmin(ctx context.Context, req *AdminRequest, tr oracle.Transition) (*Prepared, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request", ErrNilParam)
	}
	if req.PolicyID == "" || req.AdminAddress == "" {
		return nil, fmt.Errorf("%w: policy and admin are required", ErrNilParam)
	}
	if !tr.RequiresAdmin() {
		return nil, fmt.Errorf("%w: %s is not an admin transition", ErrNilParam, tr.Kind())
	}

	stateUtxo, current, err := c.loadState(ctx, req.PolicyID)
	if err != nil {
		return nil, err
	}
	next, err := tr.Apply(current, oracle.Authorization{SignerAddress: req.AdminAddress})
	if err != nil {
		return nil, err
	}

	pp, err := c.gw.ProtocolParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint: protocol parameters: %w", err)
	}

	builder := txbuild.NewBuilder(pp)
	builder.AddScriptInput(stateUtxo, tr.Redeemer())
	builder.AddOutput(successorState(stateUtxo, next))

	adminUtxos, err := c.gw.UtxosByAddress(ctx, req.AdminAddress)
	if err != nil {
		return nil, fmt.Errorf("mint: query admin: %w", err)
	}
	selected, err := txbuild.SelectCoins(adminUtxos, feeBudgetLovelace)
	if err != nil {
		return nil, err
	}
	for _, u := range selected {
		builder.AddInput(u)
	}
	builder.SetCollateral(selected[0])
	builder.SetChange(req.AdminAddress)

	unsigned, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("mint: build: %w", err)
	}

	return &Prepared{Unsigned: unsigned, Current: current, Next: next}, nil
}

// CurrentRecord returns the live record of a protocol without building
// anything. Used by status reporting.
func (c *Coordinator) CurrentRecord(ctx context.Context, policyID string) (*oracle.Record, error) {
	_, current, err := c.loadState(ctx, policyID)
	return current, err
}

// loadState locates the state UTXO via the authenticity token and decodes
// its record.
func (c *Coordinator) loadState(ctx context.Context, policyID string) (*ledger.Utxo, *oracle.Record, error) {
	authUnit := ledger.Unit(policyID, oracle.AuthTokenName)
	utxo, err := c.gw.UtxoByUnit(ctx, authUnit)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s (protocol not bootstrapped on %s?)",
				ErrStateNotFound, policyID, c.network)
		}
		return nil, nil, fmt.Errorf("mint: locate state: %w", err)
	}
	if utxo.InlineDatum == nil {
		return nil, nil, fmt.Errorf("%w: state output carries no datum", ErrStateCorrupt)
	}
	record, err := oracle.FromDatum(utxo.InlineDatum)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStateCorrupt, err)
	}
	return utxo, record, nil
}

// successorState produces the successor state output: same address, same
// value (the authenticity token travels with the record), updated datum.
func successorState(stateUtxo *ledger.Utxo, next *oracle.Record) txbuild.Output {
	value := make(map[string]uint64, len(stateUtxo.Value))
	for unit, q := range stateUtxo.Value {
		value[unit] = q
	}
	return txbuild.Output{Address: stateUtxo.Address, Value: value, Datum: next.ToDatum()}
}
