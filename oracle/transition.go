package oracle

import (
	"fmt"
	"math"

	"github.com/apas-port/harvestflow-go/datum"
)

// TransitionKind identifies one variant of the closed transition set.
type TransitionKind uint8

const (
	// TransitionMint issues exactly one unit.
	TransitionMint TransitionKind = iota
	// TransitionBulkMint issues n units atomically.
	TransitionBulkMint
	// TransitionEnableMinting turns the minting flag on.
	TransitionEnableMinting
	// TransitionDisableMinting turns the minting flag off.
	TransitionDisableMinting
	// TransitionEnableTrading turns the trading flag on.
	TransitionEnableTrading
	// TransitionDisableTrading turns the trading flag off.
	TransitionDisableTrading
	// TransitionStop is terminal: it disables both flags and clamps the
	// supply ceiling to the current index so no further issuance can ever
	// validate.
	TransitionStop
)

// String returns the redeemer name of the transition kind.
func (k TransitionKind) String() string {
	switch k {
	case TransitionMint:
		return "Mint"
	case TransitionBulkMint:
		return "BulkMint"
	case TransitionEnableMinting:
		return "EnableMinting"
	case TransitionDisableMinting:
		return "DisableMinting"
	case TransitionEnableTrading:
		return "EnableTrading"
	case TransitionDisableTrading:
		return "DisableTrading"
	case TransitionStop:
		return "Stop"
	}
	return fmt.Sprintf("Transition(%d)", uint8(k))
}

// Transition is one immutable member of the closed transition set. Values
// are created only through the constructor functions below, so an invalid
// combination (for example a bulk mint of zero) cannot be represented.
type Transition struct {
	kind     TransitionKind
	quantity uint64
}

// Mint returns the single-unit issuance transition.
func Mint() Transition {
	return Transition{kind: TransitionMint, quantity: 1}
}

// BulkMint returns an n-unit issuance transition. The quantity must be at
// least two; single-unit issuance uses Mint. The practical upper bound is
// enforced by the transaction builder, not here, because it is driven by
// ledger transaction-size limits rather than protocol rules.
func BulkMint(n uint64) (Transition, error) {
	if n < 2 {
		return Transition{}, fmt.Errorf("%w: bulk mint of %d", ErrInvalidQuantity, n)
	}
	return Transition{kind: TransitionBulkMint, quantity: n}, nil
}

// EnableMinting returns the transition flipping the minting flag on.
func EnableMinting() Transition { return Transition{kind: TransitionEnableMinting} }

// DisableMinting returns the transition flipping the minting flag off.
func DisableMinting() Transition { return Transition{kind: TransitionDisableMinting} }

// EnableTrading returns the transition flipping the trading flag on.
func EnableTrading() Transition { return Transition{kind: TransitionEnableTrading} }

// DisableTrading returns the transition flipping the trading flag off.
func DisableTrading() Transition { return Transition{kind: TransitionDisableTrading} }

// Stop returns the terminal transition.
func Stop() Transition { return Transition{kind: TransitionStop} }

// Kind returns the transition's variant.
func (t Transition) Kind() TransitionKind { return t.kind }

// Quantity returns the number of units issued by the transition. Zero for
// non-issuing transitions.
func (t Transition) Quantity() uint64 { return t.quantity }

// IsIssuance reports whether the transition issues units and therefore
// requires payment.
func (t Transition) IsIssuance() bool {
	return t.kind == TransitionMint || t.kind == TransitionBulkMint
}

// RequiresAdmin reports whether the transition must be signed by the fee
// collector.
func (t Transition) RequiresAdmin() bool {
	return !t.IsIssuance()
}

// Redeemer encodes the transition as the script redeemer value. The
// constructor alternative is the TransitionKind ordinal; only BulkMint
// carries a field (its quantity).
func (t Transition) Redeemer() *datum.Value {
	if t.kind == TransitionBulkMint {
		return datum.NewConstr(uint64(t.kind), datum.NewUint(t.quantity))
	}
	return datum.NewConstr(uint64(t.kind))
}

// Authorization identifies the actor signing the enclosing transaction.
// Admin-gated transitions compare it against the record's fee collector.
type Authorization struct {
	SignerAddress string
}

// Apply computes the successor record for the transition, or an error if
// the transition is not valid against the current record. Apply never
// mutates the input record.
func (t Transition) Apply(current *Record, auth Authorization) (*Record, error) {
	if current == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if t.RequiresAdmin() && auth.SignerAddress != current.FeeCollector {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, t.kind)
	}

	next := *current

	switch t.kind {
	case TransitionMint, TransitionBulkMint:
		if !current.MintingEnabled {
			return nil, ErrMintingDisabled
		}
		if t.quantity > current.Remaining() {
			return nil, fmt.Errorf("%w: index %d + %d > max supply %d",
				ErrCapacityExceeded, current.Index, t.quantity, current.MaxSupply)
		}
		// The owed payment must be representable before Payment computes it.
		if current.UnitPrice != 0 && t.quantity > math.MaxUint64/current.UnitPrice {
			return nil, fmt.Errorf("%w: payment of %d units at price %d overflows",
				ErrInvalidQuantity, t.quantity, current.UnitPrice)
		}
		next.Index += t.quantity

	case TransitionEnableMinting:
		next.MintingEnabled = true
	case TransitionDisableMinting:
		next.MintingEnabled = false
	case TransitionEnableTrading:
		next.TradingEnabled = true
	case TransitionDisableTrading:
		next.TradingEnabled = false

	case TransitionStop:
		next.MintingEnabled = false
		next.TradingEnabled = false
		next.MaxSupply = next.Index

	default:
		return nil, fmt.Errorf("%w: unknown transition %d", ErrInvalidQuantity, t.kind)
	}

	return &next, nil
}

// Payment returns the lovelace owed to the fee collector by the enclosing
// transaction. Zero for non-issuing transitions. Apply rejects quantities
// whose payment would wrap, so Payment never overflows for a transition
// that applied successfully.
func (t Transition) Payment(current *Record) uint64 {
	if !t.IsIssuance() {
		return 0
	}
	return current.UnitPrice * t.quantity
}
