// Package ledger is the sole boundary to the external chain indexer. It
// fetches UTXO sets, protocol parameters and asset holders, submits signed
// transactions, and evaluates script execution, normalizing the indexer's
// nested success/failure shapes into canonical types and sentinel errors
// before anything else in the module sees them.
package ledger

import (
	"context"
	"fmt"

	"github.com/apas-port/harvestflow-go/datum"
)

// LovelaceUnit is the value-map key of the native currency.
const LovelaceUnit = "lovelace"

// PageSize is the number of entries per page for paginated queries.
const PageSize = 100

// Gateway is the primary interface for chain interaction. The mint,
// bootstrap, client and airdrop layers all depend on this interface, never
// on the concrete indexer client.
type Gateway interface {
	// UtxosByAddress returns all unspent outputs held by the given address.
	UtxosByAddress(ctx context.Context, address string) ([]*Utxo, error)

	// UtxoByUnit returns the single unspent output holding the given asset
	// unit. Used to locate the oracle state UTXO via its authenticity
	// token. Returns ErrNotFound if the unit is not in any live output.
	UtxoByUnit(ctx context.Context, unit string) (*Utxo, error)

	// AssetHolders returns one page of current holders of the given unit
	// with their quantities. Pages are 1-based; a page beyond the last
	// returns an empty slice.
	AssetHolders(ctx context.Context, unit string, page int) ([]*Holder, error)

	// PolicyAssets returns one page of assets issued under a policy.
	PolicyAssets(ctx context.Context, policyID string, page int) ([]*Asset, error)

	// ProtocolParams returns the current protocol parameters.
	ProtocolParams(ctx context.Context) (*ProtocolParams, error)

	// SubmitTx submits a signed transaction and returns its hash.
	SubmitTx(ctx context.Context, rawTx []byte) (string, error)

	// EvaluateTx evaluates the scripts of a transaction and returns the
	// execution units per script purpose ("spend:0", "mint:0", ...).
	// Script rejections surface as *EvaluationError.
	EvaluateTx(ctx context.Context, rawTx []byte) (map[string]ExUnits, error)

	// TxStatus returns the settlement status of a transaction. An unknown
	// hash reports unconfirmed rather than an error, since submission and
	// indexing race.
	TxStatus(ctx context.Context, txHash string) (*TxStatus, error)
}

// Utxo is one unspent transaction output in canonical form. Datum content
// is already normalized into a datum.Value; consumers never see the
// indexer's raw encoding.
type Utxo struct {
	TxHash      string
	Index       uint32
	Address     string
	Value       map[string]uint64 // unit -> quantity
	InlineDatum *datum.Value      // nil when the output carries no datum
}

// OutRef returns the canonical "txhash#index" reference of the output.
func (u *Utxo) OutRef() string {
	return fmt.Sprintf("%s#%d", u.TxHash, u.Index)
}

// Lovelace returns the native-currency quantity of the output.
func (u *Utxo) Lovelace() uint64 {
	return u.Value[LovelaceUnit]
}

// Quantity returns the quantity of the given unit held by the output.
func (u *Utxo) Quantity(unit string) uint64 {
	return u.Value[unit]
}

// Unit returns the canonical asset unit identifier for an asset name
// under a policy.
func Unit(policyID, assetName string) string {
	return policyID + "." + assetName
}

// SplitUnit splits a unit identifier into policy identity and asset name.
func SplitUnit(unit string) (policyID, assetName string) {
	for i := 0; i < len(unit); i++ {
		if unit[i] == '.' {
			return unit[:i], unit[i+1:]
		}
	}
	return unit, ""
}

// Holder is one current holder of an asset unit.
type Holder struct {
	Address  string
	Quantity uint64
}

// Asset is one asset issued under a policy.
type Asset struct {
	Unit     string
	Quantity uint64
}

// ProtocolParams holds the protocol parameters needed for fee estimation
// and minimum-value calculation.
type ProtocolParams struct {
	MinFeeCoefficient uint64  // fee per transaction byte
	MinFeeConstant    uint64  // flat fee component
	CoinsPerUtxoByte  uint64  // minimum-value scaling
	MaxTxSize         uint64  // transaction size ceiling, bytes
	PriceMemory       float64 // fee per script memory unit
	PriceSteps        float64 // fee per script cpu step
}

// ExUnits is the execution budget consumed by one script.
type ExUnits struct {
	Memory uint64 `json:"memory"`
	Steps  uint64 `json:"steps"`
}

// TxStatus is the settlement status of a submitted transaction.
type TxStatus struct {
	Confirmed bool
	Block     string
	Height    uint64
}
