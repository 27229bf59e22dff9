package ledger

import "context"

// MockGateway is a test double for Gateway. All function fields must be
// set before the corresponding method is called.
type MockGateway struct {
	UtxosByAddressFn func(ctx context.Context, address string) ([]*Utxo, error)
	UtxoByUnitFn     func(ctx context.Context, unit string) (*Utxo, error)
	AssetHoldersFn   func(ctx context.Context, unit string, page int) ([]*Holder, error)
	PolicyAssetsFn   func(ctx context.Context, policyID string, page int) ([]*Asset, error)
	ProtocolParamsFn func(ctx context.Context) (*ProtocolParams, error)
	SubmitTxFn       func(ctx context.Context, rawTx []byte) (string, error)
	EvaluateTxFn     func(ctx context.Context, rawTx []byte) (map[string]ExUnits, error)
	TxStatusFn       func(ctx context.Context, txHash string) (*TxStatus, error)
}

// Compile-time interface check.
var _ Gateway = (*MockGateway)(nil)

func (m *MockGateway) UtxosByAddress(ctx context.Context, address string) ([]*Utxo, error) {
	return m.UtxosByAddressFn(ctx, address)
}
func (m *MockGateway) UtxoByUnit(ctx context.Context, unit string) (*Utxo, error) {
	return m.UtxoByUnitFn(ctx, unit)
}
func (m *MockGateway) AssetHolders(ctx context.Context, unit string, page int) ([]*Holder, error) {
	return m.AssetHoldersFn(ctx, unit, page)
}
func (m *MockGateway) PolicyAssets(ctx context.Context, policyID string, page int) ([]*Asset, error) {
	return m.PolicyAssetsFn(ctx, policyID, page)
}
func (m *MockGateway) ProtocolParams(ctx context.Context) (*ProtocolParams, error) {
	return m.ProtocolParamsFn(ctx)
}
func (m *MockGateway) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	return m.SubmitTxFn(ctx, rawTx)
}
func (m *MockGateway) EvaluateTx(ctx context.Context, rawTx []byte) (map[string]ExUnits, error) {
	return m.EvaluateTxFn(ctx, rawTx)
}
func (m *MockGateway) TxStatus(ctx context.Context, txHash string) (*TxStatus, error) {
	return m.TxStatusFn(ctx, txHash)
}
