package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apas-port/harvestflow-go/ledger"
	"github.com/apas-port/harvestflow-go/oracle"
)

var testParams = &ledger.ProtocolParams{
	MinFeeCoefficient: 44,
	MinFeeConstant:    155381,
	CoinsPerUtxoByte:  4310,
	MaxTxSize:         16384,
	PriceMemory:       0.0577,
	PriceSteps:        0.0000721,
}

const (
	fundingAddr   = "addr_test1funding"
	collectorAddr = "addr_test1collector"
	fundingTxHash = "aa00000000000000000000000000000000000000000000000000000000000011"
)

func testGenesisParams() *Params {
	return &Params{
		FundingAddress: fundingAddr,
		FeeCollector:   collectorAddr,
		UnitPrice:      5_000_000,
		MaxSupply:      100,
		APRNumerator:   8,
		APRDenominator: 100,
		MaturationTime: 1767225600,
		Network:        "preprod",
	}
}

func fundingGateway(utxos []*ledger.Utxo) *ledger.MockGateway {
	return &ledger.MockGateway{
		UtxosByAddressFn: func(ctx context.Context, address string) ([]*ledger.Utxo, error) {
			return utxos, nil
		},
		ProtocolParamsFn: func(ctx context.Context) (*ledger.ProtocolParams, error) {
			return testParams, nil
		},
	}
}

func TestDeriveIdentityDeterministic(t *testing.T) {
	ref := IdentityReference{TxHash: fundingTxHash, Index: 0}

	a, err := DeriveIdentity(ref)
	require.NoError(t, err)
	b, err := DeriveIdentity(ref)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 56) // blake2b-224, hex

	other, err := DeriveIdentity(IdentityReference{TxHash: fundingTxHash, Index: 1})
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestDeriveIdentityInvalidHash(t *testing.T) {
	_, err := DeriveIdentity(IdentityReference{TxHash: "not-hex", Index: 0})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestParseIdentityReference(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    IdentityReference
		wantErr bool
	}{
		{name: "valid", in: fundingTxHash + "#3", want: IdentityReference{TxHash: fundingTxHash, Index: 3}},
		{name: "missing separator", in: fundingTxHash, wantErr: true},
		{name: "missing index", in: fundingTxHash + "#", wantErr: true},
		{name: "non-numeric index", in: fundingTxHash + "#x", wantErr: true},
		{name: "non-hex hash", in: "zz#0", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentityReference(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestPrepareGenesis(t *testing.T) {
	funding := &ledger.Utxo{
		TxHash:  fundingTxHash,
		Index:   0,
		Address: fundingAddr,
		Value:   map[string]uint64{ledger.LovelaceUnit: 20_000_000},
	}
	utxos := []*ledger.Utxo{
		// Smaller pure output and a token output: both must be passed over.
		{TxHash: fundingTxHash, Index: 1, Address: fundingAddr,
			Value: map[string]uint64{ledger.LovelaceUnit: 6_000_000}},
		{TxHash: fundingTxHash, Index: 2, Address: fundingAddr,
			Value: map[string]uint64{ledger.LovelaceUnit: 50_000_000, "deadbeef.Token": 4}},
		funding,
	}

	b := NewBootstrapper(fundingGateway(utxos))
	res, err := b.Prepare(context.Background(), testGenesisParams())
	require.NoError(t, err)

	assert.Equal(t, IdentityReference{TxHash: fundingTxHash, Index: 0}, res.Ref)
	wantID, err := DeriveIdentity(res.Ref)
	require.NoError(t, err)
	assert.Equal(t, wantID, res.PolicyID)
	assert.Equal(t, StateAddress(res.PolicyID), res.StateAddress)

	// The funding outpoint is consumed; the identity stays bound to it.
	require.Len(t, res.Unsigned.Inputs, 1)
	assert.Equal(t, funding.OutRef(), res.Unsigned.Inputs[0])

	// State output carries exactly one authenticity token and the initial
	// record as inline datum.
	authUnit := ledger.Unit(res.PolicyID, oracle.AuthTokenName)
	var found bool
	for _, out := range res.Unsigned.Outputs {
		if out.Address != res.StateAddress {
			continue
		}
		found = true
		assert.Equal(t, uint64(1), out.Value[authUnit])
		require.NotNil(t, out.Datum)
		rec, err := oracle.FromDatum(out.Datum)
		require.NoError(t, err)
		assert.Equal(t, res.Record, rec)
	}
	require.True(t, found, "no state output produced")

	assert.Equal(t, uint64(0), res.Record.Index)
	assert.True(t, res.Record.MintingEnabled)
	assert.True(t, res.Record.TradingEnabled)
	assert.Equal(t, uint64(100), res.Record.MaxSupply)
}

func TestPrepareNoFunding(t *testing.T) {
	utxos := []*ledger.Utxo{
		// Below the funding minimum.
		{TxHash: fundingTxHash, Index: 0, Address: fundingAddr,
			Value: map[string]uint64{ledger.LovelaceUnit: 1_000_000}},
		// Large enough but carries an asset.
		{TxHash: fundingTxHash, Index: 1, Address: fundingAddr,
			Value: map[string]uint64{ledger.LovelaceUnit: 50_000_000, "deadbeef.Token": 1}},
	}

	b := NewBootstrapper(fundingGateway(utxos))
	_, err := b.Prepare(context.Background(), testGenesisParams())
	assert.ErrorIs(t, err, ErrNoFunding)
}

func TestPrepareInvalidParams(t *testing.T) {
	mutations := map[string]func(*Params){
		"funding address": func(p *Params) { p.FundingAddress = "" },
		"fee collector":   func(p *Params) { p.FeeCollector = "" },
		"unit price":      func(p *Params) { p.UnitPrice = 0 },
		"max supply":      func(p *Params) { p.MaxSupply = 0 },
		"network":         func(p *Params) { p.Network = "" },
	}
	b := NewBootstrapper(&ledger.MockGateway{})
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := testGenesisParams()
			mutate(p)
			_, err := b.Prepare(context.Background(), p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}

	_, err := b.Prepare(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "registry", "protocols.db"))
	require.NoError(t, err)
	defer store.Close()

	p := &Protocol{
		PolicyID:     "aabbcc",
		Ref:          IdentityReference{TxHash: fundingTxHash, Index: 0},
		Network:      "preprod",
		StateAddress: StateAddress("aabbcc"),
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(p))

	got, err := store.Get("aabbcc")
	require.NoError(t, err)
	assert.Equal(t, p.PolicyID, got.PolicyID)
	assert.Equal(t, p.Ref, got.Ref)
	assert.Equal(t, p.StateAddress, got.StateAddress)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	// An identity reference is written once.
	err = store.Put(p)
	assert.ErrorIs(t, err, ErrProtocolExists)

	_, err = store.Get("unknown")
	assert.ErrorIs(t, err, ErrProtocolNotFound)
}

func TestStoreList(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "protocols.db"))
	require.NoError(t, err)
	defer store.Close()

	for _, id := range []string{"cc", "aa", "bb"} {
		require.NoError(t, store.Put(&Protocol{PolicyID: id, Network: "preview"}))
	}

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	// bbolt iterates in key order.
	assert.Equal(t, "aa", list[0].PolicyID)
	assert.Equal(t, "bb", list[1].PolicyID)
	assert.Equal(t, "cc", list[2].PolicyID)

	require.NoError(t, store.Put(&Protocol{PolicyID: "dd", Network: "preview"}))
	list, err = store.List()
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
