package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *IndexerClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewIndexerClient(IndexerConfig{URL: server.URL, ProjectKey: "testkey"})
}

func TestUtxosByAddress(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "testkey", r.Header.Get("project_id"))
		assert.Equal(t, "/addresses/addr_test1_alice/utxos", r.URL.Path)
		fmt.Fprint(w, `[
			{"tx_hash":"aa11","output_index":0,"address":"addr_test1_alice",
			 "amount":[{"unit":"lovelace","quantity":"5000000"},{"unit":"pid1.asset","quantity":"1"}]},
			{"tx_hash":"bb22","output_index":3,"address":"addr_test1_alice",
			 "amount":[{"unit":"lovelace","quantity":"2000000"}],
			 "inline_datum":{"constructor":0,"fields":[{"int":7}]}}
		]`)
	})

	utxos, err := client.UtxosByAddress(context.Background(), "addr_test1_alice")
	require.NoError(t, err)
	require.Len(t, utxos, 2)

	assert.Equal(t, "aa11#0", utxos[0].OutRef())
	assert.Equal(t, uint64(5_000_000), utxos[0].Lovelace())
	assert.Equal(t, uint64(1), utxos[0].Quantity("pid1.asset"))
	assert.Nil(t, utxos[0].InlineDatum)

	require.NotNil(t, utxos[1].InlineDatum)
	n, err := utxos[1].InlineDatum.Fields()[0].Uint()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
}

func TestUtxosByAddress_UnknownAddressIsEmpty(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	utxos, err := client.UtxosByAddress(context.Background(), "addr_test1_nobody")
	require.NoError(t, err)
	assert.Empty(t, utxos)
}

func TestUtxoByUnit_CBORHexDatum(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/pid1.oracle/utxo", r.URL.Path)
		// d87980 = constructor 0, no fields (old indexers inline hex CBOR).
		fmt.Fprint(w, `{"tx_hash":"cc33","output_index":1,"address":"state1x",
			"amount":[{"unit":"lovelace","quantity":"2000000"},{"unit":"pid1.oracle","quantity":"1"}],
			"inline_datum":"d87980"}`)
	})

	u, err := client.UtxoByUnit(context.Background(), "pid1.oracle")
	require.NoError(t, err)
	require.NotNil(t, u.InlineDatum)
	assert.Equal(t, uint64(0), u.InlineDatum.Constructor())
}

func TestUtxoByUnit_NotFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.UtxoByUnit(context.Background(), "pid1.oracle")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssetHolders_Pagination(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("count"))
		fmt.Fprint(w, `[{"address":"addr_a","quantity":"3"},{"address":"addr_b","quantity":"1"}]`)
	})

	holders, err := client.AssetHolders(context.Background(), "pid1.t1", 2)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, uint64(3), holders[0].Quantity)
	assert.Equal(t, "addr_b", holders[1].Address)
}

func TestProtocolParams_StringAndNumberShapes(t *testing.T) {
	// Some indexer versions quote the integer parameters; both decode.
	for _, body := range []string{
		`{"min_fee_a":44,"min_fee_b":155381,"coins_per_utxo_size":4310,"max_tx_size":16384,"price_mem":0.0577,"price_step":0.0000721}`,
		`{"min_fee_a":"44","min_fee_b":"155381","coins_per_utxo_size":"4310","max_tx_size":"16384","price_mem":0.0577,"price_step":0.0000721}`,
	} {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		})
		p, err := client.ProtocolParams(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(44), p.MinFeeCoefficient)
		assert.Equal(t, uint64(155381), p.MinFeeConstant)
		assert.Equal(t, uint64(16384), p.MaxTxSize)
		assert.InDelta(t, 0.0577, p.PriceMemory, 1e-9)
	}
}

func TestSubmitTx(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/cbor", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `"deadbeef00"`)
	})

	hash, err := client.SubmitTx(context.Background(), []byte{0x84})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef00", hash)
}

func TestSubmitTx_ContentionDetected(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"Bad Request","message":"transaction submit error: BadInputsUTxO [aa11#0]"}`)
	})

	_, err := client.SubmitTx(context.Background(), []byte{0x84})
	assert.ErrorIs(t, err, ErrResourceContention)
	assert.Contains(t, err.Error(), "BadInputsUTxO")
}

func TestSubmitTx_OtherRejectionIsFatal(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"Bad Request","message":"OutsideValidityIntervalUTxO"}`)
	})

	_, err := client.SubmitTx(context.Background(), []byte{0x84})
	assert.ErrorIs(t, err, ErrSubmitRejected)
	assert.NotErrorIs(t, err, ErrResourceContention)
}

func TestEvaluateTx_Success(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"EvaluationResult":{
			"spend:0":{"memory":702,"steps":300100},
			"mint:0":{"memory":1200,"steps":500000}}}}`)
	})

	units, err := client.EvaluateTx(context.Background(), []byte{0x84})
	require.NoError(t, err)
	assert.Equal(t, ExUnits{Memory: 702, Steps: 300100}, units["spend:0"])
	assert.Equal(t, ExUnits{Memory: 1200, Steps: 500000}, units["mint:0"])
}

func TestEvaluateTx_PerScriptFailureDetail(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"EvaluationFailure":{"ScriptFailures":{
			"spend:0":["validator returned false",{"missingRequiredDatums":{}}]}}}}`)
	})

	_, err := client.EvaluateTx(context.Background(), []byte{0x84})
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	require.Contains(t, evalErr.Scripts, "spend:0")
	assert.Equal(t, []string{"validator returned false", "missingRequiredDatums"}, evalErr.Scripts["spend:0"])
	assert.Contains(t, evalErr.Error(), "spend:0")
}

func TestTxStatus(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"block":"hash123","block_height":42}`)
	})

	st, err := client.TxStatus(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.True(t, st.Confirmed)
	assert.Equal(t, uint64(42), st.Height)
}

func TestTxStatus_UnknownHashIsUnsettled(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	st, err := client.TxStatus(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, st.Confirmed)
}

func TestDo_ErrorNormalization(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"payment required", http.StatusPaymentRequired, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.ProtocolParams(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDo_ConnectionErrorIsTransient(t *testing.T) {
	client := NewIndexerClient(IndexerConfig{URL: "http://localhost:1"})
	_, err := client.ProtocolParams(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveConfig(t *testing.T) {
	cfg, err := ResolveConfig(nil, nil, "preprod")
	require.NoError(t, err)
	assert.Equal(t, NetworkPresets["preprod"].URL, cfg.URL)

	cfg, err = ResolveConfig(nil, map[string]string{
		"HARVEST_INDEXER_URL": "http://env.example",
		"HARVEST_INDEXER_KEY": "envkey",
	}, "preprod")
	require.NoError(t, err)
	assert.Equal(t, "http://env.example", cfg.URL)
	assert.Equal(t, "envkey", cfg.ProjectKey)

	cfg, err = ResolveConfig(&IndexerConfig{URL: "http://flag.example"}, map[string]string{
		"HARVEST_INDEXER_URL": "http://env.example",
	}, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example", cfg.URL)

	_, err = ResolveConfig(nil, nil, "mainnet")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
}
