package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apas-port/harvestflow-go/datum"
)

// IndexerClient is an HTTP client for a Blockfrost-style chain indexer.
// It handles authentication, response decoding, and normalization of the
// indexer's wire shapes into the canonical Gateway types. The credential
// is held only here and never crosses the boundary to signing actors.
type IndexerClient struct {
	baseURL    string
	projectKey string
	client     *http.Client
}

// Compile-time interface check.
var _ Gateway = (*IndexerClient)(nil)

// NewIndexerClient creates a client for the given indexer endpoint. The
// project key is sent as the credential header on every request; it may be
// empty for unauthenticated local indexers.
func NewIndexerClient(cfg IndexerConfig) *IndexerClient {
	return &IndexerClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		projectKey: cfg.ProjectKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// do performs one request and decodes the JSON response into result.
// Non-2xx statuses are normalized: 404 becomes ErrNotFound, credential
// rejections become ErrUnauthorized, rate limits and server errors become
// ErrUnavailable (retryable), and 400 bodies are handed to the caller via
// the returned badRequest payload for endpoint-specific interpretation.
func (c *IndexerClient) do(ctx context.Context, method, path string, body []byte, contentType string, result interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ledger: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.projectKey != "" {
		req.Header.Set("project_id", c.projectKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("%w: decode body: %w", ErrInvalidResponse, err)
			}
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)

	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)

	case resp.StatusCode == http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &badRequestError{body: msg}

	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%w: HTTP %d: %s", ErrInvalidResponse, resp.StatusCode, string(msg))
}

// badRequestError carries a raw 400 body up to the endpoint wrapper that
// knows how to interpret it.
type badRequestError struct {
	body []byte
}

func (e *badRequestError) Error() string {
	return fmt.Sprintf("ledger: bad request: %s", string(e.body))
}

// --- wire shapes -----------------------------------------------------------

// wireAmount is one unit/quantity pair. Quantities arrive as decimal
// strings and are normalized to uint64 on decode.
type wireAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// wireUtxo maps the indexer's UTXO shape. The datum arrives either as a
// datum-JSON document or as a CBOR hex string depending on indexer
// version; decodeUtxo folds both into a canonical datum.Value.
type wireUtxo struct {
	TxHash      string          `json:"tx_hash"`
	OutputIndex uint32          `json:"output_index"`
	Address     string          `json:"address"`
	Amount      []wireAmount    `json:"amount"`
	InlineDatum json.RawMessage `json:"inline_datum"`
}

func decodeUtxo(w *wireUtxo) (*Utxo, error) {
	u := &Utxo{
		TxHash:  w.TxHash,
		Index:   w.OutputIndex,
		Address: w.Address,
		Value:   make(map[string]uint64, len(w.Amount)),
	}
	for _, a := range w.Amount {
		q, err := strconv.ParseUint(a.Quantity, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: quantity %q: %w", ErrInvalidResponse, a.Quantity, err)
		}
		u.Value[a.Unit] += q
	}

	if len(w.InlineDatum) > 0 && string(w.InlineDatum) != "null" {
		v, err := decodeWireDatum(w.InlineDatum)
		if err != nil {
			return nil, err
		}
		u.InlineDatum = v
	}
	return u, nil
}

// decodeWireDatum normalizes the two datum encodings the indexer emits:
// newer versions inline the datum as JSON, older ones as a CBOR hex
// string.
func decodeWireDatum(raw json.RawMessage) (*datum.Value, error) {
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err == nil {
		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("%w: datum hex: %w", ErrInvalidResponse, err)
		}
		v, err := datum.DecodeCBOR(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		return v, nil
	}

	v, err := datum.DecodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return v, nil
}

// --- Gateway implementation ------------------------------------------------

// UtxosByAddress returns all unspent outputs for the address. An address
// unknown to the indexer holds no outputs.
func (c *IndexerClient) UtxosByAddress(ctx context.Context, address string) ([]*Utxo, error) {
	var wires []wireUtxo
	err := c.do(ctx, http.MethodGet, "/addresses/"+address+"/utxos", nil, "", &wires)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	utxos := make([]*Utxo, len(wires))
	for i := range wires {
		u, err := decodeUtxo(&wires[i])
		if err != nil {
			return nil, err
		}
		utxos[i] = u
	}
	return utxos, nil
}

// UtxoByUnit returns the single live output holding the given asset unit.
func (c *IndexerClient) UtxoByUnit(ctx context.Context, unit string) (*Utxo, error) {
	var wire wireUtxo
	if err := c.do(ctx, http.MethodGet, "/assets/"+unit+"/utxo", nil, "", &wire); err != nil {
		return nil, err
	}
	return decodeUtxo(&wire)
}

// AssetHolders returns one page of current holders of the unit.
func (c *IndexerClient) AssetHolders(ctx context.Context, unit string, page int) ([]*Holder, error) {
	type wireHolder struct {
		Address  string `json:"address"`
		Quantity string `json:"quantity"`
	}
	var wires []wireHolder
	path := fmt.Sprintf("/assets/%s/addresses?count=%d&page=%d", unit, PageSize, page)
	err := c.do(ctx, http.MethodGet, path, nil, "", &wires)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	holders := make([]*Holder, len(wires))
	for i, w := range wires {
		q, err := strconv.ParseUint(w.Quantity, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: holder quantity %q: %w", ErrInvalidResponse, w.Quantity, err)
		}
		holders[i] = &Holder{Address: w.Address, Quantity: q}
	}
	return holders, nil
}

// PolicyAssets returns one page of assets issued under the policy.
func (c *IndexerClient) PolicyAssets(ctx context.Context, policyID string, page int) ([]*Asset, error) {
	type wireAsset struct {
		Asset    string `json:"asset"`
		Quantity string `json:"quantity"`
	}
	var wires []wireAsset
	path := fmt.Sprintf("/assets/policy/%s?count=%d&page=%d", policyID, PageSize, page)
	err := c.do(ctx, http.MethodGet, path, nil, "", &wires)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	assets := make([]*Asset, len(wires))
	for i, w := range wires {
		q, err := strconv.ParseUint(w.Quantity, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: asset quantity %q: %w", ErrInvalidResponse, w.Quantity, err)
		}
		assets[i] = &Asset{Unit: w.Asset, Quantity: q}
	}
	return assets, nil
}

// ProtocolParams returns the current protocol parameters.
func (c *IndexerClient) ProtocolParams(ctx context.Context) (*ProtocolParams, error) {
	// Integer-valued parameters still arrive as strings in some indexer
	// versions; json.Number absorbs both.
	type wireParams struct {
		MinFeeA          json.Number `json:"min_fee_a"`
		MinFeeB          json.Number `json:"min_fee_b"`
		CoinsPerUtxoByte json.Number `json:"coins_per_utxo_size"`
		MaxTxSize        json.Number `json:"max_tx_size"`
		PriceMem         float64     `json:"price_mem"`
		PriceStep        float64     `json:"price_step"`
	}
	var w wireParams
	if err := c.do(ctx, http.MethodGet, "/epochs/latest/parameters", nil, "", &w); err != nil {
		return nil, err
	}

	p := &ProtocolParams{PriceMemory: w.PriceMem, PriceSteps: w.PriceStep}
	var err error
	if p.MinFeeCoefficient, err = parseNum(w.MinFeeA); err != nil {
		return nil, fmt.Errorf("%w: min_fee_a: %w", ErrInvalidResponse, err)
	}
	if p.MinFeeConstant, err = parseNum(w.MinFeeB); err != nil {
		return nil, fmt.Errorf("%w: min_fee_b: %w", ErrInvalidResponse, err)
	}
	if p.CoinsPerUtxoByte, err = parseNum(w.CoinsPerUtxoByte); err != nil {
		return nil, fmt.Errorf("%w: coins_per_utxo_size: %w", ErrInvalidResponse, err)
	}
	if p.MaxTxSize, err = parseNum(w.MaxTxSize); err != nil {
		return nil, fmt.Errorf("%w: max_tx_size: %w", ErrInvalidResponse, err)
	}
	return p, nil
}

// SubmitTx submits a signed transaction. Rejections caused by an already
// consumed input surface as ErrResourceContention so callers can rebuild
// against the fresh state; every other rejection is fatal.
func (c *IndexerClient) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	var txHash string
	err := c.do(ctx, http.MethodPost, "/tx/submit", rawTx, "application/cbor", &txHash)
	if err == nil {
		return txHash, nil
	}

	var bad *badRequestError
	if errors.As(err, &bad) {
		if isContentionBody(bad.body) {
			return "", fmt.Errorf("%w: %s", ErrResourceContention, submitMessage(bad.body))
		}
		return "", fmt.Errorf("%w: %s", ErrSubmitRejected, submitMessage(bad.body))
	}
	return "", err
}

// EvaluateTx evaluates the transaction's scripts. Per-script failure
// detail is extracted from the nested response into an *EvaluationError.
func (c *IndexerClient) EvaluateTx(ctx context.Context, rawTx []byte) (map[string]ExUnits, error) {
	var wire struct {
		Result struct {
			EvaluationResult  map[string]ExUnits `json:"EvaluationResult"`
			EvaluationFailure *struct {
				ScriptFailures map[string][]json.RawMessage `json:"ScriptFailures"`
			} `json:"EvaluationFailure"`
		} `json:"result"`
	}

	err := c.do(ctx, http.MethodPost, "/utils/txs/evaluate", rawTx, "application/cbor", &wire)
	if err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return nil, fmt.Errorf("%w: %s", ErrSubmitRejected, submitMessage(bad.body))
		}
		return nil, err
	}

	if wire.Result.EvaluationFailure != nil {
		evalErr := &EvaluationError{Scripts: make(map[string][]string)}
		for purpose, reasons := range wire.Result.EvaluationFailure.ScriptFailures {
			for _, r := range reasons {
				evalErr.Scripts[purpose] = append(evalErr.Scripts[purpose], failureReason(r))
			}
		}
		return nil, evalErr
	}
	if wire.Result.EvaluationResult == nil {
		return nil, fmt.Errorf("%w: evaluation response carries neither result nor failure", ErrInvalidResponse)
	}
	return wire.Result.EvaluationResult, nil
}

// TxStatus reports settlement. An unknown hash is "not settled yet", not
// an error: submission and indexing race.
func (c *IndexerClient) TxStatus(ctx context.Context, txHash string) (*TxStatus, error) {
	var wire struct {
		Block       string `json:"block"`
		BlockHeight uint64 `json:"block_height"`
	}
	err := c.do(ctx, http.MethodGet, "/txs/"+txHash, nil, "", &wire)
	if errors.Is(err, ErrNotFound) {
		return &TxStatus{Confirmed: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &TxStatus{Confirmed: wire.Block != "", Block: wire.Block, Height: wire.BlockHeight}, nil
}

// --- helpers ---------------------------------------------------------------

// contentionMarkers are the node error tags meaning "this transaction
// spends an output that no longer exists".
var contentionMarkers = []string{"BadInputsUTxO", "ValueNotConservedUTxO", "UtxoNotFound"}

func isContentionBody(body []byte) bool {
	s := string(body)
	for _, marker := range contentionMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// submitMessage extracts the human-readable message from a rejection body,
// falling back to the raw body.
func submitMessage(body []byte) string {
	var wire struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Message != "" {
		return wire.Message
	}
	return string(body)
}

// failureReason renders one script failure entry. Failures arrive either
// as plain strings or as single-key objects naming the validator error.
func failureReason(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return strings.Join(keys, ",")
	}
	return string(raw)
}

func parseNum(n json.Number) (uint64, error) {
	return strconv.ParseUint(n.String(), 10, 64)
}

