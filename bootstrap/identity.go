// Package bootstrap performs the one-time genesis of a protocol instance:
// it selects a funding output, derives the protocol's cryptographic
// identity from it, produces the first oracle record with its authenticity
// token, and durably persists the identity reference. Bootstrap is not
// idempotent: a different funding output yields an unrelated protocol.
package bootstrap

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// IdentityReference is the immutable reference to the bootstrap funding
// output. Every unit the protocol will ever issue derives its identity
// from this reference; losing it makes the live protocol unreachable even
// though its state still exists on the ledger.
type IdentityReference struct {
	TxHash string `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// String renders the reference as "txhash#index".
func (r IdentityReference) String() string {
	return fmt.Sprintf("%s#%d", r.TxHash, r.Index)
}

// ParseIdentityReference parses a "txhash#index" string.
func ParseIdentityReference(s string) (IdentityReference, error) {
	i := strings.LastIndexByte(s, '#')
	if i <= 0 || i == len(s)-1 {
		return IdentityReference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}
	idx, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return IdentityReference{}, fmt.Errorf("%w: %q: %w", ErrInvalidReference, s, err)
	}
	if _, err := hex.DecodeString(s[:i]); err != nil {
		return IdentityReference{}, fmt.Errorf("%w: %q: %w", ErrInvalidReference, s, err)
	}
	return IdentityReference{TxHash: s[:i], Index: uint32(idx)}, nil
}

// Script identity domain tag. The policy script is parameterized by the
// funding outpoint, so the derived identity is unique per bootstrap.
const scriptVersionTag = 0x02

// DeriveIdentity computes the protocol's policy identity from its
// identity reference: the blake2b-224 digest of the version-tagged,
// outpoint-parameterized script bytes, hex encoded.
func DeriveIdentity(ref IdentityReference) (string, error) {
	txHash, err := hex.DecodeString(ref.TxHash)
	if err != nil {
		return "", fmt.Errorf("%w: tx hash: %w", ErrInvalidReference, err)
	}
	script, err := cbor.Marshal([]interface{}{txHash, ref.Index})
	if err != nil {
		return "", fmt.Errorf("bootstrap: encode script parameter: %w", err)
	}

	h, err := blake2b.New(28, nil)
	if err != nil {
		return "", fmt.Errorf("bootstrap: blake2b: %w", err)
	}
	h.Write([]byte{scriptVersionTag})
	h.Write(script)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StateAddress returns the script address holding the protocol's state
// UTXO, derived deterministically from the policy identity.
func StateAddress(policyID string) string {
	return "state1" + policyID
}
