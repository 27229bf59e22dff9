package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the requested resource does not exist on the
	// ledger (unknown address, asset, or consumed output).
	ErrNotFound = errors.New("ledger: not found")

	// ErrUnauthorized indicates the indexer rejected the credential. Fatal:
	// retrying with the same credential cannot succeed.
	ErrUnauthorized = errors.New("ledger: indexer rejected credential")

	// ErrUnavailable indicates a transient indexer failure (connection
	// error, rate limit, server error). Callers retry with backoff.
	ErrUnavailable = errors.New("ledger: indexer unavailable")

	// ErrInvalidResponse indicates the indexer returned a malformed or
	// unexpected payload.
	ErrInvalidResponse = errors.New("ledger: invalid response")

	// ErrResourceContention indicates a submitted transaction spends an
	// output that a competing transaction already consumed. Retryable: the
	// caller must re-fetch the current state and rebuild from scratch.
	ErrResourceContention = errors.New("ledger: input already consumed")

	// ErrSubmitRejected indicates the node rejected the transaction for a
	// reason other than contention. Fatal.
	ErrSubmitRejected = errors.New("ledger: transaction rejected")

	// ErrMissingConfig indicates the indexer endpoint or credential is not
	// configured. Fatal before any ledger interaction.
	ErrMissingConfig = errors.New("ledger: indexer not configured")
)

// EvaluationError carries the per-script failure detail extracted from an
// evaluation response. It is fatal: resubmitting an identical transaction
// fails identically, so callers must never retry it blindly.
type EvaluationError struct {
	// Scripts maps a script purpose ("spend:0", "mint:0") to the failure
	// reasons reported for it.
	Scripts map[string][]string
}

// Error renders the per-script detail in deterministic order.
func (e *EvaluationError) Error() string {
	if len(e.Scripts) == 0 {
		return "ledger: script evaluation failed"
	}
	purposes := make([]string, 0, len(e.Scripts))
	for p := range e.Scripts {
		purposes = append(purposes, p)
	}
	sort.Strings(purposes)

	var b strings.Builder
	b.WriteString("ledger: script evaluation failed:")
	for _, p := range purposes {
		fmt.Fprintf(&b, " [%s: %s]", p, strings.Join(e.Scripts[p], "; "))
	}
	return b.String()
}
