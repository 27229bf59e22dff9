package airdrop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Batch entry statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Amount is one address's payout inside a batch.
type Amount struct {
	Address  string `json:"address"`
	Lovelace uint64 `json:"lovelace"`
}

// BatchEntry records one batch attempt, successful or failed. An entry is
// appended and persisted before the run continues (or returns), so the log
// always reflects every attempt made.
type BatchEntry struct {
	Batch       int       `json:"batch"`
	Status      string    `json:"status"` // "success" or "failed"
	TxHash      string    `json:"tx_hash,omitempty"`
	Amounts     []Amount  `json:"amounts"`
	Lovelace    uint64    `json:"lovelace"`
	SubmittedAt time.Time `json:"submitted_at"`
	Settled     bool      `json:"settled"`
	Error       string    `json:"error,omitempty"`
}

// Summary aggregates the run's batch outcomes. Recomputed on every save.
type Summary struct {
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	TotalSent  uint64 `json:"total_sent"`
}

// Log is the on-disk record of one distribution run. A later run resumes
// by loading the log and skipping every address a successful batch already
// paid; failed batches leave their addresses eligible for retry.
type Log struct {
	RunID        string        `json:"run_id"`
	PolicyID     string        `json:"policy_id"`
	Network      string        `json:"network"`
	RatePerUnit  uint64        `json:"rate_per_unit"`
	TotalHolders int           `json:"total_holders"`
	TotalAmount  uint64        `json:"total_amount"`
	StartedAt    time.Time     `json:"started_at"`
	Batches      []*BatchEntry `json:"batches"`
	Summary      Summary       `json:"summary"`

	path string
	mu   sync.Mutex
}

// NewLog creates a fresh run log persisted at path.
func NewLog(path, policyID, network string, ratePerUnit uint64) (*Log, error) {
	l := &Log{
		RunID:       uuid.NewString(),
		PolicyID:    policyID,
		Network:     network,
		RatePerUnit: ratePerUnit,
		StartedAt:   time.Now().UTC(),
		path:        path,
	}
	if err := l.save(); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadLog reads an existing run log from path.
func LoadLog(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("airdrop: read log: %w", err)
	}
	l := &Log{path: path}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLogCorrupt, path, err)
	}
	if l.RunID == "" {
		return nil, fmt.Errorf("%w: %s: missing run id", ErrLogCorrupt, path)
	}
	return l, nil
}

// SetPlan records the run's enumerated scope before the first batch.
func (l *Log) SetPlan(totalHolders int, totalAmount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.TotalHolders = totalHolders
	l.TotalAmount = totalAmount
	return l.save()
}

// Append records a batch attempt and persists the log before returning.
func (l *Log) Append(entry *BatchEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Batches = append(l.Batches, entry)
	return l.save()
}

// PaidAddresses returns the set of addresses paid by a successful batch of
// this run. Failed batches do not count: their addresses must be retried.
func (l *Log) PaidAddresses() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	paid := make(map[string]bool)
	for _, b := range l.Batches {
		if b.Status != StatusSuccess {
			continue
		}
		for _, a := range b.Amounts {
			paid[a.Address] = true
		}
	}
	return paid
}

// TotalPaid returns the lovelace sent by successful batches so far.
func (l *Log) TotalPaid() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summarize().TotalSent
}

// summarize recomputes the aggregate outcome. Caller holds the mutex.
func (l *Log) summarize() Summary {
	var s Summary
	for _, b := range l.Batches {
		if b.Status == StatusSuccess {
			s.Successful++
			s.TotalSent += b.Lovelace
		} else {
			s.Failed++
		}
	}
	return s
}

// save writes the log through a temp file so a crash mid-write never
// corrupts the previous state. Caller holds the mutex.
func (l *Log) save() error {
	l.Summary = l.summarize()
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("airdrop: encode log: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("airdrop: create log directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("airdrop: write log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("airdrop: replace log: %w", err)
	}
	return nil
}
