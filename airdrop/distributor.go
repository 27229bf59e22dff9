package airdrop

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/apas-port/harvestflow-go/client"
	"github.com/apas-port/harvestflow-go/ledger"
	"github.com/apas-port/harvestflow-go/txbuild"
)

// DefaultBatchSize is the per-transaction payout ceiling applied when the
// caller does not set one. Driven by transaction size limits, not by
// protocol rules.
const DefaultBatchSize = 50

// DefaultInterBatchDelay spaces consecutive batches apart so each batch's
// change output is visible to the next batch's coin selection.
const DefaultInterBatchDelay = 20 * time.Second

// feeBudgetLovelace is the lovelace reserved per batch when selecting
// funding inputs.
const feeBudgetLovelace = 2_000_000

// RunParams configures one distribution run.
type RunParams struct {
	PolicyID        string
	Network         string
	FundingAddress  string
	RatePerUnit     uint64 // lovelace per held unit
	BatchSize       int    // 0 selects DefaultBatchSize
	LogPath         string // where a fresh run writes its log
	ResumePath      string // existing log to resume; empty starts fresh
	InterBatchDelay time.Duration
}

func (p *RunParams) validate() error {
	if p.PolicyID == "" || p.FundingAddress == "" {
		return fmt.Errorf("%w: policy and funding address are required", ErrNilParam)
	}
	if p.RatePerUnit == 0 {
		return ErrInvalidRate
	}
	if p.ResumePath == "" && p.LogPath == "" {
		return fmt.Errorf("%w: log path", ErrNilParam)
	}
	return nil
}

// Report summarizes a completed run.
type Report struct {
	Log           *Log
	Holders       int    // eligible holders enumerated
	Paid          int    // addresses paid by this invocation
	Skipped       int    // addresses already paid by a resumed log
	Batches       int    // batches submitted by this invocation
	TotalLovelace uint64 // lovelace paid by this invocation
}

// Distributor runs reward distributions against a ledger gateway.
type Distributor struct {
	gw        ledger.Gateway
	assembler *client.Assembler
	log       *logrus.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDistributor creates a distributor. A nil logger selects the standard
// logrus logger.
func NewDistributor(gw ledger.Gateway, assembler *client.Assembler, log *logrus.Logger) *Distributor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Distributor{gw: gw, assembler: assembler, log: log, sleep: sleepCtx}
}

// Run executes one distribution: enumerate holders, compute payouts, skip
// addresses a resumed log already paid, verify the funding wallet covers
// everything, then submit batches strictly sequentially. Each batch is
// appended to the log before the next starts, so an interrupted run
// resumes without double-paying.
func (d *Distributor) Run(ctx context.Context, params *RunParams) (*Report, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params", ErrNilParam)
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	delay := params.InterBatchDelay
	if delay <= 0 {
		delay = DefaultInterBatchDelay
	}

	holdings, err := EnumerateHolders(ctx, d.gw, params.PolicyID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: policy %s", ErrNoHolders, params.PolicyID)
	}
	payouts, err := ComputePayouts(holdings, params.RatePerUnit)
	if err != nil {
		return nil, err
	}

	var runLog *Log
	if params.ResumePath != "" {
		if runLog, err = LoadLog(params.ResumePath); err != nil {
			return nil, err
		}
		// A log from another protocol or network has a paid-set that says
		// nothing about this run's holders.
		if runLog.PolicyID != params.PolicyID {
			return nil, fmt.Errorf("%w: log policy %s, run policy %s",
				ErrLogMismatch, runLog.PolicyID, params.PolicyID)
		}
		if runLog.Network != params.Network {
			return nil, fmt.Errorf("%w: log network %q, run network %q",
				ErrLogMismatch, runLog.Network, params.Network)
		}
		if runLog.RatePerUnit != params.RatePerUnit {
			d.log.WithFields(logrus.Fields{
				"log_rate": runLog.RatePerUnit,
				"run_rate": params.RatePerUnit,
			}).Warn("resuming with a different rate than the original run")
		}
		d.log.WithFields(logrus.Fields{
			"run":     runLog.RunID,
			"batches": len(runLog.Batches),
		}).Info("resuming distribution")
	} else {
		if runLog, err = NewLog(params.LogPath, params.PolicyID, params.Network, params.RatePerUnit); err != nil {
			return nil, err
		}
	}

	if err := runLog.SetPlan(len(holdings), batchTotal(payouts)); err != nil {
		return nil, err
	}

	paid := runLog.PaidAddresses()
	remaining := make([]*Payout, 0, len(payouts))
	skipped := 0
	for _, p := range payouts {
		if paid[p.Address] {
			skipped++
			continue
		}
		remaining = append(remaining, p)
	}

	report := &Report{Log: runLog, Holders: len(holdings), Skipped: skipped}
	if len(remaining) == 0 {
		d.log.Info("every holder already paid, nothing to do")
		return report, nil
	}

	pp, err := d.gw.ProtocolParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("airdrop: protocol parameters: %w", err)
	}

	// Payouts below the ledger's minimum output value are raised to it;
	// an output that cannot exist pays nothing.
	minOut := txbuild.MinOutputLovelace(pp, &txbuild.Output{
		Value: map[string]uint64{ledger.LovelaceUnit: 1},
	})
	for _, p := range remaining {
		if p.Lovelace < minOut {
			d.log.WithFields(logrus.Fields{
				"address": p.Address,
				"payout":  p.Lovelace,
				"minimum": minOut,
			}).Warn("payout below minimum output value, raising")
			p.Lovelace = minOut
		}
	}

	batches := PartitionBatches(remaining, batchSize)
	if err := d.checkFunds(ctx, params.FundingAddress, batches, pp); err != nil {
		return nil, err
	}

	for i, batch := range batches {
		batchNo := len(runLog.Batches) + 1
		outcome, batchErr := d.runBatch(ctx, params.FundingAddress, batch, pp)
		if batchErr != nil {
			// The failed attempt is logged before the run aborts, so the
			// log reflects every batch that was tried.
			failed := &BatchEntry{
				Batch:       batchNo,
				Status:      StatusFailed,
				Amounts:     batchAmounts(batch),
				Lovelace:    batchTotal(batch),
				SubmittedAt: time.Now().UTC(),
				Error:       batchErr.Error(),
			}
			if logErr := runLog.Append(failed); logErr != nil {
				d.log.WithError(logErr).Error("could not log failed batch")
			}
			return nil, fmt.Errorf("airdrop: batch %d: %w", batchNo, batchErr)
		}

		entry := &BatchEntry{
			Batch:       batchNo,
			Status:      StatusSuccess,
			TxHash:      outcome.TxHash,
			Amounts:     batchAmounts(batch),
			Lovelace:    batchTotal(batch),
			SubmittedAt: time.Now().UTC(),
			Settled:     outcome.Settled,
		}
		if err := runLog.Append(entry); err != nil {
			return nil, err
		}
		report.Batches++
		report.Paid += len(batch)
		report.TotalLovelace += entry.Lovelace

		d.log.WithFields(logrus.Fields{
			"batch":     batchNo,
			"tx":        outcome.TxHash,
			"addresses": len(batch),
			"lovelace":  entry.Lovelace,
			"settled":   outcome.Settled,
		}).Info("batch complete")

		if i < len(batches)-1 {
			if err := d.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	return report, nil
}

// checkFunds verifies the funding wallet covers every payout plus an
// estimated fee per batch before anything is submitted.
func (d *Distributor) checkFunds(ctx context.Context, addr string, batches [][]*Payout, pp *ledger.ProtocolParams) error {
	var need uint64
	for _, batch := range batches {
		need += batchTotal(batch)
		size := txbuild.EstimateTxSize(4, len(batch)+1, 0, 0)
		need += pp.MinFeeConstant + pp.MinFeeCoefficient*size
	}

	utxos, err := d.gw.UtxosByAddress(ctx, addr)
	if err != nil {
		return fmt.Errorf("airdrop: query funding wallet: %w", err)
	}
	var have uint64
	for _, u := range utxos {
		if len(u.Value) == 1 {
			have += u.Lovelace()
		}
	}
	if have < need {
		return fmt.Errorf("%w: need %d lovelace, wallet holds %d", ErrInsufficientFunds, need, have)
	}
	return nil
}

// runBatch builds and executes one batch transaction through the
// assembler's contention-aware loop.
func (d *Distributor) runBatch(ctx context.Context, addr string, batch []*Payout, pp *ledger.ProtocolParams) (*client.Outcome, error) {
	build := func(ctx context.Context) (*txbuild.Unsigned, error) {
		utxos, err := d.gw.UtxosByAddress(ctx, addr)
		if err != nil {
			return nil, err
		}
		selected, err := txbuild.SelectCoins(utxos, batchTotal(batch)+feeBudgetLovelace)
		if err != nil {
			return nil, err
		}

		builder := txbuild.NewBuilder(pp)
		for _, u := range selected {
			builder.AddInput(u)
		}
		for _, p := range batch {
			builder.AddOutput(txbuild.Output{
				Address: p.Address,
				Value:   map[string]uint64{ledger.LovelaceUnit: p.Lovelace},
			})
		}
		builder.SetChange(addr)
		return builder.Build()
	}
	return d.assembler.Execute(ctx, build)
}

func batchTotal(batch []*Payout) uint64 {
	var total uint64
	for _, p := range batch {
		total += p.Lovelace
	}
	return total
}

func batchAmounts(batch []*Payout) []Amount {
	amounts := make([]Amount, len(batch))
	for i, p := range batch {
		amounts[i] = Amount{Address: p.Address, Lovelace: p.Lovelace}
	}
	return amounts
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
