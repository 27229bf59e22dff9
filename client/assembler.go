// Package client drives prepared transactions through signing, evaluation,
// submission and settlement. Its central loop owns the protocol's
// concurrency story: a contention rejection means another writer consumed
// the state UTXO first, so the loop rebuilds from fresh ledger state and
// tries again rather than resubmitting a stale transaction.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/apas-port/harvestflow-go/ledger"
	"github.com/apas-port/harvestflow-go/txbuild"
)

// BuildFunc produces a fresh unsigned transaction from current ledger
// state. The assembler calls it once per attempt; after a contention
// rejection the rebuild picks up the successor state automatically.
type BuildFunc func(ctx context.Context) (*txbuild.Unsigned, error)

// Outcome reports what happened to one executed transaction. Settled is
// false when the transaction was accepted but did not confirm within the
// wait budget; the hash lets the caller check again later.
type Outcome struct {
	TxHash   string
	Fee      uint64
	Settled  bool
	Attempts int
}

// Options tunes the assembler's retry and wait behavior. Zero values
// select the defaults.
type Options struct {
	MaxAttempts   int           // build/sign/submit attempts (default 5)
	RetryDelay    time.Duration // base rebuild pause, doubled per failure (default 2s)
	SettleTimeout time.Duration // settlement wait budget (default 90s)
	PollInterval  time.Duration // settlement poll spacing (default 5s)
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 90 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	return o
}

// Assembler executes prepared transactions against a ledger gateway.
type Assembler struct {
	gw     ledger.Gateway
	signer Signer
	opts   Options
	log    *logrus.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewAssembler creates an assembler. A nil logger selects the standard
// logrus logger.
func NewAssembler(gw ledger.Gateway, signer Signer, log *logrus.Logger, opts Options) *Assembler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assembler{
		gw:     gw,
		signer: signer,
		opts:   opts.withDefaults(),
		log:    log,
		sleep:  sleepCtx,
	}
}

// Execute runs one transaction to completion: build, sign, evaluate,
// submit, await settlement. Contention and transient indexer failures
// trigger a bounded rebuild-and-retry; script evaluation failures and
// permanent rejections return immediately since retrying cannot fix them.
//
// A settlement timeout is soft: the transaction is on the wire and may
// still confirm, so Execute returns the outcome with Settled false instead
// of an error.
func (a *Assembler) Execute(ctx context.Context, build BuildFunc) (*Outcome, error) {
	if build == nil {
		return nil, fmt.Errorf("%w: build function", ErrNilParam)
	}

	var lastErr error
	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := a.sleep(ctx, backoff(a.opts.RetryDelay, attempt)); err != nil {
				return nil, err
			}
		}

		unsigned, err := build(ctx)
		if err != nil {
			if retryable(err) {
				a.log.WithError(err).WithField("attempt", attempt).Warn("rebuild failed, retrying")
				lastErr = err
				continue
			}
			return nil, err
		}

		signed, err := a.signer.Sign(ctx, unsigned)
		if err != nil {
			return nil, err
		}

		if err := a.evaluate(ctx, signed); err != nil {
			return nil, err
		}

		txHash, err := a.gw.SubmitTx(ctx, signed)
		if err != nil {
			if retryable(err) {
				a.log.WithError(err).WithField("attempt", attempt).Warn("submit rejected, rebuilding")
				lastErr = err
				continue
			}
			return nil, err
		}

		a.log.WithFields(logrus.Fields{
			"tx":      txHash,
			"fee":     unsigned.Fee,
			"attempt": attempt,
		}).Info("transaction submitted")

		settled, err := a.awaitSettlement(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if !settled {
			a.log.WithField("tx", txHash).Warn("settlement wait elapsed, transaction may still confirm")
		}
		return &Outcome{TxHash: txHash, Fee: unsigned.Fee, Settled: settled, Attempts: attempt}, nil
	}

	return nil, fmt.Errorf("%w: %d attempts: %w", ErrRetriesExhausted, a.opts.MaxAttempts, lastErr)
}

// evaluate runs script evaluation before submission. A script failure is
// deterministic and aborts; an unavailable evaluator is tolerated because
// the builder already priced a conservative budget.
func (a *Assembler) evaluate(ctx context.Context, signed []byte) error {
	_, err := a.gw.EvaluateTx(ctx, signed)
	if err == nil {
		return nil
	}
	var evalErr *ledger.EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr
	}
	if errors.Is(err, ledger.ErrUnavailable) {
		a.log.WithError(err).Warn("evaluation unavailable, submitting with default budget")
		return nil
	}
	return err
}

// awaitSettlement polls until the transaction confirms or the wait budget
// elapses. Returns false, nil on timeout.
func (a *Assembler) awaitSettlement(ctx context.Context, txHash string) (bool, error) {
	polls := int(a.opts.SettleTimeout / a.opts.PollInterval)
	for i := 0; i < polls; i++ {
		if err := a.sleep(ctx, a.opts.PollInterval); err != nil {
			return false, err
		}
		status, err := a.gw.TxStatus(ctx, txHash)
		if err != nil {
			if errors.Is(err, ledger.ErrUnavailable) {
				continue
			}
			return false, err
		}
		if status.Confirmed {
			a.log.WithFields(logrus.Fields{"tx": txHash, "block": status.Block}).Info("transaction settled")
			return true, nil
		}
	}
	return false, nil
}

// AwaitUnit waits until a live UTXO holds the given asset unit, polling at
// the configured interval. Used after bootstrap or a transition to wait
// for the successor state to become visible. Unlike settlement this wait
// is hard: callers need the resource to continue.
func (a *Assembler) AwaitUnit(ctx context.Context, unit string, budget time.Duration) (*ledger.Utxo, error) {
	polls := int(budget / a.opts.PollInterval)
	if polls < 1 {
		polls = 1
	}
	for i := 0; i < polls; i++ {
		utxo, err := a.gw.UtxoByUnit(ctx, unit)
		if err == nil {
			return utxo, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, ledger.ErrUnavailable) {
			return nil, err
		}
		if err := a.sleep(ctx, a.opts.PollInterval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: unit %s", ErrResourceTimeout, unit)
}

// backoffMax caps the exponential retry delay.
const backoffMax = 30 * time.Second

// backoff returns the pause before the given attempt: the configured base
// delay doubled for every prior failure, capped at backoffMax.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-2)
	if d <= 0 || d > backoffMax {
		return backoffMax
	}
	return d
}

// retryable reports whether an error warrants a rebuild-and-retry:
// contention means the consumed state changed under us, unavailability
// means the indexer may recover.
func retryable(err error) bool {
	return errors.Is(err, ledger.ErrResourceContention) || errors.Is(err, ledger.ErrUnavailable)
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
