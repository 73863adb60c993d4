package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/domalend/oracle/internal/chain"
	"github.com/domalend/oracle/internal/domain"
)

// Oracle is the on-chain price store the Broadcaster writes to.
type Oracle interface {
	TokenValue(ctx context.Context, token common.Address) (*big.Int, error)
	SubmitUpdate(ctx context.Context, token common.Address, value *big.Int) (*types.Transaction, error)
	WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	SignerBalance(ctx context.Context) (*big.Int, error)
}

// Options tunes the Broadcaster.
type Options struct {
	MinPercentChange float64       // changes strictly below this are skipped
	ItemDelay        time.Duration // pause after each submitted transaction
	ConfirmTimeout   time.Duration // bound on waiting for a receipt
}

// Broadcaster diffs valuations against the oracle and submits material changes.
// All writes go through one mutex so callers sharing the signer never interleave nonces.
type Broadcaster struct {
	oracle Oracle
	opts   Options
	mu     sync.Mutex
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Broadcaster.
func New(oracle Oracle, opts Options) *Broadcaster {
	return &Broadcaster{
		oracle: oracle,
		opts:   opts,
		sleep:  sleepCtx,
	}
}

// UpdatePrice processes a single update and returns its outcome.
func (b *Broadcaster) UpdatePrice(ctx context.Context, u domain.PriceUpdate) domain.UpdateOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	outcome, _ := b.update(ctx, u)
	return outcome
}

// Broadcast processes the batch in order. Per-item failures are recorded, never returned;
// the only error is ErrInsufficientFunds, in which case nothing is attempted.
func (b *Broadcaster) Broadcast(ctx context.Context, batch []domain.PriceUpdate) (domain.BroadcastSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var summary domain.BroadcastSummary
	if len(batch) == 0 {
		return summary, nil
	}

	balance, err := b.oracle.SignerBalance(ctx)
	switch {
	case err != nil:
		slog.Warn("Broadcaster: could not read signer balance, continuing", "error", err)
	case balance.Sign() <= 0:
		slog.Error("Broadcaster: signer has zero balance, skipping batch", "items", len(batch))
		return summary, domain.ErrInsufficientFunds
	}

	slog.Info("Broadcaster: starting batch", "items", len(batch))

	for i, u := range batch {
		if err := ctx.Err(); err != nil {
			for _, rest := range batch[i:] {
				summary.Add(failed(rest, nil, fmt.Errorf("batch interrupted: %w", err)))
			}
			slog.Warn("Broadcaster: batch interrupted", "remaining", len(batch)-i, "error", err)
			break
		}

		outcome, submitted := b.update(ctx, u)
		summary.Add(outcome)

		if submitted && i < len(batch)-1 && b.opts.ItemDelay > 0 {
			// cancellation is picked up at the top of the loop
			_ = b.sleep(ctx, b.opts.ItemDelay)
		}
	}

	slog.Info("Broadcaster: batch complete",
		"successful", summary.Successful, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// update runs the diff/skip/submit/confirm sequence for one item.
// submitted reports whether a transaction was sent.
func (b *Broadcaster) update(ctx context.Context, u domain.PriceUpdate) (outcome domain.UpdateOutcome, submitted bool) {
	token, err := domain.ParseAddress(u.TokenAddress)
	if err != nil {
		return b.logFailed(failed(u, nil, err)), false
	}
	newValue, err := domain.ParseFixedPoint(u.ValuationFixedPoint)
	if err != nil {
		return b.logFailed(failed(u, nil, err)), false
	}

	oldValue, err := b.oracle.TokenValue(ctx, token)
	if err != nil {
		if !errors.Is(err, chain.ErrNotSet) {
			return b.logFailed(failed(u, newValue, err)), false
		}
		oldValue = new(big.Int)
	}

	outcome = domain.UpdateOutcome{
		TokenAddress:  u.TokenAddress,
		Label:         u.Label,
		OldValue:      oldValue.String(),
		NewValue:      newValue.String(),
		PercentChange: domain.PercentChange(oldValue, newValue),
		At:            time.Now(),
	}

	if b.shouldSkip(oldValue, newValue, outcome.PercentChange) {
		outcome.Status = domain.UpdateSkipped
		slog.Debug("Broadcaster: change below threshold, skipped",
			"token", u.TokenAddress, "label", u.Label, "percentChange", outcome.PercentChange)
		return outcome, false
	}

	tx, err := b.oracle.SubmitUpdate(ctx, token, newValue)
	if err != nil {
		outcome.Status = domain.UpdateFailed
		outcome.Error = fmt.Errorf("%w: %w", domain.ErrTransaction, err).Error()
		return b.logFailed(outcome), false
	}
	outcome.TxHash = tx.Hash().Hex()

	waitCtx, cancel := context.WithTimeout(ctx, b.confirmTimeout())
	defer cancel()

	receipt, err := b.oracle.WaitConfirmed(waitCtx, tx)
	if receipt != nil {
		outcome.BlockNumber = receipt.BlockNumber.Uint64()
		outcome.GasUsed = receipt.GasUsed
	}
	if err != nil {
		outcome.Status = domain.UpdateFailed
		outcome.Error = fmt.Errorf("%w: %w", domain.ErrTransaction, err).Error()
		return b.logFailed(outcome), true
	}

	outcome.Status = domain.UpdateSuccessful
	slog.Info("Broadcaster: price updated",
		"token", u.TokenAddress, "label", u.Label,
		"old", domain.FormatFixedPoint(oldValue), "new", domain.FormatFixedPoint(newValue),
		"percentChange", outcome.PercentChange, "tx", outcome.TxHash,
		"block", outcome.BlockNumber, "gasUsed", outcome.GasUsed)
	return outcome, true
}

// shouldSkip reports whether both values are zero or the change is strictly below MinPercentChange.
func (b *Broadcaster) shouldSkip(oldValue, newValue *big.Int, percent float64) bool {
	if oldValue.Sign() == 0 {
		return newValue.Sign() == 0
	}
	return math.Abs(percent) < b.opts.MinPercentChange
}

func (b *Broadcaster) confirmTimeout() time.Duration {
	if b.opts.ConfirmTimeout <= 0 {
		return 3 * time.Minute
	}
	return b.opts.ConfirmTimeout
}

func (b *Broadcaster) logFailed(o domain.UpdateOutcome) domain.UpdateOutcome {
	slog.Error("Broadcaster: update failed", "token", o.TokenAddress, "label", o.Label, "tx", o.TxHash, "error", o.Error)
	return o
}

func failed(u domain.PriceUpdate, newValue *big.Int, err error) domain.UpdateOutcome {
	o := domain.UpdateOutcome{
		TokenAddress: u.TokenAddress,
		Label:        u.Label,
		Status:       domain.UpdateFailed,
		NewValue:     u.ValuationFixedPoint,
		Error:        err.Error(),
		At:           time.Now(),
	}
	if newValue != nil {
		o.NewValue = newValue.String()
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
