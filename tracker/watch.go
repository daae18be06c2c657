package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/0xPolygon/txtrace/rpc"
	"github.com/sethvargo/go-retry"
	"github.com/umbracle/ethgo"
)

var (
	errReceiptPending = errors.New("receipt not available yet")
	errNonceConsumed  = errors.New("sender nonce consumed by another transaction")
)

// watch drives a record to its terminal state: first confirmation, optional
// extra confirmations with reorg handling, then the receipt outcome. Other
// records with the same sender and nonce are marked dropped before the
// completion signal of this record is released, so an observer woken by one
// record always sees a consistent history.
func (t *Tracker) watch(ctx context.Context, rec *Record, requiredConfs uint64) {
	var receipt *ethgo.Receipt

	for {
		found, err := t.waitFirstConfirmation(ctx, rec)
		if err != nil {
			if errors.Is(err, errNonceConsumed) {
				t.logger.Debug("transaction dropped", "hash", rec.Hash, "nonce", rec.Nonce)
				rec.markDropped()
			}

			// context cancellation leaves the record pending
			return
		}

		receipt = found

		uncled, err := t.waitExtraConfirmations(ctx, rec, &receipt, requiredConfs)
		if err != nil {
			return
		}

		if !uncled {
			break
		}

		// the inclusion block was reorged out, start over
		t.logger.Debug("transaction lost in reorg", "hash", rec.Hash, "block", receipt.BlockNumber)
	}

	rec.markMined(receipt)

	for _, sibling := range t.history.Siblings(rec) {
		sibling.markDropped()
	}

	rec.signal()

	t.logger.Debug("transaction finalized",
		"hash", rec.Hash,
		"status", rec.Status(),
		"block", receipt.BlockNumber,
		"gasUsed", receipt.GasUsed,
	)

	t.evaluateCoverage(rec)
}

// Wait blocks until the record is terminal and its inclusion block carries at
// least requiredConfs confirmations. A record confirmed by an earlier call
// with a lower confirmation target re-enters the confirmation wait; when the
// inclusion block was reorged out in the meantime the wait restarts from the
// first confirmation.
func (t *Tracker) Wait(ctx context.Context, rec *Record, requiredConfs uint64) error {
	if err := rec.Wait(ctx); err != nil {
		return err
	}

	if rec.Status() == StatusDropped {
		return nil
	}

	if confs, err := rec.Confirmations(); err == nil && confs >= requiredConfs {
		return nil
	}

	for {
		receipt, err := t.gateway.GetTransactionReceipt(rec.Hash)
		if err != nil && !rpc.IsNotFound(err) {
			return err
		}

		if err != nil || receipt.BlockHash == (ethgo.Hash{}) {
			// the inclusion block no longer exists, wait for re-inclusion
			receipt, err = t.waitFirstConfirmation(ctx, rec)
			if err != nil {
				if errors.Is(err, errNonceConsumed) {
					return ErrDropped
				}

				return err
			}
		}

		uncled, err := t.waitExtraConfirmations(ctx, rec, &receipt, requiredConfs)
		if err != nil {
			return err
		}

		if !uncled {
			rec.markMined(receipt)

			return nil
		}

		t.logger.Debug("transaction lost in reorg", "hash", rec.Hash, "block", receipt.BlockNumber)
	}
}

// waitFirstConfirmation polls for a receipt once per interval. The sender
// nonce is sampled at most once per nonce interval and compared after the
// receipt check: in the other order the transaction could confirm between
// the receipt query and the nonce query and be misreported as dropped.
func (t *Tracker) waitFirstConfirmation(ctx context.Context, rec *Record) (*ethgo.Receipt, error) {
	var (
		receipt     *ethgo.Receipt
		senderNonce uint64
		nonceTime   time.Time
	)

	err := retry.Do(ctx, retry.NewConstant(t.pollInterval), func(ctx context.Context) error {
		if time.Since(nonceTime) > t.nonceInterval {
			nonce, err := t.gateway.GetNonce(rec.Sender)
			if err != nil {
				t.logger.Warn("nonce query failed", "sender", rec.Sender, "err", err)
			} else {
				senderNonce = nonce
				nonceTime = time.Now()
			}
		}

		found, err := t.gateway.GetTransactionReceipt(rec.Hash)
		if err != nil && !rpc.IsNotFound(err) {
			t.logger.Warn("receipt query failed", "hash", rec.Hash, "err", err)
		}

		// older clients return a receipt with a null block hash for pending
		// transactions
		if err == nil && found.BlockHash != (ethgo.Hash{}) {
			receipt = found

			return nil
		}

		if senderNonce > rec.Nonce {
			return errNonceConsumed
		}

		return retry.RetryableError(errReceiptPending)
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

// waitExtraConfirmations blocks until the inclusion block has requiredConfs
// blocks on top of it. Returns uncled=true when the receipt disappears,
// meaning the inclusion block was reorged out while waiting.
func (t *Tracker) waitExtraConfirmations(ctx context.Context, rec *Record, receipt **ethgo.Receipt, requiredConfs uint64) (bool, error) {
	if requiredConfs <= 1 {
		return false, nil
	}

	for {
		head, err := t.gateway.BlockNumber()
		if err == nil && head >= (*receipt).BlockNumber && head-(*receipt).BlockNumber+1 >= requiredConfs {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.pollInterval):
		}

		found, err := t.gateway.GetTransactionReceipt(rec.Hash)
		if err != nil {
			if rpc.IsNotFound(err) {
				return true, nil
			}

			t.logger.Warn("receipt query failed", "hash", rec.Hash, "err", err)

			continue
		}

		if found.BlockHash == (ethgo.Hash{}) {
			return true, nil
		}

		*receipt = found
	}
}

// evaluateCoverage expands the trace and records its coverage unless the
// transaction was already evaluated in an earlier session
func (t *Tracker) evaluateCoverage(rec *Record) {
	if t.coverage == nil {
		return
	}

	hash, err := rec.CoverageHash()
	if err != nil || hash == "" {
		return
	}

	if t.coverage.Has(hash) {
		return
	}

	covMap, err := rec.CoverageMap()
	if err != nil {
		t.logger.Warn("coverage evaluation failed", "hash", rec.Hash, "err", err)

		return
	}

	if err := t.coverage.Add(hash, covMap); err != nil {
		t.logger.Warn("coverage store write failed", "hash", rec.Hash, "err", err)
	}
}
