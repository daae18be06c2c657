package tracker

import (
	"context"
	"time"

	"github.com/0xPolygon/txtrace/coverage"
	"github.com/0xPolygon/txtrace/registry"
	"github.com/0xPolygon/txtrace/rpc"
	"github.com/hashicorp/go-hclog"
	"github.com/sethvargo/go-retry"
	"github.com/umbracle/ethgo"
)

const (
	// receipt polling interval while waiting for the first confirmation
	defaultPollInterval = time.Second

	// minimum spacing between sender nonce checks during polling
	defaultNonceInterval = 15 * time.Second
)

type Option func(*Tracker)

func WithLogger(logger hclog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithCoverageStore enables coverage evaluation of confirmed transactions
func WithCoverageStore(store coverage.Store) Option {
	return func(t *Tracker) {
		t.coverage = store
	}
}

// WithHistory shares a record history between trackers
func WithHistory(history *History) Option {
	return func(t *Tracker) {
		t.history = history
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		t.pollInterval = interval
	}
}

func WithNonceInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		t.nonceInterval = interval
	}
}

// Tracker follows broadcast transactions to their terminal state and hands
// out Records exposing the decoded outcome
type Tracker struct {
	logger   hclog.Logger
	gateway  rpc.Gateway
	registry registry.Registry
	coverage coverage.Store
	history  *History

	pollInterval  time.Duration
	nonceInterval time.Duration
}

func NewTracker(gateway rpc.Gateway, reg registry.Registry, opts ...Option) *Tracker {
	t := &Tracker{
		logger:        hclog.NewNullLogger(),
		gateway:       gateway,
		registry:      reg,
		pollInterval:  defaultPollInterval,
		nonceInterval: defaultNonceInterval,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.logger = t.logger.Named("tracker")

	if t.history == nil {
		t.history = NewHistory()
	}

	return t
}

// History returns the record index shared by this tracker
func (t *Tracker) History() *History {
	return t.history
}

// Track starts following a transaction. The transaction is fetched from the
// node (polling while the node has not seen it yet), a Record is seeded and
// a watcher goroutine drives it to a terminal state. With blocking set, Track
// returns only once the record is terminal or the context is cancelled.
func (t *Tracker) Track(ctx context.Context, hash ethgo.Hash, requiredConfs uint64, blocking bool) (*Record, error) {
	if rec, ok := t.history.Get(hash); ok {
		if blocking {
			// a known record may have been confirmed against a lower
			// confirmation target, re-enter the confirmation wait
			if err := t.Wait(ctx, rec, requiredConfs); err != nil {
				return rec, err
			}
		}

		return rec, nil
	}

	var txn *ethgo.Transaction

	err := retry.Do(ctx, retry.NewConstant(t.pollInterval), func(ctx context.Context) error {
		found, err := t.gateway.GetTransactionByHash(hash)
		if err != nil {
			if rpc.IsNotFound(err) {
				// the node may simply not have seen the broadcast yet
				return retry.RetryableError(err)
			}

			return err
		}

		txn = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := newRecord(t.logger, t.gateway, t.registry, txn)
	t.history.Add(rec)

	t.logger.Debug("tracking transaction",
		"hash", hash,
		"sender", rec.Sender,
		"nonce", rec.Nonce,
		"confirmations", requiredConfs,
	)

	go t.watch(ctx, rec, requiredConfs)

	alreadyMined := txn.BlockHash != (ethgo.Hash{})

	if blocking && (requiredConfs > 0 || alreadyMined) {
		if err := rec.Wait(ctx); err != nil {
			return rec, err
		}
	}

	return rec, nil
}
