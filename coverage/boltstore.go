package coverage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	bolt "go.etcd.io/bbolt"
)

var txCoverageBucket = []byte("txCoverage")

/*
Bolt DB schema:

txCoverage/
|--> (coverage hash) -> Map (json marshalled)
*/

// BoltStore persists coverage maps to a bbolt database. Writes are buffered
// in memory and written in one batch on Flush, so per-transaction recording
// stays cheap during a test run.
type BoltStore struct {
	db     *bolt.DB
	logger hclog.Logger

	lock    sync.Mutex
	pending map[string]Map
	known   map[string]struct{}
}

func NewBoltStore(path string, logger hclog.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0660, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open coverage db: %w", err)
	}

	store := &BoltStore{
		db:      db,
		logger:  logger.Named("coverage"),
		pending: make(map[string]Map),
		known:   make(map[string]struct{}),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *BoltStore) initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(txCoverageBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket=%s: %w", string(txCoverageBucket), err)
		}

		// preload the known hashes so Has does not hit the db
		return bucket.ForEach(func(k, _ []byte) error {
			s.known[string(k)] = struct{}{}

			return nil
		})
	})
}

func (s *BoltStore) Has(hash string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.known[hash]; ok {
		return true
	}

	_, ok := s.pending[hash]

	return ok
}

func (s *BoltStore) Add(hash string, m Map) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.known[hash]; ok {
		return nil
	}

	s.pending[hash] = m

	return nil
}

func (s *BoltStore) Flush() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(txCoverageBucket)

		for hash, m := range s.pending {
			raw, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("failed to marshal coverage for %s: %w", hash, err)
			}

			if err := bucket.Put([]byte(hash), raw); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("flushed coverage entries", "count", len(s.pending))

	for hash := range s.pending {
		s.known[hash] = struct{}{}
	}

	s.pending = make(map[string]Map)

	return nil
}

// Get reads a persisted coverage map back from the database
func (s *BoltStore) Get(hash string) (Map, bool, error) {
	var raw []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		if val := tx.Bucket(txCoverageBucket).Get([]byte(hash)); val != nil {
			raw = make([]byte, len(val))
			copy(raw, val)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if raw == nil {
		return nil, false, nil
	}

	m := NewMap()
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, err
	}

	return m, true, nil
}

func (s *BoltStore) Close() error {
	var errs error

	if err := s.Flush(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := s.db.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs
}
