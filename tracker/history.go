package tracker

import (
	"sync"

	"github.com/umbracle/ethgo"
)

// History is the in-memory index of records seen by a tracker. Replacement
// transactions share a (sender, nonce) pair with the transaction they
// replace, so confirmation of one identifies the others as dropped.
type History struct {
	lock    sync.RWMutex
	records []*Record
	byHash  map[ethgo.Hash]*Record
}

func NewHistory() *History {
	return &History{
		byHash: make(map[ethgo.Hash]*Record),
	}
}

func (h *History) Add(rec *Record) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.byHash[rec.Hash]; ok {
		return
	}

	h.records = append(h.records, rec)
	h.byHash[rec.Hash] = rec
}

func (h *History) Get(hash ethgo.Hash) (*Record, bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	rec, ok := h.byHash[hash]

	return rec, ok
}

// Siblings returns every other record sharing the sender and nonce of rec
func (h *History) Siblings(rec *Record) []*Record {
	h.lock.RLock()
	defer h.lock.RUnlock()

	var out []*Record

	for _, other := range h.records {
		if other != rec && other.Sender == rec.Sender && other.Nonce == rec.Nonce {
			out = append(out, other)
		}
	}

	return out
}

// List returns the records in insertion order
func (h *History) List() []*Record {
	h.lock.RLock()
	defer h.lock.RUnlock()

	out := make([]*Record, len(h.records))
	copy(out, h.records)

	return out
}
