package registry

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/umbracle/ethgo"
)

const defaultCacheSize = 256

// Cached wraps a Registry with an LRU memoization layer. Trace expansion
// resolves the same handful of addresses once per step, so repeated lookups
// must be cheap. Negative results are cached as well.
type Cached struct {
	inner Registry
	cache *lru.Cache
}

func NewCached(inner Registry, size int) (*Cached, error) {
	if size <= 0 {
		size = defaultCacheSize
	}

	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) GetContract(addr ethgo.Address) (*Contract, error) {
	if val, ok := c.cache.Get(addr); ok {
		contract, _ := val.(*Contract)

		return contract, nil
	}

	contract, err := c.inner.GetContract(addr)
	if err != nil {
		return nil, err
	}

	c.cache.Add(addr, contract)

	return contract, nil
}

func (c *Cached) DevRevert(pc uint64) (string, bool) {
	return c.inner.DevRevert(pc)
}

// Purge drops all cached resolutions
func (c *Cached) Purge() {
	c.cache.Purge()
}
