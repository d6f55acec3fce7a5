package flightcache

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoKey lists the key types accepted by [Ristretto].
type RistrettoKey interface {
	comparable
	uint64 | string | byte | int | int32 | uint32 | int64
}

// RistrettoConfig sizes a [Ristretto] cache.
type RistrettoConfig[V any] struct {
	// MaxCost is the total cost budget of unpinned entries.
	MaxCost int64

	// NumCounters is the number of admission counters; about 10x the
	// expected number of entries. Default is 10 * MaxCost.
	NumCounters int64

	// Cost returns the cost of a value. Default is 1 per entry.
	Cost func(value *V) int64
}

// Ristretto is a [Cache] backed by ristretto with a side table of pinned
// entries that are never evicted.
//
// Unpinned inserts are subject to ristretto's admission policy and may be
// dropped. Ristretto is safe for concurrent use.
type Ristretto[K RistrettoKey, V any] struct {
	mu     sync.Mutex
	cache  *ristretto.Cache[K, *V]
	pinned map[K]*V
	cost   func(*V) int64
}

// NewRistretto returns an empty cache. Call Close when done with it.
func NewRistretto[K RistrettoKey, V any](cfg RistrettoConfig[V]) (*Ristretto[K, V], error) {
	if cfg.MaxCost <= 0 {
		return nil, fmt.Errorf("flightcache: MaxCost must be positive, got %d", cfg.MaxCost)
	}

	counters := cfg.NumCounters
	if counters <= 0 {
		counters = 10 * cfg.MaxCost
	}

	cost := cfg.Cost
	if cost == nil {
		cost = func(*V) int64 { return 1 }
	}

	cache, err := ristretto.NewCache(&ristretto.Config[K, *V]{
		NumCounters:        counters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("flightcache: create ristretto cache: %w", err)
	}

	return &Ristretto[K, V]{
		cache:  cache,
		pinned: make(map[K]*V),
		cost:   cost,
	}, nil
}

// Contains reports whether key is cached, pinned or not.
func (r *Ristretto[K, V]) Contains(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pinned[key]; ok {
		return true
	}

	_, ok := r.cache.Get(key)

	return ok
}

// ContainsPinnedIncludingUpgrade reports whether key is cached. An
// unpinned entry is moved into the pinned table first.
func (r *Ristretto[K, V]) ContainsPinnedIncludingUpgrade(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pinned[key]; ok {
		return true
	}

	value, ok := r.cache.Get(key)
	if !ok {
		return false
	}

	r.pinned[key] = value
	r.cache.Del(key)

	return true
}

// Get returns the cached value for key.
func (r *Ristretto[K, V]) Get(key K) (*V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if value, ok := r.pinned[key]; ok {
		return value, true
	}

	return r.cache.Get(key)
}

// Insert stores an unpinned value and waits until ristretto has applied
// it, so that a following Contains sees it unless it was rejected.
func (r *Ristretto[K, V]) Insert(key K, value *V) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pinned[key]; ok {
		r.pinned[key] = value

		return
	}

	if r.cache.Set(key, value, r.cost(value)) {
		r.cache.Wait()
	}
}

// Pinned returns the number of pinned entries.
func (r *Ristretto[K, V]) Pinned() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pinned)
}

// Close stops ristretto's background goroutines. The cache must not be
// used afterwards.
func (r *Ristretto[K, V]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Close()
	clear(r.pinned)
}
