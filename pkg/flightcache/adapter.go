package flightcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Cache is the capability surface the adapter needs from the wrapped
// eviction cache. Implementations do not need to be safe for concurrent
// use when they are only reached through an [Adapter]; every call is made
// with the adapter lock held.
type Cache[K comparable, V any] interface {
	// Contains reports whether key is cached.
	Contains(key K) bool

	// ContainsPinnedIncludingUpgrade reports whether key is cached and
	// makes sure it is pinned afterwards, pinning an unpinned entry.
	ContainsPinnedIncludingUpgrade(key K) bool

	// Get returns the cached value for key.
	Get(key K) (*V, bool)

	// Insert stores value under key. It may evict other entries.
	Insert(key K, value *V)
}

// Options configures an [Adapter].
//
// The zero value is usable.
type Options[V any] struct {
	// OnFinish runs on every finished value before it is inserted into the
	// cache, with the adapter lock held. Use it to normalize or seal
	// values; it must not call back into the adapter.
	OnFinish func(value *V)

	// Logger receives abandoned computations. Default is [slog.Default].
	Logger *slog.Logger
}

// Stats are counters of adapter activity since creation.
type Stats struct {
	Hits     uint64 // TryEmplace found the key cached
	Joins    uint64 // TryEmplace joined an in-flight computation
	Creates  uint64 // TryEmplace started a computation
	Finishes uint64 // computations finished (including failed pinned inserts)
	Abandons uint64 // computations released without finishing
	InFlight int    // computations currently outstanding
}

// Adapter guarantees at most one concurrent computation per key in front
// of a [Cache].
//
// Only bookkeeping runs under the adapter lock: presence checks, in-flight
// registration and the final insert. Producing the value happens outside
// of it, through the pointer handed out by [Adapter.TryEmplace].
type Adapter[K comparable, V any] struct {
	mu       sync.Mutex
	cache    Cache[K, V]
	inFlight map[K]*flight[V]
	stats    Stats

	onFinish func(*V)
	logger   *slog.Logger
}

// flight is one outstanding computation. pinned is guarded by the adapter
// lock; err is written once before done is closed.
type flight[V any] struct {
	pinned bool
	value  *V
	done   chan struct{}
	err    error
}

// closedDone is shared by every result that refers to a cached value.
var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}()

// New returns an adapter in front of cache. The adapter takes ownership
// of cache; use [Adapter.WithCache] for direct access afterwards.
func New[K comparable, V any](cache Cache[K, V], opts Options[V]) *Adapter[K, V] {
	if cache == nil {
		panic("flightcache: nil cache")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter[K, V]{
		cache:    cache,
		inFlight: make(map[K]*flight[V]),
		onFinish: opts.OnFinish,
		logger:   logger,
	}
}

// TryEmplace looks key up, joins its in-flight computation, or starts one.
//
// Exactly one caller per outstanding computation gets a result with
// [StatusCreated]; it must call [Result.Finish] or [Result.Abandon].
// newValue builds the initial value for a new computation and runs under
// the adapter lock, so it must be cheap. A nil newValue starts from the
// zero value.
func (a *Adapter[K, V]) TryEmplace(key K, newValue func() V) *Result[K, V] {
	return a.tryEmplace(key, false, newValue)
}

// TryEmplacePinned is [Adapter.TryEmplace] for values that should be
// pinned in the cache. A cached unpinned entry is upgraded to pinned; an
// unpinned in-flight computation is marked pinned.
func (a *Adapter[K, V]) TryEmplacePinned(key K, newValue func() V) *Result[K, V] {
	return a.tryEmplace(key, true, newValue)
}

func (a *Adapter[K, V]) tryEmplace(key K, pinned bool, newValue func() V) *Result[K, V] {
	a.mu.Lock()
	defer a.mu.Unlock()

	var contained bool
	if pinned {
		contained = a.cache.ContainsPinnedIncludingUpgrade(key)
	} else {
		contained = a.cache.Contains(key)
	}

	if contained {
		if value, ok := a.cache.Get(key); ok {
			a.stats.Hits++

			return &Result[K, V]{key: key, status: StatusCached, value: value, done: closedDone}
		}
	}

	if f, ok := a.inFlight[key]; ok {
		f.pinned = f.pinned || pinned
		a.stats.Joins++

		return &Result[K, V]{key: key, status: StatusJoined, value: f.value, done: f.done, flight: f}
	}

	value := new(V)
	if newValue != nil {
		*value = newValue()
	}

	f := &flight[V]{pinned: pinned, value: value, done: make(chan struct{})}
	a.inFlight[key] = f
	a.stats.Creates++

	return &Result[K, V]{
		adapter: a,
		key:     key,
		status:  StatusCreated,
		value:   value,
		done:    f.done,
		flight:  f,
	}
}

// finish commits f into the cache. It is the only place the wrapped cache
// is mutated.
func (a *Adapter[K, V]) finish(key K, f *flight[V]) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.onFinish != nil {
		a.onFinish(f.value)
	}

	var err error
	if f.pinned {
		err = fmt.Errorf("finish %v: %w", key, ErrNotImplemented)
	} else {
		a.cache.Insert(key, f.value)
	}

	delete(a.inFlight, key)
	a.stats.Finishes++

	f.err = err
	close(f.done)

	return err
}

func (a *Adapter[K, V]) abandon(key K, f *flight[V]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.inFlight, key)
	a.stats.Abandons++

	f.err = ErrAbandoned
	close(f.done)

	a.logger.Warn("flightcache: computation abandoned", "key", key, "pinned", f.pinned)
}

// Do returns the value for key, computing it with compute if neither
// cached nor in flight. Joiners wait for the producer (or ctx).
//
// If compute fails or panics the slot is abandoned, so other callers see
// [ErrAbandoned] instead of waiting forever.
func (a *Adapter[K, V]) Do(ctx context.Context, key K, newValue func() V, compute func(ctx context.Context, value *V) error) (*V, Status, error) {
	r := a.TryEmplace(key, newValue)

	if r.Status() != StatusCreated {
		value, err := r.Wait(ctx)

		return value, r.Status(), err
	}

	defer r.Abandon()

	err := compute(ctx, r.Writable())
	if err != nil {
		return nil, StatusCreated, fmt.Errorf("compute %v: %w", key, err)
	}

	finishErr := r.Finish()
	if finishErr != nil {
		return nil, StatusCreated, finishErr
	}

	return r.Value(), StatusCreated, nil
}

// WithCache runs fn with the adapter lock held and direct access to the
// wrapped cache. fn must not call back into the adapter.
func (a *Adapter[K, V]) WithCache(fn func(cache Cache[K, V])) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fn(a.cache)
}

// Stats returns a snapshot of the adapter counters.
func (a *Adapter[K, V]) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats
	s.InFlight = len(a.inFlight)

	return s
}
