package flightcache

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Status tells how [Adapter.TryEmplace] resolved a key.
type Status int

const (
	// StatusCached means the value came from the cache and is complete.
	StatusCached Status = iota

	// StatusJoined means another caller is computing the value.
	StatusJoined

	// StatusCreated means this caller owns the computation.
	StatusCreated
)

func (s Status) String() string {
	switch s {
	case StatusCached:
		return "cached"
	case StatusJoined:
		return "joined"
	case StatusCreated:
		return "created"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is returned by [Adapter.TryEmplace].
//
// Every result exposes the shared value through [Result.Value]. Only a
// [StatusCreated] result has a non-nil [Result.Writable] and may call
// [Result.Finish] or [Result.Abandon]. A Result is meant to be used by the
// goroutine that received it.
type Result[K comparable, V any] struct {
	adapter *Adapter[K, V] // nil unless StatusCreated
	key     K
	status  Status
	value   *V
	done    chan struct{}
	flight  *flight[V]

	completed atomic.Bool
}

// Key returns the requested key.
func (r *Result[K, V]) Key() K { return r.key }

// Status returns how the key was resolved.
func (r *Result[K, V]) Status() Status { return r.status }

// Writable returns the value to fill in, or nil if this result does not
// own the computation.
func (r *Result[K, V]) Writable() *V {
	if r.status != StatusCreated {
		return nil
	}

	return r.value
}

// Value returns the shared value. For joined results it may still be
// incomplete; call [Result.Wait] before reading it.
func (r *Result[K, V]) Value() *V { return r.value }

// Done is closed once the value is complete or the computation is over.
func (r *Result[K, V]) Done() <-chan struct{} { return r.done }

// Wait blocks until the computation behind r is over and returns the
// value. It returns [ErrAbandoned] if the producer gave up, the finish
// error, or ctx's error.
func (r *Result[K, V]) Wait(ctx context.Context) (*V, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if r.flight != nil && r.flight.err != nil {
		return nil, r.flight.err
	}

	return r.value, nil
}

// Finish commits the written value: it applies [Options.OnFinish], inserts
// the value into the cache and releases the in-flight slot, waking every
// joiner. If the value was requested pinned, nothing is inserted and
// [ErrNotImplemented] is returned; the slot is released either way.
func (r *Result[K, V]) Finish() error {
	if r.status != StatusCreated {
		return fmt.Errorf("finish %v (%s): %w", r.key, r.status, ErrNotProducer)
	}

	if !r.completed.CompareAndSwap(false, true) {
		return fmt.Errorf("finish %v: %w", r.key, ErrAlreadyFinished)
	}

	return r.adapter.finish(r.key, r.flight)
}

// Abandon releases the in-flight slot without caching anything. Waiting
// joiners get [ErrAbandoned]. It does nothing if r does not own the
// computation or it is already over, so it is safe to defer.
func (r *Result[K, V]) Abandon() {
	if r.status != StatusCreated {
		return
	}

	if !r.completed.CompareAndSwap(false, true) {
		return
	}

	r.adapter.abandon(r.key, r.flight)
}
