package flightcache

import "errors"

// Sentinel errors returned by flightcache operations.
var (
	// ErrNotImplemented is returned by [Result.Finish] when the finished
	// value was requested pinned. Pinned insertion into the wrapped cache
	// has no defined eviction semantics yet; the value is not cached and
	// the in-flight slot is released.
	ErrNotImplemented = errors.New("flightcache: pinned insert is not implemented")

	// ErrNotProducer indicates Finish was called on a result that did not
	// create the in-flight value.
	//
	// This is a programming error.
	ErrNotProducer = errors.New("flightcache: result does not own the computation")

	// ErrAlreadyFinished indicates Finish was called twice, or after Abandon.
	//
	// This is a programming error.
	ErrAlreadyFinished = errors.New("flightcache: computation already finished")

	// ErrAbandoned is returned by [Result.Wait] when the producer released
	// the slot without finishing. Callers may retry with TryEmplace.
	ErrAbandoned = errors.New("flightcache: computation abandoned")
)
