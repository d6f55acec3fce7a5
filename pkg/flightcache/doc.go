// Package flightcache puts a single-flight layer in front of an eviction
// cache: for every key at most one caller computes the value at a time,
// everyone else either reads the cached value or joins the computation.
//
// # Basic Usage
//
//	cache, err := flightcache.NewRistretto[string, Index](flightcache.RistrettoConfig[Index]{MaxCost: 1024})
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	a := flightcache.New[string, Index](cache, flightcache.Options[Index]{})
//
//	r := a.TryEmplace("users", nil)
//	switch r.Status() {
//	case flightcache.StatusCreated:
//	    err := build(r.Writable()) // outside any lock
//	    if err != nil {
//	        r.Abandon()
//	        return err
//	    }
//	    err = r.Finish()
//	default:
//	    idx, err := r.Wait(ctx)
//	}
//
// [Adapter.Do] wraps this sequence and always releases the slot.
//
// # Pinning
//
// [Adapter.TryEmplacePinned] asks for an entry that is immune to eviction.
// Cached entries are upgraded through the wrapped cache. Committing a new
// pinned computation is not implemented: Finish returns
// [ErrNotImplemented], caches nothing and releases the slot.
package flightcache
