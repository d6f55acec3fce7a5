package mmvec

import (
	"errors"
	"fmt"
	"iter"
	"os"
)

// Ephemeral is an [Array] used as scratch storage: its file is always
// created fresh and is deleted on Close.
//
// Close never fails because of the flush; flush and unmap failures are
// reported to [Options.Logger] and the file is deleted regardless. After
// [Ephemeral.Move] only the new handle deletes the file.
type Ephemeral[T any] struct {
	_ noCopy

	arr Array[T]
}

// NewEphemeral creates a scratch array at path. src must not be [Reuse].
func NewEphemeral[T any](path string, src Source[T], opts Options) (*Ephemeral[T], error) {
	if src.kind == SourceReuse {
		return nil, fmt.Errorf("ephemeral arrays are always created fresh: %w", ErrInvalidInput)
	}

	e := &Ephemeral[T]{}

	err := e.arr.Open(path, src, opts)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Close closes the array and deletes its file (and lock file) if e still
// owns them. It returns only deletion errors.
func (e *Ephemeral[T]) Close() error {
	path := e.arr.m.path
	opts := e.arr.m.opts.withDefaults()

	closeErr := e.arr.Close()
	if closeErr != nil {
		opts.Logger.Error("mmvec: closing ephemeral array failed, deleting anyway", "path", path, "error", closeErr)
	}

	e.arr.m.path = ""

	if path == "" {
		return nil
	}

	removeErr := removeIfExists(opts, path)

	var lockErr error
	if !opts.DisableLocking {
		lockErr = removeIfExists(opts, lockPath(path))
	}

	return errors.Join(removeErr, lockErr)
}

func removeIfExists(opts Options, path string) error {
	err := opts.FS.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", path, err)
	}

	return nil
}

// Move transfers the mapping and the duty to delete the file to a new
// handle. e is left inert; its Close does nothing.
func (e *Ephemeral[T]) Move() *Ephemeral[T] {
	moved := &Ephemeral[T]{}
	moved.arr.m = e.arr.m.moveOut()

	return moved
}

// IsOpen reports whether e currently holds a mapping.
func (e *Ephemeral[T]) IsOpen() bool { return e.arr.IsOpen() }

// Len returns the number of elements.
func (e *Ephemeral[T]) Len() int { return e.arr.Len() }

// Cap returns the number of elements that fit before the next remap.
func (e *Ephemeral[T]) Cap() int { return e.arr.Cap() }

// Path returns the backing file path, or "" once ownership moved away.
func (e *Ephemeral[T]) Path() string { return e.arr.Path() }

// Get is [Array.Get].
func (e *Ephemeral[T]) Get(i int) (T, error) { return e.arr.Get(i) }

// Set is [Array.Set].
func (e *Ephemeral[T]) Set(i int, v T) error { return e.arr.Set(i, v) }

// At is [Array.At].
func (e *Ephemeral[T]) At(i int) (T, error) { return e.arr.At(i) }

// SetAt is [Array.SetAt].
func (e *Ephemeral[T]) SetAt(i int, v T) error { return e.arr.SetAt(i, v) }

// Back is [Array.Back].
func (e *Ephemeral[T]) Back() (T, error) { return e.arr.Back() }

// Slice is [Array.Slice].
func (e *Ephemeral[T]) Slice() ([]T, error) { return e.arr.Slice() }

// All is [Array.All].
func (e *Ephemeral[T]) All() iter.Seq2[int, T] { return e.arr.All() }

// PushBack is [Array.PushBack].
func (e *Ephemeral[T]) PushBack(v T) error { return e.arr.PushBack(v) }

// Reserve is [Array.Reserve].
func (e *Ephemeral[T]) Reserve(n int) error { return e.arr.Reserve(n) }

// Resize is [Array.Resize].
func (e *Ephemeral[T]) Resize(n int) error { return e.arr.Resize(n) }

// Clear is [Array.Clear].
func (e *Ephemeral[T]) Clear() error { return e.arr.Clear() }

// SetAccessPattern is [Array.SetAccessPattern].
func (e *Ephemeral[T]) SetAccessPattern(p AccessPattern) error { return e.arr.SetAccessPattern(p) }
