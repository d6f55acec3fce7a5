package mmvec

import (
	"fmt"
	"iter"
	"reflect"
)

// Array is a growable array of T stored in a memory-mapped file.
//
// The zero value is a closed array; every element accessor returns
// [ErrUninitialized] until [Array.Open] succeeds. Closing writes the
// trailer, so a later Open with [Reuse] sees the same size, capacity and
// elements.
//
// T must be a fixed-size type without pointers (numbers, bools, arrays and
// structs of those). This is checked on Open.
//
// Growth ([Array.PushBack], [Array.Reserve], [Array.Resize]) may move the
// mapping and invalidates slices returned by [Array.Slice].
//
// An Array is not safe for concurrent use. At most one writable handle per
// file exists at a time (enforced with a lock file unless
// [Options.DisableLocking] is set). Do not copy an open Array; use
// [Array.Move] to transfer ownership.
type Array[T any] struct {
	_ noCopy

	m mapping
}

// Open creates or reuses the array file at path according to src.
//
// Possible errors:
//   - [ErrInvalidInput]: empty path, negative count, unsupported element type
//   - [ErrBusy]: another writable handle holds the file
//   - [ErrFormatInvalid]: reused file has a bad trailer (nothing is modified)
//   - [*TruncateError]: the file could not be sized
//   - syscall errors: open, mmap, madvise failures
func Open[T any](path string, src Source[T], opts Options) (*Array[T], error) {
	a := &Array[T]{}

	err := a.Open(path, src, opts)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Open (re)initializes a. An already open array is closed first.
func (a *Array[T]) Open(path string, src Source[T], opts Options) error {
	if path == "" {
		return fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	srcErr := src.validate()
	if srcErr != nil {
		return srcErr
	}

	elemSize, err := elemSizeOf[T]()
	if err != nil {
		return err
	}

	closeErr := a.m.close()
	if closeErr != nil {
		return fmt.Errorf("close previous file: %w", closeErr)
	}

	opts = opts.withDefaults()

	if src.kind == SourceReuse {
		return a.m.attach(path, elemSize, true, opts)
	}

	err = a.m.create(path, uint64(src.count), elemSize, opts)
	if err != nil {
		return err
	}

	data := elems[T](&a.m)

	switch src.kind {
	case SourceFill:
		for i := range data {
			data[i] = src.value
		}
	case SourceSlice:
		copy(data, src.elems)
	case SourceUninitialized, SourceReuse:
	}

	return nil
}

// Close writes the trailer, unmaps the file and returns a to the unopened
// state. Closing a closed array is a no-op.
func (a *Array[T]) Close() error {
	return a.m.close()
}

// Flush syncs written elements to disk and rewrites the trailer, leaving
// the array open.
func (a *Array[T]) Flush() error {
	return a.m.flush()
}

// Move transfers the mapping to a new handle. a is left closed with an
// empty path and can be reopened.
func (a *Array[T]) Move() *Array[T] {
	return &Array[T]{m: a.m.moveOut()}
}

// IsOpen reports whether a currently holds a mapping.
func (a *Array[T]) IsOpen() bool {
	return a.m.isOpen()
}

// Len returns the number of elements. A closed array has length 0.
func (a *Array[T]) Len() int {
	return int(a.m.size)
}

// Cap returns the number of elements that fit before the next remap.
func (a *Array[T]) Cap() int {
	return int(a.m.capacity)
}

// ByteSize returns the size of the mapped data region in bytes.
func (a *Array[T]) ByteSize() int {
	return int(a.m.bytesize)
}

// Path returns the backing file path. It survives Close, but not Move.
func (a *Array[T]) Path() string {
	return a.m.path
}

// AccessPattern returns the hint last advised to the kernel.
func (a *Array[T]) AccessPattern() AccessPattern {
	return a.m.pattern
}

// SetAccessPattern advises a new access pattern for the whole mapping.
func (a *Array[T]) SetAccessPattern(p AccessPattern) error {
	if err := a.m.checkOpen(); err != nil {
		return err
	}

	return a.m.advise(p)
}

// Get returns element i without checking it against Len.
//
// i must be in [0, Cap); values past Len are unspecified and an index
// outside the capacity panics.
func (a *Array[T]) Get(i int) (T, error) {
	if err := a.m.checkOpen(); err != nil {
		var zero T

		return zero, err
	}

	return elems[T](&a.m)[i], nil
}

// Set stores v at i without checking it against Len. See [Array.Get].
func (a *Array[T]) Set(i int, v T) error {
	if err := a.m.checkOpen(); err != nil {
		return err
	}

	elems[T](&a.m)[i] = v

	return nil
}

// At returns element i, or [ErrOutOfRange] if i is not in [0, Len).
func (a *Array[T]) At(i int) (T, error) {
	var zero T

	if err := a.m.checkOpen(); err != nil {
		return zero, err
	}

	if err := a.m.checkIndex(i); err != nil {
		return zero, err
	}

	return elems[T](&a.m)[i], nil
}

// SetAt stores v at i, or returns [ErrOutOfRange] if i is not in [0, Len).
func (a *Array[T]) SetAt(i int, v T) error {
	if err := a.m.checkOpen(); err != nil {
		return err
	}

	if err := a.m.checkIndex(i); err != nil {
		return err
	}

	elems[T](&a.m)[i] = v

	return nil
}

// Back returns the last element, or [ErrOutOfRange] if the array is empty.
func (a *Array[T]) Back() (T, error) {
	return a.At(a.Len() - 1)
}

// Slice returns the live elements [0, Len) backed directly by the mapping.
//
// Writes through the slice go to the file. The slice is invalidated by
// any growth and by Close; using it afterwards faults.
func (a *Array[T]) Slice() ([]T, error) {
	if err := a.m.checkOpen(); err != nil {
		return nil, err
	}

	return elems[T](&a.m)[:a.m.size], nil
}

// All iterates over the live elements. A closed array yields nothing.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; a.m.isOpen() && uint64(i) < a.m.size; i++ {
			if !yield(i, elems[T](&a.m)[i]) {
				return
			}
		}
	}
}

// PushBack appends v. When the array is full, capacity grows to 1.5x
// (never below [MinCapacity]) before writing.
func (a *Array[T]) PushBack(v T) error {
	if err := a.m.checkOpen(); err != nil {
		return err
	}

	if a.m.size == a.m.capacity {
		if err := a.m.adaptCapacity(grownCapacity(a.m.capacity)); err != nil {
			return err
		}
	}

	elems[T](&a.m)[a.m.size] = v
	a.m.size++

	return nil
}

// Reserve makes room for at least n elements. It never shrinks.
func (a *Array[T]) Reserve(n int) error {
	if err := a.m.checkOpen(); err != nil {
		return err
	}

	if n < 0 {
		return fmt.Errorf("reserve %d: %w", n, ErrInvalidInput)
	}

	if uint64(n) <= a.m.capacity {
		return nil
	}

	return a.m.adaptCapacity(uint64(n))
}

// Resize sets the length to n, growing capacity if needed. Elements past
// the old length have unspecified contents.
func (a *Array[T]) Resize(n int) error {
	if err := a.m.checkOpen(); err != nil {
		return err
	}

	if n < 0 {
		return fmt.Errorf("resize %d: %w", n, ErrInvalidInput)
	}

	if uint64(n) > a.m.capacity {
		if err := a.m.adaptCapacity(uint64(n)); err != nil {
			return err
		}
	}

	a.m.size = uint64(n)

	return nil
}

// Clear sets the length to 0 and keeps the capacity.
func (a *Array[T]) Clear() error {
	return a.Resize(0)
}

func (m *mapping) checkIndex(i int) error {
	if i < 0 || uint64(i) >= m.size {
		return fmt.Errorf("index %d not in [0, %d): %w", i, m.size, ErrOutOfRange)
	}

	return nil
}

func elemSizeOf[T any]() (uint64, error) {
	t := reflect.TypeFor[T]()

	if err := checkElemType(t); err != nil {
		return 0, err
	}

	return uint64(t.Size()), nil
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
