package mmvec

import (
	"fmt"
	"iter"
)

// View is a read-only mapping of a file written by [Array].
//
// The mapping is PROT_READ, so writing through a slice returned by
// [View.Slice] faults instead of corrupting the file. A View takes no lock;
// it sees the state of the file at open time and must not be used while a
// writer resizes the same file.
type View[T any] struct {
	_ noCopy

	m mapping
}

// OpenView maps the array file at path for reading.
//
// Possible errors: [ErrInvalidInput], [ErrFormatInvalid], syscall errors.
func OpenView[T any](path string, opts Options) (*View[T], error) {
	v := &View[T]{}

	err := v.Open(path, opts)
	if err != nil {
		return nil, err
	}

	return v, nil
}

// Open maps path, closing any file v currently maps.
func (v *View[T]) Open(path string, opts Options) error {
	if path == "" {
		return fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	elemSize, err := elemSizeOf[T]()
	if err != nil {
		return err
	}

	closeErr := v.m.close()
	if closeErr != nil {
		return fmt.Errorf("close previous file: %w", closeErr)
	}

	return v.m.attach(path, elemSize, false, opts.withDefaults())
}

// Close unmaps the file. v may be opened again afterwards.
func (v *View[T]) Close() error {
	return v.m.close()
}

// Move transfers the mapping to a new handle and leaves v closed.
func (v *View[T]) Move() *View[T] {
	return &View[T]{m: v.m.moveOut()}
}

// IsOpen reports whether v currently holds a mapping.
func (v *View[T]) IsOpen() bool {
	return v.m.isOpen()
}

// Len returns the number of elements. A closed view has length 0.
func (v *View[T]) Len() int {
	return int(v.m.size)
}

// Cap returns the capacity recorded in the trailer.
func (v *View[T]) Cap() int {
	return int(v.m.capacity)
}

// ByteSize returns the size of the mapped data region in bytes.
func (v *View[T]) ByteSize() int {
	return int(v.m.bytesize)
}

// Path returns the mapped file path.
func (v *View[T]) Path() string {
	return v.m.path
}

// Get returns element i without checking it against Len. See [Array.Get].
func (v *View[T]) Get(i int) (T, error) {
	if err := v.m.checkOpen(); err != nil {
		var zero T

		return zero, err
	}

	return elems[T](&v.m)[i], nil
}

// At returns element i, or [ErrOutOfRange] if i is not in [0, Len).
func (v *View[T]) At(i int) (T, error) {
	var zero T

	if err := v.m.checkOpen(); err != nil {
		return zero, err
	}

	if err := v.m.checkIndex(i); err != nil {
		return zero, err
	}

	return elems[T](&v.m)[i], nil
}

// Slice returns the elements [0, Len). The slice must only be read.
func (v *View[T]) Slice() ([]T, error) {
	if err := v.m.checkOpen(); err != nil {
		return nil, err
	}

	return elems[T](&v.m)[:v.m.size], nil
}

// All iterates over the elements. A closed view yields nothing.
func (v *View[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; v.m.isOpen() && uint64(i) < v.m.size; i++ {
			if !yield(i, elems[T](&v.m)[i]) {
				return
			}
		}
	}
}
