package mmvec

import "fmt"

// SourceKind selects how [Array.Open] initializes the array.
type SourceKind int

const (
	// SourceFill creates a new file with count copies of a value.
	SourceFill SourceKind = iota + 1

	// SourceUninitialized creates a new file with count elements whose
	// contents are whatever the fresh file holds (zero bytes).
	SourceUninitialized

	// SourceSlice creates a new file holding a copy of a slice.
	SourceSlice

	// SourceReuse attaches to a file previously written by [Array].
	SourceReuse
)

func (k SourceKind) String() string {
	switch k {
	case SourceFill:
		return "fill"
	case SourceUninitialized:
		return "uninitialized"
	case SourceSlice:
		return "slice"
	case SourceReuse:
		return "reuse"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// Source describes the initial contents of an array. Build one with
// [Fill], [Uninitialized], [Empty], [FromSlice] or [Reuse].
//
// Every kind except [SourceReuse] truncates an existing file at the path.
type Source[T any] struct {
	kind  SourceKind
	count int
	value T
	elems []T
}

// Kind reports which initialization the source requests.
func (s Source[T]) Kind() SourceKind {
	return s.kind
}

// Fill creates count elements, each set to value.
func Fill[T any](count int, value T) Source[T] {
	return Source[T]{kind: SourceFill, count: count, value: value}
}

// Uninitialized creates count elements without writing them.
func Uninitialized[T any](count int) Source[T] {
	return Source[T]{kind: SourceUninitialized, count: count}
}

// Empty creates an array with no elements.
func Empty[T any]() Source[T] {
	return Uninitialized[T](0)
}

// FromSlice creates len(elems) elements copied from elems.
func FromSlice[T any](elems []T) Source[T] {
	return Source[T]{kind: SourceSlice, count: len(elems), elems: elems}
}

// Reuse attaches to an existing file and trusts its trailer.
func Reuse[T any]() Source[T] {
	return Source[T]{kind: SourceReuse}
}

func (s Source[T]) validate() error {
	switch s.kind {
	case SourceFill, SourceUninitialized, SourceSlice:
		if s.count < 0 {
			return fmt.Errorf("count must be >= 0, got %d: %w", s.count, ErrInvalidInput)
		}

		return nil
	case SourceReuse:
		return nil
	default:
		return fmt.Errorf("unknown source kind %d (use Fill, Uninitialized, Empty, FromSlice or Reuse): %w", int(s.kind), ErrInvalidInput)
	}
}
