package mmvec

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by mmvec operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, mmvec.ErrFormatInvalid) {
//	    os.Remove(path)
//	    // recreate the array
//	}
var (
	// ErrUninitialized indicates the array was accessed while closed or
	// before it was ever opened.
	//
	// This is a programming error.
	ErrUninitialized = errors.New("mmvec: accessed a closed or uninitialized array")

	// ErrFormatInvalid indicates the trailer of a reused file is missing or
	// damaged, or was written by an incompatible format version.
	//
	// Recovery: delete the file and rebuild it from the source of truth.
	ErrFormatInvalid = errors.New("mmvec: invalid file format (missing magic number or version mismatch)")

	// ErrOutOfRange indicates a checked access with an index >= Len.
	ErrOutOfRange = errors.New("mmvec: index out of range")

	// ErrBusy indicates another handle holds the writer lock for the file.
	//
	// Recovery: close the other handle, or retry after a short delay.
	ErrBusy = errors.New("mmvec: busy")

	// ErrInvalidInput indicates invalid arguments were provided.
	//
	// Common causes: empty path, negative counts, or an element type that
	// cannot live in a file mapping (pointers, slices, maps, strings,
	// interfaces, channels, funcs, or zero-sized types).
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("mmvec: invalid input")

	// ErrTruncate matches every [*TruncateError] via [errors.Is].
	ErrTruncate = errors.New("mmvec: truncate failed")
)

// TruncateError reports a failed resize of the backing file.
//
// Err is the underlying OS error (usually a [golang.org/x/sys/unix.Errno]),
// so errors.Is(err, unix.ENOSPC) works on the returned error.
type TruncateError struct {
	Path string
	Size int64
	Err  error
}

func (e *TruncateError) Error() string {
	return fmt.Sprintf("mmvec: truncating file %q to size %d: %v", e.Path, e.Size, e.Err)
}

func (e *TruncateError) Unwrap() []error {
	return []error{ErrTruncate, e.Err}
}
