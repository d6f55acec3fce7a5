// Package mmvec provides a persistent, growable array backed by a
// memory-mapped file.
//
// Three handle types share one mapping core:
//   - [Array]: read-write, persistent; the file survives Close
//   - [View]: read-only mapping of a file written by [Array]
//   - [Ephemeral]: read-write scratch array whose file is deleted on Close
//
// # Basic Usage
//
//	arr, err := mmvec.Open("/tmp/ids.mmv", mmvec.Fill[uint64](4, 0), mmvec.Options{})
//	if err != nil {
//	    return err
//	}
//	defer arr.Close()
//
//	_ = arr.PushBack(5)
//	v, err := arr.At(4) // 5
//
//	// Later, possibly in another process:
//	arr, err = mmvec.Open("/tmp/ids.mmv", mmvec.Reuse[uint64](), mmvec.Options{})
//
// # File Format
//
// The data region (a multiple of the page size) is followed by a 32-byte
// trailer holding size, capacity, bytesize, a magic number and a format
// version. Reusing a file whose trailer does not match returns
// [ErrFormatInvalid]; delete it and rebuild from your source of truth.
//
// Element bytes are stored in native layout, so files are only portable
// between machines with the same byte order and struct layout.
//
// # Concurrency
//
// Handles are not safe for concurrent use. Only one writable handle per
// file may exist at a time; a second one gets [ErrBusy].
package mmvec
