package mmvec

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"golang.org/x/sys/unix"
)

// File format constants.
//
// A file is the data region (bytesize bytes, a multiple of the page size)
// followed by a 32-byte little-endian trailer:
//
//	size (u64) | capacity (u64) | bytesize (u64) | magic (u32) | version (u32)
const (
	magicNumber   uint32 = 7601577
	formatVersion uint32 = 0

	trailerSize = 32
)

// Trailer field offsets (bytes from trailer start).
const (
	offSize     = 0x00 // uint64
	offCapacity = 0x08 // uint64
	offByteSize = 0x10 // uint64
	offMagic    = 0x18 // uint32
	offVersion  = 0x1C // uint32
)

// MinCapacity is the smallest capacity a growth event ever produces.
const MinCapacity = 100

// Safe integer conversion constants.
const (
	maxInt   = int(^uint(0) >> 1)
	maxInt64 = int64(^uint64(0) >> 1)
)

// pageSize is the granularity of every mapping and of bytesize.
var pageSize = uint64(unix.Getpagesize())

// trailer is the metadata written at the end of every array file.
type trailer struct {
	Size     uint64
	Capacity uint64
	ByteSize uint64
	Magic    uint32
	Version  uint32
}

func encodeTrailer(t trailer) []byte {
	buf := make([]byte, trailerSize)

	binary.LittleEndian.PutUint64(buf[offSize:], t.Size)
	binary.LittleEndian.PutUint64(buf[offCapacity:], t.Capacity)
	binary.LittleEndian.PutUint64(buf[offByteSize:], t.ByteSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], t.Magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], t.Version)

	return buf
}

func decodeTrailer(buf []byte) trailer {
	return trailer{
		Size:     binary.LittleEndian.Uint64(buf[offSize:]),
		Capacity: binary.LittleEndian.Uint64(buf[offCapacity:]),
		ByteSize: binary.LittleEndian.Uint64(buf[offByteSize:]),
		Magic:    binary.LittleEndian.Uint32(buf[offMagic:]),
		Version:  binary.LittleEndian.Uint32(buf[offVersion:]),
	}
}

// validate checks the trailer against the file it was read from.
//
// Magic and version are checked first so that foreign files always report
// [ErrFormatInvalid] with the same message.
func (t trailer) validate(fileSize int64, elemSize uint64) error {
	if t.Magic != magicNumber {
		return fmt.Errorf("magic number %d != %d: %w", t.Magic, magicNumber, ErrFormatInvalid)
	}

	if t.Version != formatVersion {
		return fmt.Errorf("version %d != %d: %w", t.Version, formatVersion, ErrFormatInvalid)
	}

	if t.ByteSize == 0 || t.ByteSize%pageSize != 0 {
		return fmt.Errorf("bytesize %d is not a positive multiple of page size %d: %w", t.ByteSize, pageSize, ErrFormatInvalid)
	}

	if t.ByteSize > uint64(maxInt64-trailerSize) || int64(t.ByteSize)+trailerSize != fileSize {
		return fmt.Errorf("bytesize %d + trailer %d != file size %d: %w", t.ByteSize, trailerSize, fileSize, ErrFormatInvalid)
	}

	if t.Size > t.Capacity {
		return fmt.Errorf("size %d > capacity %d: %w", t.Size, t.Capacity, ErrFormatInvalid)
	}

	if t.Capacity > t.ByteSize/elemSize {
		return fmt.Errorf("capacity %d does not fit bytesize %d with element size %d: %w", t.Capacity, t.ByteSize, elemSize, ErrFormatInvalid)
	}

	return nil
}

// fileSizeFor converts an element count into the smallest multiple of the
// page size that holds count elements, and the capacity that region yields.
//
// A zero count still yields one page; a mapping cannot be empty.
func fileSizeFor(count, elemSize uint64) (capacity, bytesize uint64, err error) {
	if elemSize == 0 {
		return 0, 0, fmt.Errorf("element size is zero: %w", ErrInvalidInput)
	}

	// Keep bytesize + trailer and the mapping length inside int.
	limit := uint64(maxInt) - trailerSize - pageSize
	if count > limit/elemSize {
		return 0, 0, fmt.Errorf("count %d with element size %d overflows: %w", count, elemSize, ErrInvalidInput)
	}

	bytes := max(count*elemSize, 1)
	bytesize = (bytes + pageSize - 1) / pageSize * pageSize

	return bytesize / elemSize, bytesize, nil
}

// grownCapacity returns the capacity requested when an append finds the
// array full: 1.5x the current capacity, never below [MinCapacity].
func grownCapacity(capacity uint64) uint64 {
	return max(capacity+capacity/2, MinCapacity)
}

// checkElemType rejects types whose values cannot be stored in a file
// mapping and read back by another process.
func checkElemType(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("element type is an interface: %w", ErrInvalidInput)
	}

	if t.Size() == 0 {
		return fmt.Errorf("element type %s has zero size: %w", t, ErrInvalidInput)
	}

	return checkPlain(t, t)
}

func checkPlain(root, t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPlain(root, t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if err := checkPlain(root, t.Field(i).Type); err != nil {
				return err
			}
		}

		return nil
	default:
		return fmt.Errorf("element type %s contains %s: %w", root, t.Kind(), ErrInvalidInput)
	}
}
