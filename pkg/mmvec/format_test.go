package mmvec

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func Test_FileSizeFor_Rounds_Up_To_Whole_Pages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		count        uint64
		elemSize     uint64
		wantCapacity uint64
		wantBytesize uint64
	}{
		{name: "zero count maps one page", count: 0, elemSize: 8, wantCapacity: pageSize / 8, wantBytesize: pageSize},
		{name: "one element", count: 1, elemSize: 8, wantCapacity: pageSize / 8, wantBytesize: pageSize},
		{name: "exactly one page", count: pageSize / 4, elemSize: 4, wantCapacity: pageSize / 4, wantBytesize: pageSize},
		{name: "one past a page", count: pageSize/4 + 1, elemSize: 4, wantCapacity: 2 * pageSize / 4, wantBytesize: 2 * pageSize},
		{name: "odd element size", count: 1000, elemSize: 12, wantCapacity: 3 * pageSize / 12, wantBytesize: 3 * pageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.name == "odd element size" && pageSize != 4096 {
				t.Skip("expectation assumes 4 KiB pages")
			}

			capacity, bytesize, err := fileSizeFor(tt.count, tt.elemSize)
			if err != nil {
				t.Fatalf("fileSizeFor: %v", err)
			}

			if capacity != tt.wantCapacity || bytesize != tt.wantBytesize {
				t.Fatalf("fileSizeFor(%d, %d)=(%d, %d), want=(%d, %d)",
					tt.count, tt.elemSize, capacity, bytesize, tt.wantCapacity, tt.wantBytesize)
			}

			if capacity < tt.count {
				t.Fatalf("capacity %d < count %d", capacity, tt.count)
			}
		})
	}
}

func Test_FileSizeFor_Returns_ErrInvalidInput_On_Overflow(t *testing.T) {
	t.Parallel()

	_, _, err := fileSizeFor(^uint64(0)/2, 8)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v, want %v", err, ErrInvalidInput)
	}

	_, _, err = fileSizeFor(1, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero elemSize: err=%v, want %v", err, ErrInvalidInput)
	}
}

func Test_GrownCapacity_Applies_Factor_And_Floor(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ in, want uint64 }{
		{0, MinCapacity},
		{1, MinCapacity},
		{66, MinCapacity},
		{67, 100},
		{100, 150},
		{512, 768},
		{1001, 1501},
	} {
		if got := grownCapacity(tc.in); got != tc.want {
			t.Errorf("grownCapacity(%d)=%d, want=%d", tc.in, got, tc.want)
		}
	}
}

func Test_Trailer_Encodes_Little_Endian_Layout(t *testing.T) {
	t.Parallel()

	in := trailer{Size: 5, Capacity: 512, ByteSize: 4096, Magic: magicNumber, Version: formatVersion}
	buf := encodeTrailer(in)

	if got, want := len(buf), trailerSize; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}

	// 7601577 == 0x0073_FDA9
	if got, want := buf[offMagic:offMagic+4], []byte{0xA9, 0xFD, 0x73, 0x00}; !bytes.Equal(got, want) {
		t.Fatalf("magic bytes=%x, want=%x", got, want)
	}

	if buf[offSize] != 5 || buf[offCapacity+1] != 0x02 || buf[offByteSize+1] != 0x10 {
		t.Fatalf("unexpected field bytes: %x", buf)
	}

	if diff := cmp.Diff(in, decodeTrailer(buf)); diff != "" {
		t.Fatalf("decodeTrailer mismatch (-want +got):\n%s", diff)
	}
}

func Test_Trailer_Validate_Rejects_Inconsistent_Layouts(t *testing.T) {
	t.Parallel()

	good := trailer{Size: 10, Capacity: pageSize / 8, ByteSize: pageSize, Magic: magicNumber, Version: formatVersion}
	goodFileSize := int64(pageSize) + trailerSize

	require.NoError(t, good.validate(goodFileSize, 8))

	tests := []struct {
		name     string
		mutate   func(*trailer)
		fileSize int64
		wantMsg  string
	}{
		{name: "magic", mutate: func(t *trailer) { t.Magic = 1 }, fileSize: goodFileSize, wantMsg: "magic number"},
		{name: "version", mutate: func(t *trailer) { t.Version = 1 }, fileSize: goodFileSize, wantMsg: "version"},
		{name: "bytesize not page multiple", mutate: func(t *trailer) { t.ByteSize = pageSize + 1 }, fileSize: int64(pageSize) + 1 + trailerSize, wantMsg: "multiple of page size"},
		{name: "zero bytesize", mutate: func(t *trailer) { t.ByteSize = 0 }, fileSize: trailerSize, wantMsg: "multiple of page size"},
		{name: "file size mismatch", mutate: func(*trailer) {}, fileSize: goodFileSize + 1, wantMsg: "file size"},
		{name: "size above capacity", mutate: func(t *trailer) { t.Size = t.Capacity + 1 }, fileSize: goodFileSize, wantMsg: "size"},
		{name: "capacity above bytesize", mutate: func(t *trailer) { t.Capacity = pageSize }, fileSize: goodFileSize, wantMsg: "does not fit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := good
			tt.mutate(&tr)

			err := tr.validate(tt.fileSize, 8)
			require.ErrorIs(t, err, ErrFormatInvalid)
			require.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func Test_CheckElemType_Accepts_Plain_Types_And_Rejects_Pointers(t *testing.T) {
	t.Parallel()

	type plain struct {
		A int64
		B [3]float32
		C bool
		D struct{ X, Y uint8 }
	}

	type withSlice struct {
		A int
		B []byte
	}

	accept := []reflect.Type{
		reflect.TypeFor[int8](),
		reflect.TypeFor[complex128](),
		reflect.TypeFor[[16]byte](),
		reflect.TypeFor[plain](),
	}

	for _, typ := range accept {
		if err := checkElemType(typ); err != nil {
			t.Errorf("checkElemType(%s)=%v, want nil", typ, err)
		}
	}

	reject := []reflect.Type{
		reflect.TypeFor[*int](),
		reflect.TypeFor[string](),
		reflect.TypeFor[map[int]int](),
		reflect.TypeFor[withSlice](),
		reflect.TypeFor[[2]*int](),
		reflect.TypeFor[struct{}](),
		reflect.TypeFor[[0]int64](),
		reflect.TypeFor[uintptr](),
		reflect.TypeFor[chan int](),
	}

	for _, typ := range reject {
		if err := checkElemType(typ); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("checkElemType(%s)=%v, want %v", typ, err, ErrInvalidInput)
		}
	}
}

// swapReadOnly replaces the mapping's file descriptor with a read-only one
// so that every ftruncate fails. It returns a func that restores the
// original file.
func swapReadOnly(t *testing.T, m *mapping) func() {
	t.Helper()

	ro, err := os.Open(m.path)
	require.NoError(t, err)

	orig := m.file
	m.file = ro

	return func() {
		require.NoError(t, ro.Close())

		m.file = orig
	}
}

func Test_Array_Returns_TruncateError_When_File_Cannot_Grow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trunc.mmv")

	a, err := Open(path, Fill[uint64](1, 7), Options{})
	require.NoError(t, err)

	restore := swapReadOnly(t, &a.m)

	err = a.Reserve(100_000)
	require.ErrorIs(t, err, ErrTruncate)

	var te *TruncateError
	require.ErrorAs(t, err, &te)
	require.Equal(t, path, te.Path)
	require.Positive(t, te.Size)

	// The array is unchanged and still usable.
	require.Equal(t, 1, a.Cap())

	v, err := a.At(0)
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)

	restore()
	require.NoError(t, a.Close())
}

func Test_Ephemeral_Logs_Close_Failure_And_Deletes_File_Anyway(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "eph.mmv")

	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logs, nil))

	e, err := NewEphemeral(path, Fill[int32](4, 1), Options{Logger: logger})
	require.NoError(t, err)

	orig := e.arr.m.file

	ro, err := os.Open(path)
	require.NoError(t, err)

	// Close closes ro via release; orig is ours to close.
	e.arr.m.file = ro

	require.NoError(t, e.Close())
	require.NoError(t, orig.Close())

	_, statErr := os.Stat(path)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.True(t, strings.Contains(logs.String(), "closing ephemeral array failed"), "log output: %s", logs.String())
	require.Contains(t, logs.String(), "level=ERROR")
}
