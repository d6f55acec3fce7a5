package mmvec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/mmvec/pkg/mmvec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Ephemeral_Deletes_File_When_Closed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scratch.mmv")

	tmp, err := mmvec.NewEphemeral(path, mmvec.Empty[int64](), mmvec.Options{})
	require.NoError(t, err)

	for i := range 1000 {
		require.NoError(t, tmp.PushBack(int64(i)))
	}

	v, err := tmp.At(999)
	require.NoError(t, err)
	require.Equal(t, int64(999), v)

	require.FileExists(t, path)

	require.NoError(t, tmp.Close())

	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".lock")
	assert.False(t, tmp.IsOpen())
	assert.Empty(t, tmp.Path())

	// Closing again does nothing.
	require.NoError(t, tmp.Close())
}

func Test_Ephemeral_Move_Transfers_Deletion_To_New_Handle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "moved.mmv")

	src, err := mmvec.NewEphemeral(path, mmvec.Fill[int32](3, 1), mmvec.Options{})
	require.NoError(t, err)

	dst := src.Move()

	require.NoError(t, src.Close())
	require.FileExists(t, path, "moved-from handle must not delete the file")

	require.Equal(t, 3, dst.Len())
	require.Equal(t, path, dst.Path())

	require.NoError(t, dst.Close())
	assert.NoFileExists(t, path)
}

func Test_NewEphemeral_Returns_ErrInvalidInput_When_Source_Is_Reuse(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reuse.mmv")

	_, err := mmvec.NewEphemeral(path, mmvec.Reuse[int64](), mmvec.Options{})
	require.ErrorIs(t, err, mmvec.ErrInvalidInput)

	_, statErr := os.Stat(path)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func Test_Ephemeral_Supports_Full_Array_Interface(t *testing.T) {
	t.Parallel()

	tmp, err := mmvec.NewEphemeral(filepath.Join(t.TempDir(), "iface.mmv"), mmvec.FromSlice([]uint16{1, 2, 3}), mmvec.Options{})
	require.NoError(t, err)

	defer tmp.Close()

	require.NoError(t, tmp.SetAt(0, 10))
	require.NoError(t, tmp.Set(1, 20))

	back, err := tmp.Back()
	require.NoError(t, err)
	require.Equal(t, uint16(3), back)

	require.NoError(t, tmp.Reserve(4096))
	require.GreaterOrEqual(t, tmp.Cap(), 4096)

	require.NoError(t, tmp.Resize(2))

	got, err := tmp.Slice()
	require.NoError(t, err)
	require.Equal(t, []uint16{10, 20}, got)

	first, err := tmp.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint16(10), first)

	n := 0
	for range tmp.All() {
		n++
	}

	require.Equal(t, 2, n)

	require.NoError(t, tmp.SetAccessPattern(mmvec.AccessSequential))
	require.NoError(t, tmp.Clear())
	require.Equal(t, 0, tmp.Len())
}
