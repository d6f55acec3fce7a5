//go:build linux

package mmvec

import "golang.org/x/sys/unix"

// remap resizes a shared mapping in place with mremap(2). The kernel may
// move it; the old slice must not be used afterwards. On failure the old
// mapping is still valid and returned unchanged.
func remap(_ int, old []byte, newLen int, _ int) ([]byte, error) {
	data, err := unix.Mremap(old, newLen, unix.MREMAP_MAYMOVE)
	if err != nil {
		return old, err
	}

	return data, nil
}
