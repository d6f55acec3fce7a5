//go:build unix && !linux

package mmvec

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// remap resizes a shared mapping by unmapping and mapping again. A nil
// slice with a non-nil error means the old mapping is already gone.
func remap(fd int, old []byte, newLen int, prot int) ([]byte, error) {
	if err := unix.Munmap(old); err != nil {
		return old, fmt.Errorf("munmap: %w", err)
	}

	data, err := unix.Mmap(fd, 0, newLen, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return data, nil
}
