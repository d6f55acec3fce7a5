package mmvec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/calvinalkan/mmvec/pkg/fs"
	"golang.org/x/sys/unix"
)

// mapping owns one file mapping together with the trailer metadata that
// describes it. [Array], [View] and [Ephemeral] are typed façades over it
// and expose only the operations they permit.
//
// A mapping is open if and only if data is non-nil. Copying a mapping
// value transfers ownership; the source must be reset to the zero value
// right after (see moveOut).
type mapping struct {
	file fs.File
	lock *fs.Lock
	data []byte

	size     uint64
	capacity uint64
	bytesize uint64
	elemSize uint64

	path     string
	pattern  AccessPattern
	writable bool

	opts Options
}

func (m *mapping) isOpen() bool {
	return m.data != nil
}

func (m *mapping) checkOpen() error {
	if m.data == nil {
		return ErrUninitialized
	}

	return nil
}

// moveOut returns a copy that owns the mapping and leaves m inert: closed,
// with an empty path so that nothing (not even file deletion) is done on
// its behalf anymore.
func (m *mapping) moveOut() mapping {
	moved := *m
	*m = mapping{}

	return moved
}

// create truncates or creates the file at path, sizes it for count
// elements and maps it read-write. size and capacity are both set to count.
func (m *mapping) create(path string, count, elemSize uint64, opts Options) error {
	_, bytesize, err := fileSizeFor(count, elemSize)
	if err != nil {
		return err
	}

	lock, err := acquireWriterLock(path, opts)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)

	mkdirErr := opts.FS.MkdirAll(dir, 0o750)
	if mkdirErr != nil {
		return errors.Join(fmt.Errorf("create directory: %w", mkdirErr), releaseLock(lock))
	}

	file, err := opts.FS.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Join(fmt.Errorf("create file: %w", err), releaseLock(lock))
	}

	truncErr := truncateFile(file, path, bytesize)
	if truncErr != nil {
		return errors.Join(truncErr, file.Close(), releaseLock(lock))
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(bytesize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Join(fmt.Errorf("mmap %q: %w", path, err), file.Close(), releaseLock(lock))
	}

	*m = mapping{
		file:     file,
		lock:     lock,
		data:     data,
		size:     count,
		capacity: count,
		bytesize: bytesize,
		elemSize: elemSize,
		path:     path,
		pattern:  opts.AccessPattern,
		writable: true,
		opts:     opts,
	}

	adviseErr := m.advise(opts.AccessPattern)
	if adviseErr != nil {
		return errors.Join(adviseErr, m.release())
	}

	return nil
}

// attach maps a file previously written by [Array], trusting its trailer
// once magic, version and layout have been validated. Validation happens
// before anything is mapped, so a rejected file is left untouched.
func (m *mapping) attach(path string, elemSize uint64, writable bool, opts Options) error {
	var lock *fs.Lock

	if writable {
		var err error

		lock, err = acquireWriterLock(path, opts)
		if err != nil {
			return err
		}
	}

	flag, prot := os.O_RDONLY, unix.PROT_READ
	if writable {
		flag, prot = os.O_RDWR, unix.PROT_READ|unix.PROT_WRITE
	}

	file, err := opts.FS.OpenFile(path, flag, 0)
	if err != nil {
		return errors.Join(fmt.Errorf("open file: %w", err), releaseLock(lock))
	}

	t, err := readTrailer(file, elemSize)
	if err != nil {
		return errors.Join(fmt.Errorf("%q: %w", path, err), file.Close(), releaseLock(lock))
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(t.ByteSize), prot, unix.MAP_SHARED)
	if err != nil {
		return errors.Join(fmt.Errorf("mmap %q: %w", path, err), file.Close(), releaseLock(lock))
	}

	*m = mapping{
		file:     file,
		lock:     lock,
		data:     data,
		size:     t.Size,
		capacity: t.Capacity,
		bytesize: t.ByteSize,
		elemSize: elemSize,
		path:     path,
		pattern:  opts.AccessPattern,
		writable: writable,
		opts:     opts,
	}

	adviseErr := m.advise(opts.AccessPattern)
	if adviseErr != nil {
		return errors.Join(adviseErr, m.release())
	}

	return nil
}

func readTrailer(file fs.File, elemSize uint64) (trailer, error) {
	info, err := file.Stat()
	if err != nil {
		return trailer{}, fmt.Errorf("stat: %w", err)
	}

	fileSize := info.Size()
	if fileSize < trailerSize {
		return trailer{}, fmt.Errorf("file size %d is less than trailer size %d: %w", fileSize, trailerSize, ErrFormatInvalid)
	}

	buf := make([]byte, trailerSize)

	_, err = file.ReadAt(buf, fileSize-trailerSize)
	if err != nil {
		return trailer{}, fmt.Errorf("read trailer: %w", err)
	}

	t := decodeTrailer(buf)

	validateErr := t.validate(fileSize, elemSize)
	if validateErr != nil {
		return trailer{}, validateErr
	}

	return t, nil
}

// adaptCapacity resizes the file and the mapping so that it holds at least
// newCapacity elements. It can also shrink; size is clamped to the new
// capacity. The base address may change.
func (m *mapping) adaptCapacity(newCapacity uint64) error {
	capacity, bytesize, err := fileSizeFor(newCapacity, m.elemSize)
	if err != nil {
		return err
	}

	if bytesize != m.bytesize {
		truncErr := truncateFile(m.file, m.path, bytesize)
		if truncErr != nil {
			return truncErr
		}

		data, remapErr := remap(int(m.file.Fd()), m.data, int(bytesize), m.prot())
		if remapErr != nil {
			if data == nil {
				// The old mapping is gone; nothing is left to serve reads.
				return errors.Join(fmt.Errorf("remap %q to %d bytes: %w", m.path, bytesize, remapErr), m.release())
			}

			return fmt.Errorf("remap %q to %d bytes: %w", m.path, bytesize, remapErr)
		}

		m.data = data
		m.bytesize = bytesize

		adviseErr := m.advise(m.pattern)
		if adviseErr != nil {
			return adviseErr
		}
	}

	m.capacity = capacity
	m.size = min(m.size, capacity)

	return nil
}

func (m *mapping) prot() int {
	if m.writable {
		return unix.PROT_READ | unix.PROT_WRITE
	}

	return unix.PROT_READ
}

func (m *mapping) advise(p AccessPattern) error {
	advice, err := p.advice()
	if err != nil {
		return err
	}

	madviseErr := unix.Madvise(m.data, advice)
	if madviseErr != nil {
		return fmt.Errorf("madvise %s: %w", p, madviseErr)
	}

	m.pattern = p

	return nil
}

// writeTrailer cuts the file back to bytesize and appends the trailer.
func (m *mapping) writeTrailer() error {
	truncErr := truncateFile(m.file, m.path, m.bytesize)
	if truncErr != nil {
		return truncErr
	}

	buf := encodeTrailer(trailer{
		Size:     m.size,
		Capacity: m.capacity,
		ByteSize: m.bytesize,
		Magic:    magicNumber,
		Version:  formatVersion,
	})

	_, err := m.file.WriteAt(buf, int64(m.bytesize))
	if err != nil {
		return fmt.Errorf("write trailer %q: %w", m.path, err)
	}

	return nil
}

// flush syncs the data region and rewrites the trailer without closing.
func (m *mapping) flush() error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	if !m.writable {
		return nil
	}

	syncErr := unix.Msync(m.data, unix.MS_SYNC)
	if syncErr != nil {
		return fmt.Errorf("msync %q: %w", m.path, syncErr)
	}

	return m.writeTrailer()
}

// close writes the trailer (writable mappings only), unmaps and releases
// the file and lock. The path is kept. Closing a closed mapping is a no-op.
func (m *mapping) close() error {
	if !m.isOpen() {
		return nil
	}

	var trailerErr error
	if m.writable {
		trailerErr = m.writeTrailer()
	}

	return errors.Join(trailerErr, m.release())
}

// release unmaps and closes everything without writing metadata, then
// resets m to the unopened state (keeping path).
func (m *mapping) release() error {
	var unmapErr, closeErr error

	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			unmapErr = fmt.Errorf("munmap %q: %w", m.path, err)
		}
	}

	if m.file != nil {
		if err := m.file.Close(); err != nil {
			closeErr = fmt.Errorf("close %q: %w", m.path, err)
		}
	}

	lockErr := releaseLock(m.lock)

	*m = mapping{path: m.path, opts: m.opts}

	return errors.Join(unmapErr, closeErr, lockErr)
}

// elems returns the full capacity of m as a []T.
func elems[T any](m *mapping) []T {
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(m.data))), m.capacity)
}

func truncateFile(file fs.File, path string, size uint64) error {
	var err error

	for {
		err = unix.Ftruncate(int(file.Fd()), int64(size))
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}

	if err != nil {
		return &TruncateError{Path: path, Size: int64(size), Err: err}
	}

	return nil
}

func acquireWriterLock(path string, opts Options) (*fs.Lock, error) {
	if opts.DisableLocking {
		return nil, nil
	}

	lock, err := fs.NewLocker(opts.FS).TryLock(lockPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, fmt.Errorf("%q is mapped writable by another handle: %w", path, ErrBusy)
		}

		return nil, fmt.Errorf("acquire writer lock: %w", err)
	}

	return lock, nil
}

func releaseLock(lock *fs.Lock) error {
	if lock == nil {
		return nil
	}

	return lock.Close()
}
