package mmvec

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/calvinalkan/mmvec/pkg/fs"
	"golang.org/x/sys/unix"
)

// AccessPattern is an advisory hint passed to the kernel via madvise(2).
type AccessPattern int

const (
	// AccessNone leaves the kernel defaults in place (MADV_NORMAL).
	AccessNone AccessPattern = iota

	// AccessRandom disables read-ahead (MADV_RANDOM).
	AccessRandom

	// AccessSequential enables aggressive read-ahead (MADV_SEQUENTIAL).
	AccessSequential
)

func (p AccessPattern) String() string {
	switch p {
	case AccessNone:
		return "none"
	case AccessRandom:
		return "random"
	case AccessSequential:
		return "sequential"
	default:
		return fmt.Sprintf("AccessPattern(%d)", int(p))
	}
}

// ParseAccessPattern parses "none", "random" or "sequential" (case-insensitive).
// The empty string parses as [AccessNone].
func ParseAccessPattern(s string) (AccessPattern, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AccessNone, nil
	case "random":
		return AccessRandom, nil
	case "sequential":
		return AccessSequential, nil
	default:
		return AccessNone, fmt.Errorf("unknown access pattern %q: %w", s, ErrInvalidInput)
	}
}

func (p AccessPattern) advice() (int, error) {
	switch p {
	case AccessNone:
		return unix.MADV_NORMAL, nil
	case AccessRandom:
		return unix.MADV_RANDOM, nil
	case AccessSequential:
		return unix.MADV_SEQUENTIAL, nil
	default:
		return 0, fmt.Errorf("unknown access pattern %d: %w", int(p), ErrInvalidInput)
	}
}

// Options configures opening an array file.
//
// The zero value is usable.
type Options struct {
	// AccessPattern is advised to the kernel right after mapping.
	//
	// Default is [AccessNone].
	AccessPattern AccessPattern

	// FS is used for every path-level operation (open, stat, remove,
	// lock files). Default is [fs.NewReal].
	FS fs.FS

	// Logger receives failures that cannot be returned to a caller, such as
	// a failed flush while an [Ephemeral] array is being discarded.
	// Default is [slog.Default].
	Logger *slog.Logger

	// DisableLocking disables the writer lock file at Path+".lock".
	//
	// When true, the caller MUST ensure that no two writable handles map
	// the same file at the same time.
	DisableLocking bool
}

func (o Options) withDefaults() Options {
	if o.FS == nil {
		o.FS = fs.NewReal()
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// lockPath returns the writer lock file for an array file.
func lockPath(path string) string {
	return path + ".lock"
}
