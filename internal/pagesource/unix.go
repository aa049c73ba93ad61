//go:build linux || darwin

package pagesource

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// Unix acquires pages via anonymous mmap and releases them via munmap.
// mmap itself guarantees page alignment, so no extra bookkeeping is
// needed to satisfy the Source contract's alignment requirement.
type Unix struct {
	log *slog.Logger
}

// NewUnix returns a Source backed by anonymous mmap. A nil logger
// disables diagnostic logging on the (expected-rare) OOM path.
func NewUnix(log *slog.Logger) *Unix {
	if log == nil {
		log = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	return &Unix{log: log}
}

func (u *Unix) AcquirePages(nBytes uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(nBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		u.log.Warn("mmap failed", "bytes", nBytes, "error", err)
		return 0, ErrOutOfMemory
	}
	return uintptr(unsafeSliceData(b)), nil
}

func (u *Unix) ReleasePages(base, nBytes uintptr) {
	b := unsafeBytesAt(base, nBytes)
	if err := unix.Munmap(b); err != nil {
		u.log.Warn("munmap failed", "base", base, "bytes", nBytes, "error", err)
	}
}
