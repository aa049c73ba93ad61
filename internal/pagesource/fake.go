package pagesource

import "unsafe"

const fakePageSize = 4096

// Fake is a Source backed by one large in-process, page-aligned buffer
// instead of the operating system. It never returns memory once handed
// out (ReleasePages is a no-op) and it never shrinks, so it exists
// purely so tests elsewhere in this module can exercise span carving,
// coalescing and object layout against real, writable memory without
// going through mmap or burning actual address space.
type Fake struct {
	buf   []byte
	off   uintptr
	limit uintptr
}

// NewFake returns a Fake able to satisfy AcquirePages calls totalling up
// to size bytes before reporting ErrOutOfMemory.
func NewFake(size int) *Fake {
	buf := make([]byte, size+fakePageSize)
	raw := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (raw + fakePageSize - 1) &^ (fakePageSize - 1)
	off := aligned - raw
	return &Fake{buf: buf, off: off, limit: off + uintptr(size)}
}

func (f *Fake) AcquirePages(nBytes uintptr) (uintptr, error) {
	if f.off+nBytes > f.limit {
		return 0, ErrOutOfMemory
	}
	addr := uintptr(unsafe.Pointer(&f.buf[f.off]))
	f.off += nBytes
	return addr, nil
}

func (f *Fake) ReleasePages(base, nBytes uintptr) {}
