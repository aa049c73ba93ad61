// Package pagesource defines the allocator's only OS dependency: a source
// of large, page-aligned, contiguous byte ranges. Everything above this
// package — the page cache, central cache, thread cache — never touches
// an OS primitive directly, matching spec.md §6's framing of "the system
// page source" as the sole external collaborator the core allocates
// memory through.
package pagesource

import "errors"

// ErrOutOfMemory is returned by Source implementations when the
// underlying OS primitive fails to satisfy a request. It is the only
// expected failure mode (spec.md §7): no transient errors, no retries.
var ErrOutOfMemory = errors.New("pagesource: out of memory")

// Source acquires and releases raw pages from the operating system.
// nBytes is always a multiple of sizeclass.PageSize; AcquirePages must
// return a PageSize-aligned address.
type Source interface {
	AcquirePages(nBytes uintptr) (base uintptr, err error)
	ReleasePages(base, nBytes uintptr)
}
