// Package pagemap implements the global page id -> owning span index that
// lets the allocator recover a span (and therefore a size class) from any
// live object address, per spec.md §3/§4.5/§9.
//
// The teacher's own runtime uses a flat array indexed by (page id -
// arena_start) because the runtime manages one or a few large contiguous
// arenas (see wenfang-golang1.6-src/src/runtime/mheap.go's h_spans). This
// allocator instead requests independent mmap regions from the page
// source over its lifetime, so page ids are not contiguous across the
// whole address space; a hash map is the structure spec.md §9 explicitly
// names as the reference layout for exactly this case.
//
// Reads happen with only the central cache's class mutex held, or with no
// lock at all (spec.md §5); writes happen only under the page cache's
// mutex. A sync.RWMutex gives concurrent readers while serializing against
// the infrequent writer, satisfying that contract without requiring a
// lock-free structure.
package pagemap

import (
	"sync"

	"github.com/gopherspan/concalloc/internal/span"
)

// Map is the page id -> *span.Span index.
type Map struct {
	mu sync.RWMutex
	m  map[span.PageID]*span.Span
}

// New returns an empty Map.
func New() *Map {
	return &Map{m: make(map[span.PageID]*span.Span)}
}

// Lookup returns the span owning pid, or nil if pid is not mapped.
func (m *Map) Lookup(pid span.PageID) *span.Span {
	m.mu.RLock()
	s := m.m[pid]
	m.mu.RUnlock()
	return s
}

// Set maps pid to s. Must be called with the page cache's mutex held, per
// spec.md §5's "the page map is mutated only under the PC mutex."
func (m *Map) Set(pid span.PageID, s *span.Span) {
	m.mu.Lock()
	m.m[pid] = s
	m.mu.Unlock()
}

// SetRange maps every page id in [pid, pid+n) to s in one critical
// section, used when publishing a freshly carved or freshly acquired
// span.
func (m *Map) SetRange(pid span.PageID, n uintptr, s *span.Span) {
	m.mu.Lock()
	for i := uintptr(0); i < n; i++ {
		m.m[pid+span.PageID(i)] = s
	}
	m.mu.Unlock()
}

// Delete removes pid's mapping.
func (m *Map) Delete(pid span.PageID) {
	m.mu.Lock()
	delete(m.m, pid)
	m.mu.Unlock()
}

// DeleteRange removes the mappings for every page id in [pid, pid+n).
// The page cache's FreeBigSpan does not use it: a span above NPages-1
// pages has only its first page id mapped, and FreeBigSpan removes that
// one entry with Delete.
func (m *Map) DeleteRange(pid span.PageID, n uintptr) {
	m.mu.Lock()
	for i := uintptr(0); i < n; i++ {
		delete(m.m, pid+span.PageID(i))
	}
	m.mu.Unlock()
}
