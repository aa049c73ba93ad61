// Package pcache implements the Page Cache: the single, globally-locked,
// process-wide manager of page runs ("spans"). It is the only tier that
// talks to the system page source, and the only tier that coalesces
// adjacent free spans.
//
// Grounded on the sibling pack repo wenfang-golang1.6-src's
// runtime/mheap.go (allocSpanLocked / freeSpanLocked / grow — a flat
// array of free lists indexed by page count, exactly this spec's model,
// predating the radix-tree pageAlloc the teacher's later runtime uses)
// and on original_source's Alloctor/PageCache.cpp (NewSpan /
// ReleaseSpanToPageCache / AllocBigPageObj / MapObjectToSpan), the C++
// reference this allocator's design is distilled from.
package pcache

import (
	"log/slog"
	"sync"

	"github.com/gopherspan/concalloc/internal/fatal"
	"github.com/gopherspan/concalloc/internal/pagemap"
	"github.com/gopherspan/concalloc/internal/pagesource"
	"github.com/gopherspan/concalloc/internal/sizeclass"
	"github.com/gopherspan/concalloc/internal/span"
)

// NPages is the number of page-count buckets the page cache keeps free
// lists for: spans of 1..=NPages-1 pages. Index 0 is unused.
const NPages = 129

// Cache is the Page Cache. There is exactly one instance per allocator.
type Cache struct {
	mu        sync.Mutex
	spanLists [NPages]span.List
	pageMap   *pagemap.Map
	source    pagesource.Source
	log       *slog.Logger
}

// New returns an empty Page Cache backed by source.
func New(source pagesource.Source, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	c := &Cache{
		pageMap: pagemap.New(),
		source:  source,
		log:     log,
	}
	for i := range c.spanLists {
		c.spanLists[i].Init()
	}
	return c
}

func alignUpPages(nBytes uintptr) uintptr {
	return (nBytes + sizeclass.PageSize - 1) &^ (sizeclass.PageSize - 1)
}

// NewSpan returns a span of exactly n pages (1 <= n < NPages) with
// UseCount set to 1, splitting a larger free span or growing the heap as
// needed. See spec.md §4.5.
func (c *Cache) NewSpan(n uintptr) (*span.Span, error) {
	if n < 1 || n >= NPages {
		fatal.Invariant("pcache: NewSpan requested %d pages, must be in [1, %d)", n, NPages)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newSpanLocked(n)
}

func (c *Cache) newSpanLocked(n uintptr) (*span.Span, error) {
	if !c.spanLists[n].IsEmpty() {
		s := c.spanLists[n].PopFront()
		s.UseCount = 1
		return s, nil
	}

	for k := n + 1; k < NPages; k++ {
		if c.spanLists[k].IsEmpty() {
			continue
		}
		big := c.spanLists[k].PopFront()

		out := &span.Span{PageID: big.PageID, NPages: n, UseCount: 1}
		rem := &span.Span{PageID: big.PageID + span.PageID(n), NPages: k - n}

		// Map every page of both halves: small-object spans get objects
		// carved across their whole range by the central cache, and any
		// of those object addresses must resolve back to out via
		// MapObjectToSpan.
		c.pageMap.SetRange(out.PageID, out.NPages, out)
		c.pageMap.SetRange(rem.PageID, rem.NPages, rem)

		c.spanLists[rem.NPages].Insert(rem)
		return out, nil
	}

	// No span large enough exists. Grow by one full-size (NPages-1) span
	// from the system page source and retry; the retry is guaranteed to
	// find this fresh span in span_lists[NPages-1] (or something larger
	// if another grow raced in, which can't happen since we hold c.mu).
	const growPages = NPages - 1
	base, err := c.source.AcquirePages(growPages * sizeclass.PageSize)
	if err != nil {
		return nil, err
	}
	fresh := &span.Span{PageID: span.PageID(base >> sizeclass.PageShift), NPages: growPages}
	c.pageMap.SetRange(fresh.PageID, fresh.NPages, fresh)
	c.spanLists[fresh.NPages].Insert(fresh)
	return c.newSpanLocked(n)
}

// AllocBigSpan serves a request larger than sizeclass.MaxBytes directly:
// spans up to NPages-1 pages come from the normal free-list machinery;
// anything bigger goes straight to the system page source and is wrapped
// in a span with no freelist at all. See spec.md §4.5.
func (c *Cache) AllocBigSpan(size uintptr) (*span.Span, error) {
	size = alignUpPages(size)
	np := size >> sizeclass.PageShift

	if np < NPages {
		s, err := c.NewSpan(np)
		if err != nil {
			return nil, err
		}
		s.ObjSize = size
		s.UseCount = 1
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	base, err := c.source.AcquirePages(np * sizeclass.PageSize)
	if err != nil {
		return nil, err
	}
	s := &span.Span{
		PageID:   span.PageID(base >> sizeclass.PageShift),
		NPages:   np,
		ObjSize:  np * sizeclass.PageSize,
		UseCount: 1,
	}
	// Only the first page id is mapped here; FreeBigSpan deletes exactly
	// that one entry.
	c.pageMap.Set(s.PageID, s)
	return s, nil
}

// FreeBigSpan releases a span obtained from AllocBigSpan. Spans under
// NPages pages are routed back through the ordinary coalescing path;
// larger ones are unmapped and handed back to the system page source
// directly.
func (c *Cache) FreeBigSpan(s *span.Span) {
	if s.NPages < NPages {
		c.ReleaseSpan(s)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageMap.Delete(s.PageID)
	base := uintptr(s.PageID) << sizeclass.PageShift
	c.source.ReleasePages(base, s.NPages*sizeclass.PageSize)
}

// ReleaseSpan returns a span to the page cache, coalescing with free
// neighbors. See spec.md §4.5 and §9: both directions reject a merge that
// would exceed NPages-1 pages (the spec standardizes on the stricter,
// ">" bound the reference implementation only applied backward).
func (c *Cache) ReleaseSpan(s *span.Span) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s.ObjSize = 0
	s.UseCount = 0

	for {
		prev := c.pageMap.Lookup(s.PageID - 1)
		if prev == nil || prev.UseCount != 0 {
			break
		}
		if prev.NPages+s.NPages > NPages-1 {
			break
		}
		c.spanLists[prev.NPages].Remove(prev)
		merged := prev.NPages + s.NPages
		c.pageMap.SetRange(prev.PageID, merged, prev)
		prev.NPages = merged
		s = prev // s is absorbed into prev; the old record is now garbage
	}

	for {
		next := c.pageMap.Lookup(s.PageID + span.PageID(s.NPages))
		if next == nil || next.UseCount != 0 {
			break
		}
		if s.NPages+next.NPages > NPages-1 {
			break
		}
		c.spanLists[next.NPages].Remove(next)
		merged := s.NPages + next.NPages
		c.pageMap.SetRange(s.PageID, merged, s)
		s.NPages = merged
	}

	c.spanLists[s.NPages].Insert(s)
}

// MapObjectToSpan resolves any live object address back to its owning
// span. spec.md §4.5's invariant guarantees success for any address this
// allocator has returned and not yet freed; anything else is a programmer
// error (freeing or otherwise dereferencing an address this allocator
// never produced).
func (c *Cache) MapObjectToSpan(addr uintptr) *span.Span {
	pid := span.PageID(addr >> sizeclass.PageShift)
	s := c.pageMap.Lookup(pid)
	if s == nil {
		fatal.Invariant("address %#x is not owned by this allocator", addr)
	}
	return s
}
