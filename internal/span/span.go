// Package span defines the Span record — a contiguous run of pages that is
// either free in the page cache, carved into equal-size objects in the
// central cache, or dedicated to a single big allocation — and the
// doubly-linked list primitive used to hold spans in whichever list
// currently owns them.
//
// Grounded on the teacher's mspan/mSpanList split (see
// go-go1.16.14/src/runtime/mheap.go's mspan and the sibling pack repo
// wenfang-golang1.6-src/src/runtime/mheap.go's simpler, pre-bitmap
// mSpanList), adapted to the spec's simpler per-span freelist-of-objects
// model instead of Go's GC mark/alloc bitmaps.
package span

import "github.com/gopherspan/concalloc/internal/freelist"

// PageID is a span's starting page number: its base byte address shifted
// right by PageShift.
type PageID uintptr

// Span describes a contiguous run of Npage pages starting at PageID.
//
// A span is in exactly one of three places at a time: a page-cache free
// list, a central-cache class ring, or (momentarily, while being carved
// or coalesced) nowhere, between being unlinked from one and inserted
// into the other.
type Span struct {
	Prev, Next *Span // list-membership pointers; meaning depends on which list owns the span

	PageID PageID
	NPages uintptr

	// ObjSize is the per-object size this span is carved into, 0 while
	// the span is free in the page cache (§3's "A PC-owned span has
	// usecount == 0 and objsize == 0").
	ObjSize uintptr

	// UseCount is the number of objects currently handed out of this
	// span's FreeList (or 1 for a big-object span with no freelist at
	// all).
	UseCount uint32

	// FreeList is this span's internal free list of unused objects.
	// Only meaningful while the span is owned by the central cache.
	FreeList freelist.List

	// inList reports whether Prev/Next are currently meaningful, purely
	// as a debugging aid for invariant assertions; it mirrors the
	// teacher's own mspan.list/inList() pattern.
	inList bool
}

// Base returns the span's starting byte address.
func (s *Span) Base(pageShift uintptr) uintptr {
	return uintptr(s.PageID) << pageShift
}

// Limit returns the first byte address past the end of the span.
func (s *Span) Limit(pageShift uintptr) uintptr {
	return (uintptr(s.PageID) + s.NPages) << pageShift
}

// InList reports whether the span is currently linked into a List.
func (s *Span) InList() bool {
	return s.inList
}

// List is a doubly-linked list of spans with a sentinel-free head/tail
// pair, matching the teacher's mSpanList.
type List struct {
	first, last *Span
}

// Init resets the list to empty. The zero value is already empty; Init
// exists for symmetry with the teacher's own mSpanList.init and for
// re-initializing a list that's been used as scratch space.
func (l *List) Init() {
	l.first = nil
	l.last = nil
}

// IsEmpty reports whether the list holds no spans.
func (l *List) IsEmpty() bool {
	return l.first == nil
}

// First returns the head span, or nil if the list is empty.
func (l *List) First() *Span {
	return l.first
}

// Insert prepends s to the list (push to front).
func (l *List) Insert(s *Span) {
	if s.inList {
		panic("span: Insert of span already in a list")
	}
	s.Next = l.first
	s.Prev = nil
	if l.first != nil {
		l.first.Prev = s
	} else {
		l.last = s
	}
	l.first = s
	s.inList = true
}

// InsertBack appends s to the list (push to back).
func (l *List) InsertBack(s *Span) {
	if s.inList {
		panic("span: InsertBack of span already in a list")
	}
	s.Prev = l.last
	s.Next = nil
	if l.last != nil {
		l.last.Next = s
	} else {
		l.first = s
	}
	l.last = s
	s.inList = true
}

// Remove unlinks s from the list. s must currently be a member of l.
func (l *List) Remove(s *Span) {
	if !s.inList {
		panic("span: Remove of span not in a list")
	}
	if s.Prev != nil {
		s.Prev.Next = s.Next
	} else {
		l.first = s.Next
	}
	if s.Next != nil {
		s.Next.Prev = s.Prev
	} else {
		l.last = s.Prev
	}
	s.Prev = nil
	s.Next = nil
	s.inList = false
}

// PopFront removes and returns the head span, or nil if the list is
// empty.
func (l *List) PopFront() *Span {
	s := l.first
	if s == nil {
		return nil
	}
	l.Remove(s)
	return s
}
