package pcache

import (
	"testing"

	"github.com/gopherspan/concalloc/internal/pagesource"
	"github.com/gopherspan/concalloc/internal/sizeclass"
	"github.com/gopherspan/concalloc/internal/span"
)

func newTestCache(t *testing.T, bytes int) *Cache {
	t.Helper()
	return New(pagesource.NewFake(bytes), nil)
}

func TestNewSpanGrowsFromSource(t *testing.T) {
	c := newTestCache(t, (NPages)*sizeclass.PageSize*4)

	s, err := c.NewSpan(5)
	if err != nil {
		t.Fatalf("NewSpan(5) error: %v", err)
	}
	if s.NPages != 5 {
		t.Errorf("NPages = %d, want 5", s.NPages)
	}
	if s.UseCount != 1 {
		t.Errorf("UseCount = %d, want 1", s.UseCount)
	}

	got := c.MapObjectToSpan(s.Base(sizeclass.PageShift))
	if got != s {
		t.Errorf("MapObjectToSpan(base) = %v, want %v", got, s)
	}
}

func TestNewSpanSplitsLargerFreeSpan(t *testing.T) {
	c := newTestCache(t, NPages*sizeclass.PageSize*2)

	big, err := c.NewSpan(NPages - 1)
	if err != nil {
		t.Fatalf("NewSpan(%d) error: %v", NPages-1, err)
	}
	c.ReleaseSpan(big)

	small, err := c.NewSpan(3)
	if err != nil {
		t.Fatalf("NewSpan(3) error: %v", err)
	}
	if small.NPages != 3 {
		t.Fatalf("NPages = %d, want 3", small.NPages)
	}
	if small.PageID != big.PageID {
		t.Errorf("split span should start at the same page id as the free span it split, got %d want %d", small.PageID, big.PageID)
	}

	// The remainder must still be servable.
	rem, err := c.NewSpan(NPages - 1 - 3)
	if err != nil {
		t.Fatalf("NewSpan for remainder error: %v", err)
	}
	if rem.PageID != big.PageID+3 {
		t.Errorf("remainder PageID = %d, want %d", rem.PageID, big.PageID+3)
	}
}

func TestReleaseSpanCoalescesBackwardAndForward(t *testing.T) {
	// A source sized to exactly one grow chunk (NPages-1 pages) means 32
	// successive 4-page allocations tile it with no leftover remainder
	// span to complicate the coalescing math below.
	c := newTestCache(t, (NPages-1)*sizeclass.PageSize)

	const n = (NPages - 1) / 4
	spans := make([]*span.Span, n)
	for i := range spans {
		s, err := c.NewSpan(4)
		if err != nil {
			t.Fatalf("NewSpan(4) #%d error: %v", i, err)
		}
		spans[i] = s
	}
	for i := 1; i < n; i++ {
		if spans[i].PageID != spans[i-1].PageID+4 {
			t.Fatalf("span %d not adjacent to span %d: %d vs %d", i, i-1, spans[i].PageID, spans[i-1].PageID)
		}
	}

	a, b, d := spans[0], spans[1], spans[2]
	c.ReleaseSpan(a)
	c.ReleaseSpan(d)
	c.ReleaseSpan(b) // should coalesce with both neighbors

	merged := c.MapObjectToSpan(a.Base(sizeclass.PageShift))
	if merged.NPages != 12 {
		t.Errorf("merged span NPages = %d, want 12", merged.NPages)
	}
	if merged.UseCount != 0 {
		t.Errorf("merged free span UseCount = %d, want 0", merged.UseCount)
	}
}

func TestReleaseSpanRefusesToExceedNPagesLimit(t *testing.T) {
	c := newTestCache(t, NPages*sizeclass.PageSize*3)

	a, err := c.NewSpan(NPages - 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.NewSpan(3)
	if err != nil {
		t.Fatal(err)
	}
	if b.PageID != a.PageID+(NPages-1) {
		t.Skip("page source didn't hand out adjacent spans")
	}

	c.ReleaseSpan(a)
	c.ReleaseSpan(b)

	merged := c.MapObjectToSpan(a.Base(sizeclass.PageShift))
	if merged.NPages > NPages-1 {
		t.Errorf("coalesced span has %d pages, must never exceed %d", merged.NPages, NPages-1)
	}
}

func TestAllocBigSpanBypassesPageFreeLists(t *testing.T) {
	c := newTestCache(t, (NPages+10)*sizeclass.PageSize)

	s, err := c.AllocBigSpan(uintptr(NPages+1) * sizeclass.PageSize)
	if err != nil {
		t.Fatalf("AllocBigSpan error: %v", err)
	}
	if s.NPages != NPages+1 {
		t.Errorf("NPages = %d, want %d", s.NPages, NPages+1)
	}

	c.FreeBigSpan(s)
	if got := c.pageMap.Lookup(s.PageID); got != nil {
		t.Errorf("page map still has an entry after FreeBigSpan")
	}
}

func TestNewSpanOutOfMemory(t *testing.T) {
	c := newTestCache(t, int(sizeclass.PageSize)) // far too small to grow by a full NPages-1 span

	if _, err := c.NewSpan(5); err == nil {
		t.Fatalf("expected an out-of-memory error")
	}
}
