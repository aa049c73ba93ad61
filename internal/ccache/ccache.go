// Package ccache implements the Central Cache: the per-size-class shared
// pool that sits between the (unsynchronized, per-goroutine) thread
// caches and the single global page cache. Each class has its own mutex,
// so threads working on different classes never contend with each
// other.
//
// Grounded on the sibling pack repo wenfang-golang1.6-src's
// runtime/mcentral.go (MCentral_CacheSpan / MCentral_UncacheSpan /
// MCentral_Grow / MCentral_Free), whose single-span-per-class-at-a-time
// model predates the teacher's own sweepgen/GC-bitmap version and maps
// directly onto this allocator's simpler "span has an internal free
// list, central cache holds a ring of spans" design from spec.md §4.4.
package ccache

import (
	"log/slog"
	"sync"

	"github.com/gopherspan/concalloc/internal/fatal"
	"github.com/gopherspan/concalloc/internal/freelist"
	"github.com/gopherspan/concalloc/internal/pcache"
	"github.com/gopherspan/concalloc/internal/sizeclass"
	"github.com/gopherspan/concalloc/internal/span"
)

// classShard is the central cache's per-class state: a ring of spans with
// free objects (nonEmpty) and a ring of spans with none left (full),
// guarded by a single mutex. Splitting the two rings means FetchRange
// never has to skip over exhausted spans to find one with room.
type classShard struct {
	mu       sync.Mutex
	nonEmpty span.List
	full     span.List
}

// Cache is the Central Cache: one shard per size class, all backed by a
// shared Page Cache.
type Cache struct {
	shards [sizeclass.NumClasses]classShard
	pc     *pcache.Cache
	log    *slog.Logger

	// zeroOnCarve, when true, zeroes a span's backing pages once, at
	// carve time, before cutting it into objects. Spans recycled through
	// the page cache's coalescing can carry a previous class's object
	// bytes; zeroing here is the only point in the whole allocator where
	// that history gets scrubbed before a caller can observe it.
	zeroOnCarve bool
}

// New returns a Central Cache that carves fresh spans from pc. zeroOnCarve
// controls whether a span's pages are zeroed once at carve time (see the
// Cache.zeroOnCarve field doc); callers that only ever see freshly
// mmap'd (and therefore already-zero) memory, or that don't care about
// previous tenants' bytes, can pass false to skip the extra pass.
func New(pc *pcache.Cache, log *slog.Logger, zeroOnCarve bool) *Cache {
	if log == nil {
		log = slog.Default()
	}
	c := &Cache{pc: pc, log: log, zeroOnCarve: zeroOnCarve}
	for i := range c.shards {
		c.shards[i].nonEmpty.Init()
		c.shards[i].full.Init()
	}
	return c
}

// FetchRange hands the thread cache up to want objects of class cls,
// all drawn from a single span: if that span exhausts before want is
// reached, FetchRange returns what it has rather than moving on to a
// second span within the same call (spec.md §4.4's "the CC does not
// cross spans within a single fetch"). For want > 0, got is always > 0
// on a nil error; want <= 0 returns got == 0 and a nil error.
func (c *Cache) FetchRange(cls int, want int) (head, tail freelist.Node, got int, err error) {
	if want <= 0 {
		return 0, 0, 0, nil
	}
	sh := &c.shards[cls]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s := sh.nonEmpty.First()
	if s == nil {
		if growErr := c.growLocked(cls, sh); growErr != nil {
			return 0, 0, 0, growErr
		}
		s = sh.nonEmpty.First()
	}

	for got < want {
		obj, ok := s.FreeList.Pop()
		if !ok {
			break // this span is exhausted; stop rather than cross to another
		}
		obj.SetNext(0)
		if got == 0 {
			head = obj
		} else {
			tail.SetNext(obj)
		}
		tail = obj
		got++
		s.UseCount++
	}

	if got == 0 {
		fatal.Invariant("ccache: span in nonEmpty list for class %d had no free objects", cls)
	}
	if s.FreeList.Empty() {
		sh.nonEmpty.Remove(s)
		sh.full.Insert(s)
	}
	return head, tail, got, nil
}

// growLocked carves one fresh span for cls out of the page cache and
// files it under the class's nonEmpty ring. Must be called with sh.mu
// held.
func (c *Cache) growLocked(cls int, sh *classShard) error {
	npages := sizeclass.NumMovePage(cls)
	s, err := c.pc.NewSpan(npages)
	if err != nil {
		return err
	}

	objSize := sizeclass.ClassToSize(cls)
	s.ObjSize = objSize
	s.UseCount = 0

	base := s.Base(sizeclass.PageShift)
	limit := s.Limit(sizeclass.PageShift)

	if c.zeroOnCarve {
		zerofill(base, limit-base)
	}

	n := 0
	for addr := base; addr+objSize <= limit; addr += objSize {
		s.FreeList.Push(freelist.Node(addr))
		n++
	}
	if n == 0 {
		fatal.Invariant("ccache: span of %d pages too small to carve class %d objects of size %d", npages, cls, objSize)
	}

	sh.nonEmpty.Insert(s)
	return nil
}

// ReleaseRange returns a chain of n objects of class cls to the central
// cache. The objects need not all belong to the same span: the thread
// cache's batches accumulate across however many spans the central cache
// served it over time.
func (c *Cache) ReleaseRange(cls int, head freelist.Node, n int) {
	if n <= 0 {
		return
	}
	sh := &c.shards[cls]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur := head
	for i := 0; i < n; i++ {
		next := cur.Next()
		c.releaseOneLocked(sh, cur)
		cur = next
	}
}

// releaseOneLocked returns a single object to its owning span, promoting
// the span out of the full ring if it was exhausted, and handing the
// span back to the page cache once every object carved from it has come
// home. Must be called with sh.mu held.
func (c *Cache) releaseOneLocked(sh *classShard, obj freelist.Node) {
	s := c.pc.MapObjectToSpan(uintptr(obj))
	wasFull := s.FreeList.Empty()

	s.FreeList.Push(obj)
	if s.UseCount == 0 {
		fatal.Invariant("ccache: release of object %#x into span with UseCount already 0 (double free)", uintptr(obj))
	}
	s.UseCount--

	if wasFull {
		sh.full.Remove(s)
		sh.nonEmpty.Insert(s)
	}

	if s.UseCount == 0 {
		sh.nonEmpty.Remove(s)
		s.ObjSize = 0
		s.FreeList = freelist.List{}
		c.pc.ReleaseSpan(s)
	}
}

// MapObjectToSpan exposes the page cache's address-to-span lookup so the
// root package can find a big object's span when it is freed. Like the
// page cache's own lookup, it panics on an address this allocator never
// handed out.
func (c *Cache) MapObjectToSpan(addr uintptr) *span.Span {
	return c.pc.MapObjectToSpan(addr)
}

// AllocBig and FreeBig pass big-object requests straight through to the
// page cache, bypassing size classes entirely, per spec.md §4.3's
// MaxBytes threshold.
func (c *Cache) AllocBig(size uintptr) (*span.Span, error) {
	return c.pc.AllocBigSpan(size)
}

func (c *Cache) FreeBig(s *span.Span) {
	c.pc.FreeBigSpan(s)
}

// ClassStats is a snapshot of one size class's outstanding and cached
// object counts, used to build a heap profile.
type ClassStats struct {
	Class       int
	ObjSize     uintptr
	LiveObjects uint64
	FreeObjects uint64
}

// Stats returns a snapshot of every size class that currently owns at
// least one span. Each class is locked only for the duration of its own
// snapshot, so the result is not a single consistent point in time
// across classes, which is fine for a diagnostic profile.
func (c *Cache) Stats() []ClassStats {
	out := make([]ClassStats, 0, sizeclass.NumClasses)
	for cls := range c.shards {
		sh := &c.shards[cls]
		sh.mu.Lock()
		var live, free uint64
		for s := sh.nonEmpty.First(); s != nil; s = s.Next {
			live += uint64(s.UseCount)
			free += uint64(s.FreeList.Len())
		}
		for s := sh.full.First(); s != nil; s = s.Next {
			live += uint64(s.UseCount)
		}
		sh.mu.Unlock()

		if live == 0 && free == 0 {
			continue
		}
		out = append(out, ClassStats{
			Class:       cls,
			ObjSize:     sizeclass.ClassToSize(cls),
			LiveObjects: live,
			FreeObjects: free,
		})
	}
	return out
}
