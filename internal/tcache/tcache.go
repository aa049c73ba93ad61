// Package tcache implements the Thread Cache: a per-caller, lock-free
// set of size-class free lists that absorb the overwhelming majority of
// Allocate/Deallocate traffic without ever touching a mutex. It talks to
// the Central Cache only to refill an empty class or to drain a class
// that has accumulated too much.
//
// Grounded on the teacher's runtime/mcache.go (mcache.nextFree's refill
// path, mcache.refill's batch transfer from the central cache) and on
// the older, simpler sibling pack repo wenfang-golang1.6-src's
// runtime/mcache.go, adapted from the teacher's "one span cached per
// class, bump-allocate within it" model to spec.md §4.3's "a bounded
// batch of loose objects per class, topped up or drained in bulk."
package tcache

import (
	"github.com/gopherspan/concalloc/internal/ccache"
	"github.com/gopherspan/concalloc/internal/fatal"
	"github.com/gopherspan/concalloc/internal/freelist"
	"github.com/gopherspan/concalloc/internal/sizeclass"
)

// classState is one size class's slice of a thread cache: a loose free
// list plus the adaptive batch size used the next time it needs a
// refill.
type classState struct {
	free freelist.List

	// batchSize is how many objects to ask the central cache for on the
	// next refill. It starts small and grows towards
	// sizeclass.NumMoveSize(cls) as a class proves it's hot, matching
	// the teacher's mcache "slow start" comment in malloc.go: allocating
	// a big batch for a class used only once would strand memory in a
	// cache nobody drains.
	batchSize uintptr
}

// Cache is a Thread Cache: the object a single goroutine (or worker)
// acquires and funnels all its allocations through. It is NOT safe for
// concurrent use by more than one goroutine at a time; that's the whole
// point, see spec.md §3's "Thread Cache... is not shared; no
// synchronization is needed for operations local to it."
type Cache struct {
	classes [sizeclass.NumClasses]classState
	cc      *ccache.Cache
}

// New returns an empty Thread Cache drawing from cc.
func New(cc *ccache.Cache) *Cache {
	t := &Cache{cc: cc}
	for cls := range t.classes {
		t.classes[cls].batchSize = 1
	}
	return t
}

// Allocate returns an object sized to fit a request of size bytes (or an
// error if the central cache, and in turn the page cache, can't grow to
// satisfy it). Requests larger than sizeclass.MaxBytes belong on the
// central cache's AllocBig path instead; Allocate does not check.
func (t *Cache) Allocate(size uintptr) (uintptr, error) {
	cls := sizeclass.Index(size)
	cs := &t.classes[cls]

	if cs.free.Empty() {
		if err := t.refill(cls, cs); err != nil {
			return 0, err
		}
	}

	obj, ok := cs.free.Pop()
	if !ok {
		fatal.Invariant("tcache: refill of class %d reported success but left the free list empty", cls)
	}
	return uintptr(obj), nil
}

// refill fetches a batch from the central cache. want is clamped to
// sizeclass.NumMoveSize(cls); the batch size itself grows by one (slow
// start) each time a refill comes back completely full, so a class under
// sustained pressure gradually fetches larger batches less often, per
// spec.md §4.3's adaptive-growth rule. A refill that comes back partially
// empty (the central cache's span exhausted early) leaves batchSize
// alone: that's a sign of scarcity, not of this class needing more.
func (t *Cache) refill(cls int, cs *classState) error {
	max := sizeclass.NumMoveSize(cls)
	want := cs.batchSize
	if want > max {
		want = max
	}

	head, tail, got, err := t.cc.FetchRange(cls, int(want))
	if err != nil {
		return err
	}
	cs.free.PushRange(head, tail, got)

	if uintptr(got) == want && cs.batchSize < max {
		cs.batchSize++
	}
	return nil
}

// Deallocate returns addr (an object previously returned by Allocate for
// the same size) to this thread cache's free list for its class,
// draining half the class back to the central cache if it has grown
// past the class's NumMoveSize cap. See spec.md §4.3's overflow rule.
func (t *Cache) Deallocate(addr uintptr, size uintptr) {
	cls := sizeclass.Index(size)
	cs := &t.classes[cls]

	cs.free.Push(freelist.Node(addr))

	if max := int(sizeclass.NumMoveSize(cls)); cs.free.Len() > max {
		t.drain(cls, cs, cs.free.Len()/2)
	}
}

// drain returns n objects of cls from this thread cache back to the
// central cache.
func (t *Cache) drain(cls int, cs *classState, n int) {
	if n <= 0 {
		return
	}
	head, tail, got := cs.free.PopRange(n)
	if got == 0 {
		return
	}
	t.cc.ReleaseRange(cls, head, got)
	_ = tail // retained for symmetry with FetchRange's signature; ReleaseRange only needs the head and count
}

// Flush drains every class entirely, returning all of this thread
// cache's held objects to the central cache. Callers that are done with
// a Cache (a worker goroutine exiting, a pooled Cache being returned)
// must call Flush first or the objects it's holding are unreachable
// until the whole allocator is torn down.
func (t *Cache) Flush() {
	for cls := range t.classes {
		cs := &t.classes[cls]
		for !cs.free.Empty() {
			t.drain(cls, cs, cs.free.Len())
		}
	}
}
