// Package concalloc implements a three-tier, thread-caching small-object
// allocator: a per-caller Thread Cache backed by a sharded Central
// Cache, backed by a single global Page Cache that talks directly to the
// operating system.
//
// Grounded throughout on the teacher's own mcache/mcentral/mheap split
// (see go-go1.16.14/src/runtime/{mcache,mcentral,mheap,malloc}.go), with
// the GC-specific machinery (mark bits, sweepgen, stack scanning)
// stripped out: this package allocates memory, it doesn't collect it.
package concalloc

import (
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"github.com/gopherspan/concalloc/internal/ccache"
	"github.com/gopherspan/concalloc/internal/pagesource"
	"github.com/gopherspan/concalloc/internal/pcache"
	"github.com/gopherspan/concalloc/internal/sizeclass"
	"github.com/gopherspan/concalloc/internal/tcache"
)

// Allocator owns one Page Cache and one Central Cache. A process
// typically creates a single Allocator and shares it across every
// goroutine that needs to allocate from it; each goroutine in turn
// acquires its own Cache from it, see AcquireCache.
type Allocator struct {
	pc  *pcache.Cache
	cc  *ccache.Cache
	log *slog.Logger

	pool sync.Pool // *Cache, backs the package-level Alloc/Free convenience path
}

// New builds an Allocator. With no options it sources pages from
// anonymous mmap (internal/pagesource.Unix) and logs to slog.Default().
func New(opts ...Option) *Allocator {
	cfg := config{zeroOnCarve: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	if cfg.source == nil {
		cfg.source = pagesource.NewUnix(cfg.log)
	}

	pc := pcache.New(cfg.source, cfg.log)
	cc := ccache.New(pc, cfg.log, cfg.zeroOnCarve)
	a := &Allocator{pc: pc, cc: cc, log: cfg.log}
	a.pool.New = func() interface{} { return a.AcquireCache() }
	return a
}

// Cache is a single goroutine's (or worker's) view into the allocator:
// an unsynchronized Thread Cache plus a handle back to the shared
// Central Cache it drains from and returns to.
//
// There is no goroutine-local storage in userspace Go; a Cache is the
// explicit stand-in. Acquire one per long-lived worker (a pool worker, a
// connection handler) and reuse it across that worker's allocations
// instead of acquiring one per call.
type Cache struct {
	tc *tcache.Cache
	a  *Allocator
}

// AcquireCache returns a fresh Cache bound to a. Call Release when done
// with it so its held objects return to the central cache promptly; if
// the caller forgets, a runtime finalizer flushes it when the Cache
// itself is collected, mirroring how an OS thread exit drains the
// teacher's per-P mcache (see mcache.go's freemcache).
func (a *Allocator) AcquireCache() *Cache {
	c := &Cache{tc: tcache.New(a.cc), a: a}
	runtime.SetFinalizer(c, (*Cache).finalize)
	return c
}

func (c *Cache) finalize() {
	c.tc.Flush()
}

// Release flushes every object this Cache is holding back to the
// central cache and disarms its finalizer. The Cache must not be used
// afterward.
func (c *Cache) Release() {
	runtime.SetFinalizer(c, nil)
	c.tc.Flush()
}

// Allocate returns size bytes of memory. Requests over
// sizeclass.MaxBytes bypass the thread and central caches entirely and
// are served directly by the page cache (spec.md §4.3).
func (c *Cache) Allocate(size uintptr) (unsafe.Pointer, error) {
	if size > sizeclass.MaxBytes {
		s, err := c.a.cc.AllocBig(size)
		if err != nil {
			return nil, err
		}
		return unsafe.Pointer(s.Base(sizeclass.PageShift)), nil //nolint:govet // raw page address, not a Go-managed pointer
	}
	addr, err := c.tc.Allocate(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(addr), nil //nolint:govet
}

// Deallocate returns ptr, an address previously returned by Allocate on
// this or any other Cache drawing from the same Allocator, along with
// the size it was allocated with. size must match what was passed to
// Allocate; concalloc does not record per-object sizes itself, matching
// spec.md §4.1's "the caller supplies size on free, same as the C++
// reference this design is drawn from." Passing a nil ptr is a no-op,
// per spec.md §6.
func (c *Cache) Deallocate(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	if size > sizeclass.MaxBytes {
		s := c.a.cc.MapObjectToSpan(uintptr(ptr))
		c.a.cc.FreeBig(s)
		return
	}
	c.tc.Deallocate(uintptr(ptr), size)
}

// Alloc is the package-level convenience path: it borrows a pooled Cache
// for the duration of one call instead of requiring the caller to manage
// one explicitly. Prefer AcquireCache for any code that allocates more
// than occasionally; round-tripping through sync.Pool on every call
// costs more than the thread cache it's hiding.
func (a *Allocator) Alloc(size uintptr) (unsafe.Pointer, error) {
	c := a.pool.Get().(*Cache)
	defer a.pool.Put(c)
	return c.Allocate(size)
}

// Free is Alloc's counterpart.
func (a *Allocator) Free(ptr unsafe.Pointer, size uintptr) {
	c := a.pool.Get().(*Cache)
	defer a.pool.Put(c)
	c.Deallocate(ptr, size)
}
