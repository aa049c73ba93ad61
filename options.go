package concalloc

import (
	"log/slog"

	"github.com/gopherspan/concalloc/internal/pagesource"
)

type config struct {
	source      pagesource.Source
	log         *slog.Logger
	zeroOnCarve bool
}

// Option configures an Allocator at construction time.
type Option func(*config)

// WithPageSource overrides how the page cache acquires and releases
// memory from the operating system. The default is internal/pagesource's
// anonymous-mmap implementation; tests substitute a fake Source to
// exercise OOM handling without exhausting real memory.
func WithPageSource(s pagesource.Source) Option {
	return func(c *config) { c.source = s }
}

// WithLogger sets the logger used for the allocator's rare, out-of-band
// diagnostic messages (page-source failures). The
// default is slog.Default(). The allocate/deallocate hot path never logs,
// with or without this option.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithZeroOnCarve controls whether the central cache zeroes a span's
// pages once, when it's carved into a fresh batch of objects. Defaults
// to true: without it, a span coalesced and reused for a different size
// class can expose a previous tenant's bytes to the next caller.
func WithZeroOnCarve(zero bool) Option {
	return func(c *config) { c.zeroOnCarve = zero }
}
