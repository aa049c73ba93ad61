// Package fatal centralizes the allocator's invariant-violation path: the
// userspace analog of the runtime's throw(msg) (see
// go-go1.16.14/src/runtime/mcache.go's "throw(\"out of memory\")",
// "throw(\"refill of span with free space remaining\")", and similar
// calls throughout mheap.go/mcentral.go). throw halts the whole runtime;
// a library can't do that, so Invariant panics with a typed value instead
// — callers that want the teacher's "no attempt at recovery" behavior
// simply don't recover, and tests that want to assert a specific
// corruption was caught can recover and check the error text.
package fatal

import "fmt"

// InvariantError is the panic value raised by Invariant. Programmer
// errors — double free, freeing an address the allocator never handed
// out, a span whose bookkeeping has gone inconsistent — are fatal: per
// spec.md §7, "The core treats these as fatal (assertion). No attempt to
// recover."
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string {
	return "concalloc: invariant violation: " + e.msg
}

// Invariant panics with an *InvariantError built from format and args.
func Invariant(format string, args ...interface{}) {
	panic(&InvariantError{msg: fmt.Sprintf(format, args...)})
}
