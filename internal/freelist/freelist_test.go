package freelist

import (
	"runtime"
	"testing"
	"unsafe"
)

// backing returns n addresses of real, GC-kept-alive memory (a node's
// next-pointer write target), each 64 bytes apart so they never overlap.
// Node deliberately stores its link in the object's own bytes, so a test
// node needs to be real memory, not an arbitrary integer.
func backing(n int) ([]uintptr, []byte) {
	const stride = 64
	buf := make([]byte, n*stride)
	addrs := make([]uintptr, n)
	for i := range addrs {
		addrs[i] = uintptr(unsafe.Pointer(&buf[i*stride]))
	}
	return addrs, buf
}

func TestPushPopLIFO(t *testing.T) {
	var l List
	addrs, buf := backing(3)
	defer runtime.KeepAlive(buf)

	for _, a := range addrs {
		l.Push(Node(a))
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}

	for i := len(addrs) - 1; i >= 0; i-- {
		obj, ok := l.Pop()
		if !ok {
			t.Fatalf("Pop() returned !ok with %d objects expected remaining", i+1)
		}
		if uintptr(obj) != addrs[i] {
			t.Errorf("Pop() = %#x, want %#x (LIFO order)", obj, addrs[i])
		}
	}
	if !l.Empty() {
		t.Fatalf("list should be empty after draining")
	}
	if _, ok := l.Pop(); ok {
		t.Fatalf("Pop() on empty list returned ok")
	}
}

func TestPushRangePopRange(t *testing.T) {
	var l List
	addrs, buf := backing(5)
	defer runtime.KeepAlive(buf)

	// Build a chain head->tail manually, as a producer (the central
	// cache) would before calling PushRange.
	for i := 0; i < len(addrs)-1; i++ {
		Node(addrs[i]).SetNext(Node(addrs[i+1]))
	}
	Node(addrs[len(addrs)-1]).SetNext(0)

	l.PushRange(Node(addrs[0]), Node(addrs[len(addrs)-1]), len(addrs))
	if l.Len() != len(addrs) {
		t.Fatalf("Len() = %d, want %d", l.Len(), len(addrs))
	}

	head, tail, got := l.PopRange(3)
	if got != 3 {
		t.Fatalf("PopRange(3) got = %d, want 3", got)
	}
	if uintptr(head) != addrs[0] {
		t.Errorf("PopRange head = %#x, want %#x", head, addrs[0])
	}
	if uintptr(tail) != addrs[2] {
		t.Errorf("PopRange tail = %#x, want %#x", tail, addrs[2])
	}
	if l.Len() != 2 {
		t.Fatalf("Len() after PopRange(3) = %d, want 2", l.Len())
	}

	// PopRange asking for more than remains returns what's there.
	_, _, got = l.PopRange(10)
	if got != 2 {
		t.Fatalf("PopRange(10) got = %d, want 2", got)
	}
	if !l.Empty() {
		t.Fatalf("list should be empty after draining everything")
	}
}

func TestPopRangeEmptyList(t *testing.T) {
	var l List
	head, tail, got := l.PopRange(5)
	if got != 0 || head != 0 || tail != 0 {
		t.Fatalf("PopRange on empty list = (%#x, %#x, %d), want (0, 0, 0)", head, tail, got)
	}
}
