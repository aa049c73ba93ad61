// Package freelist implements the intrusive singly-linked LIFO free list
// used at every tier of the allocator: the first machine word of a free
// object stores the address of the next free object, so the list costs no
// memory beyond the objects themselves.
//
// This is the same trick the teacher's gclinkptr/gclink pair uses (see
// runtime/mcache.go): a pointer value is never dereferenced as a Go
// pointer by anything that doesn't already know the memory is free, so
// the garbage collector (or, here, nothing at all — concalloc's memory is
// never tracked by the Go GC) never needs to trace it.
package freelist

import "unsafe"

// Node is the address of a free object. It is opaque on purpose: code
// should never treat it as a live Go pointer, only as an integer that
// happens to address memory known to be free.
type Node uintptr

type link struct {
	next Node
}

func (n Node) ptr() *link {
	return (*link)(unsafe.Pointer(n))
}

// Next reads the next-pointer embedded in the free object at n.
func (n Node) Next() Node {
	return n.ptr().next
}

// SetNext overwrites the next-pointer embedded in the free object at n.
func (n Node) SetNext(next Node) {
	n.ptr().next = next
}

// List is a LIFO free list: the first word of each free object is the
// link to the next one. The zero value is an empty list.
type List struct {
	head Node
	len  int
}

// Empty reports whether the list holds no objects.
func (l *List) Empty() bool {
	return l.head == 0
}

// Len returns the number of objects currently on the list. Tracked
// explicitly (the spec allows but does not require this) so the thread
// cache's overflow check doesn't need a full walk just to decide whether
// to act.
func (l *List) Len() int {
	return l.len
}

// Push prepends obj to the list.
func (l *List) Push(obj Node) {
	obj.SetNext(l.head)
	l.head = obj
	l.len++
}

// Pop removes and returns the head of the list. ok is false if the list
// was empty.
func (l *List) Pop() (obj Node, ok bool) {
	if l.head == 0 {
		return 0, false
	}
	obj = l.head
	l.head = obj.Next()
	l.len--
	return obj, true
}

// PushRange prepends an already-linked chain running from head to tail
// (tail.Next() must be the zero Node) containing n objects.
func (l *List) PushRange(head, tail Node, n int) {
	if head == 0 {
		return
	}
	tail.SetNext(l.head)
	l.head = head
	l.len += n
}

// PopRange detaches up to n objects from the head of the list, returning
// the linear chain (head, tail) and the actual count removed, which may
// be less than n if the list is shorter. Walking to find the tail makes
// this O(n); the spec explicitly permits that (§4.2) in exchange for not
// tracking a tail pointer that every Push/Pop would otherwise have to
// maintain.
func (l *List) PopRange(n int) (head, tail Node, got int) {
	if n <= 0 || l.head == 0 {
		return 0, 0, 0
	}
	head = l.head
	cur := head
	got = 1
	for got < n {
		next := cur.Next()
		if next == 0 {
			break
		}
		cur = next
		got++
	}
	tail = cur
	l.head = tail.Next()
	tail.SetNext(0)
	l.len -= got
	return head, tail, got
}
