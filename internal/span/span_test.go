package span

import "testing"

func TestBaseLimit(t *testing.T) {
	s := &Span{PageID: 4, NPages: 3}
	const shift = 12
	if got, want := s.Base(shift), uintptr(4<<shift); got != want {
		t.Errorf("Base() = %#x, want %#x", got, want)
	}
	if got, want := s.Limit(shift), uintptr(7<<shift); got != want {
		t.Errorf("Limit() = %#x, want %#x", got, want)
	}
}

func TestListInsertOrder(t *testing.T) {
	var l List
	l.Init()
	a, b, c := &Span{PageID: 1}, &Span{PageID: 2}, &Span{PageID: 3}

	l.Insert(a) // front-push: a
	l.Insert(b) // b, a
	l.InsertBack(c) // b, a, c

	got := []PageID{}
	for s := l.First(); s != nil; s = s.Next {
		got = append(got, s.PageID)
	}
	want := []PageID{2, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("list order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("list order = %v, want %v", got, want)
		}
	}
}

func TestListRemoveMiddle(t *testing.T) {
	var l List
	l.Init()
	a, b, c := &Span{PageID: 1}, &Span{PageID: 2}, &Span{PageID: 3}
	l.InsertBack(a)
	l.InsertBack(b)
	l.InsertBack(c)

	l.Remove(b)
	if b.InList() {
		t.Errorf("b.InList() = true after Remove")
	}

	got := []PageID{}
	for s := l.First(); s != nil; s = s.Next {
		got = append(got, s.PageID)
	}
	want := []PageID{1, 3}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("list after remove = %v, want %v", got, want)
	}
}

func TestListPopFrontEmpty(t *testing.T) {
	var l List
	l.Init()
	if s := l.PopFront(); s != nil {
		t.Errorf("PopFront() on empty list = %v, want nil", s)
	}
}

func TestInsertTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Insert of an already-listed span should panic")
		}
	}()
	var l List
	l.Init()
	s := &Span{PageID: 1}
	l.Insert(s)
	l.Insert(s)
}

func TestRemoveNotInListPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Remove of a span not in any list should panic")
		}
	}()
	var l List
	l.Init()
	l.Remove(&Span{PageID: 1})
}
