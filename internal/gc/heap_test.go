package gc

import (
	"testing"

	"bullettrain/internal/value"
)

func TestAllocReturnsSizedBuffer(t *testing.T) {
	h := NewHeap()
	buf := h.Alloc(16, nil)
	if len(buf) != 16 {
		t.Errorf("got len %d, want 16", len(buf))
	}
}

func TestTeardownInvokesDestructorsInOrder(t *testing.T) {
	h := NewHeap()
	var order []int
	h.Alloc(1, func() { order = append(order, 1) })
	h.Alloc(1, func() { order = append(order, 2) })
	h.Alloc(1, func() { order = append(order, 3) })

	h.Teardown()

	if len(order) != 3 {
		t.Fatalf("got %d destructor calls, want 3", len(order))
	}
	// Most-recently-allocated block is at the head of the list, so it tears
	// down first.
	if order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("got order %v", order)
	}
}

func TestTeardownClearsHeap(t *testing.T) {
	h := NewHeap()
	h.Alloc(8, nil)
	h.Alloc(8, nil)
	if h.Count() != 2 {
		t.Fatalf("got count %d, want 2", h.Count())
	}
	h.Teardown()
	if h.Count() != 0 {
		t.Errorf("got count %d after teardown, want 0", h.Count())
	}
}

func TestNilDestructorIsSkipped(t *testing.T) {
	h := NewHeap()
	h.Alloc(4, nil)
	h.Teardown() // must not panic
}

func TestRootTracksObjectCount(t *testing.T) {
	h := NewHeap()
	h.Root(&value.Object{})
	h.Root(&value.Object{})
	h.Root(&value.Object{})
	if h.RootCount() != 3 {
		t.Errorf("got %d, want 3", h.RootCount())
	}
}

func TestTeardownClearsRoots(t *testing.T) {
	h := NewHeap()
	h.Root(&value.Object{})
	h.Root(&value.Object{})
	h.Teardown()
	if h.RootCount() != 0 {
		t.Errorf("got %d after teardown, want 0", h.RootCount())
	}
}
