// Package gc implements the tracked-allocation contract of spec §4.5/§6.3:
// gc_alloc hands back a raw buffer with a destructor, and context teardown
// walks every outstanding allocation invoking its destructor before
// releasing memory.
//
// Per spec §9's design note, this is deliberately a leak-list, not a
// mark-and-sweep collector: every allocation lives until Teardown, same as
// the teacher's GC-root idiom (internal/vmregister.RegisterVM.gcRoots)
// keeps every runtime object reachable for the lifetime of the VM rather
// than tracing liveness.
package gc

import "bullettrain/internal/value"

// Destructor runs once, at Teardown, for the block it was registered with.
type Destructor func()

type block struct {
	next       *block
	destructor Destructor
	refs       int
	data       []byte
}

// Heap is the context's GC block list (spec §4.5: "head of the GC block
// list") plus the root list that keeps every Struct/Closure allocation
// reachable from Go's own collector for the context's lifetime.
type Heap struct {
	head    *block
	objHead *value.Object
}

// NewHeap returns an empty heap.
func NewHeap() *Heap { return &Heap{} }

// Alloc prepends a header {next, destructor, refs} to a freshly allocated
// buffer of size bytes and returns the buffer (spec §4.5 gc_alloc). destructor
// may be nil if the block owns no external resource to release.
func (h *Heap) Alloc(size int, destructor Destructor) []byte {
	b := &block{
		next:       h.head,
		destructor: destructor,
		refs:       1,
		data:       make([]byte, size),
	}
	h.head = b
	return b.data
}

// Root retains obj for the lifetime of the heap's owning context, so every
// Struct/Closure allocation is discoverable from the context rather than
// surviving only as a bit pattern inside a Value (spec §4.5/§9: "every
// allocation is discoverable from the context and is released on
// teardown"). Grounded on the teacher's internal/vmregister.RegisterVM
// field `gcRoots []interface{} // keep ALL runtime objects alive`; here the
// object's own embedded Next link (value.Object) serves as the list node
// instead of a separate slice.
func (h *Heap) Root(obj *value.Object) {
	obj.Next = h.objHead
	h.objHead = obj
}

// RootCount returns the number of objects currently rooted (test/debug
// helper — not part of spec §6.3's public API).
func (h *Heap) RootCount() int {
	n := 0
	for o := h.objHead; o != nil; o = o.Next {
		n++
	}
	return n
}

// Teardown walks the block list, invoking each destructor, then releases
// the list and every rooted object (spec §4.5 teardown). Legal only when
// no thread is executing in the owning context (spec §5 "Cancellation").
func (h *Heap) Teardown() {
	for b := h.head; b != nil; {
		next := b.next
		if b.destructor != nil {
			b.destructor()
		}
		b.next = nil
		b.data = nil
		b = next
	}
	h.head = nil

	for o := h.objHead; o != nil; {
		next := o.Next
		o.Next = nil
		o = next
	}
	h.objHead = nil
}

// Count returns the number of outstanding tracked allocations (test/debug
// helper — not part of spec §6.3's public API).
func (h *Heap) Count() int {
	n := 0
	for b := h.head; b != nil; b = b.next {
		n++
	}
	return n
}
