// Package btcontext implements BT's Context (spec §4.5, §6.3): the
// interned key table, the root shape, the GC block list, and the thread
// freelist a running program shares.
//
// Grounded on the teacher's internal/vmregister.RegisterVM, which bundles
// analogous global state (globalNames map[string]uint16, gcRoots
// []interface{}) on one struct; generalized here into the djb2-chained
// key table spec §4.5 requires and gc.Heap's explicit destructor list
// (the teacher's gcRoots slice has no teardown contract, since the
// teacher's process just exits; BT's spec requires free_context to run
// every destructor, so Context owns a *gc.Heap instead of a plain slice).
package btcontext

import (
	"bullettrain/internal/gc"
	"bullettrain/internal/object"
	"bullettrain/internal/shape"
	"bullettrain/internal/value"
	"bullettrain/internal/vm"
)

const keyTableBuckets = 127

// Context is the top-level handle returned by New (spec §6.3 new_context).
type Context struct {
	keys      [keyTableBuckets][]*value.Key
	RootShape *shape.Shape
	Heap      *gc.Heap

	threadFree []*vm.Thread
	globals    map[string]value.Value
}

// New creates a context (spec §6.3 new_context).
func New() *Context {
	return &Context{
		RootShape: shape.NewRoot(),
		Heap:      gc.NewHeap(),
		globals:   make(map[string]value.Value),
	}
}

// Close tears down everything owned by ctx (spec §6.3 free_context). Only
// legal when no thread borrowed from ctx is still executing (spec §5
// Cancellation).
func (c *Context) Close() {
	c.Heap.Teardown()
}

// djb2 returns the full 32-bit djb2 hash of s; Intern reduces it mod the key
// table's fixed bucket count (spec §4.5: "fixed 127 chained buckets keyed by
// djb2 mod 127") and stores the full hash in Key.Hash. Grounded on the teacher's
// one-hash-helper-used-everywhere idiom (internal/vmregister.HashString),
// with the algorithm swapped to djb2 per spec §4.5's explicit choice.
func djb2(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

// Intern returns the unique *value.Key for text, interning it on first use
// (spec §3.2, §8.1: "for any two interning calls with equal text, the
// returned key pointers are equal").
func (c *Context) Intern(text string) *value.Key {
	h := djb2(text)
	bucket := h % keyTableBuckets
	for _, k := range c.keys[bucket] {
		if k.Text == text {
			return k
		}
	}
	k := &value.Key{Hash: h, Text: text}
	c.keys[bucket] = append(c.keys[bucket], k)
	return k
}

// NewStruct allocates a struct at the context's root shape (spec §6.3
// new_struct), rooting it in the context's heap so it stays reachable for
// the context's lifetime rather than only as a bit pattern inside a Value.
func (c *Context) NewStruct() value.Value {
	s := object.NewStruct(c.RootShape)
	c.Heap.Root(&s.Object)
	return s.Box()
}

// GCAlloc hands back a raw tracked buffer (spec §6.3 gc_alloc).
func (c *Context) GCAlloc(size int, destructor gc.Destructor) []byte {
	return c.Heap.Alloc(size, destructor)
}

// acquireThread pops a thread from the freelist or creates one (spec §4.4
// step 1).
func (c *Context) acquireThread() *vm.Thread {
	if n := len(c.threadFree); n > 0 {
		t := c.threadFree[n-1]
		c.threadFree = c.threadFree[:n-1]
		return t
	}
	return vm.NewThread()
}

func (c *Context) releaseThread(t *vm.Thread) {
	c.threadFree = append(c.threadFree, t)
}

// Call executes fn's top-level body synchronously (spec §6.3 call),
// acquiring a thread from the freelist, running it to RETURN, and
// returning it to the freelist (spec §4.4).
func (c *Context) Call(fn *object.Function) error {
	t := c.acquireThread()
	defer c.releaseThread(t)
	return t.Run(fn, c.RootShape, c.Heap)
}
