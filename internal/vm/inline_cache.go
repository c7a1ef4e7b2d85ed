package vm

import (
	"bullettrain/internal/object"
	"bullettrain/internal/shape"
	"bullettrain/internal/value"
)

// inlineCache remembers the last shape seen at one GETSTRUCT/SETSTRUCT
// callsite, grounded on the teacher's internal/vmregister.InlineCache
// (vmregister/bytecode.go): {ShapeID, Offset, HitCount, MissCount} keyed
// per-callsite in a flat []InlineCache indexed by instruction pc. BT keeps
// the same shape-pointer-plus-slot memoization but drops the hit/miss
// counters and the IsMonomorphic/Reset promotion logic — those exist in
// the teacher to decide when to deoptimize a megamorphic site back to a
// hash lookup, which only matters once a JIT is in play (spec §1 excludes
// optimizing compilation; BT's shape tree lookup is already O(1) via
// ancestor-field inlining, so a cache miss costs the same as never
// caching at all).
type inlineCache struct {
	shape *shape.Shape
	slot  int
}

// getWithCache resolves s.Get(key), memoizing the (shape, slot) pair seen
// at instruction pc so a repeat visit with the same shape skips the
// transition-table probe.
func (t *Thread) getWithCache(pc int, s *object.Struct, key *value.Key) value.Value {
	if ic, ok := t.inlineCaches[pc]; ok && ic.shape == s.Shape {
		if ic.slot < len(s.Data) {
			return s.Data[ic.slot]
		}
		return value.Nil()
	}
	slot, ok := s.Shape.Lookup(key)
	if !ok {
		return value.Nil()
	}
	t.inlineCaches[pc] = &inlineCache{shape: s.Shape, slot: slot}
	if slot < len(s.Data) {
		return s.Data[slot]
	}
	return value.Nil()
}

// setWithCache resolves s.Set(key, v), memoizing the resulting (shape,
// slot) the same way getWithCache does. The cache is always refreshed
// after Set since assigning a never-before-seen key advances s.Shape.
func (t *Thread) setWithCache(pc int, s *object.Struct, key *value.Key, v value.Value) {
	s.Set(key, v)
	if slot, ok := s.Shape.Lookup(key); ok {
		t.inlineCaches[pc] = &inlineCache{shape: s.Shape, slot: slot}
	}
}
