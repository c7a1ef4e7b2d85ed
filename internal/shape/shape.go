// Package shape implements BT's hidden-shape tree ("metatable", spec §3.4,
// §4.3) — the structural-typing scheme struct instances use to look up and
// assign fields in (amortized) O(1).
//
// There is no direct teacher analogue: the teacher's InstanceObj
// (internal/vmregister/value.go) keys fields through a plain
// map[string]Value. This package is the generalization of the teacher's
// per-callsite InlineCache/PolymorphicIC idiom
// (internal/vmregister/bytecode.go) — which already caches a
// {ShapeID, Offset} pair keyed by identity — into a full tree shared across
// every struct in a context, rather than one cache per callsite. The VM
// memoizes {shape, slot} pairs at GETSTRUCT/SETSTRUCT sites (see
// internal/vm/inline_cache.go) so a GETSTRUCT on a repeat shape skips the
// tree probe.
package shape

import "bullettrain/internal/value"

// entryKind distinguishes a transition-table entry that advances the shape
// (a child node) from one that is an ancestor's field inlined for O(1)
// lookup without further indirection (spec §3.4's invariant).
type entryKind uint8

const (
	entryChild entryKind = iota
	entryField
)

type entry struct {
	key   *value.Key
	kind  entryKind
	child *Shape // valid when kind == entryChild
	slot  int    // valid when kind == entryField
	used  bool
}

// Shape is one node of the tree: the exact ordered set of keys ever
// assigned, in assignment order, up to and including AddedKey.
type Shape struct {
	Parent    *Shape
	AddedKey  *value.Key // nil at the root
	SlotIndex int        // root = -1; children = Parent.SlotIndex + 1

	transitions []entry // open-addressed by Key.Hash, matched by key identity
	count       int     // occupied slots, for the rehash-on-load-threshold rule
}

const initialTableSize = 4

// NewRoot creates the empty root shape of a context (spec §3.4: "root
// parent is None", "root has none" for added_key, "root = −1" for slot).
func NewRoot() *Shape {
	return &Shape{SlotIndex: -1, transitions: make([]entry, initialTableSize)}
}

func (s *Shape) probe(k *value.Key) (int, bool) {
	mask := len(s.transitions) - 1
	i := int(k.Hash) & mask
	for {
		e := &s.transitions[i]
		if !e.used {
			return i, false
		}
		if e.key == k {
			return i, true
		}
		i = (i + 1) & mask
	}
}

// Lookup resolves a key to the slot it lives at for any struct whose shape
// is s, or reports that the key has never been assigned along s's history
// (spec §4.3 Get).
func (s *Shape) Lookup(k *value.Key) (slot int, ok bool) {
	i, found := s.probe(k)
	if !found {
		return 0, false
	}
	e := s.transitions[i]
	if e.kind == entryField {
		return e.slot, true
	}
	return e.child.SlotIndex, true
}

// needsGrow implements spec §4.3 step 5: once the table has reached the
// load threshold (entries == size - 1), it is rebuilt before the next insert.
func (s *Shape) needsGrow() bool {
	return s.count >= len(s.transitions)-1
}

func (s *Shape) grow() {
	old := s.transitions
	s.transitions = make([]entry, len(old)*2)
	s.count = 0
	for _, e := range old {
		if !e.used {
			continue
		}
		s.insertRaw(e)
	}
}

func (s *Shape) insertRaw(e entry) {
	i, _ := s.probe(e.key)
	s.transitions[i] = e
	s.count++
}

// Advance returns the child shape reached by assigning key k to a struct
// currently at shape s, creating the child the first time k is seen from s
// (spec §4.3 Set, steps 1–5). The returned bool is true only when a new
// shape node was created; when k already has a child transition from s, the
// existing child is returned with false.
func (s *Shape) Advance(k *value.Key) (next *Shape, isNewField bool) {
	i, found := s.probe(k)
	if found {
		e := s.transitions[i]
		if e.kind == entryChild {
			return e.child, false
		}
		// An inlined ancestor field: the value lives in place, shape is
		// unchanged (spec §4.3 Set step 3).
		return s, false
	}

	child := &Shape{
		Parent:      s,
		AddedKey:    k,
		SlotIndex:   s.SlotIndex + 1,
		transitions: make([]entry, len(s.transitions)),
	}
	// Copy every field entry of S.transitions (s's own key history) into the
	// child so the invariant in spec §3.4 holds: any key reachable along the
	// child's history resolves directly from the child without walking
	// ancestors. Child entries are not copied — s's *other* children,
	// reached by keys besides k, are siblings of child, not its ancestry,
	// and must not leak into its transition table.
	for _, e := range s.transitions {
		if !e.used || e.kind == entryChild {
			continue
		}
		if child.needsGrow() {
			child.grow()
		}
		child.insertRaw(entry{key: e.key, kind: entryField, slot: e.slot, used: true})
	}
	if child.needsGrow() {
		child.grow()
	}
	child.insertRaw(entry{key: k, kind: entryField, slot: child.SlotIndex, used: true})

	if s.needsGrow() {
		s.grow()
	}
	s.insertRaw(entry{key: k, kind: entryChild, child: child, used: true})

	return child, true
}
