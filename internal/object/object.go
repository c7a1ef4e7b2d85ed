// Package object holds BT's heap-allocated runtime types: Function (spec
// §3.3), Struct instances (spec §3.5), and Closure (spec §3.1 — present in
// the type system, though the compiler never emits a CALL for one, per
// spec §1/§9: call/yield are unfinished).
//
// Grounded on the teacher's internal/vmregister.FunctionObj and InstanceObj
// (internal/vmregister/value.go), narrowed to the fields BT's spec actually
// names and switched from the teacher's map[string]Value field storage to
// a shape-indexed slice (internal/shape).
package object

import (
	"unsafe"

	"bullettrain/internal/bytecode"
	"bullettrain/internal/shape"
	"bullettrain/internal/value"
)

// FunctionKind distinguishes the three prototype kinds BT's type system
// reserves (spec §3.3) even though only Func bodies are ever compiled
// end-to-end (spec §9: task/gen are sketched, never finished).
type FunctionKind uint8

const (
	KindFunc FunctionKind = iota
	KindTask
	KindGen
)

// Function is immutable once Compile returns it (spec §3.3).
type Function struct {
	Program   []bytecode.Instruction
	Constants []value.Value
	Keys      []*value.Key
	Params    uint8
	Registers uint8 // high-water mark of live register index + 1
	Kind      FunctionKind
}

// Closure references a Function plus its captured environment. The
// capture list is always empty in this core: the source never finishes
// non-top-level function definitions (spec §1), so no expression ever
// produces a closure with upvalues; the field exists so the Value type
// and VM dispatch are ready for it.
type Closure struct {
	value.Object
	Fn *Function
}

// Struct is a struct instance: a shape pointer plus its data array (spec
// §3.5). Growing Data is driven by shape transitions, not by Struct
// itself — see (*Struct).Set.
type Struct struct {
	value.Object
	Shape *shape.Shape
	Data  []value.Value
}

// NewStruct allocates a struct at the given root shape (spec §6.3
// new_struct).
func NewStruct(root *shape.Shape) *Struct {
	return &Struct{Object: value.Object{Kind: value.ObjStruct}, Shape: root}
}

// Box boxes a *Struct as a runtime Value.
func (s *Struct) Box() value.Value { return value.BoxObject(&s.Object) }

// AsStruct unboxes a Value known (by value.Kind) to reference a Struct.
func AsStruct(v value.Value) *Struct {
	return (*Struct)(unsafe.Pointer(value.AsObject(v)))
}

// Box boxes a *Closure as a runtime Value.
func (c *Closure) Box() value.Value { return value.BoxObject(&c.Object) }

// AsClosure unboxes a Value known (by value.Kind) to reference a Closure.
func AsClosure(v value.Value) *Closure {
	return (*Closure)(unsafe.Pointer(value.AsObject(v)))
}

// Get implements spec §4.3 Get via the struct's current shape: returns nil
// for a field that has never been assigned (spec §7: "missing field read
// returns nil, not an error").
func (s *Struct) Get(k *value.Key) value.Value {
	slot, ok := s.Shape.Lookup(k)
	if !ok || slot >= len(s.Data) {
		return value.Nil()
	}
	return s.Data[slot]
}

// Set implements spec §4.3 Set / spec §3.5's growth rule: when the shape
// advances to a node whose SlotIndex lands at the struct's current
// length, capacity doubles as needed before the write.
func (s *Struct) Set(k *value.Key, v value.Value) {
	next, _ := s.Shape.Advance(k)
	s.Shape = next
	slot := next.SlotIndex

	if slot >= cap(s.Data) {
		newCap := cap(s.Data) * 2
		if newCap <= slot {
			newCap = slot + 1
		}
		grown := make([]value.Value, len(s.Data), newCap)
		copy(grown, s.Data)
		s.Data = grown
	}
	for len(s.Data) <= slot {
		s.Data = append(s.Data, value.Nil())
	}
	s.Data[slot] = v
}
