package object

import (
	"testing"

	"bullettrain/internal/shape"
	"bullettrain/internal/value"
)

func key(text string, hash uint32) *value.Key { return &value.Key{Text: text, Hash: hash} }

func TestGetMissingFieldReturnsNil(t *testing.T) {
	s := NewStruct(shape.NewRoot())
	if got := s.Get(key("x", 1)); !value.IsNil(got) {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s := NewStruct(shape.NewRoot())
	kx := key("x", 1)
	s.Set(kx, value.Number(42))
	got := s.Get(kx)
	if !value.IsNumber(got) || value.AsNumber(got) != 42 {
		t.Errorf("got %v", got)
	}
}

func TestReassigningExistingKeyDoesNotChangeShape(t *testing.T) {
	s := NewStruct(shape.NewRoot())
	kx := key("x", 1)
	s.Set(kx, value.Number(1))
	shapeAfterFirst := s.Shape
	s.Set(kx, value.Number(2))
	if s.Shape != shapeAfterFirst {
		t.Error("reassigning an existing key must not advance the shape")
	}
	if got := s.Get(kx); value.AsNumber(got) != 2 {
		t.Errorf("got %v", got)
	}
}

func TestNewKeyAdvancesShapeByOneNode(t *testing.T) {
	s := NewStruct(shape.NewRoot())
	kx, ky := key("x", 1), key("y", 2)
	s.Set(kx, value.Number(1))
	afterX := s.Shape
	s.Set(ky, value.Number(2))
	if s.Shape == afterX {
		t.Fatal("assigning a new key must advance the shape")
	}
	if s.Shape.Parent != afterX {
		t.Error("the new shape's parent should be the previous shape")
	}
}

func TestManyFieldsGrowDataArray(t *testing.T) {
	s := NewStruct(shape.NewRoot())
	keys := make([]*value.Key, 40)
	for i := range keys {
		keys[i] = key(string(rune('a'+i)), uint32(i*2654435761))
		s.Set(keys[i], value.Number(float64(i)))
	}
	for i, k := range keys {
		got := s.Get(k)
		if value.AsNumber(got) != float64(i) {
			t.Fatalf("field %d: got %v", i, got)
		}
	}
}

func TestBoxRoundTrip(t *testing.T) {
	s := NewStruct(shape.NewRoot())
	v := s.Box()
	if !value.IsPtr(v) || value.Kind(v) != value.ObjStruct {
		t.Fatalf("unexpected boxed kind")
	}
	if AsStruct(v) != s {
		t.Fatal("round trip should return the same struct pointer")
	}
}
