package wire

import (
	"reflect"
	"testing"
)

func TestArray_KeyCanonicalization(t *testing.T) {
	a := NewArray()
	if err := a.Set(1, "one"); err != nil {
		t.Fatal(err)
	}

	v, ok := a.Get("1")
	if !ok || v != "one" {
		t.Errorf(`Get("1") = %v, %v; want "one"`, v, ok)
	}

	// Overwrite through the other spelling; must hit the same slot.
	if err := a.Set("1", "uno"); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 1 {
		t.Errorf("Len = %d after overwrite, want 1", a.Len())
	}
	v, _ = a.Get(int64(1))
	if v != "uno" {
		t.Errorf("Get(int64(1)) = %v, want uno", v)
	}
}

func TestArray_RejectsBadKeys(t *testing.T) {
	a := NewArray()
	if err := a.Set(3.14, "x"); err == nil {
		t.Error("float key should be rejected")
	}
	if err := a.Set([]string{"k"}, "x"); err == nil {
		t.Error("slice key should be rejected")
	}
}

func TestArray_DualAccess(t *testing.T) {
	a := NewArray()
	a.Set("0", "a")
	a.Set("1", "b")

	if !a.IsList() {
		t.Error("keys 0,1 should be list-shaped")
	}

	// Ordinal access behaves like the list ["a", "b"].
	if v, _ := a.At(0); v != "a" {
		t.Errorf("At(0) = %v", v)
	}
	if v, _ := a.At(1); v != "b" {
		t.Errorf("At(1) = %v", v)
	}

	// Key access behaves like the mapping {"0": "a", "1": "b"}.
	if v, _ := a.Get("0"); v != "a" {
		t.Errorf(`Get("0") = %v`, v)
	}
	if v, _ := a.Get(1); v != "b" {
		t.Errorf("Get(1) = %v", v)
	}

	if !reflect.DeepEqual(a.Values(), []any{"a", "b"}) {
		t.Errorf("Values() = %v", a.Values())
	}
}

func TestArray_OrderPreserved(t *testing.T) {
	a := NewArray()
	a.Set("z", 1)
	a.Set("a", 2)
	a.Set("m", 3)

	want := []string{"z", "a", "m"}
	if !reflect.DeepEqual(a.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", a.Keys(), want)
	}
	if a.IsList() {
		t.Error("string-keyed array should not be list-shaped")
	}
}

func TestArray_Delete(t *testing.T) {
	a := ListArray("a", "b", "c")
	if !a.Delete(1) {
		t.Fatal("Delete(1) should succeed")
	}
	if a.Len() != 2 {
		t.Errorf("Len = %d", a.Len())
	}
	if !reflect.DeepEqual(a.Keys(), []string{"0", "2"}) {
		t.Errorf("Keys() = %v", a.Keys())
	}
	// Holes mean the array is no longer a list.
	if a.IsList() {
		t.Error("array with a hole should not be list-shaped")
	}
	if a.Delete("missing") {
		t.Error("deleting a missing key should report false")
	}
}

func TestListArray(t *testing.T) {
	a := ListArray("x", "y")
	if !a.IsList() || a.Len() != 2 {
		t.Fatalf("ListArray broken: %v", a)
	}
	if v, _ := a.Get("1"); v != "y" {
		t.Errorf(`Get("1") = %v`, v)
	}
}
