package wire

import (
	"fmt"
	"strconv"
)

// Array mirrors the worker's ordered-array semantics: entries keep their
// insertion order and are addressable both by canonical string key and by
// ordinal position. Integer-like keys collapse to their canonical decimal
// form, so a.Set(1, v) and a.Set("1", v) hit the same slot.
//
// Arrays exist to represent what came off the wire faithfully. If you know
// which shape you expect, convert with Values or Map early.
type Array struct {
	keys  []string
	items map[string]any
}

// NewArray returns an empty array.
func NewArray() *Array {
	return &Array{items: make(map[string]any)}
}

// ListArray builds an array from consecutive values keyed "0", "1", ...
func ListArray(values ...any) *Array {
	a := NewArray()
	for i, v := range values {
		a.keys = append(a.keys, strconv.Itoa(i))
		a.items[strconv.Itoa(i)] = v
	}
	return a
}

// CanonicalKey collapses an integer-like key to its decimal string form.
// Keys that are neither strings nor integers are rejected.
func CanonicalKey(key any) (string, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case int:
		return strconv.Itoa(k), nil
	case int8:
		return strconv.FormatInt(int64(k), 10), nil
	case int16:
		return strconv.FormatInt(int64(k), 10), nil
	case int32:
		return strconv.FormatInt(int64(k), 10), nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case uint:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint64:
		return strconv.FormatUint(k, 10), nil
	default:
		return "", fmt.Errorf("array key must be a string or an integer, got %T", key)
	}
}

// Set stores a value under key, appending on first insertion.
func (a *Array) Set(key, value any) error {
	k, err := CanonicalKey(key)
	if err != nil {
		return err
	}
	if a.items == nil {
		a.items = make(map[string]any)
	}
	if _, exists := a.items[k]; !exists {
		a.keys = append(a.keys, k)
	}
	a.items[k] = value
	return nil
}

// Get returns the value stored under key.
func (a *Array) Get(key any) (any, bool) {
	k, err := CanonicalKey(key)
	if err != nil {
		return nil, false
	}
	v, ok := a.items[k]
	return v, ok
}

// At returns the value at ordinal position i in insertion order.
func (a *Array) At(i int) (any, bool) {
	if i < 0 || i >= len(a.keys) {
		return nil, false
	}
	return a.items[a.keys[i]], true
}

// Delete removes the entry under key, preserving the order of the rest.
func (a *Array) Delete(key any) bool {
	k, err := CanonicalKey(key)
	if err != nil {
		return false
	}
	if _, ok := a.items[k]; !ok {
		return false
	}
	delete(a.items, k)
	for i, existing := range a.keys {
		if existing == k {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of entries.
func (a *Array) Len() int { return len(a.keys) }

// Keys returns the keys in insertion order.
func (a *Array) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Values returns the values in insertion order.
func (a *Array) Values() []any {
	out := make([]any, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, a.items[k])
	}
	return out
}

// Map returns a plain map copy. Order is lost; use Keys alongside it when
// order matters.
func (a *Array) Map() map[string]any {
	out := make(map[string]any, len(a.keys))
	for k, v := range a.items {
		out[k] = v
	}
	return out
}

// IsList reports whether the keys are exactly "0".."n-1" in order, i.e. the
// array could have been created from a list.
func (a *Array) IsList() bool {
	for i, k := range a.keys {
		if k != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

func (a *Array) String() string {
	if a.IsList() {
		return fmt.Sprintf("Array%v", a.Values())
	}
	return fmt.Sprintf("Array(keys=%v)", a.keys)
}
