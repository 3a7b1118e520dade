package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Mapping is an ordered string-keyed mapping: the in-memory form of a parsed
// configuration document.
//
// Values are limited to the shapes a document parser produces:
// string, int, int64, float64, bool, nil, []any and *Mapping.
//
// Set on an existing key replaces the value in place and keeps the key's
// original position. Methods are nil-safe for reads.
type Mapping struct {
	keys   []string
	values map[string]any
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]any)}
}

// MappingOf builds a mapping from alternating key/value arguments.
// Panics if a key is not a string or the argument count is odd.
func MappingOf(kv ...any) *Mapping {
	if len(kv)%2 != 0 {
		panic("ir.MappingOf: odd number of arguments")
	}
	m := NewMapping()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("ir.MappingOf: key %d is %T, not string", i/2, kv[i]))
		}
		m.Set(key, kv[i+1])
	}
	return m
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Index returns the position of key, or -1.
func (m *Mapping) Index(key string) int {
	if m == nil {
		return -1
	}
	for i, k := range m.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Set stores value under key.
func (m *Mapping) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key. Deleting a missing key is a no-op.
func (m *Mapping) Delete(key string) {
	if m == nil {
		return
	}
	if _, exists := m.values[key]; !exists {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := &Mapping{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]any, len(m.values)),
	}
	copy(out.keys, m.keys)
	for k, v := range m.values {
		out.values[k] = CloneValue(v)
	}
	return out
}

// ToMap converts the mapping and every nested mapping to map[string]any.
func (m *Mapping) ToMap() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plainValue(m.values[k])
	}
	return out
}

func plainValue(v any) any {
	switch val := v.(type) {
	case *Mapping:
		return val.ToMap()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = plainValue(elem)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CloneValue deep-copies a document value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case *Mapping:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// DeepMerge returns a new mapping holding base overlaid with over.
//
// Nested mappings present on both sides are merged recursively. Any other
// value from over replaces the value in base, including sequences. Keys keep
// the position of their first appearance; keys new in over are appended.
// Neither argument is modified.
func DeepMerge(base, over *Mapping) *Mapping {
	out := base.Clone()
	if out == nil {
		out = NewMapping()
	}
	for _, k := range over.Keys() {
		ov, _ := over.Get(k)
		if bv, ok := out.Get(k); ok {
			bm, baseIsMap := bv.(*Mapping)
			om, overIsMap := ov.(*Mapping)
			if baseIsMap && overIsMap {
				out.Set(k, DeepMerge(bm, om))
				continue
			}
		}
		out.Set(k, CloneValue(ov))
	}
	return out
}

// TypeName names the document type of v for diagnostics.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case int, int64:
		return "integer"
	case float64:
		return "float"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case *Mapping:
		return "hash"
	default:
		return fmt.Sprintf("%T", v)
	}
}
