package entity

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Map is an insertion-ordered field mapping produced by the serialization
// views. It marshals to a JSON object in field order.
type Map struct {
	keys   []string
	values map[string]any
}

func newMap(size int) *Map {
	return &Map{
		keys:   make([]string, 0, size),
		values: make(map[string]any, size),
	}
}

func (m *Map) set(key string, val any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
}

func (m *Map) delete(key string) {
	if _, ok := m.values[key]; !ok {
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

// Keys returns the field names in order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored for key.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

func (m *Map) Len() int {
	return len(m.keys)
}

// AsMap returns a copy as a plain map, losing the field order.
func (m *Map) AsMap() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the map as a JSON object, keeping the field order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
