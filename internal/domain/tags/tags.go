// Package tags implements the insertion-ordered metadata map carried by documents.
package tags

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Tags is an ordered mapping from string keys to scalar values.
// Unknown keys are kept verbatim. Read methods are safe on a nil *Tags.
type Tags struct {
	keys   []string
	values map[string]any
}

// New creates an empty Tags.
func New() *Tags {
	return &Tags{values: make(map[string]any)}
}

// FromMap builds Tags from a plain map. Keys are ordered lexically since Go maps carry no order.
func FromMap(m map[string]any) *Tags {
	t := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.Set(k, m[k])
	}
	return t
}

// Set stores v under key. A new key is appended; an existing key keeps its position.
func (t *Tags) Set(key string, v any) {
	if t.values == nil {
		t.values = make(map[string]any)
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

// Get returns the value under key.
func (t *Tags) Get(key string) (any, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.values[key]
	return v, ok
}

// Float returns the value under key as float64 if it is numeric or a numeric string.
func (t *Tags) Float(key string) (float64, bool) {
	v, ok := t.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns the value under key formatted as a string.
func (t *Tags) String(key string) (string, bool) {
	v, ok := t.Get(key)
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

// Delete removes key, preserving the order of the remaining keys.
func (t *Tags) Delete(key string) {
	if t == nil {
		return
	}
	if _, ok := t.values[key]; !ok {
		return
	}
	delete(t.values, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (t *Tags) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len returns the number of keys.
func (t *Tags) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (t *Tags) Range(fn func(key string, value any) bool) {
	if t == nil {
		return
	}
	for _, k := range t.keys {
		if !fn(k, t.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy. Cloning nil yields an empty Tags.
func (t *Tags) Clone() *Tags {
	c := New()
	t.Range(func(k string, v any) bool {
		c.Set(k, v)
		return true
	})
	return c
}

// MarshalJSON encodes the tags as a JSON object in insertion order.
func (t *Tags) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	t.Range(func(k string, v any) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = json.Marshal(v); err != nil {
			err = fmt.Errorf("tag %q: %w", k, err)
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the input.
func (t *Tags) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	if tok == nil {
		*t = Tags{values: make(map[string]any)}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tags: expected object, got %v", tok)
	}

	out := Tags{values: make(map[string]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("tags: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("tags: expected string key, got %v", keyTok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("tags: value for %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = out
	return nil
}

// FormatValue renders a scalar tag value the way it is stored in flat hashes.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
