package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tags the type held by a parameter value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is a single event parameter: either a string or an integer.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int32
}

// Interface returns the held value as a string or int32.
func (v Value) Interface() interface{} {
	if v.Kind == KindInt {
		return v.Int
	}
	return v.Str
}

// Parameters is the event parameter bundle passed to the vendor logger.
// Keys keep their insertion order; putting an existing key replaces its value
// in place.
type Parameters struct {
	keys   []string
	values map[string]Value
}

// NewParameters creates an empty bundle.
func NewParameters() *Parameters {
	return &Parameters{values: make(map[string]Value)}
}

// PutString stores a string value under key.
func (p *Parameters) PutString(key, value string) {
	p.put(key, Value{Kind: KindString, Str: value})
}

// PutInt stores an integer value under key.
func (p *Parameters) PutInt(key string, value int32) {
	p.put(key, Value{Kind: KindInt, Int: value})
}

func (p *Parameters) put(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p *Parameters) Get(key string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.values[key]
	return v, ok
}

// String returns the string stored under key, if the key holds a string.
func (p *Parameters) String(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// Int returns the integer stored under key, if the key holds an integer.
func (p *Parameters) Int(key string) (int32, bool) {
	v, ok := p.Get(key)
	if !ok || v.Kind != KindInt {
		return 0, false
	}
	return v.Int, true
}

// Has reports whether key is present.
func (p *Parameters) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (p *Parameters) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of entries.
func (p *Parameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Map returns a copy of the bundle as plain Go values.
func (p *Parameters) Map() map[string]interface{} {
	out := make(map[string]interface{}, p.Len())
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out[k] = p.values[k].Interface()
	}
	return out
}

// MarshalJSON encodes the bundle as a JSON object in insertion order.
func (p *Parameters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.values[k].Interface())
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
