// Package data provides a loosely-typed view over JSON documents for the
// request/response plumbing: typed accessors with coercion errors on reads,
// and a small mutation surface for building outbound bodies.
package data

import (
	"encoding/json"
	"fmt"
)

// Object is a parsed JSON object.
type Object map[string]any

// Array is a parsed JSON array.
type Array []any

// ParseObject decodes raw bytes into an Object.
func ParseObject(raw []byte) (Object, error) {
	var o Object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("data: parsing object: %w", err)
	}
	return o, nil
}

// ParseArray decodes raw bytes into an Array.
func ParseArray(raw []byte) (Array, error) {
	var a Array
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("data: parsing array: %w", err)
	}
	return a, nil
}

// NewObject returns an empty mutable Object.
func NewObject() Object {
	return Object{}
}

// Put sets a key and returns the object for chaining.
func (o Object) Put(key string, value any) Object {
	o[key] = value
	return o
}

// Remove deletes a key and returns the object for chaining.
func (o Object) Remove(key string) Object {
	delete(o, key)
	return o
}

// Has reports whether a key is present.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// GetString returns the string at key, or an error when absent or of
// another type.
func (o Object) GetString(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("data: key %q not present", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("data: key %q is %T, not string", key, v)
	}
	return s, nil
}

// GetInt64 returns the integer at key. JSON numbers decode as float64, so
// values above 2^53 lose precision; entity IDs travel as strings for exactly
// that reason and are never read through here. For ID-bearing keys use
// GetString and snowflake.Parse.
func (o Object) GetInt64(key string) (int64, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("data: key %q not present", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("data: key %q is %T, not number", key, v)
	}
	return int64(f), nil
}

// GetBool returns the boolean at key.
func (o Object) GetBool(key string) (bool, error) {
	v, ok := o[key]
	if !ok {
		return false, fmt.Errorf("data: key %q not present", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("data: key %q is %T, not bool", key, v)
	}
	return b, nil
}

// GetObject returns the nested object at key.
func (o Object) GetObject(key string) (Object, error) {
	v, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("data: key %q not present", key)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("data: key %q is %T, not object", key, v)
	}
	return Object(m), nil
}

// GetArray returns the nested array at key.
func (o Object) GetArray(key string) (Array, error) {
	v, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("data: key %q not present", key)
	}
	a, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("data: key %q is %T, not array", key, v)
	}
	return Array(a), nil
}

// Bytes encodes the object back to JSON.
func (o Object) Bytes() ([]byte, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("data: encoding object: %w", err)
	}
	return raw, nil
}

// Add appends a value and returns the array for chaining.
func (a Array) Add(value any) Array {
	return append(a, value)
}

// Len returns the element count.
func (a Array) Len() int {
	return len(a)
}

// GetObjectAt returns the object at index i.
func (a Array) GetObjectAt(i int) (Object, error) {
	if i < 0 || i >= len(a) {
		return nil, fmt.Errorf("data: index %d out of range [0,%d)", i, len(a))
	}
	m, ok := a[i].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("data: index %d is %T, not object", i, a[i])
	}
	return Object(m), nil
}

// GetStringAt returns the string at index i.
func (a Array) GetStringAt(i int) (string, error) {
	if i < 0 || i >= len(a) {
		return "", fmt.Errorf("data: index %d out of range [0,%d)", i, len(a))
	}
	s, ok := a[i].(string)
	if !ok {
		return "", fmt.Errorf("data: index %d is %T, not string", i, a[i])
	}
	return s, nil
}

// Bytes encodes the array back to JSON.
func (a Array) Bytes() ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("data: encoding array: %w", err)
	}
	return raw, nil
}
