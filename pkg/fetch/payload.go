package fetch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Payload is a parsed JSON object: string keys mapped to JSON values. A Payload
// handed to a decode function belongs to that call and is never mutated by the
// package afterwards.
type Payload map[string]Value

var errNotObject = errors.New("json body is not an object")

// ParsePayload parses body as a single JSON object. Any other top-level value,
// trailing data or an empty body is reported as an error.
func ParsePayload(body []byte) (Payload, error) {
	raw, err := decodeRaw(body)
	if err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", errNotObject, describeRaw(raw))
	}
	return payloadOf(obj)
}

func decodeRaw(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level json value at offset %d", dec.InputOffset())
	}
	return raw, nil
}

func payloadOf(m map[string]any) (Payload, error) {
	p := make(Payload, len(m))
	for k, raw := range m {
		val, err := valueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		p[k] = val
	}
	return p, nil
}

func describeRaw(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", raw)
	}
}

// Get returns the value stored under key.
func (p Payload) Get(key string) (Value, bool) {
	v, ok := p[key]
	return v, ok
}

// Path walks nested objects following keys.
func (p Payload) Path(keys ...string) (Value, bool) {
	if len(keys) == 0 {
		return Object(p), true
	}
	cur := p
	for i, key := range keys {
		v, ok := cur[key]
		if !ok {
			return Value{}, false
		}
		if i == len(keys)-1 {
			return v, true
		}
		if cur, ok = v.Object(); !ok {
			return Value{}, false
		}
	}
	return Value{}, false
}

// Str returns the string stored under key.
func (p Payload) Str(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return v.Str()
}

// Float64 returns the number stored under key as a float64.
func (p Payload) Float64(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return v.Float64()
}

// Int64 returns the integral number stored under key.
func (p Payload) Int64(key string) (int64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return v.Int64()
}

// Bool returns the boolean stored under key.
func (p Payload) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	return v.Bool()
}

// Object returns the nested object stored under key.
func (p Payload) Object(key string) (Payload, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	return v.Object()
}

// Array returns the sequence stored under key.
func (p Payload) Array(key string) ([]Value, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	return v.Array()
}

// Keys returns the payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Raw converts the payload into a plain map. Numbers stay json.Number.
func (p Payload) Raw() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// MarshalJSON encodes the payload as a JSON object.
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Raw())
}
