package fetch

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type identifies which JSON variant a Value holds.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeObject
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Value is one node of a parsed JSON document. The zero Value is JSON null.
type Value struct {
	typ Type
	b   bool
	num json.Number
	str string
	arr []Value
	obj Payload
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Number wraps a JSON number kept in its textual form.
func Number(n json.Number) Value { return Value{typ: TypeNumber, num: n} }

// Float wraps a float64 as a JSON number.
func Float(f float64) Value {
	return Number(json.Number(strconv.FormatFloat(f, 'g', -1, 64)))
}

// Int wraps an int64 as a JSON number.
func Int(i int64) Value { return Number(json.Number(strconv.FormatInt(i, 10))) }

// String wraps a string.
func String(s string) Value { return Value{typ: TypeString, str: s} }

// Array wraps a sequence of values.
func Array(items ...Value) Value { return Value{typ: TypeArray, arr: items} }

// Object wraps a nested object.
func Object(p Payload) Value {
	if p == nil {
		p = Payload{}
	}
	return Value{typ: TypeObject, obj: p}
}

// Type reports the JSON variant held by v.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	if v.typ != TypeBool {
		return false, false
	}
	return v.b, true
}

// Number returns the textual JSON number held by v.
func (v Value) Number() (json.Number, bool) {
	if v.typ != TypeNumber {
		return "", false
	}
	return v.num, true
}

// Float64 returns v as a float64 when v is a number.
func (v Value) Float64() (float64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// Int64 returns v as an int64 when v is an integral number that fits.
func (v Value) Int64() (int64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	i, err := v.num.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return v.str, true
}

// Array returns the elements held by v. The slice is shared with v and must not
// be modified.
func (v Value) Array() ([]Value, bool) {
	if v.typ != TypeArray {
		return nil, false
	}
	return v.arr, true
}

// Object returns the nested object held by v.
func (v Value) Object() (Payload, bool) {
	if v.typ != TypeObject {
		return nil, false
	}
	return v.obj, true
}

// Interface converts v back into plain Go values: nil, bool, json.Number,
// string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeNumber:
		return v.num
	case TypeString:
		return v.str
	case TypeArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case TypeObject:
		return v.obj.Raw()
	default:
		return nil
	}
}

// MarshalJSON encodes v back into JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON document into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	val, err := valueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// valueOf converts the output of a json.Decoder with UseNumber into a Value tree.
func valueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return Number(x), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			val, err := valueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = val
		}
		return Array(items...), nil
	case map[string]any:
		p, err := payloadOf(x)
		if err != nil {
			return Value{}, err
		}
		return Object(p), nil
	default:
		return Value{}, fmt.Errorf("unsupported json value %T", raw)
	}
}
