package fetch

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

var jsonNumberType = reflect.TypeOf(json.Number(""))

// DecodeFunc converts a payload into a domain value. Returning false marks the
// payload as semantically invalid for T. Decode functions must be pure: they run
// on whatever goroutine the dispatcher chooses.
type DecodeFunc[T any] func(Payload) (T, bool)

// Decodable is implemented by domain types that know how to fill themselves from
// a payload. Implement it on the pointer receiver.
type Decodable interface {
	DecodePayload(p Payload) bool
}

// DecodeAs adapts a Decodable type into a DecodeFunc:
//
//	fetch.DecodeAs[Weather]()
func DecodeAs[T any, PT interface {
	*T
	Decodable
}]() DecodeFunc[T] {
	return func(p Payload) (T, bool) {
		var v T
		if !PT(&v).DecodePayload(p) {
			var zero T
			return zero, false
		}
		return v, true
	}
}

// DecodeStruct decodes the payload into T using its `json` struct tags. Type
// mismatches reject the payload; unknown keys are ignored. Numbers arrive as
// json.Number, which mapstructure converts into int, uint and float fields.
func DecodeStruct[T any]() DecodeFunc[T] {
	return func(p Payload) (T, bool) {
		var out T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:    "json",
			Result:     &out,
			DecodeHook: rejectNumberAsString,
		})
		if err != nil {
			var zero T
			return zero, false
		}
		if err := dec.Decode(p.Raw()); err != nil {
			var zero T
			return zero, false
		}
		return out, true
	}
}

// AcceptObject is the identity decoder: any JSON object is accepted as is.
func AcceptObject(p Payload) (Payload, bool) {
	return p, true
}

// rejectNumberAsString stops mapstructure from treating a json.Number as text:
// its underlying kind is string, so {"city": 42} would otherwise fill a string field.
func rejectNumberAsString(from, to reflect.Type, data any) (any, error) {
	if from == jsonNumberType && to.Kind() == reflect.String && to != jsonNumberType {
		return nil, fmt.Errorf("cannot decode JSON number %v into %s", data, to)
	}
	return data, nil
}
