package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// UnmarshalIRValue decodes one JSON document into an IRValue. Numbers are
// read as json.Number so integers above 2^53 stay exact; any fractional or
// exponent form is rejected by FromAny. null decodes to IRNull so stored
// snapshots round-trip.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty JSON value")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return FromAny(raw)
}

// MarshalIRValue encodes v as ordinary JSON with sorted object keys.
// HTML escaping applies; use MarshalCanonical for hashing.
func MarshalIRValue(v IRValue) ([]byte, error) {
	return json.Marshal(ToAny(v))
}

// UnmarshalJSON decodes a JSON object. null yields an empty object.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case IRObject:
		*obj = val
	case IRNull:
		*obj = IRObject{}
	default:
		return fmt.Errorf("expected JSON object, got %s", kindOf(v))
	}
	return nil
}

// UnmarshalJSON decodes a JSON array. null yields an empty array.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case IRArray:
		*arr = val
	case IRNull:
		*arr = IRArray{}
	default:
		return fmt.Errorf("expected JSON array, got %s", kindOf(v))
	}
	return nil
}

func (obj IRObject) MarshalJSON() ([]byte, error) { return MarshalIRValue(obj) }

func (arr IRArray) MarshalJSON() ([]byte, error) { return MarshalIRValue(arr) }

func kindOf(v IRValue) string {
	switch v.(type) {
	case IRString:
		return "string"
	case IRInt:
		return "integer"
	case IRBool:
		return "boolean"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	default:
		return "null"
	}
}
