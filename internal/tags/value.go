package tags

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind enumerates the closed set of tag value types.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
)

// String returns the developer-facing kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "invalid"
	}
}

// Class returns the plant-facing signal class used on external surfaces.
func (k Kind) Class() string {
	if k == KindBool {
		return "digital"
	}
	return "analog"
}

// Valid returns true when the kind is one of the supported variants.
func (k Kind) Valid() bool {
	switch k {
	case KindBool, KindInt, KindFloat:
		return true
	default:
		return false
	}
}

// Value is a tagged variant holding exactly one of bool, int64 or float64.
// The zero Value has no kind and is rejected by the registry.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
}

// Bool constructs a digital value.
func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// Int constructs an integer value.
func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// Float constructs an analog value.
func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

// Kind returns the variant kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero reports whether the value carries no variant.
func (v Value) IsZero() bool {
	return v.kind == 0
}

// AsBool converts to bool: digital values directly, numerics as != 0.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	default:
		return false
	}
}

// AsInt converts to int64, truncating floats.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// AsFloat converts to float64; digital values map to 0/1.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return v.f
	default:
		return 0
	}
}

// Native returns the underlying scalar for JSON rendering.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return nil
	}
}

// MarshalJSON renders the underlying scalar, so payloads carry plain
// JSON booleans and numbers rather than a wrapper object.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// String renders the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	default:
		return "<none>"
	}
}

// Coerce converts a decoded external scalar (JSON bool/number, protocol
// numeric) into a Value of the requested kind. Conversion rules: digital
// accepts bool or exact 0/1 numerics; int accepts integral numerics; float
// accepts any numeric. Everything else fails with ErrTypeMismatch.
func Coerce(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindBool:
		switch val := raw.(type) {
		case bool:
			return Bool(val), nil
		case float64:
			if val == 0 || val == 1 {
				return Bool(val == 1), nil
			}
			return Value{}, fmt.Errorf("%w: digital tag accepts only 0/1, got %g", ErrTypeMismatch, val)
		case int:
			if val == 0 || val == 1 {
				return Bool(val == 1), nil
			}
			return Value{}, fmt.Errorf("%w: digital tag accepts only 0/1, got %d", ErrTypeMismatch, val)
		case int64:
			if val == 0 || val == 1 {
				return Bool(val == 1), nil
			}
			return Value{}, fmt.Errorf("%w: digital tag accepts only 0/1, got %d", ErrTypeMismatch, val)
		}
	case KindInt:
		switch val := raw.(type) {
		case float64:
			if val == math.Trunc(val) {
				return Int(int64(val)), nil
			}
			return Value{}, fmt.Errorf("%w: integer tag requires integral value, got %g", ErrTypeMismatch, val)
		case int:
			return Int(int64(val)), nil
		case int64:
			return Int(val), nil
		}
	case KindFloat:
		switch val := raw.(type) {
		case float64:
			return Float(val), nil
		case int:
			return Float(float64(val)), nil
		case int64:
			return Float(float64(val)), nil
		}
	}
	return Value{}, fmt.Errorf("%w: cannot represent %T as %s", ErrTypeMismatch, raw, kind)
}
