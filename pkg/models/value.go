package models

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ValueKind discriminates the typed forms a knowledge value can take.
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindNumber ValueKind = "number"
	ValueKindDate   ValueKind = "date"
	ValueKindBool   ValueKind = "bool"
	ValueKindObject ValueKind = "object"
)

const (
	// numberTolerance is the absolute tolerance for numeric equality.
	// "$25" and "$25.00" must compare equal.
	numberTolerance = 0.005

	dateLayout = "2006-01-02"
)

// Value is the typed payload of a knowledge entry or claim. Exactly one of
// the payload fields is meaningful, selected by Kind. Values are persisted
// as JSONB and compared with type-aware semantics: numbers within a small
// tolerance, dates by calendar day, strings case-insensitively.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Date   time.Time
	Bool   bool
	Object map[string]any
}

func StringValue(s string) Value {
	return Value{Kind: ValueKindString, Str: s}
}

func NumberValue(n float64) Value {
	return Value{Kind: ValueKindNumber, Num: n}
}

func DateValue(t time.Time) Value {
	return Value{Kind: ValueKindDate, Date: t}
}

func BoolValue(b bool) Value {
	return Value{Kind: ValueKindBool, Bool: b}
}

func ObjectValue(m map[string]any) Value {
	return Value{Kind: ValueKindObject, Object: m}
}

// IsZero reports whether the value is the empty (untyped) value.
func (v Value) IsZero() bool {
	return v.Kind == ""
}

// Equal compares two values with type-aware semantics. Values of different
// kinds are never equal.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueKindString:
		return strings.EqualFold(strings.TrimSpace(v.Str), strings.TrimSpace(other.Str))
	case ValueKindNumber:
		return math.Abs(v.Num-other.Num) <= numberTolerance
	case ValueKindDate:
		y1, m1, d1 := v.Date.Date()
		y2, m2, d2 := other.Date.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case ValueKindBool:
		return v.Bool == other.Bool
	case ValueKindObject:
		return reflect.DeepEqual(normalizeObject(v.Object), normalizeObject(other.Object))
	default:
		return false
	}
}

// normalizeObject lowers numeric values to float64 so that objects decoded
// from JSON compare equal to objects built in code.
func normalizeObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		switch n := val.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case float32:
			out[k] = float64(n)
		case map[string]any:
			out[k] = normalizeObject(n)
		default:
			out[k] = val
		}
	}
	return out
}

// Display renders a human-readable form for explanations and query answers.
func (v Value) Display() string {
	switch v.Kind {
	case ValueKindString:
		return v.Str
	case ValueKindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueKindDate:
		return v.Date.Format("January 2, 2006")
	case ValueKindBool:
		if v.Bool {
			return "yes"
		}
		return "no"
	case ValueKindObject:
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v.Object[k]))
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// valueJSON is the wire and storage form of a Value.
type valueJSON struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes as {"kind": ..., "value": ...} with the payload shaped
// by kind. Dates serialize as YYYY-MM-DD.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case ValueKindString:
		payload = v.Str
	case ValueKindNumber:
		payload = v.Num
	case ValueKindDate:
		payload = v.Date.Format(dateLayout)
	case ValueKindBool:
		payload = v.Bool
	case ValueKindObject:
		payload = v.Object
	default:
		return nil, fmt.Errorf("cannot marshal value of kind %q", v.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.Kind, Value: raw})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var wire valueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := Value{Kind: wire.Kind}
	switch wire.Kind {
	case ValueKindString:
		if err := json.Unmarshal(wire.Value, &out.Str); err != nil {
			return fmt.Errorf("invalid string value: %w", err)
		}
	case ValueKindNumber:
		if err := json.Unmarshal(wire.Value, &out.Num); err != nil {
			return fmt.Errorf("invalid number value: %w", err)
		}
	case ValueKindDate:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return fmt.Errorf("invalid date value: %w", err)
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return fmt.Errorf("invalid date value %q: %w", s, err)
		}
		out.Date = t
	case ValueKindBool:
		if err := json.Unmarshal(wire.Value, &out.Bool); err != nil {
			return fmt.Errorf("invalid bool value: %w", err)
		}
	case ValueKindObject:
		if err := json.Unmarshal(wire.Value, &out.Object); err != nil {
			return fmt.Errorf("invalid object value: %w", err)
		}
	default:
		return fmt.Errorf("unknown value kind %q", wire.Kind)
	}

	*v = out
	return nil
}
