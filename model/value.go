package model

// This file contains the dynamically-typed measurement value used by
// measurements, measurement series elements and their limits.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNotSet Kind = iota
	KindNull
	KindNumber
	KindString
	KindBool
	KindStruct
	KindList
)

// String returns the name used for the kind in error messages.
func (k Kind) String() string {
	switch k {
	case KindNotSet:
		return "kind not set"
	case KindNull:
		return "NullValue"
	case KindNumber:
		return "double"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindStruct:
		return "Struct"
	case KindList:
		return "ListValue"
	default:
		return "unknown kind"
	}
}

// Value is a closed sum type over null, number, string, bool, list and
// struct values. The zero Value has KindNotSet.
type Value struct {
	kind    Kind
	number  float64
	str     string
	boolean bool
	list    []Value
	fields  map[string]Value
}

// Null returns a null value.
func Null() Value { return Value{kind: KindNull} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, number: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// List returns a list value holding a copy of vs.
func List(vs ...Value) Value {
	l := make([]Value, len(vs))
	copy(l, vs)
	return Value{kind: KindList, list: l}
}

// Struct returns a struct value. Struct values are never accepted as
// measurement values; they exist so callers get a descriptive error.
func Struct(fields map[string]Value) Value {
	m := make(map[string]Value, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return Value{kind: KindStruct, fields: m}
}

func (v Value) Kind() Kind { return v.kind }

// IsNaN reports whether v is a NaN number.
func IsNaN(v Value) bool { return v.kind == KindNumber && math.IsNaN(v.number) }

func (v Value) NumberValue() float64 { return v.number }

func (v Value) StringValue() string { return v.str }

func (v Value) BoolValue() bool { return v.boolean }

// ListValue returns a copy of the list elements.
func (v Value) ListValue() []Value {
	l := make([]Value, len(v.list))
	copy(l, v.list)
	return l
}

// StructValue returns a copy of the struct fields.
func (v Value) StructValue() map[string]Value {
	m := make(map[string]Value, len(v.fields))
	for k, f := range v.fields {
		m[k] = f
	}
	return m
}

// ErrNaN is returned when a NaN number takes part in a comparison.
var ErrNaN = errors.New("NaN is not comparable")

// Compare performs a three-way comparison of two values of the same kind.
// Numbers compare numerically, strings lexicographically, booleans as
// false < true, nulls are always equal and lists element by element.
// Values of different kinds, structs and NaN are not comparable.
func Compare(a, b Value) (int, error) {
	if a.kind != b.kind {
		return 0, fmt.Errorf("cannot compare value of kind '%s' with value of kind '%s'", a.kind, b.kind)
	}
	switch a.kind {
	case KindNull:
		return 0, nil
	case KindNumber:
		if math.IsNaN(a.number) || math.IsNaN(b.number) {
			return 0, ErrNaN
		}
		switch {
		case a.number < b.number:
			return -1, nil
		case a.number > b.number:
			return 1, nil
		}
		return 0, nil
	case KindString:
		return strings.Compare(a.str, b.str), nil
	case KindBool:
		switch {
		case a.boolean == b.boolean:
			return 0, nil
		case !a.boolean:
			return -1, nil
		}
		return 1, nil
	case KindList:
		for i := 0; i < len(a.list) && i < len(b.list); i++ {
			c, err := Compare(a.list[i], b.list[i])
			if err != nil {
				return 0, err
			}
			if c != 0 {
				return c, nil
			}
		}
		switch {
		case len(a.list) < len(b.list):
			return -1, nil
		case len(a.list) > len(b.list):
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("values of kind '%s' are not comparable", a.kind)
	}
}

// Equal reports whether two values compare equal. NaN equals nothing,
// itself included.
func Equal(a, b Value) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// ToProto converts the value to its google.protobuf.Value representation.
func (v Value) ToProto() *structpb.Value {
	switch v.kind {
	case KindNull:
		return structpb.NewNullValue()
	case KindNumber:
		return structpb.NewNumberValue(v.number)
	case KindString:
		return structpb.NewStringValue(v.str)
	case KindBool:
		return structpb.NewBoolValue(v.boolean)
	case KindList:
		values := make([]*structpb.Value, 0, len(v.list))
		for _, e := range v.list {
			values = append(values, e.ToProto())
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values})
	case KindStruct:
		fields := make(map[string]*structpb.Value, len(v.fields))
		for k, f := range v.fields {
			fields[k] = f.ToProto()
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	default:
		return &structpb.Value{}
	}
}

// ValueFromProto converts a google.protobuf.Value into a Value.
func ValueFromProto(pv *structpb.Value) Value {
	if pv == nil {
		return Value{}
	}
	switch k := pv.GetKind().(type) {
	case *structpb.Value_NullValue:
		return Null()
	case *structpb.Value_NumberValue:
		return Number(k.NumberValue)
	case *structpb.Value_StringValue:
		return String(k.StringValue)
	case *structpb.Value_BoolValue:
		return Bool(k.BoolValue)
	case *structpb.Value_ListValue:
		l := make([]Value, 0, len(k.ListValue.GetValues()))
		for _, e := range k.ListValue.GetValues() {
			l = append(l, ValueFromProto(e))
		}
		return Value{kind: KindList, list: l}
	case *structpb.Value_StructValue:
		m := make(map[string]Value, len(k.StructValue.GetFields()))
		for name, f := range k.StructValue.GetFields() {
			m[name] = ValueFromProto(f)
		}
		return Value{kind: KindStruct, fields: m}
	default:
		return Value{}
	}
}

// FromInterface converts a decoded JSON value into a Value.
func FromInterface(i interface{}) (Value, error) {
	switch t := i.(type) {
	case nil:
		return Null(), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case []interface{}:
		l := make([]Value, 0, len(t))
		for _, e := range t {
			v, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			l = append(l, v)
		}
		return Value{kind: KindList, list: l}, nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Value{kind: KindStruct, fields: m}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", i)
	}
}

// MarshalJSON encodes the value the same way protobuf JSON encodes a
// google.protobuf.Value. Non-finite numbers become strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNotSet, KindNull:
		return []byte("null"), nil
	case KindNumber:
		switch {
		case math.IsNaN(v.number):
			return []byte(`"NaN"`), nil
		case math.IsInf(v.number, 1):
			return []byte(`"Infinity"`), nil
		case math.IsInf(v.number, -1):
			return []byte(`"-Infinity"`), nil
		}
		return json.Marshal(v.number)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindStruct:
		var buf bytes.Buffer
		keys := make([]string, 0, len(v.fields))
		for k := range v.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			field, err := json.Marshal(v.fields[k])
			if err != nil {
				return nil, err
			}
			buf.Write(name)
			buf.WriteByte(':')
			buf.Write(field)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON decodes any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var i interface{}
	if err := json.Unmarshal(data, &i); err != nil {
		return err
	}
	decoded, err := FromInterface(i)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// String implements fmt.Stringer.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(b)
}
