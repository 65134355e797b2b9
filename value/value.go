// Package value defines the tagged union manipulated by the virtual machine.
package value

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies which member of the union a Value holds.
type Kind uint8

const (
	Object Kind = iota
	False
	True
	Int
	Float
	Array
)

var kindNames = [...]string{
	Object: "object",
	False:  "false",
	True:   "true",
	Int:    "int",
	Float:  "float",
	Array:  "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is an immutable tagged union. Int and Float share the same 4-byte
// payload; reading it under the other tag reinterprets the bits. The zero
// Value is the null object.
type Value struct {
	kind   Kind
	bits   uint32
	object any
}

// Null is the zero Value, an Object holding no reference.
var Null = Value{}

// Equaler may be implemented by host objects stored in a Value to take part
// in structural equality.
type Equaler interface {
	Equal(other any) bool
}

func NewBool(b bool) Value {
	if b {
		return Value{kind: True}
	}
	return Value{kind: False}
}

func NewInt(i int32) Value {
	return Value{kind: Int, bits: uint32(i)}
}

func NewFloat(f float32) Value {
	return Value{kind: Float, bits: math.Float32bits(f)}
}

// NewObject wraps a host object. A nil object yields Null.
func NewObject(o any) Value {
	return Value{kind: Object, object: o}
}

// NewString is shorthand for NewObject with a string.
func NewString(s string) Value {
	return Value{kind: Object, object: s}
}

// NewArray wraps a sequence of values. A nil slice yields Null. The slice
// must not be modified afterwards.
func NewArray(values []Value) Value {
	if values == nil {
		return Null
	}
	return Value{kind: Array, object: values}
}

func (v Value) Kind() Kind {
	return v.kind
}

// Int returns the payload interpreted as a signed 32-bit integer.
func (v Value) Int() int32 {
	return int32(v.bits)
}

// Float returns the payload interpreted as a 32-bit float.
func (v Value) Float() float32 {
	return math.Float32frombits(v.bits)
}

// Object returns the host reference, or nil for non-object kinds.
func (v Value) Object() any {
	if v.kind != Object {
		return nil
	}
	return v.object
}

// Array returns the element sequence for Array values. Callers must not
// modify the returned slice.
func (v Value) Array() []Value {
	if v.kind != Array {
		return nil
	}
	elements, _ := v.object.([]Value)
	return elements
}

// Str returns the wrapped string if v is an Object holding a string.
func (v Value) Str() (string, bool) {
	if v.kind != Object {
		return "", false
	}
	s, ok := v.object.(string)
	return s, ok
}

func (v Value) IsNull() bool {
	return v.kind == Object && v.object == nil
}

// IsTruthy reports whether v passes a condition. False and null are falsy.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case False:
		return false
	case Object:
		return v.object != nil
	default:
		return true
	}
}

// Equal compares structurally. Arrays compare element-wise, objects use
// Equaler when available and == for comparable types.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case False, True:
		return true
	case Int, Float:
		return v.bits == other.bits
	case Array:
		a, b := v.Array(), other.Array()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	default:
		return objectsEqual(v.object, other.object)
	}
}

func objectsEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func (v Value) String() string {
	var sb strings.Builder
	v.appendTo(&sb)
	return sb.String()
}

func (v Value) appendTo(sb *strings.Builder) {
	switch v.kind {
	case False:
		sb.WriteString("false")
	case True:
		sb.WriteString("true")
	case Int:
		sb.WriteString(strconv.FormatInt(int64(v.Int()), 10))
	case Float:
		sb.WriteString(strconv.FormatFloat(float64(v.Float()), 'g', -1, 32))
	case Array:
		sb.WriteByte('[')
		for i, e := range v.Array() {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.appendTo(sb)
		}
		sb.WriteByte(']')
	default:
		switch o := v.object.(type) {
		case nil:
			sb.WriteString("null")
		case string:
			sb.WriteString(o)
		case fmt.Stringer:
			sb.WriteString(o.String())
		default:
			fmt.Fprint(sb, o)
		}
	}
}

// Interface converts v into a plain Go value suitable for encoding.
func (v Value) Interface() any {
	switch v.kind {
	case False:
		return false
	case True:
		return true
	case Int:
		return v.Int()
	case Float:
		return v.Float()
	case Array:
		elements := v.Array()
		result := make([]any, len(elements))
		for i, e := range elements {
			result[i] = e.Interface()
		}
		return result
	default:
		return v.object
	}
}

// FromInterface converts a plain Go value into a Value. Unknown types are
// wrapped as objects.
func FromInterface(x any) Value {
	switch x := x.(type) {
	case nil:
		return Null
	case Value:
		return x
	case bool:
		return NewBool(x)
	case int:
		return NewInt(int32(x))
	case int32:
		return NewInt(x)
	case int64:
		return NewInt(int32(x))
	case uint64:
		return NewInt(int32(x))
	case float32:
		return NewFloat(x)
	case float64:
		return NewFloat(float32(x))
	case []Value:
		return NewArray(x)
	case []any:
		values := make([]Value, len(x))
		for i, e := range x {
			values[i] = FromInterface(e)
		}
		return NewArray(values)
	default:
		return NewObject(x)
	}
}
