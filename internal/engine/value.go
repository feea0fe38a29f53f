package engine

import (
	"fmt"

	"github.com/roach88/synthctl/internal/osc"
)

// ValueType tags the payload of a Value.
type ValueType uint8

const (
	ValueInt ValueType = iota + 1
	ValueFloat
	ValueString
)

// Value is a typed synth or option argument. The zero Value is invalid and
// refuses to encode.
type Value struct {
	typ ValueType
	i   int32
	f   float32
	s   string
}

// Int creates an int32 Value.
func Int(v int32) Value { return Value{typ: ValueInt, i: v} }

// Float creates a float32 Value.
func Float(v float32) Value { return Value{typ: ValueFloat, f: v} }

// String creates a string Value.
func String(v string) Value { return Value{typ: ValueString, s: v} }

// Bool creates an int Value of 1 or 0; the engine has no boolean tag.
func Bool(v bool) Value {
	if v {
		return Int(1)
	}
	return Int(0)
}

// Type returns the payload tag.
func (v Value) Type() ValueType { return v.typ }

func (v Value) String() string {
	switch v.typ {
	case ValueInt:
		return fmt.Sprintf("%d", v.i)
	case ValueFloat:
		return fmt.Sprintf("%g", v.f)
	case ValueString:
		return fmt.Sprintf("%q", v.s)
	default:
		return "<invalid>"
	}
}

// put writes v as one argument of the open message.
func (v Value) put(w *osc.Writer) error {
	switch v.typ {
	case ValueInt:
		return w.Int32(v.i)
	case ValueFloat:
		return w.Float32(v.f)
	case ValueString:
		return w.String(v.s)
	default:
		return fmt.Errorf("encode value: %w", errInvalidValue)
	}
}
