// Package schema holds the core data model: attribute types, the tagged
// Value union, tuples, and the schema that fixes their shape. Value is a
// struct with a type tag rather than interface{} so the hot encode/decode
// loop never allocates or reflects to get at an attribute's payload.
package schema

import "fmt"

// AttrType enumerates the attribute families the model layer recognizes.
// The type fixes both the Value variant carried and the SquID family used.
type AttrType int

const (
	Categorical AttrType = iota
	Int
	Real
	String
	TimeSeries
	CategoricalMarkov
)

func (t AttrType) String() string {
	switch t {
	case Categorical:
		return "categorical"
	case Int:
		return "int"
	case Real:
		return "real"
	case String:
		return "string"
	case TimeSeries:
		return "time-series"
	case CategoricalMarkov:
		return "categorical-markov"
	default:
		return fmt.Sprintf("AttrType(%d)", int(t))
	}
}

// ParseAttrType maps a config-file token to its AttrType.
func ParseAttrType(token string) (AttrType, error) {
	switch token {
	case "categorical", "enum":
		return Categorical, nil
	case "int":
		return Int, nil
	case "real":
		return Real, nil
	case "string":
		return String, nil
	case "time-series", "timeseries":
		return TimeSeries, nil
	case "categorical-markov":
		return CategoricalMarkov, nil
	default:
		return 0, fmt.Errorf("schema: unknown attribute type token %q", token)
	}
}

// valueKind is Value's internal tag, distinct from AttrType: several
// AttrTypes share the same underlying wire representation (e.g. Categorical
// and CategoricalMarkov both carry an Int32).
type valueKind uint8

const (
	kindInt32 valueKind = iota
	kindFloat64
	kindString
)

// Value is a tagged union over {int32, float64, string}, the three
// payload shapes every attribute value reduces to.
type Value struct {
	kind valueKind
	i    int32
	f    float64
	s    string
}

// IntValue wraps an int32 attribute value (categorical codes, integers).
func IntValue(v int32) Value { return Value{kind: kindInt32, i: v} }

// FloatValue wraps a float64 attribute value (reals, time-series samples).
func FloatValue(v float64) Value { return Value{kind: kindFloat64, f: v} }

// StringValue wraps a string attribute value.
func StringValue(v string) Value { return Value{kind: kindString, s: v} }

// Int returns the int32 payload; callers must check IsInt first.
func (v Value) Int() int32 { return v.i }

// Float returns the float64 payload; callers must check IsFloat first.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload; callers must check IsString first.
func (v Value) Str() string { return v.s }

func (v Value) IsInt() bool    { return v.kind == kindInt32 }
func (v Value) IsFloat() bool  { return v.kind == kindFloat64 }
func (v Value) IsString() bool { return v.kind == kindString }

func (v Value) String() string {
	switch v.kind {
	case kindInt32:
		return fmt.Sprintf("%d", v.i)
	case kindFloat64:
		return fmt.Sprintf("%g", v.f)
	default:
		return v.s
	}
}

// Schema is an ordered sequence of attribute types; its length is the
// tuple width every Tuple in the relation must match.
type Schema struct {
	Types []AttrType
}

// NewSchema builds a Schema from attribute types in column order.
func NewSchema(types ...AttrType) Schema { return Schema{Types: types} }

// Width returns the tuple width this schema fixes.
func (s Schema) Width() int { return len(s.Types) }

// Tuple is a fixed-length vector of attribute values, one per schema column.
type Tuple struct {
	Values []Value
}

// NewTuple allocates a Tuple sized to width, all zero-valued ints.
func NewTuple(width int) Tuple {
	return Tuple{Values: make([]Value, width)}
}

// Validate checks the tuple's width and each value's kind against s.
func (s Schema) Validate(t Tuple) error {
	if len(t.Values) != len(s.Types) {
		return fmt.Errorf("schema: tuple has %d columns, schema expects %d", len(t.Values), len(s.Types))
	}
	for i, at := range s.Types {
		v := t.Values[i]
		switch at {
		case Categorical, CategoricalMarkov, Int:
			if !v.IsInt() {
				return fmt.Errorf("schema: column %d (%s) expects an int32 value", i, at)
			}
		case Real, TimeSeries:
			if !v.IsFloat() {
				return fmt.Errorf("schema: column %d (%s) expects a float64 value", i, at)
			}
		case String:
			if !v.IsString() {
				return fmt.Errorf("schema: column %d (%s) expects a string value", i, at)
			}
		}
	}
	return nil
}
