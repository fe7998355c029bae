package object

import (
	"fmt"
	"strconv"
)

// Nil
type Nil struct{}

func (n *Nil) Type() ObjectType { return NIL_OBJ }
func (n *Nil) Inspect() string  { return "nil" }

// Boolean
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return fmt.Sprintf("%t", b.Value) }

// Integer
type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return fmt.Sprintf("%d", i.Value) }

// Float
type Float struct {
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string  { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// String
type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }

// Shared singletons for values with no identity of their own.
var (
	NilValue   = &Nil{}
	TrueValue  = &Boolean{Value: true}
	FalseValue = &Boolean{Value: false}
)

// FromBool maps a Go bool onto the shared boolean singletons.
func FromBool(v bool) *Boolean {
	if v {
		return TrueValue
	}
	return FalseValue
}

// IsTruthy implements Skink truthiness: nil and false are falsy, everything
// else is truthy.
func IsTruthy(o Object) bool {
	switch o := o.(type) {
	case *Nil:
		return false
	case *Boolean:
		return o.Value
	default:
		return true
	}
}
