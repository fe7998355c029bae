package runtime

import (
	"fmt"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

// Closure pairs a compiled function with the module namespace its free
// names resolve against. Function constants are wrapped into closures when
// they are loaded, so a function imported into another module still sees
// its own module's names.
type Closure struct {
	Fn     *bytecode.Function
	Module *object.Module
	ID     int64
}

func NewClosure(fn *bytecode.Function, mod *object.Module) *Closure {
	return &Closure{Fn: fn, Module: mod, ID: object.NextID()}
}

func (c *Closure) Type() object.ObjectType { return object.FUNCTION_OBJ }

func (c *Closure) Inspect() string { return fmt.Sprintf("<fn %s>", c.Fn.Name) }

// nullSentinel is the call marker pushed below the callee in current-format
// call sequences. It never escapes the stack.
type nullSentinel struct{}

func (nullSentinel) Type() object.ObjectType { return "NULL_MARKER" }

func (nullSentinel) Inspect() string { return "<null>" }

var nullMarker object.Object = nullSentinel{}
