package bytecode

import (
	"fmt"

	"github.com/skinklang/skink/internal/object"
)

// Function is a compiled function prototype. It lives in constant pools and
// is called by pushing a frame over its chunk.
type Function struct {
	Name   string
	Params []string
	Chunk  *Chunk
	ID     int64
}

func NewFunction(name string, params []string, chunk *Chunk) *Function {
	return &Function{Name: name, Params: params, Chunk: chunk, ID: object.NextID()}
}

func (f *Function) Type() object.ObjectType { return object.FUNCTION_OBJ }
func (f *Function) Inspect() string         { return fmt.Sprintf("<fn %s>", f.Name) }

// Arity returns the number of parameters the function declares.
func (f *Function) Arity() int { return len(f.Params) }
