package runtime

import (
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

// withBlock records one active with statement in a frame: the manager to
// exit through, the handler address to jump to on error, and the stack
// depth the block runs at.
type withBlock struct {
	manager ContextManager
	handler int
	sp      int
}

// Frame is one entry of the call stack. Module frames share Names with
// their module object, so bindings written into a running module frame are
// visible through the module afterwards. Function frames get a fresh Names
// map holding parameters and locals, with reads falling back to the module
// namespace and then the builtins.
//
// Native frames have no chunk; they mark host calls such as a context
// manager's enter and exit handlers and appear in stack traces.
type Frame struct {
	Closure *Closure
	Chunk   *bytecode.Chunk
	IP      int
	Names   map[string]object.Object
	Module  *object.Module
	Name    string

	base          int
	withs         []withBlock
	replaceReturn object.Object
	native        bool
}

// Native reports whether this is a host frame with no bytecode behind it.
func (f *Frame) Native() bool { return f.native }

// Line reports the source line of the most recently executed instruction,
// or 0 when the frame has not run anything yet.
func (f *Frame) Line() int {
	if f.Chunk == nil || f.IP == 0 {
		return 0
	}
	return f.Chunk.Line(f.IP - 1)
}
