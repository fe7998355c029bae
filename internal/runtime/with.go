package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skinklang/skink/internal/object"
)

// ContextManager is the protocol behind the with statement. Enter runs when
// the block is set up; Exit runs when the block finishes, with the error
// being handled (nil on the normal path). A true suppress return swallows
// the error and execution continues after the block.
type ContextManager interface {
	object.Object
	Enter(vm *VM) (object.Object, error)
	Exit(vm *VM, raised error) (suppress bool, err error)
}

func (vm *VM) pushNativeFrame(name string) error {
	if vm.frameCount == len(vm.frames) {
		return runtimeErrorf("maximum recursion depth exceeded")
	}
	vm.frames[vm.frameCount] = Frame{Name: name, native: true, base: vm.sp}
	vm.frameCount++
	vm.frame = &vm.frames[vm.frameCount-1]
	return nil
}

func (vm *VM) popNativeFrame() {
	vm.frameCount--
	vm.frame = &vm.frames[vm.frameCount-1]
}

func (vm *VM) enterManager(mgr ContextManager) (object.Object, error) {
	if err := vm.pushNativeFrame("__enter__"); err != nil {
		return nil, err
	}
	res, err := mgr.Enter(vm)
	vm.popNativeFrame()
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = object.NilValue
	}
	return res, nil
}

// exitManager runs a manager's exit handler inside a native frame, so the
// handler can recognize its own place on the call stack and the frame that
// owns the block below it.
func (vm *VM) exitManager(mgr ContextManager, raised error) (bool, error) {
	if err := vm.pushNativeFrame("__exit__"); err != nil {
		return false, err
	}
	suppress, err := mgr.Exit(vm, raised)
	vm.popNativeFrame()
	return suppress, err
}

// dispatchError routes a runtime error to the innermost open with block:
// frames above the handler are unwound, the stack is cut back to the
// block's depth and execution resumes at the handler. A non-nil return
// means no handler took the error and the run must abort with it.
func (vm *VM) dispatchError(err error) error {
	if isFatal(err) {
		return vm.formatError(err)
	}
	target := -1
	for i := vm.frameCount - 1; i >= 0; i-- {
		if len(vm.frames[i].withs) > 0 {
			target = i
			break
		}
	}
	if target < 0 {
		return vm.formatError(err)
	}
	vm.frameCount = target + 1
	vm.frame = &vm.frames[vm.frameCount-1]
	fr := vm.frame
	wb := fr.withs[len(fr.withs)-1]
	fr.withs = fr.withs[:len(fr.withs)-1]
	vm.sp = wb.sp
	vm.current = err
	vm.pendingExit = wb.manager
	fr.IP = wb.handler
	return nil
}

// formatError attaches the source position and a stack trace to an error
// that escapes execution. Errors that already carry an annotation, such as
// a module failure surfacing at its import site, pass through untouched.
func (vm *VM) formatError(err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	line := 0
	for i := vm.frameCount - 1; i >= 0; i-- {
		if l := vm.frames[i].Line(); l > 0 {
			line = l
			break
		}
	}
	var trace strings.Builder
	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		if fr.native {
			fmt.Fprintf(&trace, "\n  at %s (native)", fr.Name)
			continue
		}
		if fr.Chunk == nil {
			continue
		}
		fmt.Fprintf(&trace, "\n  at %s:%d", fr.Name, fr.Line())
	}
	return &RuntimeError{Line: line, Trace: trace.String(), Err: err}
}
