package runtime

import (
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

// opCall pops the arguments and callee laid out by a call instruction and
// dispatches. marker is set for the current-format sequence, which carries
// a null sentinel under the callee.
func (vm *VM) opCall(argc int, marker bool) error {
	drop := argc + 1
	if marker {
		drop++
	}
	if vm.sp < drop {
		panic(errStackUnderflow)
	}
	args := make([]object.Object, argc)
	copy(args, vm.stack[vm.sp-argc:vm.sp])
	callee := vm.stack[vm.sp-argc-1]
	if marker && vm.stack[vm.sp-argc-2] != nullMarker {
		return internalErrorf("call without a null marker")
	}
	vm.sp -= drop
	return vm.callValue(callee, args)
}

func (vm *VM) callValue(callee object.Object, args []object.Object) error {
	switch fn := callee.(type) {
	case *Closure:
		return vm.callClosure(fn, args, nil)
	case *object.Builtin:
		res, err := fn.Fn(args...)
		if err != nil {
			return err
		}
		if res == nil {
			res = object.NilValue
		}
		vm.push(res)
		return nil
	case *object.BoundMethod:
		return vm.callValue(fn.Method, append([]object.Object{fn.Receiver}, args...))
	case *object.Class:
		return vm.construct(fn, args)
	case object.Proxy:
		target, err := fn.ResolveTarget()
		if err != nil {
			return err
		}
		return vm.callValue(target, args)
	case *bytecode.Function:
		return internalErrorf("call of an unbound function %s", fn.Name)
	default:
		return runtimeErrorf("'%s' object is not callable", typeName(callee))
	}
}

// callClosure pushes a function frame. When replace is set, the frame's
// return value is swapped for it, which is how constructors yield the
// instance regardless of what init returns.
func (vm *VM) callClosure(cl *Closure, args []object.Object, replace object.Object) error {
	if len(args) != cl.Fn.Arity() {
		return runtimeErrorf("%s() takes %d arguments (%d given)", cl.Fn.Name, cl.Fn.Arity(), len(args))
	}
	if vm.frameCount == len(vm.frames) {
		return runtimeErrorf("maximum recursion depth exceeded")
	}
	names := make(map[string]object.Object, len(args))
	for i, p := range cl.Fn.Params {
		names[p] = args[i]
	}
	vm.frames[vm.frameCount] = Frame{
		Closure:       cl,
		Chunk:         cl.Fn.Chunk,
		Names:         names,
		Module:        cl.Module,
		Name:          cl.Fn.Name,
		base:          vm.sp,
		replaceReturn: replace,
	}
	vm.frameCount++
	vm.frame = &vm.frames[vm.frameCount-1]
	return nil
}

func (vm *VM) construct(cls *object.Class, args []object.Object) error {
	inst := object.NewInstance(cls)
	initFn, ok := cls.Methods["init"]
	if !ok {
		if len(args) != 0 {
			return runtimeErrorf("%s() takes no arguments (%d given)", cls.Name, len(args))
		}
		vm.push(inst)
		return nil
	}
	cl, ok := initFn.(*Closure)
	if !ok {
		return internalErrorf("init of class %s is not a function", cls.Name)
	}
	return vm.callClosure(cl, append([]object.Object{inst}, args...), inst)
}
