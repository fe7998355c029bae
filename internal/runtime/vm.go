// Package runtime executes compiled chunks: a stack VM with name-based
// frames, context-managed blocks with error dispatch, and a module loader
// with import suppression hooks for deferred binding.
package runtime

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

const (
	// StackSize is the fixed value-stack depth of one VM.
	StackSize = 4096
	// MaxFrames bounds call nesting within one VM.
	MaxFrames = 1024
)

var (
	errTruncatedBytecode = errors.New("truncated bytecode")
	errStackOverflow     = errors.New("stack overflow")
	errStackUnderflow    = errors.New("stack underflow")
	errInvalidConstant   = errors.New("invalid constant index")
)

// VM runs one module at a time. Nested module loads run on forked VMs, so
// one frame stack always belongs to one module execution.
type VM struct {
	stack []object.Object
	sp    int

	frames     []Frame
	frameCount int
	frame      *Frame

	builtins map[string]object.Object
	loader   *Loader

	// current holds the error a with block is handling; pendingExit is the
	// manager whose exit handler runs next.
	current     error
	pendingExit ContextManager

	out io.Writer
	ctx context.Context
}

func NewVM() *VM {
	vm := &VM{
		stack:    make([]object.Object, StackSize),
		frames:   make([]Frame, MaxFrames),
		builtins: make(map[string]object.Object),
		out:      os.Stdout,
	}
	vm.installBuiltins()
	return vm
}

func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

func (vm *VM) Output() io.Writer { return vm.out }

func (vm *VM) SetContext(ctx context.Context) { vm.ctx = ctx }

func (vm *VM) SetLoader(l *Loader) { vm.loader = l }

func (vm *VM) Loader() *Loader { return vm.loader }

// RegisterBuiltin binds a value into the builtin namespace shared by every
// frame and fork of this VM.
func (vm *VM) RegisterBuiltin(name string, v object.Object) {
	vm.builtins[name] = v
}

// CurrentFrame is the frame executing right now, native frames included.
func (vm *VM) CurrentFrame() *Frame {
	if vm.frameCount == 0 {
		return nil
	}
	return vm.frame
}

// CallerOf walks one step down the call stack from f.
func (vm *VM) CallerOf(f *Frame) *Frame {
	for i := vm.frameCount - 1; i > 0; i-- {
		if &vm.frames[i] == f {
			return &vm.frames[i-1]
		}
	}
	return nil
}

// Fork makes a VM sharing this one's loader, builtins and output but with
// its own stack and frames, for running another module to completion while
// this one is mid-instruction.
func (vm *VM) Fork() *VM {
	return &VM{
		stack:    make([]object.Object, len(vm.stack)),
		frames:   make([]Frame, len(vm.frames)),
		builtins: vm.builtins,
		loader:   vm.loader,
		out:      vm.out,
		ctx:      vm.ctx,
	}
}

// RunModule executes a compiled module chunk with mod's namespace as the
// frame's live name table, so bindings made while the module runs are
// visible through the module object. The chunk must end in OP_HALT.
func (vm *VM) RunModule(chunk *bytecode.Chunk, mod *object.Module) (result object.Object, err error) {
	if !chunk.Format.Known() {
		return nil, &UnsupportedFormatError{Format: chunk.Format}
	}
	defer func() {
		if r := recover(); r != nil {
			switch r {
			case errStackOverflow, errStackUnderflow, errTruncatedBytecode, errInvalidConstant:
				result = nil
				err = vm.formatError(r.(error))
			default:
				panic(r)
			}
		}
	}()

	vm.sp = 0
	vm.frameCount = 1
	vm.frames[0] = Frame{
		Chunk:  chunk,
		Names:  mod.Names,
		Module: mod,
		Name:   mod.Path,
	}
	vm.frame = &vm.frames[0]
	vm.current = nil
	vm.pendingExit = nil

	return vm.run()
}

func (vm *VM) run() (object.Object, error) {
	opsSinceCheck := 0
	const checkInterval = 1000

	for {
		opsSinceCheck++
		if opsSinceCheck >= checkInterval {
			opsSinceCheck = 0
			if vm.ctx != nil {
				select {
				case <-vm.ctx.Done():
					return nil, vm.ctx.Err()
				default:
				}
			}
		}

		if vm.frame.IP >= len(vm.frame.Chunk.Code) {
			return nil, vm.formatError(internalErrorf("execution ran past the end of %s", vm.frame.Chunk.Name))
		}

		op := bytecode.Opcode(vm.frame.Chunk.Code[vm.frame.IP])
		vm.frame.IP++

		var err error

		switch op {
		case bytecode.OP_CONST:
			c := vm.readConstant()
			if fn, ok := c.(*bytecode.Function); ok {
				c = NewClosure(fn, vm.frame.Module)
			}
			vm.push(c)

		case bytecode.OP_POP:
			vm.pop()

		case bytecode.OP_NIL:
			vm.push(object.NilValue)

		case bytecode.OP_TRUE:
			vm.push(object.TrueValue)

		case bytecode.OP_FALSE:
			vm.push(object.FalseValue)

		case bytecode.OP_ADD, bytecode.OP_SUB, bytecode.OP_MUL, bytecode.OP_DIV, bytecode.OP_MOD:
			err = vm.binaryOp(op)

		case bytecode.OP_NEG:
			err = vm.negateOp()

		case bytecode.OP_EQ, bytecode.OP_NE:
			err = vm.equalityOp(op)

		case bytecode.OP_LT, bytecode.OP_LE, bytecode.OP_GT, bytecode.OP_GE:
			err = vm.compareOp(op)

		case bytecode.OP_NOT:
			vm.push(object.FromBool(!object.IsTruthy(vm.pop())))

		case bytecode.OP_AND:
			right := vm.pop()
			left := vm.pop()
			vm.push(object.FromBool(object.IsTruthy(left) && object.IsTruthy(right)))

		case bytecode.OP_OR:
			right := vm.pop()
			left := vm.pop()
			vm.push(object.FromBool(object.IsTruthy(left) || object.IsTruthy(right)))

		case bytecode.OP_LOAD_NAME:
			name := vm.readName()
			v, ok := vm.lookupName(name)
			if !ok {
				err = runtimeErrorf("name %q is not defined", name)
				break
			}
			vm.push(v)

		case bytecode.OP_STORE_NAME:
			name := vm.readName()
			vm.frame.Names[name] = vm.pop()

		case bytecode.OP_GET_ATTR:
			err = vm.getAttrOp(vm.readName())

		case bytecode.OP_SET_ATTR:
			err = vm.setAttrOp(vm.readName())

		case bytecode.OP_GET_INDEX:
			err = vm.getIndexOp()

		case bytecode.OP_SET_INDEX:
			err = vm.setIndexOp()

		case bytecode.OP_MAKE_LIST:
			n := vm.readShort()
			if vm.sp < n {
				panic(errStackUnderflow)
			}
			elems := make([]object.Object, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(&object.List{Elements: elems})

		case bytecode.OP_JUMP:
			vm.frame.IP += vm.readShort()

		case bytecode.OP_JUMP_IF_FALSE:
			jump := vm.readShort()
			if !object.IsTruthy(vm.pop()) {
				vm.frame.IP += jump
			}

		case bytecode.OP_LOOP:
			vm.frame.IP -= vm.readShort()

		case bytecode.OP_POP_JUMP_IF_TRUE:
			jump := vm.readShort()
			if object.IsTruthy(vm.pop()) {
				vm.frame.IP += jump
				vm.current = nil
			}

		case bytecode.OP_CALL_FUNCTION:
			err = vm.opCall(int(vm.readByte()), false)

		case bytecode.OP_PUSH_NULL:
			vm.push(nullMarker)

		case bytecode.OP_PRECALL:
			argc := int(vm.readByte())
			if vm.sp < argc+2 || vm.stack[vm.sp-argc-2] != nullMarker {
				err = internalErrorf("call setup without a null marker")
			}

		case bytecode.OP_CALL:
			err = vm.opCall(int(vm.readByte()), true)

		case bytecode.OP_RETURN:
			result := vm.pop()
			fr := vm.frame
			if fr.replaceReturn != nil {
				result = fr.replaceReturn
			}
			vm.sp = fr.base
			vm.frameCount--
			if vm.frameCount == 0 {
				return result, nil
			}
			vm.frame = &vm.frames[vm.frameCount-1]
			vm.push(result)

		case bytecode.OP_SETUP_WITH, bytecode.OP_BEFORE_WITH:
			jump := vm.readShort()
			handler := vm.frame.IP + jump
			mgr, rerr := vm.resolve(vm.pop())
			if rerr != nil {
				err = rerr
				break
			}
			cm, ok := mgr.(ContextManager)
			if !ok {
				err = runtimeErrorf("'%s' object does not support the with statement", typeName(mgr))
				break
			}
			depth := vm.sp
			res, eerr := vm.enterManager(cm)
			if eerr != nil {
				err = eerr
				break
			}
			vm.frame.withs = append(vm.frame.withs, withBlock{manager: cm, handler: handler, sp: depth})
			vm.push(res)

		case bytecode.OP_WITH_EXIT:
			fr := vm.frame
			if len(fr.withs) == 0 {
				err = internalErrorf("with exit outside an open with block")
				break
			}
			wb := fr.withs[len(fr.withs)-1]
			fr.withs = fr.withs[:len(fr.withs)-1]
			if _, xerr := vm.exitManager(wb.manager, nil); xerr != nil {
				err = xerr
			}

		case bytecode.OP_WITH_EXCEPT_START:
			mgr := vm.pendingExit
			vm.pendingExit = nil
			if mgr == nil {
				err = internalErrorf("with handler entered without a pending error")
				break
			}
			suppress, xerr := vm.exitManager(mgr, vm.current)
			if xerr != nil {
				vm.current = nil
				err = xerr
				break
			}
			vm.push(object.FromBool(suppress))

		case bytecode.OP_RERAISE:
			rerr := vm.current
			vm.current = nil
			if rerr == nil {
				err = internalErrorf("reraise with no error being handled")
				break
			}
			err = rerr

		case bytecode.OP_IMPORT_NAME:
			path := vm.readName()
			// The compiled name list under the path rides the stack for
			// scanners, not for the loader.
			vm.pop()
			if vm.loader == nil {
				err = internalErrorf("import with no loader attached")
				break
			}
			mod, lerr := vm.loader.ImportModule(path)
			if lerr != nil {
				err = lerr
				break
			}
			vm.push(mod)

		case bytecode.OP_IMPORT_FROM:
			name := vm.readName()
			mod, ok := vm.peek(0).(*object.Module)
			if !ok {
				err = internalErrorf("import from a non-module '%s'", typeName(vm.peek(0)))
				break
			}
			v, found := mod.Names[name]
			if !found {
				err = newImportMissingName(mod.Path, name)
				break
			}
			vm.push(v)

		case bytecode.OP_CLASS:
			vm.push(object.NewClass(vm.readName()))

		case bytecode.OP_METHOD, bytecode.OP_STATIC_METHOD, bytecode.OP_CLASS_VAR:
			name := vm.readName()
			member := vm.pop()
			cls, ok := vm.peek(0).(*object.Class)
			if !ok {
				err = internalErrorf("class member %q attached to a non-class '%s'", name, typeName(vm.peek(0)))
				break
			}
			switch op {
			case bytecode.OP_METHOD:
				cls.Methods[name] = member
			case bytecode.OP_STATIC_METHOD:
				cls.Statics[name] = member
			default:
				cls.Vars[name] = member
			}

		case bytecode.OP_HALT:
			if vm.sp > 0 {
				return vm.pop(), nil
			}
			return object.NilValue, nil

		default:
			err = internalErrorf("unknown opcode 0x%02x", byte(op))
		}

		if err != nil {
			if fatal := vm.dispatchError(err); fatal != nil {
				return nil, fatal
			}
		}
	}
}

func (vm *VM) lookupName(name string) (object.Object, bool) {
	fr := vm.frame
	if v, ok := fr.Names[name]; ok {
		return v, true
	}
	if fr.Module != nil {
		if v, ok := fr.Module.Names[name]; ok {
			return v, true
		}
	}
	v, ok := vm.builtins[name]
	return v, ok
}

func (vm *VM) push(v object.Object) {
	if vm.sp == len(vm.stack) {
		panic(errStackOverflow)
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() object.Object {
	if vm.sp == 0 {
		panic(errStackUnderflow)
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) object.Object {
	if vm.sp-1-distance < 0 {
		panic(errStackUnderflow)
	}
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) readByte() byte {
	fr := vm.frame
	if fr.IP >= len(fr.Chunk.Code) {
		panic(errTruncatedBytecode)
	}
	b := fr.Chunk.Code[fr.IP]
	fr.IP++
	return b
}

func (vm *VM) readShort() int {
	fr := vm.frame
	if fr.IP+1 >= len(fr.Chunk.Code) {
		panic(errTruncatedBytecode)
	}
	v := int(fr.Chunk.Code[fr.IP])<<8 | int(fr.Chunk.Code[fr.IP+1])
	fr.IP += 2
	return v
}

func (vm *VM) readConstant() object.Object {
	idx := vm.readShort()
	consts := vm.frame.Chunk.Constants
	if idx >= len(consts) {
		panic(errInvalidConstant)
	}
	return consts[idx]
}

func (vm *VM) readName() string {
	s, ok := vm.readConstant().(*object.String)
	if !ok {
		panic(errInvalidConstant)
	}
	return s.Value
}
