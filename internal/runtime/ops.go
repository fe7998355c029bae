package runtime

import (
	"fmt"
	"math"
	"strings"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

// runtimeErrorf builds a plain runtime error; formatError attaches the line
// and stack trace if the error escapes every with block.
func runtimeErrorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func typeName(o object.Object) string {
	return strings.ToLower(string(o.Type()))
}

// resolve forces a proxy to its real value. Non-proxies pass through.
func (vm *VM) resolve(o object.Object) (object.Object, error) {
	if p, ok := o.(object.Proxy); ok {
		return p.ResolveTarget()
	}
	return o, nil
}

var opSymbols = map[bytecode.Opcode]string{
	bytecode.OP_ADD: "+",
	bytecode.OP_SUB: "-",
	bytecode.OP_MUL: "*",
	bytecode.OP_DIV: "/",
	bytecode.OP_MOD: "%",
	bytecode.OP_LT:  "<",
	bytecode.OP_LE:  "<=",
	bytecode.OP_GT:  ">",
	bytecode.OP_GE:  ">=",
}

func (vm *VM) binaryOp(op bytecode.Opcode) error {
	right, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}
	left, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}

	switch l := left.(type) {
	case *object.Integer:
		switch r := right.(type) {
		case *object.Integer:
			return vm.intOp(op, l.Value, r.Value)
		case *object.Float:
			return vm.floatOp(op, float64(l.Value), r.Value)
		}
	case *object.Float:
		switch r := right.(type) {
		case *object.Integer:
			return vm.floatOp(op, l.Value, float64(r.Value))
		case *object.Float:
			return vm.floatOp(op, l.Value, r.Value)
		}
	case *object.String:
		if r, ok := right.(*object.String); ok && op == bytecode.OP_ADD {
			vm.push(&object.String{Value: l.Value + r.Value})
			return nil
		}
	case *object.List:
		if r, ok := right.(*object.List); ok && op == bytecode.OP_ADD {
			elems := make([]object.Object, 0, len(l.Elements)+len(r.Elements))
			elems = append(elems, l.Elements...)
			elems = append(elems, r.Elements...)
			vm.push(&object.List{Elements: elems})
			return nil
		}
	}
	return runtimeErrorf("unsupported operand types for %s: '%s' and '%s'",
		opSymbols[op], typeName(left), typeName(right))
}

func (vm *VM) intOp(op bytecode.Opcode, a, b int64) error {
	switch op {
	case bytecode.OP_ADD:
		vm.push(&object.Integer{Value: a + b})
	case bytecode.OP_SUB:
		vm.push(&object.Integer{Value: a - b})
	case bytecode.OP_MUL:
		vm.push(&object.Integer{Value: a * b})
	case bytecode.OP_DIV:
		if b == 0 {
			return runtimeErrorf("division by zero")
		}
		vm.push(&object.Integer{Value: a / b})
	case bytecode.OP_MOD:
		if b == 0 {
			return runtimeErrorf("modulo by zero")
		}
		vm.push(&object.Integer{Value: a % b})
	default:
		return internalErrorf("bad integer operator %s", op)
	}
	return nil
}

func (vm *VM) floatOp(op bytecode.Opcode, a, b float64) error {
	switch op {
	case bytecode.OP_ADD:
		vm.push(&object.Float{Value: a + b})
	case bytecode.OP_SUB:
		vm.push(&object.Float{Value: a - b})
	case bytecode.OP_MUL:
		vm.push(&object.Float{Value: a * b})
	case bytecode.OP_DIV:
		if b == 0 {
			return runtimeErrorf("division by zero")
		}
		vm.push(&object.Float{Value: a / b})
	case bytecode.OP_MOD:
		if b == 0 {
			return runtimeErrorf("modulo by zero")
		}
		vm.push(&object.Float{Value: math.Mod(a, b)})
	default:
		return internalErrorf("bad float operator %s", op)
	}
	return nil
}

func (vm *VM) negateOp() error {
	v, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}
	switch n := v.(type) {
	case *object.Integer:
		vm.push(&object.Integer{Value: -n.Value})
	case *object.Float:
		vm.push(&object.Float{Value: -n.Value})
	default:
		return runtimeErrorf("bad operand type for unary -: '%s'", typeName(v))
	}
	return nil
}

func (vm *VM) equalityOp(op bytecode.Opcode) error {
	right, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}
	left, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}
	eq := objectsEqual(left, right)
	if op == bytecode.OP_NE {
		eq = !eq
	}
	vm.push(object.FromBool(eq))
	return nil
}

func objectsEqual(a, b object.Object) bool {
	switch av := a.(type) {
	case *object.Nil:
		_, ok := b.(*object.Nil)
		return ok
	case *object.Boolean:
		bv, ok := b.(*object.Boolean)
		return ok && av.Value == bv.Value
	case *object.Integer:
		switch bv := b.(type) {
		case *object.Integer:
			return av.Value == bv.Value
		case *object.Float:
			return float64(av.Value) == bv.Value
		}
		return false
	case *object.Float:
		switch bv := b.(type) {
		case *object.Integer:
			return av.Value == float64(bv.Value)
		case *object.Float:
			return av.Value == bv.Value
		}
		return false
	case *object.String:
		bv, ok := b.(*object.String)
		return ok && av.Value == bv.Value
	case *object.List:
		bv, ok := b.(*object.List)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !objectsEqual(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

func (vm *VM) compareOp(op bytecode.Opcode) error {
	right, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}
	left, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}

	if ls, ok := left.(*object.String); ok {
		if rs, ok := right.(*object.String); ok {
			vm.push(object.FromBool(compareOrdered(op, strings.Compare(ls.Value, rs.Value))))
			return nil
		}
	}
	lf, lok := numberValue(left)
	rf, rok := numberValue(right)
	if lok && rok {
		switch {
		case lf < rf:
			vm.push(object.FromBool(compareOrdered(op, -1)))
		case lf > rf:
			vm.push(object.FromBool(compareOrdered(op, 1)))
		default:
			vm.push(object.FromBool(compareOrdered(op, 0)))
		}
		return nil
	}
	return runtimeErrorf("'%s' not supported between '%s' and '%s'",
		opSymbols[op], typeName(left), typeName(right))
}

func numberValue(o object.Object) (float64, bool) {
	switch v := o.(type) {
	case *object.Integer:
		return float64(v.Value), true
	case *object.Float:
		return v.Value, true
	}
	return 0, false
}

func compareOrdered(op bytecode.Opcode, cmp int) bool {
	switch op {
	case bytecode.OP_LT:
		return cmp < 0
	case bytecode.OP_LE:
		return cmp <= 0
	case bytecode.OP_GT:
		return cmp > 0
	case bytecode.OP_GE:
		return cmp >= 0
	}
	return false
}

func (vm *VM) getAttrOp(name string) error {
	obj := vm.pop()
	if p, ok := obj.(object.Proxy); ok {
		switch name {
		case "__lazy_module__":
			m, _ := p.Describe()
			vm.push(&object.String{Value: m})
			return nil
		case "__lazy_name__":
			_, n := p.Describe()
			vm.push(&object.String{Value: n})
			return nil
		case "__lazy_loaded__":
			vm.push(object.FromBool(p.Loaded()))
			return nil
		}
		v, err := p.ResolveMember(name)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	}
	v, err := vm.getAttr(obj, name)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

func (vm *VM) getAttr(obj object.Object, name string) (object.Object, error) {
	switch o := obj.(type) {
	case *object.Module:
		if v, ok := o.Names[name]; ok {
			return v, nil
		}
		return nil, runtimeErrorf("module %q has no attribute %q", o.Path, name)
	case *object.Instance:
		if v, ok := o.GetAttr(name); ok {
			return v, nil
		}
		return nil, runtimeErrorf("'%s' object has no attribute %q", o.Class.Name, name)
	case *object.Class:
		if v, ok := classAttr(o, name); ok {
			return v, nil
		}
		return nil, runtimeErrorf("class %q has no attribute %q", o.Name, name)
	default:
		return nil, runtimeErrorf("'%s' object has no attribute %q", typeName(obj), name)
	}
}

func classAttr(c *object.Class, name string) (object.Object, bool) {
	if v, ok := c.Vars[name]; ok {
		return v, true
	}
	if v, ok := c.Statics[name]; ok {
		return v, true
	}
	if v, ok := c.Methods[name]; ok {
		return v, true
	}
	return nil, false
}

func (vm *VM) setAttrOp(name string) error {
	val := vm.pop()
	obj := vm.pop()
	if p, ok := obj.(object.Proxy); ok {
		t, err := p.ResolveTarget()
		if err != nil {
			return err
		}
		obj = t
	}
	switch o := obj.(type) {
	case *object.Instance:
		o.Fields[name] = val
	case *object.Class:
		o.Vars[name] = val
	case *object.Module:
		o.Names[name] = val
	default:
		return runtimeErrorf("cannot set attribute %q on '%s' object", name, typeName(obj))
	}
	return nil
}

func (vm *VM) getIndexOp() error {
	idx := vm.pop()
	obj, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}
	switch o := obj.(type) {
	case *object.List:
		i, err := sequenceIndex(idx, len(o.Elements), "list")
		if err != nil {
			return err
		}
		vm.push(o.Elements[i])
	case *object.String:
		runes := []rune(o.Value)
		i, err := sequenceIndex(idx, len(runes), "string")
		if err != nil {
			return err
		}
		vm.push(&object.String{Value: string(runes[i])})
	default:
		return runtimeErrorf("'%s' object is not subscriptable", typeName(obj))
	}
	return nil
}

func (vm *VM) setIndexOp() error {
	val := vm.pop()
	idx := vm.pop()
	obj, err := vm.resolve(vm.pop())
	if err != nil {
		return err
	}
	list, ok := obj.(*object.List)
	if !ok {
		return runtimeErrorf("'%s' object does not support item assignment", typeName(obj))
	}
	i, err := sequenceIndex(idx, len(list.Elements), "list")
	if err != nil {
		return err
	}
	list.Elements[i] = val
	return nil
}

// sequenceIndex checks an index object against a length, counting negative
// indexes from the end.
func sequenceIndex(idx object.Object, n int, what string) (int, error) {
	iv, ok := idx.(*object.Integer)
	if !ok {
		return 0, runtimeErrorf("%s index must be an integer, not '%s'", what, typeName(idx))
	}
	i := int(iv.Value)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, runtimeErrorf("%s index out of range", what)
	}
	return i, nil
}
