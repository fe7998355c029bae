package runtime

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

func (vm *VM) installBuiltins() {
	vm.builtins["print"] = &object.Builtin{Name: "print", Fn: func(args ...object.Object) (object.Object, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Inspect()
		}
		fmt.Fprintln(vm.out, strings.Join(parts, " "))
		return object.NilValue, nil
	}}

	vm.builtins["len"] = &object.Builtin{Name: "len", Fn: func(args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, runtimeErrorf("len() takes 1 argument (%d given)", len(args))
		}
		arg, err := vm.resolve(args[0])
		if err != nil {
			return nil, err
		}
		switch a := arg.(type) {
		case *object.String:
			return &object.Integer{Value: int64(utf8.RuneCountInString(a.Value))}, nil
		case *object.List:
			return &object.Integer{Value: int64(len(a.Elements))}, nil
		}
		return nil, runtimeErrorf("object of type '%s' has no len()", typeName(arg))
	}}

	vm.builtins["str"] = &object.Builtin{Name: "str", Fn: func(args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, runtimeErrorf("str() takes 1 argument (%d given)", len(args))
		}
		return &object.String{Value: args[0].Inspect()}, nil
	}}

	vm.builtins["type"] = &object.Builtin{Name: "type", Fn: func(args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, runtimeErrorf("type() takes 1 argument (%d given)", len(args))
		}
		return &object.String{Value: string(args[0].Type())}, nil
	}}

	vm.builtins["id"] = &object.Builtin{Name: "id", Fn: func(args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, runtimeErrorf("id() takes 1 argument (%d given)", len(args))
		}
		arg, err := vm.resolve(args[0])
		if err != nil {
			return nil, err
		}
		switch a := arg.(type) {
		case *object.Instance:
			return &object.Integer{Value: a.ID}, nil
		case *object.Class:
			return &object.Integer{Value: a.ID}, nil
		case *object.Module:
			return &object.Integer{Value: a.ID}, nil
		case *Closure:
			return &object.Integer{Value: a.ID}, nil
		case *bytecode.Function:
			return &object.Integer{Value: a.ID}, nil
		}
		return nil, runtimeErrorf("'%s' object has no identity", typeName(arg))
	}}
}
