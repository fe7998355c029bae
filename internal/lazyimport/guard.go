// Package lazyimport defers imports inside a guarded with block. While
// `with lazy_import() { ... }` runs, module resolution is cut off so every
// import in the block fails fast; on the way out the guard rescans the
// frame's compiled code and binds a self-resolving placeholder for each
// name the block declared. The real load happens the first time a
// placeholder is used.
package lazyimport

import (
	"errors"
	"fmt"

	"github.com/skinklang/skink/internal/object"
	"github.com/skinklang/skink/internal/runtime"
)

// GuardName is the builtin whose call opens a deferred-import block. The
// scanner recognizes the block by this name being loaded in the opening
// instruction run.
const GuardName = "lazy_import"

// PathSentinel is the single search-path entry installed while a guard is
// active. It resolves nothing, so any module that is not already loaded
// fails immediately.
const PathSentinel = "__lazy_importing__"

// Guard is the context manager behind lazy_import(). Enter swaps the
// loader's search path for the sentinel; Exit restores it and, when the
// block failed on an import, turns the failure into deferred bindings.
type Guard struct {
	saved  []string
	active bool
}

func (g *Guard) Type() object.ObjectType { return "GUARD" }

func (g *Guard) Inspect() string { return "<lazy_import guard>" }

func (g *Guard) Enter(vm *runtime.VM) (object.Object, error) {
	loader := vm.Loader()
	if loader == nil {
		return nil, &runtime.InternalError{Msg: "lazy_import with no loader attached"}
	}
	g.saved = loader.SearchPath()
	g.active = true
	loader.SetSearchPath([]string{PathSentinel})
	return object.NilValue, nil
}

// Exit handles the block's outcome. Import failures are swallowed after
// rescanning the owning frame: a cycle report means the path resolution
// below is still usable, so the rescan runs before the search path is
// restored; any other import failure restores the path first. Errors that
// are not import failures pass through untouched.
func (g *Guard) Exit(vm *runtime.VM, raised error) (bool, error) {
	if raised == nil {
		g.restore(vm)
		return false, nil
	}
	var impErr *runtime.ImportError
	if !errors.As(raised, &impErr) {
		g.restore(vm)
		return false, nil
	}

	if impErr.Kind == runtime.ImportCycle {
		exitFrame := vm.CurrentFrame()
		if exitFrame == nil || !exitFrame.Native() || exitFrame.Name != "__exit__" {
			return false, &runtime.InternalError{Msg: "lazy import recovery ran outside a with exit handler"}
		}
		owner := vm.CallerOf(exitFrame)
		if owner == nil || owner.Chunk == nil {
			return false, &runtime.InternalError{Msg: "lazy import recovery found no frame owning the block"}
		}
		if err := bindDeferred(vm, owner); err != nil {
			return false, err
		}
		g.restore(vm)
		return true, nil
	}

	g.restore(vm)
	exitFrame := vm.CurrentFrame()
	if exitFrame == nil {
		return false, &runtime.InternalError{Msg: "lazy import recovery ran outside a with exit handler"}
	}
	owner := vm.CallerOf(exitFrame)
	if owner == nil || owner.Chunk == nil {
		return false, &runtime.InternalError{Msg: "lazy import recovery found no frame owning the block"}
	}
	if err := bindDeferred(vm, owner); err != nil {
		return false, err
	}
	return true, nil
}

func (g *Guard) restore(vm *runtime.VM) {
	if !g.active {
		return
	}
	vm.Loader().SetSearchPath(g.saved)
	g.active = false
}

// bindDeferred rescans the owning frame's chunk and binds a placeholder
// for every name declared in its guarded regions.
func bindDeferred(vm *runtime.VM, owner *runtime.Frame) error {
	decls, err := ScanChunk(owner.Chunk)
	if err != nil {
		return err
	}
	Bind(vm.Loader(), owner, decls)
	return nil
}

// Bind writes one placeholder per declared name into the frame's live name
// table, overwriting whatever the names were bound to.
func Bind(loader *runtime.Loader, frame *runtime.Frame, decls []Declaration) {
	for _, d := range decls {
		for _, name := range d.Names {
			frame.Names[name] = NewPlaceholder(loader, d.Module, name)
		}
	}
}

// Register installs the lazy_import builtin into a VM. Every call returns a
// fresh guard, so nested blocks each restore what they saw.
func Register(vm *runtime.VM) {
	vm.RegisterBuiltin(GuardName, &object.Builtin{
		Name: GuardName,
		Fn: func(args ...object.Object) (object.Object, error) {
			if len(args) != 0 {
				return nil, fmt.Errorf("%s() takes no arguments (%d given)", GuardName, len(args))
			}
			return &Guard{}, nil
		},
	})
}
