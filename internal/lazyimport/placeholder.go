package lazyimport

import (
	"fmt"
	"strings"

	"github.com/skinklang/skink/internal/object"
	"github.com/skinklang/skink/internal/runtime"
)

// Placeholder stands in for a name whose import was deferred by a guard.
// The first use imports the module for real, fetches the named member and
// snapshots its attribute surface; later attribute reads are served from
// that snapshot. The placeholder never becomes the member itself, so an
// identity taken before resolution differs from the member's own.
type Placeholder struct {
	ModulePath string
	Name       string

	loader  *runtime.Loader
	target  object.Object
	members map[string]object.Object
	loaded  bool
}

var reservedAttrs = []string{"__lazy_module__", "__lazy_name__", "__lazy_loaded__"}

func NewPlaceholder(loader *runtime.Loader, modulePath, name string) *Placeholder {
	return &Placeholder{ModulePath: modulePath, Name: name, loader: loader}
}

func (p *Placeholder) Type() object.ObjectType { return object.PLACEHOLDER_OBJ }

func (p *Placeholder) Inspect() string {
	if p.loaded {
		return p.target.Inspect()
	}
	return fmt.Sprintf("<lazy %s from %s>", p.Name, p.ModulePath)
}

// ResolveTarget imports the module and fetches the deferred member. It runs
// the import once; afterwards the resolved value is returned as is.
func (p *Placeholder) ResolveTarget() (object.Object, error) {
	if p.loaded {
		return p.target, nil
	}
	mod, err := p.loader.ImportModule(p.ModulePath)
	if err != nil {
		return nil, err
	}
	target, ok := mod.Names[p.Name]
	if !ok {
		return nil, fmt.Errorf("module %q has no attribute %q", p.ModulePath, p.Name)
	}
	p.target = target
	p.members = attrSurface(target)
	for _, name := range reservedAttrs {
		delete(p.members, name)
	}
	p.loaded = true
	return p.target, nil
}

// ResolveMember reads an attribute through the placeholder, resolving the
// target first when needed. Reads are answered from the snapshot taken at
// resolution time.
func (p *Placeholder) ResolveMember(name string) (object.Object, error) {
	if !p.loaded {
		if _, err := p.ResolveTarget(); err != nil {
			return nil, err
		}
	}
	if v, ok := p.members[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%s has no attribute %q", describeTarget(p.target), name)
}

// Loaded reports whether the target has been produced.
func (p *Placeholder) Loaded() bool { return p.loaded }

// Describe names the deferred member without resolving it.
func (p *Placeholder) Describe() (string, string) { return p.ModulePath, p.Name }

// attrSurface snapshots the readable attributes of a value, with the same
// precedence the live lookup rules give them.
func attrSurface(o object.Object) map[string]object.Object {
	out := make(map[string]object.Object)
	switch v := o.(type) {
	case *object.Class:
		for name, m := range v.Methods {
			out[name] = m
		}
		for name, s := range v.Statics {
			out[name] = s
		}
		for name, cv := range v.Vars {
			out[name] = cv
		}
	case *object.Module:
		for name, val := range v.Names {
			out[name] = val
		}
	case *object.Instance:
		for name, s := range v.Class.Statics {
			out[name] = s
		}
		for name, m := range v.Class.Methods {
			out[name] = &object.BoundMethod{Receiver: v, Method: m}
		}
		for name, cv := range v.Class.Vars {
			out[name] = cv
		}
		for name, f := range v.Fields {
			out[name] = f
		}
	}
	return out
}

func describeTarget(o object.Object) string {
	switch v := o.(type) {
	case *object.Class:
		return fmt.Sprintf("class %q", v.Name)
	case *object.Module:
		return fmt.Sprintf("module %q", v.Path)
	default:
		return fmt.Sprintf("'%s' object", strings.ToLower(string(o.Type())))
	}
}
