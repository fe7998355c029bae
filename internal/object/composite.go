package object

import (
	"fmt"
	"sort"
	"strings"
)

// List
type List struct {
	Elements []Object
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string {
	var out strings.Builder
	out.WriteString("[")
	for i, el := range l.Elements {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(el.Inspect())
	}
	out.WriteString("]")
	return out.String()
}

// BuiltinFunction is the Go signature of native functions exposed to Skink.
type BuiltinFunction func(args ...Object) (Object, error)

// Builtin wraps a native function under the name scripts call it by.
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return fmt.Sprintf("<builtin %s>", b.Name) }

// Module is a loaded Skink module. Names is the live name table its
// top-level code executes against, so bindings made after load are visible
// through the module too.
type Module struct {
	Path  string
	Names map[string]Object
	ID    int64
}

func NewModule(path string) *Module {
	return &Module{Path: path, Names: make(map[string]Object), ID: NextID()}
}

func (m *Module) Type() ObjectType { return MODULE_OBJ }
func (m *Module) Inspect() string  { return fmt.Sprintf("<module %s>", m.Path) }

// AttrNames returns the module's bound names in sorted order.
func (m *Module) AttrNames() []string {
	names := make([]string, 0, len(m.Names))
	for name := range m.Names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
