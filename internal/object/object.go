// Package object defines the runtime value types of Skink.
package object

import "sync/atomic"

type ObjectType string

const (
	NIL_OBJ          = "NIL"
	BOOLEAN_OBJ      = "BOOLEAN"
	INTEGER_OBJ      = "INTEGER"
	FLOAT_OBJ        = "FLOAT"
	STRING_OBJ       = "STRING"
	LIST_OBJ         = "LIST"
	FUNCTION_OBJ     = "FUNCTION"
	BUILTIN_OBJ      = "BUILTIN"
	CLASS_OBJ        = "CLASS"
	INSTANCE_OBJ     = "INSTANCE"
	BOUND_METHOD_OBJ = "BOUND_METHOD"
	MODULE_OBJ       = "MODULE"
	PLACEHOLDER_OBJ  = "PLACEHOLDER"
)

type Object interface {
	Type() ObjectType
	Inspect() string
}

// Proxy is an object standing in for a value that is produced on first use.
// The VM resolves proxies at use sites: attribute access, calls, operators
// and builtins that need the real value.
type Proxy interface {
	Object
	// ResolveTarget produces the real value, loading whatever is needed.
	// Repeated calls return the same value once resolution succeeds.
	ResolveTarget() (Object, error)
	// ResolveMember reads an attribute through the proxy, resolving the
	// target first if it has not been produced yet.
	ResolveMember(name string) (Object, error)
	// Loaded reports whether the target has been produced already.
	Loaded() bool
	// Describe names the origin of the target without forcing resolution.
	Describe() (module string, name string)
}

var idCounter int64

// NextID hands out process-unique identities for objects that have one.
func NextID() int64 {
	return atomic.AddInt64(&idCounter, 1)
}
