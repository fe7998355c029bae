package object

import "fmt"

// Class is a runtime class. Methods hold compiled functions, Statics hold
// functions callable without a receiver, Vars hold class variables shared by
// all instances.
type Class struct {
	Name    string
	Methods map[string]Object
	Statics map[string]Object
	Vars    map[string]Object
	ID      int64
}

func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		Methods: make(map[string]Object),
		Statics: make(map[string]Object),
		Vars:    make(map[string]Object),
		ID:      NextID(),
	}
}

func (c *Class) Type() ObjectType { return CLASS_OBJ }
func (c *Class) Inspect() string  { return fmt.Sprintf("<class %s>", c.Name) }

// Instance is an object built by calling a class.
type Instance struct {
	Class  *Class
	Fields map[string]Object
	ID     int64
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: make(map[string]Object), ID: NextID()}
}

func (i *Instance) Type() ObjectType { return INSTANCE_OBJ }
func (i *Instance) Inspect() string  { return fmt.Sprintf("<%s instance>", i.Class.Name) }

// GetAttr resolves instance fields first, then class variables, then methods
// (bound to the instance). The second return reports whether the name exists.
func (i *Instance) GetAttr(name string) (Object, bool) {
	if v, ok := i.Fields[name]; ok {
		return v, true
	}
	if v, ok := i.Class.Vars[name]; ok {
		return v, true
	}
	if m, ok := i.Class.Methods[name]; ok {
		return &BoundMethod{Receiver: i, Method: m}, true
	}
	if s, ok := i.Class.Statics[name]; ok {
		return s, true
	}
	return nil, false
}

// BoundMethod pairs a method with its receiver.
type BoundMethod struct {
	Receiver Object
	Method   Object
}

func (bm *BoundMethod) Type() ObjectType { return BOUND_METHOD_OBJ }
func (bm *BoundMethod) Inspect() string  { return fmt.Sprintf("<bound method of %s>", bm.Receiver.Inspect()) }
