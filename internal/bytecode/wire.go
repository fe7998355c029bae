package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/skinklang/skink/internal/object"
)

// cborEncMode carries CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Wire representation of a chunk. Constant pools hold interface values, so
// they travel as a tagged union.
type wireChunk struct {
	Name      string
	Format    uint16
	Code      []byte
	Lines     []int
	Constants []wireConst
}

type wireConst struct {
	Kind  string
	Int   int64       `cbor:",omitempty"`
	Float float64     `cbor:",omitempty"`
	Str   string      `cbor:",omitempty"`
	List  []wireConst `cbor:",omitempty"`
	Fn    *wireFunc   `cbor:",omitempty"`
}

type wireFunc struct {
	Name   string
	Params []string `cbor:",omitempty"`
	Chunk  *wireChunk
}

const (
	kindNil    = "nil"
	kindTrue   = "true"
	kindFalse  = "false"
	kindInt    = "int"
	kindFloat  = "float"
	kindString = "string"
	kindList   = "list"
	kindFunc   = "fn"
)

// MarshalChunk serializes a Chunk to CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	wc, err := toWire(c)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(wc)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var wc wireChunk
	if err := cbor.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	c, err := fromWire(&wc)
	if err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	return c, nil
}

func toWire(c *Chunk) (*wireChunk, error) {
	wc := &wireChunk{
		Name:   c.Name,
		Format: uint16(c.Format),
		Code:   c.Code,
		Lines:  c.Lines,
	}
	for _, constant := range c.Constants {
		w, err := constToWire(constant)
		if err != nil {
			return nil, err
		}
		wc.Constants = append(wc.Constants, w)
	}
	return wc, nil
}

func constToWire(o object.Object) (wireConst, error) {
	switch o := o.(type) {
	case *object.Nil:
		return wireConst{Kind: kindNil}, nil
	case *object.Boolean:
		if o.Value {
			return wireConst{Kind: kindTrue}, nil
		}
		return wireConst{Kind: kindFalse}, nil
	case *object.Integer:
		return wireConst{Kind: kindInt, Int: o.Value}, nil
	case *object.Float:
		return wireConst{Kind: kindFloat, Float: o.Value}, nil
	case *object.String:
		return wireConst{Kind: kindString, Str: o.Value}, nil
	case *object.List:
		w := wireConst{Kind: kindList}
		for _, el := range o.Elements {
			we, err := constToWire(el)
			if err != nil {
				return wireConst{}, err
			}
			w.List = append(w.List, we)
		}
		return w, nil
	case *Function:
		wc, err := toWire(o.Chunk)
		if err != nil {
			return wireConst{}, err
		}
		return wireConst{Kind: kindFunc, Fn: &wireFunc{Name: o.Name, Params: o.Params, Chunk: wc}}, nil
	default:
		return wireConst{}, fmt.Errorf("bytecode: constant %s cannot be serialized", o.Type())
	}
}

func fromWire(wc *wireChunk) (*Chunk, error) {
	format := Format(wc.Format)
	if !format.Known() {
		return nil, fmt.Errorf("unknown bytecode format %d", wc.Format)
	}
	if len(wc.Lines) != len(wc.Code) {
		return nil, fmt.Errorf("line table length %d does not match code length %d", len(wc.Lines), len(wc.Code))
	}

	c := &Chunk{
		Name:   wc.Name,
		Format: format,
		Code:   wc.Code,
		Lines:  wc.Lines,
	}
	for _, w := range wc.Constants {
		constant, err := constFromWire(w)
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, constant)
	}
	return c, nil
}

func constFromWire(w wireConst) (object.Object, error) {
	switch w.Kind {
	case kindNil:
		return object.NilValue, nil
	case kindTrue:
		return object.TrueValue, nil
	case kindFalse:
		return object.FalseValue, nil
	case kindInt:
		return &object.Integer{Value: w.Int}, nil
	case kindFloat:
		return &object.Float{Value: w.Float}, nil
	case kindString:
		return &object.String{Value: w.Str}, nil
	case kindList:
		list := &object.List{}
		for _, el := range w.List {
			v, err := constFromWire(el)
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, v)
		}
		return list, nil
	case kindFunc:
		if w.Fn == nil || w.Fn.Chunk == nil {
			return nil, fmt.Errorf("function constant missing body")
		}
		chunk, err := fromWire(w.Fn.Chunk)
		if err != nil {
			return nil, err
		}
		return NewFunction(w.Fn.Name, w.Fn.Params, chunk), nil
	default:
		return nil, fmt.Errorf("unknown constant kind %q", w.Kind)
	}
}
