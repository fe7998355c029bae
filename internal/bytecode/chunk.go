package bytecode

import (
	"github.com/skinklang/skink/internal/object"
)

// Format identifies the bytecode format a chunk was compiled for. Tools that
// inspect compiled code dispatch on it, so a chunk always records the format
// it was emitted in.
type Format uint16

const (
	// FormatLegacy is the original call convention: a plain CALL_FUNCTION
	// and SETUP_WITH for context-managed blocks.
	FormatLegacy Format = 1
	// FormatCurrent is the null-marker call convention: PUSH_NULL, PRECALL
	// and CALL, with BEFORE_WITH for context-managed blocks.
	FormatCurrent Format = 2
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// Known reports whether f is a format this build understands.
func (f Format) Known() bool {
	return f == FormatLegacy || f == FormatCurrent
}

// Chunk is a compiled unit of Skink code.
type Chunk struct {
	// Name identifies the chunk in tracebacks and disassembly, the module
	// path for top-level code or the function name otherwise.
	Name string

	// Format is the bytecode format the chunk was emitted in.
	Format Format

	// Code is the bytecode instructions
	Code []byte

	// Constants pool - literals, name strings, function prototypes
	Constants []object.Object

	// Lines maps bytecode offset to source line number (for errors)
	Lines []int
}

func NewChunk(name string, format Format) *Chunk {
	return &Chunk{Name: name, Format: format}
}

// Write appends a raw byte with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode with its source line.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// WriteU16 appends a 16-bit big-endian operand.
func (c *Chunk) WriteU16(v uint16, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v&0xff), line)
}

// ReadU16 decodes the 16-bit big-endian operand at offset.
func (c *Chunk) ReadU16(offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

// AddConstant appends a constant and returns its pool index. Simple values
// that are already in the pool are reused.
func (c *Chunk) AddConstant(obj object.Object) int {
	for i, existing := range c.Constants {
		if constantsEqual(existing, obj) {
			return i
		}
	}
	c.Constants = append(c.Constants, obj)
	return len(c.Constants) - 1
}

func constantsEqual(a, b object.Object) bool {
	switch a := a.(type) {
	case *object.Nil:
		_, ok := b.(*object.Nil)
		return ok
	case *object.Integer:
		if b, ok := b.(*object.Integer); ok {
			return a.Value == b.Value
		}
	case *object.Float:
		if b, ok := b.(*object.Float); ok {
			return a.Value == b.Value
		}
	case *object.String:
		if b, ok := b.(*object.String); ok {
			return a.Value == b.Value
		}
	}
	return false
}

// Line reports the source line for the instruction at offset, or 0 when the
// offset is out of range.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}
