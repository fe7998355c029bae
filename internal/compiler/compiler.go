// Package compiler lowers Skink ASTs to bytecode chunks.
package compiler

import (
	"fmt"

	"github.com/skinklang/skink/internal/ast"
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

// Compiler emits one chunk. Nested functions get their own Compiler over a
// fresh chunk, sharing the target format.
type Compiler struct {
	chunk      *bytecode.Chunk
	format     bytecode.Format
	inFunction bool
	withDepth  int
}

// New returns a compiler targeting the given bytecode format.
func New(format bytecode.Format) *Compiler {
	return &Compiler{format: format}
}

// Compile lowers a module AST into a chunk named after the module path.
func (c *Compiler) Compile(program *ast.Program, name string) (*bytecode.Chunk, error) {
	c.chunk = bytecode.NewChunk(name, c.format)

	lastLine := 0
	for _, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
		if line := stmt.GetToken().Line; line > lastLine {
			lastLine = line
		}
	}

	// The halt carries a line of its own so it never merges into the last
	// statement's instruction run.
	c.emit(bytecode.OP_HALT, lastLine+1)
	return c.chunk, nil
}

func (c *Compiler) currentChunk() *bytecode.Chunk {
	return c.chunk
}

func (c *Compiler) emit(op bytecode.Opcode, line int) {
	c.currentChunk().WriteOp(op, line)
}

func (c *Compiler) emitU16(op bytecode.Opcode, operand int, line int) {
	c.emit(op, line)
	c.currentChunk().WriteU16(uint16(operand), line)
}

func (c *Compiler) emitByte(op bytecode.Opcode, operand int, line int) {
	c.emit(op, line)
	c.currentChunk().Write(byte(operand), line)
}

func (c *Compiler) emitConstant(value object.Object, line int) {
	c.emitU16(bytecode.OP_CONST, c.makeConstant(value), line)
}

func (c *Compiler) makeConstant(value object.Object) int {
	return c.currentChunk().AddConstant(value)
}

func (c *Compiler) nameConstant(name string) int {
	return c.makeConstant(&object.String{Value: name})
}

func (c *Compiler) emitJump(op bytecode.Opcode, line int) int {
	c.emit(op, line)
	c.currentChunk().Write(0xff, line)
	c.currentChunk().Write(0xff, line)
	return len(c.currentChunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) error {
	jump := len(c.currentChunk().Code) - offset - 2

	if jump > 0xffff {
		return fmt.Errorf("compiler: jump distance %d too far", jump)
	}

	c.currentChunk().Code[offset] = byte(jump >> 8)
	c.currentChunk().Code[offset+1] = byte(jump)
	return nil
}

func (c *Compiler) emitLoop(loopStart int, line int) error {
	c.emit(bytecode.OP_LOOP, line)

	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		return fmt.Errorf("compiler: loop body too large")
	}

	c.currentChunk().Write(byte(offset>>8), line)
	c.currentChunk().Write(byte(offset), line)
	return nil
}
