package bytecode

import (
	"fmt"

	"github.com/skinklang/skink/internal/object"
)

// Instr is one decoded instruction. Decoding a chunk yields these in code
// order, carrying enough position information to group them by source line.
type Instr struct {
	Offset     int
	Op         Opcode
	Operand    int // -1 when the opcode takes no operand
	Size       int // total encoded size in bytes, opcode included
	Line       int
	StartsLine bool // first instruction emitted for its source line
}

// OperandWidth returns how many operand bytes the opcode carries.
func OperandWidth(op Opcode) int {
	switch op {
	case OP_CONST, OP_LOAD_NAME, OP_STORE_NAME,
		OP_GET_ATTR, OP_SET_ATTR, OP_MAKE_LIST,
		OP_JUMP, OP_JUMP_IF_FALSE, OP_LOOP, OP_POP_JUMP_IF_TRUE,
		OP_SETUP_WITH, OP_BEFORE_WITH,
		OP_IMPORT_NAME, OP_IMPORT_FROM,
		OP_CLASS, OP_METHOD, OP_STATIC_METHOD, OP_CLASS_VAR:
		return 2
	case OP_CALL_FUNCTION, OP_PRECALL, OP_CALL:
		return 1
	default:
		return 0
	}
}

// Decode walks a chunk's code and returns its instructions in order. It
// fails on opcodes this build does not know and on operands truncated by a
// malformed chunk.
func Decode(c *Chunk) ([]Instr, error) {
	var instrs []Instr

	offset := 0
	prevLine := -1
	for offset < len(c.Code) {
		op := Opcode(c.Code[offset])
		if _, ok := OpcodeNames[op]; !ok {
			return nil, fmt.Errorf("bytecode: unknown opcode 0x%02x at offset %d in %s", byte(op), offset, c.Name)
		}

		width := OperandWidth(op)
		if width > 0 && offset+width >= len(c.Code) {
			return nil, fmt.Errorf("bytecode: truncated operand for %s at offset %d in %s", op, offset, c.Name)
		}

		operand := -1
		switch width {
		case 1:
			operand = int(c.Code[offset+1])
		case 2:
			operand = int(c.ReadU16(offset + 1))
		}

		line := c.Line(offset)
		instrs = append(instrs, Instr{
			Offset:     offset,
			Op:         op,
			Operand:    operand,
			Size:       1 + width,
			Line:       line,
			StartsLine: line != prevLine,
		})
		prevLine = line
		offset += 1 + width
	}

	return instrs, nil
}

// Constant returns the pool value an instruction's operand refers to, or nil
// when the instruction has no constant operand or the index is out of range.
func (c *Chunk) Constant(ins Instr) object.Object {
	if ins.Operand < 0 || ins.Operand >= len(c.Constants) {
		return nil
	}
	return c.Constants[ins.Operand]
}
