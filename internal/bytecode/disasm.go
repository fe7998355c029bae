package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode
func Disassemble(chunk *Chunk) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s (format %d) ==\n", chunk.Name, chunk.Format))

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset)
	}

	// Nested function prototypes follow their owner.
	for _, c := range chunk.Constants {
		if fn, ok := c.(*Function); ok {
			sb.WriteString("\n")
			sb.WriteString(Disassemble(fn.Chunk))
		}
	}

	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	// Print line number
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", chunk.Lines[offset]))
	}

	op := Opcode(chunk.Code[offset])
	name, known := OpcodeNames[op]
	if !known {
		sb.WriteString(fmt.Sprintf("UNKNOWN 0x%02x\n", byte(op)))
		return offset + 1
	}

	switch op {
	case OP_CONST, OP_LOAD_NAME, OP_STORE_NAME, OP_GET_ATTR, OP_SET_ATTR,
		OP_IMPORT_NAME, OP_IMPORT_FROM, OP_CLASS, OP_METHOD, OP_STATIC_METHOD, OP_CLASS_VAR:
		return constantInstruction(sb, name, chunk, offset)
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_POP_JUMP_IF_TRUE, OP_SETUP_WITH, OP_BEFORE_WITH:
		return jumpInstruction(sb, name, 1, chunk, offset)
	case OP_LOOP:
		return jumpInstruction(sb, name, -1, chunk, offset)
	case OP_MAKE_LIST:
		return operandInstruction(sb, name, chunk, offset)
	case OP_CALL_FUNCTION, OP_PRECALL, OP_CALL:
		return byteInstruction(sb, name, chunk, offset)
	default:
		return simpleInstruction(sb, name, offset)
	}
}

func simpleInstruction(sb *strings.Builder, name string, offset int) int {
	sb.WriteString(fmt.Sprintf("%s\n", name))
	return offset + 1
}

func constantInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	idx := int(chunk.ReadU16(offset + 1))

	if idx < len(chunk.Constants) {
		sb.WriteString(fmt.Sprintf("%-17s %4d '%s'\n", name, idx, chunk.Constants[idx].Inspect()))
	} else {
		sb.WriteString(fmt.Sprintf("%-17s %4d (invalid)\n", name, idx))
	}

	return offset + 3
}

func operandInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	v := int(chunk.ReadU16(offset + 1))
	sb.WriteString(fmt.Sprintf("%-17s %4d\n", name, v))
	return offset + 3
}

func byteInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	arg := chunk.Code[offset+1]
	sb.WriteString(fmt.Sprintf("%-17s %4d\n", name, arg))
	return offset + 2
}

func jumpInstruction(sb *strings.Builder, name string, sign int, chunk *Chunk, offset int) int {
	jump := int(chunk.ReadU16(offset + 1))
	target := offset + 3 + sign*jump
	sb.WriteString(fmt.Sprintf("%-17s %4d -> %d\n", name, jump, target))
	return offset + 3
}
