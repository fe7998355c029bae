package compiler

import (
	"strings"
	"testing"

	"github.com/skinklang/skink/internal/ast"
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/lexer"
	"github.com/skinklang/skink/internal/object"
	"github.com/skinklang/skink/internal/parser"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("parser error: %s", p.Errors()[0])
	}
	return program
}

func compile(t *testing.T, input string, format bytecode.Format) *bytecode.Chunk {
	t.Helper()
	program := parse(t, input)
	chunk, err := New(format).Compile(program, "test")
	if err != nil {
		t.Fatalf("compilation error: %s", err)
	}
	return chunk
}

func decode(t *testing.T, chunk *bytecode.Chunk) []bytecode.Instr {
	t.Helper()
	instrs, err := bytecode.Decode(chunk)
	if err != nil {
		t.Fatalf("decode error: %s", err)
	}
	return instrs
}

func opsOnLine(instrs []bytecode.Instr, line int) []bytecode.Opcode {
	var ops []bytecode.Opcode
	for _, ins := range instrs {
		if ins.Line == line {
			ops = append(ops, ins.Op)
		}
	}
	return ops
}

func opsEqual(got, want []bytecode.Opcode) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSimpleAssignment(t *testing.T) {
	chunk := compile(t, "x = 5", bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	want := []bytecode.Opcode{bytecode.OP_CONST, bytecode.OP_STORE_NAME, bytecode.OP_HALT}
	var got []bytecode.Opcode
	for _, ins := range instrs {
		got = append(got, ins.Op)
	}
	if !opsEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
}

func TestCallConventionCurrent(t *testing.T) {
	chunk := compile(t, "f(1, 2)", bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	want := []bytecode.Opcode{
		bytecode.OP_PUSH_NULL, bytecode.OP_LOAD_NAME,
		bytecode.OP_CONST, bytecode.OP_CONST,
		bytecode.OP_PRECALL, bytecode.OP_CALL,
		bytecode.OP_POP, bytecode.OP_HALT,
	}
	var got []bytecode.Opcode
	for _, ins := range instrs {
		got = append(got, ins.Op)
	}
	if !opsEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}

	// Both call halves carry the argument count.
	if instrs[4].Operand != 2 || instrs[5].Operand != 2 {
		t.Errorf("argc operands = %d, %d, want 2, 2", instrs[4].Operand, instrs[5].Operand)
	}
}

func TestCallConventionLegacy(t *testing.T) {
	chunk := compile(t, "f(1, 2)", bytecode.FormatLegacy)
	instrs := decode(t, chunk)

	want := []bytecode.Opcode{
		bytecode.OP_LOAD_NAME,
		bytecode.OP_CONST, bytecode.OP_CONST,
		bytecode.OP_CALL_FUNCTION,
		bytecode.OP_POP, bytecode.OP_HALT,
	}
	var got []bytecode.Opcode
	for _, ins := range instrs {
		got = append(got, ins.Op)
	}
	if !opsEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if instrs[3].Operand != 2 {
		t.Errorf("argc operand = %d, want 2", instrs[3].Operand)
	}
}

func TestWithBlockShapeLegacy(t *testing.T) {
	input := "with lazy_import() {\n\timport \"shop/user\" (User)\n}"
	chunk := compile(t, input, bytecode.FormatLegacy)
	instrs := decode(t, chunk)

	// The opening run on the with line is exactly four instructions.
	var open []bytecode.Opcode
	for _, ins := range instrs {
		if ins.Line != 1 {
			break
		}
		open = append(open, ins.Op)
	}
	wantOpen := []bytecode.Opcode{
		bytecode.OP_LOAD_NAME, bytecode.OP_CALL_FUNCTION,
		bytecode.OP_SETUP_WITH, bytecode.OP_POP,
	}
	if !opsEqual(open, wantOpen) {
		t.Fatalf("opening run = %v, want %v", open, wantOpen)
	}

	wantAll := []bytecode.Opcode{
		bytecode.OP_WITH_EXIT, bytecode.OP_JUMP,
		bytecode.OP_WITH_EXCEPT_START, bytecode.OP_POP_JUMP_IF_TRUE, bytecode.OP_RERAISE,
	}
	tail := opsOnLine(instrs, 1)[4:]
	if !opsEqual(tail, wantAll) {
		t.Fatalf("closing run = %v, want %v", tail, wantAll)
	}
}

func TestWithBlockShapeCurrent(t *testing.T) {
	input := "with lazy_import() {\n\timport \"shop/user\" (User)\n}"
	chunk := compile(t, input, bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	var open []bytecode.Opcode
	for _, ins := range instrs {
		if ins.Line != 1 {
			break
		}
		open = append(open, ins.Op)
	}
	wantOpen := []bytecode.Opcode{
		bytecode.OP_PUSH_NULL, bytecode.OP_LOAD_NAME,
		bytecode.OP_PRECALL, bytecode.OP_CALL,
		bytecode.OP_BEFORE_WITH, bytecode.OP_POP,
	}
	if !opsEqual(open, wantOpen) {
		t.Fatalf("opening run = %v, want %v", open, wantOpen)
	}
}

func TestWithHandlerJumpTargets(t *testing.T) {
	input := "with lazy_import() {\n\timport \"shop/user\" (User)\n}"
	chunk := compile(t, input, bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	var setup, withExit, handler, end bytecode.Instr
	for _, ins := range instrs {
		switch ins.Op {
		case bytecode.OP_BEFORE_WITH:
			setup = ins
		case bytecode.OP_WITH_EXIT:
			withExit = ins
		case bytecode.OP_WITH_EXCEPT_START:
			handler = ins
		case bytecode.OP_RERAISE:
			end = ins
		}
	}

	// BEFORE_WITH jumps to the handler entry.
	if got := setup.Offset + setup.Size + setup.Operand; got != handler.Offset {
		t.Errorf("handler jump lands at %d, want %d", got, handler.Offset)
	}
	// The normal-path JUMP right after WITH_EXIT lands past the handler.
	var jump bytecode.Instr
	for _, ins := range instrs {
		if ins.Op == bytecode.OP_JUMP && ins.Offset > withExit.Offset {
			jump = ins
			break
		}
	}
	if got := jump.Offset + jump.Size + jump.Operand; got != end.Offset+end.Size {
		t.Errorf("normal-path jump lands at %d, want %d", got, end.Offset+end.Size)
	}
}

func TestImportShape(t *testing.T) {
	chunk := compile(t, `import "shop/company" (Company, Registry)`, bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	want := []bytecode.Opcode{
		bytecode.OP_CONST, bytecode.OP_IMPORT_NAME,
		bytecode.OP_IMPORT_FROM, bytecode.OP_STORE_NAME,
		bytecode.OP_IMPORT_FROM, bytecode.OP_STORE_NAME,
		bytecode.OP_POP, bytecode.OP_HALT,
	}
	var got []bytecode.Opcode
	for _, ins := range instrs {
		got = append(got, ins.Op)
	}
	if !opsEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}

	// The constant feeding IMPORT_NAME is the name list.
	names, ok := chunk.Constant(instrs[0]).(*object.List)
	if !ok {
		t.Fatalf("first constant is %T, want *object.List", chunk.Constant(instrs[0]))
	}
	if len(names.Elements) != 2 || names.Elements[0].Inspect() != "Company" {
		t.Errorf("name list = %s", names.Inspect())
	}

	path, ok := chunk.Constant(instrs[1]).(*object.String)
	if !ok || path.Value != "shop/company" {
		t.Errorf("import path constant = %v", chunk.Constant(instrs[1]))
	}
}

func TestBareImportShape(t *testing.T) {
	chunk := compile(t, `import "shop/company"`, bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	want := []bytecode.Opcode{
		bytecode.OP_CONST, bytecode.OP_IMPORT_NAME, bytecode.OP_STORE_NAME, bytecode.OP_HALT,
	}
	var got []bytecode.Opcode
	for _, ins := range instrs {
		got = append(got, ins.Op)
	}
	if !opsEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}

	if _, ok := chunk.Constant(instrs[0]).(*object.Nil); !ok {
		t.Errorf("bare import pushes %T, want *object.Nil", chunk.Constant(instrs[0]))
	}
	// The module binds under its last path segment.
	if name, ok := chunk.Constant(instrs[2]).(*object.String); !ok || name.Value != "company" {
		t.Errorf("store name = %v, want company", chunk.Constant(instrs[2]))
	}
}

func TestFunctionProto(t *testing.T) {
	chunk := compile(t, "fn add(a, b) {\n\treturn a + b\n}", bytecode.FormatCurrent)

	var fn *bytecode.Function
	for _, c := range chunk.Constants {
		if f, ok := c.(*bytecode.Function); ok {
			fn = f
		}
	}
	if fn == nil {
		t.Fatal("no function constant in pool")
	}
	if fn.Name != "add" || fn.Arity() != 2 {
		t.Errorf("proto = %s/%d, want add/2", fn.Name, fn.Arity())
	}
	if fn.Chunk.Format != bytecode.FormatCurrent {
		t.Errorf("inner chunk format = %d, want %d", fn.Chunk.Format, bytecode.FormatCurrent)
	}

	instrs := decode(t, fn.Chunk)
	last := instrs[len(instrs)-1]
	if last.Op != bytecode.OP_RETURN {
		t.Errorf("function chunk ends with %s, want RETURN", last.Op)
	}
}

func TestReturnOutsideFunction(t *testing.T) {
	program := parse(t, "return 1")
	_, err := New(bytecode.FormatCurrent).Compile(program, "test")
	if err == nil || !strings.Contains(err.Error(), "return outside function") {
		t.Fatalf("expected return-outside-function error, got %v", err)
	}
}

func TestClassShape(t *testing.T) {
	input := `class Sensor {
	tag = "OK"
	fn init(self, id) {
		self.id = id
	}
	static fn is_ok() {
		return true
	}
}`
	chunk := compile(t, input, bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	var ops []bytecode.Opcode
	for _, ins := range instrs {
		ops = append(ops, ins.Op)
	}
	want := []bytecode.Opcode{
		bytecode.OP_CLASS,
		bytecode.OP_CONST, bytecode.OP_CLASS_VAR,
		bytecode.OP_CONST, bytecode.OP_METHOD,
		bytecode.OP_CONST, bytecode.OP_STATIC_METHOD,
		bytecode.OP_STORE_NAME,
		bytecode.OP_HALT,
	}
	if !opsEqual(ops, want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
}

func TestWhileLoopTargets(t *testing.T) {
	chunk := compile(t, "i = 0\nwhile i < 3 {\n\ti = i + 1\n}", bytecode.FormatCurrent)
	instrs := decode(t, chunk)

	var loop bytecode.Instr
	var condStart int = -1
	for _, ins := range instrs {
		if ins.Op == bytecode.OP_LOAD_NAME && condStart < 0 && ins.Line == 2 {
			condStart = ins.Offset
		}
		if ins.Op == bytecode.OP_LOOP {
			loop = ins
		}
	}
	if got := loop.Offset + loop.Size - loop.Operand; got != condStart {
		t.Errorf("loop jumps back to %d, want %d", got, condStart)
	}
}
