package parser

import (
	"strings"
	"testing"

	"github.com/skinklang/skink/internal/ast"
	"github.com/skinklang/skink/internal/lexer"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		var msgs []string
		for _, err := range p.Errors() {
			msgs = append(msgs, err.Error())
		}
		t.Fatalf("parsing failed with errors:\n%s", strings.Join(msgs, "\n"))
	}
	return program
}

func TestAssignStatements(t *testing.T) {
	program := parse(t, "x = 5\nname = \"user\"\nok = true\n")

	if len(program.Statements) != 3 {
		t.Fatalf("program has %d statements, want 3", len(program.Statements))
	}

	first, ok := program.Statements[0].(*ast.AssignStatement)
	if !ok {
		t.Fatalf("statement is not AssignStatement, got %T", program.Statements[0])
	}
	target, ok := first.Target.(*ast.Identifier)
	if !ok || target.Value != "x" {
		t.Fatalf("assign target wrong, got %v", first.Target)
	}
	value, ok := first.Value.(*ast.IntegerLiteral)
	if !ok || value.Value != 5 {
		t.Fatalf("assign value wrong, got %v", first.Value)
	}
}

func TestAttributeAssignTarget(t *testing.T) {
	program := parse(t, "self.id = 7")

	stmt, ok := program.Statements[0].(*ast.AssignStatement)
	if !ok {
		t.Fatalf("statement is not AssignStatement, got %T", program.Statements[0])
	}
	attr, ok := stmt.Target.(*ast.AttributeExpression)
	if !ok {
		t.Fatalf("target is not AttributeExpression, got %T", stmt.Target)
	}
	if obj, ok := attr.Object.(*ast.Identifier); !ok || obj.Value != "self" {
		t.Errorf("attribute object wrong, got %v", attr.Object)
	}
	if attr.Name.Value != "id" {
		t.Errorf("attribute name wrong, got %q", attr.Name.Value)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input string
		// expected structure described as (op left right) forms
		check func(t *testing.T, e ast.Expression)
	}{
		{
			"1 + 2 * 3",
			func(t *testing.T, e ast.Expression) {
				add := e.(*ast.InfixExpression)
				if add.Operator != "+" {
					t.Fatalf("top operator %q, want +", add.Operator)
				}
				mul := add.Right.(*ast.InfixExpression)
				if mul.Operator != "*" {
					t.Fatalf("right operator %q, want *", mul.Operator)
				}
			},
		},
		{
			"(1 + 2) * 3",
			func(t *testing.T, e ast.Expression) {
				mul := e.(*ast.InfixExpression)
				if mul.Operator != "*" {
					t.Fatalf("top operator %q, want *", mul.Operator)
				}
				add := mul.Left.(*ast.InfixExpression)
				if add.Operator != "+" {
					t.Fatalf("left operator %q, want +", add.Operator)
				}
			},
		},
		{
			"a == b && c != d",
			func(t *testing.T, e ast.Expression) {
				and := e.(*ast.InfixExpression)
				if and.Operator != "&&" {
					t.Fatalf("top operator %q, want &&", and.Operator)
				}
			},
		},
		{
			"-x + y",
			func(t *testing.T, e ast.Expression) {
				add := e.(*ast.InfixExpression)
				if _, ok := add.Left.(*ast.PrefixExpression); !ok {
					t.Fatalf("left is not PrefixExpression, got %T", add.Left)
				}
			},
		},
	}

	for _, tt := range tests {
		program := parse(t, tt.input)
		stmt, ok := program.Statements[0].(*ast.ExpressionStatement)
		if !ok {
			t.Fatalf("%q: statement is not ExpressionStatement, got %T", tt.input, program.Statements[0])
		}
		tt.check(t, stmt.Expression)
	}
}

func TestCallAndAttributeChain(t *testing.T) {
	program := parse(t, "shop.lookup(1, name).id")

	stmt := program.Statements[0].(*ast.ExpressionStatement)
	attr, ok := stmt.Expression.(*ast.AttributeExpression)
	if !ok {
		t.Fatalf("expression is not AttributeExpression, got %T", stmt.Expression)
	}
	if attr.Name.Value != "id" {
		t.Errorf("outer attribute name wrong, got %q", attr.Name.Value)
	}
	call, ok := attr.Object.(*ast.CallExpression)
	if !ok {
		t.Fatalf("attribute object is not CallExpression, got %T", attr.Object)
	}
	if len(call.Arguments) != 2 {
		t.Errorf("call has %d arguments, want 2", len(call.Arguments))
	}
}

func TestFunctionStatement(t *testing.T) {
	program := parse(t, "fn add(a, b) {\n\treturn a + b\n}")

	fn, ok := program.Statements[0].(*ast.FunctionStatement)
	if !ok {
		t.Fatalf("statement is not FunctionStatement, got %T", program.Statements[0])
	}
	if fn.Name.Value != "add" {
		t.Errorf("function name wrong, got %q", fn.Name.Value)
	}
	if len(fn.Params) != 2 || fn.Params[0].Value != "a" || fn.Params[1].Value != "b" {
		t.Errorf("parameters wrong, got %v", fn.Params)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("body has %d statements, want 1", len(fn.Body.Statements))
	}
	if _, ok := fn.Body.Statements[0].(*ast.ReturnStatement); !ok {
		t.Errorf("body statement is not ReturnStatement, got %T", fn.Body.Statements[0])
	}
}

func TestClassStatement(t *testing.T) {
	input := `class Sensor {
	tag = "OK"

	fn init(self, id) {
		self.id = id
	}

	static fn is_ok() {
		return true
	}

	fn read(self) {
		return self.id
	}
}`
	program := parse(t, input)

	cls, ok := program.Statements[0].(*ast.ClassStatement)
	if !ok {
		t.Fatalf("statement is not ClassStatement, got %T", program.Statements[0])
	}
	if cls.Name.Value != "Sensor" {
		t.Errorf("class name wrong, got %q", cls.Name.Value)
	}
	if len(cls.Vars) != 1 {
		t.Fatalf("class has %d vars, want 1", len(cls.Vars))
	}
	if name := cls.Vars[0].Target.(*ast.Identifier).Value; name != "tag" {
		t.Errorf("class var name wrong, got %q", name)
	}
	if len(cls.Methods) != 3 {
		t.Fatalf("class has %d methods, want 3", len(cls.Methods))
	}
	if cls.Methods[0].Name.Value != "init" || cls.Methods[0].Static {
		t.Errorf("first method wrong: %v static=%v", cls.Methods[0].Name.Value, cls.Methods[0].Static)
	}
	if cls.Methods[1].Name.Value != "is_ok" || !cls.Methods[1].Static {
		t.Errorf("second method wrong: %v static=%v", cls.Methods[1].Name.Value, cls.Methods[1].Static)
	}
}

func TestImportStatements(t *testing.T) {
	tests := []struct {
		input       string
		wantPath    string
		wantSymbols []string
	}{
		{`import "shop/company"`, "shop/company", nil},
		{`import "shop/company" (Company)`, "shop/company", []string{"Company"}},
		{`import "catalog/items" (Device, Sensor)`, "catalog/items", []string{"Device", "Sensor"}},
		{"import \"lib/heavy\" (\n\tHeavyLib,\n\tValue\n)", "lib/heavy", []string{"HeavyLib", "Value"}},
	}

	for _, tt := range tests {
		program := parse(t, tt.input)
		if len(program.Statements) != 1 {
			t.Fatalf("%q: program has %d statements, want 1", tt.input, len(program.Statements))
		}
		imp, ok := program.Statements[0].(*ast.ImportStatement)
		if !ok {
			t.Fatalf("%q: statement is not ImportStatement, got %T", tt.input, program.Statements[0])
		}
		if imp.Path.Value != tt.wantPath {
			t.Errorf("%q: path %q, want %q", tt.input, imp.Path.Value, tt.wantPath)
		}
		if len(imp.Symbols) != len(tt.wantSymbols) {
			t.Fatalf("%q: %d symbols, want %d", tt.input, len(imp.Symbols), len(tt.wantSymbols))
		}
		for i, want := range tt.wantSymbols {
			if imp.Symbols[i].Value != want {
				t.Errorf("%q: symbol[%d] = %q, want %q", tt.input, i, imp.Symbols[i].Value, want)
			}
		}
	}
}

func TestWithStatement(t *testing.T) {
	input := `with lazy_import() {
	import "shop/user" (User)
}`
	program := parse(t, input)

	ws, ok := program.Statements[0].(*ast.WithStatement)
	if !ok {
		t.Fatalf("statement is not WithStatement, got %T", program.Statements[0])
	}
	call, ok := ws.Manager.(*ast.CallExpression)
	if !ok {
		t.Fatalf("manager is not CallExpression, got %T", ws.Manager)
	}
	if callee, ok := call.Callee.(*ast.Identifier); !ok || callee.Value != "lazy_import" {
		t.Errorf("manager callee wrong, got %v", call.Callee)
	}
	if len(ws.Body.Statements) != 1 {
		t.Fatalf("with body has %d statements, want 1", len(ws.Body.Statements))
	}
	if _, ok := ws.Body.Statements[0].(*ast.ImportStatement); !ok {
		t.Errorf("with body statement is not ImportStatement, got %T", ws.Body.Statements[0])
	}
}

func TestNestedWithStatements(t *testing.T) {
	input := `with lazy_import() {
	import "a/b" (X)
	with lazy_import() {
		import "c/d" (Y)
	}
}`
	program := parse(t, input)

	outer := program.Statements[0].(*ast.WithStatement)
	if len(outer.Body.Statements) != 2 {
		t.Fatalf("outer with body has %d statements, want 2", len(outer.Body.Statements))
	}
	inner, ok := outer.Body.Statements[1].(*ast.WithStatement)
	if !ok {
		t.Fatalf("second body statement is not WithStatement, got %T", outer.Body.Statements[1])
	}
	if len(inner.Body.Statements) != 1 {
		t.Errorf("inner with body has %d statements, want 1", len(inner.Body.Statements))
	}
}

func TestIfElseChain(t *testing.T) {
	program := parse(t, "if a < 1 {\n\tx = 1\n} else if a < 2 {\n\tx = 2\n} else {\n\tx = 3\n}")

	ifStmt, ok := program.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("statement is not IfStatement, got %T", program.Statements[0])
	}
	elseIf, ok := ifStmt.Alternative.(*ast.IfStatement)
	if !ok {
		t.Fatalf("alternative is not IfStatement, got %T", ifStmt.Alternative)
	}
	if _, ok := elseIf.Alternative.(*ast.BlockStatement); !ok {
		t.Fatalf("final alternative is not BlockStatement, got %T", elseIf.Alternative)
	}
}

func TestWhileStatement(t *testing.T) {
	program := parse(t, "while i < 10 {\n\ti = i + 1\n}")

	ws, ok := program.Statements[0].(*ast.WhileStatement)
	if !ok {
		t.Fatalf("statement is not WhileStatement, got %T", program.Statements[0])
	}
	if len(ws.Body.Statements) != 1 {
		t.Errorf("while body has %d statements, want 1", len(ws.Body.Statements))
	}
}

func TestListLiteralAndIndex(t *testing.T) {
	program := parse(t, "xs = [1, 2, 3]\ny = xs[0]")

	assign := program.Statements[0].(*ast.AssignStatement)
	list, ok := assign.Value.(*ast.ListLiteral)
	if !ok {
		t.Fatalf("value is not ListLiteral, got %T", assign.Value)
	}
	if len(list.Elements) != 3 {
		t.Errorf("list has %d elements, want 3", len(list.Elements))
	}

	second := program.Statements[1].(*ast.AssignStatement)
	if _, ok := second.Value.(*ast.IndexExpression); !ok {
		t.Fatalf("value is not IndexExpression, got %T", second.Value)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input   string
		wantSub string
	}{
		{"fn (a) { }", "expected next token to be IDENT"},
		{"1 + 2 = 3", "invalid assignment target"},
		{"import 5", "expected next token to be STRING"},
		{"static fn f() { }", "static is only allowed inside class bodies"},
	}

	for _, tt := range tests {
		l := lexer.New(tt.input)
		p := New(l)
		p.ParseProgram()
		if len(p.Errors()) == 0 {
			t.Fatalf("%q: expected parse errors, got none", tt.input)
		}
		found := false
		for _, err := range p.Errors() {
			if strings.Contains(err.Error(), tt.wantSub) {
				found = true
			}
		}
		if !found {
			t.Errorf("%q: no error containing %q in %v", tt.input, tt.wantSub, p.Errors())
		}
	}
}
