package compiler

import (
	"fmt"

	"github.com/skinklang/skink/internal/ast"
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

var infixOps = map[string]bytecode.Opcode{
	"+":  bytecode.OP_ADD,
	"-":  bytecode.OP_SUB,
	"*":  bytecode.OP_MUL,
	"/":  bytecode.OP_DIV,
	"%":  bytecode.OP_MOD,
	"==": bytecode.OP_EQ,
	"!=": bytecode.OP_NE,
	"<":  bytecode.OP_LT,
	"<=": bytecode.OP_LE,
	">":  bytecode.OP_GT,
	">=": bytecode.OP_GE,
	"&&": bytecode.OP_AND,
	"||": bytecode.OP_OR,
}

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.Identifier:
		c.emitU16(bytecode.OP_LOAD_NAME, c.nameConstant(e.Value), e.Token.Line)
		return nil
	case *ast.IntegerLiteral:
		c.emitConstant(&object.Integer{Value: e.Value}, e.Token.Line)
		return nil
	case *ast.FloatLiteral:
		c.emitConstant(&object.Float{Value: e.Value}, e.Token.Line)
		return nil
	case *ast.StringLiteral:
		c.emitConstant(&object.String{Value: e.Value}, e.Token.Line)
		return nil
	case *ast.BooleanLiteral:
		if e.Value {
			c.emit(bytecode.OP_TRUE, e.Token.Line)
		} else {
			c.emit(bytecode.OP_FALSE, e.Token.Line)
		}
		return nil
	case *ast.NilLiteral:
		c.emit(bytecode.OP_NIL, e.Token.Line)
		return nil
	case *ast.ListLiteral:
		return c.compileListLiteral(e)
	case *ast.PrefixExpression:
		return c.compilePrefixExpression(e)
	case *ast.InfixExpression:
		return c.compileInfixExpression(e)
	case *ast.CallExpression:
		return c.compileCallExpression(e)
	case *ast.AttributeExpression:
		if err := c.compileExpression(e.Object); err != nil {
			return err
		}
		c.emitU16(bytecode.OP_GET_ATTR, c.nameConstant(e.Name.Value), e.Token.Line)
		return nil
	case *ast.IndexExpression:
		if err := c.compileExpression(e.Object); err != nil {
			return err
		}
		if err := c.compileExpression(e.Index); err != nil {
			return err
		}
		c.emit(bytecode.OP_GET_INDEX, e.Token.Line)
		return nil
	default:
		return fmt.Errorf("compiler: cannot compile %T", expr)
	}
}

func (c *Compiler) compileListLiteral(e *ast.ListLiteral) error {
	for _, el := range e.Elements {
		if err := c.compileExpression(el); err != nil {
			return err
		}
	}
	c.emitU16(bytecode.OP_MAKE_LIST, len(e.Elements), e.Token.Line)
	return nil
}

func (c *Compiler) compilePrefixExpression(e *ast.PrefixExpression) error {
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	switch e.Operator {
	case "-":
		c.emit(bytecode.OP_NEG, e.Token.Line)
	case "!":
		c.emit(bytecode.OP_NOT, e.Token.Line)
	default:
		return fmt.Errorf("compiler: unknown prefix operator %q", e.Operator)
	}
	return nil
}

func (c *Compiler) compileInfixExpression(e *ast.InfixExpression) error {
	op, ok := infixOps[e.Operator]
	if !ok {
		return fmt.Errorf("compiler: unknown operator %q", e.Operator)
	}
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	c.emit(op, e.Token.Line)
	return nil
}

// compileCallExpression emits the call convention of the target format. The
// current format brackets the callee with a null marker and splits the call
// into PRECALL and CALL, the legacy format uses a single CALL_FUNCTION.
func (c *Compiler) compileCallExpression(e *ast.CallExpression) error {
	line := e.Token.Line
	argc := len(e.Arguments)
	if argc > 255 {
		return fmt.Errorf("compiler: call with %d arguments exceeds the limit of 255", argc)
	}

	if c.format == bytecode.FormatCurrent {
		c.emit(bytecode.OP_PUSH_NULL, line)
	}
	if err := c.compileExpression(e.Callee); err != nil {
		return err
	}
	for _, arg := range e.Arguments {
		if err := c.compileExpression(arg); err != nil {
			return err
		}
	}

	if c.format == bytecode.FormatLegacy {
		c.emitByte(bytecode.OP_CALL_FUNCTION, argc, line)
	} else {
		c.emitByte(bytecode.OP_PRECALL, argc, line)
		c.emitByte(bytecode.OP_CALL, argc, line)
	}
	return nil
}
