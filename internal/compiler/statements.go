package compiler

import (
	"fmt"
	"strings"

	"github.com/skinklang/skink/internal/ast"
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
)

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if err := c.compileExpression(s.Expression); err != nil {
			return err
		}
		c.emit(bytecode.OP_POP, s.Token.Line)
		return nil
	case *ast.AssignStatement:
		return c.compileAssignStatement(s)
	case *ast.ReturnStatement:
		return c.compileReturnStatement(s)
	case *ast.IfStatement:
		return c.compileIfStatement(s)
	case *ast.WhileStatement:
		return c.compileWhileStatement(s)
	case *ast.BlockStatement:
		return c.compileBlock(s)
	case *ast.FunctionStatement:
		return c.compileFunctionStatement(s)
	case *ast.ClassStatement:
		return c.compileClassStatement(s)
	case *ast.ImportStatement:
		return c.compileImportStatement(s)
	case *ast.WithStatement:
		return c.compileWithStatement(s)
	default:
		return fmt.Errorf("compiler: cannot compile %T", stmt)
	}
}

func (c *Compiler) compileBlock(block *ast.BlockStatement) error {
	for _, stmt := range block.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileAssignStatement(s *ast.AssignStatement) error {
	line := s.Token.Line

	switch target := s.Target.(type) {
	case *ast.Identifier:
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emitU16(bytecode.OP_STORE_NAME, c.nameConstant(target.Value), line)
		return nil
	case *ast.AttributeExpression:
		if err := c.compileExpression(target.Object); err != nil {
			return err
		}
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emitU16(bytecode.OP_SET_ATTR, c.nameConstant(target.Name.Value), line)
		return nil
	case *ast.IndexExpression:
		if err := c.compileExpression(target.Object); err != nil {
			return err
		}
		if err := c.compileExpression(target.Index); err != nil {
			return err
		}
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emit(bytecode.OP_SET_INDEX, line)
		return nil
	default:
		return fmt.Errorf("compiler: invalid assignment target %T", s.Target)
	}
}

func (c *Compiler) compileReturnStatement(s *ast.ReturnStatement) error {
	if !c.inFunction {
		return fmt.Errorf("compiler: return outside function at line %d", s.Token.Line)
	}
	if s.Value != nil {
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
	} else {
		c.emit(bytecode.OP_NIL, s.Token.Line)
	}
	// Returning out of with blocks still runs their exit handlers.
	for i := 0; i < c.withDepth; i++ {
		c.emit(bytecode.OP_WITH_EXIT, s.Token.Line)
	}
	c.emit(bytecode.OP_RETURN, s.Token.Line)
	return nil
}

func (c *Compiler) compileIfStatement(s *ast.IfStatement) error {
	line := s.Token.Line

	if err := c.compileExpression(s.Condition); err != nil {
		return err
	}
	elseJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE, line)

	if err := c.compileBlock(s.Consequence); err != nil {
		return err
	}
	endJump := c.emitJump(bytecode.OP_JUMP, line)

	if err := c.patchJump(elseJump); err != nil {
		return err
	}
	if s.Alternative != nil {
		if err := c.compileStatement(s.Alternative); err != nil {
			return err
		}
	}
	return c.patchJump(endJump)
}

func (c *Compiler) compileWhileStatement(s *ast.WhileStatement) error {
	line := s.Token.Line
	loopStart := len(c.currentChunk().Code)

	if err := c.compileExpression(s.Condition); err != nil {
		return err
	}
	exitJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE, line)

	if err := c.compileBlock(s.Body); err != nil {
		return err
	}
	if err := c.emitLoop(loopStart, line); err != nil {
		return err
	}

	return c.patchJump(exitJump)
}

func (c *Compiler) compileFunctionStatement(s *ast.FunctionStatement) error {
	fn, err := c.compileFunctionProto(s)
	if err != nil {
		return err
	}
	line := s.Token.Line
	c.emitConstant(fn, line)
	c.emitU16(bytecode.OP_STORE_NAME, c.nameConstant(s.Name.Value), line)
	return nil
}

func (c *Compiler) compileFunctionProto(s *ast.FunctionStatement) (*bytecode.Function, error) {
	inner := New(c.format)
	inner.chunk = bytecode.NewChunk(s.Name.Value, c.format)
	inner.inFunction = true

	lastLine := s.Token.Line
	for _, stmt := range s.Body.Statements {
		if err := inner.compileStatement(stmt); err != nil {
			return nil, err
		}
		if line := stmt.GetToken().Line; line > lastLine {
			lastLine = line
		}
	}

	// Implicit return nil when control falls off the end.
	inner.emit(bytecode.OP_NIL, lastLine)
	inner.emit(bytecode.OP_RETURN, lastLine)

	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.Value
	}
	return bytecode.NewFunction(s.Name.Value, params, inner.chunk), nil
}

func (c *Compiler) compileClassStatement(s *ast.ClassStatement) error {
	line := s.Token.Line
	c.emitU16(bytecode.OP_CLASS, c.nameConstant(s.Name.Value), line)

	for _, v := range s.Vars {
		name, ok := v.Target.(*ast.Identifier)
		if !ok {
			return fmt.Errorf("compiler: invalid class variable target %T", v.Target)
		}
		if err := c.compileExpression(v.Value); err != nil {
			return err
		}
		c.emitU16(bytecode.OP_CLASS_VAR, c.nameConstant(name.Value), v.Token.Line)
	}

	for _, m := range s.Methods {
		fn, err := c.compileFunctionProto(m)
		if err != nil {
			return err
		}
		c.emitConstant(fn, m.Token.Line)
		op := bytecode.OP_METHOD
		if m.Static {
			op = bytecode.OP_STATIC_METHOD
		}
		c.emitU16(op, c.nameConstant(m.Name.Value), m.Token.Line)
	}

	c.emitU16(bytecode.OP_STORE_NAME, c.nameConstant(s.Name.Value), line)
	return nil
}

// compileImportStatement lowers imports to a fixed shape: the name list (or
// nil for a bare import) goes into the constant pool and onto the stack
// immediately before IMPORT_NAME, so compiled code always carries what a
// deferred binding would need to know.
func (c *Compiler) compileImportStatement(s *ast.ImportStatement) error {
	line := s.Token.Line

	if len(s.Symbols) > 0 {
		names := &object.List{}
		for _, sym := range s.Symbols {
			names.Elements = append(names.Elements, &object.String{Value: sym.Value})
		}
		c.emitU16(bytecode.OP_CONST, c.makeConstant(names), line)
		c.emitU16(bytecode.OP_IMPORT_NAME, c.nameConstant(s.Path.Value), line)
		for _, sym := range s.Symbols {
			c.emitU16(bytecode.OP_IMPORT_FROM, c.nameConstant(sym.Value), line)
			c.emitU16(bytecode.OP_STORE_NAME, c.nameConstant(sym.Value), line)
		}
		c.emit(bytecode.OP_POP, line)
		return nil
	}

	c.emitU16(bytecode.OP_CONST, c.makeConstant(object.NilValue), line)
	c.emitU16(bytecode.OP_IMPORT_NAME, c.nameConstant(s.Path.Value), line)
	c.emitU16(bytecode.OP_STORE_NAME, c.nameConstant(lastSegment(s.Path.Value)), line)
	return nil
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// compileWithStatement lowers a context-managed block. The prologue and the
// epilogue are both attributed to the with line, and their shape is fixed
// per format:
//
//	legacy:   LOAD_NAME, CALL_FUNCTION, SETUP_WITH, POP
//	current:  PUSH_NULL, LOAD_NAME, PRECALL, CALL, BEFORE_WITH, POP
//
// followed by the body, then WITH_EXIT, JUMP end, WITH_EXCEPT_START,
// POP_JUMP_IF_TRUE end, RERAISE.
func (c *Compiler) compileWithStatement(s *ast.WithStatement) error {
	line := s.Token.Line

	if err := c.compileExpression(s.Manager); err != nil {
		return err
	}

	setupOp := bytecode.OP_BEFORE_WITH
	if c.format == bytecode.FormatLegacy {
		setupOp = bytecode.OP_SETUP_WITH
	}
	handlerJump := c.emitJump(setupOp, line)
	c.emit(bytecode.OP_POP, line)

	c.withDepth++
	if err := c.compileBlock(s.Body); err != nil {
		c.withDepth--
		return err
	}
	c.withDepth--

	c.emit(bytecode.OP_WITH_EXIT, line)
	endJump := c.emitJump(bytecode.OP_JUMP, line)

	if err := c.patchJump(handlerJump); err != nil {
		return err
	}
	c.emit(bytecode.OP_WITH_EXCEPT_START, line)
	suppressJump := c.emitJump(bytecode.OP_POP_JUMP_IF_TRUE, line)
	c.emit(bytecode.OP_RERAISE, line)

	if err := c.patchJump(endJump); err != nil {
		return err
	}
	return c.patchJump(suppressJump)
}
