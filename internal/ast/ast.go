package ast

import (
	"github.com/skinklang/skink/internal/token"
)

// TokenProvider is an interface for any AST node that can provide its primary token.
// This is useful for error reporting.
type TokenProvider interface {
	GetToken() token.Token
}

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
	GetToken() token.Token
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// Program is the root node of every AST our parser produces.
type Program struct {
	File       string // Source file path
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

// Identifier represents a name reference.
type Identifier struct {
	Token token.Token // The IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token {
	if i == nil {
		return token.Token{}
	}
	return i.Token
}

// IntegerLiteral represents an integer constant.
type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Lexeme }
func (il *IntegerLiteral) GetToken() token.Token {
	if il == nil {
		return token.Token{}
	}
	return il.Token
}

// FloatLiteral represents a floating point constant.
type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Lexeme }
func (fl *FloatLiteral) GetToken() token.Token {
	if fl == nil {
		return token.Token{}
	}
	return fl.Token
}

// StringLiteral represents a double-quoted string constant.
type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Lexeme }
func (sl *StringLiteral) GetToken() token.Token {
	if sl == nil {
		return token.Token{}
	}
	return sl.Token
}

// BooleanLiteral represents true or false.
type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Lexeme }
func (bl *BooleanLiteral) GetToken() token.Token {
	if bl == nil {
		return token.Token{}
	}
	return bl.Token
}

// NilLiteral represents the nil constant.
type NilLiteral struct {
	Token token.Token
}

func (nl *NilLiteral) expressionNode()      {}
func (nl *NilLiteral) TokenLiteral() string { return nl.Token.Lexeme }
func (nl *NilLiteral) GetToken() token.Token {
	if nl == nil {
		return token.Token{}
	}
	return nl.Token
}

// ListLiteral represents a list constructor.
// [1, 2, 3]
type ListLiteral struct {
	Token    token.Token // The '[' token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()      {}
func (ll *ListLiteral) TokenLiteral() string { return ll.Token.Lexeme }
func (ll *ListLiteral) GetToken() token.Token {
	if ll == nil {
		return token.Token{}
	}
	return ll.Token
}

// PrefixExpression represents a unary operation.
// !ok, -x
type PrefixExpression struct {
	Token    token.Token // The operator token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Lexeme }
func (pe *PrefixExpression) GetToken() token.Token {
	if pe == nil {
		return token.Token{}
	}
	return pe.Token
}

// InfixExpression represents a binary operation.
// a + b, x == y
type InfixExpression struct {
	Token    token.Token // The operator token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token {
	if ie == nil {
		return token.Token{}
	}
	return ie.Token
}

// CallExpression represents a function or method invocation.
// f(a, b), obj.method(x)
type CallExpression struct {
	Token     token.Token // The '(' token
	Callee    Expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token {
	if ce == nil {
		return token.Token{}
	}
	return ce.Token
}

// AttributeExpression represents attribute access.
// obj.name
type AttributeExpression struct {
	Token  token.Token // The '.' token
	Object Expression
	Name   *Identifier
}

func (ae *AttributeExpression) expressionNode()      {}
func (ae *AttributeExpression) TokenLiteral() string { return ae.Token.Lexeme }
func (ae *AttributeExpression) GetToken() token.Token {
	if ae == nil {
		return token.Token{}
	}
	return ae.Token
}

// IndexExpression represents subscript access.
// list[0]
type IndexExpression struct {
	Token  token.Token // The '[' token
	Object Expression
	Index  Expression
}

func (ix *IndexExpression) expressionNode()      {}
func (ix *IndexExpression) TokenLiteral() string { return ix.Token.Lexeme }
func (ix *IndexExpression) GetToken() token.Token {
	if ix == nil {
		return token.Token{}
	}
	return ix.Token
}

// ExpressionStatement wraps an expression used in statement position.
type ExpressionStatement struct {
	Token      token.Token // The first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Lexeme }
func (es *ExpressionStatement) GetToken() token.Token {
	if es == nil {
		return token.Token{}
	}
	return es.Token
}

// AssignStatement represents an assignment.
// x = 1, obj.attr = v, list[i] = v
type AssignStatement struct {
	Token  token.Token // The '=' token
	Target Expression  // Identifier, AttributeExpression or IndexExpression
	Value  Expression
}

func (as *AssignStatement) statementNode()       {}
func (as *AssignStatement) TokenLiteral() string { return as.Token.Lexeme }
func (as *AssignStatement) GetToken() token.Token {
	if as == nil {
		return token.Token{}
	}
	return as.Token
}

// ReturnStatement represents a return from a function.
// return expr
type ReturnStatement struct {
	Token token.Token // The 'return' token
	Value Expression  // Optional, nil means return nil
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Lexeme }
func (rs *ReturnStatement) GetToken() token.Token {
	if rs == nil {
		return token.Token{}
	}
	return rs.Token
}

// BlockStatement is a braced sequence of statements.
type BlockStatement struct {
	Token      token.Token // The '{' token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Lexeme }
func (bs *BlockStatement) GetToken() token.Token {
	if bs == nil {
		return token.Token{}
	}
	return bs.Token
}

// IfStatement represents a conditional.
// if cond { ... } else { ... }
type IfStatement struct {
	Token       token.Token // The 'if' token
	Condition   Expression
	Consequence *BlockStatement
	Alternative Statement // *BlockStatement, *IfStatement or nil
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Lexeme }
func (is *IfStatement) GetToken() token.Token {
	if is == nil {
		return token.Token{}
	}
	return is.Token
}

// WhileStatement represents a loop.
// while cond { ... }
type WhileStatement struct {
	Token     token.Token // The 'while' token
	Condition Expression
	Body      *BlockStatement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Lexeme }
func (ws *WhileStatement) GetToken() token.Token {
	if ws == nil {
		return token.Token{}
	}
	return ws.Token
}

// FunctionStatement represents a named function definition.
// fn add(a, b) { ... }
// Inside a class body, Static marks a static method.
type FunctionStatement struct {
	Token  token.Token // The 'fn' token
	Name   *Identifier
	Params []*Identifier
	Body   *BlockStatement
	Static bool
}

func (fs *FunctionStatement) statementNode()       {}
func (fs *FunctionStatement) TokenLiteral() string { return fs.Token.Lexeme }
func (fs *FunctionStatement) GetToken() token.Token {
	if fs == nil {
		return token.Token{}
	}
	return fs.Token
}

// ClassStatement represents a class definition.
// class Name { vars and methods }
type ClassStatement struct {
	Token   token.Token // The 'class' token
	Name    *Identifier
	Vars    []*AssignStatement   // class variables, evaluated at definition
	Methods []*FunctionStatement // init, methods and static methods
}

func (cs *ClassStatement) statementNode()       {}
func (cs *ClassStatement) TokenLiteral() string { return cs.Token.Lexeme }
func (cs *ClassStatement) GetToken() token.Token {
	if cs == nil {
		return token.Token{}
	}
	return cs.Token
}

// ImportStatement represents an import declaration.
// import "path/to/module" [(a, b, c)]
type ImportStatement struct {
	Token   token.Token // The 'import' token
	Path    *StringLiteral
	Symbols []*Identifier // Specific symbols to import: (a, b, c)
}

func (is *ImportStatement) statementNode()       {}
func (is *ImportStatement) TokenLiteral() string { return is.Token.Lexeme }
func (is *ImportStatement) GetToken() token.Token {
	if is == nil {
		return token.Token{}
	}
	return is.Token
}

// WithStatement represents a context-managed block.
// with manager() { ... }
type WithStatement struct {
	Token   token.Token // The 'with' token
	Manager Expression
	Body    *BlockStatement
}

func (ws *WithStatement) statementNode()       {}
func (ws *WithStatement) TokenLiteral() string { return ws.Token.Lexeme }
func (ws *WithStatement) GetToken() token.Token {
	if ws == nil {
		return token.Token{}
	}
	return ws.Token
}
