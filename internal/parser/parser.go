package parser

import (
	"fmt"
	"strconv"

	"github.com/skinklang/skink/internal/ast"
	"github.com/skinklang/skink/internal/lexer"
	"github.com/skinklang/skink/internal/token"
)

const (
	_ int = iota
	LOWEST
	LOGIC_OR    // ||
	LOGIC_AND   // &&
	EQUALS      // == !=
	LESSGREATER // < <= > >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -x !x
	CALL        // f(x) obj.attr list[i]
)

var precedences = map[token.TokenType]int{
	token.OR:       LOGIC_OR,
	token.AND:      LOGIC_AND,
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       LESSGREATER,
	token.LE:       LESSGREATER,
	token.GT:       LESSGREATER,
	token.GE:       LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.STAR:     PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   CALL,
	token.DOT:      CALL,
	token.LBRACKET: CALL,
}

// Error is a parse error with its source position.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	errors []*Error

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(token.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(token.NIL, p.parseNilLiteral)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LBRACKET, p.parseListLiteral)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for _, tt := range []token.TokenType{
		token.OR, token.AND, token.EQ, token.NOT_EQ,
		token.LT, token.LE, token.GT, token.GE,
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
	} {
		p.registerInfix(tt, p.parseInfixExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.DOT, p.parseAttributeExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)

	// Read two tokens so curToken and peekToken are both set.
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) registerPrefix(tt token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tt] = fn
}

func (p *Parser) registerInfix(tt token.TokenType, fn infixParseFn) {
	p.infixParseFns[tt] = fn
}

func (p *Parser) Errors() []*Error {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(tt token.TokenType) bool  { return p.curToken.Type == tt }
func (p *Parser) peekTokenIs(tt token.TokenType) bool { return p.peekToken.Type == tt }

func (p *Parser) expectPeek(tt token.TokenType) bool {
	if p.peekTokenIs(tt) {
		p.nextToken()
		return true
	}
	p.peekError(tt)
	return false
}

func (p *Parser) peekError(tt token.TokenType) {
	p.addError(p.peekToken, fmt.Sprintf("expected next token to be %s, got %s instead", tt, p.peekToken.Type))
}

func (p *Parser) addError(tok token.Token, msg string) {
	p.errors = append(p.errors, &Error{Line: tok.Line, Column: tok.Column, Message: msg})
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	p.addError(tok, fmt.Sprintf("unexpected token %s", tok.Type))
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(token.NEWLINE) {
		p.nextToken()
	}
}

// ParseProgram parses a whole module source.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	program.Statements = []ast.Statement{}

	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.NEWLINE) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.FN:
		return p.parseFunctionStatement(false)
	case token.CLASS:
		return p.parseClassStatement()
	case token.STATIC:
		p.addError(p.curToken, "static is only allowed inside class bodies")
		p.skipToStatementBoundary()
		return nil
	case token.RETURN:
		return p.parseReturnStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.WITH:
		return p.parseWithStatement()
	case token.IMPORT:
		return p.parseImportStatement()
	default:
		return p.parseAssignOrExpressionStatement()
	}
}

// skipToStatementBoundary advances to the next newline or closing brace to
// recover from an error without a cascade of follow-on errors.
func (p *Parser) skipToStatementBoundary() {
	for !p.curTokenIs(token.NEWLINE) && !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		p.nextToken()
	}
}

func (p *Parser) parseAssignOrExpressionStatement() ast.Statement {
	startToken := p.curToken

	expr := p.parseExpression(LOWEST)
	if expr == nil {
		p.skipToStatementBoundary()
		return nil
	}

	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		assignToken := p.curToken

		switch expr.(type) {
		case *ast.Identifier, *ast.AttributeExpression, *ast.IndexExpression:
		default:
			p.addError(assignToken, "invalid assignment target")
			p.skipToStatementBoundary()
			return nil
		}

		p.nextToken()
		stmt := &ast.AssignStatement{Token: assignToken, Target: expr}
		stmt.Value = p.parseExpression(LOWEST)
		return stmt
	}

	return &ast.ExpressionStatement{Token: startToken, Expression: expr}
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	if p.peekTokenIs(token.NEWLINE) || p.peekTokenIs(token.RBRACE) || p.peekTokenIs(token.EOF) {
		return stmt
	}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	return stmt
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Consequence = p.parseBlockStatement()

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if p.peekTokenIs(token.IF) {
			p.nextToken()
			stmt.Alternative = p.parseIfStatement()
		} else {
			if !p.expectPeek(token.LBRACE) {
				return nil
			}
			stmt.Alternative = p.parseBlockStatement()
		}
	}

	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

// parseWithStatement parses a context-managed block.
// with manager() { ... }
func (p *Parser) parseWithStatement() *ast.WithStatement {
	stmt := &ast.WithStatement{Token: p.curToken}

	p.nextToken()
	stmt.Manager = p.parseExpression(LOWEST)
	if stmt.Manager == nil {
		return nil
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseImportStatement() *ast.ImportStatement {
	// import "path/to/module"
	// import "path" (a, b, c)      -- bind only these
	is := &ast.ImportStatement{Token: p.curToken}

	if !p.expectPeek(token.STRING) {
		return nil
	}
	is.Path = &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekTokenIs(token.LPAREN) {
		p.nextToken() // consume '('
		is.Symbols = p.parseIdentifierList()
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
	}

	return is
}

// parseIdentifierList parses a comma-separated list of identifiers.
// Used for import specifications like (a, b, c). Newlines after the opening
// paren and after commas are allowed.
func (p *Parser) parseIdentifierList() []*ast.Identifier {
	identifiers := []*ast.Identifier{}

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
	if p.peekTokenIs(token.RPAREN) {
		return identifiers
	}

	if !p.expectPeek(token.IDENT) {
		return identifiers
	}
	identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken() // consume ','
		for p.peekTokenIs(token.NEWLINE) {
			p.nextToken()
		}
		if !p.expectPeek(token.IDENT) {
			return identifiers
		}
		identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
	}

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}

	return identifiers
}

func (p *Parser) parseFunctionStatement(static bool) *ast.FunctionStatement {
	stmt := &ast.FunctionStatement{Token: p.curToken, Static: static}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	stmt.Params = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	params := []*ast.Identifier{}

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params
	}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	params = append(params, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		params = append(params, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	return params
}

func (p *Parser) parseClassStatement() *ast.ClassStatement {
	stmt := &ast.ClassStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}

	p.nextToken()
	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.NEWLINE) {
			p.nextToken()
			continue
		}

		switch p.curToken.Type {
		case token.FN:
			if m := p.parseFunctionStatement(false); m != nil {
				stmt.Methods = append(stmt.Methods, m)
			}
		case token.STATIC:
			if !p.expectPeek(token.FN) {
				p.skipToStatementBoundary()
				break
			}
			if m := p.parseFunctionStatement(true); m != nil {
				stmt.Methods = append(stmt.Methods, m)
			}
		case token.IDENT:
			name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
			if !p.expectPeek(token.ASSIGN) {
				p.skipToStatementBoundary()
				break
			}
			assignToken := p.curToken
			p.nextToken()
			value := p.parseExpression(LOWEST)
			stmt.Vars = append(stmt.Vars, &ast.AssignStatement{Token: assignToken, Target: name, Value: value})
		default:
			p.addError(p.curToken, fmt.Sprintf("unexpected %s in class body", p.curToken.Type))
			p.skipToStatementBoundary()
		}

		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	block.Statements = []ast.Statement{}

	p.nextToken()

	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.NEWLINE) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(token.NEWLINE) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.addError(p.curToken, fmt.Sprintf("could not parse %q as integer", p.curToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Token: p.curToken}

	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError(p.curToken, fmt.Sprintf("could not parse %q as float", p.curToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNilLiteral() ast.Expression {
	return &ast.NilLiteral{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
	}
	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)
	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Lexeme,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parseListLiteral() ast.Expression {
	list := &ast.ListLiteral{Token: p.curToken}
	list.Elements = p.parseExpressionList(token.RBRACKET)
	return list
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curToken, Callee: callee}
	exp.Arguments = p.parseExpressionList(token.RPAREN)
	return exp
}

// parseExpressionList parses a comma-separated expression list up to the
// closing token. Newlines between elements are allowed.
func (p *Parser) parseExpressionList(end token.TokenType) []ast.Expression {
	list := []ast.Expression{}

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		for p.peekTokenIs(token.NEWLINE) {
			p.nextToken()
		}
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
	if !p.expectPeek(end) {
		return nil
	}

	return list
}

func (p *Parser) parseAttributeExpression(object ast.Expression) ast.Expression {
	exp := &ast.AttributeExpression{Token: p.curToken, Object: object}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	exp.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	return exp
}

func (p *Parser) parseIndexExpression(object ast.Expression) ast.Expression {
	exp := &ast.IndexExpression{Token: p.curToken, Object: object}

	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)

	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return exp
}
