// Package token defines the lexical tokens of Skink source code.
package token

import "sort"

type TokenType string

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"
	NEWLINE TokenType = "NEWLINE"

	// Identifiers and literals
	IDENT  TokenType = "IDENT"
	INT    TokenType = "INT"
	FLOAT  TokenType = "FLOAT"
	STRING TokenType = "STRING"

	// Operators
	ASSIGN   TokenType = "="
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	STAR     TokenType = "*"
	SLASH    TokenType = "/"
	PERCENT  TokenType = "%"
	BANG     TokenType = "!"
	EQ       TokenType = "=="
	NOT_EQ   TokenType = "!="
	LT       TokenType = "<"
	LE       TokenType = "<="
	GT       TokenType = ">"
	GE       TokenType = ">="
	AND      TokenType = "&&"
	OR       TokenType = "||"
	DOT      TokenType = "."
	COMMA    TokenType = ","
	LPAREN   TokenType = "("
	RPAREN   TokenType = ")"
	LBRACE   TokenType = "{"
	RBRACE   TokenType = "}"
	LBRACKET TokenType = "["
	RBRACKET TokenType = "]"

	// Keywords
	FN     TokenType = "FN"
	CLASS  TokenType = "CLASS"
	STATIC TokenType = "STATIC"
	RETURN TokenType = "RETURN"
	IF     TokenType = "IF"
	ELSE   TokenType = "ELSE"
	WHILE  TokenType = "WHILE"
	WITH   TokenType = "WITH"
	IMPORT TokenType = "IMPORT"
	TRUE   TokenType = "TRUE"
	FALSE  TokenType = "FALSE"
	NIL    TokenType = "NIL"
)

// Token is a single lexical token with its source position.
type Token struct {
	Type    TokenType
	Lexeme  string // raw text as it appears in the source
	Literal string // decoded value (strings with escapes resolved)
	Line    int
	Column  int
}

var keywords = map[string]TokenType{
	"fn":     FN,
	"class":  CLASS,
	"static": STATIC,
	"return": RETURN,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"with":   WITH,
	"import": IMPORT,
	"true":   TRUE,
	"false":  FALSE,
	"nil":    NIL,
}

// LookupIdent returns the keyword type for an identifier, or IDENT.
func LookupIdent(ident string) TokenType {
	if tt, ok := keywords[ident]; ok {
		return tt
	}
	return IDENT
}

// Keywords returns every reserved word, sorted.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for kw := range keywords {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
