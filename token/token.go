// Package token defines the lexical tokens of RSL and re-exports the
// position types of go/token, which the lexer, parser and evaluator share.
package token

import (
	gotoken "go/token"
	"strconv"
)

// Position handling is delegated to go/token so that every component can
// resolve a compact Pos through one shared FileSet.
type (
	Pos      = gotoken.Pos
	Position = gotoken.Position
	FileSet  = gotoken.FileSet
	File     = gotoken.File
)

// NoPos is the zero value for Pos.
const NoPos = gotoken.NoPos

// NewFileSet creates a new file set.
func NewFileSet() *FileSet { return gotoken.NewFileSet() }

// Kind is the set of lexical token kinds.
type Kind int

const (
	ILLEGAL Kind = iota
	EOF

	literal_beg
	IDENT  // main
	NUMBER // 12.5
	STRING // "abc"
	literal_end

	operator_beg
	PLUS     // +
	MINUS    // -
	ASTERISK // *
	SLASH    // /
	PERCENT  // %
	ASSIGN   // =
	EQ       // ==
	NOT_EQ   // !=
	LT       // <
	LE       // <=
	GT       // >
	GE       // >=
	BANG     // !

	COMMA     // ,
	COLON     // :
	DOT       // .
	SEMICOLON // ;
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }
	operator_end

	keyword_beg
	FN
	IF
	ELSE
	LOOP
	BREAK
	RETURN
	LOCAL
	EXPORT
	IMPORT
	NULL
	TRUE
	FALSE
	AND
	OR
	keyword_end
)

var kinds = [...]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:     "+",
	MINUS:    "-",
	ASTERISK: "*",
	SLASH:    "/",
	PERCENT:  "%",
	ASSIGN:   "=",
	EQ:       "==",
	NOT_EQ:   "!=",
	LT:       "<",
	LE:       "<=",
	GT:       ">",
	GE:       ">=",
	BANG:     "!",

	COMMA:     ",",
	COLON:     ":",
	DOT:       ".",
	SEMICOLON: ";",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACKET:  "[",
	RBRACKET:  "]",
	LBRACE:    "{",
	RBRACE:    "}",

	FN:     "fn",
	IF:     "if",
	ELSE:   "else",
	LOOP:   "loop",
	BREAK:  "break",
	RETURN: "return",
	LOCAL:  "local",
	EXPORT: "export",
	IMPORT: "import",
	NULL:   "null",
	TRUE:   "true",
	FALSE:  "false",
	AND:    "and",
	OR:     "or",
}

// String returns the source spelling of operators and keywords, and the
// kind name for the remaining kinds.
func (k Kind) String() string {
	if 0 <= k && k < Kind(len(kinds)) && kinds[k] != "" {
		return kinds[k]
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

// IsLiteral reports whether k is an identifier or a basic literal.
func (k Kind) IsLiteral() bool { return literal_beg < k && k < literal_end }

// IsOperator reports whether k is an operator or a delimiter.
func (k Kind) IsOperator() bool { return operator_beg < k && k < operator_end }

// IsKeyword reports whether k is a reserved word.
func (k Kind) IsKeyword() bool { return keyword_beg < k && k < keyword_end }

var keywords map[string]Kind

func init() {
	keywords = make(map[string]Kind, keyword_end-(keyword_beg+1))
	for k := keyword_beg + 1; k < keyword_end; k++ {
		keywords[kinds[k]] = k
	}
}

// Lookup maps an identifier to its keyword kind, or IDENT when ident is not
// reserved. Keywords are never contextual.
func Lookup(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}
	return IDENT
}

// Token is a single lexical token. Literal holds the decoded payload for
// identifiers, numbers and strings (strings are unescaped).
type Token struct {
	Kind    Kind
	Literal string
	Pos     Pos
}

// String returns a short description used in parse errors.
func (t Token) String() string {
	switch t.Kind {
	case IDENT:
		return "identifier " + t.Literal
	case NUMBER:
		return "number " + t.Literal
	case STRING:
		return "string " + strconv.Quote(t.Literal)
	case EOF:
		return "end of input"
	}
	if t.Kind.IsKeyword() {
		return "keyword " + t.Kind.String()
	}
	return strconv.Quote(t.Kind.String())
}
