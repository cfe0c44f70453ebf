// Package lexer turns RSL source text into a token stream.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/podhmo/rsl/token"
)

// Error is a lexical error. Lexing stops at the first one.
type Error struct {
	Pos     token.Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: lex error: %s", e.Pos, e.Message)
}

// Lexer holds the scanning state for a single source file.
type Lexer struct {
	file *token.File
	src  []byte

	offset int // offset of the current character
	ch     rune
	rdOff  int // offset after the current character
}

// Tokenize scans src completely. file must have been added to a FileSet
// with a size of len(src); line information is recorded on it as a side
// effect. The returned slice always ends with an EOF token.
func Tokenize(file *token.File, src []byte) ([]token.Token, error) {
	l := New(file, src)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

// New creates a lexer over src.
func New(file *token.File, src []byte) *Lexer {
	l := &Lexer{file: file, src: src}
	l.next()
	return l
}

const eof = -1

func (l *Lexer) next() {
	if l.rdOff >= len(l.src) {
		if l.ch == '\n' {
			l.file.AddLine(len(l.src))
		}
		l.offset = len(l.src)
		l.ch = eof
		return
	}
	if l.ch == '\n' {
		l.file.AddLine(l.rdOff)
	}
	l.offset = l.rdOff
	r, w := rune(l.src[l.rdOff]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(l.src[l.rdOff:])
	}
	l.rdOff += w
	l.ch = r
}

func (l *Lexer) peek() byte {
	if l.rdOff < len(l.src) {
		return l.src[l.rdOff]
	}
	return 0
}

func (l *Lexer) errorf(offset int, format string, args ...any) error {
	return &Error{
		Pos:     l.file.Position(l.file.Pos(offset)),
		Message: fmt.Sprintf(format, args...),
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.next()
		case l.ch == '#':
			for l.ch != '\n' && l.ch != eof {
				l.next()
			}
		default:
			return
		}
	}
}

// Next returns the next token.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespaceAndComments()

	offset := l.offset
	pos := l.file.Pos(offset)
	ch := l.ch

	switch {
	case ch == eof:
		return token.Token{Kind: token.EOF, Pos: pos}, nil
	case isLetter(ch):
		lit := l.scanIdentifier()
		return token.Token{Kind: token.Lookup(lit), Literal: lit, Pos: pos}, nil
	case isDigit(ch):
		return token.Token{Kind: token.NUMBER, Literal: l.scanNumber(), Pos: pos}, nil
	case ch == '"':
		lit, err := l.scanString()
		if err != nil {
			return token.Token{}, err
		}
		return token.Token{Kind: token.STRING, Literal: lit, Pos: pos}, nil
	}

	l.next()
	var kind token.Kind
	switch ch {
	case '+':
		kind = token.PLUS
	case '-':
		kind = token.MINUS
	case '*':
		kind = token.ASTERISK
	case '/':
		kind = token.SLASH
	case '%':
		kind = token.PERCENT
	case ',':
		kind = token.COMMA
	case ':':
		kind = token.COLON
	case '.':
		kind = token.DOT
	case ';':
		kind = token.SEMICOLON
	case '(':
		kind = token.LPAREN
	case ')':
		kind = token.RPAREN
	case '[':
		kind = token.LBRACKET
	case ']':
		kind = token.RBRACKET
	case '{':
		kind = token.LBRACE
	case '}':
		kind = token.RBRACE
	case '=':
		kind = l.switch2(token.ASSIGN, token.EQ)
	case '!':
		kind = l.switch2(token.BANG, token.NOT_EQ)
	case '<':
		kind = l.switch2(token.LT, token.LE)
	case '>':
		kind = l.switch2(token.GT, token.GE)
	default:
		return token.Token{}, l.errorf(offset, "unexpected character %q", ch)
	}
	return token.Token{Kind: kind, Pos: pos}, nil
}

// switch2 returns alt when the current character is '=' (consuming it).
func (l *Lexer) switch2(plain, alt token.Kind) token.Kind {
	if l.ch == '=' {
		l.next()
		return alt
	}
	return plain
}

func (l *Lexer) scanIdentifier() string {
	offset := l.offset
	for isLetter(l.ch) || isDigit(l.ch) {
		l.next()
	}
	return string(l.src[offset:l.offset])
}

func (l *Lexer) scanNumber() string {
	offset := l.offset
	for isDigit(l.ch) {
		l.next()
	}
	if l.ch == '.' && isDigit(rune(l.peek())) {
		l.next()
		for isDigit(l.ch) {
			l.next()
		}
	}
	return string(l.src[offset:l.offset])
}

func (l *Lexer) scanString() (string, error) {
	start := l.offset
	l.next() // opening quote

	var b strings.Builder
	for {
		switch l.ch {
		case eof:
			return "", l.errorf(start, "unterminated string literal")
		case '"':
			l.next()
			return b.String(), nil
		case '\\':
			escOff := l.offset
			l.next()
			switch l.ch {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case eof:
				return "", l.errorf(start, "unterminated string literal")
			default:
				return "", l.errorf(escOff, "unknown escape sequence \\%c", l.ch)
			}
			l.next()
		default:
			b.WriteRune(l.ch)
			l.next()
		}
	}
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
