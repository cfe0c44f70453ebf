// Package parser implements a recursive-descent parser for RSL. Parsing
// stops at the first syntax error; there is no error recovery.
package parser

import (
	"fmt"
	"strconv"

	"github.com/podhmo/rsl/ast"
	"github.com/podhmo/rsl/lexer"
	"github.com/podhmo/rsl/token"
)

// Error is a syntax error at the first offending token.
type Error struct {
	Pos      token.Position
	Expected string
	Found    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: parse error: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

// ParseFile tokenizes and parses src, registering it in fset under filename.
// Lex errors are returned as *lexer.Error, syntax errors as *parser.Error.
func ParseFile(fset *token.FileSet, filename string, src []byte) (*ast.Program, error) {
	file := fset.AddFile(filename, -1, len(src))
	toks, err := lexer.Tokenize(file, src)
	if err != nil {
		return nil, err
	}
	prog, err := Parse(fset, toks)
	if err != nil {
		return nil, err
	}
	prog.Filename = filename
	return prog, nil
}

// Parse builds a Program from toks, which must end with an EOF token.
func Parse(fset *token.FileSet, toks []token.Token) (*ast.Program, error) {
	if len(toks) == 0 || toks[len(toks)-1].Kind != token.EOF {
		toks = append(toks, token.Token{Kind: token.EOF})
	}
	p := &Parser{fset: fset, toks: toks}
	return p.parseProgram()
}

// Parser holds the state of a single parse.
type Parser struct {
	fset *token.FileSet
	toks []token.Token
	cur  int

	loopDepth int // number of enclosing loops within the current function
}

func (p *Parser) peek() token.Token { return p.toks[p.cur] }

func (p *Parser) peekN(n int) token.Token {
	if p.cur+n < len(p.toks) {
		return p.toks[p.cur+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() token.Token {
	tok := p.toks[p.cur]
	if tok.Kind != token.EOF {
		p.cur++
	}
	return tok
}

func (p *Parser) accept(kind token.Kind) bool {
	if p.peek().Kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) errorf(tok token.Token, expected string) error {
	return &Error{
		Pos:      p.fset.Position(tok.Pos),
		Expected: expected,
		Found:    tok.String(),
	}
}

func (p *Parser) expect(kind token.Kind) (token.Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorf(tok, strconv.Quote(kind.String()))
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (*ast.Ident, error) {
	tok := p.peek()
	if tok.Kind != token.IDENT {
		return nil, p.errorf(tok, "identifier")
	}
	p.advance()
	return &ast.Ident{NamePos: tok.Pos, Name: tok.Literal}, nil
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.peek().Kind != token.EOF {
		if p.accept(token.SEMICOLON) {
			continue
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	lbrace, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	block := &ast.Block{Lbrace: lbrace.Pos}
	for p.peek().Kind != token.RBRACE {
		if p.peek().Kind == token.EOF {
			return nil, p.errorf(p.peek(), `"}"`)
		}
		if p.accept(token.SEMICOLON) {
			continue
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	p.advance()
	return block, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.FN:
		if p.peekN(1).Kind == token.IDENT {
			p.advance()
			return p.parseFuncDecl(tok.Pos, ast.QualNone, token.NoPos)
		}
	case token.LOCAL, token.EXPORT:
		return p.parseQualified()
	case token.IF:
		return p.parseIf()
	case token.LOOP:
		p.advance()
		p.loopDepth++
		body, err := p.parseBlock()
		p.loopDepth--
		if err != nil {
			return nil, err
		}
		return &ast.LoopStmt{Loop: tok.Pos, Body: body}, nil
	case token.BREAK:
		if p.loopDepth == 0 {
			return nil, &Error{Pos: p.fset.Position(tok.Pos), Expected: "statement", Found: "break outside loop"}
		}
		p.advance()
		return &ast.BreakStmt{Break: tok.Pos}, nil
	case token.RETURN:
		p.advance()
		stmt := &ast.ReturnStmt{Return: tok.Pos}
		switch p.peek().Kind {
		case token.RBRACE, token.SEMICOLON, token.EOF:
			return stmt, nil
		}
		result, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Result = result
		return stmt, nil
	}
	return p.parseSimpleStmt()
}

// parseQualified parses `local`/`export` followed by an assignment to a
// plain identifier or a named function declaration.
func (p *Parser) parseQualified() (ast.Stmt, error) {
	qualTok := p.advance()
	qual := ast.QualLocal
	if qualTok.Kind == token.EXPORT {
		qual = ast.QualExport
	}

	if p.peek().Kind == token.FN {
		fnTok := p.advance()
		return p.parseFuncDecl(fnTok.Pos, qual, qualTok.Pos)
	}

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.AssignStmt{QualPos: qualTok.Pos, Qual: qual, Target: name, Value: value}, nil
}

func (p *Parser) parseFuncDecl(fnPos token.Pos, qual ast.Qualifier, qualPos token.Pos) (ast.Stmt, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	lit, err := p.parseFuncRest(fnPos)
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{QualPos: qualPos, Qual: qual, Name: name, Func: lit}, nil
}

// parseFuncRest parses `(params) { body }` after `fn` (and the name, if any).
func (p *Parser) parseFuncRest(fnPos token.Pos) (*ast.FuncLit, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []*ast.Ident
	if p.peek().Kind != token.RPAREN {
		for {
			param, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if !p.accept(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	outerLoops := p.loopDepth
	p.loopDepth = 0
	body, err := p.parseBlock()
	p.loopDepth = outerLoops
	if err != nil {
		return nil, err
	}
	return &ast.FuncLit{Fn: fnPos, Params: params, Body: body}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	ifTok := p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{If: ifTok.Pos, Cond: cond, Body: body}
	if !p.accept(token.ELSE) {
		return stmt, nil
	}
	if p.peek().Kind == token.IF {
		elseIf, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseIf
		return stmt, nil
	}
	elseBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Else = elseBody
	return stmt, nil
}

// parseSimpleStmt parses an expression statement or an unqualified
// assignment whose target is an identifier, index or member expression.
func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != token.ASSIGN {
		return &ast.ExprStmt{X: x}, nil
	}
	switch x.(type) {
	case *ast.Ident, *ast.IndexExpr, *ast.MemberExpr:
	default:
		return nil, p.errorf(p.peek(), "end of statement (cannot assign to "+x.String()+")")
	}
	p.advance()
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.AssignStmt{Target: x, Value: value}, nil
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(0)
}

// binary operator precedence, lowest first.
var precedence = map[token.Kind]int{
	token.OR:       1,
	token.AND:      2,
	token.EQ:       3,
	token.NOT_EQ:   3,
	token.LT:       4,
	token.LE:       4,
	token.GT:       4,
	token.GE:       4,
	token.PLUS:     5,
	token.MINUS:    5,
	token.ASTERISK: 6,
	token.SLASH:    6,
	token.PERCENT:  6,
}

// parseBinary is a precedence-climbing parser for left-associative
// binary operators binding tighter than minPrec.
func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec, ok := precedence[op.Kind]
		if !ok || prec <= minPrec {
			return x, nil
		}
		p.advance()
		y, err := p.parseBinary(prec)
		if err != nil {
			return nil, err
		}
		x = &ast.BinaryExpr{X: x, OpPos: op.Pos, Op: op.Kind, Y: y}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch tok := p.peek(); tok.Kind {
	case token.MINUS, token.BANG:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{OpPos: tok.Pos, Op: tok.Kind, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch tok := p.peek(); tok.Kind {
		case token.LPAREN:
			p.advance()
			args, err := p.parseExprList(token.RPAREN)
			if err != nil {
				return nil, err
			}
			x = &ast.CallExpr{Fun: x, Lparen: tok.Pos, Args: args}
		case token.LBRACKET:
			p.advance()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{X: x, Lbrack: tok.Pos, Index: index}
		case token.DOT:
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			x = &ast.MemberExpr{X: x, Dot: tok.Pos, Name: name}
		default:
			return x, nil
		}
	}
}

// parseExprList parses a comma separated list terminated by end. A
// trailing comma is allowed.
func (p *Parser) parseExprList(end token.Kind) ([]ast.Expr, error) {
	var list []ast.Expr
	for p.peek().Kind != end {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, x)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(end); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.IDENT:
		p.advance()
		return &ast.Ident{NamePos: tok.Pos, Name: tok.Literal}, nil
	case token.NUMBER:
		p.advance()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf(tok, "number")
		}
		return &ast.NumberLit{ValuePos: tok.Pos, Value: v, Raw: tok.Literal}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLit{ValuePos: tok.Pos, Value: tok.Literal}, nil
	case token.TRUE, token.FALSE:
		p.advance()
		return &ast.BoolLit{ValuePos: tok.Pos, Value: tok.Kind == token.TRUE}, nil
	case token.NULL:
		p.advance()
		return &ast.NullLit{ValuePos: tok.Pos}, nil
	case token.LPAREN:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return x, nil
	case token.LBRACKET:
		p.advance()
		elems, err := p.parseExprList(token.RBRACKET)
		if err != nil {
			return nil, err
		}
		return &ast.ArrayLit{Lbrack: tok.Pos, Elements: elems}, nil
	case token.LBRACE:
		return p.parseTableLit()
	case token.FN:
		p.advance()
		return p.parseFuncRest(tok.Pos)
	case token.IMPORT:
		p.advance()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		path, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.ImportExpr{Import: tok.Pos, Path: path}, nil
	}
	return nil, p.errorf(tok, "expression")
}

func (p *Parser) parseTableLit() (ast.Expr, error) {
	lbrace := p.advance()
	lit := &ast.TableLit{Lbrace: lbrace.Pos}
	for p.peek().Kind != token.RBRACE {
		keyTok := p.peek()
		if keyTok.Kind != token.IDENT && keyTok.Kind != token.STRING {
			return nil, p.errorf(keyTok, "table key")
		}
		p.advance()
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Entries = append(lit.Entries, &ast.TableEntry{KeyPos: keyTok.Pos, Key: keyTok.Literal, Value: value})
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return lit, nil
}
