// Package ast declares the types used to represent syntax trees for RSL.
// Nodes are immutable once the parser has built them.
package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/podhmo/rsl/token"
)

// Node is implemented by all AST nodes.
type Node interface {
	Pos() token.Pos
	String() string
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Qualifier modifies the binding behaviour of an assignment.
type Qualifier int

const (
	QualNone Qualifier = iota
	QualLocal
	QualExport
)

func (q Qualifier) String() string {
	switch q {
	case QualLocal:
		return "local"
	case QualExport:
		return "export"
	}
	return ""
}

// Program is the root node of a parsed source file.
type Program struct {
	Filename string
	Stmts    []Stmt
}

func (p *Program) Pos() token.Pos {
	if len(p.Stmts) > 0 {
		return p.Stmts[0].Pos()
	}
	return token.NoPos
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, s := range p.Stmts {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Block is a brace-delimited statement list.
type Block struct {
	Lbrace token.Pos
	Stmts  []Stmt
}

func (b *Block) Pos() token.Pos { return b.Lbrace }

func (b *Block) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	for _, s := range b.Stmts {
		out.WriteString(s.String())
		out.WriteString("; ")
	}
	out.WriteString("}")
	return out.String()
}

// --- statements ---

type (
	// AssignStmt binds Value to Target. Target is an *Ident, *IndexExpr or
	// *MemberExpr; Qual is only ever set for *Ident targets.
	AssignStmt struct {
		QualPos token.Pos
		Qual    Qualifier
		Target  Expr
		Value   Expr
	}

	// FuncDecl is `fn name(params) { ... }`, sugar for `name = fn (params) { ... }`.
	FuncDecl struct {
		QualPos token.Pos
		Qual    Qualifier
		Name    *Ident
		Func    *FuncLit
	}

	// IfStmt is `if cond { ... } [else ...]`. Else is nil, a *Block, or an
	// *IfStmt for `else if`.
	IfStmt struct {
		If   token.Pos
		Cond Expr
		Body *Block
		Else Stmt
	}

	// LoopStmt is `loop { ... }`.
	LoopStmt struct {
		Loop token.Pos
		Body *Block
	}

	// BreakStmt is `break`.
	BreakStmt struct {
		Break token.Pos
	}

	// ReturnStmt is `return [expr]`. Result is nil for a bare return.
	ReturnStmt struct {
		Return token.Pos
		Result Expr
	}

	// ExprStmt is an expression evaluated for its side effects.
	ExprStmt struct {
		X Expr
	}
)

func (s *AssignStmt) Pos() token.Pos {
	if s.Qual != QualNone {
		return s.QualPos
	}
	return s.Target.Pos()
}

func (s *FuncDecl) Pos() token.Pos {
	if s.Qual != QualNone {
		return s.QualPos
	}
	return s.Func.Fn
}
func (s *IfStmt) Pos() token.Pos     { return s.If }
func (s *LoopStmt) Pos() token.Pos   { return s.Loop }
func (s *BreakStmt) Pos() token.Pos  { return s.Break }
func (s *ReturnStmt) Pos() token.Pos { return s.Return }
func (s *ExprStmt) Pos() token.Pos   { return s.X.Pos() }

func (s *AssignStmt) String() string {
	prefix := ""
	if s.Qual != QualNone {
		prefix = s.Qual.String() + " "
	}
	return prefix + s.Target.String() + " = " + s.Value.String()
}

func (s *FuncDecl) String() string {
	prefix := ""
	if s.Qual != QualNone {
		prefix = s.Qual.String() + " "
	}
	return prefix + "fn " + s.Name.Name + s.Func.signature() + " " + s.Func.Body.String()
}

func (s *IfStmt) String() string {
	out := "if " + s.Cond.String() + " " + s.Body.String()
	if s.Else != nil {
		out += " else " + s.Else.String()
	}
	return out
}

func (s *LoopStmt) String() string  { return "loop " + s.Body.String() }
func (s *BreakStmt) String() string { return "break" }

func (s *ReturnStmt) String() string {
	if s.Result == nil {
		return "return"
	}
	return "return " + s.Result.String()
}

func (s *ExprStmt) String() string { return s.X.String() }

func (*AssignStmt) stmtNode() {}
func (*FuncDecl) stmtNode()   {}
func (*IfStmt) stmtNode()     {}
func (*LoopStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}
func (*Block) stmtNode()      {}

// --- expressions ---

type (
	// Ident is an identifier reference.
	Ident struct {
		NamePos token.Pos
		Name    string
	}

	// NumberLit is a numeric literal.
	NumberLit struct {
		ValuePos token.Pos
		Value    float64
		Raw      string
	}

	// StringLit is a string literal; Value is unescaped.
	StringLit struct {
		ValuePos token.Pos
		Value    string
	}

	// BoolLit is `true` or `false`.
	BoolLit struct {
		ValuePos token.Pos
		Value    bool
	}

	// NullLit is `null`.
	NullLit struct {
		ValuePos token.Pos
	}

	// ArrayLit is `[a, b, ...]`.
	ArrayLit struct {
		Lbrack   token.Pos
		Elements []Expr
	}

	// TableLit is `{ key: value, ... }`. Keys are identifiers or strings.
	TableLit struct {
		Lbrace  token.Pos
		Entries []*TableEntry
	}

	// FuncLit is `fn (params) { ... }`.
	FuncLit struct {
		Fn     token.Pos
		Params []*Ident
		Body   *Block
	}

	// UnaryExpr is `-x` or `!x`.
	UnaryExpr struct {
		OpPos token.Pos
		Op    token.Kind
		X     Expr
	}

	// BinaryExpr is `x op y`.
	BinaryExpr struct {
		X     Expr
		OpPos token.Pos
		Op    token.Kind
		Y     Expr
	}

	// CallExpr is `fun(args)`.
	CallExpr struct {
		Fun    Expr
		Lparen token.Pos
		Args   []Expr
	}

	// IndexExpr is `x[index]`.
	IndexExpr struct {
		X      Expr
		Lbrack token.Pos
		Index  Expr
	}

	// MemberExpr is `x.name`.
	MemberExpr struct {
		X    Expr
		Dot  token.Pos
		Name *Ident
	}

	// ImportExpr is `import(path)`.
	ImportExpr struct {
		Import token.Pos
		Path   Expr
	}
)

// TableEntry is one `key: value` pair of a table literal.
type TableEntry struct {
	KeyPos token.Pos
	Key    string
	Value  Expr
}

func (x *Ident) Pos() token.Pos      { return x.NamePos }
func (x *NumberLit) Pos() token.Pos  { return x.ValuePos }
func (x *StringLit) Pos() token.Pos  { return x.ValuePos }
func (x *BoolLit) Pos() token.Pos    { return x.ValuePos }
func (x *NullLit) Pos() token.Pos    { return x.ValuePos }
func (x *ArrayLit) Pos() token.Pos   { return x.Lbrack }
func (x *TableLit) Pos() token.Pos   { return x.Lbrace }
func (x *FuncLit) Pos() token.Pos    { return x.Fn }
func (x *UnaryExpr) Pos() token.Pos  { return x.OpPos }
func (x *BinaryExpr) Pos() token.Pos { return x.X.Pos() }
func (x *CallExpr) Pos() token.Pos   { return x.Fun.Pos() }
func (x *IndexExpr) Pos() token.Pos  { return x.X.Pos() }
func (x *MemberExpr) Pos() token.Pos { return x.X.Pos() }
func (x *ImportExpr) Pos() token.Pos { return x.Import }

func (x *Ident) String() string     { return x.Name }
func (x *NumberLit) String() string { return x.Raw }
func (x *StringLit) String() string { return strconv.Quote(x.Value) }
func (x *BoolLit) String() string   { return strconv.FormatBool(x.Value) }
func (x *NullLit) String() string   { return "null" }

func (x *ArrayLit) String() string {
	elems := make([]string, len(x.Elements))
	for i, e := range x.Elements {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

func (x *TableLit) String() string {
	entries := make([]string, len(x.Entries))
	for i, e := range x.Entries {
		entries[i] = strconv.Quote(e.Key) + ": " + e.Value.String()
	}
	return "{" + strings.Join(entries, ", ") + "}"
}

func (x *FuncLit) signature() string {
	params := make([]string, len(x.Params))
	for i, p := range x.Params {
		params[i] = p.Name
	}
	return "(" + strings.Join(params, ", ") + ")"
}

func (x *FuncLit) String() string { return "fn " + x.signature() + " " + x.Body.String() }

func (x *UnaryExpr) String() string { return "(" + x.Op.String() + x.X.String() + ")" }

func (x *BinaryExpr) String() string {
	return "(" + x.X.String() + " " + x.Op.String() + " " + x.Y.String() + ")"
}

func (x *CallExpr) String() string {
	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		args[i] = a.String()
	}
	return x.Fun.String() + "(" + strings.Join(args, ", ") + ")"
}

func (x *IndexExpr) String() string  { return x.X.String() + "[" + x.Index.String() + "]" }
func (x *MemberExpr) String() string { return x.X.String() + "." + x.Name.Name }
func (x *ImportExpr) String() string { return "import(" + x.Path.String() + ")" }

func (*Ident) exprNode()      {}
func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*BoolLit) exprNode()    {}
func (*NullLit) exprNode()    {}
func (*ArrayLit) exprNode()   {}
func (*TableLit) exprNode()   {}
func (*FuncLit) exprNode()    {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()   {}
func (*IndexExpr) exprNode()  {}
func (*MemberExpr) exprNode() {}
func (*ImportExpr) exprNode() {}
