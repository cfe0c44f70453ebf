// Package evaluator implements the tree-walking interpreter for RSL.
//
// Statement evaluation threads an explicit Completion (Normal, Return or
// Break) instead of unwinding with panics; runtime errors travel as ordinary
// Go errors (*object.Error) up to the entry point.
//
// An Evaluator keeps a call stack and must not be used by more than one
// goroutine at a time.
package evaluator

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/podhmo/rsl/ast"
	"github.com/podhmo/rsl/object"
	"github.com/podhmo/rsl/token"
)

// MaxCallDepth bounds script recursion so that runaway recursion surfaces as
// a RuntimeError instead of exhausting the Go stack.
const MaxCallDepth = 10000

// CompletionKind describes how a statement or block finished.
type CompletionKind int

const (
	Normal CompletionKind = iota
	Return
	Break
)

func (k CompletionKind) String() string {
	switch k {
	case Return:
		return "return"
	case Break:
		return "break"
	}
	return "normal"
}

// Completion is the result of evaluating a statement or block.
type Completion struct {
	Kind  CompletionKind
	Value object.Object
}

func normal(v object.Object) Completion { return Completion{Kind: Normal, Value: v} }

// Importer resolves `import(path)` to the export table of a module.
type Importer interface {
	Import(ctx context.Context, path string) (*object.Table, error)
}

// Config holds the dependencies of an Evaluator.
type Config struct {
	Fset     *token.FileSet
	Importer Importer
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
}

// Evaluator is the main object that evaluates the AST.
type Evaluator struct {
	fset     *token.FileSet
	importer Importer
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger

	callStack []*object.CallFrame
}

// New creates a new Evaluator.
func New(cfg Config) *Evaluator {
	e := &Evaluator{
		fset:     cfg.Fset,
		importer: cfg.Importer,
		stdin:    cfg.Stdin,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
		logger:   cfg.Logger,
	}
	if e.fset == nil {
		e.fset = token.NewFileSet()
	}
	if e.stdin == nil {
		e.stdin = os.Stdin
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// SetImporter installs the module importer. The loader and the evaluator
// refer to each other, so the importer is usually attached after New.
func (e *Evaluator) SetImporter(imp Importer) {
	e.importer = imp
}

// FileSet returns the FileSet positions are resolved against.
func (e *Evaluator) FileSet() *token.FileSet {
	return e.fset
}

func (e *Evaluator) newError(pos token.Pos, kind object.ErrorKind, format string, args ...any) *object.Error {
	err := object.NewError(kind, format, args...)
	e.attach(err, pos)
	return err
}

// attach records the position and a copy of the current call stack.
func (e *Evaluator) attach(err *object.Error, pos token.Pos) {
	err.Pos = pos
	err.CallStack = make([]*object.CallFrame, len(e.callStack))
	copy(err.CallStack, e.callStack)
	err.AttachFileSet(e.fset)
}

// wrapError turns an arbitrary error coming from a native or the importer
// into an *object.Error positioned at pos.
func (e *Evaluator) wrapError(err error, pos token.Pos, kind object.ErrorKind, code string) error {
	if oerr, ok := err.(*object.Error); ok {
		if !oerr.Pos.IsValid() {
			e.attach(oerr, pos)
		}
		return oerr
	}
	oerr := e.newError(pos, kind, "%v", err)
	oerr.Code = code
	oerr.Cause = err
	return oerr
}

// Eval evaluates a program, statement or expression in env.
func (e *Evaluator) Eval(ctx context.Context, node ast.Node, env *object.Environment) (Completion, error) {
	switch n := node.(type) {
	case *ast.Program:
		return e.evalStmts(ctx, n.Stmts, env)
	case ast.Stmt:
		return e.evalStmt(ctx, n, env)
	case ast.Expr:
		v, err := e.evalExpr(ctx, n, env)
		if err != nil {
			return Completion{}, err
		}
		return normal(v), nil
	}
	return Completion{}, e.newError(node.Pos(), object.TypeError, "cannot evaluate %T", node)
}

// EvalProgram evaluates prog in env and returns the value of its last
// statement, or the value of a top-level return.
func (e *Evaluator) EvalProgram(ctx context.Context, prog *ast.Program, env *object.Environment) (object.Object, error) {
	c, err := e.evalStmts(ctx, prog.Stmts, env)
	if err != nil {
		return nil, err
	}
	if c.Value == nil {
		return object.NULL, nil
	}
	return c.Value, nil
}

// Call invokes fn with args exactly as a script call would.
func (e *Evaluator) Call(ctx context.Context, fn object.Object, args ...object.Object) (object.Object, error) {
	return e.applyFunction(ctx, fn, args, token.NoPos, "")
}

// --- statements ---

func (e *Evaluator) evalStmts(ctx context.Context, stmts []ast.Stmt, env *object.Environment) (Completion, error) {
	result := normal(object.NULL)
	for _, stmt := range stmts {
		c, err := e.evalStmt(ctx, stmt, env)
		if err != nil {
			return Completion{}, err
		}
		if c.Kind != Normal {
			return c, nil
		}
		result = c
	}
	return result, nil
}

func (e *Evaluator) evalBlock(ctx context.Context, block *ast.Block, env *object.Environment) (Completion, error) {
	return e.evalStmts(ctx, block.Stmts, object.NewEnclosedEnvironment(env))
}

func (e *Evaluator) evalStmt(ctx context.Context, stmt ast.Stmt, env *object.Environment) (Completion, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		v, err := e.evalExpr(ctx, s.X, env)
		if err != nil {
			return Completion{}, err
		}
		return normal(v), nil
	case *ast.AssignStmt:
		return normal(object.NULL), e.evalAssign(ctx, s, env)
	case *ast.FuncDecl:
		fn := &object.Function{
			Name:       s.Name.Name,
			Parameters: s.Func.Params,
			Body:       s.Func.Body,
			Env:        env,
		}
		return normal(object.NULL), e.bind(env, s.Qual, s.Name, fn)
	case *ast.IfStmt:
		return e.evalIf(ctx, s, env)
	case *ast.LoopStmt:
		return e.evalLoop(ctx, s, env)
	case *ast.BreakStmt:
		return Completion{Kind: Break, Value: object.NULL}, nil
	case *ast.ReturnStmt:
		if s.Result == nil {
			return Completion{Kind: Return, Value: object.NULL}, nil
		}
		v, err := e.evalExpr(ctx, s.Result, env)
		if err != nil {
			return Completion{}, err
		}
		return Completion{Kind: Return, Value: v}, nil
	case *ast.Block:
		return e.evalBlock(ctx, s, env)
	}
	return Completion{}, e.newError(stmt.Pos(), object.TypeError, "unknown statement %T", stmt)
}

func (e *Evaluator) evalIf(ctx context.Context, s *ast.IfStmt, env *object.Environment) (Completion, error) {
	cond, err := e.evalExpr(ctx, s.Cond, env)
	if err != nil {
		return Completion{}, err
	}
	b, ok := cond.(*object.Boolean)
	if !ok {
		return Completion{}, e.newError(s.Cond.Pos(), object.TypeError, "if condition must be bool, got %s", cond.Type())
	}
	if b.Value {
		return e.evalBlock(ctx, s.Body, env)
	}
	if s.Else != nil {
		return e.evalStmt(ctx, s.Else, env)
	}
	return normal(object.NULL), nil
}

func (e *Evaluator) evalLoop(ctx context.Context, s *ast.LoopStmt, env *object.Environment) (Completion, error) {
	for {
		c, err := e.evalBlock(ctx, s.Body, env)
		if err != nil {
			return Completion{}, err
		}
		switch c.Kind {
		case Break:
			return normal(object.NULL), nil
		case Return:
			return c, nil
		}
	}
}

func (e *Evaluator) evalAssign(ctx context.Context, s *ast.AssignStmt, env *object.Environment) error {
	switch target := s.Target.(type) {
	case *ast.Ident:
		val, err := e.evalExpr(ctx, s.Value, env)
		if err != nil {
			return err
		}
		return e.bind(env, s.Qual, target, val)
	case *ast.IndexExpr:
		container, err := e.evalExpr(ctx, target.X, env)
		if err != nil {
			return err
		}
		index, err := e.evalExpr(ctx, target.Index, env)
		if err != nil {
			return err
		}
		val, err := e.evalExpr(ctx, s.Value, env)
		if err != nil {
			return err
		}
		return e.setIndex(target.Lbrack, container, index, val)
	case *ast.MemberExpr:
		container, err := e.evalExpr(ctx, target.X, env)
		if err != nil {
			return err
		}
		val, err := e.evalExpr(ctx, s.Value, env)
		if err != nil {
			return err
		}
		tbl, ok := container.(*object.Table)
		if !ok {
			return e.newError(target.Dot, object.TypeError, "cannot set member %q of %s", target.Name.Name, container.Type())
		}
		tbl.Set(target.Name.Name, val)
		return nil
	}
	return e.newError(s.Pos(), object.TypeError, "cannot assign to %s", s.Target)
}

// bind applies the assignment qualifier semantics to name.
func (e *Evaluator) bind(env *object.Environment, qual ast.Qualifier, name *ast.Ident, val object.Object) error {
	switch qual {
	case ast.QualLocal:
		env.Set(name.Name, val)
	case ast.QualExport:
		if !env.Export(name.Name, val) {
			return e.newError(name.Pos(), object.RuntimeError, "cannot export %q outside of a module", name.Name)
		}
	default:
		env.Assign(name.Name, val)
	}
	return nil
}

// --- expressions ---

func (e *Evaluator) evalExpr(ctx context.Context, expr ast.Expr, env *object.Environment) (object.Object, error) {
	switch x := expr.(type) {
	case *ast.Ident:
		return env.Resolve(x.Name), nil
	case *ast.NumberLit:
		return &object.Number{Value: x.Value}, nil
	case *ast.StringLit:
		return &object.String{Value: x.Value}, nil
	case *ast.BoolLit:
		return object.NativeBool(x.Value), nil
	case *ast.NullLit:
		return object.NULL, nil
	case *ast.ArrayLit:
		elems, err := e.evalExprs(ctx, x.Elements, env)
		if err != nil {
			return nil, err
		}
		return &object.Array{Elements: elems}, nil
	case *ast.TableLit:
		tbl := object.NewTable()
		for _, entry := range x.Entries {
			v, err := e.evalExpr(ctx, entry.Value, env)
			if err != nil {
				return nil, err
			}
			tbl.Set(entry.Key, v)
		}
		return tbl, nil
	case *ast.FuncLit:
		return &object.Function{Parameters: x.Params, Body: x.Body, Env: env}, nil
	case *ast.UnaryExpr:
		right, err := e.evalExpr(ctx, x.X, env)
		if err != nil {
			return nil, err
		}
		return e.evalUnary(x, right)
	case *ast.BinaryExpr:
		return e.evalBinary(ctx, x, env)
	case *ast.CallExpr:
		callee, err := e.evalExpr(ctx, x.Fun, env)
		if err != nil {
			return nil, err
		}
		args, err := e.evalExprs(ctx, x.Args, env)
		if err != nil {
			return nil, err
		}
		return e.applyFunction(ctx, callee, args, x.Lparen, x.Fun.String())
	case *ast.IndexExpr:
		left, err := e.evalExpr(ctx, x.X, env)
		if err != nil {
			return nil, err
		}
		index, err := e.evalExpr(ctx, x.Index, env)
		if err != nil {
			return nil, err
		}
		return e.evalIndex(x.Lbrack, left, index)
	case *ast.MemberExpr:
		left, err := e.evalExpr(ctx, x.X, env)
		if err != nil {
			return nil, err
		}
		tbl, ok := left.(*object.Table)
		if !ok {
			return nil, e.newError(x.Dot, object.TypeError, "cannot access member %q of %s", x.Name.Name, left.Type())
		}
		if v, ok := tbl.Get(x.Name.Name); ok {
			return v, nil
		}
		return object.NULL, nil
	case *ast.ImportExpr:
		return e.evalImport(ctx, x, env)
	}
	return nil, e.newError(expr.Pos(), object.TypeError, "unknown expression %T", expr)
}

func (e *Evaluator) evalExprs(ctx context.Context, exprs []ast.Expr, env *object.Environment) ([]object.Object, error) {
	result := make([]object.Object, 0, len(exprs))
	for _, x := range exprs {
		v, err := e.evalExpr(ctx, x, env)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func (e *Evaluator) evalUnary(x *ast.UnaryExpr, right object.Object) (object.Object, error) {
	switch x.Op {
	case token.MINUS:
		if n, ok := right.(*object.Number); ok {
			return &object.Number{Value: -n.Value}, nil
		}
	case token.BANG:
		if b, ok := right.(*object.Boolean); ok {
			return object.NativeBool(!b.Value), nil
		}
	}
	return nil, e.newError(x.OpPos, object.TypeError, "unsupported operand type for %s: %s", x.Op, right.Type())
}

func (e *Evaluator) evalBinary(ctx context.Context, x *ast.BinaryExpr, env *object.Environment) (object.Object, error) {
	left, err := e.evalExpr(ctx, x.X, env)
	if err != nil {
		return nil, err
	}

	if x.Op == token.AND || x.Op == token.OR {
		lb, ok := left.(*object.Boolean)
		if !ok {
			return nil, e.newError(x.OpPos, object.TypeError, "left operand of %s must be bool, got %s", x.Op, left.Type())
		}
		if x.Op == token.AND && !lb.Value {
			return object.FALSE, nil
		}
		if x.Op == token.OR && lb.Value {
			return object.TRUE, nil
		}
		right, err := e.evalExpr(ctx, x.Y, env)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(*object.Boolean)
		if !ok {
			return nil, e.newError(x.OpPos, object.TypeError, "right operand of %s must be bool, got %s", x.Op, right.Type())
		}
		return rb, nil
	}

	right, err := e.evalExpr(ctx, x.Y, env)
	if err != nil {
		return nil, err
	}
	return e.evalInfix(x.OpPos, x.Op, left, right)
}

func (e *Evaluator) evalInfix(pos token.Pos, op token.Kind, left, right object.Object) (object.Object, error) {
	switch op {
	case token.EQ:
		return object.NativeBool(object.Equal(left, right)), nil
	case token.NOT_EQ:
		return object.NativeBool(!object.Equal(left, right)), nil
	}

	switch l := left.(type) {
	case *object.Number:
		if r, ok := right.(*object.Number); ok {
			if v, ok := evalNumberInfix(op, l.Value, r.Value); ok {
				return v, nil
			}
		}
	case *object.String:
		if r, ok := right.(*object.String); ok {
			if v, ok := evalStringInfix(op, l.Value, r.Value); ok {
				return v, nil
			}
		}
	}
	return nil, e.newError(pos, object.TypeError, "unsupported operand types for %s: %s and %s", op, left.Type(), right.Type())
}

func evalNumberInfix(op token.Kind, l, r float64) (object.Object, bool) {
	switch op {
	case token.PLUS:
		return &object.Number{Value: l + r}, true
	case token.MINUS:
		return &object.Number{Value: l - r}, true
	case token.ASTERISK:
		return &object.Number{Value: l * r}, true
	case token.SLASH:
		return &object.Number{Value: l / r}, true
	case token.PERCENT:
		return &object.Number{Value: math.Mod(l, r)}, true
	case token.LT:
		return object.NativeBool(l < r), true
	case token.LE:
		return object.NativeBool(l <= r), true
	case token.GT:
		return object.NativeBool(l > r), true
	case token.GE:
		return object.NativeBool(l >= r), true
	}
	return nil, false
}

func evalStringInfix(op token.Kind, l, r string) (object.Object, bool) {
	switch op {
	case token.PLUS:
		return &object.String{Value: l + r}, true
	case token.LT:
		return object.NativeBool(l < r), true
	case token.LE:
		return object.NativeBool(l <= r), true
	case token.GT:
		return object.NativeBool(l > r), true
	case token.GE:
		return object.NativeBool(l >= r), true
	}
	return nil, false
}

// arrayIndex validates a numeric index against an array or string of length n.
func (e *Evaluator) arrayIndex(pos token.Pos, index *object.Number, n int) (int, error) {
	if index.Value != math.Trunc(index.Value) {
		return 0, e.rangeError(pos, "index %s is not an integer", index.Inspect())
	}
	if index.Value < 0 || index.Value >= float64(n) {
		return 0, e.rangeError(pos, "index %s out of range [0, %d)", index.Inspect(), n)
	}
	return int(index.Value), nil
}

func (e *Evaluator) rangeError(pos token.Pos, format string, args ...any) error {
	err := e.newError(pos, object.RuntimeError, format, args...)
	err.Code = object.CodeRange
	return err
}

func (e *Evaluator) evalIndex(pos token.Pos, left, index object.Object) (object.Object, error) {
	switch l := left.(type) {
	case *object.Array:
		if idx, ok := index.(*object.Number); ok {
			i, err := e.arrayIndex(pos, idx, len(l.Elements))
			if err != nil {
				return nil, err
			}
			return l.Elements[i], nil
		}
	case *object.Table:
		if key, ok := index.(*object.String); ok {
			if v, ok := l.Get(key.Value); ok {
				return v, nil
			}
			return object.NULL, nil
		}
	case *object.String:
		if idx, ok := index.(*object.Number); ok {
			runes := []rune(l.Value)
			i, err := e.arrayIndex(pos, idx, len(runes))
			if err != nil {
				return nil, err
			}
			return &object.String{Value: string(runes[i])}, nil
		}
	}
	return nil, e.newError(pos, object.TypeError, "cannot index %s with %s", left.Type(), index.Type())
}

func (e *Evaluator) setIndex(pos token.Pos, container, index, val object.Object) error {
	switch c := container.(type) {
	case *object.Array:
		if idx, ok := index.(*object.Number); ok {
			i, err := e.arrayIndex(pos, idx, len(c.Elements))
			if err != nil {
				return err
			}
			c.Elements[i] = val
			return nil
		}
	case *object.Table:
		if key, ok := index.(*object.String); ok {
			c.Set(key.Value, val)
			return nil
		}
	}
	return e.newError(pos, object.TypeError, "cannot assign to index of %s with %s", container.Type(), index.Type())
}

func (e *Evaluator) evalImport(ctx context.Context, x *ast.ImportExpr, env *object.Environment) (object.Object, error) {
	pathObj, err := e.evalExpr(ctx, x.Path, env)
	if err != nil {
		return nil, err
	}
	path, ok := pathObj.(*object.String)
	if !ok {
		return nil, e.newError(x.Path.Pos(), object.TypeError, "import path must be string, got %s", pathObj.Type())
	}
	if e.importer == nil {
		return nil, e.newError(x.Import, object.ImportError, "cannot import %q: no module loader configured", path.Value)
	}
	tbl, err := e.importer.Import(ctx, path.Value)
	if err != nil {
		return nil, e.wrapError(err, x.Import, object.ImportError, "")
	}
	return tbl, nil
}

// --- calls ---

func (e *Evaluator) applyFunction(ctx context.Context, callee object.Object, args []object.Object, pos token.Pos, name string) (object.Object, error) {
	switch fn := callee.(type) {
	case *object.Function:
		if fn.Name != "" {
			name = fn.Name
		}
		if len(e.callStack) >= MaxCallDepth {
			err := e.newError(pos, object.RuntimeError, "maximum call depth %d exceeded", MaxCallDepth)
			err.Code = object.CodeRange
			return nil, err
		}
		e.callStack = append(e.callStack, &object.CallFrame{Pos: pos, Function: name})
		defer e.popFrame()

		callEnv := object.NewEnclosedEnvironment(fn.Env)
		for i, param := range fn.Parameters {
			if i < len(args) {
				callEnv.Set(param.Name, args[i])
			} else {
				callEnv.Set(param.Name, object.NULL)
			}
		}
		c, err := e.evalStmts(ctx, fn.Body.Stmts, callEnv)
		if err != nil {
			return nil, err
		}
		if c.Kind == Return {
			return c.Value, nil
		}
		return object.NULL, nil

	case *object.Native:
		e.callStack = append(e.callStack, &object.CallFrame{Pos: pos, Function: fn.Name})
		defer e.popFrame()

		nctx := &object.NativeContext{
			Context: ctx,
			Name:    fn.Name,
			Pos:     pos,
			Stdin:   e.stdin,
			Stdout:  e.stdout,
			Stderr:  e.stderr,
			Logger:  e.logger,
			Call: func(f object.Object, a ...object.Object) (object.Object, error) {
				return e.applyFunction(ctx, f, a, pos, "")
			},
		}
		result, err := fn.Fn(nctx, args...)
		if err != nil {
			return nil, e.wrapError(err, pos, object.RuntimeError, object.CodeNative)
		}
		if result == nil {
			return object.NULL, nil
		}
		return result, nil
	}

	if name == "" {
		name = "value"
	}
	return nil, e.newError(pos, object.TypeError, "%s is not a function, got %s", name, callee.Type())
}

func (e *Evaluator) popFrame() {
	e.callStack = e.callStack[:len(e.callStack)-1]
}
