// Package rsl is an embeddable, dynamically typed scripting language.
//
// An Interpreter owns a root frame of native functions, a module loader and a
// tree-walking evaluator. Hosts register natives with Register, then run
// scripts with RunFile or EvalSource, drive a REPL with EvalPersistent, and
// call back into scripts with CallExported.
//
// An Interpreter is not safe for concurrent use: at most one evaluation may be
// in flight at a time. Use one Interpreter per goroutine; they may share a
// cache.ProgramCache.
package rsl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/podhmo/rsl/cache"
	"github.com/podhmo/rsl/evaluator"
	"github.com/podhmo/rsl/fs"
	"github.com/podhmo/rsl/loader"
	"github.com/podhmo/rsl/object"
	"github.com/podhmo/rsl/parser"
	"github.com/podhmo/rsl/token"
)

// ReplModuleName is the module name of the persistent environment.
const ReplModuleName = "<repl>"

// Interpreter is the main entry point for the RSL language.
type Interpreter struct {
	fset   *token.FileSet
	fs     fs.FS
	cache  *cache.ProgramCache
	eval   *evaluator.Evaluator
	loader *loader.Loader

	root         *object.Environment
	global       *object.Environment
	globalModule *object.Module

	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
	workDir  string
	embedded map[string]string
	natives  map[string]object.NativeFunction
}

// Option is a functional option for configuring the Interpreter.
type Option func(*Interpreter)

// WithStdin sets the standard input for the interpreter.
func WithStdin(r io.Reader) Option {
	return func(i *Interpreter) {
		i.stdin = r
	}
}

// WithStdout sets the standard output for the interpreter.
func WithStdout(w io.Writer) Option {
	return func(i *Interpreter) {
		i.stdout = w
	}
}

// WithStderr sets the standard error for the interpreter.
func WithStderr(w io.Writer) Option {
	return func(i *Interpreter) {
		i.stderr = w
	}
}

// WithLogger sets the logger used by the interpreter and handed to natives.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = l
	}
}

// WithWorkDir sets the directory relative import paths are resolved against.
// It defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(i *Interpreter) {
		i.workDir = dir
	}
}

// WithFS sets the file system scripts and modules are read from.
// It is ignored when WithProgramCache is also used.
func WithFS(fsys fs.FS) Option {
	return func(i *Interpreter) {
		i.fs = fsys
	}
}

// WithFileSet sets the FileSet positions are recorded in.
// It is ignored when WithProgramCache is also used.
func WithFileSet(fset *token.FileSet) Option {
	return func(i *Interpreter) {
		i.fset = fset
	}
}

// WithProgramCache shares a parsed-program cache (and its FileSet and FS)
// with other interpreters.
func WithProgramCache(c *cache.ProgramCache) Option {
	return func(i *Interpreter) {
		i.cache = c
	}
}

// WithEmbeddedModule makes source importable under name. Embedded modules
// are consulted before the file system.
func WithEmbeddedModule(name, source string) Option {
	return func(i *Interpreter) {
		i.embedded[name] = source
	}
}

// WithNatives registers several native functions at once.
func WithNatives(natives map[string]object.NativeFunction) Option {
	return func(i *Interpreter) {
		for name, fn := range natives {
			i.natives[name] = fn
		}
	}
}

// New creates a new interpreter instance with the given I/O streams.
// It panics if initialization fails.
func New(r io.Reader, stdout, stderr io.Writer) *Interpreter {
	i, err := NewInterpreter(WithStdin(r), WithStdout(stdout), WithStderr(stderr))
	if err != nil {
		panic(err) // Should not happen with default options
	}
	return i
}

// NewInterpreter creates a new interpreter instance, configured with options.
func NewInterpreter(options ...Option) (*Interpreter, error) {
	i := &Interpreter{
		root:     object.NewEnvironment(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		embedded: make(map[string]string),
		natives:  make(map[string]object.NativeFunction),
	}

	for _, opt := range options {
		opt(i)
	}

	if i.logger == nil {
		i.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if i.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		i.workDir = wd
	} else {
		abs, err := filepath.Abs(i.workDir)
		if err != nil {
			return nil, fmt.Errorf("resolving working directory %q: %w", i.workDir, err)
		}
		i.workDir = abs
	}
	if i.cache == nil {
		if i.fs == nil {
			i.fs = fs.NewOSFS()
		}
		i.cache = cache.New(i.fset, i.fs, i.logger)
	}
	i.fset = i.cache.FileSet()
	i.fs = i.cache.FS()

	i.eval = evaluator.New(evaluator.Config{
		Fset:   i.fset,
		Stdin:  i.stdin,
		Stdout: i.stdout,
		Stderr: i.stderr,
		Logger: i.logger,
	})
	i.loader = loader.New(i.eval, loader.Config{
		Root:     i.root,
		Cache:    i.cache,
		WorkDir:  i.workDir,
		Embedded: i.embedded,
		Logger:   i.logger,
	})
	i.eval.SetImporter(i.loader)

	for name, fn := range i.natives {
		i.Register(name, fn)
	}

	i.globalModule = object.NewModule(ReplModuleName)
	i.global = object.NewModuleEnvironment(i.root, i.globalModule)
	return i, nil
}

// Register binds a native function in the root environment, making it
// visible to every script run afterwards.
func (i *Interpreter) Register(name string, fn object.NativeFunction) {
	i.root.Set(name, &object.Native{Name: name, Fn: fn})
}

// Result holds the outcome of a script execution.
type Result struct {
	Value  object.Object
	Module *object.Module // nil for CallExported
}

// Get returns a binding of the script's top-level frame.
func (r *Result) Get(name string) (object.Object, bool) {
	if r.Module == nil || r.Module.Env == nil {
		return nil, false
	}
	return r.Module.Env.Get(name)
}

// Exports returns the export table of the script, or nil.
func (r *Result) Exports() *object.Table {
	if r.Module == nil {
		return nil
	}
	return r.Module.Exports
}

// RunFile lexes, parses and evaluates the file at path as a Program in a new
// top-level environment. Relative paths are resolved against the work dir.
func (i *Interpreter) RunFile(ctx context.Context, path string) (*Result, error) {
	val, m, err := i.loader.Run(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Result{Value: val, Module: m}, nil
}

// EvalSource evaluates source as a Program in a new top-level environment.
// name is used in positions and error messages.
func (i *Interpreter) EvalSource(ctx context.Context, name, source string) (*Result, error) {
	prog, err := parser.ParseFile(i.fset, name, []byte(source))
	if err != nil {
		return nil, err
	}
	val, m, err := i.loader.RunProgram(ctx, name, prog)
	if err != nil {
		return nil, err
	}
	return &Result{Value: val, Module: m}, nil
}

// EvalPersistent evaluates source against the persistent top-level
// environment shared by every call. A failure discards only the remainder of
// source; earlier bindings survive.
func (i *Interpreter) EvalPersistent(ctx context.Context, source string) (*Result, error) {
	prog, err := parser.ParseFile(i.fset, ReplModuleName, []byte(source))
	if err != nil {
		return nil, err
	}
	val, err := i.eval.EvalProgram(ctx, prog, i.global)
	i.globalModule.Finalize()
	if err != nil {
		return nil, err
	}
	return &Result{Value: val, Module: i.globalModule}, nil
}

// Import loads the module at path (or the embedded module of that name)
// exactly as `import(path)` would and returns its export table.
func (i *Interpreter) Import(ctx context.Context, path string) (*object.Table, error) {
	return i.loader.Import(ctx, path)
}

// Bindings is anything functions can be looked up in by name: an
// *object.Environment or an export *object.Table.
type Bindings interface {
	Get(name string) (object.Object, bool)
}

// CallExported looks name up in b and invokes it with args exactly as an
// ordinary call. A nil b means the persistent environment.
func (i *Interpreter) CallExported(ctx context.Context, b Bindings, name string, args ...object.Object) (*Result, error) {
	if b == nil {
		b = i.global
	}
	fn, ok := b.Get(name)
	if !ok {
		fn = object.NULL
	}
	switch fn.(type) {
	case *object.Function, *object.Native:
	default:
		err := object.NewError(object.TypeError, "%s is not a function, got %s", name, fn.Type())
		err.AttachFileSet(i.fset)
		return nil, err
	}
	val, err := i.eval.Call(ctx, fn, args...)
	if err != nil {
		return nil, err
	}
	return &Result{Value: val}, nil
}

// Globals returns the persistent top-level environment.
func (i *Interpreter) Globals() *object.Environment {
	return i.global
}

// Root returns the root environment holding natives.
func (i *Interpreter) Root() *object.Environment {
	return i.root
}

// FileSet returns the FileSet positions are resolved against.
func (i *Interpreter) FileSet() *token.FileSet {
	return i.fset
}

// FS returns the file system scripts are read from.
func (i *Interpreter) FS() fs.FS {
	return i.fs
}

// WorkDir returns the absolute directory imports are resolved against.
func (i *Interpreter) WorkDir() string {
	return i.workDir
}

// Logger returns the interpreter's logger.
func (i *Interpreter) Logger() *slog.Logger {
	return i.logger
}

// Modules returns the resolved keys of the modules imported so far.
func (i *Interpreter) Modules() []string {
	return i.loader.Modules()
}

// As unmarshals the result of the script execution into a Go variable.
// The target must be a pointer to a Go variable.
// It uses reflection to populate the fields of the target, similar to how
// `json.Unmarshal` works.
func (r *Result) As(target any) error {
	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}
	dstVal := reflect.ValueOf(target)
	if dstVal.Kind() != reflect.Ptr || dstVal.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, but got %T", target)
	}
	return unmarshal(r.Value, dstVal.Elem(), map[object.Object]bool{})
}

// ErrCyclicValue is returned when a container holds itself.
var ErrCyclicValue = errors.New("cannot convert a cyclic value")

// unmarshal is a recursive helper function that populates a Go `reflect.Value` (dst)
// from an RSL `object.Object` (src). active holds the containers on the
// current path.
func unmarshal(src object.Object, dst reflect.Value, active map[object.Object]bool) error {
	if !dst.CanSet() {
		return fmt.Errorf("cannot set destination value of type %s", dst.Type())
	}
	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		v, err := toGo(src, active)
		if err != nil {
			return err
		}
		if v == nil {
			dst.Set(reflect.Zero(dst.Type()))
		} else {
			dst.Set(reflect.ValueOf(v))
		}
		return nil
	}
	for dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}
	switch s := src.(type) {
	case *object.Null:
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	case *object.Number:
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(int64(s.Value))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(uint64(s.Value))
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(s.Value)
		default:
			return fmt.Errorf("cannot unmarshal number into %s", dst.Type())
		}
		return nil
	case *object.String:
		if dst.Kind() != reflect.String {
			return fmt.Errorf("cannot unmarshal string into %s", dst.Type())
		}
		dst.SetString(s.Value)
		return nil
	case *object.Boolean:
		if dst.Kind() != reflect.Bool {
			return fmt.Errorf("cannot unmarshal boolean into %s", dst.Type())
		}
		dst.SetBool(s.Value)
		return nil
	case *object.Array:
		if dst.Kind() != reflect.Slice {
			return fmt.Errorf("cannot unmarshal array into non-slice type %s", dst.Type())
		}
		if active[s] {
			return ErrCyclicValue
		}
		active[s] = true
		defer delete(active, s)
		newSlice := reflect.MakeSlice(dst.Type(), len(s.Elements), len(s.Elements))
		for i, elem := range s.Elements {
			if err := unmarshal(elem, newSlice.Index(i), active); err != nil {
				return fmt.Errorf("error in slice element %d: %w", i, err)
			}
		}
		dst.Set(newSlice)
		return nil
	case *object.Table:
		if active[s] {
			return ErrCyclicValue
		}
		active[s] = true
		defer delete(active, s)
		switch dst.Kind() {
		case reflect.Map:
			if dst.Type().Key().Kind() != reflect.String {
				return fmt.Errorf("cannot unmarshal table into map with %s keys", dst.Type().Key())
			}
			newMap := reflect.MakeMap(dst.Type())
			for _, k := range s.Keys() {
				v, _ := s.Get(k)
				val := reflect.New(dst.Type().Elem()).Elem()
				if err := unmarshal(v, val, active); err != nil {
					return fmt.Errorf("error in map value for key %q: %w", k, err)
				}
				newMap.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), val)
			}
			dst.Set(newMap)
			return nil
		case reflect.Struct:
			dstFields := make(map[string]reflect.Value)
			for i := 0; i < dst.NumField(); i++ {
				field := dst.Type().Field(i)
				if field.PkgPath != "" {
					continue
				}
				dstFields[strings.ToLower(field.Name)] = dst.Field(i)
			}
			for _, k := range s.Keys() {
				if dstField, ok := dstFields[strings.ToLower(k)]; ok {
					v, _ := s.Get(k)
					if err := unmarshal(v, dstField, active); err != nil {
						return fmt.Errorf("error in struct field %q: %w", k, err)
					}
				}
			}
			return nil
		}
		return fmt.Errorf("cannot unmarshal table into %s", dst.Type())
	default:
		return fmt.Errorf("unsupported object type for unmarshaling: %s", src.Type())
	}
}

// toGo converts src into plain Go values: nil, float64, string, bool,
// []any and map[string]any.
func toGo(src object.Object, active map[object.Object]bool) (any, error) {
	switch s := src.(type) {
	case *object.Null:
		return nil, nil
	case *object.Number:
		return s.Value, nil
	case *object.String:
		return s.Value, nil
	case *object.Boolean:
		return s.Value, nil
	case *object.Array:
		if active[s] {
			return nil, ErrCyclicValue
		}
		active[s] = true
		defer delete(active, s)
		out := make([]any, len(s.Elements))
		for i, elem := range s.Elements {
			v, err := toGo(elem, active)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *object.Table:
		if active[s] {
			return nil, ErrCyclicValue
		}
		active[s] = true
		defer delete(active, s)
		out := make(map[string]any, s.Len())
		for _, k := range s.Keys() {
			elem, _ := s.Get(k)
			v, err := toGo(elem, active)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported object type for unmarshaling: %s", src.Type())
}
