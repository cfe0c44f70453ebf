// Package hostlib is a host library of native functions for RSL: output,
// conversions, arrays, tables, JSON and YAML, files and version strings.
//
// None of it is part of the language core; hosts install it explicitly.
package hostlib

import (
	"strings"
	"unicode/utf8"

	"github.com/podhmo/rsl"
	"github.com/podhmo/rsl/fs"
	"github.com/podhmo/rsl/object"
)

// Install registers the host library with the interpreter.
func Install(interp *rsl.Interpreter) {
	for name, fn := range Natives(interp.FS(), interp.WorkDir()) {
		interp.Register(name, fn)
	}
}

// Natives returns the host library. File natives read and write through
// fsys, resolving relative paths against workDir.
func Natives(fsys fs.FS, workDir string) map[string]object.NativeFunction {
	files := &fileNatives{fs: fsys, workDir: workDir}
	return map[string]object.NativeFunction{
		"print":    builtinPrint,
		"toString": builtinToString,
		"len":      builtinLen,
		"floor":    builtinFloor,

		"createArray":   builtinCreateArray,
		"arrayLen":      builtinArrayLen,
		"arrayGet":      builtinArrayGet,
		"arraySet":      builtinArraySet,
		"arrayPushBack": builtinArrayPushBack,
		"arrayPopBack":  builtinArrayPopBack,
		"arrayRemove":   builtinArrayRemove,

		"createTable": builtinCreateTable,
		"tableSet":    builtinTableSet,
		"tableGet":    builtinTableGet,
		"tableKeys":   builtinTableKeys,

		"splitLines": builtinSplitLines,
		"toJSON":     builtinToJSON,
		"fromJSON":   builtinFromJSON,
		"toYAML":     builtinToYAML,
		"fromYAML":   builtinFromYAML,

		"readFile":  files.readFile,
		"writeFile": files.writeFile,
		"readDir":   files.readDir,

		"semverCompare": builtinSemverCompare,
		"semverValid":   builtinSemverValid,
	}
}

func builtinPrint(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.Inspect()
	}
	if _, err := ctx.Stdout.Write([]byte(strings.Join(parts, " ") + "\n")); err != nil {
		return nil, ioError(ctx, err)
	}
	return object.NULL, nil
}

func builtinToString(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	if s, ok := args[0].(*object.String); ok {
		return s, nil
	}
	return &object.String{Value: args[0].Inspect()}, nil
}

func builtinLen(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	switch arg := args[0].(type) {
	case *object.String:
		return number(utf8.RuneCountInString(arg.Value)), nil
	case *object.Array:
		return number(len(arg.Elements)), nil
	case *object.Table:
		return number(arg.Len()), nil
	}
	return nil, object.NewRuntimeError(object.CodeType, "len: argument 1 must be string, array or table, got %s", args[0].Type())
}

func builtinFloor(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	n, err := numberArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	return &object.Number{Value: floor(n)}, nil
}

func builtinSplitLines(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	s, err := stringArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	lines := []object.Object{}
	if s != "" {
		for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
			lines = append(lines, &object.String{Value: strings.TrimSuffix(line, "\r")})
		}
	}
	return &object.Array{Elements: lines}, nil
}

// --- argument helpers ---

func number(n int) *object.Number {
	return &object.Number{Value: float64(n)}
}

func numberArg(ctx *object.NativeContext, args []object.Object, i int) (float64, error) {
	n, ok := args[i].(*object.Number)
	if !ok {
		return 0, ctx.ArgError(i, object.NUMBER_OBJ, args[i])
	}
	return n.Value, nil
}

func stringArg(ctx *object.NativeContext, args []object.Object, i int) (string, error) {
	s, ok := args[i].(*object.String)
	if !ok {
		return "", ctx.ArgError(i, object.STRING_OBJ, args[i])
	}
	return s.Value, nil
}

func arrayArg(ctx *object.NativeContext, args []object.Object, i int) (*object.Array, error) {
	a, ok := args[i].(*object.Array)
	if !ok {
		return nil, ctx.ArgError(i, object.ARRAY_OBJ, args[i])
	}
	return a, nil
}

func tableArg(ctx *object.NativeContext, args []object.Object, i int) (*object.Table, error) {
	t, ok := args[i].(*object.Table)
	if !ok {
		return nil, ctx.ArgError(i, object.TABLE_OBJ, args[i])
	}
	return t, nil
}

// indexArg reads argument i as an index into a sequence of length n.
func indexArg(ctx *object.NativeContext, args []object.Object, i int, n int) (int, error) {
	v, err := numberArg(ctx, args, i)
	if err != nil {
		return 0, err
	}
	if v != floor(v) || v < 0 || v >= float64(n) {
		return 0, object.NewRuntimeError(object.CodeRange, "%s: index %s out of range [0, %d)", ctx.Name, object.FormatNumber(v), n)
	}
	return int(v), nil
}

func ioError(ctx *object.NativeContext, err error) error {
	rerr := object.NewRuntimeError(object.CodeIO, "%s: %v", ctx.Name, err)
	rerr.Cause = err
	return rerr
}
