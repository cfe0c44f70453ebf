package hostlib

import (
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/podhmo/rsl/fs"
	"github.com/podhmo/rsl/object"
)

// fileNatives reads and writes files relative to a work directory.
// There is no sandboxing: absolute paths and ".." are honored.
type fileNatives struct {
	fs      fs.FS
	workDir string
}

func (f *fileNatives) path(p string) string {
	if filepath.IsAbs(p) || f.workDir == "" {
		return p
	}
	return filepath.Join(f.workDir, p)
}

func (f *fileNatives) readFile(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	name, err := stringArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	data, err := f.fs.ReadFile(f.path(name))
	if err != nil {
		return nil, ioError(ctx, err)
	}
	return &object.String{Value: string(data)}, nil
}

func (f *fileNatives) writeFile(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(2, args); err != nil {
		return nil, err
	}
	name, err := stringArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	content, err := stringArg(ctx, args, 1)
	if err != nil {
		return nil, err
	}
	if err := f.fs.WriteFile(f.path(name), []byte(content), 0o644); err != nil {
		return nil, ioError(ctx, err)
	}
	ctx.Logger.DebugContext(ctx.Context, "file written", slog.String("path", f.path(name)), slog.Int("bytes", len(content)))
	return object.NULL, nil
}

// readDir returns the sorted entry names of a directory; directories get a
// trailing slash.
func (f *fileNatives) readDir(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	name, err := stringArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	entries, err := f.fs.ReadDir(f.path(name))
	if err != nil {
		return nil, ioError(ctx, err)
	}
	elems := make([]object.Object, len(entries))
	for i, e := range entries {
		n := e.Name()
		if e.IsDir() {
			n += "/"
		}
		elems[i] = &object.String{Value: n}
	}
	return &object.Array{Elements: elems}, nil
}

// canonicalVersion accepts versions with or without the leading "v".
func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

func builtinSemverValid(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(1, args); err != nil {
		return nil, err
	}
	v, err := stringArg(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	return object.NativeBool(semver.IsValid(canonicalVersion(v))), nil
}

// builtinSemverCompare returns -1, 0 or +1. Both arguments must be valid
// semantic versions.
func builtinSemverCompare(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
	if err := ctx.Arity(2, args); err != nil {
		return nil, err
	}
	versions := make([]string, 2)
	for i := range versions {
		v, err := stringArg(ctx, args, i)
		if err != nil {
			return nil, err
		}
		versions[i] = canonicalVersion(v)
		if !semver.IsValid(versions[i]) {
			return nil, object.NewRuntimeError(object.CodeValue, "%s: invalid semantic version %q", ctx.Name, v)
		}
	}
	return number(semver.Compare(versions[0], versions[1])), nil
}
