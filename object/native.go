package object

import (
	"context"
	"io"
	"log/slog"

	"github.com/podhmo/rsl/token"
)

// NativeFunction is the calling convention for host-supplied functions. It
// receives already-evaluated arguments and returns a value, or fails with an
// error (normally one built by NewRuntimeError).
type NativeFunction func(ctx *NativeContext, args ...Object) (Object, error)

// NativeContext bundles what a native function may need from the
// interpreter at the call site.
type NativeContext struct {
	Context context.Context
	Name    string    // name the native was registered under
	Pos     token.Pos // position of the call expression

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Call invokes a script or native function value as an ordinary call.
	Call func(fn Object, args ...Object) (Object, error)
}

// Arity fails with an arity RuntimeError unless exactly want arguments were passed.
func (c *NativeContext) Arity(want int, args []Object) error {
	if len(args) != want {
		return NewRuntimeError(CodeArity, "%s: wrong number of arguments. got=%d, want=%d", c.Name, len(args), want)
	}
	return nil
}

// ArgError reports that argument i has the wrong type.
func (c *NativeContext) ArgError(i int, want ObjectType, got Object) error {
	return NewRuntimeError(CodeType, "%s: argument %d must be %s, got %s", c.Name, i+1, want, got.Type())
}
