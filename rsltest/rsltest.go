// Package rsltest provides helpers for testing RSL scripts and hosts.
package rsltest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/podhmo/rsl"
	"github.com/podhmo/rsl/hostlib"
)

// WriteFiles creates a temporary directory and populates it with initial files.
// It returns the path to the directory and a cleanup function.
func WriteFiles(t *testing.T, files map[string]string) (string, func()) {
	t.Helper()
	dir := t.TempDir()

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll(%q): %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile(%q): %v", path, err)
		}
	}
	return dir, func() { /* t.TempDir handles cleanup */ }
}

// Runner is a test helper for running scripts in an isolated work directory
// with the host library installed and stdout captured.
type Runner struct {
	dir    string
	stdout *bytes.Buffer
	interp *rsl.Interpreter
}

// NewRunner writes files into a fresh temp dir and creates an interpreter
// rooted there. Extra options are applied after the defaults.
func NewRunner(t *testing.T, files map[string]string, options ...rsl.Option) *Runner {
	t.Helper()
	dir, _ := WriteFiles(t, files)
	r := &Runner{dir: dir, stdout: &bytes.Buffer{}}

	opts := []rsl.Option{
		rsl.WithWorkDir(dir),
		rsl.WithStdout(r.stdout),
		rsl.WithStderr(io.Discard),
		rsl.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	opts = append(opts, options...)
	interp, err := rsl.NewInterpreter(opts...)
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	hostlib.Install(interp)
	r.interp = interp
	return r
}

// Dir returns the work directory of the runner.
func (r *Runner) Dir() string { return r.dir }

// Interpreter returns the underlying interpreter.
func (r *Runner) Interpreter() *rsl.Interpreter { return r.interp }

// Stdout returns everything scripts printed so far.
func (r *Runner) Stdout() string { return r.stdout.String() }

// Run evaluates source as the program main.rsl.
func (r *Runner) Run(ctx context.Context, source string) (*rsl.Result, error) {
	return r.interp.EvalSource(ctx, "main.rsl", source)
}

// RunFile runs a file of the work directory.
func (r *Runner) RunFile(ctx context.Context, name string) (*rsl.Result, error) {
	return r.interp.RunFile(ctx, name)
}
