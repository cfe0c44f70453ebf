package loader_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/rsl/cache"
	"github.com/podhmo/rsl/evaluator"
	"github.com/podhmo/rsl/fs"
	"github.com/podhmo/rsl/loader"
	"github.com/podhmo/rsl/object"
	"github.com/podhmo/rsl/parser"
	"github.com/podhmo/rsl/token"
)

const workDir = "/work"

type harness struct {
	loader *loader.Loader
	eval   *evaluator.Evaluator
	fset   *token.FileSet
	loaded []string // arguments of trace(), in call order
}

func newHarness(t *testing.T, files map[string]string, embedded map[string]string) *harness {
	t.Helper()
	mem := make(map[string][]byte, len(files))
	for name, src := range files {
		mem[workDir+"/"+name] = []byte(src)
	}
	fset := token.NewFileSet()
	h := &harness{fset: fset}

	root := object.NewEnvironment()
	root.Set("trace", &object.Native{Name: "trace", Fn: func(ctx *object.NativeContext, args ...object.Object) (object.Object, error) {
		for _, a := range args {
			h.loaded = append(h.loaded, a.Inspect())
		}
		return object.NULL, nil
	}})

	h.eval = evaluator.New(evaluator.Config{Fset: fset})
	h.loader = loader.New(h.eval, loader.Config{
		Root:     root,
		Cache:    cache.New(fset, fs.NewOverlayFS(nil, mem), nil),
		WorkDir:  workDir,
		Embedded: embedded,
	})
	h.eval.SetImporter(h.loader)
	return h
}

// run evaluates src as the main program and returns its module frame.
func (h *harness) run(t *testing.T, src string) (object.Object, *object.Environment, error) {
	t.Helper()
	prog, err := parser.ParseFile(h.fset, "main.rsl", []byte(src))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	m := object.NewModule("main.rsl")
	env := object.NewModuleEnvironment(h.loader.Root(), m)
	val, err := h.eval.EvalProgram(context.Background(), prog, env)
	return val, env, err
}

func TestResolve(t *testing.T) {
	h := newHarness(t, nil, map[string]string{"util": ""})
	tests := []struct {
		path         string
		wantKey      string
		wantEmbedded bool
	}{
		{"lib/m.rsl", "/work/lib/m.rsl", false},
		{"./lib/../m.rsl", "/work/m.rsl", false},
		{"/abs/x.rsl", "/abs/x.rsl", false},
		{"util", "embedded:util", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			key, embedded := h.loader.Resolve(tt.path)
			if diff := cmp.Diff(tt.wantKey, key); diff != "" {
				t.Errorf("key mismatch (-want +got):\n%s", diff)
			}
			if embedded != tt.wantEmbedded {
				t.Errorf("embedded = %v, want %v", embedded, tt.wantEmbedded)
			}
		})
	}
}

func TestImport(t *testing.T) {
	h := newHarness(t, map[string]string{
		"lib/m.rsl": `
trace("m")
export value = 81
export fn sq(x) { return x * x }
`,
	}, nil)

	val, _, err := h.run(t, `
m = import("lib/m.rsl")
again = import("lib/m.rsl")
[m.value, m.sq(3), again.value]
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff("[81, 9, 81]", val.Inspect()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"m"}, h.loaded); diff != "" {
		t.Errorf("module should be evaluated once (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/work/lib/m.rsl"}, h.loader.Modules()); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}

	first, err := h.loader.Import(context.Background(), "lib/m.rsl")
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.loader.Import(context.Background(), "./lib/m.rsl")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("imports of the same file should return the identical table")
	}
}

func TestImport_Exports(t *testing.T) {
	h := newHarness(t, map[string]string{
		"m.rsl": `
export a = 1
local b = 2
c = 3
export fn f() { return a }
export counter = 0
counter = counter + 5
fn helper() { export inner = "x" }
helper()
`,
	}, nil)

	exports, err := h.loader.Import(context.Background(), "m.rsl")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "f", "counter", "inner"}, exports.Keys()); diff != "" {
		t.Errorf("export keys mismatch (-want +got):\n%s", diff)
	}
	counter, _ := exports.Get("counter")
	if diff := cmp.Diff("5", counter.Inspect()); diff != "" {
		t.Errorf("exports should hold final top-level values (-want +got):\n%s", diff)
	}
}

func TestImport_Isolation(t *testing.T) {
	h := newHarness(t, map[string]string{
		"m.rsl": `
export seen = secret
secret = "module"
export fn get() { return secret }
`,
	}, nil)

	val, env, err := h.run(t, `
secret = "main"
m = import("m.rsl")
[m.seen, m.get(), secret]
`)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(`[null, "module", "main"]`, val.Inspect()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if _, ok := env.Get("get"); ok {
		t.Errorf("module bindings must not leak into the importer")
	}
}

func TestImport_EmbeddedFirst(t *testing.T) {
	h := newHarness(t,
		map[string]string{"util": `export from = "file"`},
		map[string]string{"util": `export from = "embedded"`},
	)
	val, _, err := h.run(t, `import("util").from`)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("embedded", val.Inspect()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_Missing(t *testing.T) {
	h := newHarness(t, nil, nil)
	_, env, err := h.run(t, `
x = 1
y = import("nope.rsl")
x = 2
`)
	var oerr *object.Error
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *object.Error, got %v", err)
	}
	if oerr.Kind != object.ImportError {
		t.Errorf("Kind = %s, want ImportError", oerr.Kind)
	}
	if !strings.Contains(oerr.Message, `cannot import "nope.rsl"`) {
		t.Errorf("message should name the path: %q", oerr.Message)
	}
	if oerr.Cause == nil {
		t.Errorf("the underlying error should be kept as Cause")
	}
	if got := oerr.Position(); got.Line != 3 {
		t.Errorf("error line = %d, want 3", got.Line)
	}

	x, _ := env.Get("x")
	if diff := cmp.Diff("1", x.Inspect()); diff != "" {
		t.Errorf("x mismatch (-want +got):\n%s", diff)
	}
	if _, ok := env.Get("y"); ok {
		t.Errorf("y must not be bound after a failed import")
	}
}

func TestImport_Failures(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		path     string
		contains string
	}{
		{
			name:     "parse error",
			files:    map[string]string{"bad.rsl": "x = (1"},
			path:     "bad.rsl",
			contains: `cannot import "bad.rsl"`,
		},
		{
			name:     "runtime error",
			files:    map[string]string{"bad.rsl": `x = 1 + true`},
			path:     "bad.rsl",
			contains: "unsupported operand types for +: number and bool",
		},
		{
			name: "cycle",
			files: map[string]string{
				"a.rsl": `import("b.rsl")`,
				"b.rsl": `import("a.rsl")`,
			},
			path:     "a.rsl",
			contains: `import cycle: "a.rsl" is already being imported`,
		},
		{
			name:     "self import",
			files:    map[string]string{"self.rsl": `import("self.rsl")`},
			path:     "self.rsl",
			contains: "import cycle",
		},
		{
			name:     "non-string path",
			files:    map[string]string{"n.rsl": `import(1)`},
			path:     "n.rsl",
			contains: "import path must be string",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.files, nil)
			_, err := h.loader.Import(context.Background(), tt.path)
			var oerr *object.Error
			if !errors.As(err, &oerr) {
				t.Fatalf("expected *object.Error, got %v", err)
			}
			if oerr.Kind != object.ImportError {
				t.Errorf("Kind = %s, want ImportError", oerr.Kind)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error = %q, want it to contain %q", err, tt.contains)
			}
			if len(h.loader.Modules()) != 0 {
				t.Errorf("failed modules must not be cached: %v", h.loader.Modules())
			}
		})
	}
}

func TestImport_RetryAfterCycle(t *testing.T) {
	h := newHarness(t, map[string]string{
		"a.rsl": `import("b.rsl")`,
		"b.rsl": `import("a.rsl")`,
		"c.rsl": `export ok = true`,
	}, nil)
	if _, err := h.loader.Import(context.Background(), "a.rsl"); err == nil {
		t.Fatal("expected an import cycle")
	}
	exports, err := h.loader.Import(context.Background(), "c.rsl")
	if err != nil {
		t.Fatalf("loading state should be cleared after a failure: %v", err)
	}
	if diff := cmp.Diff("{ok: true}", exports.Inspect()); diff != "" {
		t.Errorf("exports mismatch (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	h := newHarness(t, map[string]string{
		"main.rsl": "trace(\"run\")\nexport v = 1\nv + 1\n",
	}, nil)
	for range 2 {
		val, m, err := h.loader.Run(context.Background(), "main.rsl")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff("2", val.Inspect()); diff != "" {
			t.Errorf("value mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("/work/main.rsl", m.Path); diff != "" {
			t.Errorf("path mismatch (-want +got):\n%s", diff)
		}
	}
	if diff := cmp.Diff([]string{"run", "run"}, h.loaded); diff != "" {
		t.Errorf("Run should evaluate every time (-want +got):\n%s", diff)
	}
	if len(h.loader.Modules()) != 0 {
		t.Errorf("Run must not fill the module cache")
	}
}

func TestRun_ErrorsAreNotWrapped(t *testing.T) {
	h := newHarness(t, map[string]string{"main.rsl": "x = 1\nx()\n"}, nil)
	_, _, err := h.loader.Run(context.Background(), "main.rsl")
	var oerr *object.Error
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *object.Error, got %v", err)
	}
	if oerr.Kind != object.TypeError {
		t.Errorf("Kind = %s, want TypeError", oerr.Kind)
	}
	if diff := cmp.Diff("/work/main.rsl:2:2", oerr.Position().String()); diff != "" {
		t.Errorf("position mismatch (-want +got):\n%s", diff)
	}
}
