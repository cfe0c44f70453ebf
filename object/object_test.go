package object

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/rsl/token"
)

func TestInspect(t *testing.T) {
	tbl := NewTable()
	tbl.Set("b", &Number{Value: 2})
	tbl.Set("a", &String{Value: "x"})

	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"null", NULL, "null"},
		{"true", TRUE, "true"},
		{"integral number", &Number{Value: 81}, "81"},
		{"fractional number", &Number{Value: 1.5}, "1.5"},
		{"negative number", &Number{Value: -3}, "-3"},
		{"string", &String{Value: "hi"}, "hi"},
		{"array", &Array{Elements: []Object{&Number{Value: 81}, &Number{Value: 64}, &Number{Value: 49}}}, "[81, 64, 49]"},
		{"array of strings", &Array{Elements: []Object{&String{Value: "a"}, NULL}}, `["a", null]`},
		{"table keeps insertion order", tbl, `{b: 2, a: "x"}`},
		{"native", &Native{Name: "print"}, "native fn print"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.obj.Inspect()); diff != "" {
				t.Errorf("Inspect() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInspect_Cyclic(t *testing.T) {
	self := NewTable()
	self.Set("name", &String{Value: "t"})
	self.Set("self", self)

	arr := &Array{Elements: []Object{&Number{Value: 1}}}
	arr.Elements = append(arr.Elements, arr)

	shared := &Array{Elements: []Object{&Number{Value: 0}}}
	outer := NewTable()
	outer.Set("a", shared)
	outer.Set("b", shared)

	nested := NewTable()
	inner := &Array{Elements: []Object{nested}}
	nested.Set("items", inner)

	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"table containing itself", self, `{name: "t", self: {...}}`},
		{"array containing itself", arr, "[1, [...]]"},
		{"shared but acyclic", outer, "{a: [0], b: [0]}"},
		{"indirect cycle", nested, "{items: [{...}]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.obj.Inspect()); diff != "" {
				t.Errorf("Inspect() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	arr := &Array{}
	tbl := NewTable()
	tests := []struct {
		name string
		a, b Object
		want bool
	}{
		{"numbers by value", &Number{Value: 1}, &Number{Value: 1}, true},
		{"different numbers", &Number{Value: 1}, &Number{Value: 2}, false},
		{"strings by value", &String{Value: "a"}, &String{Value: "a"}, true},
		{"null", NULL, &Null{}, true},
		{"bools", TRUE, &Boolean{Value: true}, true},
		{"mixed types", &Number{Value: 0}, FALSE, false},
		{"same array", arr, arr, true},
		{"distinct arrays", &Array{}, &Array{}, false},
		{"same table", tbl, tbl, true},
		{"distinct tables", NewTable(), NewTable(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable()
	tbl.Set("x", &Number{Value: 1})
	tbl.Set("y", &Number{Value: 2})
	tbl.Set("x", &Number{Value: 3})
	tbl.Delete("y")
	tbl.Delete("missing")

	if diff := cmp.Diff([]string{"x"}, tbl.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	v, ok := tbl.Get("x")
	if !ok || v.Inspect() != "3" {
		t.Errorf("Get(x) = %v, %v", v, ok)
	}
	if _, ok := tbl.Get("y"); ok {
		t.Errorf("y should be deleted")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

func TestEnvironment(t *testing.T) {
	t.Run("unset reads as null", func(t *testing.T) {
		env := NewEnvironment()
		if got := env.Resolve("nope"); got != NULL {
			t.Errorf("Resolve() = %v, want NULL", got)
		}
	})

	t.Run("assign updates the nearest binding", func(t *testing.T) {
		outer := NewEnvironment()
		outer.Set("x", &Number{Value: 1})
		inner := NewEnclosedEnvironment(outer)
		inner.Assign("x", &Number{Value: 2})

		if got := outer.Resolve("x").Inspect(); got != "2" {
			t.Errorf("outer x = %s, want 2", got)
		}
		if diff := cmp.Diff([]string{}, inner.Names()); diff != "" {
			t.Errorf("inner frame should stay empty (-want +got):\n%s", diff)
		}
	})

	t.Run("assign creates in current frame when unbound", func(t *testing.T) {
		outer := NewEnvironment()
		inner := NewEnclosedEnvironment(outer)
		inner.Assign("y", TRUE)

		if _, ok := outer.Get("y"); ok {
			t.Errorf("y leaked into outer frame")
		}
		if got := inner.Resolve("y"); got != TRUE {
			t.Errorf("inner y = %v, want true", got)
		}
	})

	t.Run("set shadows", func(t *testing.T) {
		outer := NewEnvironment()
		outer.Set("x", &Number{Value: 1})
		inner := NewEnclosedEnvironment(outer)
		inner.Set("x", &Number{Value: 2})

		if got := outer.Resolve("x").Inspect(); got != "1" {
			t.Errorf("outer x = %s, want 1", got)
		}
		if got := inner.Resolve("x").Inspect(); got != "2" {
			t.Errorf("inner x = %s, want 2", got)
		}
	})
}

func TestModuleExports(t *testing.T) {
	root := NewEnvironment()
	if root.Export("x", NULL) {
		t.Fatalf("Export outside a module should report false")
	}

	m := NewModule("lib.rsl")
	env := NewModuleEnvironment(root, m)
	env.Export("a", &Number{Value: 1})
	env.Set("hidden", &Number{Value: 2})

	block := NewEnclosedEnvironment(env)
	block.Export("nested", &Number{Value: 3})

	// a later plain assignment to a top-level export is picked up by Finalize
	env.Assign("a", &Number{Value: 10})
	m.Finalize()

	if diff := cmp.Diff([]string{"a", "nested"}, m.Exports.Keys()); diff != "" {
		t.Errorf("export keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := m.Exports.Get("a"); v.Inspect() != "10" {
		t.Errorf("a = %s, want 10", v.Inspect())
	}
	if _, ok := env.Get("nested"); ok {
		t.Errorf("nested export must be bound only in its block frame")
	}
	if block.Module() != m {
		t.Errorf("Module() should find the enclosing module")
	}
}

func TestErrorFormatting(t *testing.T) {
	fset := token.NewFileSet()
	f := fset.AddFile("main.rsl", -1, 20)
	f.AddLine(10)
	pos := f.Pos(12)

	err := NewRuntimeError(CodeRange, "index %d out of range", 3)
	err.Pos = pos
	err.CallStack = []*CallFrame{
		{Pos: f.Pos(0), Function: "outer"},
		{Pos: f.Pos(11), Function: ""},
	}
	err.AttachFileSet(fset)

	if diff := cmp.Diff("main.rsl:2:3: RuntimeError(range): index 3 out of range", err.Error()); diff != "" {
		t.Errorf("Error() mismatch (-want +got):\n%s", diff)
	}

	got := err.Inspect()
	for _, want := range []string{
		"RuntimeError: index 3 out of range",
		"main.rsl:2:3:",
		"in <anonymous>",
		"in outer",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Inspect() = %q, want it to contain %q", got, want)
		}
	}
	if strings.Index(got, "<anonymous>") > strings.Index(got, "outer") {
		t.Errorf("most recent frame should come first:\n%s", got)
	}

	noPos := NewError(TypeError, "boom")
	if diff := cmp.Diff("TypeError: boom", noPos.Error()); diff != "" {
		t.Errorf("Error() mismatch (-want +got):\n%s", diff)
	}
}
