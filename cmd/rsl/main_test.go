package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/rsl/rsltest"
)

func TestLoadConfig(t *testing.T) {
	dir, cleanup := rsltest.WriteFiles(t, map[string]string{
		"rsl.toml": `
workdir = "scripts"
log_level = "debug"
parallel = 3

[modules]
util = "lib/util.rsl"
`,
	})
	defer cleanup()

	cfg, err := LoadConfig(filepath.Join(dir, "rsl.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	want := &Config{
		WorkDir:  filepath.Join(dir, "scripts"),
		LogLevel: "debug",
		Parallel: 3,
		Modules:  map[string]string{"util": filepath.Join(dir, "lib", "util.rsl")},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{"unknown key", `colour = "red"`, "unknown keys"},
		{"bad level", `log_level = "loud"`, "unknown log level: loud"},
		{"negative parallel", `parallel = -1`, "parallel must not be negative"},
		{"syntax", `workdir = `, "decoding config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, cleanup := rsltest.WriteFiles(t, map[string]string{"rsl.toml": tt.content})
			defer cleanup()
			_, err := LoadConfig(filepath.Join(dir, "rsl.toml"))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error = %q, want it to contain %q", err, tt.contains)
			}
		})
	}
}

func TestOptionsApply(t *testing.T) {
	dir, cleanup := rsltest.WriteFiles(t, map[string]string{
		"lib/util.rsl": `export twice = fn (x) { return x * 2 }`,
	})
	defer cleanup()

	cfg := &Config{
		WorkDir:  "/from/config",
		LogLevel: "error",
		Parallel: 8,
		Modules:  map[string]string{"util": filepath.Join(dir, "lib", "util.rsl")},
	}
	o := &options{workDir: "/from/flag", parallel: 2}
	level := new(slog.LevelVar)
	if err := o.apply(cfg, map[string]bool{"workdir": true}, level); err != nil {
		t.Fatal(err)
	}
	if o.workDir != "/from/flag" {
		t.Errorf("explicit -workdir should win, got %q", o.workDir)
	}
	if o.parallel != 8 {
		t.Errorf("parallel = %d, want 8", o.parallel)
	}
	if level.Level() != slog.LevelError {
		t.Errorf("level = %s, want ERROR", level.Level())
	}
	if diff := cmp.Diff(map[string]string{"util": `export twice = fn (x) { return x * 2 }`}, o.embedded); diff != "" {
		t.Errorf("embedded mismatch (-want +got):\n%s", diff)
	}
}

func TestLogLevelVar(t *testing.T) {
	v := &logLevelVar{levelVar: new(slog.LevelVar)}
	if err := v.Set("DEBUG"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("DEBUG", v.String()); diff != "" {
		t.Errorf("level mismatch (-want +got):\n%s", diff)
	}
	if err := v.Set("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func newTestOptions(t *testing.T, dir string, parallel int) (*options, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	return &options{
		workDir:  dir,
		parallel: parallel,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		stdin:    strings.NewReader(""),
		stdout:   &stdout,
		stderr:   &stderr,
		embedded: map[string]string{"greeting": `export hello = "hello"`},
	}, &stdout, &stderr
}

func TestRunFiles(t *testing.T) {
	dir, cleanup := rsltest.WriteFiles(t, map[string]string{
		"lib.rsl": `export fn name(i) { return "script" + toString(i) }`,
		"a.rsl":   `lib = import("lib.rsl"); g = import("greeting"); print(g.hello, lib.name(1))`,
		"b.rsl":   `lib = import("lib.rsl"); print(lib.name(2))`,
		"c.rsl":   `lib = import("lib.rsl"); print(lib.name(3))`,
	})
	defer cleanup()

	for _, parallel := range []int{1, 4} {
		o, stdout, stderr := newTestOptions(t, dir, parallel)
		if err := runFiles(context.Background(), o, []string{"a.rsl", "b.rsl", "c.rsl"}); err != nil {
			t.Fatalf("parallel=%d: runFiles() failed: %v\nstderr:\n%s", parallel, err, stderr)
		}
		want := "hello script1\nscript2\nscript3\n"
		if diff := cmp.Diff(want, stdout.String()); diff != "" {
			t.Errorf("parallel=%d: stdout mismatch (-want +got):\n%s", parallel, diff)
		}
	}
}

func TestRunFiles_Failure(t *testing.T) {
	dir, cleanup := rsltest.WriteFiles(t, map[string]string{
		"ok.rsl":  `print("ok")`,
		"bad.rsl": "x = 1\ny = x + \"s\"\n",
	})
	defer cleanup()

	o, stdout, stderr := newTestOptions(t, dir, 2)
	err := runFiles(context.Background(), o, []string{"ok.rsl", "bad.rsl", "missing.rsl"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if diff := cmp.Diff("2 of 3 scripts failed", err.Error()); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("ok\n", stdout.String()); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
	report := stderr.String()
	for _, want := range []string{"bad.rsl: TypeError: unsupported operand types for +: number and string", "bad.rsl:2:", "missing.rsl: "} {
		if !strings.Contains(report, want) {
			t.Errorf("stderr should contain %q:\n%s", want, report)
		}
	}
}

func TestRunREPL_NonTerminal(t *testing.T) {
	dir := t.TempDir()
	o, stdout, _ := newTestOptions(t, dir, 1)
	o.stdin = strings.NewReader("g = import(\"greeting\")\ng.hello\n\n")
	if err := runREPL(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("hello\n", stdout.String()); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}
