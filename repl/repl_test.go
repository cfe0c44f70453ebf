package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/rsl"
)

func TestBuffer(t *testing.T) {
	var b Buffer
	if got := b.Feed(""); got != Buffering {
		t.Errorf("blank line with empty buffer: state = %s, want Buffering", got)
	}
	if got := b.Feed("x = 1"); got != Buffering {
		t.Errorf("state = %s, want Buffering", got)
	}
	if got := b.Feed("y = 2"); got != Buffering {
		t.Errorf("state = %s, want Buffering", got)
	}
	if !b.Pending() {
		t.Errorf("expected pending lines")
	}
	if got := b.Feed("   "); got != ReadyToEvaluate {
		t.Fatalf("state = %s, want ReadyToEvaluate", got)
	}
	src, ok := b.Take()
	if !ok {
		t.Fatal("Take() should return the block")
	}
	if diff := cmp.Diff("x = 1\ny = 2", src); diff != "" {
		t.Errorf("block mismatch (-want +got):\n%s", diff)
	}
	if b.State() != Buffering || b.Pending() {
		t.Errorf("Take() should reset to an empty Buffering state")
	}
	if _, ok := b.Take(); ok {
		t.Errorf("Take() on an empty buffer should fail")
	}

	b.Feed("z")
	src, ok = b.Flush()
	if !ok || src != "z" {
		t.Errorf("Flush() = %q, %v", src, ok)
	}
}

func newInterpreter(t *testing.T) *rsl.Interpreter {
	t.Helper()
	interp, err := rsl.NewInterpreter(
		rsl.WithWorkDir(t.TempDir()),
		rsl.WithStdout(io.Discard),
		rsl.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatal(err)
	}
	return interp
}

func TestRun(t *testing.T) {
	input := strings.Join([]string{
		"x = 1",
		"",
		"fn inc(n) {",
		"  return n + 1",
		"}",
		"inc(x)",
		"",
		"if 5 { x = 100 }",
		"",
		"y = (",
		"",
		"x",
	}, "\n")

	var out bytes.Buffer
	interp := newInterpreter(t)
	r := NewLineReader(strings.NewReader(input), io.Discard)
	if err := Run(context.Background(), r, &out, interp); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if diff := cmp.Diff("null", lines[0]); diff != "" {
		t.Errorf("first result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("2", lines[1]); diff != "" {
		t.Errorf("second result mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(lines[2], "TypeError: if condition must be bool, got number") {
		t.Errorf("expected a TypeError, got %q", lines[2])
	}
	if !strings.Contains(out.String(), "parse error") {
		t.Errorf("expected a parse error in the transcript:\n%s", out.String())
	}
	// errors do not reset the environment; the last block is flushed at EOF
	if diff := cmp.Diff("1", lines[len(lines)-1]); diff != "" {
		t.Errorf("last result mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_CyclicValue(t *testing.T) {
	var out bytes.Buffer
	r := NewLineReader(strings.NewReader("t = {}\nt.self = t\nt\n\na = [1, 2]\na[1] = a\na\n"), io.Discard)
	if err := Run(context.Background(), r, &out, newInterpreter(t)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("{self: {...}}\n[1, [...]]\n", out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestNewLineReader(t *testing.T) {
	long := strings.Repeat("a", 200*1024)
	r := NewLineReader(strings.NewReader("one\r\n"+long+"\n\nlast"), io.Discard)
	var got []string
	for {
		line, err := r.ReadLine(Prompt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadLine() failed: %v", err)
		}
		got = append(got, line)
	}
	if diff := cmp.Diff([]string{"one", long, "", "last"}, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_LongLine(t *testing.T) {
	var out bytes.Buffer
	input := "s = \"" + strings.Repeat("x", 100*1024) + "\"\ns == s\n\n1 + 1\n"
	if err := Run(context.Background(), NewLineReader(strings.NewReader(input), io.Discard), &out, newInterpreter(t)); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if diff := cmp.Diff("true\n2\n", out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Prompts(t *testing.T) {
	var prompts bytes.Buffer
	r := NewLineReader(strings.NewReader("a = 1\nb = 2\n\n"), &prompts)
	if err := Run(context.Background(), r, io.Discard, newInterpreter(t)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("> . . > ", prompts.String()); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewLineReader(strings.NewReader("x = 1\n\n"), io.Discard)
	if err := Run(ctx, r, io.Discard, newInterpreter(t)); err == nil {
		t.Errorf("expected the cancellation error")
	}
}
