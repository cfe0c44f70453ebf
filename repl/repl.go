// Package repl implements the interactive read-eval-print loop.
//
// Input lines are buffered until an empty line is entered; the buffered text
// is then evaluated as one program against a persistent environment.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/podhmo/rsl"
	"github.com/podhmo/rsl/object"
)

const (
	Prompt             = "> "
	ContinuationPrompt = ". "
)

// State is the state of a Buffer.
type State int

const (
	// Buffering collects input lines.
	Buffering State = iota
	// ReadyToEvaluate holds a complete block that has not been taken yet.
	ReadyToEvaluate
)

func (s State) String() string {
	if s == ReadyToEvaluate {
		return "ReadyToEvaluate"
	}
	return "Buffering"
}

// Buffer is the line-buffering state machine of the REPL.
// Feed lines with Feed; when it reports ReadyToEvaluate, take the block
// with Take, which returns the machine to Buffering.
type Buffer struct {
	lines []string
	ready string
	state State
}

// Feed adds one input line. A blank line completes the buffered block;
// blank lines with nothing buffered are ignored.
func (b *Buffer) Feed(line string) State {
	if b.state == ReadyToEvaluate {
		// an untaken block is dropped
		b.ready = ""
		b.state = Buffering
	}
	if strings.TrimSpace(line) == "" {
		if len(b.lines) > 0 {
			b.ready = strings.Join(b.lines, "\n")
			b.lines = b.lines[:0]
			b.state = ReadyToEvaluate
		}
		return b.state
	}
	b.lines = append(b.lines, line)
	return b.state
}

// Take returns the completed block and resets the machine to Buffering.
func (b *Buffer) Take() (string, bool) {
	if b.state != ReadyToEvaluate {
		return "", false
	}
	src := b.ready
	b.ready = ""
	b.state = Buffering
	return src, true
}

// Flush completes whatever is buffered, e.g. at end of input.
func (b *Buffer) Flush() (string, bool) {
	if len(b.lines) == 0 {
		return "", false
	}
	src := strings.Join(b.lines, "\n")
	b.lines = b.lines[:0]
	return src, true
}

// State returns the current state.
func (b *Buffer) State() State { return b.state }

// Pending reports whether lines are buffered.
func (b *Buffer) Pending() bool { return len(b.lines) > 0 }

// Evaluator evaluates a block against a persistent environment.
// *rsl.Interpreter satisfies it.
type Evaluator interface {
	EvalPersistent(ctx context.Context, source string) (*rsl.Result, error)
}

// LineReader reads one line of input after showing prompt. It returns io.EOF
// at the end of input.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// NewLineReader reads lines from in and writes prompts to out. Lines may be
// of any length.
func NewLineReader(in io.Reader, out io.Writer) LineReader {
	return &bufferedReader{r: bufio.NewReader(in), out: out}
}

type bufferedReader struct {
	r   *bufio.Reader
	out io.Writer
}

func (r *bufferedReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// Run drives the loop until the input ends or ctx is cancelled. Results are
// written to out; errors are written to out as well and never end the loop.
func Run(ctx context.Context, r LineReader, out io.Writer, ev Evaluator) error {
	var buf Buffer
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		prompt := Prompt
		if buf.Pending() {
			prompt = ContinuationPrompt
		}
		line, err := r.ReadLine(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if src, ok := buf.Flush(); ok {
					evalBlock(ctx, out, ev, src)
				}
				return nil
			}
			return err
		}
		if buf.Feed(line) == ReadyToEvaluate {
			src, _ := buf.Take()
			evalBlock(ctx, out, ev, src)
		}
	}
}

func evalBlock(ctx context.Context, out io.Writer, ev Evaluator, src string) {
	res, err := ev.EvalPersistent(ctx, src)
	if err != nil {
		fmt.Fprintln(out, FormatError(err))
		return
	}
	fmt.Fprintln(out, res.Value.Inspect())
}

// FormatError renders err with its position; runtime errors include the
// call stack.
func FormatError(err error) string {
	var oerr *object.Error
	if errors.As(err, &oerr) {
		return strings.TrimRight(oerr.Inspect(), "\n")
	}
	return err.Error()
}
