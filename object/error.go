package object

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/podhmo/rsl/token"
)

// ErrorKind classifies runtime errors.
type ErrorKind string

const (
	// TypeError is an operand, condition or callee kind mismatch.
	TypeError ErrorKind = "TypeError"
	// RuntimeError is a failure reported by a native function.
	RuntimeError ErrorKind = "RuntimeError"
	// ImportError is an unresolved or unparsable module.
	ImportError ErrorKind = "ImportError"
)

// Codes for RuntimeError, describing what kind of native failure occurred.
const (
	CodeArity  = "arity"
	CodeType   = "type"
	CodeRange  = "range"
	CodeIO     = "io"
	CodeValue  = "value"
	CodeNative = "native"
)

// CallFrame represents a single frame in the call stack.
type CallFrame struct {
	Pos      token.Pos
	Function string // Name of the function for stack traces
}

// Format formats the call frame into a readable string.
func (cf *CallFrame) Format(fset *token.FileSet) string {
	funcName := cf.Function
	if funcName == "" {
		funcName = "<anonymous>"
	}
	if fset == nil || !cf.Pos.IsValid() {
		return fmt.Sprintf("\tin %s", funcName)
	}
	position := fset.Position(cf.Pos)
	return fmt.Sprintf("\t%s:%d:%d:\tin %s", position.Filename, position.Line, position.Column, funcName)
}

// Error is a runtime error raised during evaluation. It propagates through
// every enclosing block and call up to the entry point that started
// evaluation; scripts cannot catch it.
type Error struct {
	Kind      ErrorKind
	Code      string // sub-kind for RuntimeError, see the Code* constants
	Pos       token.Pos
	Message   string
	CallStack []*CallFrame
	Cause     error

	fset *token.FileSet // FileSet to resolve positions
}

// NewError creates an error of the given kind without position information.
// The evaluator fills in the position and call stack when it sees the error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewRuntimeError creates a RuntimeError with the given code; this is what
// native functions return on failure.
func NewRuntimeError(code string, format string, args ...any) *Error {
	return &Error{Kind: RuntimeError, Code: code, Message: fmt.Sprintf(format, args...)}
}

// AttachFileSet attaches the FileSet that Pos and the call stack refer to.
func (e *Error) AttachFileSet(fset *token.FileSet) {
	e.fset = fset
}

// Position resolves Pos, returning the zero Position when it is unknown.
func (e *Error) Position() token.Position {
	if e.fset == nil || !e.Pos.IsValid() {
		return token.Position{}
	}
	return e.fset.Position(e.Pos)
}

// Error makes it a valid Go error.
func (e *Error) Error() string {
	var b strings.Builder
	if pos := e.Position(); pos.IsValid() {
		b.WriteString(pos.String())
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString("(" + e.Code + ")")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Inspect returns a formatted string representation of the error, including
// the offending source line and the call stack.
func (e *Error) Inspect() string {
	var out bytes.Buffer

	out.WriteString(string(e.Kind))
	out.WriteString(": ")
	out.WriteString(e.Message)

	if pos := e.Position(); pos.IsValid() {
		out.WriteString(fmt.Sprintf("\n\t%s:%d:%d:", pos.Filename, pos.Line, pos.Column))
		if line, err := getSourceLine(pos.Filename, pos.Line); err == nil && line != "" {
			out.WriteString("\n\t\t" + line)
		}
	}
	out.WriteString("\n")

	// Print the call stack in reverse order (most recent call first)
	for i := len(e.CallStack) - 1; i >= 0; i-- {
		out.WriteString(e.CallStack[i].Format(e.fset))
		out.WriteString("\n")
	}
	return out.String()
}

// getSourceLine reads a specific line from a file. Missing files (e.g.
// REPL input or embedded modules) yield an empty line.
func getSourceLine(filename string, lineNum int) (string, error) {
	if filename == "" || lineNum <= 0 {
		return "", nil
	}
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	currentLine := 1
	for scanner.Scan() {
		if currentLine == lineNum {
			return strings.TrimSpace(scanner.Text()), nil
		}
		currentLine++
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", nil
}
