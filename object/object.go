// Package object defines the runtime value model of RSL: values, lexical
// environments, modules, runtime errors and the native calling convention.
package object

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
	"github.com/podhmo/rsl/ast"
)

// ObjectType is a string representation of an object's type.
type ObjectType string

const (
	NULL_OBJ     ObjectType = "null"
	BOOLEAN_OBJ  ObjectType = "bool"
	NUMBER_OBJ   ObjectType = "number"
	STRING_OBJ   ObjectType = "string"
	ARRAY_OBJ    ObjectType = "array"
	TABLE_OBJ    ObjectType = "table"
	FUNCTION_OBJ ObjectType = "function"
	NATIVE_OBJ   ObjectType = "native function"
)

// Object is the interface that all runtime values implement.
//
// Null, Boolean, Number and String are value types: they are immutable, so
// sharing a pointer is indistinguishable from copying. Array, Table and
// Function are reference types: every holder shares the same storage and a
// mutation through one alias is visible through all others.
type Object interface {
	// Type returns the type of the object.
	Type() ObjectType
	// Inspect returns a string representation of the object's value.
	Inspect() string
}

// --- Null Object ---

// Null is the value of unset identifiers and of functions without a return.
type Null struct{}

func (n *Null) Type() ObjectType { return NULL_OBJ }
func (n *Null) Inspect() string  { return "null" }

// --- Boolean Object ---

// Boolean represents true or false.
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

// --- Number Object ---

// Number is a double-precision float.
type Number struct {
	Value float64
}

func (n *Number) Type() ObjectType { return NUMBER_OBJ }
func (n *Number) Inspect() string  { return FormatNumber(n.Value) }

// FormatNumber renders integral values without a fractional part.
func FormatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// --- String Object ---

// String is an immutable string value.
type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }

// --- Array Object ---

// Array is an ordered, mutable sequence shared by reference.
type Array struct {
	Elements []Object
}

func (a *Array) Type() ObjectType { return ARRAY_OBJ }

func (a *Array) Inspect() string {
	var out bytes.Buffer
	writeRepr(&out, a, map[Object]bool{}, false)
	return out.String()
}

// --- Table Object ---

// Table is a string-keyed mapping shared by reference. Iteration follows
// insertion order so that printing is deterministic.
type Table struct {
	m *orderedmap.OrderedMap
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{m: orderedmap.New()}
}

func (t *Table) Type() ObjectType { return TABLE_OBJ }

func (t *Table) Inspect() string {
	var out bytes.Buffer
	writeRepr(&out, t, map[Object]bool{}, false)
	return out.String()
}

// Get returns the value stored under key.
func (t *Table) Get(key string) (Object, bool) {
	v, ok := t.m.Get(key)
	if !ok {
		return nil, false
	}
	return v.(Object), true
}

// Set stores val under key.
func (t *Table) Set(key string, val Object) {
	t.m.Set(key, val)
}

// Delete removes key; it is a no-op for missing keys.
func (t *Table) Delete(key string) {
	t.m.Delete(key)
}

// Keys returns the keys in insertion order.
func (t *Table) Keys() []string {
	return t.m.Keys()
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.m.Keys())
}

// Ordered exposes the backing ordered map, e.g. for JSON encoding.
func (t *Table) Ordered() *orderedmap.OrderedMap {
	return t.m
}

// --- Function Object ---

// Function is a closure: parameters and body plus the environment that was
// active when the function literal was evaluated.
type Function struct {
	Name       string // empty for anonymous functions
	Parameters []*ast.Ident
	Body       *ast.Block
	Env        *Environment
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }

func (f *Function) Inspect() string {
	params := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		params[i] = p.Name
	}
	name := f.Name
	if name != "" {
		name += " "
	}
	return fmt.Sprintf("fn %s(%s)", name, strings.Join(params, ", "))
}

// --- Native Object ---

// Native is a host-supplied function.
type Native struct {
	Name string
	Fn   NativeFunction
}

func (n *Native) Type() ObjectType { return NATIVE_OBJ }
func (n *Native) Inspect() string  { return "native fn " + n.Name }

// writeRepr renders obj into out. Strings are quoted when quote is set,
// which is the case for container elements. active holds the containers
// being rendered on the current path; a container that contains itself is
// rendered as [...] or {...} at the point of recursion.
func writeRepr(out *bytes.Buffer, obj Object, active map[Object]bool, quote bool) {
	switch o := obj.(type) {
	case nil:
		out.WriteString("null")
	case *String:
		if quote {
			out.WriteString(strconv.Quote(o.Value))
		} else {
			out.WriteString(o.Value)
		}
	case *Array:
		if active[o] {
			out.WriteString("[...]")
			return
		}
		active[o] = true
		defer delete(active, o)
		out.WriteString("[")
		for i, e := range o.Elements {
			if i > 0 {
				out.WriteString(", ")
			}
			writeRepr(out, e, active, true)
		}
		out.WriteString("]")
	case *Table:
		if active[o] {
			out.WriteString("{...}")
			return
		}
		active[o] = true
		defer delete(active, o)
		out.WriteString("{")
		for i, k := range o.m.Keys() {
			if i > 0 {
				out.WriteString(", ")
			}
			v, _ := o.Get(k)
			out.WriteString(k)
			out.WriteString(": ")
			writeRepr(out, v, active, true)
		}
		out.WriteString("}")
	default:
		out.WriteString(obj.Inspect())
	}
}

// --- Global Instances ---

var (
	NULL  = &Null{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

// NativeBool converts a Go bool to the shared Boolean instances.
func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// Equal reports whether a and b are equal. Value types compare by value,
// reference types (and natives) by identity. Values of different types are
// never equal.
func Equal(a, b Object) bool {
	switch x := a.(type) {
	case *Null:
		_, ok := b.(*Null)
		return ok
	case *Boolean:
		y, ok := b.(*Boolean)
		return ok && x.Value == y.Value
	case *Number:
		y, ok := b.(*Number)
		return ok && x.Value == y.Value
	case *String:
		y, ok := b.(*String)
		return ok && x.Value == y.Value
	default:
		return a == b
	}
}
