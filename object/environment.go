package object

import "sort"

// Environment is one lexical frame: its own bindings plus a link to the
// enclosing frame. A frame outlives its block when a Function captured it.
type Environment struct {
	store  map[string]Object
	outer  *Environment
	module *Module // set only on a module's top-level frame
}

// NewEnvironment creates a new, top-level environment.
func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]Object)}
}

// NewEnclosedEnvironment creates a new environment that is enclosed by an outer one.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

// NewModuleEnvironment creates the top-level frame of module m, enclosed by
// outer (normally the interpreter's root frame holding natives).
func NewModuleEnvironment(outer *Environment, m *Module) *Environment {
	env := NewEnclosedEnvironment(outer)
	env.module = m
	m.Env = env
	return env
}

// Get retrieves an object by name, checking outer scopes if necessary.
func (e *Environment) Get(name string) (Object, bool) {
	for env := e; env != nil; env = env.outer {
		if obj, ok := env.store[name]; ok {
			return obj, true
		}
	}
	return nil, false
}

// Resolve is Get where an unbound name reads as NULL.
func (e *Environment) Resolve(name string) Object {
	if obj, ok := e.Get(name); ok {
		return obj
	}
	return NULL
}

// Set binds name in the current frame only (`local` semantics).
func (e *Environment) Set(name string, val Object) Object {
	e.store[name] = val
	return val
}

// Assign updates the nearest frame that already binds name, or creates the
// binding in the current frame when no visible frame does.
func (e *Environment) Assign(name string, val Object) Object {
	for env := e; env != nil; env = env.outer {
		if _, ok := env.store[name]; ok {
			env.store[name] = val
			return val
		}
	}
	e.store[name] = val
	return val
}

// Export binds name in the current frame and records it in the export table
// of the innermost enclosing module. It reports false when no module encloses e.
func (e *Environment) Export(name string, val Object) bool {
	m := e.Module()
	if m == nil {
		return false
	}
	e.store[name] = val
	m.export(name, val, e == m.Env)
	return true
}

// Module returns the innermost module whose top-level frame encloses e.
func (e *Environment) Module() *Module {
	for env := e; env != nil; env = env.outer {
		if env.module != nil {
			return env.module
		}
	}
	return nil
}

// Names returns the names bound in this frame, sorted.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for k := range e.store {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Module is one script's top-level frame plus its export table.
type Module struct {
	Path    string
	Env     *Environment
	Exports *Table

	topLevel map[string]bool // names exported from the top-level frame
}

// NewModule creates a module with an empty export table. Its frame is
// attached by NewModuleEnvironment.
func NewModule(path string) *Module {
	return &Module{Path: path, Exports: NewTable(), topLevel: make(map[string]bool)}
}

func (m *Module) export(name string, val Object, topLevel bool) {
	m.Exports.Set(name, val)
	if topLevel {
		m.topLevel[name] = true
	}
}

// Finalize refreshes the export table from the module frame so that it
// holds the final values of names exported at top level.
func (m *Module) Finalize() {
	if m.Env == nil {
		return
	}
	for name := range m.topLevel {
		if v, ok := m.Env.store[name]; ok {
			m.Exports.Set(name, v)
		}
	}
}
