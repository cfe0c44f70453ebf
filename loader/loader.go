// Package loader resolves `import(path)` to a module's export table.
//
// Paths are resolved against the working directory of the interpreter, not
// against the directory of the importing file. Host-embedded modules are
// consulted before the file system. Every module is evaluated at most once
// per Loader; later imports return the same export table.
package loader

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/podhmo/rsl/ast"
	"github.com/podhmo/rsl/cache"
	"github.com/podhmo/rsl/evaluator"
	"github.com/podhmo/rsl/object"
)

const embeddedPrefix = "embedded:"

// Config holds the settings of a Loader.
type Config struct {
	// Root is the frame holding natives; every module frame is its child.
	Root *object.Environment
	// Cache parses files and embedded sources. Its FileSet must be the one
	// the evaluator resolves positions with.
	Cache *cache.ProgramCache
	// WorkDir is the base of relative import paths. Empty means the process
	// working directory.
	WorkDir string
	// Embedded maps import names to module source text.
	Embedded map[string]string
	Logger   *slog.Logger
}

// Loader loads and caches modules for one interpreter. Like the evaluator it
// drives, it must not be used concurrently.
type Loader struct {
	eval     *evaluator.Evaluator
	root     *object.Environment
	cache    *cache.ProgramCache
	workDir  string
	embedded map[string]string
	logger   *slog.Logger

	modules map[string]*object.Module
	loading map[string]bool
}

// New creates a Loader evaluating modules with eval.
func New(eval *evaluator.Evaluator, cfg Config) *Loader {
	l := &Loader{
		eval:     eval,
		root:     cfg.Root,
		cache:    cfg.Cache,
		workDir:  cfg.WorkDir,
		embedded: cfg.Embedded,
		logger:   cfg.Logger,
		modules:  make(map[string]*object.Module),
		loading:  make(map[string]bool),
	}
	if l.root == nil {
		l.root = object.NewEnvironment()
	}
	if l.cache == nil {
		l.cache = cache.New(eval.FileSet(), nil, l.logger)
	}
	if l.embedded == nil {
		l.embedded = map[string]string{}
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// Resolve returns the cache key of path: the embedded name for embedded
// modules, otherwise the cleaned absolute file path.
func (l *Loader) Resolve(path string) (key string, embedded bool) {
	if _, ok := l.embedded[path]; ok {
		return embeddedPrefix + path, true
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), false
	}
	base := l.workDir
	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(filepath.Join(base, path))
	if err != nil {
		return filepath.Join(base, path), false
	}
	return abs, false
}

// Import implements evaluator.Importer.
func (l *Loader) Import(ctx context.Context, path string) (*object.Table, error) {
	m, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return m.Exports, nil
}

// Load returns the module for path, evaluating it on first use.
func (l *Loader) Load(ctx context.Context, path string) (*object.Module, error) {
	key, embedded := l.Resolve(path)
	if m, ok := l.modules[key]; ok {
		l.logger.DebugContext(ctx, "module cache hit", slog.String("module", key))
		return m, nil
	}
	if l.loading[key] {
		return nil, object.NewError(object.ImportError, "import cycle: %q is already being imported", path)
	}
	l.logger.DebugContext(ctx, "module cache miss", slog.String("module", key))

	prog, err := l.parse(ctx, path, key, embedded)
	if err != nil {
		return nil, importError(path, err)
	}

	m, _, err := l.evalModule(ctx, key, prog)
	if err != nil {
		return nil, importError(path, err)
	}
	l.modules[key] = m
	l.logger.InfoContext(ctx, "module loaded", slog.String("module", key), slog.Int("exports", m.Exports.Len()))
	return m, nil
}

// Run evaluates the file at path as a fresh top-level module, without
// consulting or filling the module cache. Errors are returned unwrapped:
// *lexer.Error, *parser.Error or *object.Error.
func (l *Loader) Run(ctx context.Context, path string) (object.Object, *object.Module, error) {
	key, embedded := l.Resolve(path)
	prog, err := l.parse(ctx, path, key, embedded)
	if err != nil {
		return nil, nil, err
	}
	m, val, err := l.evalModule(ctx, key, prog)
	if err != nil {
		return nil, nil, err
	}
	return val, m, nil
}

// RunProgram evaluates an already parsed program as a fresh top-level module.
func (l *Loader) RunProgram(ctx context.Context, name string, prog *ast.Program) (object.Object, *object.Module, error) {
	m, val, err := l.evalModule(ctx, name, prog)
	if err != nil {
		return nil, nil, err
	}
	return val, m, nil
}

// Modules returns the keys of the loaded modules, sorted.
func (l *Loader) Modules() []string {
	keys := make([]string, 0, len(l.modules))
	for k := range l.modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Root returns the frame every module frame is enclosed by.
func (l *Loader) Root() *object.Environment {
	return l.root
}

func (l *Loader) parse(ctx context.Context, path, key string, embedded bool) (*ast.Program, error) {
	if embedded {
		if _, err := l.cache.FS().Stat(l.filePath(path)); err == nil {
			l.logger.WarnContext(ctx, "embedded module shadows a file", slog.String("module", path))
		}
		return l.cache.Parse(ctx, path, l.embedded[path])
	}
	return l.cache.Load(ctx, key)
}

func (l *Loader) filePath(path string) string {
	if filepath.IsAbs(path) || l.workDir == "" {
		return path
	}
	return filepath.Join(l.workDir, path)
}

func (l *Loader) evalModule(ctx context.Context, key string, prog *ast.Program) (*object.Module, object.Object, error) {
	l.loading[key] = true
	defer delete(l.loading, key)

	m := object.NewModule(key)
	env := object.NewModuleEnvironment(l.root, m)
	val, err := l.eval.EvalProgram(ctx, prog, env)
	if err != nil {
		return nil, nil, err
	}
	m.Finalize()
	return m, val, nil
}

func importError(path string, cause error) error {
	err := object.NewError(object.ImportError, "cannot import %q: %v", path, cause)
	err.Cause = cause
	return err
}
