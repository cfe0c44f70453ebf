// Package cache keeps parsed programs so that a script imported by many
// interpreters (or many times by the CLI) is lexed and parsed only once.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/podhmo/rsl/ast"
	"github.com/podhmo/rsl/fs"
	"github.com/podhmo/rsl/parser"
	"github.com/podhmo/rsl/token"
)

// ProgramCache manages parsed ASTs keyed by absolute file path.
// An entry is reused while the file's size and modification time are unchanged.
//
// All programs are registered in one FileSet, so every interpreter sharing the
// cache must resolve positions through FileSet(). ASTs are immutable and safe
// to share between goroutines.
type ProgramCache struct {
	fset   *token.FileSet
	fs     fs.FS
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	group singleflight.Group
}

type entry struct {
	prog    *ast.Program
	size    int64
	modTime time.Time
	source  string // set for in-memory sources
}

// New creates a new ProgramCache. Nil arguments are replaced with a fresh
// FileSet, the OS file system and a discarding logger.
func New(fset *token.FileSet, filesystem fs.FS, logger *slog.Logger) *ProgramCache {
	if fset == nil {
		fset = token.NewFileSet()
	}
	if filesystem == nil {
		filesystem = fs.NewOSFS()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProgramCache{
		fset:    fset,
		fs:      filesystem,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// FileSet returns the FileSet all cached programs are registered in.
func (c *ProgramCache) FileSet() *token.FileSet {
	return c.fset
}

// FS returns the file system files are read from.
func (c *ProgramCache) FS() fs.FS {
	return c.fs
}

// Load returns the parsed program of the file at path. Concurrent loads of the
// same path share a single read and parse.
func (c *ProgramCache) Load(ctx context.Context, path string) (*ast.Program, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := c.fs.Stat(abs)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	e, ok := c.entries[abs]
	c.mu.RUnlock()
	if ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		c.logger.DebugContext(ctx, "program cache hit", slog.String("path", abs))
		return e.prog, nil
	}
	if ok {
		c.logger.DebugContext(ctx, "program cache stale", slog.String("path", abs))
	} else {
		c.logger.DebugContext(ctx, "program cache miss", slog.String("path", abs))
	}

	v, err, _ := c.group.Do(abs, func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[abs]
		c.mu.RUnlock()
		if ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
			return e.prog, nil
		}
		src, err := c.fs.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		prog, err := parser.ParseFile(c.fset, abs, src)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[abs] = &entry{prog: prog, size: info.Size(), modTime: info.ModTime()}
		c.mu.Unlock()
		return prog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ast.Program), nil
}

// Parse returns the parsed program of an in-memory source registered under
// name (e.g. an embedded module). The entry is reused while src is unchanged.
func (c *ProgramCache) Parse(ctx context.Context, name string, src string) (*ast.Program, error) {
	key := "mem:" + name

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.source == src {
		c.logger.DebugContext(ctx, "program cache hit", slog.String("name", name))
		return e.prog, nil
	}
	c.logger.DebugContext(ctx, "program cache miss", slog.String("name", name))

	v, err, _ := c.group.Do(key+"\x00"+src, func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && e.source == src {
			return e.prog, nil
		}
		prog, err := parser.ParseFile(c.fset, name, []byte(src))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = &entry{prog: prog, source: src}
		c.mu.Unlock()
		return prog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ast.Program), nil
}

// Invalidate drops the entry for path, if any.
func (c *ProgramCache) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, abs)
}

// Len returns the number of cached programs.
func (c *ProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
