package fs

import (
	i_fs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FS is an interface abstracting the file system operations used by the
// module loader and the host library. This allows scripts to be loaded from
// memory in tests and in embedding hosts.
type FS interface {
	Stat(name string) (i_fs.FileInfo, error)
	ReadDir(name string) ([]i_fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm i_fs.FileMode) error
}

// osFS implements FS using the underlying os package. This is the default
// implementation used for real file system operations.
type osFS struct{}

// NewOSFS creates a new osFS instance.
func NewOSFS() FS {
	return &osFS{}
}

func (f *osFS) Stat(name string) (i_fs.FileInfo, error) {
	return os.Stat(name)
}

func (f *osFS) ReadDir(name string) ([]i_fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (f *osFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (f *osFS) WriteFile(name string, data []byte, perm i_fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// OverlayFS serves files from memory first and falls back to base.
// Keys are cleaned paths; writes always go to memory.
type OverlayFS struct {
	base FS

	mu    sync.RWMutex
	files map[string]*memFile
}

type memFile struct {
	data    []byte
	modTime time.Time
	mode    i_fs.FileMode
}

// NewOverlayFS creates an overlay on top of base, seeded with files.
// A nil base means the overlay is the whole file system.
func NewOverlayFS(base FS, files map[string][]byte) *OverlayFS {
	o := &OverlayFS{base: base, files: make(map[string]*memFile, len(files))}
	now := time.Now()
	for name, data := range files {
		o.files[filepath.Clean(name)] = &memFile{data: data, modTime: now, mode: 0o644}
	}
	return o
}

func (o *OverlayFS) lookup(name string) (*memFile, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.files[filepath.Clean(name)]
	return f, ok
}

func (o *OverlayFS) Stat(name string) (i_fs.FileInfo, error) {
	if f, ok := o.lookup(name); ok {
		return &memInfo{name: filepath.Base(name), file: f}, nil
	}
	if o.base == nil {
		return nil, &i_fs.PathError{Op: "stat", Path: name, Err: i_fs.ErrNotExist}
	}
	return o.base.Stat(name)
}

func (o *OverlayFS) ReadFile(name string) ([]byte, error) {
	if f, ok := o.lookup(name); ok {
		data := make([]byte, len(f.data))
		copy(data, f.data)
		return data, nil
	}
	if o.base == nil {
		return nil, &i_fs.PathError{Op: "open", Path: name, Err: i_fs.ErrNotExist}
	}
	return o.base.ReadFile(name)
}

func (o *OverlayFS) WriteFile(name string, data []byte, perm i_fs.FileMode) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[filepath.Clean(name)] = &memFile{data: buf, modTime: time.Now(), mode: perm}
	return nil
}

// ReadDir merges the in-memory files directly under name with the entries
// of the base file system. In-memory files win on name clashes.
func (o *OverlayFS) ReadDir(name string) ([]i_fs.DirEntry, error) {
	dir := filepath.Clean(name)
	byName := map[string]i_fs.DirEntry{}

	var baseErr error
	if o.base != nil {
		entries, err := o.base.ReadDir(name)
		baseErr = err
		for _, e := range entries {
			byName[e.Name()] = e
		}
	}

	o.mu.RLock()
	for p, f := range o.files {
		if filepath.Dir(p) == dir {
			base := filepath.Base(p)
			byName[base] = i_fs.FileInfoToDirEntry(&memInfo{name: base, file: f})
		}
	}
	o.mu.RUnlock()

	if len(byName) == 0 && (o.base == nil || baseErr != nil) {
		if baseErr != nil {
			return nil, baseErr
		}
		return nil, &i_fs.PathError{Op: "readdir", Path: name, Err: i_fs.ErrNotExist}
	}

	entries := make([]i_fs.DirEntry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

type memInfo struct {
	name string
	file *memFile
}

func (m *memInfo) Name() string        { return m.name }
func (m *memInfo) Size() int64         { return int64(len(m.file.data)) }
func (m *memInfo) Mode() i_fs.FileMode { return m.file.mode }
func (m *memInfo) ModTime() time.Time  { return m.file.modTime }
func (m *memInfo) IsDir() bool         { return false }
func (m *memInfo) Sys() any            { return nil }
