package fs

import (
	"errors"
	i_fs "io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOSFS(t *testing.T) {
	dir := t.TempDir()
	fsys := NewOSFS()
	path := filepath.Join(dir, "a.rsl")
	if err := fsys.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("x = 1", string(data)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}
	if _, err := fsys.Stat(filepath.Join(dir, "missing")); !errors.Is(err, i_fs.ErrNotExist) {
		t.Errorf("Stat of a missing file: %v", err)
	}
}

func TestOverlayFS(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "disk.rsl"), []byte("disk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shadowed.rsl"), []byte("disk"), 0o644); err != nil {
		t.Fatal(err)
	}

	o := NewOverlayFS(NewOSFS(), map[string][]byte{
		filepath.Join(dir, "mem.rsl"):            []byte("memory"),
		filepath.Join(dir, "./shadowed.rsl"):     []byte("memory"),
		filepath.Join(dir, "nested", "deep.rsl"): []byte("deep"),
	})

	tests := []struct {
		name string
		want string
	}{
		{"disk.rsl", "disk"},
		{"mem.rsl", "memory"},
		{"shadowed.rsl", "memory"},
		{"nested/deep.rsl", "deep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := o.ReadFile(filepath.Join(dir, tt.name))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, string(data)); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
		})
	}

	info, err := o.Stat(filepath.Join(dir, "mem.rsl"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Name() != "mem.rsl" || info.Size() != 6 || info.IsDir() {
		t.Errorf("unexpected FileInfo: name=%s size=%d dir=%v", info.Name(), info.Size(), info.IsDir())
	}

	entries, err := o.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"disk.rsl", "mem.rsl", "shadowed.rsl"}, names); diff != "" {
		t.Errorf("ReadDir mismatch (-want +got):\n%s", diff)
	}
}

func TestOverlayFS_WriteFile(t *testing.T) {
	o := NewOverlayFS(nil, nil)
	src := []byte("v1")
	if err := o.WriteFile("/w/out.txt", src, 0o600); err != nil {
		t.Fatal(err)
	}
	src[1] = '9'
	data, err := o.ReadFile("/w/out.txt")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("v1", string(data)); diff != "" {
		t.Errorf("written data should be copied (-want +got):\n%s", diff)
	}
	data[0] = 'x'
	again, _ := o.ReadFile("/w/out.txt")
	if diff := cmp.Diff("v1", string(again)); diff != "" {
		t.Errorf("read data should be copied (-want +got):\n%s", diff)
	}
	info, err := o.Stat("/w/out.txt")
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode() != 0o600 {
		t.Errorf("Mode() = %v, want 0600", info.Mode())
	}
}

func TestOverlayFS_Missing(t *testing.T) {
	o := NewOverlayFS(nil, map[string][]byte{"/w/a.rsl": nil})
	if _, err := o.ReadFile("/w/b.rsl"); !errors.Is(err, i_fs.ErrNotExist) {
		t.Errorf("ReadFile: %v", err)
	}
	if _, err := o.Stat("/w/b.rsl"); !errors.Is(err, i_fs.ErrNotExist) {
		t.Errorf("Stat: %v", err)
	}
	if _, err := o.ReadDir("/elsewhere"); !errors.Is(err, i_fs.ErrNotExist) {
		t.Errorf("ReadDir: %v", err)
	}
}
