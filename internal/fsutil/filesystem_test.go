package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func exerciseFileSystem(t *testing.T, fsys FileSystem, root string) {
	t.Helper()

	dir := filepath.Join(root, "exports", "w1")
	if fsys.Exists(dir) {
		t.Fatalf("%s should not exist yet", dir)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if !fsys.Exists(dir) {
		t.Fatalf("%s should exist after MkdirAll", dir)
	}

	for _, name := range []string{"b.csv", "a.png"} {
		if err := fsys.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}

	got, err := fsys.ReadFile(filepath.Join(dir, "b.csv"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "b.csv" {
		t.Errorf("ReadFile = %q", got)
	}

	names, err := fsys.List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "a.png" || names[1] != "b.csv" {
		t.Errorf("List = %v, want [a.png b.csv]", names)
	}

	if _, err := fsys.ReadFile(filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile(missing) err = %v, want ErrNotExist", err)
	}
}

func TestOSFileSystem(t *testing.T) {
	exerciseFileSystem(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	exerciseFileSystem(t, NewMemoryFileSystem(), "/tmp/test")
}

func TestMemoryFileSystem_WriteNeedsParent(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("/nowhere/file.csv", []byte("x"), 0o644); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("WriteFile without parent err = %v", err)
	}
}

func TestMemoryFileSystem_ReadReturnsCopy(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("f", []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, _ := m.ReadFile("f")
	b[0] = 'z'
	again, _ := m.ReadFile("f")
	if string(again) != "abc" {
		t.Errorf("stored data mutated: %q", again)
	}
}
