package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_Exists_Returns_False_When_Path_Does_Not_Exist(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "does-not-exist.txt"))

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, false; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_File(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")

	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(path)

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, true; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_OpenFile_Returns_Nil_Interface_When_Open_Fails(t *testing.T) {
	fs := NewReal()

	f, err := fs.OpenFile(filepath.Join(t.TempDir(), "missing", "x"), os.O_RDONLY, 0)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want %v", err, os.ErrNotExist)
	}

	if f != nil {
		t.Fatalf("file=%v, want nil interface", f)
	}
}

func Test_RealFS_Remove_Deletes_File(t *testing.T) {
	fs := NewReal()
	path := filepath.Join(t.TempDir(), "gone.txt")

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := fs.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	exists, err := fs.Exists(path)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}

	if exists {
		t.Fatal("file still exists after Remove")
	}
}

func Test_RealFS_WriteFileAtomic_Replaces_Contents(t *testing.T) {
	fs := NewReal()
	path := filepath.Join(t.TempDir(), "config.json")

	if err := fs.WriteFileAtomic(path, []byte("old")); err != nil {
		t.Fatalf("first write: %v", err)
	}

	if err := fs.WriteFileAtomic(path, []byte("new")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got, want := string(got), "new"; got != want {
		t.Fatalf("contents=%q, want=%q", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if got, want := len(entries), 1; got != want {
		t.Fatalf("directory has %d entries, want %d (temp file left behind?)", got, want)
	}
}
