package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileScoped_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(p, []byte("frames"), 0o600); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFileScoped(filepath.Join(dir, ".", "clip.mp4"))
	if err != nil {
		t.Fatalf("ReadFileScoped: %v", err)
	}
	if string(data) != "frames" {
		t.Errorf("got %q", data)
	}
}

func TestOpenScoped_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenScoped(filepath.Join(dir, "sub")); err == nil {
		t.Error("expected error for directory")
	}
}

func TestOpenScoped_Missing(t *testing.T) {
	if _, err := OpenScoped(filepath.Join(t.TempDir(), "nodir", "x.mp4")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestReadFileScoped_RejectsInvalidPath(t *testing.T) {
	if _, err := ReadFileScoped(string(filepath.Separator)); err == nil {
		t.Error("expected error for root path")
	}
}

func TestWriteFileAtomic_CreatesAndOverwrites(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "job.json")
	if err := WriteFileAtomic(p, []byte(`{"v":1}`), 0o600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(p, []byte(`{"v":2}`), 0o600); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"v":2}` {
		t.Errorf("got %q", data)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(p), ".job.json*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}
