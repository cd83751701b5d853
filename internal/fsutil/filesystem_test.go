package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	osfs := OSFileSystem{}

	nested := filepath.Join(dir, "a", "b")
	if err := osfs.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(nested, "scene.txt")
	if err := osfs.WriteFile(path, []byte("table"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "table" {
		t.Errorf("expected %q, got %q", "table", data)
	}

	info, err := osfs.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("expected size 5, got %d", info.Size())
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/out/result.json", []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := mfs.ReadFile("/out/result.json")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("expected %q, got %q", "{}", data)
	}

	// Parent directory is implied by the write.
	info, err := mfs.Stat("/out")
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected /out to be a directory")
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/debug/planes.png")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("png")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, _ := mfs.ReadFile("/debug/planes.png")
	if len(data) != 0 {
		t.Errorf("expected empty file before Close, got %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err = mfs.ReadFile("/debug/planes.png")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("expected %q, got %q", "png", data)
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("scene.pcd", []byte("VERSION .7"), 0o644)

	f, err := mfs.Open("./scene.pcd")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "VERSION .7" {
		t.Errorf("expected %q, got %q", "VERSION .7", data)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "scene.pcd" || info.Size() != 10 {
		t.Errorf("unexpected file info: name=%q size=%d", info.Name(), info.Size())
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open: expected fs.ErrNotExist, got %v", err)
	}
	if _, err := mfs.ReadFile("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile: expected fs.ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat: expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_WriteFileCopiesInput(t *testing.T) {
	mfs := NewMemoryFileSystem()
	buf := []byte("abc")
	_ = mfs.WriteFile("/f", buf, 0o644)
	buf[0] = 'x'

	data, _ := mfs.ReadFile("/f")
	if string(data) != "abc" {
		t.Errorf("expected stored copy %q, got %q", "abc", data)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/debug/a.png", nil, 0o644)
	_ = mfs.WriteFile("/debug/b.html", nil, 0o644)
	_ = mfs.WriteFile("/other/c.png", nil, 0o644)

	if got := len(mfs.Files("/debug/")); got != 2 {
		t.Errorf("expected 2 files under /debug/, got %d", got)
	}
}
