package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteAndRead(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "reports", "2026")

	if err := osfs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "fall.txt")
	if err := osfs.WriteFile(path, []byte("gate=use_breakfall"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "gate=use_breakfall" {
		t.Errorf("expected %q, got %q", "gate=use_breakfall", data)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Mutating the returned slice must not change the stored file
	data[0] = 'H'
	again, _ := mfs.ReadFile("/test.txt")
	if string(again) != string(testData) {
		t.Errorf("stored data changed to %q", again)
	}
}

func TestMemoryFileSystem_WriteRequiresParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	err := mfs.WriteFile("/out/report.json", []byte("{}"), 0644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.Create("/out/report.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist from Create, got %v", err)
	}

	if err := mfs.MkdirAll("/out", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := mfs.WriteFile("/out/report.json", []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile after MkdirAll failed: %v", err)
	}
}

func TestMemoryFileSystem_CreateAndWrite(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/created.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("part1-")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Write([]byte("part2")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/created.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "part1-part2" {
		t.Errorf("expected %q, got %q", "part1-part2", data)
	}
}

func TestMemoryFileSystem_MkdirAllAndExists(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
	if mfs.Exists("/a/x") {
		t.Error("expected /a/x to not exist")
	}

	if err := mfs.MkdirAll("reports", 0755); err != nil {
		t.Fatalf("MkdirAll relative failed: %v", err)
	}
	if err := mfs.WriteFile("reports/r.txt", nil, 0644); err != nil {
		t.Fatalf("WriteFile relative failed: %v", err)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/out", 0755)
	_ = mfs.WriteFile("/out/b.txt", nil, 0644)
	_ = mfs.WriteFile("/out/a.json", nil, 0644)

	got := mfs.Files()
	want := []string{"/out/a.json", "/out/b.txt"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Files() = %v, want %v", got, want)
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ FileSystem = OSFileSystem{}
	var _ FileSystem = (*MemoryFileSystem)(nil)
}
