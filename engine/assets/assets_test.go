package assets

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

func newTestFileSystem(t *testing.T) (*FileSystem, string) {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"pkg", "dlc", "save"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return NewFileSystem(core.StorageConfig{
		Package:  filepath.Join(dir, "pkg"),
		DLC:      filepath.Join(dir, "dlc"),
		SaveData: filepath.Join(dir, "save"),
		Root:     dir,
	}), dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileSystemReadAndOpen(t *testing.T) {
	fs, dir := newTestFileSystem(t)
	writeFile(t, filepath.Join(dir, "pkg", "shaders", "a.csshader"), "GLSL {}")

	data, err := fs.ReadFile(resources.StorageLocationPackage, "shaders/a.csshader")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "GLSL {}" {
		t.Errorf("unexpected content %q", data)
	}

	r, err := fs.Open(resources.StorageLocationPackage, "shaders/a.csshader")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if b, _ := io.ReadAll(r); string(b) != "GLSL {}" {
		t.Errorf("unexpected content %q", b)
	}

	if !fs.Exists(resources.StorageLocationPackage, "shaders/a.csshader") {
		t.Error("expected file to exist")
	}
	if _, err := fs.ReadFile(resources.StorageLocationPackage, "missing.png"); !errors.Is(err, core.ErrIOFailure) {
		t.Errorf("expected ErrIOFailure, got %v", err)
	}
}

func TestFileSystemRejectsEscapes(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	if _, err := fs.ReadFile(resources.StorageLocationPackage, "../dlc/x.png"); !errors.Is(err, core.ErrIOFailure) {
		t.Errorf("expected ErrIOFailure, got %v", err)
	}
	if _, err := fs.Root(resources.StorageLocation(42)); !errors.Is(err, core.ErrUnknownLocation) {
		t.Errorf("expected ErrUnknownLocation, got %v", err)
	}
}

func TestFileSystemDLCFallsBackToPackage(t *testing.T) {
	fs, dir := newTestFileSystem(t)
	writeFile(t, filepath.Join(dir, "pkg", "a.txt"), "package")
	writeFile(t, filepath.Join(dir, "pkg", "b.txt"), "package")
	writeFile(t, filepath.Join(dir, "dlc", "b.txt"), "dlc")

	a, err := fs.ReadFile(resources.StorageLocationDLC, "a.txt")
	if err != nil || string(a) != "package" {
		t.Errorf("expected package fallback, got %q (%v)", a, err)
	}
	b, err := fs.ReadFile(resources.StorageLocationDLC, "b.txt")
	if err != nil || string(b) != "dlc" {
		t.Errorf("expected dlc override, got %q (%v)", b, err)
	}
}

func TestFileSystemLocate(t *testing.T) {
	fs, dir := newTestFileSystem(t)
	loc, rel, ok := fs.Locate(filepath.Join(dir, "pkg", "textures", "wall.png"))
	if !ok || loc != resources.StorageLocationPackage || rel != "textures/wall.png" {
		t.Errorf("expected package textures/wall.png, got %s %q %v", loc, rel, ok)
	}
	loc, rel, ok = fs.Locate(filepath.Join(dir, "other", "x.png"))
	if !ok || loc != resources.StorageLocationRoot || rel != "other/x.png" {
		t.Errorf("expected root other/x.png, got %s %q %v", loc, rel, ok)
	}
}

func TestAssetWatcherIndexesAndReportsChanges(t *testing.T) {
	fs, dir := newTestFileSystem(t)
	writeFile(t, filepath.Join(dir, "pkg", "textures", "wall.png"), "x")

	w, err := NewAssetWatcher(fs)
	if err != nil {
		t.Fatalf("NewAssetWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()

	if _, ok := w.Lookup(resources.StorageLocationPackage, "textures/wall.png"); !ok {
		t.Fatal("expected existing file to be indexed")
	}

	writeFile(t, filepath.Join(dir, "pkg", "textures", "floor.png"), "y")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case change := <-w.Events():
			if change.Path == "textures/floor.png" && change.Location == resources.StorageLocationPackage {
				if change.Kind != ChangeWritten {
					t.Errorf("expected written change, got %d", change.Kind)
				}
				if _, ok := w.Lookup(resources.StorageLocationPackage, "textures/floor.png"); !ok {
					t.Error("expected new file to be indexed")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the change event")
		}
	}
}
