package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// FileSystem maps storage locations onto directories of the host file
// system. It is read-only after construction.
type FileSystem struct {
	roots map[resources.StorageLocation]string
}

func NewFileSystem(cfg core.StorageConfig) *FileSystem {
	return &FileSystem{
		roots: map[resources.StorageLocation]string{
			resources.StorageLocationPackage:  cfg.Package,
			resources.StorageLocationEngine:   cfg.Engine,
			resources.StorageLocationSaveData: cfg.SaveData,
			resources.StorageLocationCache:    cfg.Cache,
			resources.StorageLocationDLC:      cfg.DLC,
			resources.StorageLocationRoot:     cfg.Root,
		},
	}
}

// Root returns the directory backing location.
func (f *FileSystem) Root(location resources.StorageLocation) (string, error) {
	root, ok := f.roots[location]
	if !ok {
		return "", fmt.Errorf("%w: %d", core.ErrUnknownLocation, location)
	}
	return root, nil
}

// Roots returns every configured (location, directory) pair with a non-empty
// directory.
func (f *FileSystem) Roots() map[resources.StorageLocation]string {
	out := make(map[resources.StorageLocation]string, len(f.roots))
	for loc, root := range f.roots {
		if root != "" {
			out[loc] = root
		}
	}
	return out
}

// AbsolutePath resolves path within location. DLC paths missing from the DLC
// directory resolve to the package directory instead.
func (f *FileSystem) AbsolutePath(location resources.StorageLocation, path string) (string, error) {
	full, err := f.join(location, path)
	if err != nil {
		return "", err
	}
	if location == resources.StorageLocationDLC {
		if _, statErr := os.Stat(full); errors.Is(statErr, fs.ErrNotExist) {
			return f.join(resources.StorageLocationPackage, path)
		}
	}
	return full, nil
}

func (f *FileSystem) Open(location resources.StorageLocation, path string) (io.ReadCloser, error) {
	full, err := f.AbsolutePath(location, path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrIOFailure, path, err)
	}
	return file, nil
}

func (f *FileSystem) ReadFile(location resources.StorageLocation, path string) ([]byte, error) {
	full, err := f.AbsolutePath(location, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrIOFailure, path, err)
	}
	return data, nil
}

func (f *FileSystem) Exists(location resources.StorageLocation, path string) bool {
	full, err := f.AbsolutePath(location, path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Locate maps an absolute host path back to the first location whose root
// contains it, together with the slash separated path inside that root.
func (f *FileSystem) Locate(absolute string) (resources.StorageLocation, string, bool) {
	for _, loc := range []resources.StorageLocation{
		resources.StorageLocationDLC,
		resources.StorageLocationEngine,
		resources.StorageLocationPackage,
		resources.StorageLocationSaveData,
		resources.StorageLocationCache,
		resources.StorageLocationRoot,
	} {
		root := f.roots[loc]
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, absolute)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return loc, filepath.ToSlash(rel), true
	}
	return 0, "", false
}

func (f *FileSystem) join(location resources.StorageLocation, path string) (string, error) {
	root, err := f.Root(location)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if location != resources.StorageLocationRoot {
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s escapes the %s location", core.ErrIOFailure, path, location)
		}
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Join(root, clean), nil
}
