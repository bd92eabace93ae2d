package resources

import (
	"fmt"
	"io"
	"strings"
)

// StorageLocation names the logical area a file lives in.
type StorageLocation uint8

const (
	/** @brief Read-only application bundle. */
	StorageLocationPackage StorageLocation = iota
	/** @brief Read-only engine assets shipped with the loader. */
	StorageLocationEngine
	/** @brief Writable per-user save area. */
	StorageLocationSaveData
	/** @brief Writable cache that may be purged at any time. */
	StorageLocationCache
	/** @brief Downloaded content. Falls back to Package for missing files. */
	StorageLocationDLC
	/** @brief Paths relative to the configured root (or absolute). */
	StorageLocationRoot
)

var storageLocationNames = map[StorageLocation]string{
	StorageLocationPackage:  "package",
	StorageLocationEngine:   "engine",
	StorageLocationSaveData: "savedata",
	StorageLocationCache:    "cache",
	StorageLocationDLC:      "dlc",
	StorageLocationRoot:     "root",
}

func (l StorageLocation) String() string {
	if s, ok := storageLocationNames[l]; ok {
		return s
	}
	return fmt.Sprintf("location(%d)", uint8(l))
}

func ParseStorageLocation(s string) (StorageLocation, error) {
	for l, name := range storageLocationNames {
		if name == strings.ToLower(s) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown storage location %q", s)
}

// FileSystem resolves (location, path) pairs to file contents.
type FileSystem interface {
	Open(location StorageLocation, path string) (io.ReadCloser, error)
	ReadFile(location StorageLocation, path string) ([]byte, error)
	AbsolutePath(location StorageLocation, path string) (string, error)
}
