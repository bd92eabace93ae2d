//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the loader binary into bin/.
func (Build) Loader() error {
	if _, err := executeCmd("go", withArgs("mod", "download")); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", binaryName), "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Packs every PNG under assets/ into a packed image next to it.
func (Build) Fixtures() error {
	mg.Deps(Build.Loader)
	return filepath.Walk(assetsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".png") {
			return nil
		}
		out := strings.TrimSuffix(path, filepath.Ext(path)) + ".aimg"
		if _, err := executeCmd(filepath.Join("bin", binaryName), withArgs("pack", path, out)); err != nil {
			return fmt.Errorf("packing %s: %w", path, err)
		}
		return nil
	})
}
