//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Preloads the resources of manifest.yaml with engine.toml.
func (Run) Loader() error {
	mg.Deps(Build.Loader)
	fmt.Println("Run loader...")
	if _, err := executeCmd("go", withArgs("run", ".", "-c", "engine.toml", "-m", "manifest.yaml", "load"), withStream()); err != nil {
		return err
	}
	return nil
}
