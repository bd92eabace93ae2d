package testbed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/anima-loader/engine/resources"
	"gopkg.in/yaml.v3"
)

var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest lists the resources to preload.
type Manifest struct {
	Resources []Entry `yaml:"resources"`
}

type Entry struct {
	Type     string `yaml:"type"`
	Location string `yaml:"location"`
	Path     string `yaml:"path"`
	Async    bool   `yaml:"async"`
}

func (e Entry) String() string {
	loc := e.Location
	if loc == "" {
		loc = resources.StorageLocationPackage.String()
	}
	return fmt.Sprintf("%s %s:%s", e.Type, loc, e.Path)
}

// Resolve maps the textual fields to their typed values. An empty location
// means the package location.
func (e Entry) Resolve() (resources.ResourceType, resources.StorageLocation, error) {
	t, err := resources.ParseResourceType(e.Type)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidManifest, err)
	}
	loc := resources.StorageLocationPackage
	if e.Location != "" {
		if loc, err = resources.ParseStorageLocation(e.Location); err != nil {
			return 0, 0, fmt.Errorf("%w: %s", ErrInvalidManifest, err)
		}
	}
	if e.Path == "" {
		return 0, 0, fmt.Errorf("%w: %s entry without a path", ErrInvalidManifest, e.Type)
	}
	return t, loc, nil
}

func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes a manifest, rejecting unknown fields and entries
// that do not resolve.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err)
	}
	for i, e := range m.Resources {
		if _, _, err := e.Resolve(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return &m, nil
}
