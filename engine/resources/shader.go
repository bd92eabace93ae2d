package resources

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

// Shader holds the vertex and fragment sources extracted from a shader file.
type Shader struct {
	Base

	contentMutex sync.RWMutex
	vertex       string
	fragment     string
	built        bool
}

func NewShader() *Shader {
	s := &Shader{Base: Base{resourceType: ResourceTypeShader}}
	s.onReset = func() {
		s.contentMutex.Lock()
		s.vertex, s.fragment, s.built = "", "", false
		s.contentMutex.Unlock()
	}
	return s
}

func (s *Shader) Build(vertex, fragment string) error {
	if vertex == "" || fragment == "" {
		return fmt.Errorf("%w: shader needs both vertex and fragment source", core.ErrBuildFailure)
	}
	s.contentMutex.Lock()
	defer s.contentMutex.Unlock()
	if s.built {
		return fmt.Errorf("%w: shader already built", core.ErrBuildFailure)
	}
	s.vertex = vertex
	s.fragment = fragment
	s.built = true
	return nil
}

func (s *Shader) VertexSource() string {
	s.contentMutex.RLock()
	defer s.contentMutex.RUnlock()
	return s.vertex
}

func (s *Shader) FragmentSource() string {
	s.contentMutex.RLock()
	defer s.contentMutex.RUnlock()
	return s.fragment
}

func (s *Shader) Built() bool {
	s.contentMutex.RLock()
	defer s.contentMutex.RUnlock()
	return s.built
}
