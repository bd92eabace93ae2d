package resources

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

// CubemapFaceCount is the number of faces of a cubemap, indexed 0..5.
const CubemapFaceCount = 6

/**
 * @brief Six texture faces, ordered by the <base><index>.<ext> naming
 * convention. Either all faces are built or none is.
 */
type Cubemap struct {
	Base

	contentMutex sync.RWMutex
	descs        [CubemapFaceCount]TextureDescriptor
	data         [CubemapFaceCount]*Buffer
	built        bool
}

func NewCubemap() *Cubemap {
	c := &Cubemap{Base: Base{resourceType: ResourceTypeCubemap}}
	c.onReset = func() {
		c.contentMutex.Lock()
		c.descs = [CubemapFaceCount]TextureDescriptor{}
		c.data = [CubemapFaceCount]*Buffer{}
		c.built = false
		c.contentMutex.Unlock()
	}
	return c
}

// Build takes ownership of the six face buffers.
func (c *Cubemap) Build(descs [CubemapFaceCount]TextureDescriptor, data [CubemapFaceCount]*Buffer) error {
	for i := range descs {
		if err := descs[i].Validate(data[i]); err != nil {
			return fmt.Errorf("face %d: %w", i, err)
		}
	}
	c.contentMutex.Lock()
	defer c.contentMutex.Unlock()
	if c.built {
		return fmt.Errorf("%w: cubemap already built", core.ErrBuildFailure)
	}
	c.descs = descs
	c.data = data
	c.built = true
	return nil
}

func (c *Cubemap) Built() bool {
	c.contentMutex.RLock()
	defer c.contentMutex.RUnlock()
	return c.built
}

// Face returns the descriptor and data of face i.
func (c *Cubemap) Face(i int) (TextureDescriptor, []byte) {
	if i < 0 || i >= CubemapFaceCount {
		return TextureDescriptor{}, nil
	}
	c.contentMutex.RLock()
	defer c.contentMutex.RUnlock()
	return c.descs[i], c.data[i].Bytes()
}

func (c *Cubemap) Descriptors() [CubemapFaceCount]TextureDescriptor {
	c.contentMutex.RLock()
	defer c.contentMutex.RUnlock()
	return c.descs
}
