package resources

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

/**
 * @brief A 2D texture ready for upload: one descriptor and the pixel data it
 * describes. Built exactly once by the texture provider on the main thread.
 */
type Texture struct {
	Base

	contentMutex sync.RWMutex
	desc         TextureDescriptor
	data         *Buffer
}

func NewTexture() *Texture {
	t := &Texture{Base: Base{resourceType: ResourceTypeTexture}}
	t.onReset = func() {
		t.contentMutex.Lock()
		t.desc = TextureDescriptor{}
		t.data = nil
		t.contentMutex.Unlock()
	}
	return t
}

// Build takes ownership of data. Building twice is a BuildFailure.
func (t *Texture) Build(desc TextureDescriptor, data *Buffer) error {
	if err := desc.Validate(data); err != nil {
		return err
	}
	t.contentMutex.Lock()
	defer t.contentMutex.Unlock()
	if t.data != nil {
		return fmt.Errorf("%w: texture already built", core.ErrBuildFailure)
	}
	t.desc = desc
	t.data = data
	return nil
}

func (t *Texture) Descriptor() TextureDescriptor {
	t.contentMutex.RLock()
	defer t.contentMutex.RUnlock()
	return t.desc
}

func (t *Texture) Data() []byte {
	t.contentMutex.RLock()
	defer t.contentMutex.RUnlock()
	return t.data.Bytes()
}

// Built reports whether Build has committed content.
func (t *Texture) Built() bool {
	t.contentMutex.RLock()
	defer t.contentMutex.RUnlock()
	return t.data != nil
}
