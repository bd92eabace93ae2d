package resources

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Decoded image, produced by image providers and consumed by texture providers. */
	ResourceTypeImage ResourceType = iota
	/** @brief 2D texture descriptor plus pixel data. */
	ResourceTypeTexture
	/** @brief Six-face cube texture. */
	ResourceTypeCubemap
	/** @brief Vertex + fragment shader source pair. */
	ResourceTypeShader
	/** @brief Bitmap font with its page textures. */
	ResourceTypeFont
)

var resourceTypeNames = map[ResourceType]string{
	ResourceTypeImage:   "image",
	ResourceTypeTexture: "texture",
	ResourceTypeCubemap: "cubemap",
	ResourceTypeShader:  "shader",
	ResourceTypeFont:    "font",
}

func (t ResourceType) String() string {
	if s, ok := resourceTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("resource(%d)", int(t))
}

// ParseResourceType is the inverse of ResourceType.String.
func ParseResourceType(s string) (ResourceType, error) {
	for t, name := range resourceTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown resource type %q", s)
}

// LoadState is the lifecycle of a resource. Loaded and Failed are terminal.
type LoadState int32

const (
	LoadStateNotLoaded LoadState = iota
	LoadStateLoading
	LoadStateLoaded
	LoadStateFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadStateNotLoaded:
		return "not-loaded"
	case LoadStateLoading:
		return "loading"
	case LoadStateLoaded:
		return "loaded"
	case LoadStateFailed:
		return "failed"
	}
	return fmt.Sprintf("load-state(%d)", int32(s))
}

func (s LoadState) Terminal() bool {
	return s == LoadStateLoaded || s == LoadStateFailed
}

// Identity is what makes two resources the same resource.
type Identity struct {
	Type     ResourceType
	Location StorageLocation
	Path     string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%s:%s", id.Type, id.Location, id.Path)
}

// Resource is an engine-managed asset with an explicit load lifecycle.
// The lifecycle methods are driven by providers; callers only read.
type Resource interface {
	ResourceType() ResourceType
	Identity() Identity
	LoadState() LoadState
	// Err is the reason of a failed load, nil otherwise.
	Err() error

	// BeginLoad moves NotLoaded to Loading and records where the resource
	// comes from. Any other state yields core.ErrResourceInUse.
	BeginLoad(location StorageLocation, path string) error
	// Finish commits the terminal state: Loaded for a nil err, Failed
	// otherwise. It reports false if the resource was not Loading.
	Finish(err error) bool
	// Reset returns a terminal resource to NotLoaded and drops its content.
	Reset() error
}

// Base implements the lifecycle part of Resource. Concrete resources embed
// it and add their content.
type Base struct {
	resourceType ResourceType
	state        atomic.Int32

	mutex    sync.RWMutex
	location StorageLocation
	path     string
	err      error
	onReset  func()
	internal atomic.Bool
}

// MarkInternal flags a resource that only exists as a step of another load,
// such as the image decoded for a texture. Its completion is not reported
// through events or metrics.
func (b *Base) MarkInternal() {
	b.internal.Store(true)
}

func (b *Base) Internal() bool {
	return b.internal.Load()
}

func (b *Base) ResourceType() ResourceType {
	return b.resourceType
}

func (b *Base) Identity() Identity {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return Identity{Type: b.resourceType, Location: b.location, Path: b.path}
}

func (b *Base) LoadState() LoadState {
	return LoadState(b.state.Load())
}

func (b *Base) Err() error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.err
}

func (b *Base) BeginLoad(location StorageLocation, path string) error {
	if !b.state.CompareAndSwap(int32(LoadStateNotLoaded), int32(LoadStateLoading)) {
		return fmt.Errorf("%w: %s is %s", core.ErrResourceInUse, path, b.LoadState())
	}
	b.mutex.Lock()
	b.location = location
	b.path = path
	b.err = nil
	b.mutex.Unlock()
	return nil
}

func (b *Base) Finish(err error) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.LoadState() != LoadStateLoading {
		return false
	}
	// err is stored before the state flips so readers observing a terminal
	// state always see the matching error.
	b.err = err
	next := LoadStateLoaded
	if err != nil {
		next = LoadStateFailed
	}
	b.state.Store(int32(next))
	return true
}

func (b *Base) Reset() error {
	state := b.LoadState()
	if !state.Terminal() {
		return fmt.Errorf("%w: cannot reset a %s resource", core.ErrResourceInUse, state)
	}
	b.mutex.Lock()
	b.err = nil
	onReset := b.onReset
	b.mutex.Unlock()
	if onReset != nil {
		onReset()
	}
	b.state.Store(int32(LoadStateNotLoaded))
	return nil
}
