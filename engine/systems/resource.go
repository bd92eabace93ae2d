package systems

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

/** @brief The configuration for the resource system */
type ResourceSystemConfig struct {
	/** @brief Keep loaded resources and hand them out again on repeat requests. */
	PoolEnabled bool
}

type poolEntry struct {
	resource resources.Resource
	// closed once the load that created the entry is over
	ready chan struct{}
}

func newPoolEntry(r resources.Resource) *poolEntry {
	return &poolEntry{resource: r, ready: make(chan struct{})}
}

func (e *poolEntry) done() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// ResourceSystem is the registry of providers and the pool of resources they
// produced, keyed by identity.
type ResourceSystem struct {
	Config *ResourceSystemConfig

	mutex       sync.RWMutex
	providers   []resources.Provider
	initialized bool
	pool        map[resources.Identity]*poolEntry

	scheduler jobs.Scheduler
}

func NewResourceSystem(config *ResourceSystemConfig, scheduler jobs.Scheduler) (*ResourceSystem, error) {
	if scheduler == nil {
		err := fmt.Errorf("func NewResourceSystem - a scheduler is required")
		core.LogError(err.Error())
		return nil, err
	}
	if config == nil {
		config = &ResourceSystemConfig{}
	}
	return &ResourceSystem{
		Config:    config,
		pool:      make(map[resources.Identity]*poolEntry),
		scheduler: scheduler,
	}, nil
}

// RegisterProvider adds p to the registry. Registering the same provider
// twice fails with core.ErrProviderExists.
func (rs *ResourceSystem) RegisterProvider(p resources.Provider) error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	for _, registered := range rs.providers {
		if registered == p {
			return fmt.Errorf("%w: %T for %s", core.ErrProviderExists, p, p.ResourceType())
		}
	}
	rs.providers = append(rs.providers, p)
	core.LogDebug("provider %T registered for %s resources", p, p.ResourceType())
	return nil
}

// ProvidersOfType lists the providers of t in registration order.
func (rs *ResourceSystem) ProvidersOfType(t resources.ResourceType) []resources.Provider {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	var out []resources.Provider
	for _, p := range rs.providers {
		if p.ResourceType() == t {
			out = append(out, p)
		}
	}
	return out
}

// ProviderFor returns the first provider of t accepting ext.
func (rs *ResourceSystem) ProviderFor(t resources.ResourceType, ext string) (resources.Provider, error) {
	for _, p := range rs.ProvidersOfType(t) {
		if p.CanCreateResourceWithFileExtension(ext) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s provider for extension %q", core.ErrNoProvider, t, ext)
}

// Initialize lets every provider discover its collaborators. Call it once,
// after all providers are registered.
func (rs *ResourceSystem) Initialize() error {
	rs.mutex.Lock()
	if rs.initialized {
		rs.mutex.Unlock()
		return nil
	}
	rs.initialized = true
	providers := append([]resources.Provider(nil), rs.providers...)
	rs.mutex.Unlock()

	for _, p := range providers {
		if init, ok := p.(resources.Initializer); ok {
			if err := init.OnInit(rs); err != nil {
				core.LogError("provider %T failed to initialize: %s", p, err)
				return err
			}
		}
	}
	core.LogInfo("Resource system initialized with %d providers.", len(providers))
	return nil
}

func (rs *ResourceSystem) Shutdown() error {
	rs.mutex.Lock()
	providers := rs.providers
	rs.providers = nil
	rs.pool = make(map[resources.Identity]*poolEntry)
	rs.initialized = false
	rs.mutex.Unlock()

	for _, p := range providers {
		if d, ok := p.(resources.Destroyer); ok {
			d.OnDestroy()
		}
	}
	return nil
}

// NewResource returns an empty resource of type t.
func NewResource(t resources.ResourceType) (resources.Resource, error) {
	switch t {
	case resources.ResourceTypeImage:
		return resources.NewImage(), nil
	case resources.ResourceTypeTexture:
		return resources.NewTexture(), nil
	case resources.ResourceTypeCubemap:
		return resources.NewCubemap(), nil
	case resources.ResourceTypeShader:
		return resources.NewShader(), nil
	case resources.ResourceTypeFont:
		return resources.NewFont(), nil
	}
	return nil, fmt.Errorf("%w: unknown resource type %s", core.ErrNoProvider, t)
}

func (rs *ResourceSystem) prepare(t resources.ResourceType, filePath string) (resources.Provider, resources.Resource, error) {
	_, ext := resources.SplitBaseFilename(filePath)
	p, err := rs.ProviderFor(t, ext)
	if err != nil {
		return nil, nil, err
	}
	r, err := NewResource(t)
	if err != nil {
		return nil, nil, err
	}
	return p, r, nil
}

// Load blocks until the resource at (location, filePath) is terminal. Pooled
// resources are returned as they are; a pooled resource still loading
// yields core.ErrResourceInUse since waiting here could starve the main
// thread.
func (rs *ResourceSystem) Load(t resources.ResourceType, location resources.StorageLocation, filePath string) (resources.Resource, error) {
	id := resources.Identity{Type: t, Location: location, Path: filePath}
	if entry, ok := rs.lookup(id); ok {
		if !entry.done() {
			return entry.resource, fmt.Errorf("%w: %s is still loading", core.ErrResourceInUse, id)
		}
		return entry.resource, entry.resource.Err()
	}

	p, r, err := rs.prepare(t, filePath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	entry := newPoolEntry(r)
	rs.store(id, entry)

	err = p.CreateResourceFromFile(location, filePath, r)
	if err != nil {
		rs.forget(id, r)
	}
	close(entry.ready)
	return r, err
}

// LoadAsync starts loading the resource at (location, filePath) and returns
// at once. The delegate runs once on the main thread when the resource is
// terminal, including when it comes from the pool.
func (rs *ResourceSystem) LoadAsync(t resources.ResourceType, location resources.StorageLocation, filePath string, delegate resources.AsyncLoadDelegate) (*resources.LoadHandle, error) {
	id := resources.Identity{Type: t, Location: location, Path: filePath}
	if entry, ok := rs.lookup(id); ok {
		return rs.follow(entry, delegate), nil
	}

	p, r, err := rs.prepare(t, filePath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	entry := newPoolEntry(r)
	if rs.Config.PoolEnabled {
		rs.mutex.Lock()
		if existing, ok := rs.pool[id]; ok {
			// lost the race against another request for the same resource
			rs.mutex.Unlock()
			return rs.follow(existing, delegate), nil
		}
		rs.pool[id] = entry
		rs.mutex.Unlock()
	}

	return p.CreateResourceFromFileAsync(location, filePath, func(res resources.Resource) {
		if res.LoadState() == resources.LoadStateFailed {
			rs.forget(id, res)
		}
		close(entry.ready)
		if delegate != nil {
			delegate(res)
		}
	}, r), nil
}

// follow hands a pooled resource to another async caller: a fresh handle
// resolved on the main thread once the original load is over.
func (rs *ResourceSystem) follow(entry *poolEntry, delegate resources.AsyncLoadDelegate) *resources.LoadHandle {
	h := resources.NewLoadHandle(entry.resource)
	finish := jobs.JobTask{
		ID:         h.ID(),
		JobType:    jobs.JobTypeGPUResource,
		EntryPoint: func() error { return entry.resource.Err() },
		OnComplete: func(err error) {
			if delegate != nil {
				delegate(entry.resource)
			}
			h.Resolve(err)
		},
	}
	if entry.done() {
		rs.scheduler.Submit(finish)
		return h
	}
	go func() {
		<-entry.ready
		rs.scheduler.Submit(finish)
	}()
	return h
}

func (rs *ResourceSystem) lookup(id resources.Identity) (*poolEntry, bool) {
	if !rs.Config.PoolEnabled {
		return nil, false
	}
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	entry, ok := rs.pool[id]
	return entry, ok
}

func (rs *ResourceSystem) store(id resources.Identity, entry *poolEntry) {
	if !rs.Config.PoolEnabled {
		return
	}
	rs.mutex.Lock()
	rs.pool[id] = entry
	rs.mutex.Unlock()
}

// forget drops id from the pool if it still maps to r.
func (rs *ResourceSystem) forget(id resources.Identity, r resources.Resource) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	if entry, ok := rs.pool[id]; ok && entry.resource == r {
		delete(rs.pool, id)
	}
}

// Get returns a pooled resource.
func (rs *ResourceSystem) Get(id resources.Identity) (resources.Resource, bool) {
	entry, ok := rs.lookup(id)
	if !ok {
		return nil, false
	}
	return entry.resource, true
}

// Evict drops id from the pool. Loads in flight go on but their result is
// no longer shared.
func (rs *ResourceSystem) Evict(id resources.Identity) bool {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	if _, ok := rs.pool[id]; !ok {
		return false
	}
	delete(rs.pool, id)
	core.LogDebug("evicted %s", id)
	return true
}

// EvictPath drops every pooled resource built from the file at
// (location, filePath), including cubemaps using it as one of their faces.
// It reports how many entries went away.
func (rs *ResourceSystem) EvictPath(location resources.StorageLocation, filePath string) int {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	n := 0
	for id := range rs.pool {
		if id.Location != location {
			continue
		}
		if id.Path == filePath || (id.Type == resources.ResourceTypeCubemap && isCubemapFace(id.Path, filePath)) {
			delete(rs.pool, id)
			core.LogDebug("evicted %s", id)
			n++
		}
	}
	return n
}

// Count is the number of pooled resources.
func (rs *ResourceSystem) Count() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.pool)
}

func isCubemapFace(cubemapPath, filePath string) bool {
	base, ext := resources.SplitBaseFilename(cubemapPath)
	for i := 0; i < resources.CubemapFaceCount; i++ {
		if faceName(base, ext, i) == filePath {
			return true
		}
	}
	return false
}

// faceName is the file of face i of the cubemap at base.ext.
func faceName(base, ext string, i int) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString(strconv.Itoa(i))
	if ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}
