package systems

import (
	"github.com/spaghettifunk/anima-loader/engine/assets"
	"github.com/spaghettifunk/anima-loader/engine/assets/loaders"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// SystemManager owns the job system, the resource system and every
// provider registered with it.
type SystemManager struct {
	fileSystem     *assets.FileSystem
	jobSystem      *JobSystem
	resourceSystem *ResourceSystem

	textureProvider *TextureProvider
	cubemapProvider *CubemapProvider
	shaderProvider  *ShaderProvider
	fontProvider    *FontProvider
}

func NewSystemManager(config *core.Config) (*SystemManager, error) {
	fs := assets.NewFileSystem(config.Storage)

	js, err := NewJobSystem(config.Jobs.Workers, config.Jobs.QueueSize)
	if err != nil {
		return nil, err
	}
	rs, err := NewResourceSystem(&ResourceSystemConfig{
		PoolEnabled: config.Pool.Enabled,
	}, js)
	if err != nil {
		js.Shutdown()
		return nil, err
	}

	sm := &SystemManager{
		fileSystem:      fs,
		jobSystem:       js,
		resourceSystem:  rs,
		textureProvider: NewTextureProvider(js),
		cubemapProvider: NewCubemapProvider(js, config.Cubemap.ParallelFaces),
		shaderProvider: NewShaderProvider(&ShaderProviderConfig{
			Language: config.Shader.Language,
		}, fs, js),
		fontProvider: NewFontProvider(fs, js),
	}

	// Image decoders first: the first one accepting an extension wins.
	providers := []resources.Provider{
		loaders.NewStdImageProvider(fs, js, config.Images),
		loaders.NewXImageProvider(fs, js, config.Images),
		loaders.NewPackedImageProvider(fs, js),
		sm.textureProvider,
		sm.cubemapProvider,
		sm.shaderProvider,
		sm.fontProvider,
	}
	for _, p := range providers {
		if err := rs.RegisterProvider(p); err != nil {
			sm.Shutdown()
			return nil, err
		}
	}
	if err := rs.Initialize(); err != nil {
		sm.Shutdown()
		return nil, err
	}

	return sm, nil
}

func (sm *SystemManager) FileSystem() *assets.FileSystem {
	return sm.fileSystem
}

func (sm *SystemManager) JobSystem() *JobSystem {
	return sm.jobSystem
}

func (sm *SystemManager) ResourceSystem() *ResourceSystem {
	return sm.resourceSystem
}

func (sm *SystemManager) TextureProvider() *TextureProvider {
	return sm.textureProvider
}

func (sm *SystemManager) CubemapProvider() *CubemapProvider {
	return sm.cubemapProvider
}

func (sm *SystemManager) ShaderProvider() *ShaderProvider {
	return sm.shaderProvider
}

func (sm *SystemManager) FontProvider() *FontProvider {
	return sm.fontProvider
}

// Shutdown drains the job system before the providers release their state,
// so every pending request still completes. Call it from the main thread.
func (sm *SystemManager) Shutdown() error {
	if err := sm.jobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.resourceSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
