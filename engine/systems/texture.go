package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// imageSource is the set of image providers a texture-like provider decodes
// through. It is filled once in OnInit and read-only afterwards.
type imageSource struct {
	imageProviders []resources.Provider
}

func (s *imageSource) discover(registry resources.ProviderRegistry, owner string) {
	s.imageProviders = registry.ProvidersOfType(resources.ResourceTypeImage)
	if len(s.imageProviders) == 0 {
		core.LogWarn("%s found no image providers, every load will fail", owner)
	}
}

func (s *imageSource) release() {
	s.imageProviders = nil
}

func (s *imageSource) CanCreateResourceWithFileExtension(ext string) bool {
	return s.providerFor(ext) != nil
}

// providerFor returns the first image provider accepting ext.
func (s *imageSource) providerFor(ext string) resources.Provider {
	for _, p := range s.imageProviders {
		if p.CanCreateResourceWithFileExtension(ext) {
			return p
		}
	}
	return nil
}

// decodeImage loads the file into a fresh image through p, on the calling
// goroutine, and takes its pixel buffer.
func decodeImage(p resources.Provider, location resources.StorageLocation, filePath string) (resources.TextureDescriptor, *resources.Buffer, error) {
	img := resources.NewImage()
	img.MarkInternal()
	if err := p.CreateResourceFromFile(location, filePath, img); err != nil {
		return resources.TextureDescriptor{}, nil, err
	}
	data, err := img.MoveData()
	if err != nil {
		return resources.TextureDescriptor{}, nil, err
	}
	return img.Descriptor(), data, nil
}

// TextureProvider builds 2D textures out of any file an image provider can
// decode.
type TextureProvider struct {
	imageSource
	scheduler jobs.Scheduler
}

func NewTextureProvider(scheduler jobs.Scheduler) *TextureProvider {
	return &TextureProvider{scheduler: scheduler}
}

func (tp *TextureProvider) ResourceType() resources.ResourceType {
	return resources.ResourceTypeTexture
}

func (tp *TextureProvider) OnInit(registry resources.ProviderRegistry) error {
	tp.discover(registry, "texture provider")
	return nil
}

func (tp *TextureProvider) OnDestroy() {
	tp.release()
}

func (tp *TextureProvider) CreateResourceFromFile(location resources.StorageLocation, filePath string, out resources.Resource) error {
	l := jobs.NewLoad("texture", location, filePath, out)
	tp.load(l)
	return l.Handle.Err()
}

func (tp *TextureProvider) CreateResourceFromFileAsync(location resources.StorageLocation, filePath string, delegate resources.AsyncLoadDelegate, out resources.Resource) *resources.LoadHandle {
	l := jobs.NewAsyncLoad("texture", tp.scheduler, location, filePath, delegate, out)
	tp.load(l)
	return l.Handle
}

func (tp *TextureProvider) load(l *jobs.Load) {
	if !l.Start() {
		return
	}
	texture, ok := l.Resource.(*resources.Texture)
	if !ok {
		l.Fail(fmt.Errorf("%w: texture provider cannot build a %s resource", core.ErrBuildFailure, l.Resource.ResourceType()))
		return
	}

	_, ext := resources.SplitBaseFilename(l.Path)
	imageProvider := tp.providerFor(ext)
	if imageProvider == nil {
		l.Fail(fmt.Errorf("%w: no image provider for %q", core.ErrMissingSubProvider, l.Path))
		return
	}

	var (
		desc resources.TextureDescriptor
		data *resources.Buffer
	)
	l.Decode(func() error {
		var err error
		desc, data, err = decodeImage(imageProvider, l.Location, l.Path)
		return err
	}, func() {
		l.Build(func() error {
			return texture.Build(desc, data)
		})
	})
}
