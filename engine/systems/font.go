package systems

import (
	"fmt"
	"path"

	"github.com/spaghettifunk/anima-loader/engine/assets/loaders"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// FontProvider loads AngelCode bitmap fonts together with their page
// textures. Page images sit next to the descriptor file and are decoded
// through the image providers; the page textures are built with the font.
type FontProvider struct {
	fs        resources.FileSystem
	scheduler jobs.Scheduler
	images    imageSource
}

// fontPage is a decoded page image waiting for the font build.
type fontPage struct {
	path string
	desc resources.TextureDescriptor
	data *resources.Buffer
}

func NewFontProvider(fs resources.FileSystem, scheduler jobs.Scheduler) *FontProvider {
	return &FontProvider{fs: fs, scheduler: scheduler}
}

func (fp *FontProvider) ResourceType() resources.ResourceType {
	return resources.ResourceTypeFont
}

func (fp *FontProvider) CanCreateResourceWithFileExtension(ext string) bool {
	return resources.NormalizeExtension(ext) == loaders.BitmapFontExtension
}

func (fp *FontProvider) OnInit(registry resources.ProviderRegistry) error {
	fp.images.discover(registry, "font provider")
	return nil
}

func (fp *FontProvider) OnDestroy() {
	fp.images.release()
}

func (fp *FontProvider) CreateResourceFromFile(location resources.StorageLocation, filePath string, out resources.Resource) error {
	l := jobs.NewLoad("font", location, filePath, out)
	fp.load(l)
	return l.Handle.Err()
}

func (fp *FontProvider) CreateResourceFromFileAsync(location resources.StorageLocation, filePath string, delegate resources.AsyncLoadDelegate, out resources.Resource) *resources.LoadHandle {
	l := jobs.NewAsyncLoad("font", fp.scheduler, location, filePath, delegate, out)
	fp.load(l)
	return l.Handle
}

func (fp *FontProvider) load(l *jobs.Load) {
	if !l.Start() {
		return
	}
	font, ok := l.Resource.(*resources.Font)
	if !ok {
		l.Fail(fmt.Errorf("%w: font provider cannot build a %s resource", core.ErrBuildFailure, l.Resource.ResourceType()))
		return
	}
	if len(fp.images.imageProviders) == 0 {
		l.Fail(fmt.Errorf("%w: no image provider for the pages of %q", core.ErrMissingSubProvider, l.Path))
		return
	}

	var (
		desc  resources.FontDescriptor
		pages []fontPage
	)
	l.Decode(func() error {
		full, err := fp.fs.AbsolutePath(l.Location, l.Path)
		if err != nil {
			return err
		}
		if desc, err = loaders.ImportFNTFile(full); err != nil {
			return err
		}
		pages, err = fp.decodePages(l, desc)
		return err
	}, func() {
		l.Build(func() error {
			textures, err := buildPages(l.Location, pages)
			pages = nil
			if err != nil {
				return err
			}
			return font.Build(desc, textures)
		})
	})
}

// decodePages decodes every page image on the calling goroutine. The first
// failing page fails the font.
func (fp *FontProvider) decodePages(l *jobs.Load, desc resources.FontDescriptor) ([]fontPage, error) {
	dir := path.Dir(l.Path)
	pages := make([]fontPage, 0, len(desc.Pages))
	for _, page := range desc.Pages {
		pagePath := path.Join(dir, page.File)
		_, ext := resources.SplitBaseFilename(pagePath)
		p := fp.images.providerFor(ext)
		if p == nil {
			return nil, fmt.Errorf("%w: font page %d (%s)", core.ErrMissingSubProvider, page.ID, pagePath)
		}
		pd, data, err := decodeImage(p, l.Location, pagePath)
		if err != nil {
			return nil, fmt.Errorf("%w: font page %d (%s): %w", core.ErrBuildFailure, page.ID, pagePath, err)
		}
		pages = append(pages, fontPage{path: pagePath, desc: pd, data: data})
	}
	return pages, nil
}

// buildPages turns the decoded pages into loaded textures. It runs with the
// font build, on the thread owning the graphics context.
func buildPages(location resources.StorageLocation, pages []fontPage) ([]*resources.Texture, error) {
	textures := make([]*resources.Texture, 0, len(pages))
	for i, page := range pages {
		texture := resources.NewTexture()
		texture.MarkInternal()
		if err := texture.BeginLoad(location, page.path); err != nil {
			return nil, err
		}
		err := texture.Build(page.desc, page.data)
		texture.Finish(err)
		if err != nil {
			return nil, fmt.Errorf("%w: font page %d (%s): %w", core.ErrBuildFailure, i, page.path, err)
		}
		textures = append(textures, texture)
	}
	return textures, nil
}
