package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// faceSet holds the six decoded faces between the decode job and the build.
type faceSet struct {
	descs [resources.CubemapFaceCount]resources.TextureDescriptor
	data  [resources.CubemapFaceCount]*resources.Buffer
}

// check verifies that every face matches the first one.
func (fs *faceSet) check(names [resources.CubemapFaceCount]string) error {
	first := fs.descs[0]
	for i := 1; i < resources.CubemapFaceCount; i++ {
		d := fs.descs[i]
		if d.Width != first.Width || d.Height != first.Height || d.Format != first.Format || d.Compression != first.Compression {
			return fmt.Errorf("%w: face %d (%s) is %dx%d %s/%s, face 0 is %dx%d %s/%s", core.ErrFaceDecodeFailure,
				i, names[i], d.Width, d.Height, d.Format, d.Compression,
				first.Width, first.Height, first.Format, first.Compression)
		}
	}
	return nil
}

/**
 * @brief Loads cube textures. A request for "name.ext" reads the six faces
 * name0.ext to name5.ext, in the order +X, -X, +Y, -Y, +Z, -Z. Every face
 * must decode and all must share size, format and compression.
 */
type CubemapProvider struct {
	imageSource
	scheduler jobs.Scheduler
	// decode the faces concurrently instead of one after the other
	parallel bool
}

func NewCubemapProvider(scheduler jobs.Scheduler, parallelFaces bool) *CubemapProvider {
	return &CubemapProvider{scheduler: scheduler, parallel: parallelFaces}
}

func (cp *CubemapProvider) ResourceType() resources.ResourceType {
	return resources.ResourceTypeCubemap
}

func (cp *CubemapProvider) OnInit(registry resources.ProviderRegistry) error {
	cp.discover(registry, "cubemap provider")
	return nil
}

func (cp *CubemapProvider) OnDestroy() {
	cp.release()
}

func (cp *CubemapProvider) CreateResourceFromFile(location resources.StorageLocation, filePath string, out resources.Resource) error {
	l := jobs.NewLoad("cubemap", location, filePath, out)
	cp.load(l)
	return l.Handle.Err()
}

func (cp *CubemapProvider) CreateResourceFromFileAsync(location resources.StorageLocation, filePath string, delegate resources.AsyncLoadDelegate, out resources.Resource) *resources.LoadHandle {
	l := jobs.NewAsyncLoad("cubemap", cp.scheduler, location, filePath, delegate, out)
	cp.load(l)
	return l.Handle
}

// FaceNames lists the files backing the cubemap at filePath.
func FaceNames(filePath string) [resources.CubemapFaceCount]string {
	base, ext := resources.SplitBaseFilename(filePath)
	var names [resources.CubemapFaceCount]string
	for i := range names {
		names[i] = faceName(base, ext, i)
	}
	return names
}

func (cp *CubemapProvider) load(l *jobs.Load) {
	if !l.Start() {
		return
	}
	cube, ok := l.Resource.(*resources.Cubemap)
	if !ok {
		l.Fail(fmt.Errorf("%w: cubemap provider cannot build a %s resource", core.ErrBuildFailure, l.Resource.ResourceType()))
		return
	}

	_, ext := resources.SplitBaseFilename(l.Path)
	imageProvider := cp.providerFor(ext)
	if imageProvider == nil {
		l.Fail(fmt.Errorf("%w: no image provider for %q", core.ErrMissingSubProvider, l.Path))
		return
	}

	names := FaceNames(l.Path)
	faces := &faceSet{}
	l.Decode(func() error {
		var err error
		if cp.parallel {
			err = decodeFacesParallel(imageProvider, l.Location, names, faces)
		} else {
			err = decodeFaces(imageProvider, l.Location, names, faces)
		}
		if err != nil {
			return err
		}
		return faces.check(names)
	}, func() {
		l.Build(func() error {
			err := cube.Build(faces.descs, faces.data)
			// the cubemap owns the buffers now
			faces = nil
			return err
		})
	})
}

// decodeFaces reads the faces in order and stops at the first failure.
func decodeFaces(p resources.Provider, location resources.StorageLocation, names [resources.CubemapFaceCount]string, faces *faceSet) error {
	for i, name := range names {
		desc, data, err := decodeImage(p, location, name)
		if err != nil {
			*faces = faceSet{}
			return fmt.Errorf("%w: face %d (%s): %w", core.ErrFaceDecodeFailure, i, name, err)
		}
		faces.descs[i] = desc
		faces.data[i] = data
	}
	return nil
}

// decodeFacesParallel reads all faces at once. When several fail the lowest
// face index is reported.
func decodeFacesParallel(p resources.Provider, location resources.StorageLocation, names [resources.CubemapFaceCount]string, faces *faceSet) error {
	var (
		wg   sync.WaitGroup
		errs [resources.CubemapFaceCount]error
	)
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			desc, data, err := decodeImage(p, location, name)
			if err != nil {
				errs[i] = err
				return
			}
			faces.descs[i] = desc
			faces.data[i] = data
		}(i, name)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			*faces = faceSet{}
			return fmt.Errorf("%w: face %d (%s): %w", core.ErrFaceDecodeFailure, i, names[i], err)
		}
	}
	return nil
}
