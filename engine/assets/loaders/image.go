package loaders

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

type decodeFunc func(r io.Reader) (image.Image, error)

// imageProvider is the part every image decoder shares: extension lookup,
// the load pipeline and the conversion into engine pixel formats.
type imageProvider struct {
	name       string
	fs         resources.FileSystem
	scheduler  jobs.Scheduler
	options    core.ImagesConfig
	extensions map[string]decodeFunc
	// decodeFile replaces the image/* based decode when set.
	decodeFile func(location resources.StorageLocation, filePath string) (resources.TextureDescriptor, *resources.Buffer, error)
}

func (p *imageProvider) ResourceType() resources.ResourceType {
	return resources.ResourceTypeImage
}

func (p *imageProvider) CanCreateResourceWithFileExtension(ext string) bool {
	_, ok := p.extensions[resources.NormalizeExtension(ext)]
	return ok
}

func (p *imageProvider) CreateResourceFromFile(location resources.StorageLocation, filePath string, out resources.Resource) error {
	l := jobs.NewLoad(p.name, location, filePath, out)
	p.load(l)
	return l.Handle.Err()
}

func (p *imageProvider) CreateResourceFromFileAsync(location resources.StorageLocation, filePath string, delegate resources.AsyncLoadDelegate, out resources.Resource) *resources.LoadHandle {
	l := jobs.NewAsyncLoad(p.name, p.scheduler, location, filePath, delegate, out)
	p.load(l)
	return l.Handle
}

func (p *imageProvider) load(l *jobs.Load) {
	if !l.Start() {
		return
	}
	img, ok := l.Resource.(*resources.Image)
	if !ok {
		l.Fail(fmt.Errorf("%w: %s cannot build a %s resource", core.ErrBuildFailure, p.name, l.Resource.ResourceType()))
		return
	}

	var (
		desc resources.TextureDescriptor
		data *resources.Buffer
	)
	l.Decode(func() error {
		var err error
		if p.decodeFile != nil {
			desc, data, err = p.decodeFile(l.Location, l.Path)
		} else {
			desc, data, err = p.decode(l.Location, l.Path)
		}
		return err
	}, func() {
		l.Build(func() error {
			return img.Build(desc, data)
		})
	})
}

func (p *imageProvider) decode(location resources.StorageLocation, filePath string) (resources.TextureDescriptor, *resources.Buffer, error) {
	_, ext := resources.SplitBaseFilename(filePath)
	decode, ok := p.extensions[resources.NormalizeExtension(ext)]
	if !ok {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: %s does not decode .%s files", core.ErrNoProvider, p.name, ext)
	}

	f, err := p.fs.Open(location, filePath)
	if err != nil {
		return resources.TextureDescriptor{}, nil, err
	}
	defer f.Close()

	src, err := decode(f)
	if err != nil {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidImageData, filePath, err)
	}
	return ConvertImage(src, p.options)
}

// ConvertImage turns a decoded image into tightly packed engine pixels.
// Grayscale sources become Lum8, everything else RGBA8888 with straight
// alpha, or RGB888 when the image is opaque and DropOpaqueAlpha is set.
func ConvertImage(src image.Image, options core.ImagesConfig) (resources.TextureDescriptor, *resources.Buffer, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: empty image", core.ErrInvalidImageData)
	}
	rect := image.Rect(0, 0, w, h)

	var (
		pix    []byte
		format resources.Format
	)
	switch s := src.(type) {
	case *image.Gray:
		dst := image.NewGray(rect)
		draw.Draw(dst, rect, s, bounds.Min, draw.Src)
		pix, format = dst.Pix, resources.FormatLum8
	case *image.NRGBA:
		dst := image.NewNRGBA(rect)
		for y := 0; y < h; y++ {
			from := s.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], s.Pix[from:from+w*4])
		}
		pix, format = dst.Pix, resources.FormatRGBA8888
		if options.DropOpaqueAlpha && dst.Opaque() {
			pix, format = dropAlpha(dst.Pix), resources.FormatRGB888
		}
	default:
		dst := image.NewNRGBA(rect)
		draw.Draw(dst, rect, src, bounds.Min, draw.Src)
		pix, format = dst.Pix, resources.FormatRGBA8888
		if options.DropOpaqueAlpha && dst.Opaque() {
			pix, format = dropAlpha(dst.Pix), resources.FormatRGB888
		}
	}

	if options.FlipY {
		flipRows(pix, w*format.BytesPerPixel(), h)
	}

	desc := resources.TextureDescriptor{
		Width:       uint32(w),
		Height:      uint32(h),
		Format:      format,
		Compression: resources.CompressionNone,
		DataSize:    uint64(len(pix)),
	}
	return desc, resources.NewBuffer(pix), nil
}

func dropAlpha(rgba []byte) []byte {
	out := make([]byte, 0, len(rgba)/4*3)
	for i := 0; i+3 < len(rgba); i += 4 {
		out = append(out, rgba[i], rgba[i+1], rgba[i+2])
	}
	return out
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// StdImageProvider decodes PNG, JPEG and GIF files.
type StdImageProvider struct {
	imageProvider
}

func NewStdImageProvider(fs resources.FileSystem, scheduler jobs.Scheduler, options core.ImagesConfig) *StdImageProvider {
	return &StdImageProvider{imageProvider{
		name:      "std-image",
		fs:        fs,
		scheduler: scheduler,
		options:   options,
		extensions: map[string]decodeFunc{
			"png":  png.Decode,
			"jpg":  jpeg.Decode,
			"jpeg": jpeg.Decode,
			"gif":  gif.Decode,
		},
	}}
}
