package loaders

import (
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// XImageProvider decodes the formats the standard library has no decoder
// for: BMP, TIFF and WebP.
type XImageProvider struct {
	imageProvider
}

func NewXImageProvider(fs resources.FileSystem, scheduler jobs.Scheduler, options core.ImagesConfig) *XImageProvider {
	return &XImageProvider{imageProvider{
		name:      "x-image",
		fs:        fs,
		scheduler: scheduler,
		options:   options,
		extensions: map[string]decodeFunc{
			"bmp":  bmp.Decode,
			"tiff": tiff.Decode,
			"tif":  tiff.Decode,
			"webp": webp.Decode,
		},
	}}
}
