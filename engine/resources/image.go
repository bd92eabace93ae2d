package resources

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

// Format is the pixel layout of image and texture data.
type Format uint8

const (
	FormatRGBA8888 Format = iota
	FormatRGB888
	FormatRGBA4444
	FormatRGB565
	FormatLumA88
	FormatLum8
	FormatDepth16
	FormatDepth32
)

var formatNames = map[Format]string{
	FormatRGBA8888: "RGBA8888",
	FormatRGB888:   "RGB888",
	FormatRGBA4444: "RGBA4444",
	FormatRGB565:   "RGB565",
	FormatLumA88:   "LumA88",
	FormatLum8:     "Lum8",
	FormatDepth16:  "Depth16",
	FormatDepth32:  "Depth32",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// BytesPerPixel of an uncompressed pixel in this format, 0 if unknown.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8888, FormatDepth32:
		return 4
	case FormatRGB888:
		return 3
	case FormatRGBA4444, FormatRGB565, FormatLumA88, FormatDepth16:
		return 2
	case FormatLum8:
		return 1
	}
	return 0
}

// Compression is the GPU compression scheme of the data, if any.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionETC1
	CompressionPVR2Bpp
	CompressionPVR4Bpp
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionETC1:
		return "ETC1"
	case CompressionPVR2Bpp:
		return "PVR2Bpp"
	case CompressionPVR4Bpp:
		return "PVR4Bpp"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// TextureDescriptor describes the upload parameters of one block of pixel
// data.
type TextureDescriptor struct {
	Width       uint32
	Height      uint32
	Format      Format
	Compression Compression
	DataSize    uint64
}

// ExpectedDataSize is the number of bytes the descriptor's dimensions need.
// ETC1 stores 8 bytes per 4x4 block; PVRTC pads to 8x8 (4 bpp) or 16x8
// (2 bpp) pixels.
func (d TextureDescriptor) ExpectedDataSize() (uint64, error) {
	w, h := uint64(d.Width), uint64(d.Height)
	switch d.Compression {
	case CompressionNone:
		bpp := uint64(d.Format.BytesPerPixel())
		if bpp == 0 {
			return 0, fmt.Errorf("%w: unknown format %s", core.ErrBuildFailure, d.Format)
		}
		return w * h * bpp, nil
	case CompressionETC1:
		return ((w + 3) / 4) * ((h + 3) / 4) * 8, nil
	case CompressionPVR4Bpp:
		return max(w, 8) * max(h, 8) * 4 / 8, nil
	case CompressionPVR2Bpp:
		return max(w, 16) * max(h, 8) * 2 / 8, nil
	}
	return 0, fmt.Errorf("%w: unknown compression %s", core.ErrBuildFailure, d.Compression)
}

// CheckSize checks the descriptor against itself: non zero dimensions and a
// DataSize matching them. It needs no pixel data.
func (d TextureDescriptor) CheckSize() error {
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("%w: zero sized image %dx%d", core.ErrBuildFailure, d.Width, d.Height)
	}
	want, err := d.ExpectedDataSize()
	if err != nil {
		return err
	}
	if want != d.DataSize {
		return fmt.Errorf("%w: %dx%d %s/%s needs %d bytes, got %d", core.ErrBuildFailure, d.Width, d.Height, d.Format, d.Compression, want, d.DataSize)
	}
	return nil
}

// Validate checks that data matches the descriptor.
func (d TextureDescriptor) Validate(data *Buffer) error {
	if err := d.CheckSize(); err != nil {
		return err
	}
	if uint64(data.Len()) != d.DataSize {
		return fmt.Errorf("%w: descriptor expects %d bytes, buffer holds %d", core.ErrBuildFailure, d.DataSize, data.Len())
	}
	return nil
}

// Image is a decoded image. Its data can be moved out exactly once.
type Image struct {
	Base

	contentMutex sync.RWMutex
	desc         TextureDescriptor
	data         *Buffer
}

func NewImage() *Image {
	img := &Image{Base: Base{resourceType: ResourceTypeImage}}
	img.onReset = func() {
		img.contentMutex.Lock()
		img.desc = TextureDescriptor{}
		img.data = nil
		img.contentMutex.Unlock()
	}
	return img
}

// Build stores decoded pixel data. Called once by the image provider.
func (i *Image) Build(desc TextureDescriptor, data *Buffer) error {
	if err := desc.Validate(data); err != nil {
		return err
	}
	i.contentMutex.Lock()
	defer i.contentMutex.Unlock()
	if i.data != nil {
		return fmt.Errorf("%w: image already built", core.ErrBuildFailure)
	}
	i.desc = desc
	i.data = data
	return nil
}

func (i *Image) Descriptor() TextureDescriptor {
	i.contentMutex.RLock()
	defer i.contentMutex.RUnlock()
	return i.desc
}

func (i *Image) Width() uint32            { return i.Descriptor().Width }
func (i *Image) Height() uint32           { return i.Descriptor().Height }
func (i *Image) Format() Format           { return i.Descriptor().Format }
func (i *Image) Compression() Compression { return i.Descriptor().Compression }
func (i *Image) DataSize() uint64         { return i.Descriptor().DataSize }

// Data is the pixel buffer; nil before Build, empty after MoveData.
func (i *Image) Data() []byte {
	i.contentMutex.RLock()
	defer i.contentMutex.RUnlock()
	return i.data.Bytes()
}

// MoveData hands the pixel buffer over to the caller. The image is consumed
// afterwards and a second call returns core.ErrImageConsumed.
func (i *Image) MoveData() (*Buffer, error) {
	i.contentMutex.Lock()
	defer i.contentMutex.Unlock()
	if i.data == nil {
		return nil, fmt.Errorf("%w: image has no data", core.ErrImageConsumed)
	}
	return i.data.Move()
}
