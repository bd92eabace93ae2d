package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// PackedImageExtension is the extension of the packed image container.
const PackedImageExtension = "aimg"

const (
	packedVersion = 1
	// Upper bound on the payload of one packed image (16k x 16k RGBA).
	packedMaxDataSize = 16384 * 16384 * 4
)

var packedMagic = [4]byte{'A', 'I', 'M', 'G'}

// packedHeader precedes the lz4 frame holding the pixel bytes. All fields
// are little endian.
type packedHeader struct {
	Magic       [4]byte
	Version     uint16
	Format      uint8
	Compression uint8
	Width       uint32
	Height      uint32
	DataSize    uint64
}

// PackedImageProvider reads images stored in the engine's own container:
// a fixed header followed by the raw (or GPU compressed) pixel bytes in an
// lz4 frame. The pixels are used as they are, no conversion takes place.
type PackedImageProvider struct {
	imageProvider
}

func NewPackedImageProvider(fs resources.FileSystem, scheduler jobs.Scheduler) *PackedImageProvider {
	p := &PackedImageProvider{imageProvider{
		name:       "packed-image",
		fs:         fs,
		scheduler:  scheduler,
		extensions: map[string]decodeFunc{PackedImageExtension: nil},
	}}
	p.decodeFile = p.readPacked
	return p
}

func (p *PackedImageProvider) readPacked(location resources.StorageLocation, filePath string) (resources.TextureDescriptor, *resources.Buffer, error) {
	f, err := p.fs.Open(location, filePath)
	if err != nil {
		return resources.TextureDescriptor{}, nil, err
	}
	defer f.Close()

	desc, data, err := DecodePackedImage(f)
	if err != nil {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return desc, data, nil
}

// DecodePackedImage reads one packed image from r.
func DecodePackedImage(r io.Reader) (resources.TextureDescriptor, *resources.Buffer, error) {
	var hdr packedHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: reading header: %v", core.ErrInvalidImageData, err)
	}
	if hdr.Magic != packedMagic {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: bad magic %q", core.ErrInvalidImageData, hdr.Magic[:])
	}
	if hdr.Version != packedVersion {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: unsupported version %d", core.ErrInvalidImageData, hdr.Version)
	}
	if hdr.DataSize == 0 || hdr.DataSize > packedMaxDataSize {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: payload of %d bytes", core.ErrInvalidImageData, hdr.DataSize)
	}

	desc := resources.TextureDescriptor{
		Width:       hdr.Width,
		Height:      hdr.Height,
		Format:      resources.Format(hdr.Format),
		Compression: resources.Compression(hdr.Compression),
		DataSize:    hdr.DataSize,
	}
	// The header must describe itself consistently before anything is
	// allocated for the payload.
	if err := desc.CheckSize(); err != nil {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: %w", core.ErrInvalidImageData, err)
	}

	data := make([]byte, hdr.DataSize)
	zr := lz4.NewReader(r)
	if _, err := io.ReadFull(zr, data); err != nil {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: reading payload: %v", core.ErrInvalidImageData, err)
	}
	// Trailing bytes mean the header lies about the size.
	var extra [1]byte
	if n, err := zr.Read(extra[:]); n != 0 || (err != nil && !errors.Is(err, io.EOF)) {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: payload larger than %d bytes", core.ErrInvalidImageData, hdr.DataSize)
	}

	buf := resources.NewBuffer(data)
	if err := desc.Validate(buf); err != nil {
		return resources.TextureDescriptor{}, nil, fmt.Errorf("%w: %w", core.ErrInvalidImageData, err)
	}
	return desc, buf, nil
}

// EncodePackedImage writes a built image in the packed container. The image
// keeps its data.
func EncodePackedImage(w io.Writer, img *resources.Image) error {
	return EncodePackedPixels(w, img.Descriptor(), img.Data())
}

// EncodePackedPixels writes desc and data in the packed container.
func EncodePackedPixels(w io.Writer, desc resources.TextureDescriptor, data []byte) error {
	if err := desc.Validate(resources.NewBuffer(data)); err != nil {
		return err
	}
	hdr := packedHeader{
		Magic:       packedMagic,
		Version:     packedVersion,
		Format:      uint8(desc.Format),
		Compression: uint8(desc.Compression),
		Width:       desc.Width,
		Height:      desc.Height,
		DataSize:    desc.DataSize,
	}
	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, hdr); err != nil {
		return err
	}
	zw := lz4.NewWriter(&out)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4.Level5)); err != nil {
		return err
	}
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	_, err := w.Write(out.Bytes())
	return err
}
