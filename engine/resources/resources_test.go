package resources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

func TestLoadStateLifecycle(t *testing.T) {
	tex := NewTexture()
	if tex.LoadState() != LoadStateNotLoaded {
		t.Fatalf("expected not-loaded, got %s", tex.LoadState())
	}

	if tex.Finish(nil) {
		t.Error("Finish must not succeed before BeginLoad")
	}
	if err := tex.Reset(); !errors.Is(err, core.ErrResourceInUse) {
		t.Errorf("expected reset of a fresh resource to fail, got %v", err)
	}

	if err := tex.BeginLoad(StorageLocationPackage, "a.png"); err != nil {
		t.Fatalf("BeginLoad: %v", err)
	}
	if err := tex.BeginLoad(StorageLocationPackage, "a.png"); !errors.Is(err, core.ErrResourceInUse) {
		t.Errorf("expected ErrResourceInUse on second BeginLoad, got %v", err)
	}
	id := tex.Identity()
	if id.Type != ResourceTypeTexture || id.Location != StorageLocationPackage || id.Path != "a.png" {
		t.Errorf("unexpected identity %v", id)
	}

	failure := errors.New("boom")
	if !tex.Finish(failure) {
		t.Fatal("expected Finish to commit")
	}
	if tex.LoadState() != LoadStateFailed || !errors.Is(tex.Err(), failure) {
		t.Errorf("expected failed with error, got %s / %v", tex.LoadState(), tex.Err())
	}
	if tex.Finish(nil) {
		t.Error("terminal state must not change")
	}

	if err := tex.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if tex.LoadState() != LoadStateNotLoaded || tex.Err() != nil {
		t.Errorf("expected clean resource after reset, got %s / %v", tex.LoadState(), tex.Err())
	}
}

func TestBufferMoveOnce(t *testing.T) {
	b := NewBuffer([]byte{1, 2, 3})
	moved, err := b.Move()
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.Len() != 3 || b.Len() != 0 || !b.Moved() {
		t.Errorf("expected ownership to move, src=%d dst=%d", b.Len(), moved.Len())
	}
	if _, err := b.Move(); !errors.Is(err, core.ErrImageConsumed) {
		t.Errorf("expected ErrImageConsumed, got %v", err)
	}
}

func TestImageMoveDataConsumesImage(t *testing.T) {
	img := NewImage()
	desc := TextureDescriptor{Width: 2, Height: 1, Format: FormatRGBA8888, DataSize: 8}
	if err := img.Build(desc, NewBuffer(make([]byte, 8))); err != nil {
		t.Fatalf("Build: %v", err)
	}

	data, err := img.MoveData()
	if err != nil {
		t.Fatalf("MoveData: %v", err)
	}
	if data.Len() != 8 {
		t.Errorf("expected 8 bytes, got %d", data.Len())
	}
	if _, err := img.MoveData(); !errors.Is(err, core.ErrImageConsumed) {
		t.Errorf("expected ErrImageConsumed, got %v", err)
	}
	// metadata survives the move
	if img.Width() != 2 || img.DataSize() != 8 {
		t.Errorf("unexpected descriptor after move %+v", img.Descriptor())
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name string
		desc TextureDescriptor
		size int
		ok   bool
	}{
		{"rgba", TextureDescriptor{Width: 2, Height: 2, Format: FormatRGBA8888, DataSize: 16}, 16, true},
		{"lum", TextureDescriptor{Width: 3, Height: 1, Format: FormatLum8, DataSize: 3}, 3, true},
		{"size mismatch", TextureDescriptor{Width: 2, Height: 2, Format: FormatRGBA8888, DataSize: 16}, 12, false},
		{"wrong bpp", TextureDescriptor{Width: 2, Height: 2, Format: FormatRGB888, DataSize: 16}, 16, false},
		{"zero size", TextureDescriptor{Format: FormatRGBA8888}, 0, false},
		{"compressed opaque", TextureDescriptor{Width: 4, Height: 4, Compression: CompressionETC1, DataSize: 8}, 8, true},
		{"etc1 partial blocks", TextureDescriptor{Width: 5, Height: 3, Compression: CompressionETC1, DataSize: 16}, 16, true},
		{"etc1 oversized claim", TextureDescriptor{Width: 100000, Height: 100000, Compression: CompressionETC1, DataSize: 16}, 16, false},
		{"pvr4 minimum", TextureDescriptor{Width: 4, Height: 4, Compression: CompressionPVR4Bpp, DataSize: 32}, 32, true},
		{"pvr4 too small", TextureDescriptor{Width: 4, Height: 4, Compression: CompressionPVR4Bpp, DataSize: 8}, 8, false},
		{"pvr2 minimum", TextureDescriptor{Width: 8, Height: 8, Compression: CompressionPVR2Bpp, DataSize: 32}, 32, true},
		{"pvr2 large", TextureDescriptor{Width: 32, Height: 32, Compression: CompressionPVR2Bpp, DataSize: 256}, 256, true},
		{"unknown compression", TextureDescriptor{Width: 4, Height: 4, Compression: Compression(9), DataSize: 8}, 8, false},
		{"unknown format", TextureDescriptor{Width: 1, Height: 1, Format: Format(42), DataSize: 1}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate(NewBuffer(make([]byte, tt.size)))
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && !errors.Is(err, core.ErrBuildFailure) {
				t.Errorf("expected ErrBuildFailure, got %v", err)
			}
		})
	}
}

func TestTextureBuildOnce(t *testing.T) {
	tex := NewTexture()
	desc := TextureDescriptor{Width: 1, Height: 1, Format: FormatRGBA8888, DataSize: 4}
	if err := tex.Build(desc, NewBuffer([]byte{1, 2, 3, 4})); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tex.Build(desc, NewBuffer([]byte{1, 2, 3, 4})); !errors.Is(err, core.ErrBuildFailure) {
		t.Errorf("expected ErrBuildFailure on rebuild, got %v", err)
	}
	if got := tex.Data(); len(got) != 4 || got[3] != 4 {
		t.Errorf("unexpected data %v", got)
	}
}

func TestCubemapBuildRequiresAllFaces(t *testing.T) {
	var descs [CubemapFaceCount]TextureDescriptor
	var data [CubemapFaceCount]*Buffer
	for i := 0; i < CubemapFaceCount-1; i++ {
		descs[i] = TextureDescriptor{Width: 1, Height: 1, Format: FormatLum8, DataSize: 1}
		data[i] = NewBuffer([]byte{byte(i)})
	}

	cube := NewCubemap()
	if err := cube.Build(descs, data); !errors.Is(err, core.ErrBuildFailure) {
		t.Fatalf("expected ErrBuildFailure with a missing face, got %v", err)
	}
	if cube.Built() {
		t.Error("cubemap must not be partially built")
	}

	descs[5] = TextureDescriptor{Width: 1, Height: 1, Format: FormatLum8, DataSize: 1}
	data[5] = NewBuffer([]byte{5})
	if err := cube.Build(descs, data); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, face := cube.Face(5); len(face) != 1 || face[0] != 5 {
		t.Errorf("unexpected face 5 data %v", face)
	}
}

func TestShaderBuild(t *testing.T) {
	s := NewShader()
	if err := s.Build(" A ", ""); !errors.Is(err, core.ErrBuildFailure) {
		t.Errorf("expected ErrBuildFailure, got %v", err)
	}
	if err := s.Build(" A ", " B "); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.VertexSource() != " A " || s.FragmentSource() != " B " {
		t.Errorf("unexpected sources %q %q", s.VertexSource(), s.FragmentSource())
	}
}

func TestLoadHandleResolvesOnce(t *testing.T) {
	h := NewLoadHandle(NewShader())
	if h.Err() != nil {
		t.Error("unresolved handle must report no error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	first := errors.New("first")
	if !h.Resolve(first) {
		t.Fatal("expected first Resolve to win")
	}
	if h.Resolve(nil) {
		t.Error("expected second Resolve to be ignored")
	}
	if err := h.Wait(context.Background()); !errors.Is(err, first) {
		t.Errorf("expected first error, got %v", err)
	}
	if h.Stage() != StageDone {
		t.Errorf("expected stage done, got %s", h.Stage())
	}
	if h.ID() == "" {
		t.Error("expected a request id")
	}
}

func TestSplitBaseFilename(t *testing.T) {
	tests := []struct {
		in, base, ext string
	}{
		{"textures/wall.png", "textures/wall", "png"},
		{"sky.cube.jpg", "sky.cube", "jpg"},
		{"noext", "noext", ""},
		{"dir/.hidden", "dir/.hidden", ""},
	}
	for _, tt := range tests {
		base, ext := SplitBaseFilename(tt.in)
		if base != tt.base || ext != tt.ext {
			t.Errorf("SplitBaseFilename(%q) = %q, %q; expected %q, %q", tt.in, base, ext, tt.base, tt.ext)
		}
	}
}

func TestParseEnums(t *testing.T) {
	loc, err := ParseStorageLocation("DLC")
	if err != nil || loc != StorageLocationDLC {
		t.Errorf("expected dlc, got %v (%v)", loc, err)
	}
	if _, err := ParseStorageLocation("moon"); err == nil {
		t.Error("expected an error for an unknown location")
	}
	typ, err := ParseResourceType("cubemap")
	if err != nil || typ != ResourceTypeCubemap {
		t.Errorf("expected cubemap, got %v (%v)", typ, err)
	}
}
