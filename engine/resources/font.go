package resources

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

type FontGlyph struct {
	Codepoint rune
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

type FontKerning struct {
	Codepoint0 rune
	Codepoint1 rune
	Amount     int16
}

type FontPage struct {
	ID   int
	File string
}

// FontDescriptor is the parsed layout of a bitmap font.
type FontDescriptor struct {
	Face        string
	Size        uint32
	LineHeight  int32
	Baseline    int32
	AtlasWidth  int32
	AtlasHeight int32
	Pages       []FontPage
	Glyphs      []FontGlyph
	Kernings    []FontKerning
}

// Font is a bitmap font: layout plus one loaded texture per page.
type Font struct {
	Base

	contentMutex sync.RWMutex
	desc         FontDescriptor
	pages        []*Texture
	built        bool
}

func NewFont() *Font {
	f := &Font{Base: Base{resourceType: ResourceTypeFont}}
	f.onReset = func() {
		f.contentMutex.Lock()
		f.desc = FontDescriptor{}
		f.pages = nil
		f.built = false
		f.contentMutex.Unlock()
	}
	return f
}

func (f *Font) Build(desc FontDescriptor, pages []*Texture) error {
	if len(pages) != len(desc.Pages) {
		return fmt.Errorf("%w: font declares %d pages, got %d textures", core.ErrBuildFailure, len(desc.Pages), len(pages))
	}
	for i, p := range pages {
		if p == nil || p.LoadState() != LoadStateLoaded {
			return fmt.Errorf("%w: font page %d is not loaded", core.ErrBuildFailure, i)
		}
	}
	f.contentMutex.Lock()
	defer f.contentMutex.Unlock()
	if f.built {
		return fmt.Errorf("%w: font already built", core.ErrBuildFailure)
	}
	f.desc = desc
	f.pages = pages
	f.built = true
	return nil
}

func (f *Font) Descriptor() FontDescriptor {
	f.contentMutex.RLock()
	defer f.contentMutex.RUnlock()
	return f.desc
}

func (f *Font) Pages() []*Texture {
	f.contentMutex.RLock()
	defer f.contentMutex.RUnlock()
	return f.pages
}

// Glyph looks up the glyph of codepoint r.
func (f *Font) Glyph(r rune) (FontGlyph, bool) {
	f.contentMutex.RLock()
	defer f.contentMutex.RUnlock()
	for _, g := range f.desc.Glyphs {
		if g.Codepoint == r {
			return g, true
		}
	}
	return FontGlyph{}, false
}
