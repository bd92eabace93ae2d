package loaders

import (
	"fmt"
	"sort"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// BitmapFontExtension is the extension of AngelCode BMFont text descriptors.
const BitmapFontExtension = "fnt"

// ImportFNTFile parses an AngelCode BMFont file. Page file names are relative
// to the directory of the descriptor.
func ImportFNTFile(fntFileName string) (resources.FontDescriptor, error) {
	font, err := bmfont.Load(fntFileName)
	if err != nil {
		return resources.FontDescriptor{}, fmt.Errorf("%w: %s: %v", core.ErrIOFailure, fntFileName, err)
	}
	d := font.Descriptor

	out := resources.FontDescriptor{
		Face:        d.Info.Face,
		Size:        uint32(d.Info.Size),
		LineHeight:  int32(d.Common.LineHeight),
		Baseline:    int32(d.Common.Base),
		AtlasWidth:  int32(d.Common.ScaleW),
		AtlasHeight: int32(d.Common.ScaleH),
		Pages:       make([]resources.FontPage, 0, len(d.Pages)),
		Glyphs:      make([]resources.FontGlyph, 0, len(d.Chars)),
		Kernings:    make([]resources.FontKerning, 0, len(d.Kerning)),
	}

	for _, p := range d.Pages {
		out.Pages = append(out.Pages, resources.FontPage{ID: int(p.ID), File: p.File})
	}
	for _, g := range d.Chars {
		out.Glyphs = append(out.Glyphs, resources.FontGlyph{
			Codepoint: rune(g.ID),
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		})
	}
	for p, k := range d.Kerning {
		out.Kernings = append(out.Kernings, resources.FontKerning{
			Codepoint0: rune(p.First),
			Codepoint1: rune(p.Second),
			Amount:     int16(k.Amount),
		})
	}

	// The descriptor keeps these in maps; order them so loads are repeatable.
	sort.Slice(out.Pages, func(i, j int) bool { return out.Pages[i].ID < out.Pages[j].ID })
	sort.Slice(out.Glyphs, func(i, j int) bool { return out.Glyphs[i].Codepoint < out.Glyphs[j].Codepoint })
	sort.Slice(out.Kernings, func(i, j int) bool {
		a, b := out.Kernings[i], out.Kernings[j]
		if a.Codepoint0 != b.Codepoint0 {
			return a.Codepoint0 < b.Codepoint0
		}
		return a.Codepoint1 < b.Codepoint1
	})
	return out, nil
}
