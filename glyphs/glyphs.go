// Package glyphs rasterizes font glyphs into atlas tiles.
//
// It is the hot tile source of the terminal renderer: each cell's
// glyph becomes one atlas tile (two for double-width glyphs), keyed by
// a fingerprint of font, glyph and size. Printable ASCII can be pinned
// into the atlas's direct-mapped zone, where it skips both hashing and
// LRU bookkeeping.
package glyphs

import (
	"bytes"
	"fmt"
	"image"
	"math"

	gtfont "github.com/go-text/typesetting/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/width"

	"github.com/rhcher/contour/atlas"
	"github.com/rhcher/contour/stronghash"
)

// directMappingFirst and directMappingLast bound the printable ASCII
// range pinned into the direct-mapped zone.
const (
	directMappingFirst = 0x20
	directMappingLast  = 0x7E
)

// DirectMappingSlots is the number of direct-mapped slots a Renderer
// needs to pin printable ASCII.
const DirectMappingSlots = directMappingLast - directMappingFirst + 1

// Metadata is the per-tile payload the renderer carries for a glyph.
type Metadata struct {
	// Advance is the glyph's horizontal advance in pixels.
	Advance float64

	// Wide marks a glyph occupying two terminal cells.
	Wide bool
}

// Renderer rasterizes glyphs on atlas cache misses and issues the
// per-cell draw commands. Like the atlas, it is single-owner.
type Renderer struct {
	atlas  *atlas.TextureAtlas[Metadata]
	direct atlas.DirectMapping

	face   xfont.Face
	gtFace *gtfont.Face
	fontID uint64
	sizeID uint64

	cell   atlas.Size
	ascent int
}

// NewRenderer parses fontData, sizes it to sizePx pixels per em, and
// binds the renderer to a. The direct mapping, obtained from the
// atlas's DirectMappingAllocator, may be empty; ASCII then goes
// through the LRU zone like everything else.
func NewRenderer(fontData []byte, sizePx float64, a *atlas.TextureAtlas[Metadata], direct atlas.DirectMapping) (*Renderer, error) {
	otFont, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("glyphs: parse font: %w", err)
	}
	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("glyphs: create face: %w", err)
	}
	gtFace, err := gtfont.ParseTTF(bytes.NewReader(fontData))
	if err != nil {
		return nil, fmt.Errorf("glyphs: parse font tables: %w", err)
	}

	r := &Renderer{
		atlas:  a,
		direct: direct,
		face:   face,
		gtFace: gtFace,
		fontID: stronghash.Sum(fontData).Lo,
		sizeID: math.Float64bits(sizePx),
		cell:   a.TileSize(),
		ascent: face.Metrics().Ascent.Ceil(),
	}
	if direct.Enabled() {
		r.pinASCII()
	}
	return r, nil
}

// CellSize returns the terminal cell size, which equals the atlas tile
// size.
func (r *Renderer) CellSize() atlas.Size { return r.cell }

// IsWide reports whether rune ch occupies two terminal cells,
// following East Asian Width.
func (r *Renderer) IsWide(ch rune) bool {
	switch width.LookupRune(ch).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return true
	}
	return false
}

// glyphKey fingerprints one tile slice of a glyph.
func (r *Renderer) glyphKey(gid gtfont.GID, slice uint32) stronghash.Hash {
	h := stronghash.New()
	h.WriteUint64(r.fontID)
	h.WriteUint64(r.sizeID)
	h.WriteUint32(uint32(gid))
	h.WriteUint32(slice)
	return h.Sum()
}

// Draw renders rune ch with its cell origin at target position (x, y).
// It reports whether anything was drawn; runes the font cannot shape
// are skipped and will be retried naturally on the next frame if a
// fallback font appears.
func (r *Renderer) Draw(x, y int, ch rune, color [4]float32) bool {
	if r.direct.Enabled() && ch >= directMappingFirst && ch <= directMappingLast {
		slot := r.direct.ToTileIndex(uint32(ch - directMappingFirst))
		r.atlas.Render(x, y, color, r.atlas.DirectMapped(slot), 0)
		return true
	}

	gid, ok := r.gtFace.NominalGlyph(ch)
	if !ok {
		return false
	}

	cells := uint32(1)
	if r.IsWide(ch) {
		cells = 2
	}
	bitmapSize := atlas.Size{Width: r.cell.Width * cells, Height: r.cell.Height}

	// Wide glyphs span two tiles; each slice is cached independently
	// so a wide glyph and its left half never collide.
	drew := false
	for s := range atlas.Sliced(r.cell.Width, 0, bitmapSize) {
		attrs := r.atlas.GetOrTryEmplace(r.glyphKey(gid, s.SliceIndex),
			func(loc atlas.TileLocation, _ uint32) (atlas.TileCreateData[Metadata], bool) {
				return r.rasterizeSlice(ch, cells, s)
			})
		if attrs == nil {
			continue
		}
		r.atlas.Render(x+int(s.BeginX), y, color, attrs, 0)
		drew = true
	}
	return drew
}

// rasterizeSlice draws the glyph into a cell-aligned alpha mask and
// cuts out the requested tile-wide slice.
func (r *Renderer) rasterizeSlice(ch rune, cells uint32, s atlas.TileSliceIndex) (atlas.TileCreateData[Metadata], bool) {
	mask, advance, ok := r.rasterize(ch, cells)
	if !ok {
		return atlas.TileCreateData[Metadata]{}, false
	}

	w := int(r.cell.Width)
	h := int(r.cell.Height)
	bitmap := make([]byte, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			srcX := int(s.BeginX) + col
			if srcX >= mask.Rect.Dx() {
				break
			}
			bitmap[row*w+col] = mask.Pix[row*mask.Stride+srcX]
		}
	}

	return atlas.TileCreateData[Metadata]{
		Bitmap:       bitmap,
		BitmapFormat: atlas.FormatRed,
		BitmapSize:   r.cell,
		Metadata: Metadata{
			Advance: float64(advance) / 64,
			Wide:    cells > 1,
		},
	}, true
}

// rasterize draws rune ch onto a fresh alpha mask covering cells
// terminal cells, pen on the baseline at the left cell edge.
func (r *Renderer) rasterize(ch rune, cells uint32) (*image.Alpha, fixed.Int26_6, bool) {
	advance, ok := r.face.GlyphAdvance(ch)
	if !ok {
		return nil, 0, false
	}

	mask := image.NewAlpha(image.Rect(0, 0, int(r.cell.Width*cells), int(r.cell.Height)))
	d := &xfont.Drawer{
		Dst:  mask,
		Src:  image.White,
		Face: r.face,
		Dot:  fixed.P(0, r.ascent),
	}
	d.DrawString(string(ch))
	return mask, advance, true
}

// pinASCII uploads the printable ASCII glyphs into the direct-mapped
// zone. Runes the font cannot render get an empty tile; they stay
// addressable so the draw path needs no fallback branch.
func (r *Renderer) pinASCII() {
	w := int(r.cell.Width)
	h := int(r.cell.Height)
	for ch := rune(directMappingFirst); ch <= directMappingLast; ch++ {
		bitmap := make([]byte, w*h)
		var meta Metadata
		if mask, advance, ok := r.rasterize(ch, 1); ok {
			for row := 0; row < h; row++ {
				copy(bitmap[row*w:(row+1)*w], mask.Pix[row*mask.Stride:row*mask.Stride+w])
			}
			meta = Metadata{Advance: float64(advance) / 64}
		}
		r.atlas.SetDirectMapping(r.direct.ToTileIndex(uint32(ch-directMappingFirst)), atlas.TileCreateData[Metadata]{
			Bitmap:       bitmap,
			BitmapFormat: atlas.FormatRed,
			BitmapSize:   r.cell,
			Metadata:     meta,
		})
	}
}
