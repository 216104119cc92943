// Package images turns raster images into atlas tiles.
//
// Terminal image protocols place images on the cell grid, so an image
// is rendered as a grid of cell-size fragments, each fragment one
// atlas tile keyed by (image, column, row). Fragments share the LRU
// zone with glyphs and age out like any other tile: discarding an
// image does not proactively evict its tiles, the cache is its own
// resource guard.
package images

import (
	"image"
	"image/draw"

	"github.com/rhcher/contour"
	"github.com/rhcher/contour/atlas"
	"github.com/rhcher/contour/stronghash"
)

// ID identifies an image within one Renderer.
type ID uint32

// Metadata is the per-fragment tile payload.
type Metadata struct {
	// Image is the id of the source image.
	Image ID

	// Column and Row locate the fragment on the image's cell grid.
	Column uint32
	Row    uint32
}

// Renderer slices images into cell-size fragments and draws them
// through the atlas. Single-owner, like the atlas.
type Renderer struct {
	atlas  *atlas.TextureAtlas[Metadata]
	cell   atlas.Size
	images map[ID]*image.RGBA
	nextID ID
}

// NewRenderer binds an image renderer to a.
func NewRenderer(a *atlas.TextureAtlas[Metadata]) *Renderer {
	return &Renderer{
		atlas:  a,
		cell:   a.TileSize(),
		images: make(map[ID]*image.RGBA),
		nextID: 1,
	}
}

// Add registers img and returns its id. The image is converted to RGBA
// once; fragments are cut lazily as they are drawn.
func (r *Renderer) Add(img image.Image) ID {
	id := r.nextID
	r.nextID++

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	r.images[id] = rgba
	return id
}

// Discard forgets the image. Fragments already uploaded stay cached
// until the LRU ages them out; a discarded image's tiles may therefore
// still satisfy draws of another image with identical content hashes.
func (r *Renderer) Discard(id ID) {
	delete(r.images, id)
	contour.Logger().Debug("image discarded", "id", uint32(id))
}

// Columns returns the number of fragment columns image id covers, or
// 0 for an unknown image.
func (r *Renderer) Columns(id ID) uint32 {
	img, ok := r.images[id]
	if !ok {
		return 0
	}
	return (uint32(img.Bounds().Dx()) + r.cell.Width - 1) / r.cell.Width
}

// Rows returns the number of fragment rows image id covers, or 0.
func (r *Renderer) Rows(id ID) uint32 {
	img, ok := r.images[id]
	if !ok {
		return 0
	}
	return (uint32(img.Bounds().Dy()) + r.cell.Height - 1) / r.cell.Height
}

// fragmentKey fingerprints one fragment of one image.
func (r *Renderer) fragmentKey(id ID, col, row uint32) stronghash.Hash {
	h := stronghash.New()
	h.WriteUint32(uint32(id))
	h.WriteUint32(col)
	h.WriteUint32(row)
	h.WriteUint32(r.cell.Width)
	h.WriteUint32(r.cell.Height)
	return h.Sum()
}

// DrawFragment draws fragment (col, row) of image id with its top-left
// at target position (x, y). Fragments outside the image, or of a
// discarded image whose tile already aged out, are skipped.
func (r *Renderer) DrawFragment(x, y int, id ID, col, row uint32) bool {
	attrs := r.atlas.GetOrTryEmplace(r.fragmentKey(id, col, row),
		func(loc atlas.TileLocation, _ uint32) (atlas.TileCreateData[Metadata], bool) {
			return r.cutFragment(id, col, row)
		})
	if attrs == nil {
		return false
	}
	r.atlas.Render(x, y, [4]float32{1, 1, 1, 1}, attrs, 1)
	return true
}

// cutFragment copies one cell-size fragment out of the source image.
// Edge fragments narrower than a cell keep their true size so the
// backend never samples beyond the image.
func (r *Renderer) cutFragment(id ID, col, row uint32) (atlas.TileCreateData[Metadata], bool) {
	img, ok := r.images[id]
	if !ok {
		return atlas.TileCreateData[Metadata]{}, false
	}
	b := img.Bounds()
	x0 := b.Min.X + int(col*r.cell.Width)
	y0 := b.Min.Y + int(row*r.cell.Height)
	if x0 >= b.Max.X || y0 >= b.Max.Y {
		return atlas.TileCreateData[Metadata]{}, false
	}
	w := min(int(r.cell.Width), b.Max.X-x0)
	h := min(int(r.cell.Height), b.Max.Y-y0)

	bitmap := make([]byte, w*h*4)
	for dy := 0; dy < h; dy++ {
		src := img.PixOffset(x0, y0+dy)
		copy(bitmap[dy*w*4:(dy+1)*w*4], img.Pix[src:src+w*4])
	}

	return atlas.TileCreateData[Metadata]{
		Bitmap:       bitmap,
		BitmapFormat: atlas.FormatRGBA,
		BitmapSize:   atlas.Size{Width: uint32(w), Height: uint32(h)},
		Metadata:     Metadata{Image: id, Column: col, Row: row},
	}, true
}

// Draw draws every fragment of image id with the image's top-left cell
// anchored at target position (x, y). It returns the number of
// fragments drawn.
func (r *Renderer) Draw(x, y int, id ID) int {
	cols, rows := r.Columns(id), r.Rows(id)
	drawn := 0
	for row := uint32(0); row < rows; row++ {
		for col := uint32(0); col < cols; col++ {
			if r.DrawFragment(x+int(col*r.cell.Width), y+int(row*r.cell.Height), id, col, row) {
				drawn++
			}
		}
	}
	return drawn
}
