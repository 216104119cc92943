package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/rhcher/contour/atlas"
	"github.com/rhcher/contour/backend/softpix"
)

func newRenderer(t *testing.T, tileCount uint32) (*Renderer, *atlas.TextureAtlas[Metadata], *softpix.Backend) {
	t.Helper()
	b := softpix.New(image.NewRGBA(image.Rect(0, 0, 128, 128)))
	a, err := atlas.New[Metadata](b, atlas.Properties{
		Format:    atlas.FormatRGBA,
		TileSize:  atlas.Size{Width: 8, Height: 8},
		TileCount: tileCount,
	})
	if err != nil {
		t.Fatalf("atlas.New: %v", err)
	}
	return NewRenderer(a), a, b
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: byte(x * 13), G: byte(y * 7), B: 0x40, A: 0xFF})
		}
	}
	return img
}

func TestGridDimensions(t *testing.T) {
	r, _, _ := newRenderer(t, 64)
	id := r.Add(testImage(20, 17))
	if cols := r.Columns(id); cols != 3 {
		t.Errorf("Columns = %d, want 3", cols)
	}
	if rows := r.Rows(id); rows != 3 {
		t.Errorf("Rows = %d, want 3", rows)
	}
}

func TestDrawUploadsOncePerFragment(t *testing.T) {
	r, _, b := newRenderer(t, 64)
	id := r.Add(testImage(16, 16))

	if drawn := r.Draw(0, 0, id); drawn != 4 {
		t.Fatalf("Draw drew %d fragments, want 4", drawn)
	}
	uploads, renders := b.Stats()
	if uploads != 4 || renders != 4 {
		t.Errorf("first draw: %d uploads, %d renders", uploads, renders)
	}

	// Second draw is fully cached.
	r.Draw(32, 32, id)
	uploads, renders = b.Stats()
	if uploads != 4 {
		t.Errorf("second draw re-uploaded (%d total)", uploads)
	}
	if renders != 8 {
		t.Errorf("renders = %d, want 8", renders)
	}
}

func TestEdgeFragmentsKeepTrueSize(t *testing.T) {
	r, a, b := newRenderer(t, 64)
	id := r.Add(testImage(12, 8))

	r.Draw(0, 0, id)
	// Second column fragment covers only 4 of 8 pixels.
	uploads, _ := b.Stats()
	if uploads != 2 {
		t.Fatalf("uploads = %d, want 2", uploads)
	}
	attrs := a.TryGet(r.fragmentKey(id, 1, 0))
	if attrs == nil || attrs.BitmapSize != (atlas.Size{Width: 4, Height: 8}) {
		t.Errorf("edge fragment attributes = %+v, want bitmap size 4x8", attrs)
	}
}

func TestOutOfRangeFragmentSkipped(t *testing.T) {
	r, _, b := newRenderer(t, 64)
	id := r.Add(testImage(8, 8))
	if r.DrawFragment(0, 0, id, 5, 5) {
		t.Error("out-of-range fragment drawn")
	}
	if uploads, _ := b.Stats(); uploads != 0 {
		t.Errorf("out-of-range fragment uploaded %d tiles", uploads)
	}
}

func TestDiscardDoesNotEvictTiles(t *testing.T) {
	r, a, _ := newRenderer(t, 64)
	id := r.Add(testImage(16, 16))
	r.Draw(0, 0, id)
	cached := a.CachedTileCount()

	r.Discard(id)

	// Discarding must not evict: the tiles age out through the LRU.
	if got := a.CachedTileCount(); got != cached {
		t.Errorf("Discard changed cached tile count %d -> %d", cached, got)
	}
	// Cached fragments still draw.
	if !r.DrawFragment(0, 0, id, 0, 0) {
		t.Error("cached fragment of a discarded image failed to draw")
	}
}

func TestDiscardedImageCannotRebuildAgedOutTiles(t *testing.T) {
	r, a, _ := newRenderer(t, 64)
	id := r.Add(testImage(8, 8))
	r.Draw(0, 0, id)

	r.Discard(id)
	// Force the fragment out of the cache.
	if err := a.Reset(atlas.Properties{
		Format:    atlas.FormatRGBA,
		TileSize:  atlas.Size{Width: 8, Height: 8},
		TileCount: 64,
	}); err != nil {
		t.Fatal(err)
	}

	if r.DrawFragment(0, 0, id, 0, 0) {
		t.Error("aged-out fragment of a discarded image drew")
	}
}

func TestDrawPixels(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 128, 128))
	b := softpix.New(target)
	a, err := atlas.New[Metadata](b, atlas.Properties{
		Format:    atlas.FormatRGBA,
		TileSize:  atlas.Size{Width: 8, Height: 8},
		TileCount: 64,
	})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(a)

	src := testImage(8, 8)
	id := r.Add(src)
	r.Draw(0, 0, id)

	// Spot-check one interior pixel survives the trip.
	want := src.RGBAAt(3, 2)
	got := target.RGBAAt(3, 2)
	if got.A == 0 {
		t.Fatal("target untouched")
	}
	diff := func(a, b byte) int {
		d := int(a) - int(b)
		if d < 0 {
			d = -d
		}
		return d
	}
	if diff(got.R, want.R) > 2 || diff(got.G, want.G) > 2 || diff(got.B, want.B) > 2 {
		t.Errorf("pixel (3,2) = %v, want ~%v", got, want)
	}
}
