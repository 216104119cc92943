package atlas

import (
	"strings"
	"testing"

	"github.com/rhcher/contour/stronghash"
)

// recordingBackend records every command the atlas issues.
type recordingBackend struct {
	configured []ConfigureAtlas
	uploads    []UploadTile
	renders    []RenderTile
}

func (b *recordingBackend) AtlasSize() Size {
	if len(b.configured) == 0 {
		return Size{}
	}
	return b.configured[len(b.configured)-1].Size
}

func (b *recordingBackend) ConfigureAtlas(c ConfigureAtlas) { b.configured = append(b.configured, c) }
func (b *recordingBackend) UploadTile(u UploadTile)         { b.uploads = append(b.uploads, u) }
func (b *recordingBackend) RenderTile(r RenderTile)         { b.renders = append(b.renders, r) }

func h(v uint32) stronghash.Hash {
	return stronghash.FromWords(0, 0, 0, v)
}

// tileData builds create data with a one-byte bitmap and the given
// metadata byte.
func tileData(meta uint8) TileCreateData[uint8] {
	return TileCreateData[uint8]{
		Bitmap:       []byte{0xFF},
		BitmapFormat: FormatRed,
		BitmapSize:   Size{Width: 1, Height: 1},
		Metadata:     meta,
	}
}

func newTestAtlas(t *testing.T, tileCount, directMappingCount uint32) (*TextureAtlas[uint8], *recordingBackend) {
	t.Helper()
	b := &recordingBackend{}
	a, err := New[uint8](b, Properties{
		Format:             FormatRed,
		TileSize:           Size{Width: 8, Height: 16},
		TileCount:          tileCount,
		DirectMappingCount: directMappingCount,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, b
}

func TestFillAndEvict(t *testing.T) {
	a, b := newTestAtlas(t, 4, 0)

	for i := uint32(1); i <= 4; i++ {
		a.GetOrEmplace(h(i), func(TileLocation, uint32) TileCreateData[uint8] {
			return tileData(uint8(i))
		})
	}
	for i := uint32(1); i <= 4; i++ {
		if !a.Contains(h(i)) {
			t.Errorf("h%d missing after fill", i)
		}
	}

	a.GetOrEmplace(h(5), func(TileLocation, uint32) TileCreateData[uint8] {
		return tileData(5)
	})

	if a.Contains(h(1)) {
		t.Error("h1 should have been evicted")
	}
	for i := uint32(2); i <= 5; i++ {
		if !a.Contains(h(i)) {
			t.Errorf("h%d missing after eviction", i)
		}
	}
	if len(b.uploads) != 5 {
		t.Errorf("uploads = %d, want 5 (one per insertion)", len(b.uploads))
	}
	if len(b.configured) != 1 {
		t.Errorf("configureAtlas issued %d times, want 1", len(b.configured))
	}
}

func TestPromoteProtects(t *testing.T) {
	a, _ := newTestAtlas(t, 4, 0)

	for i := uint32(1); i <= 4; i++ {
		a.GetOrEmplace(h(i), func(TileLocation, uint32) TileCreateData[uint8] {
			return tileData(uint8(i))
		})
	}
	if a.TryGet(h(1)) == nil {
		t.Fatal("TryGet(h1) missed")
	}
	a.GetOrEmplace(h(5), func(TileLocation, uint32) TileCreateData[uint8] {
		return tileData(5)
	})

	if a.Contains(h(2)) {
		t.Error("h2 should have been evicted")
	}
	for _, i := range []uint32{1, 3, 4, 5} {
		if !a.Contains(h(i)) {
			t.Errorf("h%d should have survived", i)
		}
	}
}

func TestDirectMappingBypassesLRU(t *testing.T) {
	a, _ := newTestAtlas(t, 2, 2)

	a.SetDirectMapping(0, tileData(10))
	a.SetDirectMapping(1, tileData(11))

	// The LRU zone has exactly 2 slots here (grid capacity 4 minus 2
	// direct-mapped): three inserts evict the first.
	for i := uint32(1); i <= 3; i++ {
		a.GetOrEmplace(h(i), func(TileLocation, uint32) TileCreateData[uint8] {
			return tileData(uint8(i))
		})
	}

	if got := a.DirectMapped(0).Metadata; got != 10 {
		t.Errorf("directMapped(0).metadata = %d, want 10", got)
	}
	if got := a.DirectMapped(1).Metadata; got != 11 {
		t.Errorf("directMapped(1).metadata = %d, want 11", got)
	}
	if a.Contains(h(1)) {
		t.Error("h1 should have been evicted from the LRU zone")
	}
	if !a.Contains(h(2)) || !a.Contains(h(3)) {
		t.Error("h2 and h3 should be cached")
	}
}

func TestDirectMappedZonePrecedesLRUZone(t *testing.T) {
	a, b := newTestAtlas(t, 2, 2)

	a.SetDirectMapping(0, tileData(1))
	a.SetDirectMapping(1, tileData(2))
	if got, want := a.DirectMapped(0).Location, a.TileLocation(0); got != want {
		t.Errorf("direct slot 0 at %v, want %v", got, want)
	}
	if got, want := a.DirectMapped(1).Location, a.TileLocation(1); got != want {
		t.Errorf("direct slot 1 at %v, want %v", got, want)
	}

	// The first LRU insert must land past the direct-mapped prefix.
	a.GetOrEmplace(h(1), func(loc TileLocation, entryIndex uint32) TileCreateData[uint8] {
		if want := a.TileLocation(entryIndex + 2); loc != want {
			t.Errorf("LRU tile at %v, want %v", loc, want)
		}
		return tileData(3)
	})

	for _, u := range b.uploads[:2] {
		if u.Location != a.TileLocation(0) && u.Location != a.TileLocation(1) {
			t.Errorf("direct upload at unexpected location %v", u.Location)
		}
	}
}

func TestDeclineLeavesNoTrace(t *testing.T) {
	a, b := newTestAtlas(t, 4, 0)

	a.GetOrEmplace(h(1), func(TileLocation, uint32) TileCreateData[uint8] {
		return tileData(1)
	})
	uploadsBefore := len(b.uploads)

	p := a.GetOrTryEmplace(h(9), func(TileLocation, uint32) (TileCreateData[uint8], bool) {
		return TileCreateData[uint8]{}, false
	})
	if p != nil {
		t.Fatal("decline returned non-nil attributes")
	}
	if a.Contains(h(9)) {
		t.Error("declined key must not be cached")
	}
	if len(b.uploads) != uploadsBefore {
		t.Errorf("decline issued %d uploads", len(b.uploads)-uploadsBefore)
	}
}

func TestGeometryFromProperties(t *testing.T) {
	b := &recordingBackend{}
	a, err := New[uint8](b, Properties{
		Format:             FormatRed,
		TileSize:           Size{Width: 10, Height: 20},
		TileCount:          60,
		DirectMappingCount: 4,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := a.AtlasSize(); got != (Size{Width: 128, Height: 256}) {
		t.Errorf("atlas size = %v, want 128x256", got)
	}
	if a.TilesInX() != 12 || a.TilesInY() != 12 {
		t.Errorf("grid = %dx%d, want 12x12", a.TilesInX(), a.TilesInY())
	}
	if a.Capacity() != 144 {
		t.Errorf("capacity = %d, want 144", a.Capacity())
	}
	if got := a.TileLocation(13); got != (TileLocation{X: 10, Y: 20}) {
		t.Errorf("tileLocation(13) = %v, want (10,20)", got)
	}
	if got := b.AtlasSize(); got != a.AtlasSize() {
		t.Errorf("backend atlas size %v != atlas size %v", got, a.AtlasSize())
	}
}

func TestTileLocationsWithinTexture(t *testing.T) {
	a, _ := newTestAtlas(t, 60, 4)
	for i := 0; i < a.Capacity(); i++ {
		loc := a.TileLocation(uint32(i))
		if uint32(loc.X)+a.TileSize().Width > a.AtlasSize().Width {
			t.Fatalf("tile %d x=%d overflows texture width", i, loc.X)
		}
		if uint32(loc.Y)+a.TileSize().Height > a.AtlasSize().Height {
			t.Fatalf("tile %d y=%d overflows texture height", i, loc.Y)
		}
	}
}

func TestUploadPrecedesRender(t *testing.T) {
	a, b := newTestAtlas(t, 4, 0)

	attrs := a.GetOrEmplace(h(1), func(TileLocation, uint32) TileCreateData[uint8] {
		return tileData(1)
	})
	a.Render(0, 0, NormalizeRGB(255, 255, 255, 1), attrs, 0)

	if len(b.uploads) != 1 || len(b.renders) != 1 {
		t.Fatalf("uploads=%d renders=%d", len(b.uploads), len(b.renders))
	}
	if b.renders[0].Location != b.uploads[0].Location {
		t.Error("render samples a location that was never uploaded")
	}
}

func TestRenderNormalization(t *testing.T) {
	a, b := newTestAtlas(t, 4, 0)
	attrs := a.GetOrEmplace(h(1), func(TileLocation, uint32) TileCreateData[uint8] {
		return TileCreateData[uint8]{
			Bitmap:       make([]byte, 8*16),
			BitmapFormat: FormatRed,
			BitmapSize:   Size{Width: 8, Height: 16},
		}
	})
	a.Render(3, 5, NormalizeRGBA(255, 0, 0, 255), attrs, 7)

	r := b.renders[0]
	if r.X != 3 || r.Y != 5 || r.FragmentShaderSelector != 7 {
		t.Errorf("render command carries wrong position or selector: %+v", r)
	}
	if r.Color != [4]float32{1, 0, 0, 1} {
		t.Errorf("color = %v", r.Color)
	}
	n := r.NormalizedLocation
	sz := a.AtlasSize()
	if n.Width != 8/float32(sz.Width) || n.Height != 16/float32(sz.Height) {
		t.Errorf("normalized size = %+v", n)
	}
}

func TestEmplaceOverwrites(t *testing.T) {
	a, b := newTestAtlas(t, 4, 0)

	a.Emplace(h(1), func(TileLocation) TileCreateData[uint8] { return tileData(1) })
	a.Emplace(h(1), func(TileLocation) TileCreateData[uint8] { return tileData(2) })

	if got := a.TryGet(h(1)); got == nil || got.Metadata != 2 {
		t.Errorf("after overwrite: %+v, want metadata 2", got)
	}
	if len(b.uploads) != 2 {
		t.Errorf("uploads = %d, want 2 (forced re-upload)", len(b.uploads))
	}
}

func TestRemoveFreesSlot(t *testing.T) {
	a, _ := newTestAtlas(t, 4, 0)
	a.Emplace(h(1), func(TileLocation) TileCreateData[uint8] { return tileData(1) })
	a.Remove(h(1))
	if a.Contains(h(1)) {
		t.Error("removed key still cached")
	}
	a.Remove(h(1)) // absent: no-op
}

func TestReset(t *testing.T) {
	a, b := newTestAtlas(t, 4, 0)
	a.Emplace(h(1), func(TileLocation) TileCreateData[uint8] { return tileData(1) })

	props := Properties{
		Format:             FormatRed,
		TileSize:           Size{Width: 8, Height: 16},
		TileCount:          4,
		DirectMappingCount: 0,
	}
	if err := a.Reset(props); err != nil {
		t.Fatalf("Reset with unchanged properties: %v", err)
	}
	if a.Contains(h(1)) {
		t.Error("Reset did not clear the cache")
	}
	if len(b.configured) != 1 {
		t.Errorf("Reset reissued configureAtlas (%d times)", len(b.configured))
	}

	props.TileSize = Size{Width: 9, Height: 18}
	if err := a.Reset(props); err == nil {
		t.Error("Reset with changed geometry should fail")
	}
}

func TestInvalidGeometry(t *testing.T) {
	b := &recordingBackend{}
	if _, err := New[uint8](b, Properties{
		Format:    FormatRed,
		TileSize:  Size{},
		TileCount: 4,
	}); err == nil {
		t.Error("zero tile size accepted")
	}
	if _, err := New[uint8](b, Properties{
		Format:    Format(2),
		TileSize:  Size{Width: 8, Height: 16},
		TileCount: 4,
	}); err == nil {
		t.Error("invalid format accepted")
	}
	if len(b.configured) != 0 {
		t.Error("failed construction still configured the backend")
	}
}

func TestBitmapTooLargePanics(t *testing.T) {
	a, _ := newTestAtlas(t, 4, 0)
	defer func() {
		if recover() == nil {
			t.Error("oversized bitmap did not panic")
		}
	}()
	a.Emplace(h(1), func(TileLocation) TileCreateData[uint8] {
		return TileCreateData[uint8]{
			Bitmap:       make([]byte, 9*16),
			BitmapFormat: FormatRed,
			BitmapSize:   Size{Width: 9, Height: 16},
		}
	})
}

func TestDirectMappingIndexPanics(t *testing.T) {
	a, _ := newTestAtlas(t, 2, 2)
	defer func() {
		if recover() == nil {
			t.Error("out-of-range direct mapping index did not panic")
		}
	}()
	a.SetDirectMapping(2, tileData(1))
}

func TestPackUnpackTileLocation(t *testing.T) {
	loc := TileLocation{X: 0x1234, Y: 0xABCD}
	packed := loc.Pack()
	if packed != 0xABCD1234 {
		t.Errorf("Pack = %#x, want 0xABCD1234", packed)
	}
	if got := UnpackTileLocation(packed); got != loc {
		t.Errorf("round trip = %+v, want %+v", got, loc)
	}
}

func TestDirectMappingAllocator(t *testing.T) {
	alloc := DirectMappingAllocator{Enabled: true}
	text := alloc.Allocate(96)
	box := alloc.Allocate(32)

	if text.BaseIndex != 0 || text.Count != 96 {
		t.Errorf("first mapping = %+v", text)
	}
	if box.BaseIndex != 96 || box.Count != 32 {
		t.Errorf("second mapping = %+v", box)
	}
	if alloc.Allocated() != 128 {
		t.Errorf("allocated = %d", alloc.Allocated())
	}
	if got := box.ToTileIndex(3); got != 99 {
		t.Errorf("ToTileIndex(3) = %d, want 99", got)
	}

	disabled := DirectMappingAllocator{}
	if m := disabled.Allocate(10); m.Enabled() {
		t.Error("disabled allocator handed out slots")
	}
}

func TestInspect(t *testing.T) {
	a, _ := newTestAtlas(t, 4, 0)
	var sb strings.Builder
	a.Inspect(&sb)
	out := sb.String()
	for _, want := range []string{"TextureAtlas", "atlas size", "8x16"} {
		if !strings.Contains(out, want) {
			t.Errorf("Inspect output missing %q:\n%s", want, out)
		}
	}
}
