// Package atlas manages the tiles of a fixed-grid GPU texture atlas.
//
// An atlas is one GPU texture partitioned into a regular grid of
// same-size tiles. Tiles are content-addressed: render passes look
// them up by a 128-bit fingerprint of their semantic key and supply a
// build function that rasterizes the content on a miss. The atlas
// uploads every distinct bitmap exactly once, keeps lookup O(1), and
// evicts the least recently used tile when the grid is full.
//
// A reserved prefix of the grid is direct-mapped: those tiles are
// addressed by index, bypass hashing and the LRU cache, and are never
// evicted. Terminal renderers pin the ASCII glyphs there.
//
// An atlas instance is single-owner. All operations, including the
// backend command stream, happen on the owner's goroutine.
package atlas

import (
	"fmt"
	"io"
	"math"

	"github.com/rhcher/contour"
	"github.com/rhcher/contour/cache"
	"github.com/rhcher/contour/stronghash"
)

// TextureAtlas glues the LRU tile cache to the atlas grid geometry and
// the backend command stream. M is the caller's per-tile metadata
// (glyph baseline offsets, image fragment info, ...), released on
// eviction.
type TextureAtlas[M any] struct {
	backend   Backend
	props     Properties
	atlasSize Size
	tilesInX  uint32
	tilesInY  uint32

	// tiles caches LRU-managed tiles; its entry indexes offset by
	// DirectMappingCount address the tile grid.
	tiles *cache.StrongLRU[TileAttributes[M]]

	// tileLocations precomputes the grid position of every tile,
	// direct-mapped prefix included. Constant after construction.
	tileLocations []TileLocation

	// directMapping holds the attributes of the reserved prefix.
	directMapping []TileAttributes[M]
}

// New derives the atlas geometry from properties, configures the
// backend, and returns a ready atlas.
//
// The grid always holds at least TileCount + DirectMappingCount tiles;
// since each texture axis rounds up to a power of two, it usually
// holds more, and the extra cells extend the LRU capacity beyond the
// requested TileCount. New fails with ErrInvalidGeometry if rounding
// could not accommodate the request.
func New[M any](backend Backend, props Properties) (*TextureAtlas[M], error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}

	atlasSize := computeAtlasSize(props)
	tilesInX := atlasSize.Width / props.TileSize.Width
	tilesInY := atlasSize.Height / props.TileSize.Height
	capacity := tilesInX * tilesInY

	if capacity < props.TileCount+props.DirectMappingCount {
		return nil, fmt.Errorf("%w: %d tiles in a %v texture, need %d",
			ErrInvalidGeometry, capacity, atlasSize,
			props.TileCount+props.DirectMappingCount)
	}

	a := &TextureAtlas[M]{
		backend:       backend,
		props:         props,
		atlasSize:     atlasSize,
		tilesInX:      tilesInX,
		tilesInY:      tilesInY,
		tileLocations: make([]TileLocation, capacity),
		directMapping: make([]TileAttributes[M], props.DirectMappingCount),
	}
	for i := uint32(0); i < capacity; i++ {
		a.tileLocations[i] = TileLocation{
			X: uint16(i % tilesInX * props.TileSize.Width),
			Y: uint16(i / tilesInX * props.TileSize.Height),
		}
	}
	a.tiles = cache.NewStrongLRU[TileAttributes[M]](
		capacity, capacity-props.DirectMappingCount, "texture atlas")

	backend.ConfigureAtlas(ConfigureAtlas{Size: atlasSize, Properties: props})
	contour.Logger().Info("atlas configured",
		"texture", atlasSize.String(),
		"grid", fmt.Sprintf("%dx%d", tilesInX, tilesInY),
		"properties", props.String())

	return a, nil
}

// computeAtlasSize derives the texture size: enough power-of-two-sized
// space for the next power of two of the total tile count arranged in
// a near-square grid.
func computeAtlasSize(props Properties) Size {
	totalTileCount := nextPowerOfTwo(props.TileCount + props.DirectMappingCount)
	edge := uint32(math.Ceil(math.Sqrt(float64(totalTileCount))))
	return Size{
		Width:  nextPowerOfTwo(edge * props.TileSize.Width),
		Height: nextPowerOfTwo(edge * props.TileSize.Height),
	}
}

// nextPowerOfTwo returns the smallest power of two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

// AtlasSize returns the atlas texture size in pixels.
func (a *TextureAtlas[M]) AtlasSize() Size { return a.atlasSize }

// TileSize returns the grid cell size in pixels.
func (a *TextureAtlas[M]) TileSize() Size { return a.props.TileSize }

// TilesInX returns the number of grid columns.
func (a *TextureAtlas[M]) TilesInX() uint32 { return a.tilesInX }

// TilesInY returns the number of grid rows.
func (a *TextureAtlas[M]) TilesInY() uint32 { return a.tilesInY }

// Capacity returns the total number of tiles the grid holds,
// direct-mapped prefix included.
func (a *TextureAtlas[M]) Capacity() int { return len(a.tileLocations) }

// CachedTileCount returns the number of live tiles in the LRU zone.
func (a *TextureAtlas[M]) CachedTileCount() int { return a.tiles.Len() }

// TileLocation returns the grid position of tile index i.
// It panics if i is outside [0, Capacity()).
func (a *TextureAtlas[M]) TileLocation(i uint32) TileLocation {
	if int(i) >= len(a.tileLocations) {
		panic(fmt.Sprintf("atlas: tile index %d out of range [0,%d)", i, len(a.tileLocations)))
	}
	return a.tileLocations[i]
}

// Contains reports whether the LRU zone caches a tile for key.
// It does not touch LRU order.
func (a *TextureAtlas[M]) Contains(key stronghash.Hash) bool {
	return a.tiles.Contains(key)
}

// TryGet returns the cached tile for key, promoting it to most
// recently used, or nil.
func (a *TextureAtlas[M]) TryGet(key stronghash.Hash) *TileAttributes[M] {
	return a.tiles.TryGet(key)
}

// GetOrEmplace returns the tile for key, building and uploading it on
// a miss. The build function receives the tile's grid location and its
// cache entry index and must return the create data; the bitmap is
// uploaded before the attributes are stored. The returned pointer
// stays valid until the tile is evicted.
func (a *TextureAtlas[M]) GetOrEmplace(key stronghash.Hash, build func(TileLocation, uint32) TileCreateData[M]) *TileAttributes[M] {
	return a.tiles.GetOrEmplace(key, func(entryIndex uint32) TileAttributes[M] {
		attrs, _ := a.constructTile(entryIndex, func(loc TileLocation, idx uint32) (TileCreateData[M], bool) {
			return build(loc, idx), true
		})
		return attrs
	})
}

// GetOrTryEmplace is GetOrEmplace with a build function that may
// decline by returning ok == false. On decline nothing is uploaded, no
// cache slot is consumed, and nil is returned; the caller skips the
// draw and retries naturally on a later frame.
func (a *TextureAtlas[M]) GetOrTryEmplace(key stronghash.Hash, build func(TileLocation, uint32) (TileCreateData[M], bool)) *TileAttributes[M] {
	return a.tiles.GetOrTryEmplace(key, func(entryIndex uint32) (TileAttributes[M], bool) {
		return a.constructTile(entryIndex, build)
	})
}

// Emplace force-creates or overwrites the tile for key, uploading the
// new bitmap unconditionally.
func (a *TextureAtlas[M]) Emplace(key stronghash.Hash, build func(TileLocation) TileCreateData[M]) {
	a.tiles.Emplace(key, func(entryIndex uint32) TileAttributes[M] {
		attrs, _ := a.constructTile(entryIndex, func(loc TileLocation, _ uint32) (TileCreateData[M], bool) {
			return build(loc), true
		})
		return attrs
	})
}

// Remove drops the cached tile for key, releasing its metadata and
// freeing its grid cell. Removing an absent key is a no-op.
func (a *TextureAtlas[M]) Remove(key stronghash.Hash) {
	a.tiles.Remove(key)
}

// OnEvict installs a hook invoked whenever a cached tile is evicted,
// replaced, removed, or cleared, before its grid cell can be reused.
// Metadata owning external resources releases them here.
func (a *TextureAtlas[M]) OnEvict(fn func(entryIndex uint32, attrs *TileAttributes[M])) {
	a.tiles.OnEvict(fn)
}

// constructTile maps the cache entry index to its grid location, runs
// the caller's build function, and uploads the result.
func (a *TextureAtlas[M]) constructTile(entryIndex uint32, build func(TileLocation, uint32) (TileCreateData[M], bool)) (TileAttributes[M], bool) {
	tileIndex := entryIndex + a.props.DirectMappingCount
	loc := a.tileLocations[tileIndex]

	data, ok := build(loc, entryIndex)
	if !ok {
		return TileAttributes[M]{}, false
	}
	a.upload(loc, &data)
	return TileAttributes[M]{
		Location:   loc,
		BitmapSize: data.BitmapSize,
		Metadata:   data.Metadata,
	}, true
}

// upload issues the UploadTile command after validating the bitmap
// fits the tile cell. An oversized bitmap is a programming error in
// the build function and panics.
func (a *TextureAtlas[M]) upload(loc TileLocation, data *TileCreateData[M]) {
	if !data.BitmapSize.fitsIn(a.props.TileSize) {
		panic(fmt.Sprintf("atlas: bitmap %v exceeds tile size %v",
			data.BitmapSize, a.props.TileSize))
	}
	a.backend.UploadTile(UploadTile{
		Location:     loc,
		Bitmap:       data.Bitmap,
		BitmapSize:   data.BitmapSize,
		BitmapFormat: data.BitmapFormat,
	})
	data.Bitmap = nil // ownership moved to the backend
}

// SetDirectMapping uploads a tile into direct-mapped slot index,
// overwriting any previous content there; the previous metadata is
// dropped. It panics if index is outside the direct-mapped zone.
func (a *TextureAtlas[M]) SetDirectMapping(index uint32, data TileCreateData[M]) {
	if int(index) >= len(a.directMapping) {
		panic(fmt.Sprintf("atlas: direct mapping index %d out of range [0,%d)",
			index, len(a.directMapping)))
	}
	loc := a.tileLocations[index]
	a.upload(loc, &data)
	a.directMapping[index] = TileAttributes[M]{
		Location:   loc,
		BitmapSize: data.BitmapSize,
		Metadata:   data.Metadata,
	}
}

// DirectMapped returns the attributes of direct-mapped slot index.
// It does not touch LRU state and panics if index is outside the
// direct-mapped zone.
func (a *TextureAtlas[M]) DirectMapped(index uint32) *TileAttributes[M] {
	if int(index) >= len(a.directMapping) {
		panic(fmt.Sprintf("atlas: direct mapping index %d out of range [0,%d)",
			index, len(a.directMapping)))
	}
	return &a.directMapping[index]
}

// IsDirectMappingEnabled reports whether a direct-mapped zone exists.
func (a *TextureAtlas[M]) IsDirectMappingEnabled() bool {
	return len(a.directMapping) > 0
}

// Reset clears the LRU tile cache so the atlas can be refilled. The
// grid, the tile locations, and the direct-mapped zone are kept, and
// the backend is not reconfigured. Reset accepts only the properties
// the atlas was created with; any difference, whether or not it would
// change the geometry, is rejected with ErrGeometryChangeUnsupported.
func (a *TextureAtlas[M]) Reset(props Properties) error {
	if props != a.props {
		return fmt.Errorf("%w: have %v, requested %v",
			ErrGeometryChangeUnsupported, a.props, props)
	}
	a.tiles.Clear()
	return nil
}

// NormalizedLocation converts a tile location plus bitmap size into
// the atlas texture's [0,1] coordinate space.
func (a *TextureAtlas[M]) NormalizedLocation(loc TileLocation, bitmapSize Size) NormalizedTileLocation {
	return NormalizedTileLocation{
		X:      float32(loc.X) / float32(a.atlasSize.Width),
		Y:      float32(loc.Y) / float32(a.atlasSize.Height),
		Width:  float32(bitmapSize.Width) / float32(a.atlasSize.Width),
		Height: float32(bitmapSize.Height) / float32(a.atlasSize.Height),
	}
}

// Render issues a RenderTile command drawing attrs at target position
// (x, y) with the given normalized color and shader selector. Because
// attrs can only come from this atlas's cache or direct-mapped zone,
// the tile's upload has already been issued.
func (a *TextureAtlas[M]) Render(x, y int, color [4]float32, attrs *TileAttributes[M], shaderSelector uint32) {
	a.backend.RenderTile(RenderTile{
		X:                      x,
		Y:                      y,
		BitmapSize:             attrs.BitmapSize,
		Color:                  color,
		Location:               attrs.Location,
		NormalizedLocation:     a.NormalizedLocation(attrs.Location, attrs.BitmapSize),
		FragmentShaderSelector: shaderSelector,
	})
}

// Inspect writes a human-readable dump of the atlas and its cache.
func (a *TextureAtlas[M]) Inspect(w io.Writer) {
	fmt.Fprintf(w, "TextureAtlas\n")
	fmt.Fprintf(w, "------------------------\n")
	fmt.Fprintf(w, "atlas size     : %v\n", a.atlasSize)
	fmt.Fprintf(w, "tile size      : %v\n", a.props.TileSize)
	fmt.Fprintf(w, "grid           : %dx%d\n", a.tilesInX, a.tilesInY)
	fmt.Fprintf(w, "direct mapped  : %d\n", a.props.DirectMappingCount)
	fmt.Fprintln(w)
	a.tiles.Inspect(w)
}
