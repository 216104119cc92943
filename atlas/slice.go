package atlas

import "iter"

// TileSliceIndex addresses one tile-wide slice of a bitmap that is
// wider than a single tile cell.
type TileSliceIndex struct {
	// SliceIndex counts slices from 0.
	SliceIndex uint32

	// BeginX and EndX bound the slice's pixel columns in the source
	// bitmap, end exclusive.
	BeginX uint32
	EndX   uint32
}

// Sliced yields the tile-wide slices covering a bitmap's width, first
// slice starting at offsetX. Callers that rasterize wider-than-tile
// content (image rows, overlong ligatures) enqueue one UploadTile per
// yielded slice:
//
//	for s := range atlas.Sliced(tileWidth, 0, bitmapSize) {
//	    upload(bitmap columns [s.BeginX, s.EndX))
//	}
//
// The final slice's EndX may exceed the bitmap width; the remainder of
// that tile cell stays unused.
func Sliced(tileWidth, offsetX uint32, bitmapSize Size) iter.Seq[TileSliceIndex] {
	return func(yield func(TileSliceIndex) bool) {
		if tileWidth == 0 {
			return
		}
		s := TileSliceIndex{SliceIndex: 0, BeginX: offsetX, EndX: tileWidth}
		for s.BeginX < bitmapSize.Width {
			if !yield(s) {
				return
			}
			s.SliceIndex++
			s.BeginX = s.EndX
			s.EndX += tileWidth
		}
	}
}
