// Package contour provides the rendering core of a terminal emulator:
// a fixed-grid GPU texture atlas with LRU tile caching and the bounded
// data structures that surround it.
//
// # Overview
//
// A terminal renderer turns screen cells into draw calls. The expensive
// part is getting pixel content (glyphs, box-drawing shapes, image
// fragments) onto the GPU exactly once and reusing it for as long as it
// stays hot. This module packages that machinery as reusable pieces:
//
//   - stronghash: 128-bit content fingerprints used as cache identity
//   - cache: a fixed-capacity LRU hash table with stable entry indices
//   - atlas: the texture atlas grid, tile cache protocol, and backend
//     command stream (configure, upload, render)
//   - ring: a rotation-based ring buffer, used for scrollback lines
//   - glyphs: a tile source that rasterizes font glyphs into atlas tiles
//   - backend/softpix: a CPU backend rendering into an image.RGBA
//   - backend/wgpu: a GPU backend built on gogpu/wgpu
//
// # Quick Start
//
//	target := image.NewRGBA(image.Rect(0, 0, 640, 384))
//	b := softpix.New(target)
//	a, err := atlas.New[glyphs.Metadata](b, atlas.Properties{
//	    Format:             atlas.FormatRed,
//	    TileSize:           atlas.Size{Width: 8, Height: 16},
//	    TileCount:          1024,
//	    DirectMappingCount: 128,
//	})
//
// Render passes compute a stronghash.Hash from their semantic key and
// call a.GetOrEmplace with a build function that rasterizes the tile on
// a miss. The atlas uploads each distinct bitmap exactly once and evicts
// the least recently used tile when full.
//
// # Threading
//
// An atlas instance is single-owner: all operations on it, including
// backend command issuance, must happen on one goroutine (the render
// loop). Higher layers serialize access; the atlas performs no locking.
//
// # Logging
//
// The module is silent by default. Call SetLogger to enable diagnostics:
//
//	contour.SetLogger(slog.Default())
package contour
