// Package softpix is a CPU implementation of the atlas backend.
//
// It keeps the atlas texture as a plain byte buffer and renders tiles
// into a borrowed image.RGBA with source-over blending. It exists for
// tests, for headless tools, and as the fallback when no GPU device is
// available; the command stream it consumes is identical to the one
// the GPU backend consumes.
package softpix

import (
	"image"

	"github.com/rhcher/contour"
	"github.com/rhcher/contour/atlas"
)

// Backend renders atlas tiles into an image.RGBA on the CPU.
//
// Backend is single-owner, like the atlas that drives it.
type Backend struct {
	target *image.RGBA

	// texture is the atlas texture, properties.Format encoded,
	// row-major with stride size.Width.
	texture []byte
	size    atlas.Size
	props   atlas.Properties

	uploads uint64
	renders uint64
}

// New creates a backend rendering into target. The target is borrowed
// and may be swapped later with SetTarget.
func New(target *image.RGBA) *Backend {
	return &Backend{target: target}
}

// SetTarget replaces the render target, e.g. after a window resize.
func (b *Backend) SetTarget(target *image.RGBA) { b.target = target }

// Target returns the current render target.
func (b *Backend) Target() *image.RGBA { return b.target }

// AtlasSize returns the configured atlas texture size.
func (b *Backend) AtlasSize() atlas.Size { return b.size }

// ConfigureAtlas allocates the CPU-side atlas texture.
func (b *Backend) ConfigureAtlas(cfg atlas.ConfigureAtlas) {
	b.size = cfg.Size
	b.props = cfg.Properties
	b.texture = make([]byte, int(cfg.Size.Width)*int(cfg.Size.Height)*cfg.Properties.Format.BytesPerPixel())
	contour.Logger().Info("softpix atlas configured",
		"texture", cfg.Size.String(), "format", cfg.Properties.Format.String())
}

// UploadTile copies the bitmap into the atlas texture, converting the
// bitmap's format to the texture's format where they differ.
func (b *Backend) UploadTile(u atlas.UploadTile) {
	if b.texture == nil {
		return
	}
	srcBPP := u.BitmapFormat.BytesPerPixel()
	dstBPP := b.props.Format.BytesPerPixel()
	stride := int(b.size.Width) * dstBPP

	for row := 0; row < int(u.BitmapSize.Height); row++ {
		dstY := int(u.Location.Y) + row
		if dstY >= int(b.size.Height) {
			break
		}
		for col := 0; col < int(u.BitmapSize.Width); col++ {
			dstX := int(u.Location.X) + col
			if dstX >= int(b.size.Width) {
				break
			}
			src := (row*int(u.BitmapSize.Width) + col) * srcBPP
			dst := dstY*stride + dstX*dstBPP
			copyPixel(b.texture[dst:dst+dstBPP], b.props.Format, u.Bitmap[src:src+srcBPP], u.BitmapFormat)
		}
	}
	b.uploads++
}

// copyPixel converts one pixel between tile formats.
func copyPixel(dst []byte, dstFormat atlas.Format, src []byte, srcFormat atlas.Format) {
	var r, g, bb, a byte
	switch srcFormat {
	case atlas.FormatRed:
		r, g, bb, a = src[0], src[0], src[0], src[0]
	case atlas.FormatRGB:
		r, g, bb, a = src[0], src[1], src[2], 0xFF
	case atlas.FormatRGBA:
		r, g, bb, a = src[0], src[1], src[2], src[3]
	}
	switch dstFormat {
	case atlas.FormatRed:
		dst[0] = r
	case atlas.FormatRGB:
		dst[0], dst[1], dst[2] = r, g, bb
	case atlas.FormatRGBA:
		dst[0], dst[1], dst[2], dst[3] = r, g, bb, a
	}
}

// RenderTile samples the tile's bitmap region from the atlas texture,
// modulates it with the command's color, and source-over blends it
// into the target at (X, Y).
func (b *Backend) RenderTile(cmd atlas.RenderTile) {
	if b.texture == nil || b.target == nil {
		return
	}
	bpp := b.props.Format.BytesPerPixel()
	stride := int(b.size.Width) * bpp
	bounds := b.target.Bounds()

	for row := 0; row < int(cmd.BitmapSize.Height); row++ {
		ty := cmd.Y + row
		if ty < bounds.Min.Y || ty >= bounds.Max.Y {
			continue
		}
		srcY := int(cmd.Location.Y) + row
		for col := 0; col < int(cmd.BitmapSize.Width); col++ {
			tx := cmd.X + col
			if tx < bounds.Min.X || tx >= bounds.Max.X {
				continue
			}
			srcX := int(cmd.Location.X) + col
			px := b.texture[srcY*stride+srcX*bpp:]

			var sr, sg, sb, sa float32
			switch b.props.Format {
			case atlas.FormatRed:
				// Glyph alpha mask: the command color provides the
				// pigment, the texture provides the coverage.
				cov := float32(px[0]) / 255
				sr, sg, sb = cmd.Color[0], cmd.Color[1], cmd.Color[2]
				sa = cov * cmd.Color[3]
			case atlas.FormatRGB:
				sr = float32(px[0]) / 255 * cmd.Color[0]
				sg = float32(px[1]) / 255 * cmd.Color[1]
				sb = float32(px[2]) / 255 * cmd.Color[2]
				sa = cmd.Color[3]
			case atlas.FormatRGBA:
				sr = float32(px[0]) / 255 * cmd.Color[0]
				sg = float32(px[1]) / 255 * cmd.Color[1]
				sb = float32(px[2]) / 255 * cmd.Color[2]
				sa = float32(px[3]) / 255 * cmd.Color[3]
			}
			blendPixel(b.target, tx, ty, sr, sg, sb, sa)
		}
	}
	b.renders++
}

// blendPixel source-over blends an unpremultiplied color into the
// target pixel.
func blendPixel(dst *image.RGBA, x, y int, sr, sg, sb, sa float32) {
	if sa <= 0 {
		return
	}
	i := dst.PixOffset(x, y)
	p := dst.Pix[i : i+4]
	inv := 1 - sa
	p[0] = clamp8(sr*sa*255 + float32(p[0])*inv)
	p[1] = clamp8(sg*sa*255 + float32(p[1])*inv)
	p[2] = clamp8(sb*sa*255 + float32(p[2])*inv)
	p[3] = clamp8(sa*255 + float32(p[3])*inv)
}

func clamp8(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}

// Texture exposes the CPU-side atlas texture for tests and debugging.
func (b *Backend) Texture() []byte { return b.texture }

// Stats returns the number of uploads and renders processed.
func (b *Backend) Stats() (uploads, renders uint64) {
	return b.uploads, b.renders
}
