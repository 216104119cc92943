package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/rhcher/contour"
	"github.com/rhcher/contour/atlas"
)

// instanceStride is the byte size of one tile instance in the
// instance buffer: target position (2f), bitmap size (2f), color (4f),
// normalized texture rect (4f), shader selector (1u).
const instanceStride = (2 + 2 + 4 + 4 + 1) * 4

// Backend implements atlas.Backend on a gogpu/wgpu device.
//
// Like the atlas that drives it, a Backend is single-owner: all
// commands and Flush run on the render goroutine.
type Backend struct {
	device hal.Device
	queue  hal.Queue

	texture     hal.Texture
	textureView hal.TextureView
	size        atlas.Size
	props       atlas.Properties

	shaderModule   hal.ShaderModule
	uniformLayout  hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout

	instanceBuf    hal.Buffer
	instanceBufCap int

	// instances accumulates encoded RenderTile commands until Flush.
	instances []byte
	count     int
}

// New creates a backend on the given device and queue. Both are
// borrowed and must outlive the backend.
func New(device hal.Device, queue hal.Queue) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: device and queue are required")
	}
	return &Backend{device: device, queue: queue}, nil
}

// AtlasSize returns the configured atlas texture size.
func (b *Backend) AtlasSize() atlas.Size { return b.size }

// TextureView returns the atlas texture view for the renderer's bind
// group, or nil before ConfigureAtlas.
func (b *Backend) TextureView() hal.TextureView { return b.textureView }

// PipelineLayout returns the tile pipeline layout, or nil before
// ConfigureAtlas.
func (b *Backend) PipelineLayout() hal.PipelineLayout { return b.pipelineLayout }

// ShaderModule returns the compiled tile shader, or nil before
// ConfigureAtlas.
func (b *Backend) ShaderModule() hal.ShaderModule { return b.shaderModule }

// ConfigureAtlas creates the atlas texture and the tile pipeline
// resources. The atlas issues this exactly once; a failure here
// disables the backend, which then drops all subsequent commands.
func (b *Backend) ConfigureAtlas(cfg atlas.ConfigureAtlas) {
	if err := b.configure(cfg); err != nil {
		contour.Logger().Warn("wgpu atlas configuration failed", "error", err)
		b.release()
	}
}

func (b *Backend) configure(cfg atlas.ConfigureAtlas) error {
	b.release()
	b.size = cfg.Size
	b.props = cfg.Properties

	texture, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: "atlas_texture",
		Size: hal.Extent3D{
			Width:              cfg.Size.Width,
			Height:             cfg.Size.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat(cfg.Properties.Format),
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create atlas texture: %w", err)
	}
	b.texture = texture

	view, err := b.device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label: "atlas_texture_view",
	})
	if err != nil {
		return fmt.Errorf("create atlas texture view: %w", err)
	}
	b.textureView = view

	spirvBytes, err := naga.Compile(tileShaderWGSL)
	if err != nil {
		return fmt.Errorf("compile tile shader: %w", err)
	}
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}

	shaderModule, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "atlas_tile_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create tile shader module: %w", err)
	}
	b.shaderModule = shaderModule

	uniformLayout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "atlas_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: 8, // sizeof(Uniforms)
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform bind group layout: %w", err)
	}
	b.uniformLayout = uniformLayout

	pipelineLayout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "atlas_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{b.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	b.pipelineLayout = pipelineLayout

	contour.Logger().Info("wgpu atlas configured",
		"texture", cfg.Size.String(), "format", cfg.Properties.Format.String())
	return nil
}

// textureFormat maps an atlas pixel format to its wgpu texture format.
// RGB bitmaps are widened to RGBA at upload; GPUs have no packed
// 24-bit sampled format.
func textureFormat(f atlas.Format) gputypes.TextureFormat {
	if f == atlas.FormatRed {
		return gputypes.TextureFormatR8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

// UploadTile writes the tile bitmap into the atlas texture through the
// device queue.
func (b *Backend) UploadTile(u atlas.UploadTile) {
	if b.texture == nil {
		return
	}
	data, bytesPerPixel := b.texelData(u)
	if len(data) == 0 {
		return
	}

	dst := &hal.ImageCopyTexture{
		Texture:  b.texture,
		MipLevel: 0,
		Origin:   hal.Origin3D{X: uint32(u.Location.X), Y: uint32(u.Location.Y), Z: 0},
		Aspect:   gputypes.TextureAspectAll,
	}
	layout := &hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  u.BitmapSize.Width * uint32(bytesPerPixel),
		RowsPerImage: u.BitmapSize.Height,
	}
	size := &hal.Extent3D{
		Width:              u.BitmapSize.Width,
		Height:             u.BitmapSize.Height,
		DepthOrArrayLayers: 1,
	}
	b.queue.WriteTexture(dst, data, layout, size)
}

// texelData converts the bitmap to the texture's texel layout and
// returns it together with the texture's bytes-per-pixel.
func (b *Backend) texelData(u atlas.UploadTile) ([]byte, int) {
	pixels := int(u.BitmapSize.Width) * int(u.BitmapSize.Height)
	if pixels == 0 {
		return nil, 0
	}
	switch {
	case b.props.Format == atlas.FormatRed && u.BitmapFormat == atlas.FormatRed:
		return u.Bitmap, 1
	case b.props.Format == atlas.FormatRed:
		// Color bitmap into a coverage texture: keep the first channel.
		srcBPP := u.BitmapFormat.BytesPerPixel()
		out := make([]byte, pixels)
		for i := 0; i < pixels; i++ {
			out[i] = u.Bitmap[i*srcBPP]
		}
		return out, 1
	case u.BitmapFormat == atlas.FormatRGBA:
		return u.Bitmap, 4
	case u.BitmapFormat == atlas.FormatRGB:
		// Widen to RGBA.
		out := make([]byte, pixels*4)
		for i := 0; i < pixels; i++ {
			out[i*4+0] = u.Bitmap[i*3+0]
			out[i*4+1] = u.Bitmap[i*3+1]
			out[i*4+2] = u.Bitmap[i*3+2]
			out[i*4+3] = 0xFF
		}
		return out, 4
	default:
		// Red bitmap into a color texture: replicate coverage.
		out := make([]byte, pixels*4)
		for i := 0; i < pixels; i++ {
			v := u.Bitmap[i]
			out[i*4+0] = v
			out[i*4+1] = v
			out[i*4+2] = v
			out[i*4+3] = v
		}
		return out, 4
	}
}

// RenderTile encodes the command into the instance accumulator. The
// GPU sees it on the next Flush.
func (b *Backend) RenderTile(cmd atlas.RenderTile) {
	if b.texture == nil {
		return
	}
	var inst [instanceStride]byte
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(inst[off:], math.Float32bits(v))
	}
	putF32(0, float32(cmd.X))
	putF32(4, float32(cmd.Y))
	putF32(8, float32(cmd.BitmapSize.Width))
	putF32(12, float32(cmd.BitmapSize.Height))
	putF32(16, cmd.Color[0])
	putF32(20, cmd.Color[1])
	putF32(24, cmd.Color[2])
	putF32(28, cmd.Color[3])
	putF32(32, cmd.NormalizedLocation.X)
	putF32(36, cmd.NormalizedLocation.Y)
	putF32(40, cmd.NormalizedLocation.Width)
	putF32(44, cmd.NormalizedLocation.Height)
	binary.LittleEndian.PutUint32(inst[48:], cmd.FragmentShaderSelector)

	b.instances = append(b.instances, inst[:]...)
	b.count++
}

// PendingInstances returns the number of accumulated tile instances.
func (b *Backend) PendingInstances() int { return b.count }

// Flush uploads the accumulated instances into the instance buffer and
// returns the buffer and instance count for the renderer's draw call.
// The accumulator is reset; a frame with no tiles returns (nil, 0).
func (b *Backend) Flush() (hal.Buffer, int, error) {
	if b.count == 0 {
		return nil, 0, nil
	}
	if err := b.ensureInstanceBuffer(len(b.instances)); err != nil {
		return nil, 0, err
	}
	b.queue.WriteBuffer(b.instanceBuf, 0, b.instances)

	n := b.count
	b.instances = b.instances[:0]
	b.count = 0
	return b.instanceBuf, n, nil
}

// ensureInstanceBuffer grows the instance buffer geometrically so a
// busy frame does not reallocate every flush.
func (b *Backend) ensureInstanceBuffer(size int) error {
	if b.instanceBuf != nil && size <= b.instanceBufCap {
		return nil
	}
	if b.instanceBuf != nil {
		b.device.DestroyBuffer(b.instanceBuf)
		b.instanceBuf = nil
	}
	capacity := b.instanceBufCap
	if capacity == 0 {
		capacity = 256 * instanceStride
	}
	for capacity < size {
		capacity *= 2
	}
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "atlas_instances",
		Size:  uint64(capacity),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create instance buffer: %w", err)
	}
	b.instanceBuf = buf
	b.instanceBufCap = capacity
	return nil
}

// Close releases all GPU resources the backend owns. The borrowed
// device and queue are untouched.
func (b *Backend) Close() {
	b.release()
}

func (b *Backend) release() {
	if b.instanceBuf != nil {
		b.device.DestroyBuffer(b.instanceBuf)
		b.instanceBuf = nil
		b.instanceBufCap = 0
	}
	if b.texture != nil {
		b.device.DestroyTexture(b.texture)
		b.texture = nil
		b.textureView = nil
	}
	b.shaderModule = nil
	b.uniformLayout = nil
	b.pipelineLayout = nil
	b.instances = nil
	b.count = 0
}
