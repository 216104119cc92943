// Package wgpu implements the atlas backend on the GPU via gogpu/wgpu.
//
// The backend owns the atlas texture and the tile instance buffer. It
// consumes the atlas command stream directly: ConfigureAtlas creates
// the texture and compiles the tile shader, UploadTile writes texels
// through the device queue, and RenderTile accumulates instances that
// the surrounding renderer drains with Flush once per frame and feeds
// to its render pass.
package wgpu
