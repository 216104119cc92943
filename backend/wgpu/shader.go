package wgpu

// tileShaderWGSL draws one textured quad per tile instance. The
// fragment entry point switches on the instance's shader selector:
// 0 samples the red channel as glyph coverage tinted by the instance
// color, 1 samples full RGBA (images, color emoji).
const tileShaderWGSL = `
struct Uniforms {
    // Render target size in pixels, for clip-space conversion.
    target_size: vec2<f32>,
}

@group(0) @binding(0) var<uniform> uniforms: Uniforms;
@group(1) @binding(0) var atlas_texture: texture_2d<f32>;
@group(1) @binding(1) var atlas_sampler: sampler;

struct VertexInput {
    @builtin(vertex_index) vertex_index: u32,
    // Per-instance attributes, see instanceStride.
    @location(0) target_pos: vec2<f32>,
    @location(1) bitmap_size: vec2<f32>,
    @location(2) color: vec4<f32>,
    @location(3) tex_rect: vec4<f32>,
    @location(4) selector: u32,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) color: vec4<f32>,
    @location(2) @interpolate(flat) selector: u32,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    // Unit quad corners from the vertex index (two triangles).
    var corners = array<vec2<f32>, 6>(
        vec2<f32>(0.0, 0.0), vec2<f32>(1.0, 0.0), vec2<f32>(0.0, 1.0),
        vec2<f32>(1.0, 0.0), vec2<f32>(1.0, 1.0), vec2<f32>(0.0, 1.0),
    );
    let corner = corners[in.vertex_index];

    let pixel = in.target_pos + corner * in.bitmap_size;
    let clip = vec2<f32>(
        pixel.x / uniforms.target_size.x * 2.0 - 1.0,
        1.0 - pixel.y / uniforms.target_size.y * 2.0,
    );

    var out: VertexOutput;
    out.position = vec4<f32>(clip, 0.0, 1.0);
    out.uv = in.tex_rect.xy + corner * in.tex_rect.zw;
    out.color = in.color;
    out.selector = in.selector;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let texel = textureSample(atlas_texture, atlas_sampler, in.uv);
    if in.selector == 0u {
        // Alpha-mask tile: red channel is coverage.
        return vec4<f32>(in.color.rgb, in.color.a * texel.r);
    }
    // Full-color tile modulated by the instance color.
    return texel * in.color;
}
`
