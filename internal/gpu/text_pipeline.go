package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// textVertexStride is the byte stride per vertex in the glyph pipeline.
// Layout per vertex:
//
//	position  (vec2<f32>) =  8 bytes  (location 0)
//	tex_coord (vec2<f32>) =  8 bytes  (location 1)
//	color     (vec4<f32>) = 16 bytes  (location 2)
//
// Total = 32 bytes per vertex.
const textVertexStride = 32

// textUniformSize is the byte size of the glyph uniform buffer:
// screen (vec4<f32>) = 16 bytes.
const textUniformSize = 16

// MaxQuadCount is the most glyph quads one batch can hold. Four vertices
// per quad must stay addressable by uint16 indices.
const MaxQuadCount = 16384

// TextQuad is one glyph rectangle in surface pixels with its atlas UVs and
// straight-alpha color. Quads are already clipped to the surface by the
// caller.
type TextQuad struct {
	X0, Y0, X1, Y1 float32
	U0, V0, U1, V1 float32
	Color          [4]float32
}

// TextPipeline owns the GPU objects for batched glyph rendering: shader,
// bind group layout, render pipeline, sampler, and persistent growable
// vertex/index/uniform buffers. One Prepare+RecordDraws cycle renders a
// whole batch as a single indexed draw.
type TextPipeline struct {
	device hal.Device
	queue  hal.Queue

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline
	sampler       hal.Sampler

	uniformBuf hal.Buffer
	vertBuf    hal.Buffer
	idxBuf     hal.Buffer
	vertCap    int
	idxCap     int

	bindGroup  hal.BindGroup
	indexCount uint32
}

// NewTextPipeline compiles the glyph shader and creates the render
// pipeline targeting the given surface format.
func NewTextPipeline(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) (*TextPipeline, error) {
	p := &TextPipeline{device: device, queue: queue}
	if err := p.createPipeline(format); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *TextPipeline) createPipeline(format gputypes.TextureFormat) error {
	shader, err := compileShader(p.device, "glyph_shader", textShaderSource)
	if err != nil {
		return err
	}
	p.shader = shader

	// Bind group layout:
	//   Binding 0: TextUniforms (uniform buffer, vertex)
	//   Binding 1: coverage atlas (texture_2d, fragment)
	//   Binding 2: sampler (fragment)
	uniformLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glyph_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create glyph uniform layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glyph_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create glyph pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "glyph_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create glyph sampler: %w", err)
	}
	p.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "glyph_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    textVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create glyph pipeline: %w", err)
	}
	p.pipeline = pipeline

	return nil
}

// textVertexLayout returns the vertex buffer layout matching VertexInput
// in text.wgsl.
func textVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: textVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},  // tex_coord
				{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2}, // color
			},
		},
	}
}

// Prepare uploads the batch geometry and rebinds the atlas. Buffers grow
// geometrically and persist across batches; the bind group is rebuilt each
// batch because buffer identity can change on growth.
func (p *TextPipeline) Prepare(atlasView hal.TextureView, width, height uint32, quads []TextQuad) error {
	if len(quads) > MaxQuadCount {
		return fmt.Errorf("wgpu: %d quads exceeds max %d", len(quads), MaxQuadCount)
	}
	vertexData := buildTextVertexData(quads)
	indexData := buildTextIndexData(len(quads))

	var err error
	p.vertBuf, p.vertCap, err = p.ensureBuffer(p.vertBuf, p.vertCap, len(vertexData),
		"glyph_verts", gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.idxBuf, p.idxCap, err = p.ensureBuffer(p.idxBuf, p.idxCap, len(indexData),
		"glyph_indices", gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	if p.uniformBuf == nil {
		p.uniformBuf, _, err = p.ensureBuffer(nil, 0, textUniformSize,
			"glyph_uniform", gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
	}

	p.queue.WriteBuffer(p.vertBuf, 0, vertexData)
	p.queue.WriteBuffer(p.idxBuf, 0, indexData)
	p.queue.WriteBuffer(p.uniformBuf, 0, makeTextUniform(width, height))

	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	bindGroup, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "glyph_bind",
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.uniformBuf.NativeHandle(), Offset: 0, Size: textUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{
				TextureView: atlasView.NativeHandle(),
			}},
			{Binding: 2, Resource: gputypes.SamplerBinding{
				Sampler: p.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create glyph bind group: %w", err)
	}
	p.bindGroup = bindGroup
	p.indexCount = uint32(len(quads) * 6) //nolint:gosec // quad count is bounded by atlas capacity

	return nil
}

// ensureBuffer returns a buffer with at least need bytes, recreating with
// doubled capacity when the current one is too small.
func (p *TextPipeline) ensureBuffer(buf hal.Buffer, capBytes, need int, label string, usage gputypes.BufferUsage) (hal.Buffer, int, error) {
	if buf != nil && capBytes >= need {
		return buf, capBytes, nil
	}
	if buf != nil {
		p.device.DestroyBuffer(buf)
	}
	newCap := capBytes * 2
	if newCap < need {
		newCap = need
	}
	if newCap < 1024 {
		newCap = 1024
	}
	created, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(newCap), //nolint:gosec // capacity is positive
		Usage: usage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("create %s: %w", label, err)
	}
	return created, newCap, nil
}

// RecordDraws records the batch into an open render pass as one indexed
// draw. A no-op when the last Prepare had no quads.
func (p *TextPipeline) RecordDraws(rp hal.RenderPassEncoder) {
	if p.indexCount == 0 || p.bindGroup == nil {
		return
	}
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, p.vertBuf, 0)
	rp.SetIndexBuffer(p.idxBuf, gputypes.IndexFormatUint16, 0)
	rp.DrawIndexed(p.indexCount, 1, 0, 0, 0)
}

// IndexCount returns the index count from the last Prepare.
func (p *TextPipeline) IndexCount() uint32 { return p.indexCount }

// Destroy releases all GPU resources. Safe to call more than once.
func (p *TextPipeline) Destroy() {
	if p.device == nil {
		return
	}
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	for _, buf := range []*hal.Buffer{&p.uniformBuf, &p.vertBuf, &p.idxBuf} {
		if *buf != nil {
			p.device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.uniformLayout != nil {
		p.device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// buildTextVertexData serializes quads into raw vertex bytes. Each quad
// produces 4 vertices x 32 bytes = 128 bytes.
func buildTextVertexData(quads []TextQuad) []byte {
	if len(quads) == 0 {
		return nil
	}
	data := make([]byte, len(quads)*4*textVertexStride)
	off := 0
	for _, q := range quads {
		// Corners in top-left, top-right, bottom-right, bottom-left order.
		writeTextVertex(data[off:], q.X0, q.Y0, q.U0, q.V0, q.Color)
		off += textVertexStride
		writeTextVertex(data[off:], q.X1, q.Y0, q.U1, q.V0, q.Color)
		off += textVertexStride
		writeTextVertex(data[off:], q.X1, q.Y1, q.U1, q.V1, q.Color)
		off += textVertexStride
		writeTextVertex(data[off:], q.X0, q.Y1, q.U0, q.V1, q.Color)
		off += textVertexStride
	}
	return data
}

func writeTextVertex(buf []byte, x, y, u, v float32, color [4]float32) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(u))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(v))
	for i, c := range color {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(c))
	}
}

// buildTextIndexData serializes two triangles per quad, 0,1,2 2,3,0.
func buildTextIndexData(numQuads int) []byte {
	if numQuads == 0 {
		return nil
	}
	data := make([]byte, numQuads*6*2)
	off := 0
	for i := 0; i < numQuads; i++ {
		base := uint16(i * 4) //nolint:gosec // quad count is bounded well below uint16 vertex range
		for _, idx := range [6]uint16{0, 1, 2, 2, 3, 0} {
			binary.LittleEndian.PutUint16(data[off:], base+idx)
			off += 2
		}
	}
	return data
}

// makeTextUniform builds the 16-byte uniform block holding the surface size.
func makeTextUniform(width, height uint32) []byte {
	buf := make([]byte, textUniformSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(width)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(height)))
	return buf
}
