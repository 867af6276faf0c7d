package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// rectVertexStride is the byte stride per unit-quad vertex: position
// (vec2<f32>) = 8 bytes.
const rectVertexStride = 8

// rectParamsSize is the byte size of one RectParams block:
// color (vec4) + rect (vec4) + extra (vec4) = 48 bytes.
const rectParamsSize = 48

// rectSlotStride is the spacing between parameter blocks in the shared
// uniform buffer. WebGPU requires 256-byte alignment for uniform offsets.
const rectSlotStride = 256

// RectParams is the per-draw parameter block for one rounded rectangle.
// All values are in surface pixels; Color is straight alpha.
type RectParams struct {
	Color      [4]float32
	X, Y, W, H float32
	Radius     float32
	ViewportW  float32
	ViewportH  float32
}

// RectPipeline renders rounded rectangles one quad draw at a time. The hal
// exposes no push constants, so per-draw parameters live in a single
// uniform buffer at 256-byte slots, with one cached bind group per slot
// binding its fixed offset. Draw order follows slot order.
type RectPipeline struct {
	device hal.Device
	queue  hal.Queue

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline

	quadBuf hal.Buffer

	paramBuf   hal.Buffer
	bindGroups []hal.BindGroup
}

// NewRectPipeline compiles the rect shader, creates the render pipeline
// targeting the given surface format, and uploads the shared unit quad.
func NewRectPipeline(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) (*RectPipeline, error) {
	p := &RectPipeline{device: device, queue: queue}
	if err := p.createPipeline(format); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *RectPipeline) createPipeline(format gputypes.TextureFormat) error {
	shader, err := compileShader(p.device, "rect_shader", rectShaderSource)
	if err != nil {
		return err
	}
	p.shader = shader

	uniformLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "rect_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create rect uniform layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "rect_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create rect pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "rect_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{
				{
					ArrayStride: rectVertexStride,
					StepMode:    gputypes.VertexStepModeVertex,
					Attributes: []gputypes.VertexAttribute{
						{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					},
				},
			},
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
		return fmt.Errorf("create rect pipeline: %w", err)
	}
	p.pipeline = pipeline

	return p.createQuad()
}

// createQuad uploads the shared unit quad as two triangles.
func (p *RectPipeline) createQuad() error {
	verts := [12]float32{
		0, 0, 1, 0, 1, 1, // first triangle
		1, 1, 0, 1, 0, 0, // second triangle
	}
	data := make([]byte, len(verts)*4)
	for i, v := range verts {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "rect_unit_quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create rect quad buffer: %w", err)
	}
	p.queue.WriteBuffer(buf, 0, data)
	p.quadBuf = buf
	return nil
}

// EnsureCapacity guarantees parameter slots and bind groups for at least n
// draws. Growth recreates the buffer, so it invalidates previously written
// slots; callers write parameters after this returns.
func (p *RectPipeline) EnsureCapacity(n int) error {
	if n <= len(p.bindGroups) {
		return nil
	}
	newCap := len(p.bindGroups) * 2
	if newCap < n {
		newCap = n
	}
	if newCap < 16 {
		newCap = 16
	}

	p.destroyParamResources()

	buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "rect_params",
		Size:  uint64(newCap) * rectSlotStride,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create rect param buffer: %w", err)
	}
	p.paramBuf = buf

	p.bindGroups = make([]hal.BindGroup, 0, newCap)
	for i := 0; i < newCap; i++ {
		bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "rect_bind",
			Layout: p.uniformLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: p.paramBuf.NativeHandle(),
					Offset: uint64(i) * rectSlotStride,
					Size:   rectParamsSize,
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("create rect bind group %d: %w", i, err)
		}
		p.bindGroups = append(p.bindGroups, bg)
	}
	return nil
}

// WriteParams uploads one parameter block into slot i.
func (p *RectPipeline) WriteParams(i int, params RectParams) {
	buf := make([]byte, rectParamsSize)
	vals := [12]float32{
		params.Color[0], params.Color[1], params.Color[2], params.Color[3],
		params.X, params.Y, params.W, params.H,
		params.Radius, params.ViewportW, params.ViewportH, 0,
	}
	for j, v := range vals {
		binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
	}
	p.queue.WriteBuffer(p.paramBuf, uint64(i)*rectSlotStride, buf) //nolint:gosec // slot index is non-negative
}

// RecordDraws records count quad draws into an open render pass, one per
// slot in ascending slot order.
func (p *RectPipeline) RecordDraws(rp hal.RenderPassEncoder, count int) {
	if count <= 0 {
		return
	}
	rp.SetPipeline(p.pipeline)
	rp.SetVertexBuffer(0, p.quadBuf, 0)
	for i := 0; i < count && i < len(p.bindGroups); i++ {
		rp.SetBindGroup(0, p.bindGroups[i], nil)
		rp.Draw(6, 1, 0, 0)
	}
}

func (p *RectPipeline) destroyParamResources() {
	for _, bg := range p.bindGroups {
		p.device.DestroyBindGroup(bg)
	}
	p.bindGroups = nil
	if p.paramBuf != nil {
		p.device.DestroyBuffer(p.paramBuf)
		p.paramBuf = nil
	}
}

// Destroy releases all GPU resources. Safe to call more than once.
func (p *RectPipeline) Destroy() {
	if p.device == nil {
		return
	}
	p.destroyParamResources()
	if p.quadBuf != nil {
		p.device.DestroyBuffer(p.quadBuf)
		p.quadBuf = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
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
