package overlay

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/0xPD33/sonori-overlay/internal/gpu"
	"github.com/0xPD33/sonori-overlay/text"
)

// TextCompositor renders batches of independent text items into one
// consolidated GPU submission. All items share a font, a glyph atlas and
// one pipeline; each RenderBatch call produces at most one render pass
// with a single indexed draw.
//
// A batch that fails to prepare (atlas exhaustion, rasterization failure)
// is skipped silently: the failure is logged at Warn, no pass is opened,
// and the frame continues with the previous surface contents. The glyph
// cache is trimmed to the batch's working set after every batch.
//
// The compositor is driven from one render thread and is not safe for
// concurrent use.
type TextCompositor struct {
	device hal.Device
	queue  hal.Queue

	font     *text.FontSource
	shaper   *text.Shaper
	rast     *text.Rasterizer
	baseSize float64

	atlas    *gpu.GlyphAtlas
	pipeline *gpu.TextPipeline

	width  uint32
	height uint32

	stats Stats

	// quads is reused across batches to avoid per-frame allocation.
	quads []gpu.TextQuad
}

// NewTextCompositor creates a compositor rendering to surfaces of the
// given format and size.
func NewTextCompositor(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, width, height uint32, opts ...Option) (*TextCompositor, error) {
	o := defaultCompositorOptions()
	for _, opt := range opts {
		opt(&o)
	}

	font := o.font
	if font == nil {
		var err error
		font, err = text.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("overlay: load default font: %w", err)
		}
	}

	atlas, err := gpu.NewGlyphAtlas(device, queue, o.atlasSize)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}

	pipeline, err := gpu.NewTextPipeline(device, queue, format)
	if err != nil {
		atlas.Destroy()
		return nil, fmt.Errorf("overlay: %w", err)
	}

	return &TextCompositor{
		device:   device,
		queue:    queue,
		font:     font,
		shaper:   text.NewShaper(),
		rast:     text.NewRasterizer(),
		baseSize: o.baseSize,
		atlas:    atlas,
		pipeline: pipeline,
		width:    width,
		height:   height,
	}, nil
}

// Resize records the new surface size, applied from the next batch on.
// A batch already prepared against the old size renders with it for one
// frame; the mismatch is visual only.
func (c *TextCompositor) Resize(width, height uint32) {
	c.width = width
	c.height = height
}

// Stats returns the counters accumulated since construction.
func (c *TextCompositor) Stats() Stats { return c.stats }

// FontName returns the family name of the font in use.
func (c *TextCompositor) FontName() string { return c.font.Name() }

// RenderBatch lays out, rasterizes and draws all items in order into view.
// The pass loads existing surface contents, so earlier passes on the same
// encoder show through. Empty batches do no GPU work.
func (c *TextCompositor) RenderBatch(encoder hal.CommandEncoder, view hal.TextureView, items []TextItem) {
	if len(items) == 0 {
		return
	}

	c.atlas.BeginFrame()
	quads, err := c.prepareQuads(items)
	if err != nil {
		c.stats.BatchesSkipped++
		Logger().Warn("text batch skipped", "items", len(items), "err", err)
		c.atlas.Trim()
		return
	}

	if len(quads) == 0 {
		// Whitespace-only batch: nothing to draw.
		c.atlas.Trim()
		return
	}

	c.atlas.Flush()
	if err := c.pipeline.Prepare(c.atlas.View(), c.width, c.height, quads); err != nil {
		c.stats.BatchesSkipped++
		Logger().Warn("text batch skipped", "items", len(items), "err", err)
		c.atlas.Trim()
		return
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "overlay_text_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	c.pipeline.RecordDraws(rp)
	rp.End()

	c.stats.Batches++
	c.stats.PassesOpened++
	c.stats.DrawsIssued++
	c.stats.GlyphsDrawn += uint64(len(quads))

	evicted := c.atlas.Trim()
	Logger().Debug("text batch rendered",
		"items", len(items), "glyphs", len(quads), "evicted", evicted)
}

// prepareQuads shapes and rasterizes every item and returns clipped glyph
// quads in draw order. On atlas exhaustion the atlas is reset so the next
// batch starts from an empty cache.
func (c *TextCompositor) prepareQuads(items []TextItem) ([]gpu.TextQuad, error) {
	c.quads = c.quads[:0]

	for i := range items {
		if err := c.appendItemQuads(&items[i]); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return c.quads, nil
}

// appendItemQuads lays out one item and appends its visible glyph quads.
func (c *TextCompositor) appendItemQuads(item *TextItem) error {
	if item.Text == "" {
		return nil
	}
	scale := item.Scale
	if scale <= 0 {
		scale = 1
	}
	fontSize := c.baseSize * scale
	lineHeight := fontSize * 1.1
	metrics := c.font.Metrics(fontSize)
	atlasSize := float32(c.atlas.Size())

	lines := text.LayoutString(c.shaper, c.font, item.Text, fontSize, item.MaxWidth)
	for li, line := range lines {
		baseline := item.Y + float64(li)*lineHeight + metrics.Ascent
		for _, g := range line.Glyphs {
			entry, err := c.cachedGlyph(g.GID, fontSize)
			if err != nil {
				return err
			}
			if entry.Blank {
				continue
			}

			penX := item.X + g.X
			penY := baseline + g.Y
			quad, visible := clipQuad(gpu.TextQuad{
				X0:    float32(penX) + float32(entry.Left),
				Y0:    float32(penY) + float32(entry.Top),
				X1:    float32(penX) + float32(entry.Left+entry.Region.Width),
				Y1:    float32(penY) + float32(entry.Top+entry.Region.Height),
				U0:    float32(entry.Region.X) / atlasSize,
				V0:    float32(entry.Region.Y) / atlasSize,
				U1:    float32(entry.Region.X+entry.Region.Width) / atlasSize,
				V1:    float32(entry.Region.Y+entry.Region.Height) / atlasSize,
				Color: item.Color,
			}, float32(c.width), float32(c.height))
			if !visible {
				continue
			}
			c.quads = append(c.quads, quad)
		}
	}
	return nil
}

// cachedGlyph returns the atlas entry for a glyph, rasterizing and
// inserting it on a miss.
func (c *TextCompositor) cachedGlyph(gid uint16, size float64) (*gpu.GlyphEntry, error) {
	key := gpu.GlyphKey{Font: c.font.ID(), GID: gid, PPEM: gpu.QuantizeSize(size)}
	if entry, ok := c.atlas.Lookup(key); ok {
		return entry, nil
	}

	mask, err := c.rast.Rasterize(c.font, gid, gpu.KeySize(key.PPEM))
	if err != nil {
		return nil, err
	}
	if mask.Mask == nil {
		return c.atlas.InsertBlank(key), nil
	}

	entry, err := c.atlas.Insert(key, mask.Mask, mask.Left, mask.Top)
	if err != nil {
		// A full atlas cannot be compacted in place; drop everything so
		// the next batch re-rasterizes into a clean sheet.
		c.atlas.Reset()
		return nil, err
	}
	return entry, nil
}

// clipQuad clips a glyph quad to the surface, adjusting UVs so partially
// visible glyphs keep the correct texels. Returns false when nothing of
// the quad remains on screen.
func clipQuad(q gpu.TextQuad, width, height float32) (gpu.TextQuad, bool) {
	if q.X1 <= 0 || q.Y1 <= 0 || q.X0 >= width || q.Y0 >= height {
		return q, false
	}
	if q.X1 <= q.X0 || q.Y1 <= q.Y0 {
		return q, false
	}

	du := (q.U1 - q.U0) / (q.X1 - q.X0)
	dv := (q.V1 - q.V0) / (q.Y1 - q.Y0)
	if q.X0 < 0 {
		q.U0 -= q.X0 * du
		q.X0 = 0
	}
	if q.Y0 < 0 {
		q.V0 -= q.Y0 * dv
		q.Y0 = 0
	}
	if q.X1 > width {
		q.U1 -= (q.X1 - width) * du
		q.X1 = width
	}
	if q.Y1 > height {
		q.V1 -= (q.Y1 - height) * dv
		q.Y1 = height
	}
	return q, true
}

// Destroy releases the compositor's GPU resources.
func (c *TextCompositor) Destroy() {
	if c.pipeline != nil {
		c.pipeline.Destroy()
		c.pipeline = nil
	}
	if c.atlas != nil {
		c.atlas.Destroy()
		c.atlas = nil
	}
}
