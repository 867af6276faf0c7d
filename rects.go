package overlay

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/0xPD33/sonori-overlay/internal/gpu"
)

// RectBatcher queues rounded rectangle draws and flushes them as one
// render pass. Queue is a cheap append with no GPU work; Flush opens a
// single pass that loads existing surface contents and draws every queued
// rect in insertion order, later rects blending over earlier ones.
//
// The batcher is driven from one render thread and is not safe for
// concurrent use.
type RectBatcher struct {
	device hal.Device
	queue  hal.Queue

	pipeline *gpu.RectPipeline
	pending  []RectRequest

	stats Stats
}

// NewRectBatcher creates a batcher rendering to surfaces of the given
// format.
func NewRectBatcher(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) (*RectBatcher, error) {
	pipeline, err := gpu.NewRectPipeline(device, queue, format)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	return &RectBatcher{
		device:   device,
		queue:    queue,
		pipeline: pipeline,
	}, nil
}

// Queue appends one rectangle to the pending batch.
func (b *RectBatcher) Queue(req RectRequest) {
	b.pending = append(b.pending, req)
}

// QueueAll appends a slice of rectangles in order.
func (b *RectBatcher) QueueAll(reqs []RectRequest) {
	b.pending = append(b.pending, reqs...)
}

// PendingCount returns the number of queued rectangles.
func (b *RectBatcher) PendingCount() int { return len(b.pending) }

// Stats returns the counters accumulated since construction.
func (b *RectBatcher) Stats() Stats { return b.stats }

// Flush draws all queued rectangles into view and clears the queue. An
// empty queue returns without opening a render pass. The queue is cleared
// unconditionally, including when parameter upload fails.
func (b *RectBatcher) Flush(encoder hal.CommandEncoder, view hal.TextureView) error {
	if len(b.pending) == 0 {
		return nil
	}
	defer func() {
		b.pending = b.pending[:0]
	}()

	n := len(b.pending)
	if err := b.pipeline.EnsureCapacity(n); err != nil {
		b.stats.BatchesSkipped++
		Logger().Warn("rect batch skipped", "rects", n, "err", err)
		return fmt.Errorf("overlay: %w", err)
	}
	for i, req := range b.pending {
		b.pipeline.WriteParams(i, gpu.RectParams{
			Color:     req.Color,
			X:         req.X,
			Y:         req.Y,
			W:         req.W,
			H:         req.H,
			Radius:    req.CornerRadius,
			ViewportW: req.ViewportW,
			ViewportH: req.ViewportH,
		})
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "overlay_rect_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	b.pipeline.RecordDraws(rp, n)
	rp.End()

	b.stats.Batches++
	b.stats.PassesOpened++
	b.stats.DrawsIssued += uint64(n)
	return nil
}

// Destroy releases the batcher's GPU resources.
func (b *RectBatcher) Destroy() {
	if b.pipeline != nil {
		b.pipeline.Destroy()
		b.pipeline = nil
	}
}
