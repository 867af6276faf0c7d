// Package overlay renders the per-frame UI of a dictation overlay on a
// gogpu/wgpu device: batched glyph text through a shared coverage atlas,
// and rounded rectangles queued and flushed as one render pass.
//
// The package assumes a single render thread driving one frame loop. A
// frame typically advances reveal state (package reveal), feeds visible
// text into TextCompositor.RenderBatch, queues backgrounds and indicator
// dots on a RectBatcher, and flushes. All passes load the existing surface
// contents, so batches compose in call order.
//
// The package produces no log output by default; call SetLogger to enable
// diagnostics.
package overlay
