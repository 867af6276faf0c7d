package overlay

import "github.com/0xPD33/sonori-overlay/reveal"

// TextItem is one positioned text block in a compositor batch. Items are
// laid out independently and rendered in slice order.
type TextItem struct {
	// Text is the string to render, possibly spanning multiple lines
	// after wrapping.
	Text string

	// X, Y position the top-left corner of the block in surface pixels.
	X, Y float64

	// Scale multiplies the compositor's base font size.
	Scale float64

	// Color is the straight-alpha text color.
	Color [4]float32

	// MaxWidth wraps lines to this pixel width. Zero or less disables
	// wrapping.
	MaxWidth float64
}

// RectRequest describes one rounded rectangle queued on a RectBatcher.
// Coordinates are surface pixels; the corner radius is clamped to half the
// shorter side at draw time.
type RectRequest struct {
	X, Y, W, H   float32
	CornerRadius float32

	// Color is the straight-alpha fill color.
	Color [4]float32

	// ViewportW, ViewportH are the surface dimensions the coordinates
	// are relative to.
	ViewportW, ViewportH float32
}

// Stats counts GPU work since construction. Counters only grow; read them
// from the render thread.
type Stats struct {
	// Batches is the number of non-empty batches rendered.
	Batches uint64

	// BatchesSkipped counts batches dropped after a preparation failure.
	BatchesSkipped uint64

	// PassesOpened counts render passes begun.
	PassesOpened uint64

	// DrawsIssued counts draw calls recorded.
	DrawsIssued uint64

	// GlyphsDrawn counts glyph quads submitted.
	GlyphsDrawn uint64
}

// DotRects converts indicator dot geometry into rect requests tinted with
// the given base color. Dot alpha multiplies the color's alpha; the corner
// radius of half the dot size draws each dot as a circle.
func DotRects(dots []reveal.Dot, color [4]float32, viewportW, viewportH float32) []RectRequest {
	if len(dots) == 0 {
		return nil
	}
	reqs := make([]RectRequest, len(dots))
	for i, d := range dots {
		c := color
		c[3] *= d.Alpha
		reqs[i] = RectRequest{
			X:            d.X - d.Size/2,
			Y:            d.Y - d.Size/2,
			W:            d.Size,
			H:            d.Size,
			CornerRadius: d.Size / 2,
			Color:        c,
			ViewportW:    viewportW,
			ViewportH:    viewportH,
		}
	}
	return reqs
}
