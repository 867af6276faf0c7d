package text

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// GlyphMask is an 8-bit coverage bitmap for one rasterized glyph.
type GlyphMask struct {
	// Mask holds the coverage values, or nil when the glyph has no ink
	// (space and other blank glyphs).
	Mask *image.Alpha

	// Left and Top place the mask relative to the glyph's pen position on
	// the baseline: draw with the top-left corner at (penX+Left, penY+Top).
	// Top is negative for ink above the baseline.
	Left, Top int
}

// Rasterizer renders glyph outlines into alpha masks. It reuses the sfnt
// buffer and the scanline rasterizer across calls, so it is not safe for
// concurrent use.
type Rasterizer struct {
	buf  sfnt.Buffer
	rast vector.Rasterizer
}

// NewRasterizer creates a glyph rasterizer.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// Rasterize loads the glyph's outline at the given pixel size and fills
// it into an alpha mask. Y grows downward, matching sfnt's segment
// coordinate system.
func (r *Rasterizer) Rasterize(src *FontSource, gid uint16, size float64) (GlyphMask, error) {
	segments, err := src.sf.LoadGlyph(&r.buf, sfnt.GlyphIndex(gid), floatToFixed(size), nil)
	if err != nil {
		return GlyphMask{}, fmt.Errorf("text: load glyph %d: %w", gid, err)
	}
	if len(segments) == 0 {
		return GlyphMask{}, nil
	}

	minX, minY, maxX, maxY := segmentBounds(segments)
	left := int(math.Floor(minX))
	top := int(math.Floor(minY))
	w := int(math.Ceil(maxX)) - left
	h := int(math.Ceil(maxY)) - top
	if w <= 0 || h <= 0 {
		return GlyphMask{}, nil
	}

	r.rast.Reset(w, h)
	r.rast.DrawOp = draw.Src
	dx := float32(-left)
	dy := float32(-top)
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			r.rast.ClosePath()
			r.rast.MoveTo(fixedX(seg.Args[0])+dx, fixedY(seg.Args[0])+dy)
		case sfnt.SegmentOpLineTo:
			r.rast.LineTo(fixedX(seg.Args[0])+dx, fixedY(seg.Args[0])+dy)
		case sfnt.SegmentOpQuadTo:
			r.rast.QuadTo(
				fixedX(seg.Args[0])+dx, fixedY(seg.Args[0])+dy,
				fixedX(seg.Args[1])+dx, fixedY(seg.Args[1])+dy,
			)
		case sfnt.SegmentOpCubeTo:
			r.rast.CubeTo(
				fixedX(seg.Args[0])+dx, fixedY(seg.Args[0])+dy,
				fixedX(seg.Args[1])+dx, fixedY(seg.Args[1])+dy,
				fixedX(seg.Args[2])+dx, fixedY(seg.Args[2])+dy,
			)
		}
	}
	r.rast.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.rast.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	return GlyphMask{Mask: mask, Left: left, Top: top}, nil
}

// segmentBounds computes the tight bounding box over all segment points,
// including control points. Control points can only shrink the true curve
// extent, so the box may overestimate by a pixel but never clips ink.
func segmentBounds(segments sfnt.Segments) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, seg := range segments {
		n := 1
		switch seg.Op {
		case sfnt.SegmentOpQuadTo:
			n = 2
		case sfnt.SegmentOpCubeTo:
			n = 3
		}
		for i := 0; i < n; i++ {
			x := float64(fixedX(seg.Args[i]))
			y := float64(fixedY(seg.Args[i]))
			minX = math.Min(minX, x)
			minY = math.Min(minY, y)
			maxX = math.Max(maxX, x)
			maxY = math.Max(maxY, y)
		}
	}
	return minX, minY, maxX, maxY
}

func fixedX(p fixed.Point26_6) float32 { return float32(p.X) / 64 }
func fixedY(p fixed.Point26_6) float32 { return float32(p.Y) / 64 }
