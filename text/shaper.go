package text

import (
	"sync"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"
)

// ShapedGlyph is one positioned glyph produced by shaping.
type ShapedGlyph struct {
	// GID is the glyph index within the font.
	GID uint16

	// Cluster is the rune index in the shaped string that produced this
	// glyph. Several glyphs may share a cluster (marks), and ligatures
	// collapse several runes into one cluster.
	Cluster int

	// X, Y are the pen position for this glyph relative to the run
	// origin, in pixels, offsets already applied.
	X, Y float64

	// XAdvance is how far the pen moves after this glyph, in pixels.
	XAdvance float64
}

// Shaper converts strings into positioned glyphs using HarfBuzz shaping.
//
// HarfbuzzShaper instances carry internal buffers and are not safe for
// concurrent use, so they are pooled. Shaper itself is safe for
// concurrent use, though the overlay drives it from one render thread.
type Shaper struct {
	pool sync.Pool
}

// NewShaper creates a Shaper backed by go-text/typesetting's HarfBuzz
// implementation.
func NewShaper() *Shaper {
	return &Shaper{
		pool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
	}
}

// Shape shapes text against the source's font at the given pixel size.
// The whole string is shaped as one run; the run's script is taken from
// the first non-space rune and the base direction from the UBA.
func (s *Shaper) Shape(src *FontSource, text string, size float64) []ShapedGlyph {
	if text == "" || src == nil {
		return nil
	}

	runes := []rune(text)
	dir := baseDirection(text)

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      gtfont.NewFace(src.hb),
		Size:      floatToFixed(size),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}

	hb := s.pool.Get().(*shaping.HarfbuzzShaper)
	output := hb.Shape(input)
	s.pool.Put(hb)

	return convertGlyphs(output.Glyphs)
}

// baseDirection resolves the paragraph's base direction with the Unicode
// bidirectional algorithm. Mixed-direction text follows the paragraph
// level; per-run splitting is out of scope for the overlay's short lines.
func baseDirection(text string) di.Direction {
	p := bidi.Paragraph{}
	if _, err := p.SetString(text, bidi.DefaultDirection(bidi.Neutral)); err != nil {
		return di.DirectionLTR
	}
	ordering, err := p.Order()
	if err != nil || ordering.NumRuns() == 0 {
		return di.DirectionLTR
	}
	if ordering.Direction() == bidi.RightToLeft {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

// detectScript returns the script of the first non-space rune. For
// mixed-script text callers should split runs before shaping.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

// floatToFixed converts a pixel size to 26.6 fixed point.
func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

// fixedToFloat converts a 26.6 fixed point value to float64 pixels.
func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64.0
}

// convertGlyphs lays out shaped glyphs along a horizontal pen, applying
// fine-grained offsets on top of the running advance.
func convertGlyphs(glyphs []shaping.Glyph) []ShapedGlyph {
	if len(glyphs) == 0 {
		return nil
	}

	result := make([]ShapedGlyph, len(glyphs))
	var x float64
	for i, g := range glyphs {
		adv := fixedToFloat(g.Advance)
		result[i] = ShapedGlyph{
			GID:      uint16(g.GlyphID), //nolint:gosec // glyph IDs are 16-bit in sfnt fonts
			Cluster:  g.TextIndex(),
			X:        x + fixedToFloat(g.XOffset),
			Y:        -fixedToFloat(g.YOffset),
			XAdvance: adv,
		}
		x += adv
	}
	return result
}
