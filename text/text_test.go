package text

import (
	"strings"
	"testing"

	"github.com/go-text/typesetting/di"
)

func testSource(t *testing.T) *FontSource {
	t.Helper()
	src, err := DefaultSource()
	if err != nil {
		t.Fatalf("DefaultSource: %v", err)
	}
	return src
}

func TestDefaultSource(t *testing.T) {
	src := testSource(t)
	if src.ID() == 0 {
		t.Error("ID() = 0, want nonzero")
	}
	if src.Name() == "" {
		t.Error("Name() = \"\", want a family name")
	}

	m := src.Metrics(10)
	if m.Ascent <= 0 || m.Descent <= 0 {
		t.Errorf("Metrics(10) = %+v, want positive ascent and descent", m)
	}
	if m.Ascent+m.Descent < 5 || m.Ascent+m.Descent > 20 {
		t.Errorf("Metrics(10) ascent+descent = %v, implausible for a 10px size", m.Ascent+m.Descent)
	}
}

func TestDefaultSourceCached(t *testing.T) {
	a, _ := DefaultSource()
	b, _ := DefaultSource()
	if a != b {
		t.Error("DefaultSource returned distinct sources across calls")
	}
}

func TestShapeBasic(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()

	glyphs := sh.Shape(src, "Hello", 10)
	if len(glyphs) != 5 {
		t.Fatalf("Shape(\"Hello\") = %d glyphs, want 5", len(glyphs))
	}

	var prevX float64 = -1
	for i, g := range glyphs {
		if g.GID == 0 {
			t.Errorf("glyph %d: GID 0 (.notdef) for an ASCII letter", i)
		}
		if g.XAdvance <= 0 {
			t.Errorf("glyph %d: XAdvance = %v, want > 0", i, g.XAdvance)
		}
		if g.X <= prevX {
			t.Errorf("glyph %d: X = %v, want > previous %v", i, g.X, prevX)
		}
		if g.Cluster < 0 || g.Cluster >= 5 {
			t.Errorf("glyph %d: Cluster = %d, out of range", i, g.Cluster)
		}
		prevX = g.X
	}
}

func TestShapeEmpty(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()
	if got := sh.Shape(src, "", 10); got != nil {
		t.Errorf("Shape(\"\") = %v, want nil", got)
	}
	if got := sh.Shape(nil, "x", 10); got != nil {
		t.Errorf("Shape with nil source = %v, want nil", got)
	}
}

func TestBaseDirection(t *testing.T) {
	tests := []struct {
		text string
		want di.Direction
	}{
		{"Hello", di.DirectionLTR},
		{"", di.DirectionLTR},
		{"  12.5  ", di.DirectionLTR},
		{"שלום", di.DirectionRTL},
		{"مرحبا", di.DirectionRTL},
		{"שלום world", di.DirectionRTL},
		{"hello שלום", di.DirectionLTR},
	}
	for _, tt := range tests {
		if got := baseDirection(tt.text); got != tt.want {
			t.Errorf("baseDirection(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

// TestShapeRTLDoesNotPanic shapes right-to-left text end to end. The
// embedded face has no Hebrew coverage, so glyphs may be .notdef, but
// shaping must still produce positioned output.
func TestShapeRTLDoesNotPanic(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()

	glyphs := sh.Shape(src, "שלום", 10)
	if len(glyphs) == 0 {
		t.Fatal("Shape(hebrew) returned no glyphs")
	}
}

func TestShapeSizeScales(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()

	small := sh.Shape(src, "m", 10)
	large := sh.Shape(src, "m", 20)
	if len(small) != 1 || len(large) != 1 {
		t.Fatalf("expected one glyph per shape, got %d and %d", len(small), len(large))
	}
	ratio := large[0].XAdvance / small[0].XAdvance
	if ratio < 1.8 || ratio > 2.2 {
		t.Errorf("advance ratio at 2x size = %v, want ~2", ratio)
	}
}

func TestLayoutNoWrap(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()

	lines := LayoutString(sh, src, "Hello world", 10, 0)
	if len(lines) != 1 {
		t.Fatalf("LayoutString without wrap = %d lines, want 1", len(lines))
	}
	if len(lines[0].Glyphs) == 0 || lines[0].Width <= 0 {
		t.Errorf("line = %d glyphs width %v, want nonempty", len(lines[0].Glyphs), lines[0].Width)
	}
	if x := lines[0].Glyphs[0].X; x != 0 {
		t.Errorf("first glyph X = %v, want 0", x)
	}
}

func TestLayoutWrap(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()

	text := "the quick brown fox jumps over the lazy dog"
	const maxWidth = 60.0
	lines := LayoutString(sh, src, text, 10, maxWidth)
	if len(lines) < 2 {
		t.Fatalf("LayoutString with maxWidth %v = %d lines, want several", maxWidth, len(lines))
	}
	for i, ln := range lines {
		if ln.Width > maxWidth {
			t.Errorf("line %d: width %v exceeds maxWidth %v", i, ln.Width, maxWidth)
		}
		if len(ln.Glyphs) == 0 {
			t.Errorf("line %d: empty", i)
			continue
		}
		if x := ln.Glyphs[0].X; x != 0 {
			t.Errorf("line %d: first glyph X = %v, want 0", i, x)
		}
	}

	// No glyph is lost to wrapping except the spaces consumed at breaks.
	var got int
	for _, ln := range lines {
		got += len(ln.Glyphs)
	}
	total := len(sh.Shape(src, text, 10))
	spaces := strings.Count(text, " ")
	if got < total-spaces || got > total {
		t.Errorf("wrapped glyph count %d, want between %d and %d", got, total-spaces, total)
	}
}

func TestLayoutNewlines(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()

	lines := LayoutString(sh, src, "a\n\nb", 10, 0)
	if len(lines) != 3 {
		t.Fatalf("LayoutString(\"a\\n\\nb\") = %d lines, want 3", len(lines))
	}
	if len(lines[1].Glyphs) != 0 {
		t.Errorf("middle line has %d glyphs, want 0", len(lines[1].Glyphs))
	}
}

func TestLayoutEmpty(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()
	if lines := LayoutString(sh, src, "", 10, 100); lines != nil {
		t.Errorf("LayoutString(\"\") = %v, want nil", lines)
	}
}

func TestRasterizeGlyph(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()
	r := NewRasterizer()

	glyphs := sh.Shape(src, "A", 32)
	if len(glyphs) != 1 {
		t.Fatalf("Shape(\"A\") = %d glyphs, want 1", len(glyphs))
	}

	mask, err := r.Rasterize(src, glyphs[0].GID, 32)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if mask.Mask == nil {
		t.Fatal("Rasterize returned nil mask for an inked glyph")
	}
	b := mask.Mask.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 || b.Dx() > 64 || b.Dy() > 64 {
		t.Errorf("mask bounds %v, implausible for a 32px glyph", b)
	}
	if mask.Top >= 0 {
		t.Errorf("Top = %d, want negative (ink above baseline)", mask.Top)
	}

	var inked bool
	for _, v := range mask.Mask.Pix {
		if v > 0 {
			inked = true
			break
		}
	}
	if !inked {
		t.Error("mask has no nonzero coverage")
	}
}

func TestRasterizeSpace(t *testing.T) {
	src := testSource(t)
	sh := NewShaper()
	r := NewRasterizer()

	glyphs := sh.Shape(src, " ", 32)
	if len(glyphs) != 1 {
		t.Fatalf("Shape(\" \") = %d glyphs, want 1", len(glyphs))
	}
	mask, err := r.Rasterize(src, glyphs[0].GID, 32)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if mask.Mask != nil {
		t.Errorf("space glyph produced a %v mask, want none", mask.Mask.Bounds())
	}
}
