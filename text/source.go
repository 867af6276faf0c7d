// Package text turns strings into positioned, rasterized glyphs for the
// overlay compositor. Shaping goes through go-text/typesetting (HarfBuzz);
// outline extraction and rasterization go through golang.org/x/image. The
// package has no GPU dependency; the compositor owns the glyph atlas.
package text

import (
	"bytes"
	"fmt"
	"os"
	"sync/atomic"

	gtfont "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// nextSourceID hands out unique font identifiers used in glyph cache keys.
var nextSourceID atomic.Uint64

// FontSource holds one parsed font. The same data is parsed twice: once
// with go-text/typesetting for shaping and once with x/image sfnt for
// outline extraction. Both views are read-only after construction.
type FontSource struct {
	id   uint64
	name string

	// hb is the go-text font used for shaping. *gtfont.Font is safe for
	// concurrent use; lightweight Faces are created around it per call.
	hb *gtfont.Font

	// sf is the sfnt view used for outlines, advances and metrics.
	// sfnt methods take a caller-owned Buffer, so access is serialized
	// by whoever owns the Buffer.
	sf *opentype.Font
}

// NewFontSource parses TTF/OTF font data.
func NewFontSource(data []byte) (*FontSource, error) {
	face, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("text: parse font for shaping: %w", err)
	}

	sf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("text: parse font outlines: %w", err)
	}

	s := &FontSource{
		id: nextSourceID.Add(1),
		hb: face.Font,
		sf: sf,
	}
	s.name = familyName(sf)
	return s, nil
}

// NewFontSourceFromFile loads and parses a font file.
func NewFontSourceFromFile(path string) (*FontSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("text: read font file: %w", err)
	}
	return NewFontSource(data)
}

// ID returns the unique identifier for this source, used in cache keys.
func (s *FontSource) ID() uint64 { return s.id }

// Name returns the font family name, or "" if the font does not carry one.
func (s *FontSource) Name() string { return s.name }

func familyName(f *opentype.Font) string {
	if name, err := f.Name(nil, sfnt.NameIDFamily); err == nil {
		return name
	}
	return ""
}

// Metrics holds vertical font metrics at a given pixel size. Both values
// are positive distances from the baseline.
type Metrics struct {
	Ascent  float64
	Descent float64
}

// Metrics returns the font's vertical metrics scaled to the given pixel
// size. Falls back to a conventional 80/20 split of the em square when
// the metrics tables are unreadable.
func (s *FontSource) Metrics(size float64) Metrics {
	var buf sfnt.Buffer
	m, err := s.sf.Metrics(&buf, floatToFixed(size), 0)
	if err != nil {
		return Metrics{Ascent: size * 0.8, Descent: size * 0.2}
	}
	return Metrics{
		Ascent:  fixedToFloat(m.Ascent),
		Descent: fixedToFloat(m.Descent),
	}
}
