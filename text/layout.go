package text

import "strings"

// Line is one laid-out line of glyphs. Glyph X positions are relative to
// the line origin.
type Line struct {
	Glyphs []ShapedGlyph
	Width  float64
}

// LayoutString shapes text and breaks it into lines no wider than
// maxWidth pixels. Breaks happen at space boundaries when possible and
// fall back to glyph granularity for words wider than the limit.
// A maxWidth of zero or less disables wrapping. Explicit newlines always
// break.
//
// Each call lays the string out independently; there is no cross-call
// wrapping state.
func LayoutString(sh *Shaper, src *FontSource, text string, size, maxWidth float64) []Line {
	if text == "" {
		return nil
	}

	var lines []Line
	for _, para := range strings.Split(text, "\n") {
		if para == "" {
			lines = append(lines, Line{})
			continue
		}
		lines = append(lines, wrapParagraph(sh, src, para, size, maxWidth)...)
	}
	return lines
}

// wrapParagraph shapes one paragraph and greedily fills lines.
func wrapParagraph(sh *Shaper, src *FontSource, para string, size, maxWidth float64) []Line {
	glyphs := sh.Shape(src, para, size)
	if len(glyphs) == 0 {
		return []Line{{}}
	}
	if maxWidth <= 0 {
		return []Line{rebased(glyphs)}
	}

	runes := []rune(para)
	isSpace := func(g ShapedGlyph) bool {
		return g.Cluster >= 0 && g.Cluster < len(runes) && runes[g.Cluster] == ' '
	}

	var lines []Line
	lineStart := 0 // index of first glyph on the current line
	lastBreak := -1
	var width float64

	for i := 0; i < len(glyphs); i++ {
		g := glyphs[i]
		if isSpace(g) {
			lastBreak = i
		}

		width += g.XAdvance
		if width <= maxWidth || i == lineStart {
			continue
		}

		// Overflow: cut at the last space if the line has one,
		// otherwise hard-break before this glyph.
		cut := i
		next := i
		if lastBreak >= lineStart {
			cut = lastBreak
			next = lastBreak + 1
		}
		lines = append(lines, rebased(glyphs[lineStart:cut]))

		lineStart = next
		lastBreak = -1
		width = 0
		i = lineStart - 1 // restart scan at the new line start
	}

	if lineStart < len(glyphs) {
		lines = append(lines, rebased(glyphs[lineStart:]))
	}
	return lines
}

// rebased copies a glyph run so its first glyph starts at pen position 0
// and records the run's total advance width. Shaping offsets within the
// run are preserved.
func rebased(run []ShapedGlyph) Line {
	if len(run) == 0 {
		return Line{}
	}
	base := run[0].X

	line := Line{Glyphs: make([]ShapedGlyph, len(run))}
	for i, g := range run {
		g.X -= base
		line.Glyphs[i] = g
		line.Width += g.XAdvance
	}
	return line
}
