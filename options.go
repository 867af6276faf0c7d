package overlay

import "github.com/0xPD33/sonori-overlay/text"

// Option configures a TextCompositor during creation.
type Option func(*compositorOptions)

// compositorOptions holds optional configuration for NewTextCompositor.
type compositorOptions struct {
	font      *text.FontSource
	baseSize  float64
	atlasSize int
}

// defaultCompositorOptions returns the defaults: embedded font, 10px base
// size, default atlas dimension.
func defaultCompositorOptions() compositorOptions {
	return compositorOptions{
		baseSize: 10,
	}
}

// WithFont sets the font used for all items. The default is the embedded
// Latin Modern Sans face.
func WithFont(src *text.FontSource) Option {
	return func(o *compositorOptions) {
		o.font = src
	}
}

// WithBaseSize sets the font size in pixels that a TextItem scale of 1.0
// maps to. The default is 10.
func WithBaseSize(size float64) Option {
	return func(o *compositorOptions) {
		if size > 0 {
			o.baseSize = size
		}
	}
}

// WithAtlasSize sets the glyph atlas dimension in pixels. Values below the
// minimum fall back to the default.
func WithAtlasSize(size int) Option {
	return func(o *compositorOptions) {
		o.atlasSize = size
	}
}
