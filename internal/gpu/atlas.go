package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Atlas errors.
var (
	// ErrAtlasFull is returned when the atlas cannot fit the requested region.
	ErrAtlasFull = errors.New("wgpu: glyph atlas is full")

	// ErrRegionOutOfBounds is returned when a blit falls outside the atlas.
	ErrRegionOutOfBounds = errors.New("wgpu: region is outside atlas bounds")
)

// Default atlas settings.
const (
	// DefaultAtlasSize is the default atlas dimension.
	DefaultAtlasSize = 1024

	// MinAtlasSize is the minimum atlas dimension.
	MinAtlasSize = 256

	// shelfPadding is the gap kept between packed glyphs so linear
	// sampling never bleeds neighboring glyphs in.
	shelfPadding = 1
)

// GlyphKey identifies one rasterized glyph in the atlas. PPEM is the pixel
// size quantized to quarter-pixel steps so nearby fractional sizes share
// cache entries.
type GlyphKey struct {
	Font uint64
	GID  uint16
	PPEM int16
}

// QuantizeSize converts a pixel size to the PPEM key component.
func QuantizeSize(size float64) int16 {
	return int16(size*4 + 0.5)
}

// KeySize converts a PPEM key component back to the pixel size glyphs are
// rasterized at.
func KeySize(ppem int16) float64 {
	return float64(ppem) / 4
}

// Region is a rectangle inside the atlas texture.
type Region struct {
	X, Y, Width, Height int
}

// GlyphEntry records where a glyph lives in the atlas and how to place it
// relative to the pen position.
type GlyphEntry struct {
	Region Region

	// Left and Top offset the region from the glyph's pen position on the
	// baseline. Top is negative for ink above the baseline.
	Left, Top int

	// Blank marks glyphs with no ink. They occupy no atlas space.
	Blank bool

	lastUsed uint64
}

// shelf is one horizontal strip in the packer.
type shelf struct {
	y      int
	height int
	nextX  int
}

// shelfPacker allocates rectangles with a first-fit shelf algorithm. Each
// new rectangle goes on the first shelf with room, or opens a new shelf
// below. Individual rectangles cannot be freed; the packer only resets as
// a whole.
type shelfPacker struct {
	width, height int
	shelves       []shelf
}

func newShelfPacker(width, height int) *shelfPacker {
	return &shelfPacker{width: width, height: height}
}

// alloc finds space for a w x h rectangle. ok is false when nothing fits.
func (p *shelfPacker) alloc(w, h int) (r Region, ok bool) {
	if w <= 0 || h <= 0 {
		return Region{}, false
	}
	pw := w + shelfPadding
	ph := h + shelfPadding
	if pw > p.width || ph > p.height {
		return Region{}, false
	}

	for i := range p.shelves {
		s := &p.shelves[i]
		if s.nextX+pw > p.width {
			continue
		}
		// A shelf with items on it cannot grow taller.
		if ph > s.height && s.nextX > 0 {
			continue
		}
		r = Region{X: s.nextX, Y: s.y, Width: w, Height: h}
		s.nextX += pw
		if ph > s.height {
			s.height = ph
		}
		return r, true
	}

	newY := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		newY = last.y + last.height
	}
	if newY+ph > p.height {
		return Region{}, false
	}
	p.shelves = append(p.shelves, shelf{y: newY, height: ph, nextX: pw})
	return Region{X: 0, Y: newY, Width: w, Height: h}, true
}

func (p *shelfPacker) reset() {
	p.shelves = p.shelves[:0]
}

// GlyphAtlas is a single-channel coverage atlas shared by all glyphs in a
// batch. Pixels live in CPU memory and are uploaded to an R8 texture when
// dirty. The atlas is frame-stamped: entries untouched during a batch are
// evicted by Trim, and a full packer triggers a reset so the next batch
// repopulates from scratch.
//
// The atlas is driven from the render thread and is not safe for
// concurrent use.
type GlyphAtlas struct {
	device hal.Device
	queue  hal.Queue

	size    int
	texture hal.Texture
	view    hal.TextureView

	packer  *shelfPacker
	pixels  []byte
	entries map[GlyphKey]*GlyphEntry

	frame uint64
	dirty bool
}

// NewGlyphAtlas creates the atlas texture and CPU pixel store.
func NewGlyphAtlas(device hal.Device, queue hal.Queue, size int) (*GlyphAtlas, error) {
	if size < MinAtlasSize {
		size = DefaultAtlasSize
	}

	sz := uint32(size) //nolint:gosec // atlas size always fits uint32
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "glyph_atlas",
		Size:          hal.Extent3D{Width: sz, Height: sz, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatR8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create glyph atlas texture: %w", err)
	}

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "glyph_atlas_view",
		Format:        gputypes.TextureFormatR8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("create glyph atlas view: %w", err)
	}

	return &GlyphAtlas{
		device:  device,
		queue:   queue,
		size:    size,
		texture: tex,
		view:    view,
		packer:  newShelfPacker(size, size),
		pixels:  make([]byte, size*size),
		entries: make(map[GlyphKey]*GlyphEntry),
	}, nil
}

// Size returns the atlas dimension in pixels.
func (a *GlyphAtlas) Size() int { return a.size }

// View returns the texture view for binding.
func (a *GlyphAtlas) View() hal.TextureView { return a.view }

// EntryCount returns the number of cached glyphs.
func (a *GlyphAtlas) EntryCount() int { return len(a.entries) }

// BeginFrame advances the frame stamp. Call once per batch before lookups.
func (a *GlyphAtlas) BeginFrame() {
	a.frame++
}

// Lookup returns the cached entry for key and stamps it as used in the
// current frame.
func (a *GlyphAtlas) Lookup(key GlyphKey) (*GlyphEntry, bool) {
	e, ok := a.entries[key]
	if ok {
		e.lastUsed = a.frame
	}
	return e, ok
}

// InsertBlank caches a glyph with no ink.
func (a *GlyphAtlas) InsertBlank(key GlyphKey) *GlyphEntry {
	e := &GlyphEntry{Blank: true, lastUsed: a.frame}
	a.entries[key] = e
	return e
}

// Insert packs the mask into the atlas, blits its pixels into the CPU
// store and caches the entry. Returns ErrAtlasFull when no space remains;
// the caller is expected to Reset and retry on the next batch.
func (a *GlyphAtlas) Insert(key GlyphKey, mask *image.Alpha, left, top int) (*GlyphEntry, error) {
	b := mask.Bounds()
	region, ok := a.packer.alloc(b.Dx(), b.Dy())
	if !ok {
		return nil, fmt.Errorf("%w: %d entries, glyph %dx%d", ErrAtlasFull, len(a.entries), b.Dx(), b.Dy())
	}
	if err := a.blit(region, mask); err != nil {
		return nil, err
	}

	e := &GlyphEntry{
		Region:   region,
		Left:     left,
		Top:      top,
		lastUsed: a.frame,
	}
	a.entries[key] = e
	a.dirty = true
	return e, nil
}

// blit copies mask pixels into the CPU store at region.
func (a *GlyphAtlas) blit(region Region, mask *image.Alpha) error {
	if region.X < 0 || region.Y < 0 ||
		region.X+region.Width > a.size || region.Y+region.Height > a.size {
		return fmt.Errorf("%w: %+v", ErrRegionOutOfBounds, region)
	}
	b := mask.Bounds()
	for y := 0; y < region.Height; y++ {
		off := mask.PixOffset(b.Min.X, b.Min.Y+y)
		src := mask.Pix[off : off+region.Width]
		dst := a.pixels[(region.Y+y)*a.size+region.X:]
		copy(dst[:region.Width], src)
	}
	return nil
}

// Flush uploads the CPU pixels to the GPU texture if anything changed
// since the last upload.
func (a *GlyphAtlas) Flush() {
	if !a.dirty {
		return
	}
	sz := uint32(a.size) //nolint:gosec // atlas size always fits uint32
	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  a.texture,
			MipLevel: 0,
		},
		a.pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  sz,
			RowsPerImage: sz,
		},
		&hal.Extent3D{Width: sz, Height: sz, DepthOrArrayLayers: 1},
	)
	a.dirty = false
}

// Trim evicts every entry not used in the current frame. Atlas space held
// by evicted glyphs is reclaimed only by Reset; Trim keeps the working set
// equal to the last batch so a reset re-rasterizes nothing extra.
func (a *GlyphAtlas) Trim() int {
	var evicted int
	for key, e := range a.entries {
		if e.lastUsed != a.frame {
			delete(a.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		slogger().Debug("glyph atlas trimmed", "evicted", evicted, "remaining", len(a.entries))
	}
	return evicted
}

// Reset drops every entry and reclaims all packing space. The texture
// contents are left stale; entries repopulate on the next batch.
func (a *GlyphAtlas) Reset() {
	a.packer.reset()
	clear(a.entries)
	slogger().Warn("glyph atlas reset", "size", a.size)
}

// Destroy releases the GPU texture.
func (a *GlyphAtlas) Destroy() {
	if a.view != nil {
		a.device.DestroyTextureView(a.view)
		a.view = nil
	}
	if a.texture != nil {
		a.device.DestroyTexture(a.texture)
		a.texture = nil
	}
}
