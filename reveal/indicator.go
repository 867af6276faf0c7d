package reveal

import (
	"math"
	"time"
)

// ProcessingState describes where the transcription pipeline currently is.
// The indicator maps it onto one of the animation kinds below.
type ProcessingState int

const (
	StateIdle ProcessingState = iota
	StateLoading
	StateTranscribing
	StateCompleted
	StateError
)

// indicatorKind selects the animation rendered by the indicator.
type indicatorKind int

const (
	kindDots indicatorKind = iota
	kindSpinner
	kindSuccess
	kindError
)

// Dot is one circular mark produced by the indicator for the current
// frame. The caller converts dots into rounded-rect draw requests (a
// square with corner radius = half the size renders as a circle).
type Dot struct {
	X, Y  float32 // center position in pixels
	Size  float32 // diameter in pixels
	Alpha float32 // opacity multiplier in [0, 1]
}

// Indicator is the loading/processing animation shown while transcription
// or enhancement is in flight. It is pure geometry: Frame returns the dots
// to draw for the current wall-clock time and the caller queues them on
// the rect batcher.
//
// Like Effect, Indicator is driven from the single render thread.
type Indicator struct {
	kind      indicatorKind
	start     time.Time
	cycle     time.Duration
	lastState ProcessingState
	hasState  bool

	now func() time.Time
}

// IndicatorOption configures an Indicator during creation.
type IndicatorOption func(*Indicator)

// WithIndicatorClock replaces the wall clock, for deterministic tests.
func WithIndicatorClock(now func() time.Time) IndicatorOption {
	return func(in *Indicator) {
		if now != nil {
			in.now = now
		}
	}
}

// NewIndicator creates an indicator in the dots state with an 800ms cycle.
func NewIndicator(opts ...IndicatorOption) *Indicator {
	in := &Indicator{
		kind:  kindDots,
		cycle: 800 * time.Millisecond,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.start = in.now()
	return in
}

// SetState maps a processing state onto the matching animation. The cycle
// clock restarts only when the state actually changes, so repeated calls
// with the same state do not stutter the animation.
func (in *Indicator) SetState(s ProcessingState) {
	changed := !in.hasState || in.lastState != s

	switch s {
	case StateCompleted:
		in.kind = kindSuccess
	case StateError:
		in.kind = kindError
	default:
		// Idle, Loading and Transcribing all show the dots animation.
		in.kind = kindDots
	}

	if changed {
		in.start = in.now()
		in.lastState = s
		in.hasState = true
	}
}

// Frame returns the dots to draw this frame, centered at (cx, cy) and
// scaled to the given overall size. Alpha values already include the
// animation's own fading; the caller multiplies in its base color.
func (in *Indicator) Frame(cx, cy, size float32) []Dot {
	elapsed := in.now().Sub(in.start)
	progress := float32(math.Mod(elapsed.Seconds()/in.cycle.Seconds(), 1.0))

	switch in.kind {
	case kindSpinner:
		return spinnerDots(cx, cy, size, progress)
	case kindSuccess:
		return successDots(cx, cy, size)
	case kindError:
		return errorDots(cx, cy, size)
	default:
		return pulseDots(cx, cy, size, progress)
	}
}

// pulseDots renders three small dots pulsing in sequence.
func pulseDots(cx, cy, size, progress float32) []Dot {
	dotSize := size * 0.08
	spacing := size * 0.12
	totalWidth := 3*dotSize + 2*spacing
	startX := cx - totalWidth/2

	dots := make([]Dot, 0, 3)
	for i := 0; i < 3; i++ {
		phase := float32(math.Mod(float64(progress)+float64(i)*0.15, 1.0))
		scale := 0.4 + 0.6*float32(math.Abs(math.Sin(2*math.Pi*float64(phase))))
		opacity := 0.15 + 0.25*scale

		dots = append(dots, Dot{
			X:     startX + float32(i)*(dotSize+spacing) + dotSize/2,
			Y:     cy,
			Size:  dotSize * scale,
			Alpha: opacity,
		})
	}
	return dots
}

// spinnerDots renders eight dots on a circle, rotating with progress and
// fading around the ring.
func spinnerDots(cx, cy, size, progress float32) []Dot {
	const segments = 8
	segSize := size * 0.1
	radius := size * 0.3

	dots := make([]Dot, 0, segments)
	for i := 0; i < segments; i++ {
		angle := float64(i)/segments*2*math.Pi + float64(progress)*2*math.Pi
		opacity := 0.2 + 0.8*float32(i)/segments

		dots = append(dots, Dot{
			X:     cx + float32(math.Cos(angle))*radius,
			Y:     cy + float32(math.Sin(angle))*radius,
			Size:  segSize,
			Alpha: opacity,
		})
	}
	return dots
}

// successDots renders a static checkmark from dots.
func successDots(cx, cy, size float32) []Dot {
	dotSize := size * 0.08
	// Two strokes: short down-right, then long up-right.
	points := [][2]float32{
		{-0.25, 0.0}, {-0.15, 0.1}, {-0.05, 0.2},
		{0.05, 0.1}, {0.15, 0.0}, {0.25, -0.1},
	}
	dots := make([]Dot, 0, len(points))
	for _, p := range points {
		dots = append(dots, Dot{
			X:     cx + p[0]*size,
			Y:     cy + p[1]*size,
			Size:  dotSize,
			Alpha: 0.9,
		})
	}
	return dots
}

// errorDots renders a static X from dots.
func errorDots(cx, cy, size float32) []Dot {
	dotSize := size * 0.08
	dots := make([]Dot, 0, 9)
	for i := -2; i <= 2; i++ {
		off := float32(i) * 0.1 * size
		dots = append(dots, Dot{X: cx + off, Y: cy + off, Size: dotSize, Alpha: 0.9})
		if i != 0 {
			dots = append(dots, Dot{X: cx + off, Y: cy - off, Size: dotSize, Alpha: 0.9})
		}
	}
	return dots
}
