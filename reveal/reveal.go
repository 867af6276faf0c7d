// Package reveal implements the time-based typewriter effect that feeds
// transcribed text into the overlay compositor one codepoint at a time.
//
// The package is a leaf: it has no GPU or font dependencies. An Effect
// converts elapsed wall-clock time into a monotonically growing visible
// prefix of its target string. The frame loop calls Update once per tick
// and hands the returned string to the text compositor.
package reveal

import (
	"math"
	"time"
	"unicode/utf8"
)

// Duration rule segments. Short text reveals in under a second; the
// longest text never exceeds maxDuration.
const (
	minDuration = 300 * time.Millisecond
	maxDuration = 1500 * time.Millisecond
)

// Effect reveals a string codepoint by codepoint. The reveal window scales
// with text length and progress follows an ease-out curve, so the first
// characters appear quickly and the tail slows down.
//
// Effect is not safe for concurrent use; it is driven from the single
// render/update thread, once per frame.
type Effect struct {
	text     string
	total    int // codepoint count of text
	start    time.Time
	started  bool
	visible  int // codepoints currently revealed
	active   bool
	duration time.Duration

	now func() time.Time
}

// Option configures an Effect during creation.
type Option func(*Effect)

// WithClock replaces the wall clock used to measure elapsed time.
// Tests use this to drive the effect deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Effect) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an idle Effect. Call Start to begin a reveal.
func New(opts ...Option) *Effect {
	e := &Effect{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// durationFor computes the reveal window for a text of n codepoints using
// a three-segment piecewise rule:
//
//	n < 50:        0.3s .. 0.8s
//	50 <= n < 200: 0.8s .. 1.2s
//	n >= 200:      1.2s .. 1.5s (capped)
func durationFor(n int) time.Duration {
	var secs float64
	switch {
	case n < 50:
		secs = 0.3 + float64(n)/50.0*0.5
	case n < 200:
		secs = 0.8 + float64(n-50)/150.0*0.4
	default:
		secs = 1.2 + math.Min(float64(n-200)/300.0, 1.0)*0.3
	}
	return time.Duration(secs * float64(time.Second))
}

// Start resets the effect and begins revealing text. Starting with an
// empty string leaves the effect inactive and subsequent reads return "".
func (e *Effect) Start(text string) {
	if text == "" {
		e.text = ""
		e.total = 0
		e.visible = 0
		e.active = false
		e.started = false
		return
	}

	e.text = text
	e.total = utf8.RuneCountInString(text)
	e.duration = durationFor(e.total)
	e.start = e.now()
	e.started = true
	e.visible = 0
	e.active = true
}

// Complete finishes the reveal immediately, showing the full text.
func (e *Effect) Complete() {
	e.visible = e.total
	e.active = false
}

// IsActive reports whether the effect is still revealing.
func (e *Effect) IsActive() bool { return e.active }

// Duration returns the reveal window chosen by the last Start call.
func (e *Effect) Duration() time.Duration { return e.duration }

// Update advances the effect by the elapsed wall-clock time and returns
// the currently visible text. Once the window has elapsed or every
// codepoint is visible, the effect deactivates and the full text is
// returned. The returned prefix always ends on a codepoint boundary.
func (e *Effect) Update() string {
	if !e.active || !e.started {
		return e.text
	}
	if e.total == 0 {
		e.active = false
		return e.text
	}

	elapsed := e.now().Sub(e.start)

	linear := math.Min(elapsed.Seconds()/e.duration.Seconds(), 1.0)
	// Ease-out: fast start, slow finish.
	eased := 1.0 - (1.0-linear)*(1.0-linear)

	e.visible = int(math.Ceil(eased * float64(e.total)))
	if e.visible > e.total {
		e.visible = e.total
	}

	if e.visible >= e.total || elapsed >= e.duration {
		e.active = false
		return e.text
	}
	return prefixRunes(e.text, e.visible)
}

// VisibleText returns the currently visible text without advancing the
// effect. It reports the same value Update would return for the state
// recorded by the most recent Update.
func (e *Effect) VisibleText() string {
	if !e.active || e.visible >= e.total {
		return e.text
	}
	return prefixRunes(e.text, e.visible)
}

// Reset clears the text and all counters back to the initial idle state.
func (e *Effect) Reset() {
	e.text = ""
	e.total = 0
	e.start = time.Time{}
	e.started = false
	e.visible = 0
	e.active = false
	e.duration = 0
}

// prefixRunes returns the prefix of s containing exactly n codepoints.
// The cut point always lands on a rune boundary.
func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	for i := range s {
		if seen == n {
			return s[:i]
		}
		seen++
	}
	return s
}
