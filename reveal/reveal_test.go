package reveal

import (
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// fakeClock is a manually advanced clock for driving effects in tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestDurationFor(t *testing.T) {
	tests := []struct {
		n    int
		want float64 // seconds
	}{
		{1, 0.31},
		{2, 0.32},
		{13, 0.43},
		{49, 0.79},
		{50, 0.8},
		{125, 1.0},
		{199, 1.1973333333},
		{200, 1.2},
		{350, 1.35},
		{500, 1.5},
		{10000, 1.5},
	}
	for _, tt := range tests {
		got := durationFor(tt.n).Seconds()
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("durationFor(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestDurationForMonotonicAndBounded(t *testing.T) {
	prev := 0.0
	for n := 1; n <= 1000; n++ {
		d := durationFor(n).Seconds()
		if d < prev {
			t.Fatalf("durationFor(%d) = %v < durationFor(%d) = %v", n, d, n-1, prev)
		}
		if d < 0.3 || d > 1.5 {
			t.Fatalf("durationFor(%d) = %v outside [0.3, 1.5]", n, d)
		}
		prev = d
	}
}

func TestStartEmptyText(t *testing.T) {
	e := New()
	e.Start("")
	if e.IsActive() {
		t.Error("expected inactive effect after Start(\"\")")
	}
	if got := e.Update(); got != "" {
		t.Errorf("Update() = %q, want empty", got)
	}
	if got := e.VisibleText(); got != "" {
		t.Errorf("VisibleText() = %q, want empty", got)
	}
}

func TestStartResetsPriorState(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.now))

	e.Start("first text here")
	clock.advance(200 * time.Millisecond)
	e.Update()

	e.Start("second")
	if !e.IsActive() {
		t.Fatal("expected active effect after restart")
	}
	if got := e.VisibleText(); got != "" {
		t.Errorf("VisibleText() right after Start = %q, want empty", got)
	}
}

func TestUpdateMonotonicVisibleCount(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.now))
	e.Start("The quick brown fox jumps over the lazy dog")

	prev := 0
	for i := 0; i < 100; i++ {
		clock.advance(10 * time.Millisecond)
		s := e.Update()
		n := utf8.RuneCountInString(s)
		if n < prev {
			t.Fatalf("visible count decreased: %d -> %d at step %d", prev, n, i)
		}
		prev = n
	}
}

func TestUpdateRuneBoundarySafety(t *testing.T) {
	texts := []string{
		"héllo wörld",
		"日本語のテキストです",
		"mixed ascii and 中文 and emoji 🙂🎉 end",
		"🙂🙂🙂🙂🙂",
	}
	for _, text := range texts {
		clock := newFakeClock()
		e := New(WithClock(clock.now))
		e.Start(text)

		for i := 0; i < 200; i++ {
			clock.advance(10 * time.Millisecond)
			s := e.Update()
			if !utf8.ValidString(s) {
				t.Fatalf("Update() returned invalid UTF-8 prefix of %q: %q", text, s)
			}
			if !strings.HasPrefix(text, s) {
				t.Fatalf("Update() returned %q, not a prefix of %q", s, text)
			}
		}
	}
}

func TestUpdateCompletesAtDuration(t *testing.T) {
	const text = "Hello, world!" // 13 codepoints -> 0.43s
	clock := newFakeClock()
	e := New(WithClock(clock.now))
	e.Start(text)

	if got, want := e.Duration(), 430*time.Millisecond; got != want {
		t.Fatalf("Duration() = %v, want %v", got, want)
	}

	clock.advance(430 * time.Millisecond)
	if got := e.Update(); got != text {
		t.Errorf("Update() at target duration = %q, want full text", got)
	}
	if e.IsActive() {
		t.Error("expected inactive effect once elapsed >= duration")
	}
}

func TestUpdatePartialReveal(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.now))
	text := strings.Repeat("a", 100) // 0.933..s window
	e.Start(text)

	clock.advance(100 * time.Millisecond)
	s := e.Update()
	if s == "" {
		t.Error("expected some progress after 100ms (ease-out is front-loaded)")
	}
	if s == text {
		t.Error("expected partial text after 100ms of a ~0.93s reveal")
	}
	if !e.IsActive() {
		t.Error("expected effect still active mid-reveal")
	}
}

func TestComplete(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.now))
	e.Start("some text to reveal")

	clock.advance(50 * time.Millisecond)
	e.Update()
	e.Complete()

	if e.IsActive() {
		t.Error("expected inactive after Complete")
	}
	if got := e.Update(); got != "some text to reveal" {
		t.Errorf("Update() after Complete = %q, want full text", got)
	}
	if got := e.VisibleText(); got != "some text to reveal" {
		t.Errorf("VisibleText() after Complete = %q, want full text", got)
	}
}

func TestVisibleTextDoesNotAdvance(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.now))
	e.Start("The quick brown fox jumps over the lazy dog")

	clock.advance(150 * time.Millisecond)
	got := e.Update()

	// Time passes, but VisibleText reflects the last Update.
	clock.advance(150 * time.Millisecond)
	if v := e.VisibleText(); v != got {
		t.Errorf("VisibleText() = %q, want last Update value %q", v, got)
	}
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.now))
	e.Start("text")
	e.Reset()

	if e.IsActive() {
		t.Error("expected inactive after Reset")
	}
	if got := e.Update(); got != "" {
		t.Errorf("Update() after Reset = %q, want empty", got)
	}
}

func TestIndicatorStateTransitions(t *testing.T) {
	clock := newFakeClock()
	in := NewIndicator(WithIndicatorClock(clock.now))

	in.SetState(StateTranscribing)
	started := in.start

	clock.advance(100 * time.Millisecond)
	in.SetState(StateTranscribing)
	if in.start != started {
		t.Error("cycle clock restarted on unchanged state")
	}

	in.SetState(StateCompleted)
	if in.start == started {
		t.Error("cycle clock not restarted on state change")
	}
	if in.kind != kindSuccess {
		t.Errorf("kind = %v, want success", in.kind)
	}
}

func TestIndicatorFrameDots(t *testing.T) {
	clock := newFakeClock()
	in := NewIndicator(WithIndicatorClock(clock.now))
	in.SetState(StateLoading)

	dots := in.Frame(100, 50, 40)
	if len(dots) != 3 {
		t.Fatalf("dots frame produced %d dots, want 3", len(dots))
	}
	for i, d := range dots {
		if d.Alpha <= 0 || d.Alpha > 1 {
			t.Errorf("dot %d alpha = %v, want (0, 1]", i, d.Alpha)
		}
		if d.Size <= 0 {
			t.Errorf("dot %d size = %v, want > 0", i, d.Size)
		}
	}

	// Animation progresses over time.
	before := dots[0].Size
	clock.advance(200 * time.Millisecond)
	after := in.Frame(100, 50, 40)[0].Size
	if before == after {
		t.Error("dot size did not change over a quarter cycle")
	}
}
