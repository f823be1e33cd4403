// Package playback advances the normalized animation progress.
package playback

import "math"

type State int

const (
	Paused State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "paused"
}

// Mode decides what happens at the end: Preview loops, Capture clamps.
type Mode int

const (
	Preview Mode = iota
	Capture
)

func (m Mode) String() string {
	if m == Capture {
		return "capture"
	}
	return "preview"
}

// tolerance absorbs float drift of accumulated frame deltas (e.g. 30 x 1/30s).
const tolerance = 1e-9

// Clock tracks elapsed time instead of summing progress fractions, so a loop
// of exact deltas lands exactly on the duration.
type Clock struct {
	duration float64
	elapsed  float64
	state    State
	mode     Mode
}

// NewClock returns a paused preview clock.
func NewClock(durationSeconds float64) *Clock {
	c := &Clock{}
	c.SetDuration(durationSeconds)
	return c
}

// SetDuration changes the loop length, keeping the current progress.
func (c *Clock) SetDuration(seconds float64) {
	p := c.Progress()
	if seconds <= 0 || math.IsNaN(seconds) {
		seconds = 1e-3
	}
	c.duration = seconds
	c.elapsed = p * seconds
}

func (c *Clock) Duration() float64 { return c.duration }
func (c *Clock) State() State      { return c.state }
func (c *Clock) Mode() Mode        { return c.mode }

// Progress returns the normalized position in [0,1].
func (c *Clock) Progress() float64 {
	if c.duration <= 0 {
		return 0
	}
	return math.Min(1, c.elapsed/c.duration)
}

// Elapsed returns seconds since the start of the current loop.
func (c *Clock) Elapsed() float64 { return c.elapsed }

// Tick advances a playing clock by delta seconds and returns the new progress.
func (c *Clock) Tick(deltaSeconds float64) float64 {
	if c.state != Playing || deltaSeconds <= 0 {
		return c.Progress()
	}
	c.elapsed += deltaSeconds
	if c.elapsed >= c.duration-tolerance {
		switch c.mode {
		case Capture:
			c.elapsed = c.duration
		default:
			c.elapsed = 0
		}
	}
	return c.Progress()
}

// Done reports that a capture clock reached the end.
func (c *Clock) Done() bool {
	return c.mode == Capture && c.elapsed >= c.duration
}

// Seek sets the progress from outside and pauses the clock.
func (c *Clock) Seek(progress float64) {
	if math.IsNaN(progress) {
		progress = 0
	}
	progress = math.Max(0, math.Min(1, progress))
	c.elapsed = progress * c.duration
	c.state = Paused
}

// Restart rewinds to 0 and plays in the given mode.
func (c *Clock) Restart(mode Mode) {
	c.elapsed = 0
	c.mode = mode
	c.state = Playing
}

func (c *Clock) Pause() { c.state = Paused }
func (c *Clock) Play()  { c.state = Playing }
