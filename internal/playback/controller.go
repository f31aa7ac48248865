// Package playback owns the timeline cursor: it auto-advances while playing,
// accepts seeks from the UI, and survives timeline rebuilds without ever
// pointing outside the frame range.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/stormslide/internal/schedule"
)

// MinSpeed is the shortest accepted interval between frames.
const MinSpeed = 50 * time.Millisecond

// Mode is the controller state.
type Mode int

const (
	Idle Mode = iota
	Playing
	Seeking
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Seeking:
		return "seeking"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText renders the mode by name in JSON.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText parses a mode name as produced by MarshalText.
func (m *Mode) UnmarshalText(b []byte) error {
	for _, v := range []Mode{Idle, Playing, Seeking} {
		if v.String() == string(b) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown playback mode %q", b)
}

// State is a read-only copy of the controller state.
type State struct {
	Cursor int           `json:"cursor"`
	Mode   Mode          `json:"mode"`
	Speed  time.Duration `json:"speed"`
	Loop   bool          `json:"loop"`
	Frames int           `json:"frames"`
}

// AtEnd reports whether the cursor is on the last frame.
func (s State) AtEnd() bool { return s.Frames > 0 && s.Cursor == s.Frames-1 }

// Options configures a Controller.
type Options struct {
	Speed time.Duration
	Loop  bool
}

// Controller is the playback state machine. All methods are safe for
// concurrent use. onChange receives a copy of the new state after every
// accepted change; it runs outside the controller lock and must not block.
type Controller struct {
	sched    *schedule.Scheduler
	onChange func(State)

	mu        sync.Mutex
	state     State
	tick      *schedule.Handle
	gen       uint64 // bumped whenever the pending tick is replaced or cancelled
	seekPrior Mode   // mode to restore when a seek gesture ends
}

// New creates an idle controller with no frames.
func New(sched *schedule.Scheduler, opts Options, onChange func(State)) *Controller {
	if opts.Speed < MinSpeed {
		opts.Speed = MinSpeed
	}
	if onChange == nil {
		onChange = func(State) {}
	}
	return &Controller{
		sched:    sched,
		onChange: onChange,
		state:    State{Mode: Idle, Speed: opts.Speed, Loop: opts.Loop},
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play starts auto-advance. It is a no-op with zero frames or when already
// playing. With looping off, playing from the last frame starts over at 0.
func (c *Controller) Play() bool {
	c.mu.Lock()
	if c.state.Frames == 0 || c.state.Mode != Idle {
		c.mu.Unlock()
		return false
	}
	if !c.state.Loop && c.state.AtEnd() {
		c.state.Cursor = 0
	}
	c.state.Mode = Playing
	c.armLocked()
	return c.commit()
}

// Pause stops auto-advance and cancels the pending tick.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	if c.state.Mode != Playing {
		c.mu.Unlock()
		return false
	}
	c.cancelLocked()
	c.state.Mode = Idle
	return c.commit()
}

// Toggle pauses when playing and plays otherwise.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	playing := c.state.Mode == Playing
	c.mu.Unlock()
	if playing {
		return c.Pause()
	}
	return c.Play()
}

// Seek moves the cursor to i, clamped to the frame range, and resumes the
// prior mode. A playing controller restarts its interval from now. It reports
// whether the cursor moved.
func (c *Controller) Seek(i int) bool {
	c.mu.Lock()
	if c.state.Frames == 0 {
		c.mu.Unlock()
		return false
	}
	prior := c.state.Mode
	if prior == Seeking {
		prior = c.seekPrior
	}
	c.cancelLocked()

	moved := c.moveLocked(i)
	c.state.Mode = prior
	if prior == Playing {
		c.armLocked()
	}
	if !moved {
		c.mu.Unlock()
		return false
	}
	return c.commit()
}

// BeginSeek enters Seeking for a drag gesture: auto-advance is suspended
// until EndSeek. Cursor updates during the gesture go through SeekTo.
func (c *Controller) BeginSeek() bool {
	c.mu.Lock()
	if c.state.Frames == 0 || c.state.Mode == Seeking {
		c.mu.Unlock()
		return false
	}
	c.cancelLocked()
	c.seekPrior = c.state.Mode
	c.state.Mode = Seeking
	return c.commit()
}

// SeekTo moves the cursor during a seek gesture without leaving Seeking.
// Outside a gesture it behaves like Seek.
func (c *Controller) SeekTo(i int) bool {
	c.mu.Lock()
	if c.state.Mode != Seeking {
		c.mu.Unlock()
		return c.Seek(i)
	}
	if !c.moveLocked(i) {
		c.mu.Unlock()
		return false
	}
	return c.commit()
}

// EndSeek leaves Seeking and restores the mode that was active before.
func (c *Controller) EndSeek() bool {
	c.mu.Lock()
	if c.state.Mode != Seeking {
		c.mu.Unlock()
		return false
	}
	c.state.Mode = c.seekPrior
	if c.state.Mode == Playing {
		c.armLocked()
	}
	return c.commit()
}

// SetSpeed changes the interval between frames. A running interval restarts.
func (c *Controller) SetSpeed(d time.Duration) error {
	if d < MinSpeed {
		return fmt.Errorf("speed %s below minimum %s", d, MinSpeed)
	}
	c.mu.Lock()
	if c.state.Speed == d {
		c.mu.Unlock()
		return nil
	}
	c.state.Speed = d
	if c.state.Mode == Playing {
		c.cancelLocked()
		c.armLocked()
	}
	c.commit()
	return nil
}

// SetLoop turns wrap-around on or off.
func (c *Controller) SetLoop(loop bool) {
	c.mu.Lock()
	if c.state.Loop == loop {
		c.mu.Unlock()
		return
	}
	c.state.Loop = loop
	c.commit()
}

// Rebuild installs a new frame count after a timeline rebuild, placing the
// cursor at the given index (clamped). The pending tick is always cancelled;
// a playing controller re-arms on the new timeline, and an empty timeline
// forces Idle.
func (c *Controller) Rebuild(frames, cursor int) {
	c.mu.Lock()
	c.cancelLocked()

	c.state.Frames = max(frames, 0)
	if c.state.Frames == 0 {
		c.state.Cursor = 0
		c.state.Mode = Idle
	} else {
		c.state.Cursor = clamp(cursor, 0, c.state.Frames-1)
	}
	if c.state.Mode == Playing {
		c.armLocked()
	}
	c.commit()
}

// Stop cancels the pending tick and goes Idle without notifying. Used on teardown.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.state.Mode = Idle
}

func (c *Controller) advance(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state.Mode != Playing {
		c.mu.Unlock()
		return
	}
	c.tick = nil

	next := c.state.Cursor + 1
	if next >= c.state.Frames {
		if !c.state.Loop {
			c.state.Mode = Idle
			c.commit()
			return
		}
		next = 0
	}
	c.armLocked()
	if next == c.state.Cursor {
		// A single looping frame: keep ticking, nothing to redraw.
		c.mu.Unlock()
		return
	}
	c.state.Cursor = next
	c.commit()
}

// moveLocked sets the clamped cursor and reports whether it changed.
func (c *Controller) moveLocked(i int) bool {
	i = clamp(i, 0, c.state.Frames-1)
	if i == c.state.Cursor {
		return false
	}
	c.state.Cursor = i
	return true
}

func (c *Controller) armLocked() {
	c.gen++
	gen := c.gen
	c.tick = c.sched.After(c.state.Speed, func() { c.advance(gen) })
}

func (c *Controller) cancelLocked() {
	c.gen++
	c.tick.Cancel()
	c.tick = nil
}

// commit releases the lock and publishes the state. It must be called with
// c.mu held and always returns true.
func (c *Controller) commit() bool {
	s := c.state
	c.mu.Unlock()
	c.onChange(s)
	return true
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
