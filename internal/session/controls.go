package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/stormslide/internal/playback"
)

// ErrNoFrame is returned when a time seek has no frame at or before the time.
var ErrNoFrame = errors.New("no frame at or before the requested time")

// ErrScrubIndex is returned by a scrub move without a target frame.
var ErrScrubIndex = errors.New("scrub move needs an index")

// ScrubPhase is one step of a slider drag.
type ScrubPhase string

const (
	ScrubBegin ScrubPhase = "begin"
	ScrubMove  ScrubPhase = "move"
	ScrubEnd   ScrubPhase = "end"
)

// OnSeek moves the cursor to frame i, clamped to the timeline, and returns
// the resulting state. Rapid seeks collapse into one render of the last cursor.
func (s *Session) OnSeek(i int) (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	s.ctrl.Seek(i)
	return s.ctrl.State(), nil
}

// SeekTime moves the cursor to the frame nearest at or before t.
func (s *Session) SeekTime(t time.Time) (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	s.mu.RLock()
	i, ok := s.timeline.NearestIndexAtOrBefore(t)
	s.mu.RUnlock()
	if !ok {
		return s.ctrl.State(), fmt.Errorf("seek %s: %w", t.Format(time.RFC3339), ErrNoFrame)
	}
	s.ctrl.Seek(i)
	return s.ctrl.State(), nil
}

// Scrub drives a drag gesture: auto-advance is held between begin and end,
// and the prior mode resumes afterwards. index is ignored for ScrubBegin and
// required for ScrubMove; ScrubEnd without one ends the drag where it is.
func (s *Session) Scrub(phase ScrubPhase, index *int) (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	switch phase {
	case ScrubBegin:
		s.ctrl.BeginSeek()
	case ScrubMove:
		if index == nil {
			return s.ctrl.State(), ErrScrubIndex
		}
		s.ctrl.SeekTo(*index)
	case ScrubEnd:
		if index != nil {
			s.ctrl.SeekTo(*index)
		}
		s.ctrl.EndSeek()
	default:
		return s.ctrl.State(), fmt.Errorf("unknown scrub phase %q", phase)
	}
	return s.ctrl.State(), nil
}

// OnPlayToggle pauses a playing session and plays an idle one.
func (s *Session) OnPlayToggle() (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	s.ctrl.Toggle()
	return s.ctrl.State(), nil
}

// Play starts playback. It is a no-op without frames.
func (s *Session) Play() (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	s.ctrl.Play()
	return s.ctrl.State(), nil
}

// Pause stops playback on the current frame.
func (s *Session) Pause() (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	s.ctrl.Pause()
	return s.ctrl.State(), nil
}

// SetSpeed changes the time each frame is shown.
func (s *Session) SetSpeed(d time.Duration) (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	if err := s.ctrl.SetSpeed(d); err != nil {
		return s.ctrl.State(), err
	}
	return s.ctrl.State(), nil
}

// SetLoop turns wrap-around at the last frame on or off.
func (s *Session) SetLoop(loop bool) (playback.State, error) {
	if s.disposed() {
		return playback.State{}, ErrDisposed
	}
	s.ctrl.SetLoop(loop)
	return s.ctrl.State(), nil
}
