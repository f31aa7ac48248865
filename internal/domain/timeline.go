package domain

import (
	"errors"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Go's parser accepts fractional seconds
// after the seconds field even when the layout omits them.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
}

var errEmptyValue = errors.New("empty value")

// ParseTimestamp parses the ISO-8601-ish timestamps emitted by the radar and
// detection feeds. Values without a zone are read as UTC. All-digit values are
// epoch seconds, or epoch milliseconds when longer than 11 digits.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyValue
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		if len(s) > 11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Timeline is an ordered, de-duplicated sequence of radar frames. The zero
// value is a valid timeline with no playable frames.
//
// Invariant: frames[i].Timestamp is strictly before frames[i+1].Timestamp.
type Timeline struct {
	frames []RadarFrame
}

// BuildTimeline validates raw frames and returns them as a Timeline. Frames
// with an unparseable timestamp or empty image reference are dropped and
// reported as *ParseError warnings; the remaining frames are always returned.
// Frames without usable bounds fall back to the supplied default.
func BuildTimeline(raw []RawFrame, bounds GeoBounds) (Timeline, []error) {
	var warnings []error
	frames := make([]RadarFrame, 0, len(raw))

	for i, rf := range raw {
		ts, err := ParseTimestamp(rf.Timestamp)
		if err != nil {
			warnings = append(warnings, &ParseError{Kind: "frame", Index: i, Field: "timestamp", Value: rf.Timestamp, Err: err})
			continue
		}
		ref := strings.TrimSpace(rf.ImageRef)
		if ref == "" {
			warnings = append(warnings, &ParseError{Kind: "frame", Index: i, Field: "image", Value: rf.ImageRef, Err: errEmptyValue})
			continue
		}

		frameBounds := bounds
		if rf.Bounds != nil {
			if rf.Bounds.Valid() {
				frameBounds = *rf.Bounds
			} else {
				warnings = append(warnings, &ParseError{Kind: "frame", Index: i, Field: "bounds", Value: rf.Bounds.String(), Err: errors.New("degenerate or out of range, using default")})
			}
		}

		frames = append(frames, RadarFrame{Timestamp: ts, ImageRef: ref, Bounds: frameBounds})
	}

	// Stable sort keeps payload order among equal timestamps, so the last
	// occurrence of a duplicate is the one that survives the collapse below.
	slices.SortStableFunc(frames, func(a, b RadarFrame) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	out := frames[:0]
	for _, f := range frames {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(f.Timestamp) {
			out[n-1] = f
			continue
		}
		out = append(out, f)
	}

	return Timeline{frames: out}, warnings
}

// Len returns the number of playable frames.
func (t Timeline) Len() int { return len(t.frames) }

// Empty reports whether the timeline has no playable frames.
func (t Timeline) Empty() bool { return len(t.frames) == 0 }

// FrameAt returns the frame at index i.
func (t Timeline) FrameAt(i int) (RadarFrame, bool) {
	if i < 0 || i >= len(t.frames) {
		return RadarFrame{}, false
	}
	return t.frames[i], true
}

// Frames returns a copy of the ordered frames.
func (t Timeline) Frames() []RadarFrame {
	return slices.Clone(t.frames)
}

// NearestIndexAtOrBefore returns the index of the latest frame whose timestamp
// is not after ts. It reports false when ts precedes every frame.
func (t Timeline) NearestIndexAtOrBefore(ts time.Time) (int, bool) {
	i := sort.Search(len(t.frames), func(i int) bool {
		return t.frames[i].Timestamp.After(ts)
	})
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}
