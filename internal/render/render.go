// Package render turns playback state into map mutations. Render is pure;
// the Applier is the only code that talks to a Map, and it sends the minimal
// diff against what it applied last.
package render

import (
	"slices"

	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/playback"
)

// MutationSet is the complete desired map content: the active radar overlay
// (nil for none) and every detection marker.
type MutationSet struct {
	Overlay *domain.RadarFrame    `json:"overlay"`
	Markers []domain.VisualSymbol `json:"markers"`
}

// Render computes the desired map content for the given state. An empty
// timeline shows no overlay; detections are drawn regardless of the cursor.
func Render(state playback.State, tl domain.Timeline, symbols []domain.VisualSymbol) MutationSet {
	set := MutationSet{Markers: slices.Clone(symbols)}
	if tl.Empty() {
		return set
	}
	i := max(0, min(state.Cursor, tl.Len()-1))
	if f, ok := tl.FrameAt(i); ok {
		set.Overlay = &f
	}
	return set
}

func sameFrame(a, b *domain.RadarFrame) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Timestamp.Equal(b.Timestamp) && a.ImageRef == b.ImageRef && a.Bounds == b.Bounds
}
