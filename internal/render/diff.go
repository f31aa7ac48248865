package render

import (
	"github.com/couchcryptid/stormslide/internal/domain"
)

// Op names a single map operation.
type Op string

const (
	OpAddMarker    Op = "add_marker"
	OpRemoveMarker Op = "remove_marker"
	OpSetOverlay   Op = "set_overlay"
	OpClearOverlay Op = "clear_overlay"
	OpClearAll     Op = "clear_all"
)

// Mutation is one operation on the map collaborator.
type Mutation struct {
	Op       Op                   `json:"op"`
	MarkerID string               `json:"marker_id,omitempty"`
	Marker   *domain.VisualSymbol `json:"marker,omitempty"`
	Overlay  *domain.RadarFrame   `json:"overlay,omitempty"`
	Opacity  float64              `json:"opacity,omitempty"`
}

// Diff lists the mutations that turn prev into next: marker removals first,
// then the overlay change, then marker additions. A marker whose attributes
// changed is removed and re-added.
func Diff(prev, next MutationSet) []Mutation {
	var muts []Mutation

	nextByID := make(map[string]domain.VisualSymbol, len(next.Markers))
	for _, m := range next.Markers {
		nextByID[m.ID] = m
	}
	prevByID := make(map[string]domain.VisualSymbol, len(prev.Markers))
	for _, m := range prev.Markers {
		prevByID[m.ID] = m
		if n, ok := nextByID[m.ID]; !ok || n != m {
			muts = append(muts, Mutation{Op: OpRemoveMarker, MarkerID: m.ID})
		}
	}

	if !sameFrame(prev.Overlay, next.Overlay) {
		if next.Overlay == nil {
			muts = append(muts, Mutation{Op: OpClearOverlay})
		} else {
			f := *next.Overlay
			muts = append(muts, Mutation{Op: OpSetOverlay, Overlay: &f})
		}
	}

	for _, m := range next.Markers {
		if p, ok := prevByID[m.ID]; ok && p == m {
			continue
		}
		sym := m
		muts = append(muts, Mutation{Op: OpAddMarker, MarkerID: m.ID, Marker: &sym})
	}
	return muts
}
