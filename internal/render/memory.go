package render

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/stormslide/internal/domain"
)

// Overlay is an active radar image layer.
type Overlay struct {
	Frame   domain.RadarFrame `json:"frame"`
	Opacity float64           `json:"opacity"`
}

// Layers is a snapshot of a MemoryMap.
type Layers struct {
	Overlay *Overlay              `json:"overlay"`
	Markers []domain.VisualSymbol `json:"markers"`
	Version uint64                `json:"version"`
}

// MemoryMap is a Map that keeps its layers in memory. It backs the control
// API's view of the map and doubles as the test double.
type MemoryMap struct {
	mu      sync.RWMutex
	overlay *Overlay
	markers map[string]domain.VisualSymbol
	version uint64
}

// NewMemoryMap creates an empty map.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{markers: make(map[string]domain.VisualSymbol)}
}

// Apply executes the mutations in order. An unknown operation fails the whole
// batch before anything is changed.
func (m *MemoryMap) Apply(_ context.Context, muts []Mutation) error {
	for i, mut := range muts {
		if err := validate(mut); err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mut := range muts {
		switch mut.Op {
		case OpAddMarker:
			m.markers[mut.Marker.ID] = *mut.Marker
		case OpRemoveMarker:
			delete(m.markers, mut.MarkerID)
		case OpSetOverlay:
			m.overlay = &Overlay{Frame: *mut.Overlay, Opacity: mut.Opacity}
		case OpClearOverlay:
			m.overlay = nil
		case OpClearAll:
			m.overlay = nil
			clear(m.markers)
		}
	}
	m.version++
	return nil
}

func validate(mut Mutation) error {
	switch mut.Op {
	case OpAddMarker:
		if mut.Marker == nil {
			return errors.New("add_marker without marker")
		}
	case OpSetOverlay:
		if mut.Overlay == nil {
			return errors.New("set_overlay without overlay")
		}
	case OpRemoveMarker, OpClearOverlay, OpClearAll:
	default:
		return fmt.Errorf("unknown op %q", mut.Op)
	}
	return nil
}

// Layers returns a copy of the current layers, markers sorted by ID.
func (m *MemoryMap) Layers() Layers {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l := Layers{Version: m.version, Markers: make([]domain.VisualSymbol, 0, len(m.markers))}
	if m.overlay != nil {
		o := *m.overlay
		l.Overlay = &o
	}
	for _, s := range m.markers {
		l.Markers = append(l.Markers, s)
	}
	slices.SortFunc(l.Markers, func(a, b domain.VisualSymbol) int { return strings.Compare(a.ID, b.ID) })
	return l
}

// Tee applies every batch to several maps. All maps are attempted; the
// returned error joins the individual failures.
type Tee []Map

// Apply implements Map.
func (t Tee) Apply(ctx context.Context, muts []Mutation) error {
	var errs []error
	for _, m := range t {
		if err := m.Apply(ctx, muts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
