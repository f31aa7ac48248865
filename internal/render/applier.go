package render

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/couchcryptid/stormslide/internal/observability"
)

// Map is the external map collaborator. Apply must apply the mutations in order.
type Map interface {
	Apply(ctx context.Context, muts []Mutation) error
}

// Applier remembers what the map shows and sends only the difference. After a
// failed apply the map state is unknown, so the next pass clears the map and
// redraws everything. An Applier is not safe for concurrent use; a session
// drives it from its single render goroutine.
type Applier struct {
	m       Map
	opacity float64
	logger  *slog.Logger
	metrics *observability.Metrics

	applied MutationSet
	dirty   bool
}

// NewApplier creates an Applier drawing radar overlays at the given opacity.
func NewApplier(m Map, opacity float64, logger *slog.Logger, metrics *observability.Metrics) *Applier {
	return &Applier{
		m:       m,
		opacity: opacity,
		logger:  logger,
		metrics: metrics,
	}
}

// Apply brings the map to next. It reports how many mutations were sent.
func (a *Applier) Apply(ctx context.Context, next MutationSet) (int, error) {
	var muts []Mutation
	if a.dirty {
		muts = append([]Mutation{{Op: OpClearAll}}, Diff(MutationSet{}, next)...)
		if a.metrics != nil {
			a.metrics.RenderResyncs.Inc()
		}
		a.logger.Info("redrawing map after failed apply", "markers", len(next.Markers))
	} else {
		muts = Diff(a.applied, next)
	}
	if len(muts) == 0 {
		return 0, nil
	}

	for i := range muts {
		if muts[i].Op == OpSetOverlay {
			muts[i].Opacity = a.opacity
		}
	}

	if err := a.m.Apply(ctx, muts); err != nil {
		a.dirty = true
		if a.metrics != nil {
			a.metrics.RenderErrors.Inc()
		}
		return 0, fmt.Errorf("apply %d map mutations: %w", len(muts), err)
	}

	a.applied = MutationSet{Overlay: next.Overlay, Markers: slices.Clone(next.Markers)}
	a.dirty = false
	if a.metrics != nil {
		a.metrics.Renders.Inc()
		for _, m := range muts {
			a.metrics.RenderMutations.WithLabelValues(string(m.Op)).Inc()
		}
	}
	return len(muts), nil
}

// Applied returns the set the map is known to show.
func (a *Applier) Applied() MutationSet {
	return MutationSet{Overlay: a.applied.Overlay, Markers: slices.Clone(a.applied.Markers)}
}

// Dirty reports whether the next Apply will clear and redraw.
func (a *Applier) Dirty() bool { return a.dirty }
