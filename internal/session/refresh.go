package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/fetch"
)

// Endpoint names, shared with the upstream client's metrics labels.
const (
	endpointDetections = "detections"
	endpointRadar      = "radar"
	endpointWeather    = "weather"
)

var nextBackoff = retry.NextBackoff

// Refresh refreshes all three endpoints concurrently, subject to each
// fetcher's debounce window, and applies whatever arrived. Failed endpoints
// keep their previous data; their errors are joined in the result.
func (s *Session) Refresh(ctx context.Context) error {
	if s.disposed() {
		return ErrDisposed
	}
	return s.refresh(ctx, false)
}

// ForceRefresh is Refresh without the debounce window.
func (s *Session) ForceRefresh(ctx context.Context) error {
	if s.disposed() {
		return ErrDisposed
	}
	return s.refresh(ctx, true)
}

func (s *Session) refresh(ctx context.Context, force bool) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	run(func() error {
		snap, err := pick(s.radar, force)(ctx)
		s.applyRadar(snap)
		return err
	})
	run(func() error {
		snap, err := pick(s.detections, force)(ctx)
		s.applyDetections(snap)
		return err
	})
	run(func() error {
		snap, err := pick(s.weather, force)(ctx)
		s.applyWeather(snap)
		return err
	})
	wg.Wait()
	return errors.Join(errs...)
}

func pick[T any](f *fetch.Fetcher[T], force bool) func(context.Context) (fetch.Snapshot[T], error) {
	if force {
		return f.ForceRefresh
	}
	return f.Refresh
}

// scheduleRefresh arms the next periodic refresh.
func (s *Session) scheduleRefresh(delay time.Duration) {
	if s.opts.RefreshInterval <= 0 || s.disposed() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTick.Cancel()
	s.refreshTick = s.sched.After(delay, func() { s.periodicRefresh(delay) })
}

// periodicRefresh refreshes and re-arms. After a failure the delay backs off
// from twice the debounce window up to the refresh interval.
func (s *Session) periodicRefresh(prev time.Duration) {
	next := s.opts.RefreshInterval
	if err := s.Refresh(s.ctx); err != nil {
		if s.disposed() {
			return
		}
		next = s.retryDelay(prev)
		s.logger.Warn("periodic refresh failed", "error", err, "retry_in", next)
	}
	s.scheduleRefresh(next)
}

func (s *Session) retryDelay(prev time.Duration) time.Duration {
	if prev >= s.opts.RefreshInterval {
		return min(2*s.opts.Debounce, s.opts.RefreshInterval)
	}
	return nextBackoff(prev, s.opts.RefreshInterval)
}

func (s *Session) fetchDetections(ctx context.Context) ([]domain.DetectionRecord, error) {
	records, err := s.source.Detections(ctx)
	if err != nil {
		return nil, err
	}
	return domain.EnrichWithPlaceNames(ctx, records, s.geo, s.logger), nil
}

// stale reports whether seq is not newer than the applied one, counting a
// result that is strictly older.
func (s *Session) stale(endpoint string, seq, applied uint64) bool {
	if seq < applied {
		s.metrics.StaleResults.WithLabelValues(endpoint).Inc()
		s.logger.Debug("discarding stale result", "endpoint", endpoint, "seq", seq, "applied_seq", applied)
	}
	return seq <= applied
}

// applyRadar rebuilds the timeline from a radar snapshot. The cursor stays on
// the frame nearest at or before the previously shown timestamp.
func (s *Session) applyRadar(snap fetch.Snapshot[[]domain.RawFrame]) {
	if !snap.Valid() || s.disposed() {
		return
	}
	s.radarMu.Lock()
	defer s.radarMu.Unlock()

	s.mu.Lock()
	if s.stale(endpointRadar, snap.Seq, s.radarSeq) {
		s.mu.Unlock()
		return
	}
	tl, warnings := domain.BuildTimeline(snap.Value, s.opts.Bounds)
	state := s.ctrl.State()
	cursor := 0
	if cur, ok := s.timeline.FrameAt(state.Cursor); ok {
		if i, found := tl.NearestIndexAtOrBefore(cur.Timestamp); found {
			cursor = i
		}
	}
	s.timeline = tl
	s.radarSeq = snap.Seq
	s.loaded = true
	autoplay := s.opts.Autoplay && !s.autoplayed && !tl.Empty()
	if autoplay {
		s.autoplayed = true
	}
	s.mu.Unlock()

	for _, w := range warnings {
		s.logger.Warn("dropping radar frame", "error", w)
	}
	if tl.Empty() {
		s.logger.Info("radar timeline empty", "reason", domain.ErrEmptyData, "seq", snap.Seq)
	}
	s.metrics.TimelineFrames.Set(float64(tl.Len()))

	s.ctrl.Rebuild(tl.Len(), cursor)
	if autoplay {
		s.ctrl.Play()
	}
	s.logger.Info("timeline rebuilt", "frames", tl.Len(), "dropped", len(warnings), "cursor", cursor, "seq", snap.Seq)
}

func (s *Session) applyDetections(snap fetch.Snapshot[[]domain.DetectionRecord]) {
	if !snap.Valid() || s.disposed() {
		return
	}
	symbols := s.classifier.ClassifyAll(snap.Value)

	s.mu.Lock()
	if s.stale(endpointDetections, snap.Seq, s.detSeq) {
		s.mu.Unlock()
		return
	}
	s.symbols = symbols
	s.records = len(snap.Value)
	s.detSeq = snap.Seq
	s.mu.Unlock()

	s.metrics.Detections.Set(float64(len(symbols)))
	s.logger.Info("detections updated", "records", len(snap.Value), "drawn", len(symbols), "seq", snap.Seq)
	s.signal()
}

func (s *Session) applyWeather(snap fetch.Snapshot[domain.WeatherSnapshot]) {
	if !snap.Valid() || s.disposed() {
		return
	}
	s.mu.Lock()
	if s.stale(endpointWeather, snap.Seq, s.weatherSeq) {
		s.mu.Unlock()
		return
	}
	s.weatherSnap = snap.Value
	s.weatherSeq = snap.Seq
	s.mu.Unlock()
	s.signal()
}
