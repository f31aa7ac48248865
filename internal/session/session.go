// Package session wires fetching, playback and rendering into one map view.
//
// A Session owns a single render goroutine, the only writer to the map.
// Playback changes and data arrivals signal a capacity-1 wake channel, so a
// burst of changes collapses into one render of the latest state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/stormslide/internal/config"
	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/fetch"
	"github.com/couchcryptid/stormslide/internal/observability"
	"github.com/couchcryptid/stormslide/internal/playback"
	"github.com/couchcryptid/stormslide/internal/render"
	"github.com/couchcryptid/stormslide/internal/schedule"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrDisposed is returned by operations on a disposed session.
var ErrDisposed = errors.New("session disposed")

// Source is the upstream storm data API.
type Source interface {
	Detections(ctx context.Context) ([]domain.DetectionRecord, error)
	Radar(ctx context.Context) ([]domain.RawFrame, error)
	Weather(ctx context.Context) (domain.WeatherSnapshot, error)
}

// Deps are the collaborators a session needs. ID, Geocoder and Clock are
// optional; an empty ID gets a random UUID.
type Deps struct {
	ID       string
	Source   Source
	Map      render.Map
	Geocoder domain.Geocoder
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Options are the per-session settings.
type Options struct {
	Transition      time.Duration
	Loop            bool
	Autoplay        bool
	Opacity         float64
	Bounds          domain.GeoBounds
	Style           domain.StyleSheet
	Debounce        time.Duration
	RefreshInterval time.Duration // zero disables periodic refresh
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Transition: 200 * time.Millisecond,
		Loop:       true,
		Autoplay:   true,
		Opacity:    0.8,
		Bounds:     domain.DefaultBounds,
		Style:      domain.DefaultStyleSheet(),
		Debounce:   fetch.DefaultQuietWindow,
	}
}

// OptionsFromConfig builds session options from service configuration.
func OptionsFromConfig(cfg *config.Config, style domain.StyleSheet) Options {
	return Options{
		Transition:      cfg.Transition,
		Loop:            cfg.Loop,
		Autoplay:        cfg.Autoplay,
		Opacity:         cfg.OverlayOpacity,
		Bounds:          cfg.OverlayBounds,
		Style:           style,
		Debounce:        cfg.RefreshDebounce,
		RefreshInterval: cfg.RefreshInterval,
	}
}

const (
	minRenderRetry = 250 * time.Millisecond
	maxRenderRetry = 10 * time.Second
)

// Session is one live map view.
type Session struct {
	id      string
	opts    Options
	source  Source
	geo     domain.Geocoder
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	sched      *schedule.Scheduler
	ctrl       *playback.Controller
	classifier *domain.Classifier
	applier    *render.Applier

	radar      *fetch.Fetcher[[]domain.RawFrame]
	detections *fetch.Fetcher[[]domain.DetectionRecord]
	weather    *fetch.Fetcher[domain.WeatherSnapshot]

	wake       chan struct{}
	renderDone chan struct{}
	bg         sync.WaitGroup

	radarMu sync.Mutex // serializes timeline rebuilds

	mu          sync.RWMutex
	timeline    domain.Timeline
	symbols     []domain.VisualSymbol
	records     int
	weatherSnap domain.WeatherSnapshot
	radarSeq    uint64
	detSeq      uint64
	weatherSeq  uint64
	loaded      bool
	autoplayed  bool
	refreshTick *schedule.Handle
	subs        map[uint64]chan Snapshot
	nextSub     uint64

	disposeOnce sync.Once
}

// New starts a session: the render goroutine, the initial load of all three
// endpoints, and periodic refresh when configured. It returns before the
// initial load completes; CheckReadiness reports when radar data arrived.
func New(ctx context.Context, deps Deps, opts Options) (*Session, error) {
	if deps.Source == nil {
		return nil, errors.New("session: source is required")
	}
	if deps.Map == nil {
		return nil, errors.New("session: map is required")
	}
	if deps.Metrics == nil {
		return nil, errors.New("session: metrics are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Transition < playback.MinSpeed {
		return nil, fmt.Errorf("session: transition %s below minimum %s", opts.Transition, playback.MinSpeed)
	}
	if !opts.Bounds.Valid() {
		return nil, fmt.Errorf("session: invalid overlay bounds %s", opts.Bounds)
	}
	if err := opts.Style.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	id := deps.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := deps.Logger.With("session", id)
	sched := schedule.New(deps.Clock)

	s := &Session{
		id:         id,
		opts:       opts,
		source:     deps.Source,
		geo:        deps.Geocoder,
		logger:     logger,
		metrics:    deps.Metrics,
		sched:      sched,
		classifier: domain.NewClassifier(opts.Style),
		applier:    render.NewApplier(deps.Map, opts.Opacity, logger, deps.Metrics),
		wake:       make(chan struct{}, 1),
		renderDone: make(chan struct{}),
		subs:       make(map[uint64]chan Snapshot),
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.ctrl = playback.New(sched, playback.Options{Speed: opts.Transition, Loop: opts.Loop}, func(playback.State) {
		s.signal()
	})

	fetchOpts := fetch.Options{Quiet: opts.Debounce, Clock: sched.Clock(), Logger: logger, Metrics: deps.Metrics}
	s.radar = fetch.New(endpointRadar, deps.Source.Radar, fetchOpts)
	s.detections = fetch.New(endpointDetections, s.fetchDetections, fetchOpts)
	s.weather = fetch.New(endpointWeather, deps.Source.Weather, fetchOpts)

	s.metrics.ActiveSessions.Inc()
	go s.renderLoop()

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		next := opts.RefreshInterval
		if err := s.Refresh(s.ctx); err != nil {
			if s.disposed() {
				return
			}
			next = s.retryDelay(next)
			s.logger.Warn("initial load incomplete", "error", err, "retry_in", next)
		}
		s.scheduleRefresh(next)
	}()

	logger.Info("session started",
		"transition", opts.Transition,
		"loop", opts.Loop,
		"autoplay", opts.Autoplay,
		"refresh_interval", opts.RefreshInterval,
	)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Dispose stops playback, cancels every pending timer, waits for the render
// goroutine and closes all subscriber channels. It is safe to call more than once.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.cancel()
		s.ctrl.Stop()
		s.sched.Close()
		<-s.renderDone
		s.bg.Wait()

		s.mu.Lock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
		s.mu.Unlock()

		s.metrics.ActiveSessions.Dec()
		s.logger.Info("session disposed")
	})
}

func (s *Session) disposed() bool { return s.ctx.Err() != nil }

// CheckReadiness reports ready once the first radar fetch has succeeded,
// including one that returned no frames.
func (s *Session) CheckReadiness(_ context.Context) error {
	if s.disposed() {
		return ErrDisposed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return errors.New("radar timeline not loaded yet")
	}
	return nil
}

// signal wakes the render goroutine. A pending wake absorbs this one.
func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) renderLoop() {
	defer close(s.renderDone)
	retry := minRenderRetry
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		if err := s.renderOnce(); err != nil {
			s.logger.Error("render failed, will redraw", "error", err, "retry_in", retry)
			s.sched.After(retry, s.signal)
			retry = nextBackoff(retry, maxRenderRetry)
			continue
		}
		retry = minRenderRetry
	}
}

func (s *Session) renderOnce() error {
	state := s.ctrl.State()
	s.mu.RLock()
	tl, symbols := s.timeline, s.symbols
	s.mu.RUnlock()

	s.metrics.PlaybackCursor.Set(float64(state.Cursor))
	set := render.Render(state, tl, symbols)
	n, err := s.applier.Apply(s.ctx, set)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug("map updated", "mutations", n, "cursor", state.Cursor, "mode", state.Mode)
	}
	s.publish(s.snapshot(state, tl))
	return nil
}
