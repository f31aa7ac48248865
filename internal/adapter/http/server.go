package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/stormslide/internal/playback"
	"github.com/couchcryptid/stormslide/internal/render"
	"github.com/couchcryptid/stormslide/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Player is the session surface the control API drives.
type Player interface {
	CurrentSnapshot() session.Snapshot
	OnSeek(i int) (playback.State, error)
	SeekTime(t time.Time) (playback.State, error)
	Scrub(phase session.ScrubPhase, index *int) (playback.State, error)
	OnPlayToggle() (playback.State, error)
	Play() (playback.State, error)
	Pause() (playback.State, error)
	SetSpeed(d time.Duration) (playback.State, error)
	SetLoop(loop bool) (playback.State, error)
	Refresh(ctx context.Context) error
	Subscribe() (<-chan session.Snapshot, func())
}

// MapView exposes the layers currently applied to a map.
type MapView interface {
	Layers() render.Layers
}

// Server exposes health, readiness and metrics endpoints plus the playback
// control API under /api/v1.
type Server struct {
	httpServer *http.Server
	player     Player
	mapView    MapView
	logger     *slog.Logger
}

// NewServer creates an HTTP server. mapView may be nil, in which case
// /api/v1/map is not served.
func NewServer(addr string, player Player, mapView MapView, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		player:  player,
		mapView: mapView,
		logger:  logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))
			r.Get("/state", s.handleState)
			r.Post("/seek", s.handleSeek)
			r.Post("/play-toggle", s.handleStateChange(player.OnPlayToggle))
			r.Post("/play", s.handleStateChange(player.Play))
			r.Post("/pause", s.handleStateChange(player.Pause))
			r.Post("/speed", s.handleSpeed)
			r.Post("/loop", s.handleLoop)
			r.Post("/refresh", s.handleRefresh)
			if mapView != nil {
				r.Get("/map", s.handleMap)
			}
		})
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
