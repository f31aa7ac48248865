package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/stormslide/internal/playback"
	"github.com/couchcryptid/stormslide/internal/session"
)

const maxRequestBody = 1 << 16

// seekRequest selects a frame by index or by time. With a phase it is one
// step of a slider drag.
type seekRequest struct {
	Index *int    `json:"index"`
	Time  *string `json:"time"`
	Phase string  `json:"phase"`
}

type speedRequest struct {
	Transition string `json:"transition"`
}

type loopRequest struct {
	Loop *bool `json:"loop"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.player.CurrentSnapshot())
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.mapView.Layers())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !s.decode(w, r, &req) {
		return
	}

	var (
		state playback.State
		err   error
	)
	switch {
	case req.Phase != "":
		state, err = s.player.Scrub(session.ScrubPhase(req.Phase), req.Index)
	case req.Time != nil:
		t, perr := time.Parse(time.RFC3339, *req.Time)
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid time %q: want RFC3339", *req.Time))
			return
		}
		state, err = s.player.SeekTime(t)
	case req.Index != nil:
		state, err = s.player.OnSeek(*req.Index)
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("seek needs an index or a time"))
		return
	}
	s.writeState(w, state, err)
}

func (s *Server) handleStateChange(fn func() (playback.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state, err := fn()
		s.writeState(w, state, err)
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := time.ParseDuration(req.Transition)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid transition %q", req.Transition))
		return
	}
	state, err := s.player.SetSpeed(d)
	s.writeState(w, state, err)
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	var req loopRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Loop == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("loop is required"))
		return
	}
	state, err := s.player.SetLoop(*req.Loop)
	s.writeState(w, state, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.player.Refresh(r.Context()); err != nil {
		if errors.Is(err, session.ErrDisposed) {
			s.writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		s.logger.Warn("refresh incomplete", "error", err)
		sharedobs.WriteJSON(w, http.StatusBadGateway, struct {
			Error    string           `json:"error"`
			Snapshot session.Snapshot `json:"snapshot"`
		}{err.Error(), s.player.CurrentSnapshot()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.player.CurrentSnapshot())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeState(w http.ResponseWriter, state playback.State, err error) {
	switch {
	case err == nil:
		sharedobs.WriteJSON(w, http.StatusOK, state)
	case errors.Is(err, session.ErrDisposed):
		s.writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, session.ErrNoFrame):
		s.writeError(w, http.StatusNotFound, err)
	default:
		s.writeError(w, http.StatusBadRequest, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, errorResponse{Error: err.Error()})
}
