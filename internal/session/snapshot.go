package session

import (
	"time"

	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/playback"
)

// Snapshot is everything a UI needs to draw the player and its readouts.
type Snapshot struct {
	SessionID  string                `json:"session_id"`
	Playback   playback.State        `json:"playback"`
	Frame      *domain.RadarFrame    `json:"frame"`
	Preload    []string              `json:"preload"`
	Timestamps []time.Time           `json:"timestamps"`
	Symbols    []domain.VisualSymbol `json:"symbols"`
	Records    int                   `json:"records"`
	Weather    WeatherView           `json:"weather"`
	Errors     map[string]string     `json:"errors,omitempty"`
	Ready      bool                  `json:"ready"`
}

// WeatherView is the weather readout with display labels resolved.
type WeatherView struct {
	Temperature string    `json:"temperature"`
	Condition   string    `json:"condition"`
	FetchedAt   time.Time `json:"fetched_at,omitzero"`
}

// CurrentSnapshot returns the state as of now.
func (s *Session) CurrentSnapshot() Snapshot {
	state := s.ctrl.State()
	s.mu.RLock()
	tl := s.timeline
	s.mu.RUnlock()
	return s.snapshot(state, tl)
}

func (s *Session) snapshot(state playback.State, tl domain.Timeline) Snapshot {
	s.mu.RLock()
	symbols := append([]domain.VisualSymbol(nil), s.symbols...)
	records, weather, ready := s.records, s.weatherSnap, s.loaded
	s.mu.RUnlock()

	frames := tl.Frames()
	snap := Snapshot{
		SessionID:  s.id,
		Playback:   state,
		Preload:    make([]string, len(frames)),
		Timestamps: make([]time.Time, len(frames)),
		Symbols:    symbols,
		Records:    records,
		Weather: WeatherView{
			Temperature: weather.TemperatureLabel(),
			Condition:   weather.ConditionLabel(),
			FetchedAt:   weather.FetchedAt,
		},
		Ready: ready,
	}
	for i, f := range frames {
		snap.Preload[i] = f.ImageRef
		snap.Timestamps[i] = f.Timestamp
	}
	if f, ok := tl.FrameAt(state.Cursor); ok {
		snap.Frame = &f
	}

	_, radarErr := s.radar.Latest()
	_, detErr := s.detections.Latest()
	_, weatherErr := s.weather.Latest()
	for name, err := range map[string]error{
		endpointRadar:      radarErr,
		endpointDetections: detErr,
		endpointWeather:    weatherErr,
	} {
		if err == nil {
			continue
		}
		if snap.Errors == nil {
			snap.Errors = make(map[string]string)
		}
		snap.Errors[name] = err.Error()
	}
	return snap
}

// Subscribe returns a channel of snapshots, one after every render. A slow
// reader only ever misses intermediate snapshots: the channel holds the most
// recent one. The returned func unsubscribes and closes the channel; the
// channel is also closed by Dispose.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	if s.disposed() {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
