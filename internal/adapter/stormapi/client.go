// Package stormapi reads the three upstream storm feeds: detections, radar
// frames and current weather.
package stormapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/stormslide/internal/config"
	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Endpoint names used in logs, metrics and TransportErrors.
const (
	EndpointDetections = "detections"
	EndpointRadar      = "radar"
	EndpointWeather    = "weather"
)

// maxBody caps how much of an upstream response is read.
const maxBody = 16 << 20

// Client talks to the storm data API over HTTP.
type Client struct {
	baseURL    string
	paths      map[string]string
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a client for the configured upstream API.
func NewClient(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: cfg.APIBaseURL,
		paths: map[string]string{
			EndpointDetections: cfg.TornadoesPath,
			EndpointRadar:      cfg.RadarPath,
			EndpointWeather:    cfg.WeatherPath,
		},
		httpClient: &http.Client{
			Timeout: cfg.UpstreamTimeout,
		},
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Detections fetches and normalizes the detection list. Malformed records are
// dropped and logged; a payload that is not a JSON array fails the fetch.
func (c *Client) Detections(ctx context.Context) ([]domain.DetectionRecord, error) {
	body, err := c.get(ctx, EndpointDetections)
	if err != nil {
		return nil, err
	}

	records, warnings, err := domain.ParseDetections(body)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: EndpointDetections, Status: http.StatusOK, Err: err}
	}
	c.logDropped(EndpointDetections, "record", warnings)
	if len(records) == 0 {
		c.logger.Info("no detections", "endpoint", EndpointDetections, "reason", domain.ErrEmptyData)
	}
	return records, nil
}

// radarEnvelope is the /radar payload. Elements stay raw so one bad entry
// cannot fail the whole list.
type radarEnvelope struct {
	Forecast []json.RawMessage `json:"forecast"`
}

type radarElement struct {
	Timestamp json.RawMessage   `json:"timestamp"`
	Time      json.RawMessage   `json:"time"`
	Image     json.RawMessage   `json:"image"`
	Bounds    *domain.GeoBounds `json:"bounds"`
}

// Radar fetches the raw frame list. Timestamps are not validated here; an
// element that cannot be decoded becomes a frame with an empty timestamp so
// timeline building reports it with its index.
func (c *Client) Radar(ctx context.Context) ([]domain.RawFrame, error) {
	body, err := c.get(ctx, EndpointRadar)
	if err != nil {
		return nil, err
	}

	var env radarEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &domain.TransportError{Endpoint: EndpointRadar, Status: http.StatusOK, Err: fmt.Errorf("decode radar payload: %w", err)}
	}

	frames := make([]domain.RawFrame, len(env.Forecast))
	for i, raw := range env.Forecast {
		var el radarElement
		if err := json.Unmarshal(raw, &el); err != nil {
			continue
		}
		ts := el.Timestamp
		if isEmptyJSON(ts) {
			ts = el.Time
		}
		frames[i] = domain.RawFrame{
			Timestamp: jsonScalar(ts),
			ImageRef:  jsonScalar(el.Image),
			Bounds:    el.Bounds,
		}
	}
	return frames, nil
}

// Weather fetches the current conditions. Shape mismatches degrade to the
// unavailable sentinel and are only logged.
func (c *Client) Weather(ctx context.Context) (domain.WeatherSnapshot, error) {
	body, err := c.get(ctx, EndpointWeather)
	if err != nil {
		return domain.WeatherSnapshot{}, err
	}

	snap, warnings := domain.ParseWeather(body, c.clock.Now())
	for _, w := range warnings {
		c.logger.Warn("weather payload fallback", "endpoint", EndpointWeather, "error", w)
	}
	return snap, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.paths[endpoint], nil)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.TransportError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("upstream error: %s", bytes.TrimSpace(body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func (c *Client) logDropped(endpoint, kind string, warnings []error) {
	for _, w := range warnings {
		attrs := []any{"endpoint", endpoint, "error", w}
		var pe *domain.ParseError
		if errors.As(w, &pe) {
			attrs = append(attrs, "index", pe.Index, "field", pe.Field)
		}
		c.logger.Warn("dropped malformed "+kind, attrs...)
	}
	if c.metrics != nil && len(warnings) > 0 {
		c.metrics.DroppedItems.WithLabelValues(kind).Add(float64(len(warnings)))
	}
}

// jsonScalar renders a JSON string or number as plain text. Numbers keep
// their literal digits so epoch timestamps survive.
func jsonScalar(raw json.RawMessage) string {
	if isEmptyJSON(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
