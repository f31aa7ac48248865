// Command validate checks storm API payloads before they are put in front of
// the player. It fetches the detection, radar and weather endpoints through
// the same client the service uses, either from a live API or from a
// directory of recorded fixtures, and reports what would be dropped, hidden
// or shown as unavailable.
//
// Usage:
//
//	go run ./cmd/validate -fixture-dir cmd/validate/testdata/good
//	go run ./cmd/validate -api-url http://localhost:5000
//
// A fixture directory holds tornadoes.json, radar.json and weather.json.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/stormslide/internal/adapter/stormapi"
	"github.com/couchcryptid/stormslide/internal/config"
	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/observability"
	"github.com/couchcryptid/stormslide/internal/playback"
	"github.com/couchcryptid/stormslide/internal/render"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

// fetchedAt pins weather readings so repeated runs print identical reports.
var fetchedAt = time.Date(2025, time.April, 7, 12, 0, 0, 0, time.UTC)

// metrics registers once with the default registry however often run is called.
var metrics = sync.OnceValue(observability.NewMetrics)

// phase tracks pass/fail for a validation phase. Notes are informational.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixtureDir := flag.String("fixture-dir", "", "directory containing tornadoes.json, radar.json and weather.json")
	apiURL := flag.String("api-url", "", "base URL of a running storm data API")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	if (*fixtureDir == "") == (*apiURL == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -fixture-dir or -api-url is required")
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*fixtureDir, *apiURL, *timeout))
}

func run(fixtureDir, apiURL string, timeout time.Duration) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	cfg.UpstreamTimeout = timeout
	cfg.LogLevel, cfg.LogFormat = "warn", "text"

	if fixtureDir != "" {
		srv := httptest.NewServer(fixtureRouter(cfg, fixtureDir))
		defer srv.Close()
		apiURL = srv.URL
	}
	cfg.APIBaseURL = apiURL

	style, err := config.LoadStyleSheet(cfg.StyleFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	client := stormapi.NewClient(cfg, clockwork.NewFakeClockAt(fetchedAt), logger, metrics())

	fmt.Println("=== Storm Data Payload Validation ===")
	fmt.Printf("Source: %s\n\n", apiURL)

	ctx := context.Background()
	detections, symbols, detPhase := validateDetections(ctx, client, style)
	timeline, radarPhase := validateRadar(ctx, client, cfg.OverlayBounds)
	phases := []*phase{
		detPhase,
		radarPhase,
		validateWeather(ctx, client),
		validateRender(ctx, timeline, symbols, cfg.OverlayOpacity, logger),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Detections: %d parsed, %d drawn. Radar frames: %d.\n", len(detections), len(symbols), timeline.Len())

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Printf("  note: %s\n", n)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// fixtureRouter serves recorded payloads on the configured endpoint paths.
func fixtureRouter(cfg *config.Config, dir string) http.Handler {
	r := chi.NewRouter()
	serve := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			f, err := os.Open(filepath.Join(dir, name))
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			defer f.Close()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.Copy(w, f)
		}
	}
	r.Get(cfg.TornadoesPath, serve("tornadoes.json"))
	r.Get(cfg.RadarPath, serve("radar.json"))
	r.Get(cfg.WeatherPath, serve("weather.json"))
	return r
}

// ── Phase 1: Detections ──

func validateDetections(ctx context.Context, client *stormapi.Client, style domain.StyleSheet) ([]domain.DetectionRecord, []domain.VisualSymbol, *phase) {
	p := &phase{name: "Phase 1: Detections"}

	records, err := client.Detections(ctx)
	if err != nil {
		p.errorf("fetch: %v", err)
		return nil, nil, p
	}
	if len(records) == 0 {
		p.notef("no detections in payload")
	}

	classifier := domain.NewClassifier(style)
	var symbols []domain.VisualSymbol
	for i, rec := range records {
		sym, ok := classifier.Classify(rec)
		if !ok {
			p.errorf("record %d: tier %q subtype %q has no symbol and would be hidden", i, rec.Tier, rec.Subtype)
			continue
		}
		symbols = append(symbols, sym)
		if rec.Shear == nil {
			p.notef("record %d: no shear value, popup shows %q", i, sym.Popup)
		}
	}
	return records, symbols, p
}

// ── Phase 2: Radar timeline ──

func validateRadar(ctx context.Context, client *stormapi.Client, bounds domain.GeoBounds) (domain.Timeline, *phase) {
	p := &phase{name: "Phase 2: Radar Timeline"}

	raw, err := client.Radar(ctx)
	if err != nil {
		p.errorf("fetch: %v", err)
		return domain.Timeline{}, p
	}

	tl, warnings := domain.BuildTimeline(raw, bounds)
	for _, w := range warnings {
		p.errorf("dropped frame: %v", w)
	}
	if tl.Empty() {
		p.errorf("no playable frames out of %d", len(raw))
		return tl, p
	}

	frames := tl.Frames()
	images := make(map[string]int, len(frames))
	for i, f := range frames {
		if i > 0 && !f.Timestamp.After(frames[i-1].Timestamp) {
			p.errorf("frame %d: timestamp %s not after %s", i, f.Timestamp, frames[i-1].Timestamp)
		}
		if prev, ok := images[f.ImageRef]; ok {
			p.notef("frame %d reuses image %s from frame %d", i, f.ImageRef, prev)
		}
		images[f.ImageRef] = i
	}
	p.notef("timeline spans %s to %s", frames[0].Timestamp.Format(time.RFC3339), frames[len(frames)-1].Timestamp.Format(time.RFC3339))
	return tl, p
}

// ── Phase 3: Weather ──

func validateWeather(ctx context.Context, client *stormapi.Client) *phase {
	p := &phase{name: "Phase 3: Weather"}

	snap, err := client.Weather(ctx)
	if err != nil {
		p.errorf("fetch: %v", err)
		return p
	}
	if snap.TemperatureLabel() == domain.Unavailable {
		p.errorf("temperature would display as %q", domain.Unavailable)
	}
	if snap.ConditionLabel() == domain.Unavailable {
		p.errorf("condition would display as %q", domain.Unavailable)
	}
	p.notef("readout: %s, %s", snap.TemperatureLabel(), snap.ConditionLabel())
	return p
}

// ── Phase 4: Render ──
// Plays the timeline once through an in-memory map and checks every frame
// lands as the only overlay with all markers present.

func validateRender(ctx context.Context, tl domain.Timeline, symbols []domain.VisualSymbol, opacity float64, logger *slog.Logger) *phase {
	p := &phase{name: "Phase 4: Render Walkthrough"}

	mem := render.NewMemoryMap()
	applier := render.NewApplier(mem, opacity, logger, nil)

	steps := max(tl.Len(), 1)
	for i := range steps {
		state := playback.State{Cursor: i, Frames: tl.Len()}
		if _, err := applier.Apply(ctx, render.Render(state, tl, symbols)); err != nil {
			p.errorf("cursor %d: apply: %v", i, err)
			continue
		}

		layers := mem.Layers()
		if len(layers.Markers) != len(symbols) {
			p.errorf("cursor %d: %d markers on map, want %d", i, len(layers.Markers), len(symbols))
		}
		want, ok := tl.FrameAt(i)
		switch {
		case !ok && layers.Overlay != nil:
			p.errorf("cursor %d: overlay %s shown for empty timeline", i, layers.Overlay.Frame.ImageRef)
		case ok && layers.Overlay == nil:
			p.errorf("cursor %d: no overlay, want %s", i, want.ImageRef)
		case ok && layers.Overlay.Frame.ImageRef != want.ImageRef:
			p.errorf("cursor %d: overlay %s, want %s", i, layers.Overlay.Frame.ImageRef, want.ImageRef)
		}
	}
	return p
}
