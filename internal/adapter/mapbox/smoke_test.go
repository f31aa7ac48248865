//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/stormslide/internal/config"
	"github.com/couchcryptid/stormslide/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(&config.Config{
		MapboxToken:     token,
		MapboxTimeout:   10 * time.Second,
		MapboxRateLimit: 5,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	// Moore, OK
	result, err := c.ReverseGeocode(context.Background(), 35.3395, -97.4867)
	require.NoError(t, err)

	assert.Contains(t, result.FormattedAddress, "Oklahoma")
	assert.NotEmpty(t, result.PlaceName)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestSmoke_ReverseGeocode_OpenOcean(t *testing.T) {
	c := smokeClient(t)

	// No place or locality in the middle of the Pacific; the client must not error.
	_, err := c.ReverseGeocode(context.Background(), 0, -140)
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	cached := NewCachedGeocoder(smokeClient(t), 10, observability.NewMetricsForTesting())

	r1, err := cached.ReverseGeocode(context.Background(), 32.7767, -96.7970)
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Dallas")

	r2, err := cached.ReverseGeocode(context.Background(), 32.7767, -96.7970)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
