package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (g *countingGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	g.calls++
	r := g.result
	r.Lat, r.Lon = lat, lon
	return r, g.err
}

func TestCachedGeocoder_HitAndMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Moore", FormattedAddress: "Moore, Oklahoma"}}
	metrics := observability.NewMetricsForTesting()
	c := NewCachedGeocoder(inner, 10, metrics)
	ctx := context.Background()

	r1, err := c.ReverseGeocode(ctx, 35.3395, -97.4867)
	require.NoError(t, err)
	r2, err := c.ReverseGeocode(ctx, 35.3401, -97.4870) // same ~1 km cell
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("miss")))
}

func TestCachedGeocoder_DoesNotCacheFailures(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("timeout")}
	c := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, err := c.ReverseGeocode(context.Background(), 35, -97)
	require.Error(t, err)
	inner.err = nil
	_, err = c.ReverseGeocode(context.Background(), 35, -97)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, c.Len(), "empty result is not cached either")
}

func TestCachedGeocoder_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "somewhere"}}
	c := NewCachedGeocoder(inner, 2, observability.NewMetricsForTesting())
	ctx := context.Background()

	for _, lat := range []float64{30, 31, 30, 32} { // 31 is least recent when 32 arrives
		_, err := c.ReverseGeocode(ctx, lat, -97)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 2, c.Len())

	_, err := c.ReverseGeocode(ctx, 30, -97)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls, "30 survived eviction")

	_, err = c.ReverseGeocode(ctx, 31, -97)
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls, "31 was evicted")
}
