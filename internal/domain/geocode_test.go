package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	results map[GeoPoint]GeocodingResult
	err     error
	calls   int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (GeocodingResult, error) {
	m.calls++
	if m.err != nil {
		return GeocodingResult{}, m.err
	}
	return m.results[GeoPoint{Lat: lat, Lng: lon}], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichWithPlaceNames_NilGeocoder(t *testing.T) {
	records := []DetectionRecord{{ID: "a", Position: GeoPoint{Lat: 30, Lng: -84}}}

	result := EnrichWithPlaceNames(context.Background(), records, nil, discardLogger())

	assert.Equal(t, records, result)
}

func TestEnrichWithPlaceNames(t *testing.T) {
	austin := GeoPoint{Lat: 30.2672, Lng: -97.7431}
	rural := GeoPoint{Lat: 31.5, Lng: -99.1}
	geo := &mockGeocoder{results: map[GeoPoint]GeocodingResult{
		austin: {PlaceName: "Austin", FormattedAddress: "Austin, Travis County, Texas"},
		rural:  {FormattedAddress: "Mills County, Texas"},
	}}
	records := []DetectionRecord{
		{ID: "a", Position: austin},
		{ID: "b", Position: rural},
		{ID: "c", Position: GeoPoint{Lat: 40, Lng: -100}},
	}

	result := EnrichWithPlaceNames(context.Background(), records, geo, discardLogger())

	require.Len(t, result, 3)
	assert.Equal(t, "Austin", result[0].PlaceName)
	assert.Equal(t, "Mills County, Texas", result[1].PlaceName)
	assert.Empty(t, result[2].PlaceName)
	assert.Equal(t, 3, geo.calls)
	assert.Empty(t, records[0].PlaceName, "input slice must not be modified")
}

func TestEnrichWithPlaceNames_Error_GracefulDegradation(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("rate limited")}
	records := []DetectionRecord{
		{ID: "a", Position: GeoPoint{Lat: 30, Lng: -84}},
		{ID: "b", Position: GeoPoint{Lat: 31, Lng: -85}},
	}

	result := EnrichWithPlaceNames(context.Background(), records, geo, discardLogger())

	require.Len(t, result, 2)
	assert.Empty(t, result[0].PlaceName)
	assert.Equal(t, GeoPoint{Lat: 31, Lng: -85}, result[1].Position)
	assert.Equal(t, 2, geo.calls)
}

func TestEnrichWithPlaceNames_CancelledContext(t *testing.T) {
	geo := &mockGeocoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := EnrichWithPlaceNames(ctx, []DetectionRecord{{ID: "a"}, {ID: "b"}}, geo, discardLogger())

	assert.Len(t, result, 2)
	assert.Equal(t, 0, geo.calls)
}
