package domain

import "context"

// GeocodingResult is a reverse-geocoded place. PlaceName is the short label
// shown in popups; FormattedAddress is the provider's full text and is used
// when no short name is available.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	PlaceName        string
	FormattedAddress string
	Confidence       float64 // provider relevance in [0,1]
}

// Geocoder resolves a detection's coordinates to the nearest named place.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
