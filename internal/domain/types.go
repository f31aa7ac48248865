package domain

import (
	"fmt"
	"time"
)

// Tier is the radar product level a detection came from.
type Tier string

const (
	TierLevelII  Tier = "Level II"
	TierLevelIII Tier = "Level III"
)

// Subtype distinguishes rotation signatures within a tier.
type Subtype string

const (
	SubtypeNone Subtype = ""
	SubtypeTVS  Subtype = "TVS"
	SubtypeMESO Subtype = "MESO"
)

// GeoPoint is a WGS-84 latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within WGS-84 ranges.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// GeoBounds is the south-west / north-east box an image overlay is stretched over.
type GeoBounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// DefaultBounds covers the contiguous United States.
var DefaultBounds = GeoBounds{South: 25, West: -125, North: 50, East: -66}

// Valid reports whether the box is non-degenerate and inside WGS-84 ranges.
func (b GeoBounds) Valid() bool {
	return b.South < b.North && b.West < b.East &&
		GeoPoint{Lat: b.South, Lng: b.West}.Valid() &&
		GeoPoint{Lat: b.North, Lng: b.East}.Valid()
}

func (b GeoBounds) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// DetectionRecord is one storm signature from the /tornadoes feed. Records are
// replaced wholesale on every fetch cycle and never mutated after publication.
type DetectionRecord struct {
	ID         string     `json:"id"`
	Position   GeoPoint   `json:"position"`
	Tier       Tier       `json:"tier"`
	Subtype    Subtype    `json:"subtype,omitempty"`
	Shear      *float64   `json:"shear"`
	ObservedAt *time.Time `json:"observed_at"`

	// Reverse-geocoding enrichment, empty when disabled or failed.
	PlaceName string `json:"place_name,omitempty"`
}

// RawFrame is a radar frame as delivered by the /radar feed, before validation.
type RawFrame struct {
	Timestamp string     `json:"timestamp"`
	ImageRef  string     `json:"image"`
	Bounds    *GeoBounds `json:"bounds,omitempty"`
}

// RadarFrame is a validated, timestamped radar image reference.
type RadarFrame struct {
	Timestamp time.Time `json:"timestamp"`
	ImageRef  string    `json:"image"`
	Bounds    GeoBounds `json:"bounds"`
}

// Unavailable is the display sentinel for weather fields that could not be read.
const Unavailable = "unavailable"

// WeatherSnapshot is the single current weather reading. No history is kept.
type WeatherSnapshot struct {
	TemperatureC *float64  `json:"temperature_c"`
	Condition    *string   `json:"condition"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// TemperatureLabel renders the temperature as e.g. "21°C", or the sentinel.
func (w WeatherSnapshot) TemperatureLabel() string {
	if w.TemperatureC == nil {
		return Unavailable
	}
	return formatNumber(*w.TemperatureC) + "°C"
}

// ConditionLabel returns the condition text, or the sentinel.
func (w WeatherSnapshot) ConditionLabel() string {
	if w.Condition == nil || *w.Condition == "" {
		return Unavailable
	}
	return *w.Condition
}
