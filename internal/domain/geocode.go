package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlaceNames returns a copy of records with PlaceName resolved by
// reverse geocoding. A nil geocoder returns the records unchanged; a failed
// lookup leaves that record's PlaceName empty (graceful degradation).
func EnrichWithPlaceNames(ctx context.Context, records []DetectionRecord, geocoder Geocoder, logger *slog.Logger) []DetectionRecord {
	if geocoder == nil || len(records) == 0 {
		return records
	}

	out := make([]DetectionRecord, len(records))
	copy(out, records)

	for i := range out {
		if ctx.Err() != nil {
			break
		}
		result, err := geocoder.ReverseGeocode(ctx, out[i].Position.Lat, out[i].Position.Lng)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"detection_id", out[i].ID,
				"lat", out[i].Position.Lat,
				"lng", out[i].Position.Lng,
				"error", err,
			)
			continue
		}
		switch {
		case result.PlaceName != "":
			out[i].PlaceName = result.PlaceName
		case result.FormattedAddress != "":
			out[i].PlaceName = result.FormattedAddress
		}
	}
	return out
}
