// Package domain models radar frames, storm detections and weather readings,
// and the rules that normalize and classify them.
//
// # Data Sources
//
// Three upstream JSON feeds are consumed:
//
//	GET /tornadoes      array of detections from the Level II and Level III radar backends
//	GET /radar          {"forecast": [{"timestamp": ..., "image": ...}, ...]}
//	GET /proxy-weather  AerisWeather-style envelope {"response": [...]}
//
// # Timestamps
//
// Radar timestamps are "ISO-8601-ish": RFC 3339 with or without fractional
// seconds, a space instead of "T", or no zone at all (read as UTC). All-digit
// values are epoch seconds, or milliseconds when longer than 11 digits. A frame
// whose timestamp cannot be parsed is dropped, never coerced to the current time.
//
// # Detections
//
// Records carry latitude/longitude (the radar backends write lat/lon), a
// "source" tier ("Level II" or "Level III"), an optional rotation "type"
// ("TVS", "MESO", or "NONE"), and a shear value that may be null. IDs are
// derived from record content (SHA-256 of tier|subtype|lat|lng|time|shear), so
// an unchanged detection keeps its marker across fetch cycles.
//
// Classification:
//
//	Level II            filled yellow circle, radius 800, fill opacity 0.7
//	Level III + TVS     red triangle, high emphasis
//	Level III + MESO    orange square
//	anything else       not drawn
//
// # Weather
//
// The weather payload is probed in a fixed order (response[0].periods[0],
// response[0].ob, response[0]) for "tempC" and "weather". Anything missing
// resolves to the "unavailable" sentinel rather than an error.
package domain
