package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// rawDetection is one element of the /tornadoes array. Both the documented
// latitude/longitude keys and the lat/lon keys written by the radar backends
// are accepted.
type rawDetection struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Source     string   `json:"source"`
	Type       string   `json:"type"`
	Shear      *float64 `json:"shear"`
	Time       string   `json:"time"`
	ObservedAt string   `json:"observed_at"`
}

var errMissingCoordinates = errors.New("missing coordinates")

// ParseDetections decodes a /tornadoes payload. Only a payload that is not a
// JSON array is an error; individual malformed records are dropped and
// reported as *ParseError warnings.
func ParseDetections(payload []byte) ([]DetectionRecord, []error, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, nil, fmt.Errorf("parse detections: %w", err)
	}

	var warnings []error
	records := make([]DetectionRecord, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		rec, err := parseDetection(item)
		if err != nil {
			warnings = append(warnings, &ParseError{Kind: "record", Index: i, Field: "record", Value: truncate(string(item), 80), Err: err})
			continue
		}
		// Identical records share an ID; the last one wins.
		if j, ok := seen[rec.ID]; ok {
			records[j] = rec
			continue
		}
		seen[rec.ID] = len(records)
		records = append(records, rec)
	}
	return records, warnings, nil
}

func parseDetection(item json.RawMessage) (DetectionRecord, error) {
	var raw rawDetection
	if err := json.Unmarshal(item, &raw); err != nil {
		return DetectionRecord{}, err
	}

	lat, lng := firstSet(raw.Latitude, raw.Lat), firstSet(raw.Longitude, raw.Lon)
	if lat == nil || lng == nil {
		return DetectionRecord{}, errMissingCoordinates
	}
	pos := GeoPoint{Lat: *lat, Lng: *lng}
	if !pos.Valid() {
		return DetectionRecord{}, fmt.Errorf("coordinates out of range: %g,%g", pos.Lat, pos.Lng)
	}

	timeStr := raw.ObservedAt
	if timeStr == "" {
		timeStr = raw.Time
	}
	var observedAt *time.Time
	if t, err := ParseTimestamp(timeStr); err == nil {
		observedAt = &t
	}

	tier := normalizeTier(raw.Source)
	subtype := normalizeSubtype(raw.Type)

	return DetectionRecord{
		ID:         generateID(tier, subtype, pos, timeStr, raw.Shear),
		Position:   pos,
		Tier:       tier,
		Subtype:    subtype,
		Shear:      raw.Shear,
		ObservedAt: observedAt,
	}, nil
}

func firstSet(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// normalizeTier canonicalizes the known tiers case-insensitively. Unknown tiers
// are kept verbatim so the classifier can drop them.
func normalizeTier(value string) Tier {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "level ii":
		return TierLevelII
	case "level iii":
		return TierLevelIII
	default:
		return Tier(value)
	}
}

// normalizeSubtype maps the feed's type field. "NONE" and empty both mean no
// rotation signature.
func normalizeSubtype(value string) Subtype {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "", "NONE":
		return SubtypeNone
	default:
		return Subtype(value)
	}
}

// generateID derives a stable ID from a record's content so the same detection
// keeps its marker identity across fetch cycles.
func generateID(tier Tier, subtype Subtype, pos GeoPoint, timeStr string, shear *float64) string {
	shearStr := "null"
	if shear != nil {
		shearStr = formatNumber(*shear)
	}
	input := fmt.Sprintf("%s|%s|%.5f|%.5f|%s|%s", tier, subtype, pos.Lat, pos.Lng, timeStr, shearStr)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])

	prefix := "det"
	switch {
	case subtype != SubtypeNone:
		prefix = strings.ToLower(string(subtype))
	case tier == TierLevelII:
		prefix = "l2"
	}
	return prefix + "-" + short
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
