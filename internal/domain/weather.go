package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type jsonObject = map[string]json.RawMessage

// weatherProbes are tried in priority order against response[0]: a forecast
// period, an observation, and finally the element itself.
var weatherProbes = []struct {
	name  string
	probe func(jsonObject) (jsonObject, bool)
}{
	{"response[0].periods[0]", func(o jsonObject) (jsonObject, bool) { return firstObject(o["periods"]) }},
	{"response[0].ob", func(o jsonObject) (jsonObject, bool) { return asObject(o["ob"]) }},
	{"response[0]", func(o jsonObject) (jsonObject, bool) { return o, true }},
}

// ParseWeather reads the proxied weather payload. It never fails: fields that
// cannot be located resolve to nil (rendered as Unavailable) and the mismatch
// is reported as a *ShapeMismatchError warning.
func ParseWeather(payload []byte, fetchedAt time.Time) (WeatherSnapshot, []error) {
	snap := WeatherSnapshot{FetchedAt: fetchedAt}

	root, ok := asObject(payload)
	if !ok {
		return snap, []error{&ShapeMismatchError{Payload: "weather", Reason: "not a JSON object"}}
	}

	// Single-location endpoints return response as an object rather than a list.
	first, ok := firstObject(root["response"])
	if !ok {
		first, ok = asObject(root["response"])
	}
	if !ok {
		return snap, []error{&ShapeMismatchError{Payload: "weather", Reason: "missing response[0]"}}
	}

	for _, p := range weatherProbes {
		obj, ok := p.probe(first)
		if !ok {
			continue
		}
		temp, cond := readTemperature(obj), readString(obj["weather"])
		if temp == nil && cond == nil {
			continue
		}
		snap.TemperatureC = temp
		snap.Condition = cond
		return snap, nil
	}

	return snap, []error{&ShapeMismatchError{Payload: "weather", Reason: "no temperature or condition in any known shape"}}
}

// readTemperature prefers the instantaneous tempC and falls back to the
// forecast-period average.
func readTemperature(obj jsonObject) *float64 {
	for _, key := range []string{"tempC", "avgTempC"} {
		if v := readNumber(obj[key]); v != nil {
			return v
		}
	}
	return nil
}

func readNumber(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	// Some proxies quote numeric fields.
	if s := readString(raw); s != nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64); err == nil {
			return &v
		}
	}
	return nil
}

func readString(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func asObject(raw json.RawMessage) (jsonObject, bool) {
	if isNull(raw) {
		return nil, false
	}
	var obj jsonObject
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func firstObject(raw json.RawMessage) (jsonObject, bool) {
	if isNull(raw) {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return nil, false
	}
	return asObject(list[0])
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
