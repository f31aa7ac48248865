package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetections(t *testing.T) {
	t.Run("documented shape", func(t *testing.T) {
		payload := []byte(`[
			{"latitude":30.44,"longitude":-84.28,"source":"Level II","shear":45.5},
			{"latitude":30.50,"longitude":-84.10,"source":"Level III","type":"TVS","shear":72},
			{"latitude":30.61,"longitude":-84.02,"source":"Level III","type":"MESO","shear":null}
		]`)

		records, warnings, err := ParseDetections(payload)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		require.Len(t, records, 3)

		assert.Equal(t, TierLevelII, records[0].Tier)
		assert.Equal(t, SubtypeNone, records[0].Subtype)
		assert.Equal(t, GeoPoint{Lat: 30.44, Lng: -84.28}, records[0].Position)
		require.NotNil(t, records[0].Shear)
		assert.Equal(t, 45.5, *records[0].Shear)
		assert.True(t, strings.HasPrefix(records[0].ID, "l2-"))

		assert.Equal(t, TierLevelIII, records[1].Tier)
		assert.Equal(t, SubtypeTVS, records[1].Subtype)
		assert.True(t, strings.HasPrefix(records[1].ID, "tvs-"))

		assert.Equal(t, SubtypeMESO, records[2].Subtype)
		assert.Nil(t, records[2].Shear)
	})

	t.Run("backend aliases", func(t *testing.T) {
		payload := []byte(`[{"lat":35.1,"lon":-97.4,"source":"level iii","type":"none","shear":12,"time":"2024-04-26T15:10:00Z"}]`)

		records, warnings, err := ParseDetections(payload)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		require.Len(t, records, 1)

		assert.Equal(t, GeoPoint{Lat: 35.1, Lng: -97.4}, records[0].Position)
		assert.Equal(t, TierLevelIII, records[0].Tier)
		assert.Equal(t, SubtypeNone, records[0].Subtype)
		require.NotNil(t, records[0].ObservedAt)
		assert.Equal(t, time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC), *records[0].ObservedAt)
	})

	t.Run("unknown time is null", func(t *testing.T) {
		records, _, err := ParseDetections([]byte(`[{"lat":35,"lon":-97,"source":"Level II","time":"Unknown"}]`))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Nil(t, records[0].ObservedAt)
	})

	t.Run("malformed records are dropped, batch continues", func(t *testing.T) {
		payload := []byte(`[
			{"source":"Level II","shear":10},
			{"latitude":"north","longitude":-84,"source":"Level II"},
			{"latitude":91,"longitude":-84,"source":"Level II"},
			null,
			{"latitude":30,"longitude":-84,"source":"Level II","shear":3}
		]`)

		records, warnings, err := ParseDetections(payload)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 3.0, *records[0].Shear)
		require.Len(t, warnings, 4)

		var pe *ParseError
		require.True(t, errors.As(warnings[0], &pe))
		assert.Equal(t, "record", pe.Kind)
		assert.Equal(t, 0, pe.Index)
		assert.ErrorIs(t, warnings[0], errMissingCoordinates)
	})

	t.Run("unknown tier is kept for the classifier to drop", func(t *testing.T) {
		records, warnings, err := ParseDetections([]byte(`[{"latitude":30,"longitude":-84,"source":"Level I"}]`))
		require.NoError(t, err)
		assert.Empty(t, warnings)
		require.Len(t, records, 1)
		assert.Equal(t, Tier("Level I"), records[0].Tier)
	})

	t.Run("identical records collapse", func(t *testing.T) {
		rec := `{"latitude":30,"longitude":-84,"source":"Level II","shear":5}`
		records, _, err := ParseDetections([]byte("[" + rec + "," + rec + "]"))
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("not an array", func(t *testing.T) {
		_, _, err := ParseDetections([]byte(`{"error":"Failed to fetch Level II radar data"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse detections")
	})

	t.Run("empty array", func(t *testing.T) {
		records, warnings, err := ParseDetections([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Empty(t, warnings)
	})
}

func TestGenerateID(t *testing.T) {
	shear := 42.0
	pos := GeoPoint{Lat: 30.4383, Lng: -84.2807}

	t.Run("deterministic", func(t *testing.T) {
		id1 := generateID(TierLevelIII, SubtypeTVS, pos, "", &shear)
		id2 := generateID(TierLevelIII, SubtypeTVS, pos, "", &shear)
		assert.Equal(t, id1, id2)
	})

	t.Run("different inputs produce different IDs", func(t *testing.T) {
		id1 := generateID(TierLevelIII, SubtypeTVS, pos, "", &shear)
		id2 := generateID(TierLevelIII, SubtypeMESO, pos, "", &shear)
		id3 := generateID(TierLevelIII, SubtypeTVS, pos, "", nil)
		assert.NotEqual(t, id1, id2)
		assert.NotEqual(t, id1, id3)
	})

	t.Run("prefixes", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(generateID(TierLevelIII, SubtypeMESO, pos, "", nil), "meso-"))
		assert.True(t, strings.HasPrefix(generateID(TierLevelII, SubtypeNone, pos, "", nil), "l2-"))
		assert.True(t, strings.HasPrefix(generateID("Level I", SubtypeNone, pos, "", nil), "det-"))
	})
}

func TestNormalizeTier(t *testing.T) {
	tests := []struct {
		input    string
		expected Tier
	}{
		{"Level II", TierLevelII},
		{"  level ii ", TierLevelII},
		{"LEVEL III", TierLevelIII},
		{"Level I", Tier("Level I")},
		{"", Tier("")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTier(tt.input))
		})
	}
}

func TestNormalizeSubtype(t *testing.T) {
	tests := []struct {
		input    string
		expected Subtype
	}{
		{"TVS", SubtypeTVS},
		{"tvs", SubtypeTVS},
		{"MESO", SubtypeMESO},
		{"NONE", SubtypeNone},
		{"", SubtypeNone},
		{"hook", Subtype("HOOK")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeSubtype(tt.input))
		})
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"ab°C", 3, "ab..."}, // ° is two bytes; byte 3 is its continuation
		{"°°", 1, "..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		assert.Equal(t, tt.want, got)
		assert.True(t, utf8.ValidString(got), "invalid UTF-8 in %q", got)
	}
}
