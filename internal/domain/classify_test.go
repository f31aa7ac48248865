package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultStyleSheet())
	pos := GeoPoint{Lat: 30.44, Lng: -84.28}

	t.Run("level II is a yellow circle", func(t *testing.T) {
		sym, ok := c.Classify(DetectionRecord{ID: "l2-1", Position: pos, Tier: TierLevelII, Shear: ptrFloat(45)})
		require.True(t, ok)
		assert.Equal(t, ShapeCircle, sym.Shape)
		assert.Equal(t, "#FFFF00", sym.Color)
		assert.Equal(t, 0.7, sym.FillOpacity)
		assert.Equal(t, 800.0, sym.Radius)
		assert.Zero(t, sym.IconSize)
		assert.Equal(t, "Shear: 45", sym.Popup)
		assert.Equal(t, pos, sym.Position)
		assert.Equal(t, "l2-1", sym.ID)
	})

	t.Run("level II ignores subtype", func(t *testing.T) {
		sym, ok := c.Classify(DetectionRecord{Tier: TierLevelII, Subtype: SubtypeTVS})
		require.True(t, ok)
		assert.Equal(t, ShapeCircle, sym.Shape)
	})

	t.Run("level III TVS is a red high-emphasis triangle", func(t *testing.T) {
		sym, ok := c.Classify(DetectionRecord{Tier: TierLevelIII, Subtype: SubtypeTVS, Shear: ptrFloat(72.5)})
		require.True(t, ok)
		assert.Equal(t, ShapeTriangle, sym.Shape)
		assert.Equal(t, "#FF0000", sym.Color)
		assert.Equal(t, EmphasisHigh, sym.Emphasis)
		assert.Equal(t, 15, sym.IconSize)
		assert.Zero(t, sym.Radius)
		assert.Equal(t, "Shear: 72.5", sym.Popup)
	})

	t.Run("level III MESO is an orange square", func(t *testing.T) {
		sym, ok := c.Classify(DetectionRecord{Tier: TierLevelIII, Subtype: SubtypeMESO})
		require.True(t, ok)
		assert.Equal(t, ShapeSquare, sym.Shape)
		assert.Equal(t, "#FFA500", sym.Color)
		assert.Equal(t, EmphasisNormal, sym.Emphasis)
	})

	t.Run("null shear falls back to unknown", func(t *testing.T) {
		sym, ok := c.Classify(DetectionRecord{Tier: TierLevelIII, Subtype: SubtypeMESO})
		require.True(t, ok)
		assert.Equal(t, "Shear: unknown", sym.Popup)
	})

	t.Run("place name is appended", func(t *testing.T) {
		sym, ok := c.Classify(DetectionRecord{Tier: TierLevelII, Shear: ptrFloat(3), PlaceName: "Tallahassee"})
		require.True(t, ok)
		assert.Equal(t, "Shear: 3 | Tallahassee", sym.Popup)
	})

	dropped := []struct {
		name string
		rec  DetectionRecord
	}{
		{"unknown tier", DetectionRecord{Tier: "Level I"}},
		{"unknown tier with TVS", DetectionRecord{Tier: "Level I", Subtype: SubtypeTVS}},
		{"level III without subtype", DetectionRecord{Tier: TierLevelIII}},
		{"level III unknown subtype", DetectionRecord{Tier: TierLevelIII, Subtype: "HOOK"}},
		{"empty tier", DetectionRecord{}},
	}
	for _, tt := range dropped {
		t.Run("drops "+tt.name, func(t *testing.T) {
			_, ok := c.Classify(tt.rec)
			assert.False(t, ok)
		})
	}
}

func TestClassify_IsPure(t *testing.T) {
	c := NewClassifier(DefaultStyleSheet())
	rec := DetectionRecord{ID: "tvs-1", Tier: TierLevelIII, Subtype: SubtypeTVS, Shear: ptrFloat(61)}

	first, ok1 := c.Classify(rec)
	second, ok2 := c.Classify(rec)
	assert.Equal(t, ok1, ok2)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("classification not deterministic (-first +second):\n%s", diff)
	}
}

func TestClassifyAll(t *testing.T) {
	c := NewClassifier(DefaultStyleSheet())
	records := []DetectionRecord{
		{ID: "a", Tier: TierLevelII},
		{ID: "b", Tier: "Level I"},
		{ID: "c", Tier: TierLevelIII, Subtype: SubtypeTVS},
		{ID: "d", Tier: TierLevelIII},
	}

	symbols := c.ClassifyAll(records)
	require.Len(t, symbols, 2)
	assert.Equal(t, "a", symbols[0].ID)
	assert.Equal(t, "c", symbols[1].ID)
}

func TestStyleSheet_Merge(t *testing.T) {
	base := DefaultStyleSheet()
	merged := base.Merge(StyleSheet{
		LevelII: SymbolStyle{Color: "#00FF00", Radius: 1200},
		TVS:     SymbolStyle{IconSize: 24},
	})

	assert.Equal(t, "#00FF00", merged.LevelII.Color)
	assert.Equal(t, 1200.0, merged.LevelII.Radius)
	assert.Equal(t, 0.7, merged.LevelII.FillOpacity)
	assert.Equal(t, 24, merged.TVS.IconSize)
	assert.Equal(t, "#FF0000", merged.TVS.Color)
	assert.Equal(t, base.MESO, merged.MESO)
}

func TestStyleSheet_Validate(t *testing.T) {
	require.NoError(t, DefaultStyleSheet().Validate())

	bad := DefaultStyleSheet()
	bad.TVS.Color = "red"
	bad.LevelII.FillOpacity = 1.5
	bad.MESO.Emphasis = "loud"

	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tvs: invalid color")
	assert.Contains(t, err.Error(), "level_ii: fill_opacity")
	assert.Contains(t, err.Error(), "meso: unknown emphasis")
}
