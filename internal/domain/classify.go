package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Shape is the map primitive used to draw a symbol.
type Shape string

const (
	ShapeCircle   Shape = "circle"
	ShapeTriangle Shape = "triangle"
	ShapeSquare   Shape = "square"
)

// Emphasis hints how prominently a symbol should be drawn.
type Emphasis string

const (
	EmphasisNormal Emphasis = "normal"
	EmphasisHigh   Emphasis = "high"
)

// VisualSymbol is the rendered form of a classified detection.
type VisualSymbol struct {
	ID            string   `json:"id"`
	Position      GeoPoint `json:"position"`
	Tier          Tier     `json:"tier"`
	Subtype       Subtype  `json:"subtype,omitempty"`
	Shape         Shape    `json:"shape"`
	Color         string   `json:"color"`
	FillOpacity   float64  `json:"fill_opacity"`
	StrokeOpacity float64  `json:"stroke_opacity"`
	StrokeWeight  int      `json:"stroke_weight"`
	Radius        float64  `json:"radius,omitempty"`    // map units, circles only
	IconSize      int      `json:"icon_size,omitempty"` // pixels, markers only
	Emphasis      Emphasis `json:"emphasis"`
	Popup         string   `json:"popup"`
}

// SymbolStyle holds the drawing attributes for one symbol class.
type SymbolStyle struct {
	Color         string   `yaml:"color"`
	FillOpacity   float64  `yaml:"fill_opacity"`
	StrokeOpacity float64  `yaml:"stroke_opacity"`
	StrokeWeight  int      `yaml:"stroke_weight"`
	Radius        float64  `yaml:"radius"`
	IconSize      int      `yaml:"icon_size"`
	Emphasis      Emphasis `yaml:"emphasis"`
}

// StyleSheet maps each symbol class to its style.
type StyleSheet struct {
	LevelII SymbolStyle `yaml:"level_ii"`
	TVS     SymbolStyle `yaml:"tvs"`
	MESO    SymbolStyle `yaml:"meso"`
}

// DefaultStyleSheet returns the stock storm symbol styles.
func DefaultStyleSheet() StyleSheet {
	return StyleSheet{
		LevelII: SymbolStyle{
			Color:         "#FFFF00",
			FillOpacity:   0.7,
			StrokeOpacity: 0.8,
			StrokeWeight:  2,
			Radius:        800,
			Emphasis:      EmphasisNormal,
		},
		TVS: SymbolStyle{
			Color:         "#FF0000",
			FillOpacity:   1,
			StrokeOpacity: 1,
			StrokeWeight:  2,
			IconSize:      15,
			Emphasis:      EmphasisHigh,
		},
		MESO: SymbolStyle{
			Color:         "#FFA500",
			FillOpacity:   1,
			StrokeOpacity: 1,
			StrokeWeight:  1,
			IconSize:      15,
			Emphasis:      EmphasisNormal,
		},
	}
}

// Merge returns s with every non-zero field of override applied on top.
func (s StyleSheet) Merge(override StyleSheet) StyleSheet {
	s.LevelII = s.LevelII.merge(override.LevelII)
	s.TVS = s.TVS.merge(override.TVS)
	s.MESO = s.MESO.merge(override.MESO)
	return s
}

func (s SymbolStyle) merge(o SymbolStyle) SymbolStyle {
	if o.Color != "" {
		s.Color = o.Color
	}
	if o.FillOpacity != 0 {
		s.FillOpacity = o.FillOpacity
	}
	if o.StrokeOpacity != 0 {
		s.StrokeOpacity = o.StrokeOpacity
	}
	if o.StrokeWeight != 0 {
		s.StrokeWeight = o.StrokeWeight
	}
	if o.Radius != 0 {
		s.Radius = o.Radius
	}
	if o.IconSize != 0 {
		s.IconSize = o.IconSize
	}
	if o.Emphasis != "" {
		s.Emphasis = o.Emphasis
	}
	return s
}

var hexColorRe = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// Validate checks colors and opacity ranges of every class.
func (s StyleSheet) Validate() error {
	return errors.Join(
		s.LevelII.validate("level_ii"),
		s.TVS.validate("tvs"),
		s.MESO.validate("meso"),
	)
}

func (s SymbolStyle) validate(name string) error {
	var errs []error
	if !hexColorRe.MatchString(s.Color) {
		errs = append(errs, fmt.Errorf("%s: invalid color %q", name, s.Color))
	}
	if s.FillOpacity < 0 || s.FillOpacity > 1 {
		errs = append(errs, fmt.Errorf("%s: fill_opacity %g out of [0,1]", name, s.FillOpacity))
	}
	if s.StrokeOpacity < 0 || s.StrokeOpacity > 1 {
		errs = append(errs, fmt.Errorf("%s: stroke_opacity %g out of [0,1]", name, s.StrokeOpacity))
	}
	if s.Radius < 0 || s.IconSize < 0 || s.StrokeWeight < 0 {
		errs = append(errs, fmt.Errorf("%s: negative size", name))
	}
	switch s.Emphasis {
	case EmphasisNormal, EmphasisHigh:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown emphasis %q", name, s.Emphasis))
	}
	return errors.Join(errs...)
}

// Classifier turns detection records into visual symbols. It holds only an
// immutable style sheet, so Classify is a pure function of its input.
type Classifier struct {
	style StyleSheet
}

// NewClassifier creates a Classifier using the given styles.
func NewClassifier(style StyleSheet) *Classifier {
	return &Classifier{style: style}
}

// Classify maps a record to its symbol. The tier decides first: every Level II
// record is a circle regardless of subtype. Level III needs a TVS or MESO
// subtype. Any other combination reports false and must not be drawn.
func (c *Classifier) Classify(rec DetectionRecord) (VisualSymbol, bool) {
	var (
		style SymbolStyle
		shape Shape
	)
	switch rec.Tier {
	case TierLevelII:
		style, shape = c.style.LevelII, ShapeCircle
	case TierLevelIII:
		switch rec.Subtype {
		case SubtypeTVS:
			style, shape = c.style.TVS, ShapeTriangle
		case SubtypeMESO:
			style, shape = c.style.MESO, ShapeSquare
		default:
			return VisualSymbol{}, false
		}
	default:
		return VisualSymbol{}, false
	}

	sym := VisualSymbol{
		ID:            rec.ID,
		Position:      rec.Position,
		Tier:          rec.Tier,
		Subtype:       rec.Subtype,
		Shape:         shape,
		Color:         style.Color,
		FillOpacity:   style.FillOpacity,
		StrokeOpacity: style.StrokeOpacity,
		StrokeWeight:  style.StrokeWeight,
		Emphasis:      style.Emphasis,
		Popup:         popupText(rec),
	}
	if shape == ShapeCircle {
		sym.Radius = style.Radius
	} else {
		sym.IconSize = style.IconSize
	}
	return sym, true
}

// ClassifyAll classifies records in order, skipping unclassifiable ones.
func (c *Classifier) ClassifyAll(records []DetectionRecord) []VisualSymbol {
	symbols := make([]VisualSymbol, 0, len(records))
	for _, rec := range records {
		if sym, ok := c.Classify(rec); ok {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

func popupText(rec DetectionRecord) string {
	shear := "unknown"
	if rec.Shear != nil {
		shear = formatNumber(*rec.Shear)
	}
	text := "Shear: " + shear
	if rec.PlaceName != "" {
		text += " | " + rec.PlaceName
	}
	return text
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
