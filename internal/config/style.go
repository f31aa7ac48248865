package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/stormslide/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadStyleSheet returns the default symbol styles overlaid with the YAML file
// at path. An empty path yields the defaults unchanged.
//
//	tvs:
//	  color: "#FF00FF"
//	  icon_size: 20
func LoadStyleSheet(path string) (domain.StyleSheet, error) {
	style := domain.DefaultStyleSheet()
	if path == "" {
		return style, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.StyleSheet{}, fmt.Errorf("read STYLE_FILE: %w", err)
	}

	var override domain.StyleSheet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&override); err != nil && !errors.Is(err, io.EOF) {
		return domain.StyleSheet{}, fmt.Errorf("parse STYLE_FILE %s: %w", path, err)
	}

	style = style.Merge(override)
	if err := style.Validate(); err != nil {
		return domain.StyleSheet{}, fmt.Errorf("invalid STYLE_FILE %s: %w", path, err)
	}
	return style, nil
}
