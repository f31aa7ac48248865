package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_GoodFixturesPass(t *testing.T) {
	assert.Equal(t, 0, run("testdata/good", "", 5*time.Second))
}

func TestRun_BadFixturesFail(t *testing.T) {
	assert.Equal(t, 1, run("testdata/bad", "", 5*time.Second))
}

func TestRun_MissingFixturesFail(t *testing.T) {
	assert.Equal(t, 1, run(t.TempDir(), "", 5*time.Second))
}

func TestValidateRender(t *testing.T) {
	tl, warnings := domain.BuildTimeline([]domain.RawFrame{
		{Timestamp: "2025-04-07T12:00:00Z", ImageRef: "radar_1200.png"},
		{Timestamp: "2025-04-07T12:05:00Z", ImageRef: "radar_1205.png"},
	}, domain.DefaultBounds)
	require.Empty(t, warnings)

	symbols := []domain.VisualSymbol{{ID: "a", Shape: domain.ShapeCircle}, {ID: "b", Shape: domain.ShapeSquare}}
	p := validateRender(context.Background(), tl, symbols, 0.8, slog.Default())
	assert.True(t, p.passed(), p.errors)
}

func TestValidateRender_EmptyTimeline(t *testing.T) {
	p := validateRender(context.Background(), domain.Timeline{}, nil, 0.8, slog.Default())
	assert.True(t, p.passed(), p.errors)
}
