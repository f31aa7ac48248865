package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/render"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafkago.Message
	err  error
}

func (r *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recordingWriter) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 4, 7, 12, 10, 0, 0, time.UTC)
	sym := domain.VisualSymbol{ID: "d1", Shape: domain.ShapeTriangle, Color: "#FF0000"}
	b := Batch{
		SessionID:   "sess-1",
		Seq:         7,
		PublishedAt: now,
		Mutations: []render.Mutation{
			{Op: render.OpRemoveMarker, MarkerID: "d0"},
			{Op: render.OpAddMarker, MarkerID: "d1", Marker: &sym},
		},
	}

	msg, err := serializeToMessage(b)
	require.NoError(t, err)

	assert.Equal(t, []byte("sess-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"op":"add_marker"`)
	assert.Contains(t, string(msg.Value), `"seq":7`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "seq", msg.Headers[0].Key)
	assert.Equal(t, []byte("7"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestMapWriter_ApplyNumbersBatches(t *testing.T) {
	rec := &recordingWriter{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 7, 12, 0, 0, 0, time.UTC))
	w := newMapWriter(rec, "sess-1", clock, discardLogger())
	ctx := context.Background()

	require.NoError(t, w.Apply(ctx, []render.Mutation{{Op: render.OpClearOverlay}}))
	require.NoError(t, w.Apply(ctx, nil), "empty batches are not published")

	rec.err = errors.New("broker down")
	err := w.Apply(ctx, []render.Mutation{{Op: render.OpClearAll}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish map batch 2")

	rec.err = nil
	require.NoError(t, w.Apply(ctx, []render.Mutation{{Op: render.OpClearAll}}))

	require.Len(t, rec.msgs, 2)
	var seqs []uint64
	for _, m := range rec.msgs {
		var b Batch
		require.NoError(t, json.Unmarshal(m.Value, &b))
		assert.Equal(t, "sess-1", b.SessionID)
		assert.True(t, b.PublishedAt.Equal(clock.Now()))
		seqs = append(seqs, b.Seq)
	}
	assert.Equal(t, []uint64{1, 2}, seqs, "failed write does not consume a sequence number")
}

func TestBatch_ReplaysOntoMemoryMap(t *testing.T) {
	rec := &recordingWriter{}
	w := newMapWriter(rec, "sess-1", nil, discardLogger())
	frame := domain.RadarFrame{Timestamp: time.Date(2025, 4, 7, 12, 0, 0, 0, time.UTC), ImageRef: "a.png", Bounds: domain.DefaultBounds}
	sym := domain.VisualSymbol{ID: "d1", Shape: domain.ShapeCircle}

	require.NoError(t, w.Apply(context.Background(), []render.Mutation{
		{Op: render.OpSetOverlay, Overlay: &frame, Opacity: 0.8},
		{Op: render.OpAddMarker, MarkerID: "d1", Marker: &sym},
	}))

	var b Batch
	require.NoError(t, json.Unmarshal(rec.msgs[0].Value, &b))
	mirror := render.NewMemoryMap()
	require.NoError(t, mirror.Apply(context.Background(), b.Mutations))

	layers := mirror.Layers()
	require.NotNil(t, layers.Overlay)
	assert.Equal(t, "a.png", layers.Overlay.Frame.ImageRef)
	assert.Equal(t, 0.8, layers.Overlay.Opacity)
	assert.Len(t, layers.Markers, 1)
}
