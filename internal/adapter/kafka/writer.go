package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/stormslide/internal/config"
	"github.com/couchcryptid/stormslide/internal/render"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Batch is one applied mutation list as published on the map topic. A remote
// map client applies batches in Seq order.
type Batch struct {
	SessionID   string            `json:"session_id"`
	Seq         uint64            `json:"seq"`
	PublishedAt time.Time         `json:"published_at"`
	Mutations   []render.Mutation `json:"mutations"`
}

// MapWriter publishes map mutations to a Kafka topic so a remote map client
// can mirror the session's map. It implements render.Map.
type MapWriter struct {
	writer    messageWriter
	sessionID string
	clock     clockwork.Clock
	logger    *slog.Logger

	mu  sync.Mutex
	seq uint64
}

// NewMapWriter creates a Kafka producer for the configured map topic. All
// messages are keyed by the session ID, so one session's batches stay on one
// partition in order.
func NewMapWriter(cfg *config.Config, sessionID string, clock clockwork.Clock, logger *slog.Logger) *MapWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaMapTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newMapWriter(w, sessionID, clock, logger)
}

func newMapWriter(w messageWriter, sessionID string, clock clockwork.Clock, logger *slog.Logger) *MapWriter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MapWriter{writer: w, sessionID: sessionID, clock: clock, logger: logger}
}

// Apply publishes the mutations as a single batch message. A failed write
// does not consume a sequence number.
func (w *MapWriter) Apply(ctx context.Context, muts []render.Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	b := Batch{
		SessionID:   w.sessionID,
		Seq:         w.seq + 1,
		PublishedAt: w.clock.Now().UTC(),
		Mutations:   muts,
	}
	msg, err := serializeToMessage(b)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish map batch %d: %w", b.Seq, err)
	}
	w.seq = b.Seq
	w.logger.Debug("map batch published", "seq", b.Seq, "mutations", len(muts))
	return nil
}

func (w *MapWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Batch into a Kafka message.
func serializeToMessage(b Batch) (kafkago.Message, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize map batch: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(b.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "seq", Value: []byte(strconv.FormatUint(b.Seq, 10))},
			{Key: "published_at", Value: []byte(b.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
