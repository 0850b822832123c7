package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/road-incident-map/internal/adapter/scene"
	"github.com/couchcryptid/road-incident-map/internal/config"
)

// Writer publishes rendered map scenes to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one scene as a single message keyed by the scene id.
func (w *Writer) Publish(ctx context.Context, sc scene.Scene) error {
	msg, err := serializeSnapshot(sc)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish scene %s: %w", sc.ID, err)
	}
	w.logger.Debug("scene published", "scene_id", sc.ID, "markers", len(sc.Markers), "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeSnapshot marshals a Scene into a Kafka message.
func serializeSnapshot(sc scene.Scene) (kafkago.Message, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize scene: %w", err)
	}
	id := sc.ID.String()
	return kafkago.Message{
		Key:   []byte(id),
		Value: data,
		Time:  sc.GeneratedAt,
		Headers: []kafkago.Header{
			{Key: "scene_id", Value: []byte(id)},
			{Key: "generated_at", Value: []byte(sc.GeneratedAt.UTC().Format(time.RFC3339))},
			{Key: "marker_count", Value: []byte(strconv.Itoa(len(sc.Markers)))},
		},
	}, nil
}
