package kafka

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quake-hazard-etl/internal/config"
	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes encoded site assessments to the sink topic in a single
// WriteMessages call. Keys are assessment IDs, so the hash balancer keeps
// every revision of a site on one partition.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msgs[i] = toMessage(events[i])
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// outputHeaders fixes the order headers are written in.
var outputHeaders = []string{"hazard_level", "processed_at"}

// toMessage maps an encoded assessment onto a Kafka message.
func toMessage(out domain.OutputEvent) kafkago.Message {
	headers := make([]kafkago.Header, 0, len(outputHeaders))
	for _, key := range outputHeaders {
		if v, ok := out.Headers[key]; ok {
			headers = append(headers, kafkago.Header{Key: key, Value: []byte(v)})
		}
	}
	return kafkago.Message{Key: out.Key, Value: out.Value, Headers: headers}
}
