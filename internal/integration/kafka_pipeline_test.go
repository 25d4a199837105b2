//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-hazard-etl/internal/config"
	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/couchcryptid/quake-hazard-etl/internal/observability"
	"github.com/couchcryptid/quake-hazard-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-raw-sites"
	testSinkTopic   = "test-assessed-sites"
)

// assessedMessage holds a deserialized message read from the sink topic.
type assessedMessage struct {
	Site    domain.SiteAssessment
	Key     string
	Headers map[string]string
}

// readAssessed reads a single message from the sink consumer and deserializes it.
func readAssessed(ctx context.Context, t *testing.T, consumer *kafkago.Reader) assessedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var site domain.SiteAssessment
	require.NoError(t, json.Unmarshal(msg.Value, &site), "unmarshal sink message")

	return assessedMessage{
		Site:    site,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
		EventWeight:        domain.DefaultEventWeight,
	}
}

func newSinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func newProducer(t *testing.T, broker string) *kafkago.Writer {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	return producer
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor) and
// kafka.Writer (Loader) correctly round-trip a site through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-reader")

	payload := []byte(loadMockData(t)[0]) // Guwahati, Assam
	require.NoError(t, newProducer(t, broker).WriteMessages(ctx, kafkago.Message{
		Key:   []byte("test-key"),
		Value: payload,
	}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("test-key"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	transformer := pipeline.NewTransformer(nil, cfg.EventWeight, observability.NewMetricsForTesting(), discardLogger())
	site, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	out, err := domain.SerializeAssessment(site)
	require.NoError(t, err)
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{out}))

	am := readAssessed(ctx, t, newSinkConsumer(t, broker))
	assert.Equal(t, site.ID, am.Key)
	assert.Equal(t, "Very High", am.Headers["hazard_level"])
	_, err = time.Parse(time.RFC3339, am.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, "Guwahati", am.Site.City)
	assert.Equal(t, "Assam", am.Site.State)
	assert.Equal(t, 9.84, am.Site.Hazard.Score)
	assert.Equal(t, domain.LevelVeryHigh, am.Site.Hazard.Level)
	assert.NotNil(t, am.Site.Event, "event score should be present when Frequency_Past_EQ is set")
}

// TestPipelineEndToEnd wires the full pipeline (Reader → Transformer → Writer) with
// real Kafka and verifies that every mock site is assessed.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-pipeline")

	records := loadMockData(t)
	msgs := make([]kafkago.Message, 0, len(records))
	for i, rec := range records {
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("site-%d", i)),
			Value: rec,
		})
	}
	require.NoError(t, newProducer(t, broker).WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(nil, cfg.EventWeight, metrics, discardLogger())

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newSinkConsumer(t, broker)
	received := make(map[string]assessedMessage, len(records))
	for len(received) < len(records) {
		am := readAssessed(ctx, t, consumer)
		received[am.Site.City] = am
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	levelCounts := map[domain.HazardLevel]int{}
	for city, am := range received {
		levelCounts[am.Site.Hazard.Level]++
		assert.Equal(t, string(am.Site.Hazard.Level), am.Headers["hazard_level"], "hazard_level header for %s", city)
		assert.Equal(t, am.Site.ID, am.Key, "message key for %s", city)
		assert.GreaterOrEqual(t, am.Site.Hazard.Score, domain.MinHazardScore)
		assert.LessOrEqual(t, am.Site.Hazard.Score, domain.MaxHazardScore)
	}

	assert.Equal(t, 2, levelCounts[domain.LevelVeryHigh], "very high count")
	assert.Equal(t, 1, levelCounts[domain.LevelHigh], "high count")
	assert.Equal(t, 2, levelCounts[domain.LevelLow], "low count")

	assert.Equal(t, 7.92, received["Shillong"].Site.Hazard.Score)

	kolkata := received["Kolkata"].Site
	require.NotNil(t, kolkata.Financial)
	assert.Equal(t, int64(600_000), kolkata.Financial.TotalLoss)

	bhuj := received["Bhuj"].Site
	assert.True(t, bhuj.Hazard.Defaulted)
	assert.Contains(t, bhuj.Hazard.Reason, domain.FieldAverageMagnitude)
}

// TestPipelineTransformError verifies that an invalid message (poison pill) is
// skipped and the pipeline continues processing valid messages.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-poison")

	valid := loadMockData(t)[1] // Shillong, Meghalaya
	require.NoError(t, newProducer(t, broker).WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: valid},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(nil, cfg.EventWeight, metrics, discardLogger())

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newSinkConsumer(t, broker)
	am := readAssessed(ctx, t, consumer)
	assert.Equal(t, "Shillong", am.Site.City)
	assert.Equal(t, domain.LevelHigh, am.Site.Hazard.Level)

	// The poison pill is committed and skipped, so nothing else arrives.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
