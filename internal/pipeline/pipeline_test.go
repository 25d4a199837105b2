package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/couchcryptid/quake-hazard-etl/internal/observability"
	"github.com/couchcryptid/quake-hazard-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
	errOnce atomic.Bool
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil && m.errOnce.CompareAndSwap(false, true) {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
	// unencodable keys produce an assessment that JSON cannot represent.
	unencodable map[string]bool
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.SiteAssessment, error) {
	if m.err != nil {
		return domain.SiteAssessment{}, m.err
	}
	site := domain.SiteAssessment{ID: string(raw.Key), RawPayload: raw.Value}
	if m.unencodable[string(raw.Key)] {
		site.Inputs.Magnitude = math.Inf(1)
	}
	return site, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.OutputEvent
	failures int
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) snapshot() []domain.OutputEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutputEvent(nil), m.loaded...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawEvent(t, "site-1", "Guwahati")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 1)
	assert.Equal(t, []byte("site-1"), loaded[0].Key)
	assert.NotContains(t, string(loaded[0].Value), "raw_payload")
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
}

func TestPipeline_Run_TransformError(t *testing.T) {
	committed := false
	raw := makeRawEvent(t, "site-2", "Shillong")
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.snapshot())
	assert.True(t, committed, "poison messages are committed so they are not redelivered")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_SkipsUnencodableSite(t *testing.T) {
	var committed sync.Map
	commitFor := func(raw domain.RawEvent) domain.RawEvent {
		raw.Commit = func(_ context.Context) error {
			committed.Store(string(raw.Key), true)
			return nil
		}
		return raw
	}
	bad := commitFor(makeRawEvent(t, "site-bad", "Guwahati"))
	good := commitFor(makeRawEvent(t, "site-good", "Shillong"))
	next := commitFor(makeRawEvent(t, "site-next", "Chennai"))

	ext := &mockExtractor{batches: [][]domain.RawEvent{{bad, good}, {next}}}
	ldr := &mockLoader{}
	tr := &mockTransformer{unencodable: map[string]bool{"site-bad": true}}

	p := pipeline.New(ext, tr, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 2, "the unencodable site must not stall later batches")
	assert.Equal(t, []byte("site-good"), loaded[0].Key)
	assert.Equal(t, []byte("site-next"), loaded[1].Key)
	assert.Equal(t, 2, ldr.calls, "an encoding failure is never retried")
	for _, key := range []string{"site-bad", "site-good", "site-next"} {
		_, ok := committed.Load(key)
		assert.True(t, ok, "offset for %s should be committed", key)
	}
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int32
	batch := make([]domain.RawEvent, 0, 3)
	for _, city := range []string{"Guwahati", "Shillong", "Bhuj"} {
		raw := makeRawEvent(t, city, city)
		raw.Topic = "raw-seismic-sites"
		raw.Commit = func(_ context.Context) error {
			commits.Add(1)
			return nil
		}
		batch = append(batch, raw)
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Len(t, ldr.snapshot(), 3)
	assert.Equal(t, int32(3), commits.Load())
}

func TestPipeline_Run_RetriesFailedLoad(t *testing.T) {
	committed := false
	raw := makeRawEvent(t, "site-3", "Kolkata")
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	assert.Len(t, ldr.snapshot(), 1, "batch should be reloaded after backoff")
	assert.Equal(t, 2, ldr.calls)
	assert.True(t, committed)
}

func TestPipeline_Run_RecoversFromExtractError(t *testing.T) {
	raw := makeRawEvent(t, "site-4", "Chennai")
	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}, err: errors.New("leader not available")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	assert.Len(t, ldr.snapshot(), 1)
}

func TestPipeline_CheckReadiness_BeforeRun(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 10)

	err := p.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not processed")
}

// --- helpers ---

func makeRawEvent(t *testing.T, id, city string) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.SiteRecord{
		domain.FieldCity:             city,
		domain.FieldAverageMagnitude: 6.1,
		domain.FieldDepthKm:          12,
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(id),
		Value: data,
	}
}
