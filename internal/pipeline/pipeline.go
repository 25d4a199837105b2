package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/couchcryptid/quake-hazard-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into a site assessment.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.SiteAssessment, error)
}

// BatchLoader writes multiple encoded site assessments to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoffDelay = 5 * time.Second
)

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one message,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := newBackoff(initialBackoff, maxBackoffDelay)
	for ctx.Err() == nil {
		if !p.processBatch(ctx, delay) {
			break
		}
	}

	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// batchSummary tallies the outcome of one extract-transform-load cycle.
type batchSummary struct {
	skipped   int
	defaulted int
	levels    map[domain.HazardLevel]int
}

func (s *batchSummary) add(site domain.SiteAssessment) {
	if s.levels == nil {
		s.levels = make(map[domain.HazardLevel]int, 4)
	}
	s.levels[site.Hazard.Level]++
	if site.Hazard.Defaulted {
		s.defaulted++
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, delay *backoff) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err, "retry_in", delay.current)
		return delay.wait(ctx)
	}
	if len(rawBatch) == 0 {
		return true
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	delay.reset()

	events, accepted, summary := p.transformBatch(ctx, rawBatch)
	if len(events) == 0 {
		return true
	}

	if !p.loadWithRetry(ctx, events, delay) {
		return false
	}
	p.metrics.MessagesProduced.Add(float64(len(events)))
	for _, raw := range accepted {
		p.commitOffset(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)

	p.logger.Debug("batch loaded",
		"loaded", len(events),
		"skipped", summary.skipped,
		"defaulted", summary.defaulted,
		"duration", time.Since(start),
	)
	if n := summary.levels[domain.LevelVeryHigh]; n > 0 {
		p.logger.Info("very high hazard sites assessed", "count", n, "batch_size", len(events))
	}
	return true
}

// transformBatch assesses and encodes every message in the batch. Messages
// that fail either step are committed immediately so they are not
// redelivered; the rest are returned alongside the raw events whose offsets
// await a successful load.
func (p *Pipeline) transformBatch(ctx context.Context, rawBatch []domain.RawEvent) ([]domain.OutputEvent, []domain.RawEvent, batchSummary) {
	events := make([]domain.OutputEvent, 0, len(rawBatch))
	accepted := make([]domain.RawEvent, 0, len(rawBatch))
	var summary batchSummary

	for _, raw := range rawBatch {
		site, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.skip(ctx, raw, "transform failed, skipping message", err)
			summary.skipped++
			continue
		}
		out, err := domain.SerializeAssessment(site)
		if err != nil {
			p.skip(ctx, raw, "encode failed, skipping message", err)
			summary.skipped++
			continue
		}
		summary.add(site)
		events = append(events, out)
		accepted = append(accepted, raw)
	}
	return events, accepted, summary
}

// skip drops a message that can never be loaded and commits its offset.
func (p *Pipeline) skip(ctx context.Context, raw domain.RawEvent, msg string, err error) {
	p.logger.Warn(msg,
		"error", err,
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
	)
	p.metrics.TransformErrors.Inc()
	p.commitOffset(ctx, raw)
}

// loadWithRetry loads the batch, backing off between attempts until it
// succeeds or the context ends. The batch's offsets stay uncommitted until
// then, and the reader has already moved past them in memory, so the batch
// is retried here rather than re-extracted. Every event in it is already
// encoded, so only transport failures reach this loop.
func (p *Pipeline) loadWithRetry(ctx context.Context, events []domain.OutputEvent, delay *backoff) bool {
	for {
		err := p.loader.LoadBatch(ctx, events)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(events), "retry_in", delay.current)
		if !delay.wait(ctx) {
			return false
		}
	}
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// backoff tracks the current retry delay between failed extract or load
// attempts, doubling it up to max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, maxDelay time.Duration) *backoff {
	return &backoff{initial: initial, max: maxDelay, current: initial}
}

func (b *backoff) reset() {
	b.current = b.initial
}

// wait sleeps for the current delay, then advances it. Returns false if the
// context ends first.
func (b *backoff) wait(ctx context.Context) bool {
	if ctx.Err() != nil || !retry.SleepWithContext(ctx, b.current) {
		return false
	}
	b.current = retry.NextBackoff(b.current, b.max)
	return true
}
