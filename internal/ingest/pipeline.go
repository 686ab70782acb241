package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"agrosolutions.dev/agro-pipeline/internal/result"
	"agrosolutions.dev/agro-pipeline/internal/store"
	"agrosolutions.dev/agro-pipeline/pkg/metrics"
)

// Notification keys used by the pipeline.
const (
	KeyIngestion   = "Ingestion"
	KeyBatch       = "Batch"
	KeyPersistence = "Persistence"
	KeyCancelled   = "Cancelled"
)

const msgEmptyBatch = "No readings provided in batch"

// Ingestion modes reported to metrics.
const (
	modeSingle        = "single"
	modeBatch         = "batch"
	modeBatchParallel = "batch_parallel"
)

// IngestionResult carries the per-call statistics of a batch ingestion.
// Produced fresh per call; not persisted.
type IngestionResult struct {
	ProcessedCount int           `json:"processed_count"`
	FailedCount    int           `json:"failed_count"`
	Errors         []string      `json:"errors"`
	Success        bool          `json:"success"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Pipeline orchestrates telemetry ingestion: per-item validation and
// construction, fail-soft accumulation, and a single atomic batch write
// through the storage collaborator.
type Pipeline struct {
	logger  *slog.Logger
	store   store.Store
	metrics *metrics.PipelineMetrics // optional
	now     func() time.Time
}

// PipelineConfig holds the configuration for the Pipeline.
type PipelineConfig struct {
	Logger  *slog.Logger
	Store   store.Store
	Metrics *metrics.PipelineMetrics
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Pipeline{
		logger:  cfg.Logger,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		now:     now,
	}, nil
}

// IngestSingle builds and persists one reading. Validation failures and
// storage failures are both reported through the result; nothing panics
// across this boundary.
func (p *Pipeline) IngestSingle(ctx context.Context, in ReadingInput) result.Result[*store.SensorReading] {
	reading, err := NewReading(in, p.now())
	if err != nil {
		p.logger.Warn("failed to create reading",
			"field_id", in.FieldID,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.ReadingsRejected.WithLabelValues(modeSingle).Inc()
		}
		return result.Failuref[*store.SensorReading](KeyIngestion, "Failed to ingest sensor reading: %v", err)
	}

	if err := p.store.SaveReading(ctx, reading); err != nil {
		p.logger.Error("failed to save reading",
			"field_id", reading.FieldID,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.PersistenceErrors.Inc()
		}
		return result.Failuref[*store.SensorReading](KeyPersistence, "Failed to ingest sensor reading: %v", err)
	}

	p.logger.Info("ingested single telemetry", "field_id", reading.FieldID)
	if p.metrics != nil {
		p.metrics.ReadingsIngested.WithLabelValues(modeSingle).Inc()
		p.metrics.ReadingsPersisted.Inc()
	}
	return result.Success(reading)
}

// IngestBatch processes inputs in order. Each item failure is counted and
// recorded while processing continues; all successfully-built readings are
// persisted in one atomic write after the loop. Cancellation stops validation
// between items; what was already built is still persisted, skipped items
// count as failed and the call reports failure so every input is reflected
// in the result.
func (p *Pipeline) IngestBatch(ctx context.Context, batch BatchInput) result.Result[*IngestionResult] {
	start := p.now()
	res := &IngestionResult{Success: true, Errors: []string{}}

	if len(batch.Readings) == 0 {
		return p.emptyBatch(res, start)
	}
	p.observeBatchSize(len(batch.Readings))

	failKey := ""
	collected := make([]*store.SensorReading, 0, len(batch.Readings))
	for i, in := range batch.Readings {
		if err := ctx.Err(); err != nil {
			p.cancelBatch(res, len(batch.Readings)-i, err)
			failKey = KeyCancelled
			break
		}

		reading, err := NewReading(in, p.now())
		if err != nil {
			res.FailedCount++
			res.Errors = append(res.Errors, fmt.Sprintf("Field %s: %v", in.FieldID, err))
			p.logger.Warn("failed to create reading",
				"field_id", in.FieldID,
				"error", err,
			)
			continue
		}

		collected = append(collected, reading)
		res.ProcessedCount++
	}

	if p.persistBatch(ctx, collected, res) {
		failKey = KeyPersistence
	}
	return p.finishBatch(res, start, modeBatch, failKey)
}

// IngestBatchParallel has the same contract as IngestBatch but distributes
// per-item construction across a worker pool bounded by host parallelism.
// Counters are atomic and the accumulators are mutex-guarded; a join barrier
// precedes the single batch write. Error order is not guaranteed to match
// input order.
func (p *Pipeline) IngestBatchParallel(ctx context.Context, batch BatchInput) result.Result[*IngestionResult] {
	start := p.now()
	res := &IngestionResult{Success: true, Errors: []string{}}

	if len(batch.Readings) == 0 {
		return p.emptyBatch(res, start)
	}
	p.observeBatchSize(len(batch.Readings))

	var (
		processed atomic.Int64
		failed    atomic.Int64
		skipped   atomic.Int64

		mu        sync.Mutex
		collected = make([]*store.SensorReading, 0, len(batch.Readings))
		errs      []string
	)

	jobs := make(chan ReadingInput)
	var wg sync.WaitGroup
	for range runtime.GOMAXPROCS(0) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range jobs {
				// Cooperative cancellation: in-flight items complete,
				// queued items are drained without processing.
				if ctx.Err() != nil {
					skipped.Add(1)
					continue
				}

				reading, err := NewReading(in, p.now())
				if err != nil {
					failed.Add(1)
					mu.Lock()
					errs = append(errs, fmt.Sprintf("Field %s: %v", in.FieldID, err))
					mu.Unlock()
					p.logger.Warn("failed to create reading",
						"field_id", in.FieldID,
						"error", err,
					)
					continue
				}

				processed.Add(1)
				mu.Lock()
				collected = append(collected, reading)
				mu.Unlock()
			}
		}()
	}

	for _, in := range batch.Readings {
		jobs <- in
	}
	close(jobs)
	wg.Wait()

	res.ProcessedCount = int(processed.Load())
	res.FailedCount = int(failed.Load())
	res.Errors = append(res.Errors, errs...)

	failKey := ""
	if n := int(skipped.Load()); n > 0 {
		p.cancelBatch(res, n, ctx.Err())
		failKey = KeyCancelled
	}

	if p.persistBatch(ctx, collected, res) {
		failKey = KeyPersistence
	}
	return p.finishBatch(res, start, modeBatchParallel, failKey)
}

// emptyBatch reports the empty-batch precondition failure.
func (p *Pipeline) emptyBatch(res *IngestionResult, start time.Time) result.Result[*IngestionResult] {
	res.Success = false
	res.Errors = append(res.Errors, msgEmptyBatch)
	res.ProcessingTime = p.now().Sub(start)
	p.logger.Warn("empty batch submitted")
	return result.FailureWith(res, result.Notification{Key: KeyBatch, Message: msgEmptyBatch})
}

// cancelBatch accounts for inputs abandoned on cancellation. Skipped items
// count as failed and the call is marked failed, so a cancelled run is never
// mistaken for a clean success and every input stays reflected in the counts.
func (p *Pipeline) cancelBatch(res *IngestionResult, skipped int, err error) {
	res.Success = false
	res.FailedCount += skipped
	res.Errors = append(res.Errors, fmt.Sprintf("Batch cancelled: %v", err))
	p.logger.Warn("batch ingestion cancelled",
		"skipped", skipped,
		"error", err,
	)
}

// persistBatch commits all successfully-built readings in one write and
// reports whether the write failed. A storage failure marks the whole call
// failed; already-counted items keep their counts so
// ProcessedCount+FailedCount still covers every input.
func (p *Pipeline) persistBatch(ctx context.Context, readings []*store.SensorReading, res *IngestionResult) bool {
	if len(readings) == 0 {
		return false
	}

	if err := p.store.SaveReadings(ctx, readings); err != nil {
		p.logger.Error("failed to save batch of readings",
			"count", len(readings),
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.PersistenceErrors.Inc()
		}
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("Batch save failed: %v", err))
		return true
	}

	if p.metrics != nil {
		p.metrics.ReadingsPersisted.Add(float64(len(readings)))
	}
	return false
}

// finishBatch stamps timing, logs and wraps the outcome. failKey names the
// notification key for a failed call and is empty for fail-soft runs where
// only individual items were rejected.
func (p *Pipeline) finishBatch(res *IngestionResult, start time.Time, mode, failKey string) result.Result[*IngestionResult] {
	res.ProcessingTime = p.now().Sub(start)

	p.logger.Info("ingested batch",
		"mode", mode,
		"processed", res.ProcessedCount,
		"failed", res.FailedCount,
		"duration", res.ProcessingTime,
	)

	if p.metrics != nil {
		p.metrics.ReadingsIngested.WithLabelValues(mode).Add(float64(res.ProcessedCount))
		p.metrics.ReadingsRejected.WithLabelValues(mode).Add(float64(res.FailedCount))
		p.metrics.IngestionDuration.WithLabelValues(mode).Observe(res.ProcessingTime.Seconds())
		status := "success"
		if !res.Success {
			status = "error"
		}
		p.metrics.BatchesTotal.WithLabelValues(mode, status).Inc()
	}

	if !res.Success {
		return result.FailureWith(res, result.Notification{
			Key:     failKey,
			Message: res.Errors[len(res.Errors)-1],
		})
	}
	return result.Success(res)
}

func (p *Pipeline) observeBatchSize(n int) {
	if p.metrics != nil {
		p.metrics.BatchSize.Observe(float64(n))
	}
}
