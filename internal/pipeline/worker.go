package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/fieldmap/internal/engine"
	"github.com/dgallion1/fieldmap/internal/loader"
	"github.com/dgallion1/fieldmap/internal/metrics"
)

// OutputKey is the sink key a job's output is written to.
func OutputKey(sessionID, jobID string) string {
	return fmt.Sprintf("mappings/%s/outputs/%s", sessionID, jobID)
}

// Worker processes a single batch job.
type Worker struct {
	engine  *engine.Engine
	sink    Sink
	log     *slog.Logger
	metrics *metrics.Collector
	backoff func(attempt int) time.Duration
}

func NewWorker(eng *engine.Engine, sink Sink, log *slog.Logger, m *metrics.Collector) *Worker {
	return &Worker{
		engine:  eng,
		sink:    sink,
		log:     log,
		metrics: m,
		backoff: Backoff,
	}
}

// Process loads, resolves and optionally stores one job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "session_id", job.SessionID, "filename", job.Filename)
	defer job.release()

	// Phase 1: Load
	job.SetStatus(StatusLoading, "loading")
	doc, err := loader.LoadBytes(job.FileData(), job.Filename)
	if err != nil {
		log.Error("load failed", "error", err)
		w.fail(job, "loading", fmt.Sprintf("load: %s", err))
		return
	}

	// Phase 2: Resolve
	job.SetStatus(StatusResolving, "resolving")
	out, stats, err := w.engine.Apply(doc, job.Mapping())
	if err != nil {
		log.Error("resolve failed", "error", err)
		w.fail(job, "resolving", err.Error())
		return
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		w.fail(job, "resolving", fmt.Sprintf("encode: %s", err))
		return
	}
	job.SetResult(encoded, stats)
	log.Info("output built", "applied", stats.Applied, "dropped", stats.Dropped)

	// Phase 3: Store
	if w.sink != nil {
		job.SetStatus(StatusStoring, "storing")
		key := OutputKey(job.SessionID, job.ID)
		if err := w.store(ctx, log, key, encoded, job.Filename); err != nil {
			log.Error("store failed", "key", key, "error", err)
			w.fail(job, "storing", fmt.Sprintf("store %s: %s", key, err))
			return
		}
		job.SetStoredKey(key)
	}

	job.SetStatus(StatusCompleted, "done")
	w.metrics.ObserveJob(string(StatusCompleted))
}

func (w *Worker) store(ctx context.Context, log *slog.Logger, key string, value []byte, source string) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = w.sink.PutDocument(ctx, key, value, source)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		log.Warn("retryable store error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (w *Worker) fail(job *Job, phase, msg string) {
	job.AddError(msg)
	job.SetStatus(StatusFailed, phase)
	w.metrics.ObserveJob(string(StatusFailed))
}
