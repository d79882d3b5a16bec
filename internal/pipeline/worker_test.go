package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/fieldmap/internal/config"
	"github.com/dgallion1/fieldmap/internal/engine"
	"github.com/dgallion1/fieldmap/internal/mapping"
	"github.com/dgallion1/fieldmap/internal/pathstore"
)

type fakeSink struct {
	mu       sync.Mutex
	failures []error
	calls    int
	keys     []string
	values   [][]byte
}

func (s *fakeSink) PutDocument(_ context.Context, key string, value []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}
	s.keys = append(s.keys, key)
	s.values = append(s.values, value)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWorker(sink Sink) *Worker {
	eng := engine.New(engine.DefaultOptions(), discardLogger(), nil)
	w := NewWorker(eng, sink, discardLogger(), nil)
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func personMapping() *mapping.Store {
	m := mapping.NewStore()
	m.Set("name", "fullName")
	m.Set("address", "location")
	return m
}

const personJSON = `{"name": "Alice", "address": {"city": "Paris"}}`

func TestWorker_ProcessWithoutSink(t *testing.T) {
	job := NewJob("sess", "person.json", []byte(personJSON), personMapping())
	testWorker(nil).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors: %v)", snap.Status, snap.Errors)
	}
	want := `{"fullName":"Alice","location":{"city":"Paris"}}`
	if string(snap.Output) != want {
		t.Errorf("expected output %s, got %s", want, snap.Output)
	}
	if snap.StoredKey != "" {
		t.Errorf("expected no stored key, got %q", snap.StoredKey)
	}
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}
}

func TestWorker_ProcessStoresOutput(t *testing.T) {
	sink := &fakeSink{}
	job := NewJob("sess", "person.json", []byte(personJSON), personMapping())
	testWorker(sink).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors: %v)", snap.Status, snap.Errors)
	}
	wantKey := "mappings/sess/outputs/" + job.ID
	if snap.StoredKey != wantKey {
		t.Errorf("expected stored key %q, got %q", wantKey, snap.StoredKey)
	}
	if len(sink.keys) != 1 || sink.keys[0] != wantKey {
		t.Errorf("unexpected sink keys %v", sink.keys)
	}
}

func TestWorker_RetriesRetryableErrors(t *testing.T) {
	sink := &fakeSink{failures: []error{
		&pathstore.RetryableError{Op: "put", StatusCode: 503, Err: errors.New("busy")},
	}}
	job := NewJob("sess", "person.json", []byte(personJSON), personMapping())
	testWorker(sink).Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected completed after retry, got %q", got)
	}
	if sink.calls != 2 {
		t.Errorf("expected 2 sink calls, got %d", sink.calls)
	}
}

func TestWorker_PermanentStoreError(t *testing.T) {
	sink := &fakeSink{failures: []error{errors.New("bad request")}}
	job := NewJob("sess", "person.json", []byte(personJSON), personMapping())
	testWorker(sink).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "storing" {
		t.Fatalf("expected failed in storing, got %q/%q", snap.Status, snap.Phase)
	}
	if sink.calls != 1 {
		t.Errorf("expected no retry, got %d calls", sink.calls)
	}
	if len(snap.Output) == 0 {
		t.Error("expected output to be kept on store failure")
	}
}

func TestWorker_LoadFailures(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"unsupported extension", "person.txt", personJSON},
		{"malformed json", "person.json", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("sess", tt.filename, []byte(tt.data), personMapping())
			testWorker(nil).Process(context.Background(), job)

			snap := job.Snapshot()
			if snap.Status != StatusFailed || snap.Phase != "loading" {
				t.Fatalf("expected failed in loading, got %q/%q", snap.Status, snap.Phase)
			}
			if len(snap.Errors) != 1 {
				t.Errorf("expected one error, got %v", snap.Errors)
			}
		})
	}
}

func TestOrchestrator_ProcessesJobs(t *testing.T) {
	cfg := config.Defaults()
	cfg.WorkerCount = 2
	cfg.MaxQueueSize = 10

	eng := engine.New(engine.DefaultOptions(), discardLogger(), nil)
	sink := &fakeSink{}
	o := NewOrchestrator(cfg, eng, sink, discardLogger(), nil)
	o.Start(context.Background())
	defer o.Stop()

	var jobs []*Job
	for range 3 {
		job := NewJob("sess", "person.json", []byte(personJSON), personMapping())
		if err := o.Submit(job); err != nil {
			t.Fatalf("submit: %v", err)
		}
		jobs = append(jobs, job)
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, job := range jobs {
		for !o.GetJob(job.ID).Snapshot().Done() {
			if time.Now().After(deadline) {
				t.Fatalf("job %s did not finish", job.ID)
			}
			time.Sleep(5 * time.Millisecond)
		}
		if got := job.Snapshot().Status; got != StatusCompleted {
			t.Errorf("job %s: expected completed, got %q", job.ID, got)
		}
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxQueueSize = 1

	eng := engine.New(engine.DefaultOptions(), discardLogger(), nil)
	// Not started: nothing drains the queue.
	o := NewOrchestrator(cfg, eng, nil, discardLogger(), nil)

	if err := o.Submit(NewJob("s", "a.json", []byte(`{}`), mapping.NewStore())); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job := NewJob("s", "b.json", []byte(`{}`), mapping.NewStore())
	err := o.Submit(job)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if got := o.GetJob(job.ID).Snapshot().Status; got != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", got)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	cfg := config.Defaults()
	cfg.WorkerCount = 2

	eng := engine.New(engine.DefaultOptions(), discardLogger(), nil)
	o := NewOrchestrator(cfg, eng, nil, discardLogger(), nil)
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	job := NewJob("s", "late.json", []byte(`{}`), mapping.NewStore())
	if err := o.Submit(job); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if o.GetJob(job.ID) != nil {
		t.Error("rejected job should not be stored")
	}
}

func TestOrchestrator_StopDuringSubmits(t *testing.T) {
	cfg := config.Defaults()
	cfg.WorkerCount = 1
	cfg.MaxQueueSize = 4

	eng := engine.New(engine.DefaultOptions(), discardLogger(), nil)
	o := NewOrchestrator(cfg, eng, nil, discardLogger(), nil)
	o.Start(context.Background())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				job := NewJob("s", fmt.Sprintf("%d-%d.json", i, j), []byte(`{}`), mapping.NewStore())
				err := o.Submit(job)
				if err != nil && !errors.Is(err, ErrStopped) && !errors.Is(err, ErrQueueFull) {
					t.Errorf("unexpected submit error: %v", err)
					return
				}
			}
		}()
	}
	o.Stop()
	wg.Wait()
}
