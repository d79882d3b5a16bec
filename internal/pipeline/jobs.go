package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/fieldmap/internal/mapping"
	"github.com/dgallion1/fieldmap/internal/resolve"
)

// JobStatus represents the state of a batch mapping job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusLoading   JobStatus = "loading"
	StatusResolving JobStatus = "resolving"
	StatusStoring   JobStatus = "storing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one data file mapped with a session's table.
type Job struct {
	mu sync.Mutex

	ID        string `json:"job_id"`
	SessionID string `json:"session_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData  []byte
	mapping   *mapping.Store
	output    json.RawMessage
	stats     resolve.Stats
	storedKey string
	errors    []string
}

// NewJob creates a queued job over data. The mapping table is copied.
func NewJob(sessionID, filename string, data []byte, m *mapping.Store) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
		mapping:   m.Clone(),
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// SetResult records the encoded output and its resolution stats.
func (j *Job) SetResult(output []byte, stats resolve.Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = output
	j.stats = stats
	j.UpdatedAt = time.Now()
}

// SetStoredKey records where the output was written.
func (j *Job) SetStoredKey(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.storedKey = key
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Mapping returns the table the job resolves with.
func (j *Job) Mapping() *mapping.Store {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.mapping
}

// release drops the input once it is no longer needed.
func (j *Job) release() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string          `json:"job_id"`
	SessionID string          `json:"session_id"`
	Status    JobStatus       `json:"status"`
	Phase     string          `json:"phase"`
	Filename  string          `json:"filename"`
	Stats     resolve.Stats   `json:"stats"`
	StoredKey string          `json:"stored_key,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Errors    []string        `json:"errors"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	return JobSnapshot{
		ID:        j.ID,
		SessionID: j.SessionID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Stats:     j.stats,
		StoredKey: j.storedKey,
		Output:    j.output,
		Errors:    errs,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// Done reports whether the job reached a terminal status.
func (s JobSnapshot) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
