// Package session keeps mapping sessions between requests.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/fieldmap/internal/mapping"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Documents are the decoded uploads a session works on.
type Documents struct {
	SourceData   any
	SourceSchema any
	TargetSchema any

	SourceDataName   string
	SourceSchemaName string
	TargetSchemaName string
}

// Session is one upload -> map -> result flow.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	docs    Documents
	mapping *mapping.Store
	output  []byte
}

// Documents returns the session's uploads.
func (s *Session) Documents() Documents {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs
}

// WithMapping runs fn with exclusive access to the session's mapping table.
func (s *Session) WithMapping(fn func(m *mapping.Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.mapping)
	s.UpdatedAt = time.Now()
}

// Mapping returns a copy of the mapping table.
func (s *Session) Mapping() *mapping.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Clone()
}

// SetOutput records the serialized output document.
func (s *Session) SetOutput(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = b
	s.UpdatedAt = time.Now()
}

// Output returns the serialized output document, if one was built.
func (s *Session) Output() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output, s.output != nil
}

// Snapshot is a JSON-safe view of a session.
type Snapshot struct {
	ID           string    `json:"session_id"`
	SourceData   string    `json:"source_data"`
	SourceSchema string    `json:"source_schema"`
	TargetSchema string    `json:"target_schema"`
	Mappings     int       `json:"mappings"`
	HasOutput    bool      `json:"has_output"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.ID,
		SourceData:   s.docs.SourceDataName,
		SourceSchema: s.docs.SourceSchemaName,
		TargetSchema: s.docs.TargetSchemaName,
		Mappings:     s.mapping.Len(),
		HasOutput:    s.output != nil,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.UpdatedAt)
}

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new session over docs.
func (s *Store) Create(docs Documents) *Session {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		docs:      docs,
		mapping:   mapping.NewStore(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a live session and refreshes its expiry.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now()
	if sess.idleSince(now) > s.ttl {
		s.Delete(id)
		return nil, ErrNotFound
	}
	sess.touch(now)
	return sess, nil
}

// Delete removes a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var removed int
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
