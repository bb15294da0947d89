// Package usage records per-request token and cost accounting across
// pluggable backends.
package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one completed or failed orchestration, written once and
// never updated.
type Record struct {
	ID               string        `json:"id"`
	RequestID        string        `json:"request_id,omitempty"`
	Caller           string        `json:"caller"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Cost             float64       `json:"cost"`
	Latency          time.Duration `json:"latency_ns"`
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Sink receives usage records. Recording is fire and forget from the
// orchestrator's point of view: a failed write is logged, never surfaced
// to the caller.
type Sink interface {
	Record(ctx context.Context, rec *Record) error
}

// Reader lists recorded usage, newest first. Not every sink can read
// back what it wrote; the redis publisher is write-only.
type Reader interface {
	ListByCaller(ctx context.Context, caller string, limit int) ([]*Record, error)
}

// normalize fills the fields every backend expects to be present.
func normalize(rec *Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.TotalTokens == 0 {
		rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens
	}
}

// MemoryStore keeps records in process memory. It backs tests and small
// single-process deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records []*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record implements Sink.
func (s *MemoryStore) Record(ctx context.Context, rec *Record) error {
	normalize(rec)
	stored := *rec

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &stored)
	return nil
}

// ListByCaller implements Reader.
func (s *MemoryStore) ListByCaller(ctx context.Context, caller string, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Caller != caller {
			continue
		}
		rec := *s.records[i]
		out = append(out, &rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Records returns a snapshot of everything recorded, in write order.
func (s *MemoryStore) Records() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Record, len(s.records))
	for i, rec := range s.records {
		clone := *rec
		out[i] = &clone
	}
	return out
}
