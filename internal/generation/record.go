package generation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of a Record.
type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Artifact is a generated dish image.
type Artifact struct {
	Key       string    `json:"key"`
	Slug      string    `json:"slug"`
	Style     string    `json:"style_version"`
	Epoch     uint64    `json:"epoch"`
	URL       string    `json:"url"`
	MIMEType  string    `json:"mime_type,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is one generation attempt for a key. It moves from Pending to
// Succeeded or Failed exactly once; a failed record is never reused, the
// cache replaces it with a new Pending record on the next Begin.
type Record struct {
	key       Key
	id        uuid.UUID
	createdAt time.Time
	done      chan struct{}
	waiters   atomic.Int64

	mu          sync.RWMutex
	state       State
	artifact    Artifact
	err         error
	completedAt time.Time
}

func newRecord(key Key, now time.Time) *Record {
	return &Record{
		key:       key,
		id:        uuid.New(),
		createdAt: now,
		done:      make(chan struct{}),
	}
}

// newSucceededRecord restores a record loaded from persistent storage
func newSucceededRecord(key Key, artifact Artifact, now time.Time) *Record {
	r := newRecord(key, artifact.CreatedAt)
	if r.createdAt.IsZero() {
		r.createdAt = now
	}
	r.state = StateSucceeded
	r.artifact = artifact
	r.completedAt = r.createdAt
	close(r.done)
	return r
}

// finish publishes the terminal state. The done channel is closed after the
// fields are written, so a receive from Done observes them.
func (r *Record) finish(state State, artifact Artifact, err error, now time.Time) bool {
	r.mu.Lock()
	if r.state != StatePending {
		r.mu.Unlock()
		return false
	}
	r.state = state
	r.artifact = artifact
	r.err = err
	r.completedAt = now
	r.mu.Unlock()
	close(r.done)
	return true
}

// Key returns the key the record belongs to.
func (r *Record) Key() Key { return r.key }

// AttemptID distinguishes attempts for the same key.
func (r *Record) AttemptID() uuid.UUID { return r.id }

// CreatedAt is when the attempt began.
func (r *Record) CreatedAt() time.Time { return r.createdAt }

// Done is closed once the record is terminal.
func (r *Record) Done() <-chan struct{} { return r.done }

// State returns the current state.
func (r *Record) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Terminal reports whether the record has succeeded or failed.
func (r *Record) Terminal() bool { return r.State() != StatePending }

// CompletedAt is zero while pending.
func (r *Record) CompletedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completedAt
}

// Outcome returns the artifact or the error of a terminal record. It must
// not be called before Done is closed.
func (r *Record) Outcome() (Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == StateFailed {
		return Artifact{}, r.err
	}
	return r.artifact, nil
}

// Waiters is the number of callers currently blocked on the record.
func (r *Record) Waiters() int64 { return r.waiters.Load() }
