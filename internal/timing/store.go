// Package timing tracks in-flight timing sessions keyed by execution identity.
//
// Sessions are never stored per observer or per goroutine: two partitions of
// the same step running on different goroutines get distinct keys and cannot
// overwrite each other's start time.
package timing

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Kind is the execution level a session measures.
type Kind uint8

const (
	KindJob Kind = iota + 1
	KindStep
	KindChunk
)

func (k Kind) String() string {
	switch k {
	case KindJob:
		return "job"
	case KindStep:
		return "step"
	case KindChunk:
		return "chunk"
	default:
		return "unknown"
	}
}

// Key identifies a session.
type Key struct {
	Kind           Kind
	JobExecutionID int64
	StepName       string
	ChunkSequence  int64
}

func (k Key) String() string {
	switch k.Kind {
	case KindJob:
		return fmt.Sprintf("job/%d", k.JobExecutionID)
	case KindStep:
		return fmt.Sprintf("step/%d/%s", k.JobExecutionID, k.StepName)
	default:
		return fmt.Sprintf("%s/%d/%s/%d", k.Kind, k.JobExecutionID, k.StepName, k.ChunkSequence)
	}
}

// JobKey keys a job timer.
func JobKey(jobExecutionID int64) Key {
	return Key{Kind: KindJob, JobExecutionID: jobExecutionID}
}

// StepKey keys a step timer.
func StepKey(jobExecutionID int64, stepName string) Key {
	return Key{Kind: KindStep, JobExecutionID: jobExecutionID, StepName: stepName}
}

// ChunkKey keys a chunk timer.
func ChunkKey(jobExecutionID int64, stepName string, seq int64) Key {
	return Key{Kind: KindChunk, JobExecutionID: jobExecutionID, StepName: stepName, ChunkSequence: seq}
}

// Store maps session keys to start times. Safe for concurrent use.
type Store struct {
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[Key]time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:    clockwork.NewRealClock(),
		sessions: make(map[Key]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start opens a session for key. An unstopped session under the same key is
// abandoned and replaced.
func (s *Store) Start(key Key) {
	now := s.clock.Now()
	s.mu.Lock()
	_, replaced := s.sessions[key]
	s.sessions[key] = now
	s.mu.Unlock()

	if replaced {
		slog.Debug("Abandoned unstopped timing session", slog.String("session", key.String()))
	}
}

// Stop closes the session for key and returns its elapsed time. ok is false
// when no session was open; that is logged and otherwise ignored.
func (s *Store) Stop(key Key) (elapsed time.Duration, ok bool) {
	s.mu.Lock()
	started, ok := s.sessions[key]
	if ok {
		delete(s.sessions, key)
	}
	s.mu.Unlock()

	if !ok {
		slog.Debug("No active timing session", slog.String("session", key.String()))
		return 0, false
	}
	return s.clock.Since(started), true
}

// Forget drops every session that belongs to jobExecutionID and returns how
// many were dropped. Called once a job is finished so sessions of steps or
// chunks that never reported back do not accumulate.
func (s *Store) Forget(jobExecutionID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.sessions {
		if k.JobExecutionID == jobExecutionID {
			delete(s.sessions, k)
			n++
		}
	}
	return n
}

// Len is the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
