package query

import (
	"context"
	"sync"
	"time"

	"github.com/evalgo/rserv/rerr"
	"github.com/evalgo/rserv/sulpher"
	"github.com/google/uuid"
)

// Executor runs a parsed plan and returns its result, matching
// sulpher.Execute's shape so Manager stays independent of how the caller
// obtained the graph reader.
type Executor func(ctx context.Context) (*sulpher.Result, error)

// Manager tracks asynchronous Sulpher queries by UUID, runs them on a
// bounded worker pool, and evicts sessions past graphQueryTTL. The
// submitting request only calls Submit, which returns immediately; the
// worker pool executes the query in the background.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	pool  *pool
	ttl   time.Duration
	audit *AuditLedger
}

// NewManager builds a Manager with the given worker concurrency and
// session TTL. audit may be nil, in which case terminal sessions are kept
// only in memory.
func NewManager(workers int, ttl time.Duration, audit *AuditLedger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		pool:     newPool(workers),
		ttl:      ttl,
		audit:    audit,
	}
}

// Submit records a pending session, launches execution on the worker pool,
// and returns the new session id immediately.
func (m *Manager) Submit(queryText string, run Executor) string {
	id := uuid.NewString()
	now := time.Now()
	s := &Session{
		ID:        id,
		QueryText: queryText,
		Status:    StatusPending,
		Stats:     Stats{StartTime: &now},
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	go m.pool.submit(context.Background(), func() {
		m.execute(id, run)
	})

	return id
}

func (m *Manager) execute(id string, run Executor) {
	m.mu.Lock()
	s := m.sessions[id]
	s.Status = StatusRunning
	m.mu.Unlock()

	result, err := run(context.Background())

	end := time.Now()
	m.mu.Lock()
	s.Stats.EndTime = &end
	if err != nil {
		s.Status = StatusFailed
		s.Result = err.Error()
	} else {
		s.Status = StatusCompleted
		s.Result = result.Rows
		s.Stats.NodesTraversed = result.Stats.NodesTraversed
	}
	snapshot := *s
	m.mu.Unlock()

	if m.audit != nil {
		_ = m.audit.Record(snapshot)
	}
}

// Status returns the current record for a session id.
func (m *Manager) Status(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Result returns the session's result, or a precondition-failed fault if
// the query has not yet completed.
func (m *Manager) Result(id string) (interface{}, error) {
	s, ok := m.Status(id)
	if !ok {
		return nil, rerr.NotFoundf("query %s not found", id)
	}
	if s.Status != StatusCompleted {
		return nil, rerr.Newf(rerr.PreconditionFailed, "query %s is not complete (status=%s)", id, s.Status)
	}
	return s.Result, nil
}

// Cleanup removes sessions whose EndTime is older than the configured
// TTL, intended to run periodically from a background goroutine.
func (m *Manager) Cleanup() {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.Stats.EndTime != nil && s.Stats.EndTime.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
