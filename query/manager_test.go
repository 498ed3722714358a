package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/evalgo/rserv/rerr"
	"github.com/evalgo/rserv/sulpher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, m *Manager, id string, want Status) Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, ok := m.Status(id)
		if ok && s.Status == want {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s did not reach status %s", id, want)
	return Session{}
}

func TestSubmitAndComplete(t *testing.T) {
	m := NewManager(2, time.Minute, nil)
	id := m.Submit("MATCH (p) RETURN p", func(ctx context.Context) (*sulpher.Result, error) {
		return &sulpher.Result{Rows: []map[string]interface{}{{"p": "x"}}}, nil
	})

	s := waitForStatus(t, m, id, StatusCompleted)
	assert.Equal(t, "MATCH (p) RETURN p", s.QueryText)
	require.NotNil(t, s.Stats.EndTime)
}

func TestSubmitFailure(t *testing.T) {
	m := NewManager(2, time.Minute, nil)
	id := m.Submit("MATCH (p) RETURN p", func(ctx context.Context) (*sulpher.Result, error) {
		return nil, errors.New("boom")
	})

	s := waitForStatus(t, m, id, StatusFailed)
	assert.Equal(t, "boom", s.Result)
}

func TestResultBeforeCompletionIsPreconditionFailed(t *testing.T) {
	m := NewManager(1, time.Minute, nil)
	block := make(chan struct{})
	id := m.Submit("MATCH (p) RETURN p", func(ctx context.Context) (*sulpher.Result, error) {
		<-block
		return &sulpher.Result{}, nil
	})

	_, err := m.Result(id)
	require.Error(t, err)
	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.PreconditionFailed, re.Kind)

	close(block)
	waitForStatus(t, m, id, StatusCompleted)
}

func TestCleanupEvictsExpiredSessions(t *testing.T) {
	m := NewManager(1, time.Millisecond, nil)
	id := m.Submit("MATCH (p) RETURN p", func(ctx context.Context) (*sulpher.Result, error) {
		return &sulpher.Result{}, nil
	})
	waitForStatus(t, m, id, StatusCompleted)

	time.Sleep(5 * time.Millisecond)
	m.Cleanup()

	_, ok := m.Status(id)
	assert.False(t, ok)
}

func TestAuditLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ledger, err := OpenAuditLedger(path)
	require.NoError(t, err)
	defer ledger.Close()

	s := Session{ID: "abc", QueryText: "MATCH (p) RETURN p", Status: StatusCompleted}
	require.NoError(t, ledger.Record(s))

	got, ok := ledger.Get("abc")
	require.True(t, ok)
	assert.Equal(t, s.QueryText, got.QueryText)
}
