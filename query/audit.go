// Package query is the Sulpher query session manager: it assigns each
// submitted query a UUID, runs it on a bounded worker pool so the
// submitting request returns immediately, tracks status/result/stats, and
// periodically evicts sessions past their TTL. Terminal sessions are
// additionally appended to a bbolt-backed audit ledger so completed or
// failed query history survives process restarts, independent of the
// in-memory session table.
package query

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const auditBucket = "query_sessions"

// AuditLedger persists terminal session records for later inspection: an
// open-with-timeout bbolt handle with JSON-marshalled values keyed by
// session id inside a single bucket.
type AuditLedger struct {
	db *bolt.DB
}

// OpenAuditLedger opens or creates the bbolt file at path and ensures the
// session bucket exists.
func OpenAuditLedger(path string) (*AuditLedger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit ledger: %w", err)
	}
	l := &AuditLedger{db: db}
	if err := l.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(auditBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit bucket: %w", err)
	}
	return l, nil
}

// Record appends or overwrites a session's terminal record, keyed by
// session id.
func (l *AuditLedger) Record(s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(auditBucket))
		return b.Put([]byte(s.ID), data)
	})
}

// Get loads a previously recorded session by id.
func (l *AuditLedger) Get(id string) (Session, bool) {
	var s Session
	found := false
	_ = l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(auditBucket))
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		found = true
		return nil
	})
	return s, found
}

// Close releases the underlying bbolt file handle.
func (l *AuditLedger) Close() error {
	return l.db.Close()
}
