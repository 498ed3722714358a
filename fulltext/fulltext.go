// Package fulltext specifies the contract for a full-text token index
// across entities. No indexing implementation ships with this server: the
// NoopIndexer satisfies the interface when fulltext is disabled, and
// Search on a disabled index reports precondition-failed, matching the
// "400 if disabled" contract of the /search endpoint.
package fulltext

import "github.com/evalgo/rserv/rerr"

// Hit is one full-text search result.
type Hit struct {
	Entity string `json:"entity"`
	ID     int    `json:"id"`
	Score  float64 `json:"score"`
}

// Indexer is the contract a full-text backend must satisfy: index a
// document's text on write, drop it on delete, and search across every
// indexed entity.
type Indexer interface {
	Index(entity string, id int, text string) error
	Remove(entity string, id int) error
	Search(query string) ([]Hit, error)
	Enabled() bool
}

// NoopIndexer is the Indexer used when fulltext_enabled is false: writes
// and deletes are accepted and discarded, and Search always reports that
// the feature is disabled.
type NoopIndexer struct{}

func (NoopIndexer) Index(entity string, id int, text string) error { return nil }
func (NoopIndexer) Remove(entity string, id int) error              { return nil }
func (NoopIndexer) Enabled() bool                                   { return false }

func (NoopIndexer) Search(query string) ([]Hit, error) {
	return nil, rerr.New(rerr.PreconditionFailed, "full-text search is disabled")
}

// UnimplementedIndexer is selected when fulltext_enabled is true: the
// option exists in configuration but no token index backend is built, so
// every operation reports precondition-failed rather than silently
// discarding writes the way NoopIndexer does for the disabled case.
type UnimplementedIndexer struct{}

func (UnimplementedIndexer) Index(entity string, id int, text string) error {
	return rerr.New(rerr.PreconditionFailed, "full-text indexing is not implemented")
}

func (UnimplementedIndexer) Remove(entity string, id int) error {
	return rerr.New(rerr.PreconditionFailed, "full-text indexing is not implemented")
}

func (UnimplementedIndexer) Enabled() bool { return true }

func (UnimplementedIndexer) Search(query string) ([]Hit, error) {
	return nil, rerr.New(rerr.PreconditionFailed, "full-text search is not implemented")
}
