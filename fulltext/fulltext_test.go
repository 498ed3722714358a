package fulltext

import (
	"testing"

	"github.com/evalgo/rserv/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopIndexerDisabled(t *testing.T) {
	var idx Indexer = NoopIndexer{}
	assert.False(t, idx.Enabled())
	assert.NoError(t, idx.Index("post", 1, "hello"))

	_, err := idx.Search("hello")
	require.Error(t, err)
	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.PreconditionFailed, re.Kind)
}

func TestUnimplementedIndexerEnabledButInert(t *testing.T) {
	var idx Indexer = UnimplementedIndexer{}
	assert.True(t, idx.Enabled())

	_, err := idx.Search("hello")
	require.Error(t, err)
	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.PreconditionFailed, re.Kind)
}
