package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	c := New()
	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestExpiry(t *testing.T) {
	c := New()
	fixed := time.Now()
	c.now = func() time.Time { return fixed }
	c.Set("k", "v", time.Second)

	c.now = func() time.Time { return fixed.Add(2 * time.Second) }
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidateTag(t *testing.T) {
	c := New()
	c.Set(DocKey("person", 1), "doc1", time.Minute, "person")
	c.Set(DocKey("company", 9), "doc9", time.Minute, "company")

	c.InvalidateTag("person")

	_, ok := c.Get(DocKey("person", 1))
	assert.False(t, ok)
	_, ok = c.Get(DocKey("company", 9))
	assert.True(t, ok)
}

func TestQueryResultsSurviveEntityInvalidation(t *testing.T) {
	c := New()
	c.Set(QueryKey("abc"), "result", time.Minute)
	c.InvalidateTag("person")

	_, ok := c.Get(QueryKey("abc"))
	assert.True(t, ok, "query results expire by TTL only, never by entity invalidation")
}

func TestSweepRemovesExpired(t *testing.T) {
	c := New()
	fixed := time.Now()
	c.now = func() time.Time { return fixed }
	c.Set("k", "v", time.Second)

	c.now = func() time.Time { return fixed.Add(2 * time.Second) }
	c.Sweep()
	assert.Equal(t, 0, c.Len())
}
