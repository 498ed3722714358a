package sulpher

import (
	"path/filepath"
	"testing"

	"github.com/evalgo/rserv/config"
	"github.com/evalgo/rserv/graph"
	"github.com/evalgo/rserv/model"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOverlay(t *testing.T) *graph.Overlay {
	dir := t.TempDir()
	return graph.New(filepath.Join(dir, "graph.data"), filepath.Join(dir, "graph.index"))
}

func TestExecuteSimpleTraversal(t *testing.T) {
	o := newOverlay(t)
	o.Upsert("person", 1, model.Document{"id": float64(1), "name": "Alice"},
		map[string]model.Ref{"employer": {Entity: "company", ID: 9}})
	o.Upsert("company", 9, model.Document{"id": float64(9), "name": "Acme"}, nil)

	plan, err := Parse(`MATCH (p:person)-[:employer]->(c:company) WHERE c.id = 9 RETURN p.name`)
	require.NoError(t, err)

	result, err := Execute(plan, o, false, 6, config.CycleWarn, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Alice", result.Rows[0]["p.name"])
}

func TestExecuteDFSCycleError(t *testing.T) {
	o := newOverlay(t)
	o.Upsert("a", 1, model.Document{"id": float64(1)}, map[string]model.Ref{"next": {Entity: "a", ID: 2}})
	o.Upsert("a", 2, model.Document{"id": float64(2)}, map[string]model.Ref{"next": {Entity: "a", ID: 1}})

	plan, err := Parse(`DFS MATCH (x)-[]->(y)-[]->(z) RETURN z`)
	require.NoError(t, err)

	_, err = Execute(plan, o, false, 6, config.CycleError, nil)
	require.Error(t, err)
}

func TestExecuteDFSCycleWarnStopsReentry(t *testing.T) {
	o := newOverlay(t)
	o.Upsert("a", 1, model.Document{"id": float64(1)}, map[string]model.Ref{"next": {Entity: "a", ID: 2}})
	o.Upsert("a", 2, model.Document{"id": float64(2)}, map[string]model.Ref{"next": {Entity: "a", ID: 1}})

	plan, err := Parse(`DFS MATCH (x)-[]->(y)-[]->(z) RETURN z`)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	result, err := Execute(plan, o, false, 6, config.CycleWarn, logger)
	require.NoError(t, err)
	assert.Empty(t, result.Rows, "a 2-cycle has no 2-hop path that avoids re-entering a visited node")
	require.NotEmpty(t, hook.Entries, "warn policy must log the suppressed re-entry")
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "cycle detected")
}

func TestExecuteDFSCycleIgnoreDoesNotLog(t *testing.T) {
	o := newOverlay(t)
	o.Upsert("a", 1, model.Document{"id": float64(1)}, map[string]model.Ref{"next": {Entity: "a", ID: 2}})
	o.Upsert("a", 2, model.Document{"id": float64(2)}, map[string]model.Ref{"next": {Entity: "a", ID: 1}})

	plan, err := Parse(`DFS MATCH (x)-[]->(y)-[]->(z) RETURN z`)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	result, err := Execute(plan, o, false, 6, config.CycleIgnore, logger)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Empty(t, hook.Entries, "ignore policy suppresses re-entry silently")
}

func TestExecuteCountAggregate(t *testing.T) {
	o := newOverlay(t)
	o.Upsert("person", 1, model.Document{"id": float64(1)}, nil)
	o.Upsert("person", 2, model.Document{"id": float64(2)}, nil)

	plan, err := Parse(`MATCH (p:person) RETURN COUNT(p)`)
	require.NoError(t, err)

	result, err := Execute(plan, o, false, 6, config.CycleWarn, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 2, result.Rows[0]["COUNT(p)"])
}

func TestExecuteMaxDepthBounds(t *testing.T) {
	o := newOverlay(t)
	o.Upsert("a", 1, model.Document{"id": float64(1)}, map[string]model.Ref{"next": {Entity: "a", ID: 2}})
	o.Upsert("a", 2, model.Document{"id": float64(2)}, map[string]model.Ref{"next": {Entity: "a", ID: 3}})
	o.Upsert("a", 3, model.Document{"id": float64(3)}, nil)

	plan, err := Parse(`MATCH (x)-[]->(y)-[]->(z) RETURN z`)
	require.NoError(t, err)

	result, err := Execute(plan, o, false, 1, config.CycleWarn, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Rows, "path needs depth 2 but max_depth is 1")
}
