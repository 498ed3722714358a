package sulpher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleMatch(t *testing.T) {
	plan, err := Parse(`MATCH (p:person)-[:employer]->(c:company) WHERE c.id = 9 RETURN p.name`)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmBFS, plan.Algorithm)
	require.Len(t, plan.Path, 2)
	assert.Equal(t, "p", plan.Path[0].Node.Var)
	assert.Equal(t, "person", plan.Path[0].Node.Type)
	assert.Equal(t, "c", plan.Path[1].Node.Var)
	assert.Equal(t, "employer", plan.Path[1].InRel.Type)

	require.Len(t, plan.Where, 1)
	assert.Equal(t, "c", plan.Where[0].Var)
	assert.Equal(t, "id", plan.Where[0].Field)
	assert.Equal(t, OpEq, plan.Where[0].Op)
	assert.Equal(t, 9, plan.Where[0].Literal)

	require.Len(t, plan.Return, 1)
	assert.Equal(t, "p.name", plan.Return[0].Text)
}

func TestParseDFSWithAggregate(t *testing.T) {
	plan, err := Parse(`DFS MATCH (x)-[]->(y)-[]->(z) RETURN COUNT(z)`)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmDFS, plan.Algorithm)
	require.Len(t, plan.Path, 3)
	require.Len(t, plan.Return, 1)
	assert.Equal(t, AggCount, plan.Return[0].Agg)
	assert.Equal(t, "z", plan.Return[0].Var)
}

func TestParseMultipleWhereAnd(t *testing.T) {
	plan, err := Parse(`MATCH (p:person) WHERE p.age >= 18 AND p.active = true RETURN p`)
	require.NoError(t, err)
	require.Len(t, plan.Where, 2)
	assert.Equal(t, OpGte, plan.Where[0].Op)
	assert.Equal(t, OpEq, plan.Where[1].Op)
	assert.Equal(t, true, plan.Where[1].Literal)
}

func TestParseErrorReportsOffendingText(t *testing.T) {
	_, err := Parse(`MATCH (p:person RETURN p`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETURN")
}

func TestParseNodeWithProps(t *testing.T) {
	plan, err := Parse(`MATCH (p:person {age: 30}) RETURN p`)
	require.NoError(t, err)
	assert.Equal(t, 30, plan.Path[0].Node.Props["age"])
}
