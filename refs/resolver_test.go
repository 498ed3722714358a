package refs

import (
	"testing"

	"github.com/evalgo/rserv/model"
	"github.com/evalgo/rserv/rerr"
	"github.com/stretchr/testify/assert"
)

func TestExpandSingleHop(t *testing.T) {
	doc := model.Document{
		"id":       float64(1),
		"employer": model.Ref{Entity: "company", ID: 9}.ToMap(),
	}
	load := func(entity string, id int) (model.Document, error) {
		if entity == "company" && id == 9 {
			return model.Document{"id": float64(9), "name": "Acme"}, nil
		}
		return nil, rerr.NotFoundf("missing")
	}

	out := Expand(doc, map[string]bool{"employer": true}, 2, load)
	employer, ok := out["employer"].(model.Document)
	assert.True(t, ok)
	assert.Equal(t, "Acme", employer["name"])
}

func TestExpandStopsAtMaxDepth(t *testing.T) {
	calls := 0
	var load Loader
	load = func(entity string, id int) (model.Document, error) {
		calls++
		return model.Document{"id": float64(id), "next": model.Ref{Entity: "node", ID: id + 1}.ToMap()}, nil
	}

	doc := model.Document{"id": float64(0), "next": model.Ref{Entity: "node", ID: 1}.ToMap()}
	out := Expand(doc, map[string]bool{"next": true}, 2, load)

	// depth 0 -> expand "next" (depth1 load), depth1 -> expand "next" again (depth2 load), stop.
	assert.Equal(t, 2, calls)
	_ = out
}

func TestExpandLeavesRefWhenTargetMissing(t *testing.T) {
	doc := model.Document{"owner": model.Ref{Entity: "person", ID: 404}.ToMap()}
	load := func(entity string, id int) (model.Document, error) {
		return nil, rerr.NotFoundf("missing")
	}

	out := Expand(doc, map[string]bool{"owner": true}, 3, load)
	m, ok := out["owner"].(map[string]interface{})
	assert.True(t, ok)
	assert.True(t, model.IsRef(m))
}
