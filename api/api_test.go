package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evalgo/rserv/cache"
	"github.com/evalgo/rserv/config"
	"github.com/evalgo/rserv/fulltext"
	"github.com/evalgo/rserv/graph"
	"github.com/evalgo/rserv/query"
	"github.com/evalgo/rserv/rlog"
	"github.com/evalgo/rserv/schema"
	"github.com/evalgo/rserv/store"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *echo.Echo) {
	t.Helper()
	dir := t.TempDir()

	settings := config.Defaults()
	settings.BaseDir = filepath.Join(dir, "data")
	settings.SchemaRoot = filepath.Join(dir, "schema")
	settings.CascadingDelete = true

	st := store.New(settings.BaseDir, settings.SchemaName)
	reg, err := schema.Load(settings.BaseDir, settings.SchemaRoot, settings.SchemaName, rlog.Default)
	require.NoError(t, err)

	overlay := graph.New(filepath.Join(dir, "graph.data"), filepath.Join(dir, "graph.index"))
	qm := query.NewManager(settings.QueryWorkers, settings.GraphQueryTTL, nil)

	s := &Server{
		Settings: settings,
		Store:    st,
		Schema:   reg,
		Overlay:  overlay,
		Queries:  qm,
		Cache:    cache.New(),
		Fulltext: fulltext.NoopIndexer{},
		Log:      rlog.Default,
	}
	return s, s.NewEcho()
}

func newTestServerWithSchema(t *testing.T, entity, schemaJSON string) (*Server, *echo.Echo) {
	t.Helper()
	dir := t.TempDir()

	settings := config.Defaults()
	settings.BaseDir = filepath.Join(dir, "data")
	settings.SchemaRoot = filepath.Join(dir, "schema")
	settings.CascadingDelete = true

	schemaDir := filepath.Join(settings.SchemaRoot, settings.SchemaName)
	require.NoError(t, os.MkdirAll(schemaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, entity+".json"), []byte(schemaJSON), 0o644))

	st := store.New(settings.BaseDir, settings.SchemaName)
	reg, err := schema.Load(settings.BaseDir, settings.SchemaRoot, settings.SchemaName, rlog.Default)
	require.NoError(t, err)

	overlay := graph.New(filepath.Join(dir, "graph.data"), filepath.Join(dir, "graph.index"))
	qm := query.NewManager(settings.QueryWorkers, settings.GraphQueryTTL, nil)

	s := &Server{
		Settings: settings,
		Store:    st,
		Schema:   reg,
		Overlay:  overlay,
		Queries:  qm,
		Cache:    cache.New(),
		Fulltext: fulltext.NoopIndexer{},
		Log:      rlog.Default,
	}
	return s, s.NewEcho()
}

func doJSON(e *echo.Echo, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGet(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/person", map[string]interface{}{"name": "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int(created["id"].(float64))

	rec = doJSON(e, http.MethodGet, fmt.Sprintf("/api/v1/person/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Ada", doc["name"])
}

func TestGetNotFoundEnvelope(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/person/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, float64(404), errBody["status_code"])
	links := body["_links"].(map[string]interface{})
	assert.Equal(t, "/api/v1/person/999", links["self"])
}

func TestListPaginationAndSort(t *testing.T) {
	_, e := newTestServer(t)

	doJSON(e, http.MethodPost, "/api/v1/person", map[string]interface{}{"name": "Bob"})
	doJSON(e, http.MethodPost, "/api/v1/person", map[string]interface{}{"name": "Ada"})
	doJSON(e, http.MethodPost, "/api/v1/person", map[string]interface{}{"name": "Carl"})

	rec := doJSON(e, http.MethodGet, "/api/v1/person/list?sort=name:asc&per_page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	items := result["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "Ada", first["name"])
	assert.Equal(t, float64(3), result["total"])
}

func TestDeleteCascade(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/company", map[string]interface{}{"name": "Acme"})
	var company map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &company)
	companyID := int(company["id"].(float64))

	rec = doJSON(e, http.MethodPost, "/api/v1/person", map[string]interface{}{
		"name":    "Ada",
		"company": map[string]interface{}{"type": "REF", "entity": "company", "id": companyID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodDelete, fmt.Sprintf("/api/v1/company/%d", companyID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	cascaded := result["cascaded_deletes"].([]interface{})
	assert.Contains(t, cascaded, "person:1")
}

func TestGraphQueryLifecycle(t *testing.T) {
	_, e := newTestServer(t)

	doJSON(e, http.MethodPost, "/api/v1/person", map[string]interface{}{"name": "Ada"})

	rec := doJSON(e, http.MethodPost, "/api/v1/graph/query", map[string]interface{}{
		"query": "MATCH (p:person) RETURN p",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	queryID := submitted["query_id"].(string)
	require.NotEmpty(t, queryID)

	deadline := time.Now().Add(2 * time.Second)
	var statusBody map[string]interface{}
	for time.Now().Before(deadline) {
		rec = doJSON(e, http.MethodGet, "/api/v1/graph/query/"+queryID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		json.Unmarshal(rec.Body.Bytes(), &statusBody)
		if statusBody["status"] == "completed" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, "completed", statusBody["status"])

	rec = doJSON(e, http.MethodGet, "/api/v1/graph/query/"+queryID+"/result", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPatchRejectsInvalidMergeWithoutPersisting(t *testing.T) {
	s, e := newTestServerWithSchema(t, "person", `{"name":{"type":"string","required":true,"max_length":5}}`)

	rec := doJSON(e, http.MethodPost, "/api/v1/person", map[string]interface{}{"name": "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int(created["id"].(float64))

	rec = doJSON(e, http.MethodPatch, fmt.Sprintf("/api/v1/person/%d", id), map[string]interface{}{"name": "Way Too Long A Name"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	doc, err := s.Store.Get("person", id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc["name"])
}

func TestFulltextSearchDisabled(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "ada"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

