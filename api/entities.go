package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/evalgo/rserv/cache"
	"github.com/evalgo/rserv/graph"
	"github.com/evalgo/rserv/model"
	"github.com/evalgo/rserv/refs"
	"github.com/evalgo/rserv/rerr"
	"github.com/evalgo/rserv/store"
	"github.com/labstack/echo/v4"
)

func (s *Server) idParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, rerr.InvalidArgumentf("invalid id %q", c.Param("id"))
	}
	return id, nil
}

// indexDocument applies the write-time graph overlay update for a single
// document, a no-op when the graph is disabled.
func (s *Server) indexDocument(entity string, doc model.Document) {
	if s.Overlay == nil {
		return
	}
	id, ok := model.IDOf(doc)
	if !ok {
		return
	}
	s.Overlay.Upsert(entity, id, doc, graph.RefsOf(doc))
	_ = s.Overlay.Persist()
}

func (s *Server) unindexDocument(entity string, id int) {
	if s.Overlay == nil {
		return
	}
	s.Overlay.Delete(entity, id)
	_ = s.Overlay.Persist()
}

func (s *Server) invalidate(entity string) {
	if s.Cache != nil {
		s.Cache.InvalidateTag(entity)
	}
}

func (s *Server) handleCreate(c echo.Context) error {
	entity := c.Param("entity")
	var doc model.Document
	if err := c.Bind(&doc); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}

	if ok, errs := s.Schema.Validate(entity, doc, 0); !ok {
		return fail(c, s.Log, rerr.New(rerr.InvalidArgument, "validation failed").WithDetails(errs))
	}

	id, err := s.Store.Create(entity, doc)
	if err != nil {
		return fail(c, s.Log, err)
	}
	doc["id"] = id
	s.indexDocument(entity, doc)
	s.invalidate(entity)

	return c.JSON(http.StatusCreated, map[string]interface{}{"id": id})
}

func (s *Server) handleSaveAt(c echo.Context) error {
	entity := c.Param("entity")
	id, err := s.idParam(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var doc model.Document
	if err := c.Bind(&doc); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	if ok, errs := s.Schema.Validate(entity, doc, id); !ok {
		return fail(c, s.Log, rerr.New(rerr.InvalidArgument, "validation failed").WithDetails(errs))
	}
	if err := s.Store.SaveAt(entity, id, doc); err != nil {
		return fail(c, s.Log, err)
	}
	doc["id"] = id
	s.indexDocument(entity, doc)
	s.invalidate(entity)
	return c.JSON(http.StatusCreated, map[string]interface{}{"id": id})
}

func (s *Server) handleGet(c echo.Context) error {
	entity := c.Param("entity")
	id, err := s.idParam(c)
	if err != nil {
		return fail(c, s.Log, err)
	}

	key := cache.DocKey(entity, id)
	lookup := parseLookupFields(c)
	if len(lookup) == 0 {
		if v, ok := s.Cache.Get(key); ok {
			return c.JSON(http.StatusOK, v)
		}
	}

	doc, err := s.Store.Get(entity, id)
	if err != nil {
		return fail(c, s.Log, err)
	}

	if len(lookup) > 0 {
		depth := s.Settings.RefEmbedDepth
		if v, err := strconv.Atoi(c.QueryParam("embed_depth")); err == nil && v > 0 {
			depth = v
		}
		loader := func(e string, i int) (model.Document, error) { return s.Store.Get(e, i) }
		doc = refs.Expand(doc, lookup, depth, loader)
	} else {
		s.Cache.Set(key, doc, s.Settings.CacheTTL, entity)
	}

	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleReplace(c echo.Context) error {
	entity := c.Param("entity")
	id, err := s.idParam(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var doc model.Document
	if err := c.Bind(&doc); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	if ok, errs := s.Schema.Validate(entity, doc, id); !ok {
		return fail(c, s.Log, rerr.New(rerr.InvalidArgument, "validation failed").WithDetails(errs))
	}
	if err := s.Store.Replace(entity, id, doc); err != nil {
		return fail(c, s.Log, err)
	}
	doc["id"] = id
	s.indexDocument(entity, doc)
	s.invalidate(entity)
	s.Cache.Delete(cache.DocKey(entity, id))
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handlePatch(c echo.Context) error {
	entity := c.Param("entity")
	id, err := s.idParam(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var patch model.Document
	if err := c.Bind(&patch); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}

	policy := store.NullPolicy(s.Settings.PatchNull)
	var validationErrs []string
	merged, err := s.Store.Merge(entity, id, patch, policy, func(candidate model.Document) error {
		if ok, errs := s.Schema.Validate(entity, candidate, id); !ok {
			validationErrs = errs
			return rerr.New(rerr.InvalidArgument, "validation failed")
		}
		return nil
	})
	if err != nil {
		if validationErrs != nil {
			return fail(c, s.Log, err.(*rerr.Error).WithDetails(validationErrs))
		}
		return fail(c, s.Log, err)
	}

	s.indexDocument(entity, merged)
	s.invalidate(entity)
	s.Cache.Delete(cache.DocKey(entity, id))
	return c.JSON(http.StatusOK, merged)
}

func (s *Server) handleDelete(c echo.Context) error {
	entity := c.Param("entity")
	id, err := s.idParam(c)
	if err != nil {
		return fail(c, s.Log, err)
	}

	var cascaded []string
	if s.Settings.CascadingDelete {
		cascaded, err = s.Store.DeleteCascading(entity, id)
		if err != nil {
			return fail(c, s.Log, err)
		}
		for _, key := range cascaded {
			e, idStr, ok := strings.Cut(key, ":")
			if !ok {
				continue
			}
			did, _ := strconv.Atoi(idStr)
			s.unindexDocument(e, did)
			s.invalidate(e)
			s.Cache.Delete(cache.DocKey(e, did))
		}
	} else {
		if err := s.Store.Delete(entity, id); err != nil {
			return fail(c, s.Log, err)
		}
		s.unindexDocument(entity, id)
		s.invalidate(entity)
		s.Cache.Delete(cache.DocKey(entity, id))
		cascaded = []string{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"cascaded_deletes": cascaded})
}

func (s *Server) handleList(c echo.Context) error {
	entity := c.Param("entity")
	page, perPage := pageParams(c, s.Settings.DefaultPageSize)
	sortSpec := c.QueryParam("sort")

	key := cache.ListKey(entity, page, perPage, sortSpec)
	if v, ok := s.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, v)
	}

	docs, err := s.Store.List(entity)
	if err != nil {
		return fail(c, s.Log, err)
	}
	applySort(docs, parseSort(sortSpec))
	pageDocs := paginate(docs, page, perPage)

	result := map[string]interface{}{
		"items":    pageDocs,
		"page":     page,
		"per_page": perPage,
		"total":    len(docs),
	}
	s.Cache.Set(key, result, s.Settings.CacheTTL, entity)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleSearch(c echo.Context) error {
	entity := c.Param("entity")
	field := c.QueryParam("field")
	query := c.QueryParam("query")
	if field == "" || query == "" {
		return fail(c, s.Log, rerr.InvalidArgumentf("search requires both field and query parameters"))
	}
	page, perPage := pageParams(c, s.Settings.DefaultPageSize)
	sortSpec := c.QueryParam("sort")

	key := cache.SearchKey(entity, query, field, page, perPage, sortSpec)
	if v, ok := s.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, v)
	}

	docs, err := s.Store.List(entity)
	if err != nil {
		return fail(c, s.Log, err)
	}

	needle := strings.ToLower(query)
	var matches []model.Document
	for _, d := range docs {
		v, ok := d[field]
		if !ok {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(str), needle) {
			matches = append(matches, d)
		}
	}

	applySort(matches, parseSort(sortSpec))
	pageMatches := paginate(matches, page, perPage)

	result := map[string]interface{}{
		"items":    pageMatches,
		"page":     page,
		"per_page": perPage,
		"total":    len(matches),
	}
	s.Cache.Set(key, result, s.Settings.CacheTTL, entity)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleFulltextSearch(c echo.Context) error {
	var body struct {
		Query string `json:"query"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	hits, err := s.Fulltext.Search(body.Query)
	if err != nil {
		return fail(c, s.Log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}
