package api

import (
	"sort"
	"strconv"
	"strings"

	"github.com/evalgo/rserv/model"
	"github.com/labstack/echo/v4"
)

type sortKey struct {
	field string
	desc  bool
}

// parseSort parses "field:asc|desc[,field:asc|desc]"; a bare field name
// defaults to ascending.
func parseSort(raw string) []sortKey {
	if raw == "" {
		return nil
	}
	var keys []sortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		keys = append(keys, sortKey{field: field, desc: strings.EqualFold(dir, "desc")})
	}
	return keys
}

func applySort(docs []model.Document, keys []sortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			cmp := model.Compare(docs[i][k.field], docs[j][k.field])
			if cmp == 0 {
				continue
			}
			if k.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// pageParams reads page/per_page from the query string, clamping page to a
// floor of 1 and per_page to [1, 100].
func pageParams(c echo.Context, defaultPerPage int) (page, perPage int) {
	page = 1
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil && v > 0 {
		page = v
	}
	perPage = defaultPerPage
	if v, err := strconv.Atoi(c.QueryParam("per_page")); err == nil && v > 0 {
		perPage = v
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func paginate(docs []model.Document, page, perPage int) []model.Document {
	start := (page - 1) * perPage
	if start >= len(docs) {
		return []model.Document{}
	}
	end := start + perPage
	if end > len(docs) {
		end = len(docs)
	}
	return docs[start:end]
}

// parseLookupFields reads the comma-separated "lookup" query param into a
// field set for refs.Expand.
func parseLookupFields(c echo.Context) map[string]bool {
	raw := c.QueryParam("lookup")
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out[f] = true
		}
	}
	return out
}
