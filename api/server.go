// Package api maps the HTTP surface of rserv onto the entity store,
// schema registry, reference resolver, graph overlay, Sulpher engine, and
// cache: a single *echo.Echo, grouped routes under a version prefix, and
// handlers that render typed errors into the JSON error envelope; echo's
// own errors reach the same envelope through the server's error handler.
package api

import (
	"github.com/evalgo/rserv/cache"
	"github.com/evalgo/rserv/config"
	"github.com/evalgo/rserv/fulltext"
	"github.com/evalgo/rserv/graph"
	"github.com/evalgo/rserv/query"
	"github.com/evalgo/rserv/rlog"
	"github.com/evalgo/rserv/schema"
	"github.com/evalgo/rserv/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// Server bundles every component handlers need, the explicit server
// record the design notes call for in place of process-wide singletons.
type Server struct {
	Settings config.Settings
	Store    *store.Store
	Schema   *schema.Registry
	Overlay  *graph.Overlay // nil when the graph is disabled
	Queries  *query.Manager // nil when the graph is disabled
	Cache    *cache.Cache
	Fulltext fulltext.Indexer
	Log      *logrus.Logger
}

// NewEcho builds the configured *echo.Echo instance with every route
// mounted. No auth middleware is installed: this server has no
// authentication surface.
func (s *Server) NewEcho() *echo.Echo {
	if s.Log == nil {
		s.Log = rlog.Default
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	g := e.Group("/api/v1")

	g.POST("/:entity", s.handleCreate)
	g.GET("/:entity/list", s.handleList)
	g.GET("/:entity/search", s.handleSearch)
	g.POST("/:entity/save/:id", s.handleSaveAt)
	g.GET("/:entity/:id", s.handleGet)
	g.PUT("/:entity/:id", s.handleReplace)
	g.PATCH("/:entity/:id", s.handlePatch)
	g.DELETE("/:entity/:id", s.handleDelete)

	g.POST("/search", s.handleFulltextSearch)

	g.POST("/graph/query", s.handleGraphQuerySubmit)
	g.GET("/graph/query/:id", s.handleGraphQueryStatus)
	g.GET("/graph/query/:id/result", s.handleGraphQueryResult)
	g.GET("/graph/nodes/:node_id", s.handleGraphNode)
	g.POST("/graph/nodes/search", s.handleGraphNodeSearch)
	g.POST("/graph/shortestPath", s.handleShortestPath)
	g.POST("/graph/pathExists", s.handlePathExists)
	g.POST("/graph/commonNeighbors", s.handleCommonNeighbors)
	g.GET("/graph/nodes/:node_id/degree", s.handleDegree)
	g.POST("/graph/nodes/neighborhoodAggregate", s.handleNeighborhoodAggregate)
	g.GET("/graph/statistics", s.handleGraphStatistics)
	g.GET("/graph/:node/in", s.handleInEdges)
	g.GET("/graph/:node/out", s.handleOutEdges)
	g.POST("/graph/subgraph", s.handleSubgraph)

	return e
}

// errorHandler translates a *rerr.Error into the
// {"error":{...},"_links":{"self"}} envelope; anything else is logged and
// surfaced as a generic 500.
func (s *Server) errorHandler(err error, c echo.Context) {
	writeError(c, err, s.Log)
}
