package api

import (
	"context"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/evalgo/rserv/cache"
	"github.com/evalgo/rserv/graph"
	"github.com/evalgo/rserv/model"
	"github.com/evalgo/rserv/rerr"
	"github.com/evalgo/rserv/sulpher"
	"github.com/labstack/echo/v4"
)

// requireGraph fails every graph-surface handler with precondition-failed
// when the overlay was never built, matching the "400 if disabled"
// contract for query submission and extending it to the read-only graph
// endpoints that would otherwise report misleading empty results.
func (s *Server) requireGraph(c echo.Context) (*graph.Overlay, error) {
	if s.Overlay == nil {
		return nil, rerr.New(rerr.PreconditionFailed, "graph overlay is disabled")
	}
	return s.Overlay, nil
}

func (s *Server) handleGraphQuerySubmit(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}

	var body struct {
		Query string `json:"query"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}

	plan, err := sulpher.Parse(body.Query)
	if err != nil {
		return fail(c, s.Log, err)
	}

	indexed := s.Settings.Indexed()
	maxDepth := s.Settings.MaxQueryDepth
	cyclePolicy := s.Settings.CycleDetection

	id := s.Queries.Submit(body.Query, func(ctx context.Context) (*sulpher.Result, error) {
		return sulpher.Execute(plan, g, indexed, maxDepth, cyclePolicy, s.Log)
	})

	return c.JSON(http.StatusAccepted, map[string]interface{}{"query_id": id})
}

func (s *Server) handleGraphQueryStatus(c echo.Context) error {
	if s.Queries == nil {
		return fail(c, s.Log, rerr.New(rerr.PreconditionFailed, "graph overlay is disabled"))
	}
	id := c.Param("id")
	session, ok := s.Queries.Status(id)
	if !ok {
		return fail(c, s.Log, rerr.NotFoundf("query %s not found", id))
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleGraphQueryResult(c echo.Context) error {
	if s.Queries == nil {
		return fail(c, s.Log, rerr.New(rerr.PreconditionFailed, "graph overlay is disabled"))
	}
	id := c.Param("id")
	result, err := s.Queries.Result(id)
	if err != nil {
		return fail(c, s.Log, err)
	}

	key := cache.QueryKey(id)
	if v, ok := s.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, v)
	}
	s.Cache.Set(key, result, s.Settings.GraphQueryTTL)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGraphNode(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	nodeID := c.Param("node_id")
	n, ok := g.Node(nodeID)
	if !ok {
		return fail(c, s.Log, rerr.NotFoundf("node %s not found", nodeID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":         nodeID,
		"type":       n.Type,
		"properties": n.Properties,
	})
}

func (s *Server) handleGraphNodeSearch(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var body struct {
		Type       string                 `json:"type"`
		Properties map[string]interface{} `json:"properties"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}

	var matches []string
	for _, id := range g.NodeIDs() {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		if body.Type != "" && n.Type != body.Type {
			continue
		}
		match := true
		for k, v := range body.Properties {
			pv, present := n.Properties[k]
			if !present || !model.Equal(pv, v) {
				match = false
				break
			}
		}
		if match {
			matches = append(matches, id)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"nodes": matches})
}

func (s *Server) handleShortestPath(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var body struct {
		From     string `json:"from"`
		To       string `json:"to"`
		MaxDepth int    `json:"max_depth"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	if body.MaxDepth <= 0 {
		body.MaxDepth = s.Settings.MaxQueryDepth
	}

	path, ok := g.ShortestPath(body.From, body.To, body.MaxDepth)
	if !ok {
		return fail(c, s.Log, rerr.NotFoundf("no path from %s to %s within %d hops", body.From, body.To, body.MaxDepth))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"path": path})
}

func (s *Server) handlePathExists(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var body struct {
		From     string `json:"from"`
		To       string `json:"to"`
		MaxDepth int    `json:"max_depth"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	if body.MaxDepth <= 0 {
		body.MaxDepth = s.Settings.MaxQueryDepth
	}
	exists := g.PathExists(body.From, body.To, body.MaxDepth)
	return c.JSON(http.StatusOK, map[string]interface{}{"exists": exists})
}

func (s *Server) handleCommonNeighbors(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var body struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	common := g.CommonNeighbors(body.A, body.B)
	return c.JSON(http.StatusOK, map[string]interface{}{"common_neighbors": common})
}

func (s *Server) handleDegree(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	nodeID := c.Param("node_id")
	dir := graph.Direction(c.QueryParam("direction"))
	if dir == "" {
		dir = graph.DirectionBoth
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"degree": g.Degree(nodeID, dir)})
}

func (s *Server) handleNeighborhoodAggregate(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var body struct {
		NodeID string `json:"node_id"`
		K      int    `json:"k"`
		Field  string `json:"field"`
		Agg    string `json:"agg"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	if body.K <= 0 {
		body.K = 1
	}

	neighbors := g.Neighborhood(body.NodeID, body.K)
	var values []float64
	for _, id := range neighbors {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		v, present := n.Properties[body.Field]
		if !present {
			continue
		}
		if f, ok := model.AsInt(v); ok {
			values = append(values, float64(f))
		}
	}

	result := aggregateValues(body.Agg, values)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"neighborhood_size": len(neighbors),
		"result":            result,
	})
}

func aggregateValues(agg string, values []float64) interface{} {
	switch agg {
	case "COUNT":
		return len(values)
	case "SUM":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case "AVG":
		if len(values) == 0 {
			return nil
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case "MIN", "MAX":
		if len(values) == 0 {
			return nil
		}
		best := values[0]
		for _, v := range values[1:] {
			if (agg == "MIN" && v < best) || (agg == "MAX" && v > best) {
				best = v
			}
		}
		return best
	default:
		return nil
	}
}

func (s *Server) handleGraphStatistics(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	stats := g.Statistics()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"nodes":           stats.Nodes,
		"edges":           stats.Edges,
		"avg_out_degree":  stats.AvgOutDegree,
		"nodes_humanized": humanize.Comma(int64(stats.Nodes)),
		"edges_humanized": humanize.Comma(int64(stats.Edges)),
	})
}

func (s *Server) handleInEdges(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"edges": g.InEdges(c.Param("node"))})
}

func (s *Server) handleOutEdges(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"edges": g.OutEdges(c.Param("node"))})
}

func (s *Server) handleSubgraph(c echo.Context) error {
	g, err := s.requireGraph(c)
	if err != nil {
		return fail(c, s.Log, err)
	}
	var body struct {
		NodeID string `json:"node_id"`
		K      int    `json:"k"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, s.Log, rerr.InvalidArgumentf("malformed JSON body"))
	}
	if body.K <= 0 {
		body.K = 1
	}
	return c.JSON(http.StatusOK, g.Subgraph(body.NodeID, body.K))
}
