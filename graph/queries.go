package graph

import "strings"

// Direction filters edges by whether they are forward (outgoing,
// non-reverse-labelled) or reverse companions.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

func isReverseLabel(label string) bool {
	return strings.HasPrefix(label, "reverse_")
}

// Edge is a single adjacency entry surfaced to callers.
type Edge struct {
	From  string
	To    string
	Label string
}

// InEdges returns the edges that represent logical incoming references to
// nodeID: stored as this node's own "reverse_"-labelled outgoing entries.
func (o *Overlay) InEdges(nodeID string) []Edge {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n, ok := o.nodes[nodeID]
	if !ok {
		return nil
	}
	var out []Edge
	for target, label := range n.Outgoing {
		if isReverseLabel(label) {
			out = append(out, Edge{From: target, To: nodeID, Label: strings.TrimPrefix(label, "reverse_")})
		}
	}
	return out
}

// OutEdges returns the forward edges originating at nodeID.
func (o *Overlay) OutEdges(nodeID string) []Edge {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n, ok := o.nodes[nodeID]
	if !ok {
		return nil
	}
	var out []Edge
	for target, label := range n.Outgoing {
		if !isReverseLabel(label) {
			out = append(out, Edge{From: nodeID, To: target, Label: label})
		}
	}
	return out
}

// Degree counts edges touching nodeID in the requested direction.
func (o *Overlay) Degree(nodeID string, dir Direction) int {
	switch dir {
	case DirectionIn:
		return len(o.InEdges(nodeID))
	case DirectionOut:
		return len(o.OutEdges(nodeID))
	default:
		return len(o.InEdges(nodeID)) + len(o.OutEdges(nodeID))
	}
}

func (o *Overlay) neighbors(nodeID string, dir Direction) []string {
	var out []string
	switch dir {
	case DirectionIn:
		for _, e := range o.InEdges(nodeID) {
			out = append(out, e.From)
		}
	case DirectionOut:
		for _, e := range o.OutEdges(nodeID) {
			out = append(out, e.To)
		}
	default:
		for _, e := range o.InEdges(nodeID) {
			out = append(out, e.From)
		}
		for _, e := range o.OutEdges(nodeID) {
			out = append(out, e.To)
		}
	}
	return out
}

// PathExists reports whether to is reachable from from within maxDepth
// hops via a plain breadth-first search over forward edges.
func (o *Overlay) PathExists(from, to string, maxDepth int) bool {
	_, ok := o.ShortestPath(from, to, maxDepth)
	return ok
}

// ShortestPath runs breadth-first search over forward edges and returns
// the node sequence of the shortest path from "from" to "to", bounded by
// maxDepth hops.
func (o *Overlay) ShortestPath(from, to string, maxDepth int) ([]string, bool) {
	if from == to {
		return []string{from}, true
	}

	type item struct {
		node string
		path []string
	}

	visited := map[string]bool{from: true}
	queue := []item{{from, []string{from}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path)-1 >= maxDepth {
			continue
		}
		for _, next := range o.neighbors(cur.node, DirectionOut) {
			if visited[next] {
				continue
			}
			visited[next] = true
			path := append(append([]string{}, cur.path...), next)
			if next == to {
				return path, true
			}
			queue = append(queue, item{next, path})
		}
	}
	return nil, false
}

// CommonNeighbors returns the intersection of the forward-neighbour sets
// of a and b.
func (o *Overlay) CommonNeighbors(a, b string) []string {
	aSet := make(map[string]bool)
	for _, n := range o.neighbors(a, DirectionOut) {
		aSet[n] = true
	}
	var common []string
	for _, n := range o.neighbors(b, DirectionOut) {
		if aSet[n] {
			common = append(common, n)
		}
	}
	return common
}

// Neighborhood returns every node reachable from nodeID within k hops over
// forward edges, nodeID itself excluded.
func (o *Overlay) Neighborhood(nodeID string, k int) []string {
	visited := map[string]bool{nodeID: true}
	frontier := []string{nodeID}
	var out []string

	for depth := 0; depth < k; depth++ {
		var next []string
		for _, n := range frontier {
			for _, neighbor := range o.neighbors(n, DirectionOut) {
				if !visited[neighbor] {
					visited[neighbor] = true
					out = append(out, neighbor)
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}
	return out
}

// Subgraph returns the induced node and edge set reachable from nodeID
// within k hops.
type SubgraphResult struct {
	Nodes []string
	Edges []Edge
}

// Subgraph computes the k-hop induced subgraph rooted at nodeID.
func (o *Overlay) Subgraph(nodeID string, k int) SubgraphResult {
	nodes := append([]string{nodeID}, o.Neighborhood(nodeID, k)...)
	inSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inSet[n] = true
	}
	var edges []Edge
	for _, n := range nodes {
		for _, e := range o.OutEdges(n) {
			if inSet[e.To] {
				edges = append(edges, e)
			}
		}
	}
	return SubgraphResult{Nodes: nodes, Edges: edges}
}
