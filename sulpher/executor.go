package sulpher

import (
	"sort"

	"github.com/evalgo/rserv/config"
	"github.com/evalgo/rserv/graph"
	"github.com/evalgo/rserv/model"
	"github.com/evalgo/rserv/rerr"
	"github.com/sirupsen/logrus"
)

// GraphReader is the subset of *graph.Overlay the executor needs, so tests
// can exercise traversal against a fixture without building a full
// overlay.
type GraphReader interface {
	Node(nodeID string) (graph.Node, bool)
	NodeIDs() []string
	Intersect(keys []string) map[string]bool
	OutEdges(nodeID string) []graph.Edge
}

// Stats summarises one execution, surfaced in the query session record.
type Stats struct {
	NodesTraversed int
}

// Result is the outcome of executing a plan: one map per surviving
// binding, keyed by each RETURN item's source text.
type Result struct {
	Rows  []map[string]interface{}
	Stats Stats
}

type binding map[string]string // pattern variable -> node id

// Execute runs plan against g, applying maxDepth and cyclePolicy to bound
// DFS traversal. indexed controls whether start-node selection consults
// the inverted index or falls back to a full node scan. log receives a
// warning for every re-entry the warn cycle policy suppresses; pass nil to
// run silently.
func Execute(plan *Plan, g GraphReader, indexed bool, maxDepth int, cyclePolicy config.CyclePolicy, log *logrus.Logger) (*Result, error) {
	if len(plan.Path) == 0 {
		return &Result{}, nil
	}

	starts := selectStarts(plan.Path[0].Node, g, indexed)

	var bindings []binding
	stats := Stats{}

	for _, start := range starts {
		paths, err := traverse(plan, g, start, maxDepth, cyclePolicy, &stats, log)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, paths...)
	}

	bindings = filterWhere(bindings, plan.Where, g)

	rows := project(bindings, plan.Return, g)

	return &Result{Rows: rows, Stats: stats}, nil
}

func selectStarts(pattern NodePattern, g GraphReader, indexed bool) []string {
	if indexed {
		var keys []string
		if pattern.Type != "" {
			keys = append(keys, pattern.Type)
		}
		if len(keys) > 0 || len(pattern.Props) > 0 {
			candidates := g.Intersect(keys)
			var out []string
			for id := range candidates {
				n, ok := g.Node(id)
				if ok && matchesNode(n, pattern) {
					out = append(out, id)
				}
			}
			sort.Strings(out)
			return out
		}
	}

	var out []string
	for _, id := range g.NodeIDs() {
		n, ok := g.Node(id)
		if ok && matchesNode(n, pattern) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func matchesNode(n graph.Node, pattern NodePattern) bool {
	if pattern.Type != "" && n.Type != pattern.Type {
		return false
	}
	for k, v := range pattern.Props {
		pv, ok := n.Properties[k]
		if !ok || !model.Equal(pv, v) {
			return false
		}
	}
	return true
}

func matchesRel(label string, pattern *RelPattern) bool {
	if pattern == nil {
		return true
	}
	if pattern.Type != "" && label != pattern.Type {
		return false
	}
	return true
}

// traverse runs BFS or DFS from one start node, advancing through every
// step of the pattern and returning one binding per completed path.
func traverse(plan *Plan, g GraphReader, start string, maxDepth int, cyclePolicy config.CyclePolicy, stats *Stats, log *logrus.Logger) ([]binding, error) {
	initial := binding{plan.Path[0].Node.Var: start}
	if plan.Algorithm == AlgorithmDFS {
		return dfs(plan, g, initial, 1, map[string]bool{start: true}, maxDepth, cyclePolicy, stats, log)
	}
	return bfs(plan, g, initial, maxDepth, stats)
}

func bfs(plan *Plan, g GraphReader, initial binding, maxDepth int, stats *Stats) ([]binding, error) {
	type frame struct {
		b       binding
		stepIdx int
		visited map[string]bool
	}
	queue := []frame{{b: initial, stepIdx: 1, visited: map[string]bool{initial[plan.Path[0].Node.Var]: true}}}
	var complete []binding

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		stats.NodesTraversed++

		if f.stepIdx >= len(plan.Path) {
			complete = append(complete, f.b)
			continue
		}
		if f.stepIdx > maxDepth {
			continue
		}

		step := plan.Path[f.stepIdx]
		prevVar := plan.Path[f.stepIdx-1].Node.Var
		curNode := f.b[prevVar]

		for _, e := range g.OutEdges(curNode) {
			if !matchesRel(e.Label, step.InRel) {
				continue
			}
			n, ok := g.Node(e.To)
			if !ok || !matchesNode(n, step.Node) {
				continue
			}
			if f.visited[e.To] {
				continue
			}
			nb := cloneBinding(f.b)
			nb[step.Node.Var] = e.To
			nv := cloneVisited(f.visited)
			nv[e.To] = true
			queue = append(queue, frame{b: nb, stepIdx: f.stepIdx + 1, visited: nv})
		}
	}
	return complete, nil
}

func dfs(plan *Plan, g GraphReader, b binding, stepIdx int, visited map[string]bool, maxDepth int, cyclePolicy config.CyclePolicy, stats *Stats, log *logrus.Logger) ([]binding, error) {
	stats.NodesTraversed++

	if stepIdx >= len(plan.Path) {
		return []binding{b}, nil
	}
	if stepIdx > maxDepth {
		return nil, nil
	}

	step := plan.Path[stepIdx]
	prevVar := plan.Path[stepIdx-1].Node.Var
	curNode := b[prevVar]

	var out []binding
	for _, e := range g.OutEdges(curNode) {
		if !matchesRel(e.Label, step.InRel) {
			continue
		}
		n, ok := g.Node(e.To)
		if !ok || !matchesNode(n, step.Node) {
			continue
		}
		if visited[e.To] {
			switch cyclePolicy {
			case config.CycleError:
				return nil, rerr.Newf(rerr.Internal, "sulpher: cycle detected at %s", e.To)
			case config.CycleWarn:
				if log != nil {
					log.Warnf("sulpher: cycle detected at %s, skipping re-entry", e.To)
				}
				continue
			default:
				continue
			}
		}
		nb := cloneBinding(b)
		nb[step.Node.Var] = e.To
		nv := cloneVisited(visited)
		nv[e.To] = true
		sub, err := dfs(plan, g, nb, stepIdx+1, nv, maxDepth, cyclePolicy, stats, log)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func cloneBinding(b binding) binding {
	out := make(binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func cloneVisited(v map[string]bool) map[string]bool {
	out := make(map[string]bool, len(v))
	for k := range v {
		out[k] = true
	}
	return out
}

func filterWhere(bindings []binding, conds []Cond, g GraphReader) []binding {
	if len(conds) == 0 {
		return bindings
	}
	var out []binding
	for _, b := range bindings {
		if evalConds(b, conds, g) {
			out = append(out, b)
		}
	}
	return out
}

func evalConds(b binding, conds []Cond, g GraphReader) bool {
	for _, c := range conds {
		if !evalCond(b, c, g) {
			return false
		}
	}
	return true
}

func evalCond(b binding, c Cond, g GraphReader) bool {
	nodeID, ok := b[c.Var]
	if !ok {
		return false
	}
	n, ok := g.Node(nodeID)
	if !ok {
		return false
	}
	actual, present := n.Properties[c.Field]
	if !present {
		return false
	}
	return compareOp(actual, c.Literal, c.Op)
}

func compareOp(actual, literal interface{}, op CondOp) bool {
	ak, lk := model.KindOf(actual), model.KindOf(literalAsModelValue(literal))
	numericActual := ak == model.KindInt || ak == model.KindFloat
	numericLiteral := lk == model.KindInt || lk == model.KindFloat
	if numericActual != numericLiteral {
		if op == OpNeq {
			return true
		}
		return false
	}

	cmp := model.Compare(actual, literalAsModelValue(literal))
	switch op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpGt:
		return cmp > 0
	case OpLte:
		return cmp <= 0
	case OpGte:
		return cmp >= 0
	default:
		return false
	}
}

// literalAsModelValue normalises parser-produced Go ints to float64 so
// model.Compare's numeric-vs-numeric path recognises them the same way it
// recognises decoded JSON numbers.
func literalAsModelValue(v interface{}) interface{} {
	if n, ok := v.(int); ok {
		return float64(n)
	}
	return v
}

func project(bindings []binding, items []Item, g GraphReader) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(bindings))
	for i := range bindings {
		rows[i] = make(map[string]interface{}, len(items))
	}

	for _, item := range items {
		if item.Agg != "" {
			value := aggregate(item, bindings, g)
			for i := range rows {
				rows[i][item.Text] = value
			}
			continue
		}
		for i, b := range bindings {
			nodeID, ok := b[item.Var]
			if !ok {
				rows[i][item.Text] = nil
				continue
			}
			if item.Field == "" {
				rows[i][item.Text] = nodeID
				continue
			}
			n, ok := g.Node(nodeID)
			if !ok {
				rows[i][item.Text] = nil
				continue
			}
			rows[i][item.Text] = n.Properties[item.Field]
		}
	}
	return rows
}

// aggregate computes an AGG(var) column over every surviving binding's
// "id" property, the only scalar the grammar guarantees a bound node
// carries (the grammar binds var to a node, not a field).
func aggregate(item Item, bindings []binding, g GraphReader) interface{} {
	var values []float64
	nonNull := 0
	for _, b := range bindings {
		nodeID, ok := b[item.Var]
		if !ok {
			continue
		}
		n, ok := g.Node(nodeID)
		if !ok {
			continue
		}
		v, present := n.Properties["id"]
		if !present || v == nil {
			continue
		}
		nonNull++
		if f, ok := model.AsInt(v); ok {
			values = append(values, float64(f))
		}
	}

	switch item.Agg {
	case AggCount:
		return nonNull
	case AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case AggAvg:
		if len(values) == 0 {
			return nil
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case AggMin:
		return minMax(values, true)
	case AggMax:
		return minMax(values, false)
	default:
		return nil
	}
}

func minMax(values []float64, min bool) interface{} {
	if len(values) == 0 {
		return nil
	}
	best := values[0]
	for _, v := range values[1:] {
		if (min && v < best) || (!min && v > best) {
			best = v
		}
	}
	return best
}
