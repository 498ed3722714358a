package sulpher

// Algorithm selects BFS (default) or DFS traversal.
type Algorithm string

const (
	AlgorithmBFS Algorithm = "BFS"
	AlgorithmDFS Algorithm = "DFS"
)

// NodePattern is one parenthesised node in a path pattern: a binding
// variable, an optional type tag, and optional property constraints.
type NodePattern struct {
	Var   string
	Type  string
	Props map[string]interface{}
}

// RelPattern is the `-[...]->`  relationship between two node patterns.
type RelPattern struct {
	Var   string
	Type  string
	Props map[string]interface{}
}

// PathStep is one node in the pattern together with the relationship
// pattern that must have led into it. InRel is nil for the first step.
type PathStep struct {
	Node  NodePattern
	InRel *RelPattern
}

// CondOp is a WHERE comparison operator.
type CondOp string

const (
	OpEq  CondOp = "="
	OpNeq CondOp = "!="
	OpLt  CondOp = "<"
	OpGt  CondOp = ">"
	OpLte CondOp = "<="
	OpGte CondOp = ">="
)

// Cond is a single WHERE condition: `var.field op literal`.
type Cond struct {
	Var     string
	Field   string
	Op      CondOp
	Literal interface{}
}

// AggFunc names a RETURN aggregate function.
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// Item is one RETURN projection: either `var.field`, a bare `var`, or
// `AGG(var)`. Text is the original source text, used as the result's
// column key.
type Item struct {
	Text  string
	Agg   AggFunc // empty if not an aggregate
	Var   string
	Field string // empty for a bare variable reference
}

// Plan is the parsed, ready-to-execute form of a Sulpher query.
type Plan struct {
	Algorithm Algorithm
	Path      []PathStep
	Where     []Cond
	Return    []Item
}
