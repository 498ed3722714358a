// Package graph maintains the property-graph overlay mirrored from
// document REFs: an adjacency map plus an inverted index, kept consistent
// with entity-store writes and flushed to two on-disk files.
package graph

import (
	"strconv"
	"strings"
	"sync"

	"github.com/evalgo/rserv/model"
)

// Node is one graph vertex. Outgoing maps a neighbour node id to the edge
// label that reaches it; forward edges are labelled by the source field
// name, reverse companions by "reverse_"+field. A node holds one label per
// neighbour: where a forward edge and a reverse companion would share a
// neighbour (a 2-cycle), the forward edge is kept.
type Node struct {
	Type       string
	Properties model.Document
	Outgoing   map[string]string
}

// ID renders "<entity>:<id>" for a document identity.
func ID(entity string, id int) string {
	return entity + ":" + strconv.Itoa(id)
}

// SplitID recovers the entity prefix of a node id, used when persisted
// data does not carry a type (the on-disk adjacency format does not).
func SplitID(nodeID string) (entity string, id int, ok bool) {
	i := strings.LastIndex(nodeID, ":")
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(nodeID[i+1:])
	if err != nil {
		return "", 0, false
	}
	return nodeID[:i], n, true
}

// Overlay is the in-memory graph plus inverted index. A single read/write
// mutex guards both structures together with their on-disk mirrors;
// writers take the exclusive lock, readers (HTTP lookups and Sulpher
// traversals) take the shared lock.
type Overlay struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	index map[string]map[string]bool

	dataPath  string
	indexPath string
}

// New returns an empty overlay that persists to the given file paths.
func New(dataPath, indexPath string) *Overlay {
	return &Overlay{
		nodes:     make(map[string]*Node),
		index:     make(map[string]map[string]bool),
		dataPath:  dataPath,
		indexPath: indexPath,
	}
}

// indexKeysFor computes the full set of inverted-index keys a node should
// be tagged under, given its type and current outgoing edges.
func indexKeysFor(n *Node) map[string]bool {
	keys := map[string]bool{n.Type: true}
	for target, label := range n.Outgoing {
		if strings.HasPrefix(label, "reverse_") {
			continue
		}
		if entity, _, ok := SplitID(target); ok {
			keys[entity] = true
		}
		keys["relationship:"+label] = true
	}
	return keys
}

func (o *Overlay) removeFromIndex(nodeID string) {
	for key, members := range o.index {
		if members[nodeID] {
			delete(members, nodeID)
			if len(members) == 0 {
				delete(o.index, key)
			}
		}
	}
}

func (o *Overlay) addToIndex(nodeID string, keys map[string]bool) {
	for key := range keys {
		members, ok := o.index[key]
		if !ok {
			members = make(map[string]bool)
			o.index[key] = members
		}
		members[nodeID] = true
	}
}

// removeOwnReverseEdges strips the reverse-companion edges that nodeID's
// own refs previously caused to be recorded on other nodes, without
// touching genuine forward edges unrelated documents hold against nodeID.
// Used by the clean-slate step of Upsert, where nodeID's document is being
// replaced, not removed: other documents' edges into it must survive.
func (o *Overlay) removeOwnReverseEdges(nodeID string) {
	for _, n := range o.nodes {
		for target, label := range n.Outgoing {
			if target == nodeID && strings.HasPrefix(label, "reverse_") {
				delete(n.Outgoing, target)
			}
		}
	}
}

// removeIncoming strips every adjacency entry, on any node, that targets
// nodeID: both plain forward edges and reverse companions. Used when
// nodeID itself is being deleted, so no edge is left dangling at a node
// that no longer exists.
func (o *Overlay) removeIncoming(nodeID string) {
	for _, n := range o.nodes {
		for target := range n.Outgoing {
			if target == nodeID {
				delete(n.Outgoing, target)
			}
		}
	}
}

func entityPrefix(nodeID string) string {
	entity, _, ok := SplitID(nodeID)
	if !ok {
		return nodeID
	}
	return entity
}

// Upsert applies the write-time update protocol for a document: clean
// slate removal of nodeID's previous adjacency and index footprint,
// re-insertion with current properties, forward+reverse edges for every
// REF field, and index refresh. persist is left to the caller so multiple
// upserts in a batch (e.g. a rebuild) can share one flush.
func (o *Overlay) Upsert(entity string, id int, props model.Document, refs map[string]model.Ref) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.upsertLocked(entity, id, props, refs)
}

func (o *Overlay) upsertLocked(entity string, id int, props model.Document, refs map[string]model.Ref) {
	nodeID := ID(entity, id)

	old := o.nodes[nodeID]
	o.removeOwnReverseEdges(nodeID)
	delete(o.nodes, nodeID)
	o.removeFromIndex(nodeID)

	n := &Node{
		Type:       entity,
		Properties: model.CloneDocument(props),
		Outgoing:   make(map[string]string),
	}
	// Reverse companions recorded on the previous node stand for other
	// documents' refs into nodeID and survive the replacement.
	if old != nil {
		for source, label := range old.Outgoing {
			if strings.HasPrefix(label, "reverse_") {
				n.Outgoing[source] = label
			}
		}
	}
	o.nodes[nodeID] = n

	for field, ref := range refs {
		targetID := ID(ref.Entity, ref.ID)
		n.Outgoing[targetID] = field

		target, ok := o.nodes[targetID]
		if !ok {
			target = &Node{Type: ref.Entity, Outgoing: make(map[string]string)}
			o.nodes[targetID] = target
		}
		if existing, ok := target.Outgoing[nodeID]; !ok || strings.HasPrefix(existing, "reverse_") {
			target.Outgoing[nodeID] = "reverse_" + field
		}
	}

	o.addToIndex(nodeID, indexKeysFor(n))
}

// Delete removes a node and every adjacency entry or index membership
// referencing it.
func (o *Overlay) Delete(entity string, id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleteLocked(entity, id)
}

func (o *Overlay) deleteLocked(entity string, id int) {
	nodeID := ID(entity, id)
	o.removeIncoming(nodeID)
	delete(o.nodes, nodeID)
	o.removeFromIndex(nodeID)
}

// RefsOf extracts every REF field from a document as a field -> Ref map,
// the shape Upsert expects.
func RefsOf(doc model.Document) map[string]model.Ref {
	out := make(map[string]model.Ref)
	for field, v := range doc {
		m, ok := v.(map[string]interface{})
		if !ok || !model.IsRef(m) {
			continue
		}
		out[field] = model.AsRef(m)
	}
	return out
}

// Node returns a shallow snapshot of a single node, or false if absent.
func (o *Overlay) Node(nodeID string) (Node, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n, ok := o.nodes[nodeID]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// NodeIDs returns every node id currently in the overlay.
func (o *Overlay) NodeIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.nodes))
	for id := range o.nodes {
		out = append(out, id)
	}
	return out
}

// IndexLookup returns the member set for an index key (type tag,
// referenced-entity tag, or "relationship:<field>"), or nil if absent.
func (o *Overlay) IndexLookup(key string) map[string]bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	src, ok := o.index[key]
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(src))
	for k := range src {
		out[k] = true
	}
	return out
}

// Intersect computes the set intersection of the member sets for the given
// index keys, per the set-intersection semantics decided for start-node
// narrowing. An empty keys slice yields every node.
func (o *Overlay) Intersect(keys []string) map[string]bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if len(keys) == 0 {
		out := make(map[string]bool, len(o.nodes))
		for id := range o.nodes {
			out[id] = true
		}
		return out
	}

	var result map[string]bool
	for _, k := range keys {
		members := o.index[k]
		if result == nil {
			result = make(map[string]bool, len(members))
			for id := range members {
				result[id] = true
			}
			continue
		}
		for id := range result {
			if !members[id] {
				delete(result, id)
			}
		}
	}
	if result == nil {
		result = make(map[string]bool)
	}
	return result
}

// Outgoing returns a copy of a node's outgoing adjacency, or nil if the
// node is absent.
func (o *Overlay) Outgoing(nodeID string) map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n, ok := o.nodes[nodeID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(n.Outgoing))
	for k, v := range n.Outgoing {
		out[k] = v
	}
	return out
}

// Stats reports node count, edge count (forward edges only, reverse
// companions excluded), and average out-degree.
type Stats struct {
	Nodes         int
	Edges         int
	AvgOutDegree  float64
}

// Statistics computes a point-in-time summary of the overlay.
func (o *Overlay) Statistics() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var edges int
	for _, n := range o.nodes {
		for _, label := range n.Outgoing {
			if !strings.HasPrefix(label, "reverse_") {
				edges++
			}
		}
	}
	var avg float64
	if len(o.nodes) > 0 {
		avg = float64(edges) / float64(len(o.nodes))
	}
	return Stats{Nodes: len(o.nodes), Edges: edges, AvgOutDegree: avg}
}
