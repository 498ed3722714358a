package graph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/evalgo/rserv/rerr"
)

// Persist flushes both on-disk files. Overlay consistency with the entity
// store is best-effort: a crash between an Upsert and Persist leaves the
// files stale until the next startup rebuild.
func (o *Overlay) Persist() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.persistLocked()
}

func (o *Overlay) persistLocked() error {
	if err := o.writeAdjacency(); err != nil {
		return err
	}
	return o.writeIndex()
}

func (o *Overlay) writeAdjacency() error {
	f, err := os.Create(o.dataPath)
	if err != nil {
		return rerr.Wrap(rerr.Internal, "create adjacency file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for nodeID, n := range o.nodes {
		neighbors := make([]string, 0, len(n.Outgoing))
		for target := range n.Outgoing {
			neighbors = append(neighbors, target)
		}
		if _, err := fmt.Fprintf(w, "%s:%s\n", nodeID, strings.Join(neighbors, " ")); err != nil {
			return rerr.Wrap(rerr.Internal, "write adjacency line", err)
		}
	}
	return w.Flush()
}

func (o *Overlay) writeIndex() error {
	out := make(map[string][]string, len(o.index))
	for key, members := range o.index {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		out[key] = ids
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return rerr.Wrap(rerr.Internal, "marshal index", err)
	}
	if err := os.WriteFile(o.indexPath, raw, 0o644); err != nil {
		return rerr.Wrap(rerr.Internal, "write index file", err)
	}
	return nil
}

// Load restores the overlay from its two on-disk files. Loading is
// tolerant of missing files (treated as empty) and infers a node's type
// from its id prefix, since the adjacency format does not persist types or
// edge labels; a caller that needs exact edge labels should prefer
// Rebuild against the entity store instead.
func (o *Overlay) Load() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nodes = make(map[string]*Node)
	o.index = make(map[string]map[string]bool)

	if err := o.loadAdjacency(); err != nil {
		return err
	}
	return o.loadIndex()
}

func (o *Overlay) loadAdjacency() error {
	f, err := os.Open(o.dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return rerr.Wrap(rerr.Internal, "open adjacency file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		// Each node id is itself "entity:id", so the line has the shape
		// "entity:id:neighbor1 neighbor2 ...": the separator between the
		// node id and its neighbour list is the second colon, not the
		// first.
		first := strings.Index(line, ":")
		if first < 0 {
			continue
		}
		second := strings.Index(line[first+1:], ":")
		if second < 0 {
			continue
		}
		idx := first + 1 + second
		nodeID := line[:idx]
		rest := strings.TrimSpace(line[idx+1:])

		n, ok := o.nodes[nodeID]
		if !ok {
			n = &Node{Type: entityPrefix(nodeID), Outgoing: make(map[string]string)}
			o.nodes[nodeID] = n
		}
		if rest == "" {
			continue
		}
		for _, neighbor := range strings.Fields(rest) {
			n.Outgoing[neighbor] = ""
			if _, ok := o.nodes[neighbor]; !ok {
				o.nodes[neighbor] = &Node{Type: entityPrefix(neighbor), Outgoing: make(map[string]string)}
			}
		}
	}
	return scanner.Err()
}

func (o *Overlay) loadIndex() error {
	raw, err := os.ReadFile(o.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return rerr.Wrap(rerr.Internal, "read index file", err)
	}
	var decoded map[string][]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return rerr.Wrap(rerr.Internal, "decode index file", err)
	}
	for key, ids := range decoded {
		members := make(map[string]bool, len(ids))
		for _, id := range ids {
			members[id] = true
		}
		o.index[key] = members
	}
	return nil
}
