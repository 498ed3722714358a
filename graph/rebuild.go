package graph

import "github.com/evalgo/rserv/model"

// EntityLister is the subset of the entity store Rebuild needs: list every
// entity directory, then every document within it. The store satisfies
// this directly.
type EntityLister interface {
	Entities() ([]string, error)
	List(entity string) ([]model.Document, error)
}

// Rebuild reconstructs the overlay from scratch by scanning the entity
// store, used at startup in "indexed" mode so a crash between an Upsert
// and a Persist never leaves a stale overlay for long. Unlike Load, this
// recovers exact edge labels since it replays RefsOf against the live
// documents rather than parsing the adjacency dump.
func (o *Overlay) Rebuild(store EntityLister) error {
	entities, err := store.Entities()
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.nodes = make(map[string]*Node)
	o.index = make(map[string]map[string]bool)

	for _, entity := range entities {
		docs, err := store.List(entity)
		if err != nil {
			continue
		}
		for _, doc := range docs {
			id, ok := model.IDOf(doc)
			if !ok {
				continue
			}
			o.upsertLocked(entity, id, doc, RefsOf(doc))
		}
	}

	return o.persistLocked()
}
