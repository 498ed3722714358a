package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/evalgo/rserv/model"
	"github.com/evalgo/rserv/rerr"
)

// NullPolicy governs how a null value in a PATCH body is applied.
type NullPolicy string

const (
	NullPolicyStore  NullPolicy = "store"
	NullPolicyDelete NullPolicy = "delete"
)

// Store is the entity document store: one JSON file per document under
// <base>/<schema>/<entity>/<id>.json, with a sidecar counter file per
// entity for id allocation. Per-entity in-process mutexes serialise
// directory-level operations (list, scan-for-cascade) against concurrent
// writers to the same entity; cross-entity concurrency is unrestricted.
type Store struct {
	baseDir string
	schema  string

	mu         sync.Mutex
	allocators map[string]*idAllocator
	entityLock map[string]*sync.RWMutex
}

// New returns a Store rooted at <baseDir>/<schema>.
func New(baseDir, schema string) *Store {
	return &Store{
		baseDir:    baseDir,
		schema:     schema,
		allocators: make(map[string]*idAllocator),
		entityLock: make(map[string]*sync.RWMutex),
	}
}

func (s *Store) entityDir(entity string) string {
	return filepath.Join(s.baseDir, s.schema, entity)
}

func (s *Store) docPath(entity string, id int) string {
	return filepath.Join(s.entityDir(entity), strconv.Itoa(id)+".json")
}

func (s *Store) allocator(entity string) *idAllocator {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocators[entity]
	if !ok {
		a = newIDAllocator(s.entityDir(entity))
		s.allocators[entity] = a
	}
	return a
}

func (s *Store) lockFor(entity string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.entityLock[entity]
	if !ok {
		l = &sync.RWMutex{}
		s.entityLock[entity] = l
	}
	return l
}

// Create validates no id conflicts can occur (server-assigned), allocates
// the next id, stamps it into the document, and writes the file.
func (s *Store) Create(entity string, doc model.Document) (int, error) {
	if err := ValidateEntityName(entity); err != nil {
		return 0, err
	}
	dir := s.entityDir(entity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, rerr.Wrap(rerr.Internal, "create entity directory", err)
	}

	lock := s.lockFor(entity)
	lock.Lock()
	defer lock.Unlock()

	id, err := s.allocator(entity).next()
	if err != nil {
		return 0, rerr.Wrap(rerr.Internal, "allocate id", err)
	}

	out := model.CloneDocument(doc)
	out["id"] = id
	if err := writeDocFile(s.docPath(entity, id), out); err != nil {
		return 0, err
	}
	return id, nil
}

// SaveAt creates a document at a caller-specified id, failing with conflict
// if one already exists. It reconciles the entity's id counter so a
// subsequent Create never collides with this id.
func (s *Store) SaveAt(entity string, id int, doc model.Document) error {
	if err := ValidateEntityName(entity); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	dir := s.entityDir(entity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerr.Wrap(rerr.Internal, "create entity directory", err)
	}

	lock := s.lockFor(entity)
	lock.Lock()
	defer lock.Unlock()

	path := s.docPath(entity, id)
	if _, err := os.Stat(path); err == nil {
		return rerr.Newf(rerr.Conflict, "%s/%d already exists", entity, id)
	}

	out := model.CloneDocument(doc)
	out["id"] = id
	if err := writeDocFile(path, out); err != nil {
		return err
	}
	return s.allocator(entity).bump(id)
}

// Get loads a single document, returning a not-found fault if absent.
func (s *Store) Get(entity string, id int) (model.Document, error) {
	if err := ValidateEntityName(entity); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	lock := s.lockFor(entity)
	lock.RLock()
	defer lock.RUnlock()

	return readDocFile(s.docPath(entity, id), entity, id)
}

// Replace performs a full whole-file overwrite; the document must already
// exist and its id is preserved from the path, not the body.
func (s *Store) Replace(entity string, id int, doc model.Document) error {
	if err := ValidateEntityName(entity); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}

	lock := s.lockFor(entity)
	lock.Lock()
	defer lock.Unlock()

	path := s.docPath(entity, id)
	if _, err := os.Stat(path); err != nil {
		return rerr.Newf(rerr.NotFound, "%s/%d not found", entity, id)
	}

	out := model.CloneDocument(doc)
	out["id"] = id
	return writeDocFile(path, out)
}

// applyPatch computes the merged document for patch on top of current per
// null_policy, without touching disk.
func applyPatch(current, patch model.Document, id int, policy NullPolicy) model.Document {
	merged := model.CloneDocument(current)
	for k, v := range patch {
		if k == "id" {
			continue
		}
		if v == nil {
			if policy == NullPolicyDelete {
				delete(merged, k)
				continue
			}
			merged[k] = nil
			continue
		}
		merged[k] = model.Clone(v)
	}
	merged["id"] = id
	return merged
}

// Merge applies patch on top of the stored document per null_policy, passes
// the merged candidate to validate while the per-entity lock is still held,
// and only writes the merged result when validate reports no error. This
// keeps the merged document from ever reaching disk before it has passed
// schema validation, and keeps the read-compute-validate-write sequence
// atomic with respect to other writers of the same entity.
func (s *Store) Merge(entity string, id int, patch model.Document, policy NullPolicy, validate func(model.Document) error) (model.Document, error) {
	if err := ValidateEntityName(entity); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	lock := s.lockFor(entity)
	lock.Lock()
	defer lock.Unlock()

	path := s.docPath(entity, id)
	current, err := readDocFile(path, entity, id)
	if err != nil {
		return nil, err
	}

	merged := applyPatch(current, patch, id, policy)

	if validate != nil {
		if err := validate(merged); err != nil {
			return nil, err
		}
	}

	if err := writeDocFile(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes a single document file without cascading. Use
// DeleteCascading for reference-aware deletion.
func (s *Store) Delete(entity string, id int) error {
	if err := ValidateEntityName(entity); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}

	lock := s.lockFor(entity)
	lock.Lock()
	defer lock.Unlock()

	path := s.docPath(entity, id)
	if _, err := os.Stat(path); err != nil {
		return rerr.Newf(rerr.NotFound, "%s/%d not found", entity, id)
	}
	if err := os.Remove(path); err != nil {
		return rerr.Wrap(rerr.Internal, "delete document", err)
	}
	return nil
}

// List returns every document currently stored for entity, in ascending id
// order; callers apply any other sort and pagination on top.
func (s *Store) List(entity string) ([]model.Document, error) {
	if err := ValidateEntityName(entity); err != nil {
		return nil, err
	}

	lock := s.lockFor(entity)
	lock.RLock()
	defer lock.RUnlock()

	return s.listLocked(entity)
}

func (s *Store) listLocked(entity string) ([]model.Document, error) {
	dir := s.entityDir(entity)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rerr.Wrap(rerr.Internal, "list entity directory", err)
	}

	var docs []model.Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var doc model.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		ai, _ := model.IDOf(docs[i])
		aj, _ := model.IDOf(docs[j])
		return ai < aj
	})
	return docs, nil
}

// Entities lists the entity directories currently present under the
// store's schema root, used to scan every entity during cascading delete.
func (s *Store) Entities() ([]string, error) {
	dir := filepath.Join(s.baseDir, s.schema)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rerr.Wrap(rerr.Internal, "list schema root", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// DeleteCascading removes (entity, id) and transitively every document
// whose REF field points at an already-deleted node. The worklist is
// seeded with the initial target; each pop removes the file, records the
// deletion, and scans every entity's documents (the popped target itself
// excepted) for a REF match,
// enqueueing new targets. Already-deleted identifiers are tracked so a
// target is never re-enqueued, bounding total work to one scan pass per
// distinct deleted node. Returns the ordered list of deleted node
// identifiers in "<entity>:<id>" form.
func (s *Store) DeleteCascading(entity string, id int) ([]string, error) {
	if err := ValidateEntityName(entity); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	type target struct {
		entity string
		id     int
	}

	if _, err := s.Get(entity, id); err != nil {
		return nil, err
	}

	entities, err := s.Entities()
	if err != nil {
		return nil, err
	}

	deleted := make(map[string]bool)
	var order []string
	queue := []target{{entity, id}}

	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		key := t.entity + ":" + strconv.Itoa(t.id)
		if deleted[key] {
			continue
		}

		lock := s.lockFor(t.entity)
		lock.Lock()
		path := s.docPath(t.entity, t.id)
		removeErr := os.Remove(path)
		lock.Unlock()
		if removeErr != nil && !os.IsNotExist(removeErr) {
			return order, rerr.Wrap(rerr.Internal, "delete document during cascade", removeErr)
		}

		deleted[key] = true
		order = append(order, key)

		for _, e := range entities {
			docs, err := s.List(e)
			if err != nil {
				continue
			}
			for _, d := range docs {
				did, ok := model.IDOf(d)
				if !ok {
					continue
				}
				if e == t.entity && did == t.id {
					continue
				}
				if referencesTarget(d, t.entity, t.id) {
					dkey := e + ":" + strconv.Itoa(did)
					if !deleted[dkey] {
						queue = append(queue, target{e, did})
					}
				}
			}
		}
	}

	return order, nil
}

func referencesTarget(doc model.Document, entity string, id int) bool {
	for _, v := range doc {
		if containsRefTo(v, entity, id) {
			return true
		}
	}
	return false
}

func containsRefTo(v interface{}, entity string, id int) bool {
	switch t := v.(type) {
	case map[string]interface{}:
		if model.IsRef(t) {
			r := model.AsRef(t)
			return r.Entity == entity && r.ID == id
		}
		for _, vv := range t {
			if containsRefTo(vv, entity, id) {
				return true
			}
		}
	case []interface{}:
		for _, vv := range t {
			if containsRefTo(vv, entity, id) {
				return true
			}
		}
	}
	return false
}

func writeDocFile(path string, doc model.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return rerr.Wrap(rerr.Internal, "marshal document", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return rerr.Wrap(rerr.Internal, "write document", err)
	}
	return nil
}

func readDocFile(path, entity string, id int) (model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerr.Newf(rerr.NotFound, "%s/%d not found", entity, id)
		}
		return nil, rerr.Wrap(rerr.Internal, "read document", err)
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, rerr.Wrap(rerr.Internal, "decode document", err)
	}
	return doc, nil
}
