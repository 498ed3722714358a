// Package refs expands REF fields inside a loaded document into the
// referenced documents themselves, up to a bounded recursion depth.
package refs

import "github.com/evalgo/rserv/model"

// Loader fetches a single document by entity and id. The store satisfies
// this directly; callers may also route it through the cache.
type Loader func(entity string, id int) (model.Document, error)

// Expand replaces every REF value in doc whose field name appears in
// fields with the referenced document, recursing into the expanded
// document with depth+1 for the same field set. Recursion stops at
// maxDepth or when the target cannot be loaded, in which case the REF is
// left untouched. Cycles are bounded purely by maxDepth; no visited set is
// tracked, matching the depth-only cycle bound used by this resolver.
func Expand(doc model.Document, fields map[string]bool, maxDepth int, load Loader) model.Document {
	return expand(doc, fields, maxDepth, 0, load)
}

func expand(doc model.Document, fields map[string]bool, maxDepth, depth int, load Loader) model.Document {
	if depth >= maxDepth || len(fields) == 0 {
		return doc
	}

	out := model.CloneDocument(doc)
	for field := range fields {
		v, ok := out[field]
		if !ok {
			continue
		}
		m, isMap := v.(map[string]interface{})
		if !isMap || !model.IsRef(m) {
			continue
		}
		ref := model.AsRef(m)
		target, err := load(ref.Entity, ref.ID)
		if err != nil {
			continue
		}
		out[field] = expand(target, fields, maxDepth, depth+1, load)
	}
	return out
}
