// Package model defines the tagged-value representation of JSON document
// fields shared by the entity store, schema validator, graph overlay, and
// Sulpher engine. Representing REF as a first-class case, rather than
// re-parsing a generic map on every access, lets schema checks and sort
// comparisons switch on Kind instead of type-asserting ad hoc.
package model

import "strconv"

// Document is a JSON object keyed by field name. It is the sole
// representation of a stored entity, loaded and saved verbatim by the
// entity store.
type Document map[string]interface{}

// Ref is the distinguished `{"type":"REF","entity":...,"id":...}` value
// that denotes a pointer to another document.
type Ref struct {
	Entity string
	ID     int
}

// ToMap renders the Ref back into its wire representation.
func (r Ref) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":   "REF",
		"entity": r.Entity,
		"id":     r.ID,
	}
}

// Kind tags the dynamic type of a decoded JSON value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	KindRef
)

// KindOf classifies a decoded JSON value (as produced by encoding/json into
// interface{}, so integers surface as float64) and recognises the REF
// sentinel as its own case.
func KindOf(v interface{}) Kind {
	switch t := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string:
		return KindString
	case float64:
		if t == float64(int64(t)) {
			return KindInt
		}
		return KindFloat
	case int, int64:
		return KindInt
	case []interface{}:
		return KindArray
	case map[string]interface{}:
		if IsRef(t) {
			return KindRef
		}
		return KindObject
	default:
		return KindObject
	}
}

// IsRef reports whether m is a well-formed REF value.
func IsRef(m map[string]interface{}) bool {
	t, ok := m["type"].(string)
	if !ok || t != "REF" {
		return false
	}
	if _, ok := m["entity"].(string); !ok {
		return false
	}
	switch m["id"].(type) {
	case float64, int, int64, string:
		return true
	}
	return false
}

// AsRef extracts a Ref from a decoded REF map. The caller must have already
// confirmed IsRef(m).
func AsRef(m map[string]interface{}) Ref {
	id, _ := AsInt(m["id"])
	entity, _ := m["entity"].(string)
	return Ref{Entity: entity, ID: id}
}

// AsInt converts a decoded JSON numeric (float64), an int, or a numeric
// string into an int.
func AsInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IDOf extracts the mandatory "id" field from a document as an int.
func IDOf(doc Document) (int, bool) {
	v, ok := doc["id"]
	if !ok {
		return 0, false
	}
	return AsInt(v)
}

// Clone performs a deep copy of a document sufficient for safe mutation
// (patch/merge), recursing through nested maps and slices.
func Clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	default:
		return v
	}
}

// CloneDocument returns a deep copy of doc.
func CloneDocument(doc Document) Document {
	return Clone(map[string]interface{}(doc)).(map[string]interface{})
}
