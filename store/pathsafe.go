// Package store implements the entity document store: per-entity numeric ID
// allocation with crash-safe concurrent writers, whole-file JSON replacement
// semantics, and REF-driven cascading delete.
package store

import (
	"regexp"

	"github.com/evalgo/rserv/rerr"
)

var entityNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateEntityName enforces the path-safety rule: entity names are
// constrained to [A-Za-z0-9_]+ so no path component can escape the data
// root or carry a path separator.
func ValidateEntityName(entity string) error {
	if entity == "" || !entityNamePattern.MatchString(entity) {
		return rerr.InvalidArgumentf("invalid entity name %q", entity)
	}
	return nil
}

// ValidateID enforces that ids are positive integers.
func ValidateID(id int) error {
	if id <= 0 {
		return rerr.InvalidArgumentf("invalid id %d: must be a positive integer", id)
	}
	return nil
}
