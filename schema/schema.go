// Package schema loads per-entity field rules and validates documents
// against them, including foreign-key existence and uniqueness checks
// against sibling files on disk.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/evalgo/rserv/model"
	"github.com/evalgo/rserv/rlog"
	"github.com/sirupsen/logrus"
)

// FieldType is one of the recognised value types a rule can constrain.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "boolean"
	TypeDatetime FieldType = "datetime"
	TypeDate     FieldType = "date"
	TypeJSON     FieldType = "json"
)

// ForeignKey names the entity and field a REF-like scalar value must match
// an existing document of.
type ForeignKey struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
}

// Rule is the validation contract for a single document field.
type Rule struct {
	Type       FieldType   `json:"type,omitempty"`
	Required   bool        `json:"required,omitempty"`
	MaxLength  int         `json:"max_length,omitempty"`
	Min        *float64    `json:"min,omitempty"`
	Max        *float64    `json:"max,omitempty"`
	Regex      string      `json:"regex,omitempty"`
	Unique     bool        `json:"unique,omitempty"`
	ForeignKey *ForeignKey `json:"foreign_key,omitempty"`

	compiled *regexp.Regexp
}

// EntitySchema maps field name to its rule.
type EntitySchema map[string]*Rule

// Registry holds one EntitySchema per entity, loaded once at startup.
type Registry struct {
	baseDir    string // data root, for foreign-key and uniqueness lookups
	schemaRoot string
	schemaName string
	entities   map[string]EntitySchema
	log        *logrus.Logger
}

// Load reads every `<schemaRoot>/<schemaName>/<entity>.json` file. A schema
// that fails to parse into well-formed rules is dropped with a warning;
// its entity then runs unvalidated rather than blocking startup.
func Load(baseDir, schemaRoot, schemaName string, log *logrus.Logger) (*Registry, error) {
	if log == nil {
		log = rlog.Default
	}
	r := &Registry{
		baseDir:    baseDir,
		schemaRoot: schemaRoot,
		schemaName: schemaName,
		entities:   make(map[string]EntitySchema),
		log:        log,
	}

	dir := filepath.Join(schemaRoot, schemaName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read schema root %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		entity := strings.TrimSuffix(e.Name(), ".json")
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("entity", entity).Warn("schema: unreadable, dropping")
			continue
		}
		var es EntitySchema
		if err := json.Unmarshal(raw, &es); err != nil {
			log.WithError(err).WithField("entity", entity).Warn("schema: malformed json, dropping")
			continue
		}
		if err := validateSchemaShape(es); err != nil {
			log.WithError(err).WithField("entity", entity).Warn("schema: structurally invalid, dropping")
			continue
		}
		r.entities[entity] = es
	}
	return r, nil
}

// validateSchemaShape checks every rule is internally consistent (known
// type, compilable regex) before it is trusted for document validation.
func validateSchemaShape(es EntitySchema) error {
	for field, rule := range es {
		if rule == nil {
			return fmt.Errorf("field %s: nil rule", field)
		}
		switch rule.Type {
		case "", TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDatetime, TypeDate, TypeJSON:
		default:
			return fmt.Errorf("field %s: unknown type %q", field, rule.Type)
		}
		if rule.Regex != "" {
			compiled, err := regexp.Compile(rule.Regex)
			if err != nil {
				return fmt.Errorf("field %s: bad regex: %w", field, err)
			}
			rule.compiled = compiled
		}
		if rule.ForeignKey != nil && (rule.ForeignKey.Entity == "" || rule.ForeignKey.Field == "") {
			return fmt.Errorf("field %s: foreign_key requires entity and field", field)
		}
	}
	return nil
}

// For returns the schema for an entity, or nil (meaning "no validation") if
// none was registered or it was dropped at load time.
func (r *Registry) For(entity string) EntitySchema {
	return r.entities[entity]
}

// Validate checks doc against entity's schema, accumulating every violation
// rather than stopping at the first. excludeID identifies the document
// currently being updated so it is skipped during uniqueness scans; pass 0
// for a fresh create.
func (r *Registry) Validate(entity string, doc model.Document, excludeID int) (bool, []string) {
	es := r.entities[entity]
	if es == nil {
		return true, nil
	}

	var errs []string
	for field, rule := range es {
		v, present := doc[field]

		if !present || v == nil {
			if rule.Required {
				errs = append(errs, fmt.Sprintf("%s: required field missing", field))
			}
			continue
		}

		if msg := checkType(field, v, rule.Type); msg != "" {
			errs = append(errs, msg)
			continue
		}

		if rule.Type == TypeString || rule.Type == "" {
			if s, ok := v.(string); ok {
				if rule.MaxLength > 0 && len(s) > rule.MaxLength {
					errs = append(errs, fmt.Sprintf("%s: exceeds max_length %d", field, rule.MaxLength))
				}
				if rule.compiled != nil && !rule.compiled.MatchString(s) {
					errs = append(errs, fmt.Sprintf("%s: does not match pattern", field))
				}
			}
		}

		if rule.Type == TypeInteger || rule.Type == TypeFloat {
			if n, ok := model.AsInt(v); ok {
				f := float64(n)
				if fv, isFloat := v.(float64); isFloat {
					f = fv
				}
				if rule.Min != nil && f < *rule.Min {
					errs = append(errs, fmt.Sprintf("%s: below minimum %v", field, *rule.Min))
				}
				if rule.Max != nil && f > *rule.Max {
					errs = append(errs, fmt.Sprintf("%s: above maximum %v", field, *rule.Max))
				}
			}
		}

		if rule.Unique {
			if dup, err := r.hasDuplicate(entity, field, v, excludeID); err != nil {
				errs = append(errs, fmt.Sprintf("%s: uniqueness check failed: %v", field, err))
			} else if dup {
				errs = append(errs, fmt.Sprintf("%s: value must be unique", field))
			}
		}

		if rule.ForeignKey != nil {
			if !r.foreignKeyExists(rule.ForeignKey, v) {
				errs = append(errs, fmt.Sprintf("%s: referenced %s/%v does not exist", field, rule.ForeignKey.Entity, v))
			}
		}
	}

	return len(errs) == 0, errs
}

func checkType(field string, v interface{}, t FieldType) string {
	switch t {
	case "", TypeJSON:
		return ""
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("%s: expected string", field)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("%s: expected boolean", field)
		}
	case TypeInteger:
		f, ok := v.(float64)
		if !ok || f != float64(int64(f)) {
			return fmt.Sprintf("%s: expected integer", field)
		}
	case TypeFloat:
		if _, ok := v.(float64); !ok {
			return fmt.Sprintf("%s: expected float", field)
		}
	case TypeDatetime:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("%s: expected datetime string", field)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Sprintf("%s: invalid ISO-8601 datetime", field)
		}
	case TypeDate:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("%s: expected date string", field)
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Sprintf("%s: invalid date, want YYYY-MM-DD", field)
		}
	}
	return ""
}

func (r *Registry) hasDuplicate(entity, field string, value interface{}, excludeID int) (bool, error) {
	dir := filepath.Join(r.baseDir, r.schemaName, entity)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		idStr := strings.TrimSuffix(e.Name(), ".json")
		id, _ := strconv.Atoi(idStr)
		if id == excludeID {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return false, err
		}
		var doc model.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return false, err
		}
		if other, ok := doc[field]; ok && model.Equal(other, value) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) foreignKeyExists(fk *ForeignKey, value interface{}) bool {
	id, ok := model.AsInt(value)
	if !ok {
		return false
	}
	path := filepath.Join(r.baseDir, r.schemaName, fk.Entity, strconv.Itoa(id)+".json")
	_, err := os.Stat(path)
	return err == nil
}
