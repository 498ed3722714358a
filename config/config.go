// Package config loads rserv's runtime settings from flags, environment
// variables, and defaults (in that precedence order), reusing the
// prefixed-environment-variable and structural-validator idioms this
// codebase uses for every other service's configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NullPolicy controls how a PATCH null value is interpreted.
type NullPolicy string

const (
	NullPolicyStore  NullPolicy = "store"
	NullPolicyDelete NullPolicy = "delete"
)

// GraphMode controls whether and how the graph overlay is maintained.
type GraphMode string

const (
	GraphDisabled GraphMode = "disabled"
	GraphMemory   GraphMode = "memory"
	GraphIndexed  GraphMode = "indexed"
)

// CyclePolicy controls DFS behaviour when a traversal would revisit a node.
type CyclePolicy string

const (
	CycleError   CyclePolicy = "error"
	CycleWarn    CyclePolicy = "warn"
	CycleIgnore  CyclePolicy = "ignore"
	CycleDisable CyclePolicy = "disable"
)

// Settings is the single configuration record threaded through every
// component; nothing reads environment variables directly once Settings has
// been loaded.
type Settings struct {
	Host string
	Port int

	BaseDir    string // data root, holds <schema>/<entity>/<id>.json
	SchemaRoot string // schema root, holds <schema>/<entity>.json
	SchemaName string

	PatchNull       NullPolicy
	CacheTTL        time.Duration
	GraphQueryTTL   time.Duration
	DefaultPageSize int
	MaxQueryDepth   int
	RefEmbedDepth   int
	CascadingDelete bool
	GraphMode       GraphMode
	FulltextEnabled bool
	CycleDetection  CyclePolicy

	LogLevel  string
	LogFormat string

	QueryWorkers int
}

// GraphEnabled reports whether the graph overlay is active in any form.
// Treated purely as rserv_graph != disabled; see SPEC_FULL.md's Open
// Question decisions for why the legacy graph_enabled key is ignored.
func (s Settings) GraphEnabled() bool {
	return s.GraphMode != GraphDisabled
}

// Indexed reports whether the inverted index should be consulted for
// start-node selection during Sulpher execution.
func (s Settings) Indexed() bool {
	return s.GraphMode == GraphIndexed
}

// Defaults returns the built-in default settings.
func Defaults() Settings {
	return Settings{
		Host:            "0.0.0.0",
		Port:            8080,
		BaseDir:         "data",
		SchemaRoot:      "schema",
		SchemaName:      "default",
		PatchNull:       NullPolicyStore,
		CacheTTL:        30 * time.Second,
		GraphQueryTTL:   5 * time.Minute,
		DefaultPageSize: 20,
		MaxQueryDepth:   6,
		RefEmbedDepth:   1,
		CascadingDelete: false,
		GraphMode:       GraphMemory,
		FulltextEnabled: false,
		CycleDetection:  CycleWarn,
		LogLevel:        "info",
		LogFormat:       "text",
		QueryWorkers:    4,
	}
}

// Load builds Settings from an already-flag-bound viper instance, the
// RSERV_-prefixed environment, and Defaults(), in flags > env > defaults
// precedence order (viper's native resolution order once BindPFlag has
// been used by the caller for each flag).
func Load(v *viper.Viper) (Settings, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("RSERV")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	d := Defaults()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("base_dir", d.BaseDir)
	v.SetDefault("schema_root", d.SchemaRoot)
	v.SetDefault("schema_name", d.SchemaName)
	v.SetDefault("patch_null", string(d.PatchNull))
	v.SetDefault("cache_ttl", int(d.CacheTTL.Seconds()))
	v.SetDefault("graph_query_ttl", int(d.GraphQueryTTL.Seconds()))
	v.SetDefault("default_page_size", d.DefaultPageSize)
	v.SetDefault("max_query_depth", d.MaxQueryDepth)
	v.SetDefault("ref_embed_depth", d.RefEmbedDepth)
	v.SetDefault("cascading_delete", d.CascadingDelete)
	v.SetDefault("rserv_graph", string(d.GraphMode))
	v.SetDefault("fulltext_enabled", d.FulltextEnabled)
	v.SetDefault("graph_cycle_detection", string(d.CycleDetection))
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("query_workers", d.QueryWorkers)

	s := Settings{
		Host:            v.GetString("host"),
		Port:            v.GetInt("port"),
		BaseDir:         v.GetString("base_dir"),
		SchemaRoot:      v.GetString("schema_root"),
		SchemaName:      v.GetString("schema_name"),
		PatchNull:       NullPolicy(v.GetString("patch_null")),
		CacheTTL:        time.Duration(v.GetInt("cache_ttl")) * time.Second,
		GraphQueryTTL:   time.Duration(v.GetInt("graph_query_ttl")) * time.Second,
		DefaultPageSize: v.GetInt("default_page_size"),
		MaxQueryDepth:   v.GetInt("max_query_depth"),
		RefEmbedDepth:   v.GetInt("ref_embed_depth"),
		CascadingDelete: v.GetBool("cascading_delete"),
		GraphMode:       GraphMode(v.GetString("rserv_graph")),
		FulltextEnabled: v.GetBool("fulltext_enabled"),
		CycleDetection:  CyclePolicy(v.GetString("graph_cycle_detection")),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		QueryWorkers:    v.GetInt("query_workers"),
	}

	if err := s.Validate().Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validator accumulates configuration validation errors, mirroring the
// accumulate-don't-short-circuit style used by the document validator.
type Validator struct {
	errors []string
}

func (v *Validator) require(cond bool, msg string) {
	if !cond {
		v.errors = append(v.errors, msg)
	}
}

// Validate runs every structural check against s and returns the
// accumulated Validator.
func (s Settings) Validate() *Validator {
	v := &Validator{}
	v.require(s.Port > 0 && s.Port <= 65535, "port must be between 1 and 65535")
	v.require(s.PatchNull == NullPolicyStore || s.PatchNull == NullPolicyDelete,
		"patch_null must be 'store' or 'delete'")
	switch s.GraphMode {
	case GraphDisabled, GraphMemory, GraphIndexed:
	default:
		v.errors = append(v.errors, "rserv_graph must be one of disabled, memory, indexed")
	}
	switch s.CycleDetection {
	case CycleError, CycleWarn, CycleIgnore, CycleDisable:
	default:
		v.errors = append(v.errors, "graph_cycle_detection must be one of error, warn, ignore, disable")
	}
	v.require(s.DefaultPageSize > 0, "default_page_size must be positive")
	v.require(s.MaxQueryDepth > 0, "max_query_depth must be positive")
	v.require(s.QueryWorkers > 0, "query_workers must be positive")
	return v
}

// IsValid reports whether no validation errors were accumulated.
func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

// Errors returns the accumulated validation messages.
func (v *Validator) Errors() []string { return v.errors }

// Validate returns a single error summarising all accumulated messages, or
// nil if the settings were valid.
func (v *Validator) Validate() error {
	if v.IsValid() {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(v.errors, "; "))
}
