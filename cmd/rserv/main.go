// Command rserv starts the document/graph server: it loads configuration
// from flags, environment, and an optional config file, wires the entity
// store, schema registry, graph overlay, cache, query session manager, and
// full-text indexer together, and serves the HTTP API until it receives
// SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/evalgo/rserv/api"
	"github.com/evalgo/rserv/cache"
	"github.com/evalgo/rserv/config"
	"github.com/evalgo/rserv/fulltext"
	"github.com/evalgo/rserv/graph"
	"github.com/evalgo/rserv/query"
	"github.com/evalgo/rserv/rlog"
	"github.com/evalgo/rserv/schema"
	"github.com/evalgo/rserv/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rserv",
	Short: "File-backed document server with a property-graph overlay",
	Run:   runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rserv.yaml)")
	rootCmd.PersistentFlags().String("host", "", "bind host")
	rootCmd.PersistentFlags().Int("port", 0, "bind port")
	rootCmd.PersistentFlags().String("base-dir", "", "document storage root")
	rootCmd.PersistentFlags().String("schema-root", "", "schema definition root")
	rootCmd.PersistentFlags().String("schema-name", "", "active schema name")
	rootCmd.PersistentFlags().String("rserv-graph", "", "graph mode: disabled, memory, indexed")
	rootCmd.PersistentFlags().Bool("fulltext-enabled", false, "enable the full-text search contract")
	rootCmd.PersistentFlags().Bool("cascading-delete", false, "delete REF-linked documents transitively")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "text or json")

	_ = viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))
	_ = viper.BindPFlag("schema_root", rootCmd.PersistentFlags().Lookup("schema-root"))
	_ = viper.BindPFlag("schema_name", rootCmd.PersistentFlags().Lookup("schema-name"))
	_ = viper.BindPFlag("rserv_graph", rootCmd.PersistentFlags().Lookup("rserv-graph"))
	_ = viper.BindPFlag("fulltext_enabled", rootCmd.PersistentFlags().Lookup("fulltext-enabled"))
	_ = viper.BindPFlag("cascading_delete", rootCmd.PersistentFlags().Lookup("cascading-delete"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("rserv")
	}
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

// runServer wires every component together and serves until a shutdown
// signal arrives: load configuration, build the entity store and schema
// registry, bring up the graph overlay (rebuilding or loading per mode),
// start the cache/query background sweepers, mount the HTTP routes, and
// wait for SIGINT/SIGTERM to drain in-flight requests before exiting.
func runServer(cmd *cobra.Command, args []string) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := rlog.New(rlog.Config{Level: settings.LogLevel, Format: settings.LogFormat})

	st := store.New(settings.BaseDir, settings.SchemaName)
	reg, err := schema.Load(settings.BaseDir, settings.SchemaRoot, settings.SchemaName, logger)
	if err != nil {
		log.Fatalf("failed to load schema registry: %v", err)
	}

	var overlay *graph.Overlay
	var queries *query.Manager
	if settings.GraphEnabled() {
		dataPath := filepath.Join(settings.BaseDir, "graph.data")
		indexPath := filepath.Join(settings.BaseDir, "graph.index")
		overlay = graph.New(dataPath, indexPath)

		if settings.Indexed() {
			if err := overlay.Rebuild(st); err != nil {
				log.Fatalf("failed to rebuild graph overlay: %v", err)
			}
		} else if err := overlay.Load(); err != nil {
			log.Fatalf("failed to load graph overlay: %v", err)
		}

		auditPath := filepath.Join(settings.BaseDir, "query_audit.db")
		ledger, err := query.OpenAuditLedger(auditPath)
		if err != nil {
			log.Fatalf("failed to open query audit ledger: %v", err)
		}
		defer ledger.Close()

		queries = query.NewManager(settings.QueryWorkers, settings.GraphQueryTTL, ledger)
	}

	var indexer fulltext.Indexer
	if settings.FulltextEnabled {
		indexer = fulltext.UnimplementedIndexer{}
	} else {
		indexer = fulltext.NoopIndexer{}
	}

	memCache := cache.New()

	srv := &api.Server{
		Settings: settings,
		Store:    st,
		Schema:   reg,
		Overlay:  overlay,
		Queries:  queries,
		Cache:    memCache,
		Fulltext: indexer,
		Log:      logger,
	}
	e := srv.NewEcho()

	stop := make(chan struct{})
	go runSweepers(stop, memCache, queries, settings)

	go func() {
		addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
		logger.Infof("rserv listening on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	close(stop)

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
}

// runSweepers periodically evicts expired cache entries and stale query
// sessions until stop is closed.
func runSweepers(stop <-chan struct{}, c *cache.Cache, qm *query.Manager, settings config.Settings) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Sweep()
			if qm != nil {
				qm.Cleanup()
			}
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
