// Package rlog provides the structured logging infrastructure shared by every
// rserv component. It routes error-level output to stderr and everything
// else to stdout, so containerized deployments can split the two streams
// without parsing log content downstream.
package rlog

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus-formatted lines to stdout or stderr based on
// level, so orchestrators can treat the two streams differently without the
// logger opening two files itself.
type OutputSplitter struct{}

// Write implements io.Writer, sending error-level lines to stderr.
func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte("level=fatal")) ||
		bytes.Contains(p, []byte(`"level":"error"`)) || bytes.Contains(p, []byte(`"level":"fatal"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Config controls how New builds a logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "text"
}

// New builds a logrus.Logger configured per cfg, with the OutputSplitter
// installed and full timestamps enabled.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}

	logger.SetOutput(OutputSplitter{})
	return logger
}

// Default is a ready-to-use logger for callers that have not wired one in
// (tests, package-level helpers).
var Default = New(Config{Level: "info", Format: "text"})
