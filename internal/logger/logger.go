// Package logger configures the process-wide zerolog logger: console output,
// optional rotated file, optional shipping to Axiom.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "scanlike"

// Options defines logger initialization parameters.
type Options struct {
	Level  string
	Pretty bool

	// Rotated log file; disabled when File is empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console output; stderr when nil.
	Console io.Writer

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var (
	ship *shipper
	file *lumberjack.Logger
)

// Init replaces the global logger. Call Close before exit to flush Axiom.
func Init(opts Options) error {
	Close()

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	sinks := []io.Writer{console}
	if opts.Pretty {
		sinks[0] = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		sinks = append(sinks, file)
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		s, err := newShipper(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			// keep running with local logs only
			fmt.Fprintf(os.Stderr, "axiom shipping disabled: %v\n", err)
		} else {
			ship = s
			sinks = append(sinks, s)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	return nil
}

// parseLevel accepts zerolog level names plus "warning"; anything else is info.
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Close flushes Axiom and closes the log file.
func Close() {
	if ship != nil {
		ship.Close()
		ship = nil
	}
	if file != nil {
		_ = file.Close()
		file = nil
	}
}

// ForJob returns a child of the global logger tagged with job_id.
func ForJob(jobID string) zerolog.Logger {
	return log.Logger.With().Str("job_id", jobID).Logger()
}
