// Package logging configures the process-wide zerolog logger and exposes
// helpers for deriving per-component loggers, mirroring the way ethpandaops/dora
// attaches a "module" field to each subsystem's logger.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Init configures the global zerolog logger from the LOG_LEVEL env-style
// value ("debug", "info", "warn", "error"; default "info").
func Init(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
	base = log
}

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// For returns a logger tagged with a "module" field, the granularity the
// ingestion pipeline logs at (one logger per chain/component).
func For(module string) zerolog.Logger {
	return base.With().Str("module", module).Logger()
}

// ForChain returns a logger tagged with both "module" and "chain_id" fields.
func ForChain(module string, chainID uint32) zerolog.Logger {
	return base.With().Str("module", module).Uint32("chain_id", chainID).Logger()
}
