package main

import (
	"os"

	"vjlink/internal/config"
	"vjlink/internal/stats"
)

// statWriter is the union of the performance and transition sinks. Every
// concrete writer in the stats package implements both.
type statWriter interface {
	stats.PerfWriter
	stats.TransitionWriter
}

// newStatWriters sets up stat sinks based on flags, config, and env vars.
// It returns the writer and a cleanup function to close any resources.
func newStatWriters(cfg *config.Config, printOnly bool, logFile string) (statWriter, func(), error) {
	cleanup := func() {}

	base, err := baseStatWriter(cfg, printOnly)
	if err != nil {
		return nil, nil, err
	}
	if logFile == "" {
		return base, cleanup, nil
	}

	fw, err := stats.NewFileWriter(logFile, logFile+".transitions")
	if err != nil {
		return nil, nil, err
	}
	mw := stats.NewMultiWriter(
		[]stats.PerfWriter{base, fw},
		[]stats.TransitionWriter{base, fw},
	)
	cleanup = func() { fw.Close() }
	return mw, cleanup, nil
}

// baseStatWriter chooses the underlying sink. GreptimeDB is used when an
// endpoint is configured or set via GREPTIMEDB_ENDPOINT, otherwise STDOUT.
func baseStatWriter(cfg *config.Config, printOnly bool) (statWriter, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	endpoint := cfg.Stats.GreptimeEndpoint
	if env := os.Getenv("GREPTIMEDB_ENDPOINT"); env != "" {
		endpoint = env
	}
	if printOnly || endpoint == "" {
		return stats.NewJSONStdoutWriter(), nil
	}
	database := cfg.Stats.Database
	if database == "" {
		database = "public"
	}
	return stats.NewGreptimeDBWriter(endpoint, database)
}
