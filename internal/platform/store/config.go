package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// StatementTimeout is applied as a per-connection runtime param; zero means server default
	StatementTimeout time.Duration
}
