// Package config holds the structured configuration record for the chain
// index process: explicit defaults, strict validation returning descriptive
// errors, no loose flags threaded through by hand.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rubin.dev/cix/store"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Config holds the rollback window depth, the database path, and the
// write-batch size.
type Config struct {
	Depth     uint64 `json:"depth"`
	DBPath    string `json:"db_path"`
	BatchSize int    `json:"batch_size"`
	LogLevel  string `json:"log_level"`
}

// DefaultDataDir returns the per-user data directory used when no explicit
// database path is given.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".chain-index"
	}
	return filepath.Join(home, ".chain-index")
}

// DefaultConfig returns the conservative defaults: a 2160-block rollback
// window (Cardano's mainnet security parameter k=2160), the default data
// directory's chain-index.db file, and the store package's insert batch size.
func DefaultConfig() Config {
	return Config{
		Depth:     2160,
		DBPath:    filepath.Join(DefaultDataDir(), "chain-index.db"),
		BatchSize: store.DefaultBatchSize,
		LogLevel:  "info",
	}
}

// Validate rejects configurations this process cannot run with.
func Validate(cfg Config) error {
	if cfg.Depth == 0 {
		return errors.New("depth must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("db_path is required")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("batch_size must be > 0")
	}
	if cfg.BatchSize > 999 {
		return fmt.Errorf("batch_size %d exceeds the sqlite bound-variable ceiling", cfg.BatchSize)
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	return nil
}
