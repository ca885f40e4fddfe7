package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultGlamourStyle = "dark"

// Poll cadence for the two refresh loops. The list is cheap to rebuild;
// the open thread refreshes faster so new replies show up promptly.
const (
	IndexRefreshInterval  = 3 * time.Second
	ThreadRefreshInterval = 2 * time.Second
)

type AppConfig struct {
	DSN       string
	LogPath   string
	ExportDir string
	Seed      int
}

func Parse() (AppConfig, error) {
	var cfg AppConfig

	flag.StringVar(&cfg.DSN, "dsn", "", "database DSN (postgres URL or SQLite file path; defaults to CHATLENS_DSN)")
	flag.StringVar(&cfg.LogPath, "log-path", "", "debug log file (empty disables logging)")
	flag.StringVar(&cfg.ExportDir, "export-dir", "", "override export output directory")
	flag.IntVar(&cfg.Seed, "seed", 0, "insert N demo conversations before starting")
	flag.Parse()

	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("CHATLENS_DSN")
	}
	if cfg.DSN == "" {
		path, err := defaultDBPath()
		if err != nil {
			return cfg, err
		}
		cfg.DSN = path
	}

	// A local SQLite DSN needs its parent directory to exist.
	if looksLikeFilePath(cfg.DSN) {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return cfg, fmt.Errorf("create db dir: %w", err)
		}
	}
	return cfg, nil
}

func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "chatlens", "chat.db"), nil
}

func looksLikeFilePath(dsn string) bool {
	if strings.Contains(dsn, "://") || strings.Contains(dsn, "host=") {
		return false
	}
	return strings.Contains(dsn, string(os.PathSeparator))
}
