// Package config loads and validates the operator tool's configuration:
// the data directory holding the protocol registry and distribution logs,
// the target network, the indexer endpoint and credential, and logging.
// The file format is one key=value pair per line; # starts a comment.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the operator tool's settings.
type Config struct {
	DataDir      string // registry database and distribution logs
	Network      string // "preprod" or "preview"
	IndexerURL   string // indexer base URL, empty selects the network preset
	IndexerKey   string // indexer project credential
	ProjectsFile string // project configuration JSON
	LogLevel     string
	LogFile      string // empty logs to stderr
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir:  filepath.Join(home, ".harvestflow"),
		Network:  "preprod",
		LogLevel: "info",
	}
}

// LoadConfig reads a configuration file, starting from defaults so a
// partial file only overrides what it names.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return cfg, fmt.Errorf("%w: %s line %d: %q", ErrInvalidConfigLine, path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "datadir":
			cfg.DataDir = value
		case "network":
			cfg.Network = value
		case "indexer.url":
			cfg.IndexerURL = value
		case "indexer.key":
			cfg.IndexerKey = value
		case "projects":
			cfg.ProjectsFile = value
		case "loglevel":
			cfg.LogLevel = value
		case "logfile":
			cfg.LogFile = value
		default:
			return cfg, fmt.Errorf("%w: %s line %d: unknown key %q", ErrInvalidConfigLine, path, lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to path, creating parent directories
// as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "datadir=%s\n", cfg.DataDir)
	fmt.Fprintf(&b, "network=%s\n", cfg.Network)
	fmt.Fprintf(&b, "indexer.url=%s\n", cfg.IndexerURL)
	fmt.Fprintf(&b, "indexer.key=%s\n", cfg.IndexerKey)
	fmt.Fprintf(&b, "projects=%s\n", cfg.ProjectsFile)
	fmt.Fprintf(&b, "loglevel=%s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile=%s\n", cfg.LogFile)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// RegistryPath returns the protocol registry database path under the data
// directory.
func (c Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}

// LogDir returns the distribution log directory under the data directory.
func (c Config) LogDir() string {
	return filepath.Join(c.DataDir, "airdrops")
}
