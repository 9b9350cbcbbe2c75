// Package config loads docarchive configuration.
//
// Configuration is layered, lowest precedence first:
//  1. Hardcoded defaults (NewConfig)
//  2. User config (~/.config/docarchive/config.yaml)
//  3. Project config (.docarchive.yaml in the working directory)
//  4. Environment variables (DOCARCHIVE_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"
)

// Config represents the complete docarchive configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	DataDir string        `yaml:"data_dir" json:"data_dir"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig configures the full-text index.
type SearchConfig struct {
	// Backend selects the index backend.
	// Options: "sqlite" (default, concurrent readers) or "bleve" (single process).
	Backend string `yaml:"backend" json:"backend"`

	// MinTokenLength drops shorter tokens from documents and queries.
	MinTokenLength int `yaml:"min_token_length" json:"min_token_length"`

	// StopWords are never indexed. Empty by default so recall is exact.
	StopWords []string `yaml:"stop_words" json:"stop_words"`
}

// StoreConfig configures the bundle store.
type StoreConfig struct {
	// CacheSize is the number of bundles kept in the read cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// IngestConfig configures ingestion and the consume folder.
type IngestConfig struct {
	Concurrency int   `yaml:"concurrency" json:"concurrency"`
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// ConsumeDir is watched for new PDFs when set. Empty disables the watcher.
	ConsumeDir string `yaml:"consume_dir" json:"consume_dir"`

	// ConsumeInterval is how long a file must be quiet before it is ingested.
	ConsumeInterval string `yaml:"consume_interval" json:"consume_interval"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr          string `yaml:"addr" json:"addr"`
	ReadTimeout   string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout  string `yaml:"write_timeout" json:"write_timeout"`
	ShutdownGrace string `yaml:"shutdown_grace" json:"shutdown_grace"`
	MaxUploadSize int64  `yaml:"max_upload_size" json:"max_upload_size"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			Backend:        "sqlite",
			MinTokenLength: 1,
			StopWords:      []string{},
		},
		Store: StoreConfig{
			CacheSize: 64,
		},
		Ingest: IngestConfig{
			Concurrency:     runtime.NumCPU(),
			MaxFileSize:     100 << 20,
			ConsumeDir:      "",
			ConsumeInterval: "2s",
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8000",
			ReadTimeout:   "30s",
			WriteTimeout:  "60s",
			ShutdownGrace: "10s",
			MaxUploadSize: 100 << 20,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// defaultDataDir returns ~/.docarchive/data.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docarchive", "data")
	}
	return filepath.Join(home, ".docarchive", "data")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/docarchive/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docarchive/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docarchive", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docarchive", "config.yaml")
	}
	return filepath.Join(home, ".config", "docarchive", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := parseYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration for the working directory dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Ingest.ConsumeDir = expandHome(cfg.Ingest.ConsumeDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ProjectConfigNames are the project config file names, in precedence order.
var ProjectConfigNames = []string{".docarchive.yaml", ".docarchive.yml"}

// loadFromFile merges the first project config found in dir.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var parsed Config
		if err := parseYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

// parseYAML reads path into out.
func parseYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	// Search
	if other.Search.Backend != "" {
		c.Search.Backend = other.Search.Backend
	}
	if other.Search.MinTokenLength != 0 {
		c.Search.MinTokenLength = other.Search.MinTokenLength
	}
	if other.Search.StopWords != nil {
		c.Search.StopWords = other.Search.StopWords
	}

	// Store
	if other.Store.CacheSize != 0 {
		c.Store.CacheSize = other.Store.CacheSize
	}

	// Ingest
	if other.Ingest.Concurrency != 0 {
		c.Ingest.Concurrency = other.Ingest.Concurrency
	}
	if other.Ingest.MaxFileSize != 0 {
		c.Ingest.MaxFileSize = other.Ingest.MaxFileSize
	}
	if other.Ingest.ConsumeDir != "" {
		c.Ingest.ConsumeDir = other.Ingest.ConsumeDir
	}
	if other.Ingest.ConsumeInterval != "" {
		c.Ingest.ConsumeInterval = other.Ingest.ConsumeInterval
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadTimeout != "" {
		c.Server.ReadTimeout = other.Server.ReadTimeout
	}
	if other.Server.WriteTimeout != "" {
		c.Server.WriteTimeout = other.Server.WriteTimeout
	}
	if other.Server.ShutdownGrace != "" {
		c.Server.ShutdownGrace = other.Server.ShutdownGrace
	}
	if other.Server.MaxUploadSize != 0 {
		c.Server.MaxUploadSize = other.Server.MaxUploadSize
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies DOCARCHIVE_* environment variable overrides.
// Malformed numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCARCHIVE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCARCHIVE_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = v
	}
	if v := os.Getenv("DOCARCHIVE_MIN_TOKEN_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MinTokenLength = n
		}
	}
	if v := os.Getenv("DOCARCHIVE_STOP_WORDS"); v != "" {
		c.Search.StopWords = splitList(v)
	}
	if v := os.Getenv("DOCARCHIVE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Store.CacheSize = n
		}
	}
	if v := os.Getenv("DOCARCHIVE_INGEST_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Concurrency = n
		}
	}
	if v := os.Getenv("DOCARCHIVE_CONSUME_DIR"); v != "" {
		c.Ingest.ConsumeDir = v
	}
	if v := os.Getenv("DOCARCHIVE_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DOCARCHIVE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	switch strings.ToLower(c.Search.Backend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("search.backend must be 'sqlite' or 'bleve', got %s", c.Search.Backend)
	}
	if c.Search.MinTokenLength < 1 {
		return fmt.Errorf("search.min_token_length must be at least 1, got %d", c.Search.MinTokenLength)
	}

	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store.cache_size must be non-negative, got %d", c.Store.CacheSize)
	}
	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("ingest.concurrency must be non-negative, got %d", c.Ingest.Concurrency)
	}
	if c.Ingest.MaxFileSize < 0 {
		return fmt.Errorf("ingest.max_file_size must be non-negative, got %d", c.Ingest.MaxFileSize)
	}
	if c.Server.MaxUploadSize < 0 {
		return fmt.Errorf("server.max_upload_size must be non-negative, got %d", c.Server.MaxUploadSize)
	}

	for name, value := range map[string]string{
		"ingest.consume_interval": c.Ingest.ConsumeInterval,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_grace":   c.Server.ShutdownGrace,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a duration like \"30s\", got %q", name, value)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// Duration parses a validated duration field. Invalid values yield fallback.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// WriteYAML writes the configuration to a YAML file atomically.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
