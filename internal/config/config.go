// Package config loads the settlement node configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"
)

const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

type Config struct {
	ListenAddress string          `toml:"ListenAddress"`
	ProgramID     string          `toml:"ProgramID"`
	SeedFile      string          `toml:"SeedFile"`
	Storage       StorageConfig   `toml:"Storage"`
	Journal       JournalConfig   `toml:"Journal"`
	Log           LogConfig       `toml:"Log"`
	RateLimit     RateLimitConfig `toml:"RateLimit"`
	Tracing       TracingConfig   `toml:"Tracing"`
}

type StorageConfig struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path"`
	DSN     string `toml:"DSN"`
}

// JournalConfig locates the SQLite event journal. An empty path disables the
// journal: events are dropped and the events route is not served.
type JournalConfig struct {
	Path string `toml:"Path"`
}

type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RateLimitConfig bounds requests per client IP. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `toml:"Endpoint"`
	ServiceName string `toml:"ServiceName"`
	Insecure    bool   `toml:"Insecure"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress: ":8080",
		ProgramID:     "QWXKkZHHuVKooqKnRjdLoEPt8PGrjaFNB6bRURnDx4T",
		Storage:       StorageConfig{Backend: BackendMemory},
		Journal:       JournalConfig{Path: ":memory:"},
		Log:           LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		RateLimit:     RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
		Tracing:       TracingConfig{ServiceName: "token-sales"},
	}
}

// Load reads the configuration at path. A missing file is created with the
// defaults; an empty path returns the defaults without touching disk.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	if strings.TrimSpace(cfg.ProgramID) == "" {
		cfg.ProgramID = Default().ProgramID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("ListenAddress is required")
	}
	if _, err := solana.PublicKeyFromBase58(c.ProgramID); err != nil {
		return fmt.Errorf("invalid ProgramID %q: %w", c.ProgramID, err)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if c.Storage.Path == "" {
			return fmt.Errorf("Storage.Path is required for the leveldb backend")
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("Storage.DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("RateLimit values must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("RateLimit.Burst must be positive when limiting is enabled")
	}
	return nil
}

// ProgramKey returns the parsed program id.
func (c *Config) ProgramKey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.ProgramID)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
