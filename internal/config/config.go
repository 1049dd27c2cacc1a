// Package config holds runtime settings read from the environment and
// command-line flags, and loads JSON5 job files.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/titanous/json5"
)

// Environment variable names.
const (
	EnvStorage   = "TRACEFINITY_STORAGE"
	EnvLogLevel  = "TRACEFINITY_LOG_LEVEL"
	EnvWorkers   = "TRACEFINITY_WORKERS"
	EnvMeshCells = "TRACEFINITY_MESH_CELLS"
	EnvBedSize   = "TRACEFINITY_BED_SIZE"
)

// Defaults applied when neither the environment nor a flag sets a value.
const (
	DefaultLogLevel  = "info"
	DefaultMeshCells = 256
	DefaultBedSize   = 256.0
)

// Config is the process-wide runtime configuration.
type Config struct {
	StorageDir string
	LogLevel   string
	LogPretty  bool
	Workers    int
	MeshCells  int
	BedSize    float64
	UserID     string
}

// Default returns the built-in configuration.
func Default() Config {
	storage := "storage"
	if dir, err := os.UserCacheDir(); err == nil {
		storage = filepath.Join(dir, "tracefinity")
	}
	return Config{
		StorageDir: storage,
		LogLevel:   DefaultLogLevel,
		LogPretty:  true,
		Workers:    max(1, runtime.NumCPU()/2),
		MeshCells:  DefaultMeshCells,
		BedSize:    DefaultBedSize,
		UserID:     "default",
	}
}

// FromEnv returns Default overridden by any TRACEFINITY_* variables.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvStorage); ok && v != "" {
		cfg.StorageDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("%s: invalid worker count %q", EnvWorkers, v)
		}
		cfg.Workers = n
	}
	if v, ok := lookup(EnvMeshCells); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			return cfg, fmt.Errorf("%s: invalid mesh cell count %q", EnvMeshCells, v)
		}
		cfg.MeshCells = n
	}
	if v, ok := lookup(EnvBedSize); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return cfg, fmt.Errorf("%s: invalid bed size %q", EnvBedSize, v)
		}
		cfg.BedSize = f
	}
	return cfg, nil
}

// RegisterFlags binds the shared flags to fs, using the current values of
// cfg as defaults.
func (cfg *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cfg.StorageDir, "storage", cfg.StorageDir, "Storage root for records and generated files")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "Human-readable log output")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent build slots")
	fs.IntVar(&cfg.MeshCells, "mesh-cells", cfg.MeshCells, "Mesh resolution along the longest axis")
	fs.Float64Var(&cfg.BedSize, "bed", cfg.BedSize, "Print bed size in mm (0 disables splitting)")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "User id that scopes stored records")
}

// Validate checks the values flags may have changed.
func (cfg Config) Validate() error {
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", cfg.Workers)
	}
	if cfg.MeshCells < 2 {
		return fmt.Errorf("mesh cells must be >= 2, got %d", cfg.MeshCells)
	}
	if cfg.BedSize < 0 {
		return fmt.Errorf("bed size must be >= 0, got %g", cfg.BedSize)
	}
	return nil
}

// LoadJSON5 decodes a JSON5 file into v.
func LoadJSON5(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json5.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
