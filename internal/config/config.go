package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for mediasort.
type Config struct {
	SourceRoot string        `toml:"source_root"`
	OutputRoot string        `toml:"output_root"`
	LogDir     string        `toml:"log_dir"`
	Catalog    CatalogConfig `toml:"catalog"`
	Scan       ScanConfig    `toml:"scan"`
	Resolve    ResolveConfig `toml:"resolve"`
	Migrate    MigrateConfig `toml:"migrate"`
}

// CatalogConfig selects the catalog backend.
// Tagged union: Type determines which other fields are relevant.
type CatalogConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ScanConfig holds traversal and hashing settings.
type ScanConfig struct {
	BlockSize int      `toml:"block_size"` // streaming read size in bytes
	Workers   int      `toml:"workers"`    // hashing pool size
	BatchSize int      `toml:"batch_size"` // discoveries per commit
	Ignore    []string `toml:"ignore"`     // glob patterns excluded from traversal
}

// ResolveConfig holds deduplication settings.
type ResolveConfig struct {
	BatchSize    int  `toml:"batch_size"`
	RenameOnCopy bool `toml:"rename_on_copy"` // false preserves original filenames when possible
}

// MigrateConfig holds copy settings.
type MigrateConfig struct {
	Workers int `toml:"workers"` // copy pool size
}

// Default block size for streaming hashes: 1 MiB.
const DefaultBlockSize = 1 << 20

// DefaultBatchSize bounds transaction overhead while keeping the
// partial-failure blast radius to one batch.
const DefaultBatchSize = 2000

// NewConfig creates a Config with sensible defaults for the given roots.
func NewConfig(sourceRoot, outputRoot, baseDir string) *Config {
	return &Config{
		SourceRoot: sourceRoot,
		OutputRoot: outputRoot,
		LogDir:     filepath.Join(baseDir, "log"),
		Catalog: CatalogConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "catalog"),
		},
		Scan: ScanConfig{
			BlockSize: DefaultBlockSize,
			Workers:   runtime.NumCPU(),
			BatchSize: DefaultBatchSize,
		},
		Resolve: ResolveConfig{
			BatchSize:    DefaultBatchSize,
			RenameOnCopy: true,
		},
		Migrate: MigrateConfig{
			Workers: runtime.NumCPU(),
		},
	}
}

// Normalize fills zero values with defaults. Called after decoding so older
// config files keep working when fields are added.
func (c *Config) Normalize() {
	if c.Scan.BlockSize <= 0 {
		c.Scan.BlockSize = DefaultBlockSize
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = runtime.NumCPU()
	}
	if c.Scan.BatchSize <= 0 {
		c.Scan.BatchSize = DefaultBatchSize
	}
	if c.Resolve.BatchSize <= 0 {
		c.Resolve.BatchSize = DefaultBatchSize
	}
	if c.Migrate.Workers <= 0 {
		c.Migrate.Workers = runtime.NumCPU()
	}
	if c.Catalog.Type == "" {
		c.Catalog.Type = "sqlite"
	}
}

// Validate checks the parts of the config that must be right before any
// worker is spawned. Source and output roots are only required for the
// pipeline commands, so they are checked separately by ValidateRoots.
func (c *Config) Validate() error {
	switch c.Catalog.Type {
	case "sqlite":
		if c.Catalog.DataDir == "" {
			return fmt.Errorf("catalog.data_dir is required for sqlite catalogs")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown catalog type: %s", c.Catalog.Type)
	}
	return nil
}

// ValidateRoots verifies the source root exists and is a directory, and
// that the output root, if present, is a directory. Nothing is created
// here: dry runs must never materialize the output root. These are fatal
// configuration errors, caught at startup.
func (c *Config) ValidateRoots() error {
	if c.SourceRoot == "" {
		return fmt.Errorf("source_root is not configured")
	}
	info, err := os.Stat(c.SourceRoot)
	if err != nil {
		return fmt.Errorf("source root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source root is not a directory: %s", c.SourceRoot)
	}

	if c.OutputRoot == "" {
		return fmt.Errorf("output_root is not configured")
	}
	if info, err := os.Stat(c.OutputRoot); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("output root is not a directory: %s", c.OutputRoot)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("output root not accessible: %w", err)
	}
	return nil
}

// EnsureOutputRoot creates the output root. Called only on live migrations,
// never on dry runs.
func (c *Config) EnsureOutputRoot() error {
	if err := os.MkdirAll(c.OutputRoot, 0755); err != nil {
		return fmt.Errorf("output root not writable: %w", err)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
