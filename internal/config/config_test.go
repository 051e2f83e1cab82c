package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediasort/internal/config"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := config.NewConfig("/data/photos", "/data/organized", "/home/u/.local/share/mediasort")
	cfg.Scan.Ignore = []string{"*.tmp", ".thumbnails/*"}
	cfg.Resolve.RenameOnCopy = false

	var buf bytes.Buffer
	m := &config.Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.SourceRoot != cfg.SourceRoot {
		t.Errorf("SourceRoot = %q, want %q", got.SourceRoot, cfg.SourceRoot)
	}
	if got.OutputRoot != cfg.OutputRoot {
		t.Errorf("OutputRoot = %q, want %q", got.OutputRoot, cfg.OutputRoot)
	}
	if got.Catalog.Type != "sqlite" {
		t.Errorf("Catalog.Type = %q, want sqlite", got.Catalog.Type)
	}
	if got.Resolve.RenameOnCopy {
		t.Error("RenameOnCopy not preserved")
	}
	if len(got.Scan.Ignore) != 2 || got.Scan.Ignore[0] != "*.tmp" {
		t.Errorf("Scan.Ignore = %v, want the written patterns", got.Scan.Ignore)
	}
}

func TestReadNormalizesZeroValues(t *testing.T) {
	// A minimal hand-written config: every tuning knob left out.
	raw := `
source_root = "/data/photos"
output_root = "/data/organized"

[catalog]
type = "sqlite"
data_dir = "/data/catalog"
`
	m := &config.Manager{}
	cfg, err := m.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if cfg.Scan.BlockSize != config.DefaultBlockSize {
		t.Errorf("BlockSize = %d, want default %d", cfg.Scan.BlockSize, config.DefaultBlockSize)
	}
	if cfg.Scan.BatchSize != config.DefaultBatchSize {
		t.Errorf("Scan.BatchSize = %d, want default %d", cfg.Scan.BatchSize, config.DefaultBatchSize)
	}
	if cfg.Resolve.BatchSize != config.DefaultBatchSize {
		t.Errorf("Resolve.BatchSize = %d, want default %d", cfg.Resolve.BatchSize, config.DefaultBatchSize)
	}
	if cfg.Scan.Workers <= 0 {
		t.Errorf("Workers = %d, want positive", cfg.Scan.Workers)
	}
	if cfg.Migrate.Workers <= 0 {
		t.Errorf("Migrate.Workers = %d, want positive", cfg.Migrate.Workers)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		catalog config.CatalogConfig
		wantErr bool
	}{
		{"sqlite with data dir", config.CatalogConfig{Type: "sqlite", DataDir: "/data"}, false},
		{"sqlite without data dir", config.CatalogConfig{Type: "sqlite"}, true},
		{"memory", config.CatalogConfig{Type: "memory"}, false},
		{"unknown backend", config.CatalogConfig{Type: "postgres"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Catalog: tt.catalog}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRoots(t *testing.T) {
	t.Run("valid roots", func(t *testing.T) {
		cfg := &config.Config{
			SourceRoot: t.TempDir(),
			OutputRoot: filepath.Join(t.TempDir(), "out"),
		}
		if err := cfg.ValidateRoots(); err != nil {
			t.Errorf("ValidateRoots() error = %v", err)
		}
		// Validation only checks; it must not materialize the output root.
		if _, err := os.Stat(cfg.OutputRoot); !os.IsNotExist(err) {
			t.Error("ValidateRoots() created the output root")
		}

		if err := cfg.EnsureOutputRoot(); err != nil {
			t.Errorf("EnsureOutputRoot() error = %v", err)
		}
		if _, err := os.Stat(cfg.OutputRoot); err != nil {
			t.Errorf("output root not created: %v", err)
		}
	})

	t.Run("output root is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "out")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		cfg := &config.Config{SourceRoot: t.TempDir(), OutputRoot: file}
		if err := cfg.ValidateRoots(); err == nil {
			t.Error("expected error for non-directory output root")
		}
	})

	t.Run("missing source root", func(t *testing.T) {
		cfg := &config.Config{
			SourceRoot: filepath.Join(t.TempDir(), "does-not-exist"),
			OutputRoot: t.TempDir(),
		}
		if err := cfg.ValidateRoots(); err == nil {
			t.Error("expected error for missing source root")
		}
	})

	t.Run("source root is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "notadir")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		cfg := &config.Config{SourceRoot: file, OutputRoot: t.TempDir()}
		if err := cfg.ValidateRoots(); err == nil {
			t.Error("expected error for non-directory source root")
		}
	})

	t.Run("unconfigured roots", func(t *testing.T) {
		cfg := &config.Config{}
		if err := cfg.ValidateRoots(); err == nil {
			t.Error("expected error for empty roots")
		}
	})
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "mediasort.toml")
	cfg := config.NewConfig("/src", "/out", "/base")

	if err := config.Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := config.ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.SourceRoot != "/src" {
		t.Errorf("SourceRoot = %q, want /src", got.SourceRoot)
	}

	// Refuses to clobber an existing file.
	if err := config.Init(path, cfg); err == nil {
		t.Error("expected error when config already exists")
	}
}
