package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved default locations for configuration and data.
type Paths struct {
	ConfigPath string // config file (MEDIASORT_CONFIG_PATH, else ~/.config/mediasort.toml)
	BaseDir    string // data directory (MEDIASORT_HOME, else ~/.local/share/mediasort)
	LogDir     string // BaseDir/log
}

// DefaultPaths resolves the default locations, environment variables first.
func DefaultPaths() (Paths, error) {
	configPath := os.Getenv("MEDIASORT_CONFIG_PATH")
	baseDir := os.Getenv("MEDIASORT_HOME")

	if configPath == "" || baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(homeDir, ".config", "mediasort.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(homeDir, ".local", "share", "mediasort")
		}
	}

	return Paths{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}
