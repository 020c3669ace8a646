package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config holds storage backend configuration.
type Config struct {
	// WorkspaceRoot is the root directory for session history.
	// Default: Platform-specific (see DefaultWorkspaceRoot())
	//   - Linux:   ~/.local/share/netscout
	//   - macOS:   ~/Library/Application Support/Netscout
	//   - Windows: %AppData%\Netscout
	WorkspaceRoot string `yaml:"workspace_root" koanf:"workspace_root"`

	// CorpusPath optionally replaces the embedded reference corpus with a
	// YAML file of the same schema.
	CorpusPath string `yaml:"corpus_path" koanf:"corpus_path"`
}

// Validate checks the configuration and normalizes paths in place.
func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return NewInvalidInputError("workspace_root", "workspace root directory is required")
	}

	root, err := expandPath(c.WorkspaceRoot)
	if err != nil {
		return NewInvalidInputError("workspace_root", err.Error())
	}
	c.WorkspaceRoot = root

	if c.CorpusPath != "" {
		p, err := expandPath(c.CorpusPath)
		if err != nil {
			return NewInvalidInputError("corpus_path", err.Error())
		}
		c.CorpusPath = p
	}
	return nil
}

func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		p = filepath.Join(home, p[2:])
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return abs, nil
}

// DefaultWorkspaceRoot returns the default workspace root for the current platform.
func DefaultWorkspaceRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("AppData")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Netscout"), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Netscout"), nil
	default:
		xdgData := os.Getenv("XDG_DATA_HOME")
		if xdgData == "" {
			xdgData = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(xdgData, "netscout"), nil
	}
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() (*Config, error) {
	workspaceRoot, err := DefaultWorkspaceRoot()
	if err != nil {
		return nil, err
	}
	return &Config{WorkspaceRoot: workspaceRoot}, nil
}
