package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir returns the config directory for netscout.
// Order: XDG_CONFIG_HOME/netscout, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "netscout")
	}
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Netscout")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "Netscout")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "netscout")
}

// ConfigFile returns the path of name inside ConfigDir.
func ConfigFile(name string) string {
	return filepath.Join(ConfigDir(), name)
}
