// pkg/config/config.go
package config

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vulntor/netscout/pkg/storage"
)

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a Manager holding the default configuration.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns the baseline configuration used when no other
// source overrides a value.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Probe: ProbeConfig{
			Timeout:     3 * time.Second,
			WaitTime:    100 * time.Millisecond,
			Concurrency: 100,
			MaxHop:      64,
			Count:       4,
			Random:      true,
		},
		Storage: StorageConfig{
			Persist: true,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig into koanf keys.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"log.telemetry_file": def.Log.TelemetryFile,

		"probe.timeout":         def.Probe.Timeout,
		"probe.wait_time":       def.Probe.WaitTime,
		"probe.rate":            def.Probe.Rate,
		"probe.overall_timeout": def.Probe.OverallTimeout,
		"probe.concurrency":     def.Probe.Concurrency,
		"probe.max_hop":         def.Probe.MaxHop,
		"probe.count":           def.Probe.Count,
		"probe.random":          def.Probe.Random,
		"probe.interface":       def.Probe.Interface,
		"probe.resolvers":       def.Probe.Resolvers,

		"storage.workspace_dir": def.Storage.WorkspaceDir,
		"storage.corpus_path":   def.Storage.CorpusPath,
		"storage.persist":       def.Storage.Persist,

		"output.format": def.Output.Format,
		"output.color":  def.Output.Color,
	}
}

// Load reads defaults, the optional config file, NETSCOUT_* variables and
// changed flags, in that order.
func (m *Manager) Load(flags *pflag.FlagSet, configPath string) error {
	debug := false
	if flags != nil {
		debug, _ = flags.GetBool("debug")
	}
	return m.LoadWithSources(DefaultSources(configPath, flags, debug))
}

// LoadWithSources loads sources by ascending priority and replaces the
// current configuration.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := slices.Clone(sources)
	slices.SortStableFunc(ordered, func(a, b ConfigSource) int { return a.Priority() - b.Priority() })

	k := koanf.New(".")
	for _, src := range ordered {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := k.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	probeCfg, err := ProbeConfigFromMap(k.Cut("probe").Raw(), DefaultConfig().Probe)
	if err != nil {
		return err
	}
	newCfg.Probe = probeCfg

	m.koanfInstance = k
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.currentConfig
	cfg.Probe.Resolvers = slices.Clone(cfg.Probe.Resolvers)
	return cfg
}

// StorageConfig returns the storage backend configuration, falling back to
// the platform workspace when none is configured.
func (c Config) StorageConfig() (*storage.Config, error) {
	root := c.Storage.WorkspaceDir
	if root == "" {
		def, err := storage.DefaultWorkspaceRoot()
		if err != nil {
			return nil, err
		}
		root = def
	}
	return &storage.Config{WorkspaceRoot: root, CorpusPath: c.Storage.CorpusPath}, nil
}

// BindFlags defines the global flags that feed configuration keys.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-format", def.Log.Format, "Log format (text, json)")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	flags.String("telemetry", "", "Append fingerprint resolution events to this JSONL file")
	flags.String("workspace-dir", "", "Override workspace root directory")
	flags.String("corpus", "", "Reference corpus file overriding the embedded one")
	flags.Bool("no-persist", false, "Do not store this session in history")
	flags.Bool("no-color", false, "Disable colored output")
}
