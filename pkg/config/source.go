// pkg/config/source.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vulntor/netscout/pkg/paths"
)

// EnvPrefix prefixes every environment variable read by EnvSource.
const EnvPrefix = "NETSCOUT_"

// ConfigSource loads configuration values into koanf. Sources are loaded by
// ascending priority; later sources override earlier ones.
//
// Built-in sources and their priorities:
//   - DefaultSource (10): hardcoded defaults
//   - FileSource (20): YAML config file
//   - EnvSource (30): NETSCOUT_* variables
//   - FlagSource (40): command-line flags that were set
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// DefaultSource provides hardcoded default configuration values.
type DefaultSource struct{}

func (s *DefaultSource) Name() string  { return "defaults" }
func (s *DefaultSource) Priority() int { return 10 }

func (s *DefaultSource) Load(k *koanf.Koanf) error {
	if err := k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("error loading defaults: %w", err)
	}
	return nil
}

// FileSource loads configuration from a YAML file. A missing file is not an
// error.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string  { return "file:" + s.Path }
func (s *FileSource) Priority() int { return 20 }

func (s *FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}
	if _, err := os.Stat(s.Path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error checking config file %s: %w", s.Path, err)
	}
	if err := k.Load(file.Provider(s.Path), yaml.Parser()); err != nil {
		return fmt.Errorf("error loading config file %s: %w", s.Path, err)
	}
	return nil
}

// EnvSource loads configuration from environment variables. The first
// underscore after the prefix separates the section from the key:
//
//	NETSCOUT_LOG_LEVEL       -> log.level
//	NETSCOUT_PROBE_WAIT_TIME -> probe.wait_time
type EnvSource struct {
	Prefix string
}

func (s *EnvSource) Name() string  { return "env" }
func (s *EnvSource) Priority() int { return 30 }

func (s *EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	if err := k.Load(env.Provider(prefix, ".", func(key string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(key, prefix)), "_", ".", 1)
	}), nil); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}
	return nil
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"log-format":      "log.format",
	"log-file":        "log.file",
	"telemetry":       "log.telemetry_file",
	"timeout":         "probe.timeout",
	"waittime":        "probe.wait_time",
	"rate":            "probe.rate",
	"overall-timeout": "probe.overall_timeout",
	"concurrency":     "probe.concurrency",
	"maxhop":          "probe.max_hop",
	"count":           "probe.count",
	"interface":       "probe.interface",
	"resolver":        "probe.resolvers",
	"workspace-dir":   "storage.workspace_dir",
	"corpus":          "storage.corpus_path",
	"output":          "output.format",
}

// negatedFlags are boolean flags that switch a key off.
var negatedFlags = map[string]string{
	"no-random":  "probe.random",
	"no-persist": "storage.persist",
	"no-color":   "output.color",
}

// FlagSource loads the flags that were set on the command line.
type FlagSource struct {
	Flags *pflag.FlagSet
	Debug bool // Forces log.level to debug
}

func (s *FlagSource) Name() string  { return "flags" }
func (s *FlagSource) Priority() int { return 40 }

func (s *FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags != nil {
		provider := posflag.ProviderWithFlag(s.Flags, ".", nil, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if key, ok := negatedFlags[f.Name]; ok {
				return key, f.Value.String() != "true"
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(s.Flags, f)
			}
			return "", nil
		})
		if err := k.Load(provider, nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}
	}
	if s.Debug {
		_ = k.Set("log.level", "debug")
	}
	return nil
}

// DefaultConfigFile is the config file read when --config is not given.
func DefaultConfigFile() string {
	return paths.ConfigFile("config.yaml")
}

// DefaultSources returns defaults, file, env and flags. An empty path
// selects DefaultConfigFile.
func DefaultSources(configPath string, flags *pflag.FlagSet, debug bool) []ConfigSource {
	if configPath == "" {
		configPath = DefaultConfigFile()
	}
	return []ConfigSource{
		&DefaultSource{},
		&FileSource{Path: configPath},
		&EnvSource{Prefix: EnvPrefix},
		&FlagSource{Flags: flags, Debug: debug},
	}
}
