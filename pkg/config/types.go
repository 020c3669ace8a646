// pkg/config/types.go
package config

import "time"

// Config is the root configuration of netscout.
type Config struct {
	Log     LogConfig     `description:"Logging configuration" koanf:"log"`
	Probe   ProbeConfig   `description:"Probe defaults" koanf:"-"`
	Storage StorageConfig `description:"Storage configuration" koanf:"storage"`
	Output  OutputConfig  `description:"Output configuration" koanf:"output"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level: debug | info | warn | error" koanf:"level"`
	Format string `description:"Log format: json | text" koanf:"format"`
	File   string `description:"Log file path" koanf:"file"`

	// TelemetryFile receives one JSON line per fingerprint resolution.
	TelemetryFile string `description:"Fingerprint telemetry file (JSONL)" koanf:"telemetry_file"`
}

// ProbeConfig holds the defaults applied to every probing command. It is
// decoded separately from the rest of the tree so that values coming from
// the environment ("3s", "true") are coerced the same way as typed flags.
type ProbeConfig struct {
	Timeout        time.Duration `description:"Per-probe timeout" koanf:"timeout"`
	WaitTime       time.Duration `description:"Extra wait for late replies" koanf:"wait_time"`
	Rate           time.Duration `description:"Minimum interval between sends, 0 disables throttling" koanf:"rate"`
	OverallTimeout time.Duration `description:"Session deadline, 0 disables it" koanf:"overall_timeout"`
	Concurrency    int           `description:"Maximum probes in flight" koanf:"concurrency"`
	MaxHop         int           `description:"Traceroute hop limit" koanf:"max_hop"`
	Count          int           `description:"Probes sent by ping and neighbor" koanf:"count"`
	Random         bool          `description:"Visit targets and ports in random order" koanf:"random"`
	Interface      string        `description:"Network interface for link-layer probes" koanf:"interface"`
	Resolvers      []string      `description:"DNS servers used by subdomain scans" koanf:"resolvers"`
}

// StorageConfig holds workspace and corpus locations.
type StorageConfig struct {
	WorkspaceDir string `description:"Workspace root directory" koanf:"workspace_dir"`
	CorpusPath   string `description:"Reference corpus override (YAML)" koanf:"corpus_path"`
	Persist      bool   `description:"Persist finished sessions to history" koanf:"persist"`
}

// OutputConfig holds rendering defaults.
type OutputConfig struct {
	Format string `description:"Output format: text | json | yaml" koanf:"format"`
	Color  bool   `description:"Colorize text output" koanf:"color"`
}
