package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ReturnsExpectedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 100, cfg.Probe.Concurrency)
	assert.Equal(t, 64, cfg.Probe.MaxHop)
	assert.Equal(t, 4, cfg.Probe.Count)
	assert.True(t, cfg.Probe.Random)
	assert.True(t, cfg.Storage.Persist)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestNewManager_StartsWithDefaults(t *testing.T) {
	m := NewManager()
	assert.Equal(t, DefaultConfig(), m.Get())
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	fs.Duration("timeout", time.Second, "")
	fs.Int("count", 4, "")
	fs.Bool("no-random", false, "")
	fs.StringSlice("resolver", nil, "")
	fs.String("output", "text", "")
	return fs
}

func TestManager_Load_DefaultsWhenNothingSet(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m := NewManager()
	require.NoError(t, m.Load(testFlags(), ""))

	cfg := m.Get()
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout, "unchanged flag defaults must not override config")
	assert.Equal(t, 4, cfg.Probe.Count)
	assert.True(t, cfg.Probe.Random)
}

func TestManager_Load_FlagsOverrideFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
probe:
  timeout: 5s
  count: 10
  concurrency: 20
output:
  format: yaml
`), 0o644))
	t.Setenv("NETSCOUT_PROBE_COUNT", "7")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--timeout", "750ms", "--no-random", "--resolver", "192.0.2.53", "--no-persist"}))

	m := NewManager()
	require.NoError(t, m.Load(fs, path))
	cfg := m.Get()

	assert.Equal(t, 750*time.Millisecond, cfg.Probe.Timeout)
	assert.Equal(t, 7, cfg.Probe.Count, "env overrides the file")
	assert.Equal(t, 20, cfg.Probe.Concurrency)
	assert.False(t, cfg.Probe.Random)
	assert.Equal(t, []string{"192.0.2.53"}, cfg.Probe.Resolvers)
	assert.False(t, cfg.Storage.Persist)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestManager_Load_DebugFlagSetsLogLevel(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--debug"}))

	m := NewManager()
	require.NoError(t, m.Load(fs, ""))
	assert.Equal(t, "debug", m.Get().Log.Level)
}

func TestManager_Load_RejectsBadProbeValues(t *testing.T) {
	t.Setenv("NETSCOUT_PROBE_TIMEOUT", "soon")
	m := NewManager()
	err := m.Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe.timeout")
	assert.Equal(t, DefaultConfig(), m.Get(), "a failed load keeps the previous config")
}

func TestConfig_StorageConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.WorkspaceDir = "/var/lib/netscout"
	cfg.Storage.CorpusPath = "/etc/netscout/corpus.yaml"

	sc, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/netscout", sc.WorkspaceRoot)
	assert.Equal(t, "/etc/netscout/corpus.yaml", sc.CorpusPath)

	cfg.Storage.WorkspaceDir = ""
	sc, err = cfg.StorageConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, sc.WorkspaceRoot)
}

func TestBindFlags_AddsGlobalFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	for _, name := range []string{"debug", "log-format", "log-file", "telemetry", "workspace-dir", "corpus", "no-persist", "no-color"} {
		assert.NotNil(t, fs.Lookup(name), name)
	}
}
