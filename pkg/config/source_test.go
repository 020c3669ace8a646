package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSource_Load(t *testing.T) {
	k := koanf.New(".")
	src := &DefaultSource{}
	require.NoError(t, src.Load(k))

	assert.Equal(t, 10, src.Priority())
	assert.Equal(t, "warn", k.String("log.level"))
	assert.Equal(t, 100, k.Int("probe.concurrency"))
}

func TestFileSource_Load(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&FileSource{}).Load(k), "empty path is skipped")
	require.NoError(t, (&FileSource{Path: "/nonexistent/netscout.yaml"}).Load(k), "missing file is skipped")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\nprobe:\n  max_hop: 30\n"), 0o644))

	src := &FileSource{Path: path}
	require.NoError(t, src.Load(k))
	assert.Equal(t, "file:"+path, src.Name())
	assert.Equal(t, "info", k.String("log.level"))
	assert.Equal(t, 30, k.Int("probe.max_hop"))
}

func TestFileSource_Load_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unterminated"), 0o644))
	assert.Error(t, (&FileSource{Path: path}).Load(koanf.New(".")))
}

func TestEnvSource_Load(t *testing.T) {
	t.Setenv("NETSCOUT_LOG_LEVEL", "error")
	t.Setenv("NETSCOUT_PROBE_WAIT_TIME", "250ms")
	t.Setenv("NETSCOUT_STORAGE_WORKSPACE_DIR", "/srv/netscout")

	k := koanf.New(".")
	require.NoError(t, (&EnvSource{}).Load(k))

	assert.Equal(t, "error", k.String("log.level"))
	assert.Equal(t, "250ms", k.String("probe.wait_time"))
	assert.Equal(t, "/srv/netscout", k.String("storage.workspace_dir"))
}

func TestFlagSource_Load(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	fs.Int("maxhop", 64, "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--maxhop", "12", "--no-color", "--unrelated", "x"}))

	k := koanf.New(".")
	require.NoError(t, (&FlagSource{Flags: fs}).Load(k))

	assert.Equal(t, 12, k.Int("probe.max_hop"))
	assert.False(t, k.Bool("output.color"))
	assert.False(t, k.Exists("unrelated"))
	assert.False(t, k.Exists("storage.workspace_dir"), "unchanged flags are skipped")
}

func TestFlagSource_Load_Debug(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&FlagSource{Debug: true}).Load(k))
	assert.Equal(t, "debug", k.String("log.level"))
}

func TestDefaultSources_Order(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	sources := DefaultSources("", nil, false)
	require.Len(t, sources, 4)

	var priorities []int
	for _, s := range sources {
		priorities = append(priorities, s.Priority())
	}
	assert.Equal(t, []int{10, 20, 30, 40}, priorities)
	assert.Equal(t, "file:"+filepath.Join("/tmp/xdg", "netscout", "config.yaml"), sources[1].Name())
}

func TestLoadWithSources_PriorityOrdering(t *testing.T) {
	t.Setenv("NETSCOUT_LOG_LEVEL", "error")

	m := NewManager()
	require.NoError(t, m.LoadWithSources([]ConfigSource{
		&EnvSource{},
		&mockConfigSource{name: "custom", priority: 25, loadFunc: func(k *koanf.Koanf) error {
			return k.Set("log.level", "info")
		}},
		&DefaultSource{},
	}))
	assert.Equal(t, "error", m.Get().Log.Level)
}

type mockConfigSource struct {
	name     string
	priority int
	loadFunc func(k *koanf.Koanf) error
}

func (m *mockConfigSource) Name() string  { return m.name }
func (m *mockConfigSource) Priority() int { return m.priority }
func (m *mockConfigSource) Load(k *koanf.Koanf) error {
	if m.loadFunc != nil {
		return m.loadFunc(k)
	}
	return nil
}
