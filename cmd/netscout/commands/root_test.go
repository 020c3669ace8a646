// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/netscout/pkg/fingerprint"
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/scanexec"
	"github.com/vulntor/netscout/pkg/storage"
	"github.com/vulntor/netscout/pkg/version"
)

// run executes netscout against a private workspace and config directory.
func run(t *testing.T, workspace string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	full := append([]string{"--workspace-dir", workspace, "--no-color"}, args...)
	err := Execute(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func TestVersionPreparesWorkspace(t *testing.T) {
	ws := t.TempDir()
	out, err := run(t, ws, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)

	_, err = os.Stat(filepath.Join(ws, "sessions"))
	require.NoError(t, err)
}

func TestServiceLookup(t *testing.T) {
	out, err := run(t, t.TempDir(), "service", "22", "80", "-j")
	require.NoError(t, err)

	var entries []struct {
		Port    uint16 `json:"port"`
		Service string `json:"service_name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "ssh", entries[0].Service)
	assert.Equal(t, "http", entries[1].Service)
}

func TestOSLookup(t *testing.T) {
	t.Run("by ttl", func(t *testing.T) {
		out, err := run(t, t.TempDir(), "os", "--ttl", "57", "--output", "json")
		require.NoError(t, err)

		var entry fingerprint.OSTTL
		require.NoError(t, json.Unmarshal([]byte(out), &entry))
		assert.Equal(t, "Linux", entry.Family)
		assert.Equal(t, uint8(64), entry.InitialTTL)
	})

	t.Run("missing query", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "os")
		require.ErrorIs(t, err, fingerprint.ErrInvalidQuery)
		assert.Equal(t, 2, fingerprint.ExitCode(err))
	})

	t.Run("window without options", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "os", "--window", "64240")
		require.ErrorIs(t, err, fingerprint.ErrInvalidQuery)
	})
}

func TestInvalidInvocationsExitWithConfigCode(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "ping needs one target", args: []string{"ping", "192.0.2.1", "192.0.2.2"}},
		{name: "port needs a target", args: []string{"port"}},
		{name: "unknown flag", args: []string{"host", "192.0.2.1", "--bogus"}},
		{name: "unknown scan type", args: []string{"port", "192.0.2.1", "-T", "fin"}},
		{name: "unknown protocol", args: []string{"trace", "192.0.2.1", "-P", "sctp"}},
		{name: "bad history type", args: []string{"history", "list", "--type", "Scan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, t.TempDir(), tt.args...)
			require.Error(t, err)
			assert.Equal(t, 2, scanexec.ExitCode(err))
		})
	}
}

func persistSample(t *testing.T, workspace string, cmd probe.CommandType, target string) probe.Session {
	t.Helper()
	s := probe.NewSession(cmd, probe.ScanNone, probe.ProtocolICMP, target)
	s.ProbeStatus = probe.StatusDone
	res := &probe.PingResult{Session: s, Stat: probe.PingStat{Transmitted: 1, Received: 1}}
	require.NoError(t, storage.NewLocalHistory(workspace).Persist(context.Background(), res))
	return s
}

func TestHistoryCommands(t *testing.T) {
	ws := t.TempDir()
	first := persistSample(t, ws, probe.CommandPing, "192.0.2.1")
	persistSample(t, ws, probe.CommandPing, "192.0.2.2")

	out, err := run(t, ws, "history", "list", "-j")
	require.NoError(t, err)
	var page storage.ListPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 2, page.Total)

	out, err = run(t, ws, "history", "list", "-j", "--target", "192.0.2.1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Sessions, 1)
	assert.Equal(t, first.ProbeID, page.Sessions[0].ProbeID)

	out, err = run(t, ws, "history", "show", first.ProbeID, "-j")
	require.NoError(t, err)
	res, err := probe.DecodeResult([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, first.ProbeID, res.Meta().ProbeID)

	out, err = run(t, ws, "history", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Ping")
	assert.Contains(t, out, "2 sessions")

	out, err = run(t, ws, "history", "targets", "-j")
	require.NoError(t, err)
	var targets []string
	require.NoError(t, json.Unmarshal([]byte(out), &targets))
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, targets)

	_, err = run(t, ws, "history", "show", "missing-id")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHistoryFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cmd := &cobra.Command{Use: "list"}
	addHistoryFilterFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--type", "Ping,Traceroute",
		"--since", "2h",
		"--until", "2025-06-01T11:30:00Z",
		"--limit", "5",
	}))

	filter, err := historyFilter(cmd, now)
	require.NoError(t, err)
	assert.Equal(t, []probe.CommandType{probe.CommandPing, probe.CommandTraceroute}, filter.Types)
	assert.Equal(t, now.Add(-2*time.Hour), filter.Since)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC), filter.Until)
	assert.Equal(t, 5, filter.Limit)

	_, err = parseTimeFlag("since", "yesterday", now)
	require.Error(t, err)
}
