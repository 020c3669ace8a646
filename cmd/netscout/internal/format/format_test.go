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

package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vulntor/netscout/pkg/probe"
)

func TestPrintJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeJSON, false, false)

	require.NoError(t, f.PrintJSON(map[string]string{"name": "netscout"}))
	require.Equal(t, "{\n  \"name\": \"netscout\"\n}\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestPrintTable(t *testing.T) {
	tests := []struct {
		name     string
		mode     OutputMode
		contains []string
	}{
		{name: "text", mode: ModeText, contains: []string{"PORT", "STATE", "22", "open"}},
		{name: "json", mode: ModeJSON, contains: []string{`"port": "22"`, `"state": "open"`}},
		{name: "yaml", mode: ModeYAML, contains: []string{`port: "22"`, "state: open"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			f := New(&stdout, &stderr, tt.mode, false, false)
			require.NoError(t, f.PrintTable([]string{"Port", "State"}, [][]string{{"22", "open"}}))
			for _, want := range tt.contains {
				assert.Contains(t, stdout.String(), want)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	t.Run("text goes to stdout", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeText, false, false).PrintSummary("done"))
		assert.Equal(t, "done\n", stdout.String())
	})
	t.Run("structured goes to stderr", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeJSON, false, false).PrintSummary("done"))
		assert.Empty(t, stdout.String())
		assert.Equal(t, "done\n", stderr.String())
	})
	t.Run("quiet", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeText, true, false).PrintSummary("done"))
		assert.Empty(t, stdout.String())
		assert.Empty(t, stderr.String())
	})
}

func TestPrintError(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		f := New(&stdout, &stderr, ModeText, false, false)
		require.NoError(t, f.PrintError(errors.New("boom"), "try again"))
		assert.Contains(t, stderr.String(), "Error: boom")
		assert.Contains(t, stderr.String(), "try again")
	})
	t.Run("json", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		f := New(&stdout, &stderr, ModeJSON, false, false)
		require.NoError(t, f.PrintError(errors.New("boom")))

		var payload map[string]any
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &payload))
		assert.Equal(t, false, payload["success"])
		assert.Equal(t, "boom", payload["error"])
	})
	t.Run("nil", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeText, false, false).PrintError(nil))
		assert.Empty(t, stderr.String())
	})
}

func TestParseAndValidateMode(t *testing.T) {
	assert.Equal(t, ModeJSON, ParseMode("JSON"))
	assert.Equal(t, ModeYAML, ParseMode("yml"))
	assert.Equal(t, ModeText, ParseMode("whatever"))

	assert.NoError(t, ValidateMode("yaml"))
	assert.Error(t, ValidateMode("xml"))
}

func TestFromCommand(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
		cmd.Flags().String("output", "text", "")
		cmd.Flags().BoolP("json", "j", false, "")
		cmd.Flags().Bool("quiet", false, "")
		cmd.Flags().Bool("no-color", false, "")
		require.NoError(t, cmd.ParseFlags(args))
		return cmd
	}

	assert.Equal(t, ModeText, FromCommand(newCmd(), "text", true).Mode())
	assert.Equal(t, ModeYAML, FromCommand(newCmd(), "yaml", true).Mode())
	assert.Equal(t, ModeJSON, FromCommand(newCmd("--output", "json"), "yaml", true).Mode())
	assert.Equal(t, ModeJSON, FromCommand(newCmd("-j"), "text", true).Mode())
}

func sampleSession(cmd probe.CommandType) probe.Session {
	s := probe.NewSession(cmd, probe.ScanNone, probe.ProtocolICMP, "192.0.2.1")
	s.ProbeStatus = probe.StatusDone
	s.ElapsedTime = 42 * time.Millisecond
	return s
}

func TestBanner(t *testing.T) {
	s := sampleSession(probe.CommandPing)
	plain := Banner(s, false)
	assert.Contains(t, plain, "Ping [Done]")
	assert.Contains(t, plain, "192.0.2.1")
	assert.Contains(t, plain, "42.000ms")
	assert.Contains(t, plain, s.ProbeID)
}

func TestRenderResult_Text(t *testing.T) {
	port := probe.PortPtr(443)
	tests := []struct {
		name     string
		result   probe.Result
		contains []string
	}{
		{
			name: "port scan",
			result: &probe.PortScanResult{
				Session: sampleSession(probe.CommandPortScan),
				Nodes: []probe.Node{{
					IP:       "192.0.2.1",
					HostName: "web.example",
					Ports: []probe.Port{
						{Number: 22, State: probe.PortClosed, Service: "ssh"},
						{Number: 443, State: probe.PortOpen, Service: "https"},
					},
					OS: &probe.OSGuess{Family: "Linux", Name: "Linux", Generation: "5.x", Confidence: 1, Technique: "exact"},
				}},
			},
			contains: []string{"192.0.2.1 (web.example)", "Linux 5.x (exact 1.00)", "https", "1 host, 1 open port"},
		},
		{
			name: "host scan",
			result: &probe.HostScanResult{
				Session: sampleSession(probe.CommandHostScan),
				Nodes:   []probe.Node{{IP: "192.0.2.7", TTL: 57}},
			},
			contains: []string{"192.0.2.7", "57", "1 host up"},
		},
		{
			name: "ping",
			result: &probe.PingResult{
				Session: sampleSession(probe.CommandPing),
				Stat: probe.PingStat{
					Responses: []probe.Response{
						{Seq: 1, IP: "192.0.2.1", Port: port, TTL: 64, RTT: 10 * time.Millisecond, Status: probe.StatusDone},
						{Seq: 2, IP: "192.0.2.1", Port: port, Status: probe.StatusTimeout},
					},
					Transmitted: 2,
					Received:    1,
					Min:         10 * time.Millisecond,
					Avg:         10 * time.Millisecond,
					Max:         10 * time.Millisecond,
				},
			},
			contains: []string{"443", "10.000ms", "Timeout", "2 transmitted, 1 received, 50.0% loss"},
		},
		{
			name: "traceroute",
			result: &probe.TracerouteResult{
				Session: sampleSession(probe.CommandTraceroute),
				Nodes: []probe.Response{
					{Seq: 1, IP: "198.51.100.1", Status: probe.StatusDone, NodeType: probe.NodeIntermediate},
					{Seq: 2, IP: "198.51.100.9", Status: probe.StatusTimeout},
					{Seq: 3, IP: "192.0.2.1", Status: probe.StatusDone, NodeType: probe.NodeDestination},
				},
			},
			contains: []string{"198.51.100.1", "Intermediate", "*", "Destination"},
		},
		{
			name: "domain scan",
			result: &probe.DomainScanResult{
				Session:    sampleSession(probe.CommandDomainScan),
				BaseDomain: "example.com",
				Domains:    []probe.Domain{{Name: "www.example.com", IPs: []string{"192.0.2.80", "192.0.2.81"}}},
			},
			contains: []string{"www.example.com", "192.0.2.80, 192.0.2.81", "1 domain found under example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			f := New(&stdout, &stderr, ModeText, false, false)
			require.NoError(t, RenderResult(f, tt.result))
			for _, want := range tt.contains {
				assert.Contains(t, stdout.String(), want)
			}
		})
	}
}

func TestRenderResult_JSONIsDecodable(t *testing.T) {
	res := &probe.DomainScanResult{
		Session:    sampleSession(probe.CommandDomainScan),
		BaseDomain: "example.com",
		Domains:    []probe.Domain{{Name: "www.example.com", IPs: []string{"192.0.2.80"}}},
	}
	var stdout, stderr bytes.Buffer
	require.NoError(t, RenderResult(New(&stdout, &stderr, ModeJSON, false, false), res))

	decoded, err := probe.DecodeResult(stdout.Bytes())
	require.NoError(t, err)
	require.IsType(t, &probe.DomainScanResult{}, decoded)
	assert.Equal(t, res.ProbeID, decoded.Meta().ProbeID)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	res := &probe.HostScanResult{
		Session: sampleSession(probe.CommandHostScan),
		Nodes:   []probe.Node{{IP: "192.0.2.7", TTL: 57}},
	}

	jsonPath := filepath.Join(dir, "out", "scan.json")
	require.NoError(t, Save(jsonPath, res))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	decoded, err := probe.DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, res.ProbeID, decoded.Meta().ProbeID)

	yamlPath := filepath.Join(dir, "scan.yaml")
	require.NoError(t, Save(yamlPath, res))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, res.ProbeID, doc["probe_id"])
	assert.Equal(t, "HostScan", doc["command_type"])
}
