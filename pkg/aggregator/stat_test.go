package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/netscout/pkg/probe"
)

func TestDeriveStatus(t *testing.T) {
	done := probe.Response{Status: probe.StatusDone}
	failed := probe.Response{Status: probe.StatusError}
	timedOut := probe.Response{Status: probe.StatusTimeout}

	tests := []struct {
		name      string
		responses []probe.Response
		fatal     bool
		want      probe.Status
	}{
		{name: "any done wins", responses: []probe.Response{timedOut, failed, done}, want: probe.StatusDone},
		{name: "done wins over fatal", responses: []probe.Response{done}, fatal: true, want: probe.StatusDone},
		{name: "all timed out", responses: []probe.Response{timedOut, timedOut}, want: probe.StatusTimeout},
		{name: "error beats timeout", responses: []probe.Response{timedOut, failed}, want: probe.StatusError},
		{name: "fatal before any probe", fatal: true, want: probe.StatusError},
		{name: "nothing at all", want: probe.StatusTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.responses, tt.fatal))
		})
	}
}

func TestComputePingStat_Scenario(t *testing.T) {
	stat := ComputePingStat([]probe.Response{
		{Seq: 2, Status: probe.StatusTimeout},
		{Seq: 1, Status: probe.StatusDone, RTT: 10 * time.Millisecond},
		{Seq: 4, Status: probe.StatusTimeout},
		{Seq: 3, Status: probe.StatusDone, RTT: 30 * time.Millisecond},
	})

	assert.Equal(t, 4, stat.Transmitted)
	assert.Equal(t, 2, stat.Received)
	assert.Equal(t, 10*time.Millisecond, stat.Min)
	assert.Equal(t, 30*time.Millisecond, stat.Max)
	assert.Equal(t, 20*time.Millisecond, stat.Avg)
	require.Len(t, stat.Responses, 4)
	for i, r := range stat.Responses {
		assert.Equal(t, uint32(i+1), r.Seq)
	}
}

func TestComputePingStat_NothingReceived(t *testing.T) {
	stat := ComputePingStat([]probe.Response{
		{Seq: 1, Status: probe.StatusTimeout, RTT: time.Second},
		{Seq: 2, Status: probe.StatusError, RTT: time.Second},
	})
	assert.Equal(t, 2, stat.Transmitted)
	assert.Zero(t, stat.Received)
	assert.Zero(t, stat.Min)
	assert.Zero(t, stat.Avg)
	assert.Zero(t, stat.Max)
}

func TestComputePingStat_Bounds(t *testing.T) {
	rtts := []time.Duration{7, 3, 11, 5, 3}
	var responses []probe.Response
	for i, rtt := range rtts {
		responses = append(responses, probe.Response{Seq: uint32(i + 1), Status: probe.StatusDone, RTT: rtt * time.Millisecond})
	}
	responses = append(responses, probe.Response{Seq: 9, Status: probe.StatusTimeout, RTT: time.Hour})

	stat := ComputePingStat(responses)
	assert.LessOrEqual(t, stat.Received, stat.Transmitted)
	assert.LessOrEqual(t, stat.Min, stat.Avg)
	assert.LessOrEqual(t, stat.Avg, stat.Max)
	assert.Equal(t, 3*time.Millisecond, stat.Min)
	assert.Equal(t, 11*time.Millisecond, stat.Max)
}

func TestTraceNodes_StopsAtDestination(t *testing.T) {
	nodes := TraceNodes([]probe.Response{
		{Seq: 3, Status: probe.StatusDone, NodeType: probe.NodeDestination},
		{Seq: 1, Status: probe.StatusDone, NodeType: probe.NodeIntermediate},
		{Seq: 4, Status: probe.StatusDone, NodeType: probe.NodeDestination},
		{Seq: 2, Status: probe.StatusTimeout, NodeType: probe.NodeDestination},
	})
	require.Len(t, nodes, 3)
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{nodes[0].Seq, nodes[1].Seq, nodes[2].Seq})
}

func TestTraceNodes_NoDestination(t *testing.T) {
	nodes := TraceNodes([]probe.Response{
		{Seq: 2, Status: probe.StatusTimeout},
		{Seq: 1, Status: probe.StatusDone, NodeType: probe.NodeIntermediate},
	})
	assert.Len(t, nodes, 2)
}

func TestDomains(t *testing.T) {
	domains := Domains([]probe.Response{
		{HostName: "www.example.com", Status: probe.StatusDone, Addrs: []string{"192.0.2.2", "192.0.2.1"}},
		{HostName: "nope.example.com", Status: probe.StatusDone},
		{HostName: "api.example.com", Status: probe.StatusDone, Addrs: []string{"192.0.2.9"}},
		{HostName: "slow.example.com", Status: probe.StatusTimeout},
		{HostName: "www.example.com", Status: probe.StatusDone, Addrs: []string{"192.0.2.1"}},
	})
	require.Len(t, domains, 2)
	assert.Equal(t, "api.example.com", domains[0].Name)
	assert.Equal(t, probe.Domain{Name: "www.example.com", IPs: []string{"192.0.2.1", "192.0.2.2"}}, domains[1])
}
