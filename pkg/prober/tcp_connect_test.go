package prober

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/netscout/pkg/probe"
)

var loopback = netip.MustParseAddr("127.0.0.1")

func TestTCPConnectProber_OpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	p := NewTCPConnectProber()
	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: loopback}, Port: port, Seq: 1, Timeout: time.Second})

	assert.Equal(t, probe.StatusDone, resp.Status)
	assert.Equal(t, probe.PortOpen, resp.PortState)
	assert.Equal(t, port, resp.PortNumber())
	assert.Nil(t, resp.Signal)
}

func TestTCPConnectProber_ClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	p := NewTCPConnectProber()
	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: loopback}, Port: port, Seq: 1, Timeout: time.Second})

	assert.Equal(t, probe.StatusDone, resp.Status)
	assert.Equal(t, probe.PortClosed, resp.PortState)
}

func TestTCPConnectProber_DeadlineIsTimeout(t *testing.T) {
	p := &TCPConnectProber{dial: func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: targetAddr}, Port: 22, Seq: 1, Timeout: 20 * time.Millisecond})
	assert.Equal(t, probe.StatusTimeout, resp.Status)
	assert.Equal(t, probe.PortFiltered, resp.PortState)
}

func TestTCPConnectProber_LocalFailureIsError(t *testing.T) {
	p := &TCPConnectProber{dial: func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("too many open files")
	}}

	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: targetAddr}, Port: 22, Seq: 1, Timeout: time.Second})
	assert.Equal(t, probe.StatusError, resp.Status)
	assert.Equal(t, "too many open files", resp.Error)
}
