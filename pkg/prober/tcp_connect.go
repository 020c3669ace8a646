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

package prober

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/vulntor/netscout/pkg/probe"
)

// TCPConnectProber completes a full TCP handshake through the operating
// system. It needs no privileges but observes no TTL or TCP signal.
type TCPConnectProber struct {
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCPConnectProber returns a connect prober using net.Dialer.
func NewTCPConnectProber() *TCPConnectProber {
	d := &net.Dialer{}
	return &TCPConnectProber{dial: d.DialContext}
}

func (p *TCPConnectProber) Protocol() probe.Protocol { return probe.ProtocolTCP }

func (p *TCPConnectProber) SendAndWait(ctx context.Context, req Request) probe.Response {
	resp := newResponse(req, probe.ProtocolTCP)
	resp.PortState = probe.PortFiltered
	if req.Port == 0 {
		return failed(resp, errors.New("tcp probe requires a destination port"))
	}

	ctx, cancel := withRequestTimeout(ctx, req)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(ctx, "tcp", netip.AddrPortFrom(req.Target.Addr, req.Port).String())
	switch {
	case err == nil:
		resp.RTT = time.Since(start)
		resp.Status = probe.StatusDone
		resp.PortState = probe.PortOpen
		_ = conn.Close()
	case errors.Is(err, syscall.ECONNREFUSED):
		resp.RTT = time.Since(start)
		resp.Status = probe.StatusDone
		resp.PortState = probe.PortClosed
	case ctx.Err() != nil || isTimeout(err):
		// Timeout, port filtered.
	default:
		return failed(resp, err)
	}
	return resp
}

func (p *TCPConnectProber) Close() error { return nil }
