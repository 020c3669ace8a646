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

// Package prober implements the per-protocol probe strategies. A Prober sends
// exactly one outbound unit per request and blocks until the matching reply,
// the request deadline, or a local failure. Replies are matched by request
// identity so that concurrent requests on one Prober never consume each
// other's replies.
package prober

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/vulntor/netscout/pkg/probe"
)

// DefaultTTL is the IP TTL used when a request does not set one.
const DefaultTTL uint8 = 64

// TracerouteBasePort is the UDP destination port of hop 0 in a UDP traceroute.
const TracerouteBasePort uint16 = 33435

// ErrClosed is returned by operations on a closed Prober or Transport.
var ErrClosed = errors.New("prober closed")

// Request describes a single probe.
type Request struct {
	Target  probe.Target
	Port    uint16        // Destination port; 0 for portless probes
	Seq     uint32        // Sequence number, unique within a session
	TTL     uint8         // Outgoing IP TTL; 0 means DefaultTTL
	Hop     uint8         // Traceroute hop; 0 outside traceroute
	Timeout time.Duration // Per-probe deadline; 0 means the context deadline only
}

func (r Request) ttl() uint8 {
	if r.TTL == 0 {
		return DefaultTTL
	}
	return r.TTL
}

// Prober sends one probe and interprets its reply.
type Prober interface {
	// Protocol is the label carried by every response.
	Protocol() probe.Protocol

	// SendAndWait never returns an error: local failures, negative replies
	// and missing replies are all encoded in the response status.
	SendAndWait(ctx context.Context, req Request) probe.Response

	// Close releases the underlying sockets.
	Close() error
}

// newResponse returns the response skeleton for req, initially Timeout.
func newResponse(req Request, proto probe.Protocol) probe.Response {
	return probe.Response{
		Seq:      req.Seq,
		IP:       req.Target.Addr.String(),
		HostName: req.Target.Host,
		Port:     probe.PortPtr(req.Port),
		Hop:      req.Hop,
		Status:   probe.StatusTimeout,
		Protocol: proto,
		NodeType: probe.NodeDestination,
	}
}

func failed(resp probe.Response, err error) probe.Response {
	resp.Status = probe.StatusError
	resp.Error = err.Error()
	return resp
}

// withRequestTimeout bounds ctx by the request timeout.
func withRequestTimeout(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	if req.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, req.Timeout)
}

// fromReply records the replying address. A reply from anyone but the
// target (an intermediate router) does not carry the target host name.
func fromReply(resp *probe.Response, req Request, from netip.Addr) {
	resp.IP = from.String()
	if from != req.Target.Addr {
		resp.HostName = ""
	}
}

// stampHop fills TTL-derived fields of a reply.
func stampHop(resp *probe.Response, replyTTL uint8) {
	resp.TTL = replyTTL
	if resp.Hop == 0 {
		resp.Hop = probe.HopsFromTTL(replyTTL)
	}
}

// Kind selects a probe strategy.
type Kind string

const (
	KindICMPEcho   Kind = "icmp-echo"
	KindTCPSyn     Kind = "tcp-syn"
	KindTCPConnect Kind = "tcp-connect"
	KindUDP        Kind = "udp"
	KindARP        Kind = "arp"
	KindDNS        Kind = "dns"
)

// KindFor maps a scan type to its probe strategy.
func KindFor(scan probe.ScanType) (Kind, error) {
	switch scan {
	case probe.ScanTCPSyn, probe.ScanTCPPing:
		return KindTCPSyn, nil
	case probe.ScanTCPConnect:
		return KindTCPConnect, nil
	case probe.ScanICMPPing:
		return KindICMPEcho, nil
	case probe.ScanUDPPing:
		return KindUDP, nil
	case probe.ScanARP:
		return KindARP, nil
	default:
		return "", fmt.Errorf("no prober for scan type %q", scan)
	}
}

// Config carries what the probers need beyond a Request.
type Config struct {
	Interface  string        // Interface used by the ARP prober; empty selects the default
	DNSServers []string      // Servers used by the DNS prober; empty uses the system list
	DNSTimeout time.Duration // Single exchange timeout of the DNS prober
}

// Open creates a Prober of the given kind. Raw socket kinds require
// privileges; the returned error is the caller's signal to fail the session
// before any probe is sent.
func Open(kind Kind, cfg Config) (Prober, error) {
	switch kind {
	case KindICMPEcho:
		return NewICMPProber()
	case KindTCPSyn:
		return NewTCPSynProber()
	case KindTCPConnect:
		return NewTCPConnectProber(), nil
	case KindUDP:
		return NewUDPProber()
	case KindARP:
		return NewARPProber(cfg.Interface)
	case KindDNS:
		return NewDNSProber(cfg.DNSServers, cfg.DNSTimeout)
	default:
		return nil, fmt.Errorf("unknown prober kind %q", kind)
	}
}
