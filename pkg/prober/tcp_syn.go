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
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/netscout/pkg/netutil"
	"github.com/vulntor/netscout/pkg/probe"
)

// Ephemeral source port range used for raw TCP and UDP probes.
const (
	srcPortMin = 40000
	srcPortMax = 59999
)

// portAllocator hands out source ports round-robin; uniqueness among
// outstanding requests is enforced by demux registration.
type portAllocator struct {
	next atomic.Uint32
}

func newPortAllocator() *portAllocator {
	a := &portAllocator{}
	a.next.Store(rand.Uint32N(srcPortMax - srcPortMin + 1))
	return a
}

func (a *portAllocator) take() uint16 {
	n := a.next.Add(1)
	return uint16(srcPortMin + n%(srcPortMax-srcPortMin+1))
}

// registerPort reserves a free source port on dm.
func registerPort[M any](dm *demux[uint16, M], ports *portAllocator) (uint16, <-chan reply[M], func(), error) {
	for range srcPortMax - srcPortMin + 1 {
		port := ports.take()
		ch, release, err := dm.register(port)
		if errors.Is(err, errKeyInUse) {
			continue
		}
		return port, ch, release, err
	}
	return 0, nil, nil, errors.New("no free source port")
}

// SourceFunc resolves the local address used to reach a destination.
type SourceFunc func(dst netip.Addr) (netip.Addr, error)

// tcpReply is the decoded part of a TCP segment.
type tcpReply struct {
	SrcPort uint16
	SYN     bool
	ACK     bool
	RST     bool
	Window  uint16
	Options string
}

// TCPSynProber sends a single SYN per request (half-open scan). SYN-ACK maps
// to an open port, RST to a closed one; both are Done. The reply window,
// option ordering and TTL are kept as a fingerprint signal.
type TCPSynProber struct {
	tr     Transport
	dm     *demux[uint16, tcpReply]
	ports  *portAllocator
	source SourceFunc
}

// NewTCPSynProber opens a raw TCP socket.
func NewTCPSynProber() (*TCPSynProber, error) {
	tr, err := ListenRawIPv4("tcp")
	if err != nil {
		return nil, err
	}
	return newTCPSynProber(tr, netutil.SourceAddrFor), nil
}

func newTCPSynProber(tr Transport, source SourceFunc) *TCPSynProber {
	p := &TCPSynProber{
		tr:     tr,
		dm:     newDemux[uint16, tcpReply](log.With().Str("component", "prober").Str("protocol", "tcp").Logger()),
		ports:  newPortAllocator(),
		source: source,
	}
	p.dm.attach(tr, classifyTCP)
	return p
}

func (p *TCPSynProber) Protocol() probe.Protocol { return probe.ProtocolTCP }

func classifyTCP(pkt Packet) (uint16, tcpReply, bool) {
	packet := gopacket.NewPacket(pkt.Data, layers.LayerTypeTCP, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		return 0, tcpReply{}, false
	}
	return uint16(tcp.DstPort), tcpReply{
		SrcPort: uint16(tcp.SrcPort),
		SYN:     tcp.SYN,
		ACK:     tcp.ACK,
		RST:     tcp.RST,
		Window:  tcp.Window,
		Options: OptionPattern(tcp.Options),
	}, true
}

// OptionPattern renders TCP option kinds in wire order, e.g. "MSS,NOP,WS".
func OptionPattern(opts []layers.TCPOption) string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		switch o.OptionType {
		case layers.TCPOptionKindMSS:
			names = append(names, "MSS")
		case layers.TCPOptionKindNop:
			names = append(names, "NOP")
		case layers.TCPOptionKindWindowScale:
			names = append(names, "WS")
		case layers.TCPOptionKindSACKPermitted:
			names = append(names, "SACK")
		case layers.TCPOptionKindTimestamps:
			names = append(names, "TS")
		case layers.TCPOptionKindEndList:
			names = append(names, "EOL")
		default:
			names = append(names, fmt.Sprintf("OPT%d", uint8(o.OptionType)))
		}
	}
	return strings.Join(names, ",")
}

// buildSYN serializes a SYN segment with a checksum over the pseudo header.
func buildSYN(src, dst netip.Addr, srcPort, dstPort uint16) ([]byte, error) {
	ip := &layers.IPv4{
		SrcIP:    src.AsSlice(),
		DstIP:    dst.AsSlice(),
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     rand.Uint32(),
		SYN:     true,
		Window:  1024,
		Options: []layers.TCPOption{{
			OptionType:   layers.TCPOptionKindMSS,
			OptionLength: 4,
			OptionData:   []byte{0x05, 0xb4}, // 1460
		}},
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}, tcp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *TCPSynProber) SendAndWait(ctx context.Context, req Request) probe.Response {
	resp := newResponse(req, probe.ProtocolTCP)
	resp.PortState = probe.PortFiltered

	if req.Port == 0 {
		return failed(resp, errors.New("tcp probe requires a destination port"))
	}
	src, err := p.source(req.Target.Addr)
	if err != nil {
		return failed(resp, err)
	}

	srcPort, ch, release, err := registerPort(p.dm, p.ports)
	if err != nil {
		return failed(resp, err)
	}
	defer release()

	segment, err := buildSYN(src, req.Target.Addr, srcPort, req.Port)
	if err != nil {
		return failed(resp, fmt.Errorf("build syn: %w", err))
	}

	ctx, cancel := withRequestTimeout(ctx, req)
	defer cancel()

	start := time.Now()
	if err := p.tr.Send(ctx, segment, req.Target.Addr, SendOptions{TTL: req.ttl()}); err != nil {
		return failed(resp, err)
	}

	for {
		select {
		case r := <-ch:
			if r.From != req.Target.Addr || r.Msg.SrcPort != req.Port {
				continue
			}
			resp.RTT = time.Since(start)
			stampHop(&resp, r.TTL)
			switch {
			case r.Msg.SYN && r.Msg.ACK:
				resp.Status = probe.StatusDone
				resp.PortState = probe.PortOpen
				resp.Signal = &probe.Signal{Window: r.Msg.Window, Options: r.Msg.Options, TTL: r.TTL}
			case r.Msg.RST:
				resp.Status = probe.StatusDone
				resp.PortState = probe.PortClosed
				resp.Signal = &probe.Signal{TTL: r.TTL}
			default:
				continue
			}
			return resp
		case <-ctx.Done():
			return resp
		}
	}
}

func (p *TCPSynProber) Close() error {
	p.dm.close()
	return p.tr.Close()
}
