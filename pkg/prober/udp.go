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
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/vulntor/netscout/pkg/netutil"
	"github.com/vulntor/netscout/pkg/probe"
)

const (
	protocolUDP = 17

	icmpCodePortUnreachable = 3
)

// udpReply is either a UDP datagram from the target or an ICMP error quoting
// our datagram.
type udpReply struct {
	ICMP    bool
	Type    ipv4.ICMPType
	Code    int
	SrcPort uint16 // UDP source port of a direct reply
}

// UDPProber sends one UDP datagram per request from a unique source port.
// A UDP answer means the port is open; ICMP port-unreachable from the target
// means the host is alive and the port closed; ICMP time-exceeded marks an
// intermediate hop.
type UDPProber struct {
	udp    Transport
	icmp   Transport
	dm     *demux[uint16, udpReply]
	ports  *portAllocator
	source SourceFunc
}

// NewUDPProber opens raw UDP and ICMP sockets.
func NewUDPProber() (*UDPProber, error) {
	u, err := ListenRawIPv4("udp")
	if err != nil {
		return nil, err
	}
	ic, err := ListenRawIPv4("icmp")
	if err != nil {
		_ = u.Close()
		return nil, err
	}
	return newUDPProber(u, ic, netutil.SourceAddrFor), nil
}

func newUDPProber(udpTr, icmpTr Transport, source SourceFunc) *UDPProber {
	p := &UDPProber{
		udp:    udpTr,
		icmp:   icmpTr,
		dm:     newDemux[uint16, udpReply](log.With().Str("component", "prober").Str("protocol", "udp").Logger()),
		ports:  newPortAllocator(),
		source: source,
	}
	p.dm.attach(udpTr, classifyUDP)
	p.dm.attach(icmpTr, classifyUDPError)
	return p
}

func (p *UDPProber) Protocol() probe.Protocol { return probe.ProtocolUDP }

func classifyUDP(pkt Packet) (uint16, udpReply, bool) {
	if len(pkt.Data) < 8 {
		return 0, udpReply{}, false
	}
	src := binary.BigEndian.Uint16(pkt.Data[0:2])
	dst := binary.BigEndian.Uint16(pkt.Data[2:4])
	return dst, udpReply{SrcPort: src}, true
}

func classifyUDPError(pkt Packet) (uint16, udpReply, bool) {
	msg, err := icmp.ParseMessage(protocolICMP, pkt.Data)
	if err != nil {
		return 0, udpReply{}, false
	}
	var quoted []byte
	switch body := msg.Body.(type) {
	case *icmp.DstUnreach:
		quoted = body.Data
	case *icmp.TimeExceeded:
		quoted = body.Data
	default:
		return 0, udpReply{}, false
	}
	h, inner, ok := quotedDatagram(quoted)
	if !ok || h.Protocol != protocolUDP || len(inner) < 4 {
		return 0, udpReply{}, false
	}
	r := udpReply{ICMP: true, Code: msg.Code}
	if t, ok := msg.Type.(ipv4.ICMPType); ok {
		r.Type = t
	}
	return binary.BigEndian.Uint16(inner[0:2]), r, true
}

func buildUDP(src, dst netip.Addr, srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	ip := &layers.IPv4{SrcIP: src.AsSlice(), DstIP: dst.AsSlice(), Protocol: layers.IPProtocolUDP}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, udp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *UDPProber) SendAndWait(ctx context.Context, req Request) probe.Response {
	resp := newResponse(req, probe.ProtocolUDP)
	if req.Port == 0 {
		return failed(resp, errors.New("udp probe requires a destination port"))
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

	datagram, err := buildUDP(src, req.Target.Addr, srcPort, req.Port, echoPayload)
	if err != nil {
		return failed(resp, fmt.Errorf("build udp: %w", err))
	}

	ctx, cancel := withRequestTimeout(ctx, req)
	defer cancel()

	start := time.Now()
	if err := p.udp.Send(ctx, datagram, req.Target.Addr, SendOptions{TTL: req.ttl()}); err != nil {
		return failed(resp, err)
	}

	for {
		select {
		case r := <-ch:
			if !r.Msg.ICMP && (r.From != req.Target.Addr || r.Msg.SrcPort != req.Port) {
				continue
			}
			resp.RTT = time.Since(start)
			fromReply(&resp, req, r.From)
			stampHop(&resp, r.TTL)

			switch {
			case !r.Msg.ICMP:
				resp.Status = probe.StatusDone
				resp.PortState = probe.PortOpen
			case r.Msg.Type == ipv4.ICMPTypeTimeExceeded:
				resp.Status = probe.StatusDone
				resp.NodeType = probe.NodeIntermediate
			case r.Msg.Type == ipv4.ICMPTypeDestinationUnreachable && r.Msg.Code == icmpCodePortUnreachable && r.From == req.Target.Addr:
				resp.Status = probe.StatusDone
				resp.PortState = probe.PortClosed
			default:
				resp.Status = probe.StatusError
				resp.PortState = probe.PortFiltered
				resp.Error = fmt.Sprintf("icmp %v code %d from %s", r.Msg.Type, r.Msg.Code, r.From)
			}
			return resp
		case <-ctx.Done():
			return resp
		}
	}
}

func (p *UDPProber) Close() error {
	p.dm.close()
	return errors.Join(p.udp.Close(), p.icmp.Close())
}
