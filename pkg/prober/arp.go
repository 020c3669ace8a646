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
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/netscout/pkg/netutil"
	"github.com/vulntor/netscout/pkg/probe"
)

// timeoutError is returned by transports whose native timeout is not a net.Error.
type timeoutError struct{}

func (timeoutError) Error() string   { return "receive timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// pcapTransport sends and receives link-layer frames on one interface.
type pcapTransport struct {
	handle *pcap.Handle
	mu     sync.Mutex
}

// OpenPcap opens iface for ARP traffic.
func OpenPcap(iface string) (Transport, error) {
	handle, err := pcap.OpenLive(iface, 65536, true, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", iface, err)
	}
	if err := handle.SetBPFFilter("arp"); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set BPF filter: %w", err)
	}
	return &pcapTransport{handle: handle}, nil
}

func (t *pcapTransport) Send(ctx context.Context, frame []byte, _ netip.Addr, _ SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle.WritePacketData(frame)
}

func (t *pcapTransport) Receive(deadline time.Time) (Packet, error) {
	for time.Now().Before(deadline) {
		data, _, err := t.handle.ReadPacketData()
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			continue
		}
		if err != nil {
			return Packet{}, err
		}
		return Packet{Data: data}, nil
	}
	return Packet{}, timeoutError{}
}

func (t *pcapTransport) Close() error {
	t.handle.Close()
	return nil
}

// ARPProber resolves the MAC address of a neighbor. Replies are keyed by the
// sender protocol address.
type ARPProber struct {
	tr     Transport
	dm     *demux[netip.Addr, net.HardwareAddr]
	srcMAC net.HardwareAddr
	srcIP  netip.Addr
}

// NewARPProber opens iface (the default interface when empty) for ARP.
func NewARPProber(iface string) (*ARPProber, error) {
	ifi, err := netutil.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	mac, err := net.ParseMAC(ifi.MAC)
	if err != nil {
		return nil, fmt.Errorf("interface %s has no hardware address", ifi.Name)
	}
	ip, ok := ifi.IPv4()
	if !ok {
		return nil, fmt.Errorf("interface %s has no IPv4 address", ifi.Name)
	}
	tr, err := OpenPcap(ifi.Name)
	if err != nil {
		return nil, err
	}
	return newARPProber(tr, mac, ip), nil
}

func newARPProber(tr Transport, srcMAC net.HardwareAddr, srcIP netip.Addr) *ARPProber {
	p := &ARPProber{
		tr:     tr,
		dm:     newDemux[netip.Addr, net.HardwareAddr](log.With().Str("component", "prober").Str("protocol", "arp").Logger()),
		srcMAC: srcMAC,
		srcIP:  srcIP,
	}
	p.dm.attach(tr, classifyARP)
	return p
}

func (p *ARPProber) Protocol() probe.Protocol { return probe.ProtocolARP }

func classifyARP(pkt Packet) (netip.Addr, net.HardwareAddr, bool) {
	packet := gopacket.NewPacket(pkt.Data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	arp, ok := packet.Layer(layers.LayerTypeARP).(*layers.ARP)
	if !ok || arp.Operation != layers.ARPReply {
		return netip.Addr{}, nil, false
	}
	from, ok := netip.AddrFromSlice(arp.SourceProtAddress)
	if !ok {
		return netip.Addr{}, nil, false
	}
	return from.Unmap(), net.HardwareAddr(append([]byte(nil), arp.SourceHwAddress...)), true
}

func buildARPRequest(srcMAC net.HardwareAddr, srcIP, dst netip.Addr) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: srcIP.AsSlice(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    dst.AsSlice(),
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *ARPProber) SendAndWait(ctx context.Context, req Request) probe.Response {
	resp := newResponse(req, probe.ProtocolARP)
	resp.Port = nil
	if !req.Target.Addr.Is4() {
		return failed(resp, fmt.Errorf("arp requires an IPv4 target, got %s", req.Target.Addr))
	}

	ch, release, err := p.dm.register(req.Target.Addr)
	if err != nil {
		return failed(resp, err)
	}
	defer release()

	frame, err := buildARPRequest(p.srcMAC, p.srcIP, req.Target.Addr)
	if err != nil {
		return failed(resp, fmt.Errorf("build arp request: %w", err))
	}

	ctx, cancel := withRequestTimeout(ctx, req)
	defer cancel()

	start := time.Now()
	if err := p.tr.Send(ctx, frame, req.Target.Addr, SendOptions{}); err != nil {
		return failed(resp, err)
	}

	select {
	case r := <-ch:
		resp.RTT = time.Since(start)
		resp.Status = probe.StatusDone
		resp.MAC = r.Msg.String()
	case <-ctx.Done():
	}
	return resp
}

func (p *ARPProber) Close() error {
	p.dm.close()
	return p.tr.Close()
}
