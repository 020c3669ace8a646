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

	"golang.org/x/net/ipv4"
)

// Packet is one datagram read from a Transport.
type Packet struct {
	Data []byte     // Transport payload (IP header stripped for raw IPv4)
	From netip.Addr // Sender address
	TTL  uint8      // Received IP TTL, 0 when unknown
}

// SendOptions tune a single send.
type SendOptions struct {
	TTL uint8
}

// Transport is the raw-I/O collaborator used by the probers.
type Transport interface {
	Send(ctx context.Context, payload []byte, dst netip.Addr, opts SendOptions) error
	// Receive blocks until a packet arrives or deadline passes. A deadline
	// expiry returns an error for which isTimeout is true.
	Receive(deadline time.Time) (Packet, error)
	Close() error
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// rawIPv4 is a Transport over an ip4:<proto> raw socket.
type rawIPv4 struct {
	conn *ipv4.PacketConn
	raw  net.PacketConn

	sendMu sync.Mutex // serializes the TTL change with the write it applies to
	ttl    int
	buf    []byte
	readMu sync.Mutex
}

// ListenRawIPv4 opens a raw IPv4 socket for proto ("icmp", "tcp" or "udp").
func ListenRawIPv4(proto string) (Transport, error) {
	c, err := net.ListenPacket("ip4:"+proto, "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("open raw %s socket: %w", proto, err)
	}
	pc := ipv4.NewPacketConn(c)
	if err := pc.SetControlMessage(ipv4.FlagTTL, true); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("enable TTL control messages: %w", err)
	}
	return &rawIPv4{conn: pc, raw: c, ttl: -1, buf: make([]byte, 65535)}, nil
}

func (t *rawIPv4) Send(ctx context.Context, payload []byte, dst netip.Addr, opts SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ttl := int(opts.TTL)
	if ttl == 0 {
		ttl = int(DefaultTTL)
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if ttl != t.ttl {
		if err := t.conn.SetTTL(ttl); err != nil {
			return fmt.Errorf("set ttl %d: %w", ttl, err)
		}
		t.ttl = ttl
	}
	if _, err := t.conn.WriteTo(payload, nil, &net.IPAddr{IP: dst.AsSlice()}); err != nil {
		return fmt.Errorf("send to %s: %w", dst, err)
	}
	return nil
}

func (t *rawIPv4) Receive(deadline time.Time) (Packet, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return Packet{}, err
	}
	n, cm, src, err := t.conn.ReadFrom(t.buf)
	if err != nil {
		return Packet{}, err
	}
	pkt := Packet{Data: append([]byte(nil), t.buf[:n]...)}
	if ipAddr, ok := src.(*net.IPAddr); ok {
		pkt.From, _ = netip.AddrFromSlice(ipAddr.IP.To4())
	}
	if cm != nil && cm.TTL > 0 {
		pkt.TTL = uint8(cm.TTL)
	}
	return pkt, nil
}

func (t *rawIPv4) Close() error {
	return t.raw.Close()
}
