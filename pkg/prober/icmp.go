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
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/vulntor/netscout/pkg/probe"
)

const protocolICMP = 1 // IANA protocol number

var echoPayload = []byte("netscout-echo-payload-0123456789")

// icmpReply is the decoded part of an ICMP reply relevant to a waiting echo.
type icmpReply struct {
	Type ipv4.ICMPType
	Code int
}

// ICMPProber sends ICMP echo requests. The key of a request is its echo
// sequence number; replies carrying another echo identifier are ignored.
type ICMPProber struct {
	tr Transport
	dm *demux[uint16, icmpReply]
	id uint16
}

// NewICMPProber opens a raw ICMP socket.
func NewICMPProber() (*ICMPProber, error) {
	tr, err := ListenRawIPv4("icmp")
	if err != nil {
		return nil, err
	}
	return newICMPProber(tr, uint16(rand.UintN(1<<16))), nil
}

func newICMPProber(tr Transport, id uint16) *ICMPProber {
	p := &ICMPProber{
		tr: tr,
		dm: newDemux[uint16, icmpReply](log.With().Str("component", "prober").Str("protocol", "icmp").Logger()),
		id: id,
	}
	p.dm.attach(tr, p.classify)
	return p
}

func (p *ICMPProber) Protocol() probe.Protocol { return probe.ProtocolICMP }

func (p *ICMPProber) classify(pkt Packet) (uint16, icmpReply, bool) {
	msg, err := icmp.ParseMessage(protocolICMP, pkt.Data)
	if err != nil {
		return 0, icmpReply{}, false
	}
	r := icmpReply{Code: msg.Code}
	if t, ok := msg.Type.(ipv4.ICMPType); ok {
		r.Type = t
	}

	switch body := msg.Body.(type) {
	case *icmp.Echo:
		if r.Type != ipv4.ICMPTypeEchoReply || uint16(body.ID) != p.id {
			return 0, r, false
		}
		return uint16(body.Seq), r, true
	case *icmp.TimeExceeded:
		return p.embeddedEcho(body.Data, r)
	case *icmp.DstUnreach:
		return p.embeddedEcho(body.Data, r)
	}
	return 0, r, false
}

// embeddedEcho extracts the sequence of our echo request quoted in an ICMP
// error: the original IPv4 header followed by the first 8 bytes of its payload.
func (p *ICMPProber) embeddedEcho(data []byte, r icmpReply) (uint16, icmpReply, bool) {
	h, inner, ok := quotedDatagram(data)
	if !ok || h.Protocol != protocolICMP || len(inner) < 8 {
		return 0, r, false
	}
	if ipv4.ICMPType(inner[0]) != ipv4.ICMPTypeEcho {
		return 0, r, false
	}
	if binary.BigEndian.Uint16(inner[4:6]) != p.id {
		return 0, r, false
	}
	return binary.BigEndian.Uint16(inner[6:8]), r, true
}

// quotedDatagram splits the datagram quoted by an ICMP error message.
func quotedDatagram(data []byte) (*ipv4.Header, []byte, bool) {
	h, err := ipv4.ParseHeader(data)
	if err != nil || h.Len > len(data) {
		return nil, nil, false
	}
	return h, data[h.Len:], true
}

// register reserves the echo sequence for a request. The wire sequence is
// the low 16 bits of the session seq, moved to the next free number when
// another outstanding request already holds it.
func (p *ICMPProber) register(sessionSeq uint32) (uint16, <-chan reply[icmpReply], func(), error) {
	seq := uint16(sessionSeq)
	for range 1 << 16 {
		ch, release, err := p.dm.register(seq)
		if errors.Is(err, errKeyInUse) {
			seq++
			continue
		}
		return seq, ch, release, err
	}
	return 0, nil, nil, errors.New("no free echo sequence")
}

func (p *ICMPProber) SendAndWait(ctx context.Context, req Request) probe.Response {
	resp := newResponse(req, probe.ProtocolICMP)
	resp.Port = nil

	seq, ch, release, err := p.register(req.Seq)
	if err != nil {
		return failed(resp, err)
	}
	defer release()

	wb, err := (&icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: int(p.id), Seq: int(seq), Data: echoPayload},
	}).Marshal(nil)
	if err != nil {
		return failed(resp, fmt.Errorf("marshal echo: %w", err))
	}

	ctx, cancel := withRequestTimeout(ctx, req)
	defer cancel()

	start := time.Now()
	if err := p.tr.Send(ctx, wb, req.Target.Addr, SendOptions{TTL: req.ttl()}); err != nil {
		return failed(resp, err)
	}

	select {
	case r := <-ch:
		resp.RTT = time.Since(start)
		fromReply(&resp, req, r.From)
		stampHop(&resp, r.TTL)

		switch r.Msg.Type {
		case ipv4.ICMPTypeEchoReply:
			resp.Status = probe.StatusDone
			resp.NodeType = probe.NodeDestination
		case ipv4.ICMPTypeTimeExceeded:
			resp.Status = probe.StatusDone
			resp.NodeType = probe.NodeIntermediate
		default:
			resp.Status = probe.StatusError
			resp.Error = fmt.Sprintf("destination unreachable (code %d)", r.Msg.Code)
		}
	case <-ctx.Done():
	}
	return resp
}

func (p *ICMPProber) Close() error {
	p.dm.close()
	return p.tr.Close()
}
