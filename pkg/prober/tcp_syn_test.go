package prober

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/netscout/pkg/probe"
)

func parseTCP(t *testing.T, data []byte) *layers.TCP {
	t.Helper()
	packet := gopacket.NewPacket(data, layers.LayerTypeTCP, gopacket.Default)
	tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok, "not a TCP segment")
	return tcp
}

func linuxOptions() []layers.TCPOption {
	return []layers.TCPOption{
		{OptionType: layers.TCPOptionKindMSS, OptionLength: 4, OptionData: []byte{0x05, 0xb4}},
		{OptionType: layers.TCPOptionKindNop, OptionLength: 1},
		{OptionType: layers.TCPOptionKindWindowScale, OptionLength: 3, OptionData: []byte{7}},
		{OptionType: layers.TCPOptionKindSACKPermitted, OptionLength: 2},
		{OptionType: layers.TCPOptionKindTimestamps, OptionLength: 10, OptionData: make([]byte, 8)},
	}
}

// answerSYN replies to a SYN with a segment built by edit.
func answerSYN(t *testing.T, from netip.Addr, ttl uint8, edit func(*layers.TCP)) func([]byte, netip.Addr, SendOptions) []Packet {
	return func(payload []byte, _ netip.Addr, _ SendOptions) []Packet {
		syn := parseTCP(t, payload)
		reply := &layers.TCP{SrcPort: syn.DstPort, DstPort: syn.SrcPort, Ack: syn.Seq + 1}
		edit(reply)
		buf := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, reply))
		return []Packet{{Data: buf.Bytes(), From: from, TTL: ttl}}
	}
}

func TestTCPSynProber_OpenPortCapturesSignal(t *testing.T) {
	tr := newFakeTransport()
	tr.setRespond(answerSYN(t, targetAddr, 119, func(r *layers.TCP) {
		r.SYN, r.ACK = true, true
		r.Window = 65535
		r.Options = linuxOptions()
	}))
	p := newTCPSynProber(tr, fixedSource)
	defer p.Close()

	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: targetAddr}, Port: 443, Seq: 1, Timeout: time.Second})

	assert.Equal(t, probe.StatusDone, resp.Status)
	assert.Equal(t, probe.PortOpen, resp.PortState)
	assert.Equal(t, uint16(443), resp.PortNumber())
	assert.Equal(t, uint8(119), resp.TTL)
	assert.Equal(t, uint8(9), resp.Hop)
	require.NotNil(t, resp.Signal)
	assert.Equal(t, probe.Signal{Window: 65535, Options: "MSS,NOP,WS,SACK,TS", TTL: 119}, *resp.Signal)

	sent := tr.sentPackets()
	require.Len(t, sent, 1)
	syn := parseTCP(t, sent[0].Payload)
	assert.True(t, syn.SYN)
	assert.False(t, syn.ACK)
	assert.Equal(t, layers.TCPPort(443), syn.DstPort)
	assert.GreaterOrEqual(t, int(syn.SrcPort), srcPortMin)
	assert.LessOrEqual(t, int(syn.SrcPort), srcPortMax)
}

func TestTCPSynProber_ResetIsClosed(t *testing.T) {
	tr := newFakeTransport()
	tr.setRespond(answerSYN(t, targetAddr, 64, func(r *layers.TCP) {
		r.RST, r.ACK = true, true
	}))
	p := newTCPSynProber(tr, fixedSource)
	defer p.Close()

	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: targetAddr}, Port: 23, Seq: 1, Timeout: time.Second})
	assert.Equal(t, probe.StatusDone, resp.Status)
	assert.Equal(t, probe.PortClosed, resp.PortState)
	require.NotNil(t, resp.Signal)
	assert.Empty(t, resp.Signal.Options)
}

func TestTCPSynProber_NoReplyIsFilteredTimeout(t *testing.T) {
	tr := newFakeTransport()
	p := newTCPSynProber(tr, fixedSource)
	defer p.Close()

	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: targetAddr}, Port: 8443, Seq: 1, Timeout: 50 * time.Millisecond})
	assert.Equal(t, probe.StatusTimeout, resp.Status)
	assert.Equal(t, probe.PortFiltered, resp.PortState)
	assert.Nil(t, resp.Signal)
}

func TestTCPSynProber_IgnoresReplyFromOtherHost(t *testing.T) {
	tr := newFakeTransport()
	tr.setRespond(answerSYN(t, routerAddr, 64, func(r *layers.TCP) {
		r.SYN, r.ACK = true, true
	}))
	p := newTCPSynProber(tr, fixedSource)
	defer p.Close()

	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: targetAddr}, Port: 80, Seq: 1, Timeout: 100 * time.Millisecond})
	assert.Equal(t, probe.StatusTimeout, resp.Status)
}

func TestTCPSynProber_RequiresPort(t *testing.T) {
	p := newTCPSynProber(newFakeTransport(), fixedSource)
	defer p.Close()

	resp := p.SendAndWait(context.Background(), Request{Target: probe.Target{Addr: targetAddr}, Seq: 1})
	assert.Equal(t, probe.StatusError, resp.Status)
	assert.Empty(t, p.tr.(*fakeTransport).sentPackets())
}

func TestOptionPattern(t *testing.T) {
	assert.Equal(t, "MSS,NOP,WS,SACK,TS", OptionPattern(linuxOptions()))
	assert.Equal(t, "", OptionPattern(nil))
	assert.Equal(t, "NOP,EOL,OPT30", OptionPattern([]layers.TCPOption{
		{OptionType: layers.TCPOptionKindNop},
		{OptionType: layers.TCPOptionKindEndList},
		{OptionType: layers.TCPOptionKind(30)},
	}))
}

func TestPortAllocator_StaysInRange(t *testing.T) {
	a := newPortAllocator()
	for range 70000 {
		port := a.take()
		require.GreaterOrEqual(t, int(port), srcPortMin)
		require.LessOrEqual(t, int(port), srcPortMax)
	}
}
