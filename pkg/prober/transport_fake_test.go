package prober

import (
	"context"
	"net/netip"
	"sync"
	"time"
)

type sentPacket struct {
	Payload []byte
	Dst     netip.Addr
	Opts    SendOptions
}

// fakeTransport records sends and serves packets queued by a responder.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentPacket
	sendErr error

	// respond is called for every successful send; returned packets are
	// queued for Receive.
	respond func(payload []byte, dst netip.Addr, opts SendOptions) []Packet

	inbox     chan Packet
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:  make(chan Packet, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, payload []byte, dst netip.Addr, opts SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if f.sendErr != nil {
		f.mu.Unlock()
		return f.sendErr
	}
	f.sent = append(f.sent, sentPacket{Payload: append([]byte(nil), payload...), Dst: dst, Opts: opts})
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		for _, pkt := range respond(payload, dst, opts) {
			f.deliver(pkt)
		}
	}
	return nil
}

func (f *fakeTransport) deliver(pkt Packet) {
	select {
	case f.inbox <- pkt:
	case <-f.closed:
	}
}

func (f *fakeTransport) Receive(deadline time.Time) (Packet, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case pkt := <-f.inbox:
		return pkt, nil
	case <-timer.C:
		return Packet{}, timeoutError{}
	case <-f.closed:
		return Packet{}, ErrClosed
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) sentPackets() []sentPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPacket(nil), f.sent...)
}

func (f *fakeTransport) setRespond(fn func([]byte, netip.Addr, SendOptions) []Packet) {
	f.mu.Lock()
	f.respond = fn
	f.mu.Unlock()
}
