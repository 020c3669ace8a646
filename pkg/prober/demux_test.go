package prober

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byFirstByte(pkt Packet) (byte, string, bool) {
	if len(pkt.Data) == 0 {
		return 0, "", false
	}
	return pkt.Data[0], string(pkt.Data[1:]), true
}

func TestDemux_RoutesByKey(t *testing.T) {
	tr := newFakeTransport()
	dm := newDemux[byte, string](zerolog.Nop())
	dm.attach(tr, byFirstByte)
	defer func() {
		dm.close()
		_ = tr.Close()
	}()

	a, releaseA, err := dm.register(1)
	require.NoError(t, err)
	defer releaseA()
	b, releaseB, err := dm.register(2)
	require.NoError(t, err)
	defer releaseB()

	tr.deliver(Packet{Data: []byte("\x03stray")})
	tr.deliver(Packet{Data: []byte("\x02for-b")})
	tr.deliver(Packet{Data: []byte("\x01for-a")})

	select {
	case r := <-a:
		assert.Equal(t, "for-a", r.Msg)
	case <-time.After(time.Second):
		t.Fatal("no reply for key 1")
	}
	select {
	case r := <-b:
		assert.Equal(t, "for-b", r.Msg)
	case <-time.After(time.Second):
		t.Fatal("no reply for key 2")
	}
}

func TestDemux_KeyInUseAndRelease(t *testing.T) {
	dm := newDemux[byte, string](zerolog.Nop())
	defer dm.close()

	_, release, err := dm.register(9)
	require.NoError(t, err)

	_, _, err = dm.register(9)
	require.ErrorIs(t, err, errKeyInUse)

	release()
	_, release2, err := dm.register(9)
	require.NoError(t, err)
	release2()
}

func TestDemux_RegisterAfterClose(t *testing.T) {
	tr := newFakeTransport()
	dm := newDemux[byte, string](zerolog.Nop())
	dm.attach(tr, byFirstByte)
	_ = tr.Close()
	dm.close()
	dm.close()

	_, _, err := dm.register(1)
	assert.ErrorIs(t, err, ErrClosed)
}
