package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/netscout/pkg/fingerprint"
)

type fakePortSource struct {
	def, wellKnown []uint16
	err            error
}

func (f fakePortSource) ServicePorts(_ context.Context, subset fingerprint.Subset) ([]uint16, error) {
	if f.err != nil {
		return nil, f.err
	}
	if subset == fingerprint.SubsetWellKnown {
		return f.wellKnown, nil
	}
	return f.def, nil
}

func TestSelectPorts(t *testing.T) {
	src := fakePortSource{def: []uint16{443, 22, 80, 8080}, wellKnown: []uint16{80, 22}}
	ctx := context.Background()

	tests := []struct {
		name string
		sel  PortSelection
		want []uint16
	}{
		{name: "default set", sel: PortSelection{}, want: []uint16{22, 80, 443, 8080}},
		{name: "well known", sel: PortSelection{WellKnown: true}, want: []uint16{22, 80}},
		{name: "explicit list only", sel: PortSelection{List: "80,443"}, want: []uint16{80, 443}},
		{name: "list beats well known", sel: PortSelection{List: "25", WellKnown: true}, want: []uint16{25}},
		{name: "list and range union", sel: PortSelection{List: "22,81", Range: "80-82"}, want: []uint16{22, 80, 81, 82}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectPorts(ctx, tt.sel, src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectPorts_FullOverridesEverything(t *testing.T) {
	got, err := SelectPorts(context.Background(), PortSelection{Full: true, List: "80", WellKnown: true}, fakePortSource{})
	require.NoError(t, err)
	require.Len(t, got, 65535)
	assert.Equal(t, uint16(1), got[0])
	assert.Equal(t, uint16(65535), got[65534])
}

func TestSelectPorts_Errors(t *testing.T) {
	_, err := SelectPorts(context.Background(), PortSelection{Range: "100-1"}, fakePortSource{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = SelectPorts(context.Background(), PortSelection{List: "http"}, fakePortSource{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	boom := errors.New("corpus gone")
	_, err = SelectPorts(context.Background(), PortSelection{}, fakePortSource{err: boom})
	assert.ErrorIs(t, err, boom)
}
