package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesApprox(t *testing.T) {
	base := OSFingerprint{DeviceType: GeneralPurpose, WindowSize: 65535, OptionPattern: "MSS,NOP,WS,SACK,TS"}

	tests := []struct {
		name    string
		fp      func(OSFingerprint) OSFingerprint
		window  uint16
		pattern string
		want    bool
	}{
		{"same row", nil, 65535, "MSS,NOP,WS,SACK,TS", true},
		{"observed prefix", nil, 65535, "MSS,NOP,WS", true},
		{"empty pattern", nil, 65535, "", true},
		{"lower edge", nil, 64535, "MSS", true},
		{"beyond tolerance", nil, 64534, "MSS", false},
		{"longer observed", nil, 65535, "MSS,NOP,WS,SACK,TS,EOL", false},
		{"stored row is a prefix of observed", func(fp OSFingerprint) OSFingerprint { fp.OptionPattern = "MSS,NOP,WS"; return fp }, 65535, "MSS,NOP,WS,SACK,TS", false},
		{"different order", nil, 65535, "NOP,MSS", false},
		{"router row", func(fp OSFingerprint) OSFingerprint { fp.DeviceType = "router"; return fp }, 65535, "MSS", false},
		{"device type case", func(fp OSFingerprint) OSFingerprint { fp.DeviceType = "General Purpose"; return fp }, 65535, "MSS", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := base
			if tt.fp != nil {
				fp = tt.fp(fp)
			}
			assert.Equal(t, tt.want, MatchesApprox(fp, tt.window, tt.pattern))
		})
	}
}

func TestCompareGeneration(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"10", "7", 1},
		{"7", "10", -1},
		{"2.6.X", "2.6.X", 0},
		{"3.X", "2.6.X", 1},
		{"2.6", "2.6.X", -1},
		{"XP", "Vista", 1},
		{"10", "XP", 1},
		{"", "", 0},
		{"", "1", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareGeneration(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestSortByGeneration_Stable(t *testing.T) {
	rows := []OSFingerprint{
		{Name: "a", Generation: "7"},
		{Name: "b", Generation: "10"},
		{Name: "c", Generation: "7"},
		{Name: "d", Generation: "2.6.X"},
	}
	SortByGeneration(rows)

	names := []string{rows[0].Name, rows[1].Name, rows[2].Name, rows[3].Name}
	assert.Equal(t, []string{"b", "a", "c", "d"}, names)
}

func TestApproxConfidence(t *testing.T) {
	assert.InDelta(t, 0.9, approxConfidence(65535, 65535), 1e-9)
	assert.InDelta(t, 0.5, approxConfidence(64535, 65535), 1e-9)
	assert.InDelta(t, 0.7, approxConfidence(65035, 65535), 1e-9)
}
