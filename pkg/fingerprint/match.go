package fingerprint

import (
	"sort"
	"strconv"
	"strings"
)

// MatchesApprox reports whether fp is an approximate match for the observed
// window and option pattern: its pattern starts with the observed pattern,
// its window lies within WindowTolerance of the observed window, and it is a
// general purpose device.
//
// The prefix runs one way only: observed "MSS,NOP,WS" admits a stored
// "MSS,NOP,WS,SACK,TS", while observed "MSS,NOP,WS,SACK,TS" does not admit a
// stored "MSS,NOP,WS".
//
// Appliance and embedded rows are never admitted, even when nothing else
// matches.
func MatchesApprox(fp OSFingerprint, window uint16, pattern string) bool {
	if !strings.EqualFold(fp.DeviceType, GeneralPurpose) {
		return false
	}
	if !strings.HasPrefix(fp.OptionPattern, pattern) {
		return false
	}
	return windowDistance(fp.WindowSize, window) <= WindowTolerance
}

func windowDistance(a, b uint16) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

// SortByGeneration orders rows newest generation first. Ties keep their
// relative order.
func SortByGeneration(rows []OSFingerprint) {
	sort.SliceStable(rows, func(i, j int) bool {
		return CompareGeneration(rows[i].Generation, rows[j].Generation) > 0
	})
}

// CompareGeneration compares two generation labels ("10", "2.6.X", "XP").
// Digit runs compare numerically, everything else byte-wise, and a label
// that is a strict prefix of the other sorts first.
func CompareGeneration(a, b string) int {
	for a != "" && b != "" {
		ta, ra := nextToken(a)
		tb, rb := nextToken(b)

		na, errA := strconv.Atoi(ta)
		nb, errB := strconv.Atoi(tb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case errA == nil:
			return 1
		case errB == nil:
			return -1
		default:
			if c := strings.Compare(strings.ToLower(ta), strings.ToLower(tb)); c != 0 {
				return c
			}
		}
		a, b = ra, rb
	}

	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// nextToken splits off a leading run of digits or non-digits.
func nextToken(s string) (string, string) {
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}
