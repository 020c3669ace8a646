package netutil

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// ErrInvalidPort is wrapped by every port parsing failure.
var ErrInvalidPort = errors.New("invalid port")

// ParsePort parses a single port in 1-65535.
func ParsePort(s string) (uint16, error) {
	n, err := cast.ToIntE(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidPort, s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("%w %d: out of range 1-65535", ErrInvalidPort, n)
	}
	return uint16(n), nil
}

// ParsePortRange parses "start-end". A start greater than end is an error.
func ParsePortRange(s string) (uint16, uint16, error) {
	left, right, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w range %q: expected start-end", ErrInvalidPort, s)
	}
	start, err := ParsePort(left)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParsePort(right)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w range %q: start is greater than end", ErrInvalidPort, s)
	}
	return start, end, nil
}

// ParsePortString parses a comma separated list of ports and ranges
// ("22,80,8000-8010") into a sorted, duplicate-free slice.
func ParsePortString(s string) ([]uint16, error) {
	ports := []uint16{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			start, end, err := ParsePortRange(part)
			if err != nil {
				return nil, err
			}
			for p := int(start); p <= int(end); p++ {
				ports = append(ports, uint16(p))
			}
			continue
		}
		p, err := ParsePort(part)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	slices.Sort(ports)
	return slices.Compact(ports), nil
}
