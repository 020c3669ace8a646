// Package netutil holds the address helpers shared by the CLI and the
// scheduler: target expansion, port list parsing and local interface lookup.
package netutil

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
)

// MaxExpandedHosts caps the number of addresses a single invocation may expand to.
const MaxExpandedHosts = 1 << 16

// ErrTooManyHosts is returned when expansion would exceed MaxExpandedHosts.
var ErrTooManyHosts = errors.New("target expansion exceeds host limit")

// SplitTargets splits a comma or whitespace separated target list.
func SplitTargets(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// ExpandTargets expands CIDR blocks, address ranges ("10.0.0.1-10.0.0.9") and
// last-octet ranges ("10.0.0.1-9") into individual addresses. Other entries
// are treated as host names and passed through unchanged for later resolution.
// The result keeps first-seen order without duplicates; multicast,
// unspecified and link-local addresses are dropped.
func ExpandTargets(targets []string) ([]string, error) {
	var expanded []string
	add := func(s string) error {
		if len(expanded) >= MaxExpandedHosts {
			return fmt.Errorf("%w (%d)", ErrTooManyHosts, MaxExpandedHosts)
		}
		expanded = append(expanded, s)
		return nil
	}

	for _, t := range targets {
		target := strings.TrimSpace(t)
		if target == "" {
			continue
		}

		switch {
		case strings.Contains(target, "/"):
			prefix, err := netip.ParsePrefix(target)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", target, err)
			}
			if err := expandPrefix(prefix.Masked(), add); err != nil {
				return nil, err
			}

		case strings.Contains(target, "-") && looksLikeRange(target):
			start, end, err := parseRange(target)
			if err != nil {
				return nil, err
			}
			for a := start; ; a = a.Next() {
				if err := add(a.String()); err != nil {
					return nil, err
				}
				if a == end {
					break
				}
			}

		default:
			if err := add(target); err != nil {
				return nil, err
			}
		}
	}
	return uniqueAndFilterSpecialIPs(expanded), nil
}

func expandPrefix(p netip.Prefix, add func(string) error) error {
	bits := p.Bits()
	skipEdges := p.Addr().Is4() && bits > 0 && bits < 31

	var last netip.Addr
	if skipEdges {
		last = lastAddr(p)
	}
	for a := p.Addr(); a.IsValid() && p.Contains(a); a = a.Next() {
		if skipEdges && (a == p.Addr() || a == last) {
			continue
		}
		if err := add(a.String()); err != nil {
			return err
		}
	}
	return nil
}

// lastAddr returns the broadcast address of an IPv4 prefix.
func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Addr().As4()
	hostBits := 32 - p.Bits()
	for i := 3; i >= 0 && hostBits > 0; i-- {
		n := min(hostBits, 8)
		b[i] |= byte(0xff >> (8 - n))
		hostBits -= n
	}
	return netip.AddrFrom4(b)
}

// looksLikeRange separates address ranges from host names containing dashes.
func looksLikeRange(s string) bool {
	left, _, _ := strings.Cut(s, "-")
	_, err := netip.ParseAddr(strings.TrimSpace(left))
	return err == nil
}

func parseRange(target string) (netip.Addr, netip.Addr, error) {
	left, right, _ := strings.Cut(target, "-")
	start, err := netip.ParseAddr(strings.TrimSpace(left))
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("invalid range start %q: %w", target, err)
	}
	right = strings.TrimSpace(right)

	end, err := netip.ParseAddr(right)
	if err != nil {
		// Last-octet form: 192.168.1.10-20
		if !start.Is4() {
			return netip.Addr{}, netip.Addr{}, fmt.Errorf("invalid range end %q", target)
		}
		octet, castErr := cast.ToIntE(right)
		if castErr != nil || octet < 0 || octet > 255 {
			return netip.Addr{}, netip.Addr{}, fmt.Errorf("invalid range end in %q", target)
		}
		b := start.As4()
		b[3] = byte(octet)
		end = netip.AddrFrom4(b)
	}

	if start.Is4() != end.Is4() {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("mismatched IP versions in range %q", target)
	}
	if end.Less(start) {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("range start is greater than end in %q", target)
	}
	return start, end, nil
}

// uniqueAndFilterSpecialIPs removes duplicates and addresses that can never be
// probed. Host names are kept.
func uniqueAndFilterSpecialIPs(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	result := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}

		if a, err := netip.ParseAddr(t); err == nil {
			if a.IsMulticast() || a.IsUnspecified() || a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() {
				log.Debug().Str("component", "netutil").Str("target", t).Msg("dropping non-probeable address")
				continue
			}
		}
		result = append(result, t)
	}
	return result
}
