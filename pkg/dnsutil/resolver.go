// Package dnsutil resolves target names and reverse records with an explicit
// DNS client, so that timeouts and servers follow netscout configuration
// rather than the platform resolver.
package dnsutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single DNS exchange.
const DefaultTimeout = 2 * time.Second

var (
	// ErrNXDomain is returned when the name does not exist.
	ErrNXDomain = errors.New("no such host")
	// ErrNoServers is returned when no DNS server is configured.
	ErrNoServers = errors.New("no DNS servers configured")
)

// Resolver queries a fixed list of DNS servers in order.
type Resolver struct {
	client  *dns.Client
	servers []string
	logger  zerolog.Logger
}

// SystemServers reads the servers listed in /etc/resolv.conf.
func SystemServers() ([]string, error) {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("read resolv.conf: %w", err)
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers, nil
}

// NewResolver returns a resolver for servers ("host" or "host:port"). When
// servers is empty the system servers are used.
func NewResolver(servers []string, timeout time.Duration) (*Resolver, error) {
	if len(servers) == 0 {
		sys, err := SystemServers()
		if err != nil {
			return nil, err
		}
		servers = sys
	}
	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}
	if len(normalized) == 0 {
		return nil, ErrNoServers
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		client:  &dns.Client{Net: "udp", Timeout: timeout},
		servers: normalized,
		logger:  log.With().Str("component", "dns").Logger(),
	}, nil
}

// Servers returns the servers queried, in order.
func (r *Resolver) Servers() []string {
	return slices.Clone(r.servers)
}

// Exchange sends m to each server in turn until one answers. A truncated UDP
// answer is retried over TCP on the same server.
func (r *Resolver) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range r.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in, _, err := r.client.ExchangeContext(ctx, m, server)
		if err == nil && in.Truncated {
			tcp := &dns.Client{Net: "tcp", Timeout: r.client.Timeout}
			in, _, err = tcp.ExchangeContext(ctx, m, server)
		}
		if err != nil {
			r.logger.Debug().Err(err).Str("server", server).Str("name", m.Question[0].Name).Msg("dns exchange failed")
			lastErr = err
			continue
		}
		return in, nil
	}
	return nil, fmt.Errorf("dns query %s: %w", m.Question[0].Name, lastErr)
}

func (r *Resolver) query(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	in, err := r.Exchange(ctx, m)
	if err != nil {
		return nil, err
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
		return in.Answer, nil
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%s: %w", name, ErrNXDomain)
	default:
		return nil, fmt.Errorf("dns query %s: %s", name, dns.RcodeToString[in.Rcode])
	}
}

// LookupHost returns the A and AAAA addresses of name, IPv4 first.
// A nonexistent name yields ErrNXDomain.
func (r *Resolver) LookupHost(ctx context.Context, name string) ([]netip.Addr, error) {
	if a, err := netip.ParseAddr(name); err == nil {
		return []netip.Addr{a}, nil
	}

	var addrs []netip.Addr
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		rrs, err := r.query(ctx, name, qtype)
		if err != nil {
			if errors.Is(err, ErrNXDomain) {
				return nil, err
			}
			if qtype == dns.TypeA {
				return nil, err
			}
			// Some servers refuse AAAA; keep the IPv4 answer.
			r.logger.Debug().Err(err).Str("name", name).Msg("AAAA lookup failed")
			continue
		}
		for _, rr := range rrs {
			switch v := rr.(type) {
			case *dns.A:
				if a, ok := netip.AddrFromSlice(v.A.To4()); ok {
					addrs = append(addrs, a)
				}
			case *dns.AAAA:
				if a, ok := netip.AddrFromSlice(v.AAAA); ok {
					addrs = append(addrs, a)
				}
			}
		}
	}
	return addrs, nil
}

// LookupIPv4 returns the first IPv4 address of name.
func (r *Resolver) LookupIPv4(ctx context.Context, name string) (netip.Addr, error) {
	addrs, err := r.LookupHost(ctx, name)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		if a.Is4() {
			return a, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%s: no IPv4 address", name)
}

// LookupAddr returns the PTR names of addr without trailing dots.
func (r *Resolver) LookupAddr(ctx context.Context, addr netip.Addr) ([]string, error) {
	arpa, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return nil, err
	}
	rrs, err := r.query(ctx, arpa, dns.TypePTR)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, rr := range rrs {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}
	return names, nil
}
