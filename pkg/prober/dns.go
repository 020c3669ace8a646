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
	"errors"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/vulntor/netscout/pkg/dnsutil"
	"github.com/vulntor/netscout/pkg/probe"
)

// DefaultSubdomains is the built-in wordlist of subdomain scans.
var DefaultSubdomains = []string{
	"www", "mail", "ftp", "smtp", "pop", "imap", "webmail", "ns", "ns1", "ns2",
	"dns", "mx", "vpn", "remote", "api", "dev", "test", "staging", "beta", "admin",
	"portal", "intranet", "blog", "shop", "store", "cdn", "static", "img", "media", "app",
	"m", "mobile", "git", "gitlab", "jenkins", "ci", "docs", "wiki", "support", "help",
	"status", "monitor", "grafana", "auth", "sso", "login", "id", "db", "sql", "cloud",
}

// hostLookup is the part of dnsutil.Resolver used by the DNS prober.
type hostLookup interface {
	LookupHost(ctx context.Context, name string) ([]netip.Addr, error)
}

// DNSProber resolves one candidate name per request. The request target host
// is the fully qualified name; its address is unused.
type DNSProber struct {
	lookup hostLookup
}

// NewDNSProber queries servers (the system servers when empty).
func NewDNSProber(servers []string, timeout time.Duration) (*DNSProber, error) {
	r, err := dnsutil.NewResolver(servers, timeout)
	if err != nil {
		return nil, err
	}
	return &DNSProber{lookup: r}, nil
}

func (p *DNSProber) Protocol() probe.Protocol { return probe.ProtocolDNS }

func (p *DNSProber) SendAndWait(ctx context.Context, req Request) probe.Response {
	resp := probe.Response{
		Seq:      req.Seq,
		HostName: probe.NormalizeHost(req.Target.Host),
		Status:   probe.StatusTimeout,
		Protocol: probe.ProtocolDNS,
		NodeType: probe.NodeDestination,
	}
	if resp.HostName == "" {
		return failed(resp, errors.New("dns probe without a name"))
	}

	ctx, cancel := withRequestTimeout(ctx, req)
	defer cancel()

	start := time.Now()
	addrs, err := p.lookup.LookupHost(ctx, resp.HostName)
	resp.RTT = time.Since(start)
	switch {
	case err == nil:
		resp.Status = probe.StatusDone
		for _, a := range addrs {
			resp.Addrs = append(resp.Addrs, a.String())
		}
		if len(resp.Addrs) > 0 {
			resp.IP = resp.Addrs[0]
		}
	case errors.Is(err, dnsutil.ErrNXDomain):
		resp.Status = probe.StatusDone
	case isDNSTimeout(err):
		resp.Status = probe.StatusTimeout
	default:
		resp = failed(resp, err)
	}
	return resp
}

func isDNSTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (p *DNSProber) Close() error { return nil }

// SubdomainName joins a wordlist entry to the apex domain.
func SubdomainName(word, apex string) string {
	word = strings.Trim(strings.TrimSpace(word), ".")
	apex = probe.NormalizeHost(apex)
	if word == "" {
		return apex
	}
	return strings.ToLower(word) + "." + apex
}
