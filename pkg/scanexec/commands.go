package scanexec

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/vulntor/netscout/pkg/aggregator"
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/prober"
	"github.com/vulntor/netscout/pkg/scheduler"
)

// typed narrows a session result to its variant.
func typed[T probe.Result](res probe.Result, err error) (T, error) {
	var zero T
	if res == nil {
		return zero, err
	}
	t, ok := res.(T)
	if !ok {
		return zero, errors.Join(err, fmt.Errorf("unexpected result type %T", res))
	}
	return t, err
}

func (s *Service) annotator(services bool) aggregator.Option {
	a := &nodeAnnotator{resolver: s.resolver, services: services, logger: s.logger}
	if names, err := s.nameResolver(); err == nil {
		a.names = names
	} else {
		s.logger.Debug().Err(err).Msg("reverse lookups disabled")
	}
	return aggregator.WithAnnotator(a)
}

// PortScan probes the selected ports of every target.
func (s *Service) PortScan(ctx context.Context, p PortScanParams) (*probe.PortScanResult, error) {
	if p.ScanType == "" {
		p.ScanType = probe.ScanTCPSyn
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if p.Ports.Full && (p.Ports.List != "" || p.Ports.Range != "") {
		s.logger.Warn().Msg("--full overrides the explicit port selection")
	}

	targets, failure, err := s.resolveTargets(ctx, p.Targets)
	if err != nil {
		return nil, err
	}
	ports, err := scheduler.SelectPorts(ctx, p.Ports, s.resolver)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidOptions) {
			return nil, NewInvalidOptionsError(err)
		}
		return nil, WithErrorCode(err, errorCodeStorageFailure)
	}
	kind, err := prober.KindFor(p.ScanType)
	if err != nil {
		return nil, NewInvalidOptionsError(err)
	}

	opts := p.schedulerOptions()
	if !p.NoPing {
		opts.Precheck = s.pingChecker(p.Timing)
		opts.OnSkip = func(t probe.Target) {
			s.emit("precheck", "", t.String(), "skipped", "no reply to ping")
		}
	}

	return typed[*probe.PortScanResult](s.execute(ctx, session{
		header:  probe.NewSession(probe.CommandPortScan, p.ScanType, probe.ProtocolTCP, strings.Join(p.Targets, ",")),
		kind:    kind,
		cfg:     prober.Config{Interface: p.Interface},
		jobs:    scheduler.PortJobs(targets, ports),
		opts:    opts,
		aggOpts: []aggregator.Option{s.annotator(p.Service)},
		persist: !p.NoPersist,
		failure: failure,
	}))
}

// HostScan probes every target once to find live hosts.
func (s *Service) HostScan(ctx context.Context, p HostScanParams) (*probe.HostScanResult, error) {
	if p.Protocol == "" {
		p.Protocol = probe.ProtocolICMP
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}
	scanType, err := probe.HostScanTypeFor(p.Protocol)
	if err != nil {
		return nil, NewInvalidOptionsError(fmt.Errorf("%w: %w", ErrUnsupportedProtocol, err))
	}
	kind, err := prober.KindFor(scanType)
	if err != nil {
		return nil, NewInvalidOptionsError(err)
	}
	targets, failure, err := s.resolveTargets(ctx, p.Targets)
	if err != nil {
		return nil, err
	}

	return typed[*probe.HostScanResult](s.execute(ctx, session{
		header:  probe.NewSession(probe.CommandHostScan, scanType, p.Protocol, strings.Join(p.Targets, ",")),
		kind:    kind,
		cfg:     prober.Config{Interface: p.Interface},
		jobs:    scheduler.HostJobs(targets, defaultPort(p.Protocol, p.Port)),
		opts:    p.schedulerOptions(),
		aggOpts: []aggregator.Option{s.annotator(false)},
		persist: !p.NoPersist,
		failure: failure,
	}))
}

// Ping sends Count probes to one target.
func (s *Service) Ping(ctx context.Context, p PingParams) (*probe.PingResult, error) {
	if p.Protocol == "" {
		p.Protocol = probe.ProtocolICMP
	}
	if p.Count == 0 {
		p.Count = DefaultPingCount
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}
	kind, err := kindForProtocol(p.Protocol)
	if err != nil {
		return nil, err
	}
	target, failure, err := s.singleTarget(ctx, p.Target, "ping")
	if err != nil {
		return nil, err
	}

	opts := p.schedulerOptions()
	if opts.Rate == 0 {
		opts.Rate = DefaultPingInterval
	}
	var jobs []scheduler.Job
	if failure == nil {
		jobs = scheduler.PingJobs(target, defaultPort(p.Protocol, p.Port), p.Count)
	}
	return typed[*probe.PingResult](s.execute(ctx, session{
		header:  probe.NewSession(probe.CommandPing, probe.ScanNone, p.Protocol, p.Target),
		kind:    kind,
		jobs:    jobs,
		opts:    opts,
		persist: !p.NoPersist,
		failure: failure,
	}))
}

// Traceroute probes one target with increasing TTLs until it answers or
// MaxHop is reached.
func (s *Service) Traceroute(ctx context.Context, p TraceParams) (*probe.TracerouteResult, error) {
	if p.Protocol == "" {
		p.Protocol = probe.ProtocolUDP
	}
	if p.MaxHop == 0 {
		p.MaxHop = DefaultMaxHop
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}
	kind, err := kindForProtocol(p.Protocol)
	if err != nil {
		return nil, err
	}
	target, failure, err := s.singleTarget(ctx, p.Target, "traceroute")
	if err != nil {
		return nil, err
	}

	opts := p.schedulerOptions()
	if opts.Concurrency == 0 {
		opts.Concurrency = 1
	}
	opts.Random = false
	opts.StopWhen = func(r probe.Response) bool {
		return r.Status == probe.StatusDone && r.NodeType == probe.NodeDestination
	}
	var jobs []scheduler.Job
	if failure == nil {
		jobs = scheduler.TraceJobs(target, p.Protocol, p.Port, p.MaxHop)
	}
	return typed[*probe.TracerouteResult](s.execute(ctx, session{
		header:  probe.NewSession(probe.CommandTraceroute, probe.ScanNone, p.Protocol, p.Target),
		kind:    kind,
		jobs:    jobs,
		opts:    opts,
		persist: !p.NoPersist,
		failure: failure,
	}))
}

// DomainScan resolves wordlist candidates under an apex domain.
func (s *Service) DomainScan(ctx context.Context, p DomainScanParams) (*probe.DomainScanResult, error) {
	p.Apex = probe.NormalizeHost(p.Apex)
	if err := validateParams(p); err != nil {
		return nil, err
	}

	words := p.Words
	if len(words) == 0 && p.Wordlist != "" {
		loaded, err := LoadWordlist(p.Wordlist)
		if err != nil {
			return nil, NewInvalidOptionsError(err)
		}
		words = loaded
	}
	if len(words) == 0 {
		words = prober.DefaultSubdomains
	}
	jobs := scheduler.DomainJobs(p.Apex, words)
	if len(jobs) == 0 {
		return nil, NewInvalidOptionsError(errors.New("wordlist is empty"))
	}

	return typed[*probe.DomainScanResult](s.execute(ctx, session{
		header:  probe.NewSession(probe.CommandDomainScan, probe.ScanNone, probe.ProtocolDNS, p.Apex),
		kind:    prober.KindDNS,
		cfg:     prober.Config{DNSServers: p.Resolvers, DNSTimeout: p.Timeout},
		jobs:    jobs,
		opts:    p.schedulerOptions(),
		aggOpts: []aggregator.Option{aggregator.WithBaseDomain(p.Apex)},
		persist: !p.NoPersist,
	}))
}

// Neighbor resolves the MAC address of one on-link IPv4 host.
func (s *Service) Neighbor(ctx context.Context, p NeighborParams) (*probe.PingResult, error) {
	if p.Count == 0 {
		p.Count = DefaultPingCount
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}
	addr, err := netip.ParseAddr(p.Target)
	if err != nil {
		return nil, NewInvalidTargetError(p.Target, err)
	}

	opts := p.schedulerOptions()
	if opts.Rate == 0 {
		opts.Rate = DefaultPingInterval
	}
	return typed[*probe.PingResult](s.execute(ctx, session{
		header:  probe.NewSession(probe.CommandNeighbor, probe.ScanNone, probe.ProtocolARP, p.Target),
		kind:    prober.KindARP,
		cfg:     prober.Config{Interface: p.Interface},
		jobs:    scheduler.PingJobs(probe.Target{Addr: addr}, 0, p.Count),
		opts:    opts,
		persist: !p.NoPersist,
	}))
}

// singleTarget resolves the one host a ping or traceroute is aimed at.
func (s *Service) singleTarget(ctx context.Context, raw, command string) (target probe.Target, failure error, err error) {
	targets, failure, err := s.resolveTargets(ctx, []string{raw})
	if err != nil || failure != nil {
		return probe.Target{}, failure, err
	}
	if len(targets) != 1 {
		return probe.Target{}, nil, NewInvalidTargetError(raw, fmt.Errorf("%s takes a single host", command))
	}
	return targets[0], nil, nil
}

func kindForProtocol(p probe.Protocol) (prober.Kind, error) {
	switch p {
	case probe.ProtocolICMP:
		return prober.KindICMPEcho, nil
	case probe.ProtocolTCP:
		return prober.KindTCPSyn, nil
	case probe.ProtocolUDP:
		return prober.KindUDP, nil
	default:
		return "", NewInvalidOptionsError(fmt.Errorf("%w: %s", ErrUnsupportedProtocol, p))
	}
}

// defaultPort returns the destination port used when the user gave none.
func defaultPort(proto probe.Protocol, port uint16) uint16 {
	if port != 0 {
		return port
	}
	switch proto {
	case probe.ProtocolTCP:
		return DefaultTCPPort
	case probe.ProtocolUDP:
		return prober.TracerouteBasePort
	default:
		return 0
	}
}

// privileged reports whether raw ICMP sockets are likely available.
func privileged() bool {
	return os.Geteuid() == 0
}
