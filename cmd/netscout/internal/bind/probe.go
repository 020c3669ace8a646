package bind

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/netscout/pkg/config"
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/scanexec"
	"github.com/vulntor/netscout/pkg/scheduler"
)

// Common builds the options shared by every probing command from the
// merged configuration. Flags that map to configuration keys (timeout,
// rate, concurrency, no-random...) have already been folded into cfg.
func Common(cfg config.Config) scanexec.Common {
	return scanexec.Common{
		Timing: scanexec.Timing{
			Timeout:        cfg.Probe.Timeout,
			WaitTime:       cfg.Probe.WaitTime,
			Rate:           cfg.Probe.Rate,
			OverallTimeout: cfg.Probe.OverallTimeout,
			Concurrency:    cfg.Probe.Concurrency,
		},
		Random:    cfg.Probe.Random,
		Interface: cfg.Probe.Interface,
		NoPersist: !cfg.Storage.Persist,
	}
}

// BindPortScanParams reads the port command flags.
//
// Flags read:
//   - --ports/-p, --range/-r, --full/-F, --wellknown/-W: port selection
//   - --type/-T: syn or connect
//   - --noping: skip the liveness pre-check
//   - --service/-S: label open ports with service names
func BindPortScanParams(cmd *cobra.Command, args []string, cfg config.Config) (scanexec.PortScanParams, error) {
	list, _ := cmd.Flags().GetString("ports")
	portRange, _ := cmd.Flags().GetString("range")
	full, _ := cmd.Flags().GetBool("full")
	wellKnown, _ := cmd.Flags().GetBool("wellknown")
	scanType, _ := cmd.Flags().GetString("type")
	noPing, _ := cmd.Flags().GetBool("noping")
	service, _ := cmd.Flags().GetBool("service")

	params := scanexec.PortScanParams{
		Common:  Common(cfg),
		Targets: args,
		Ports: scheduler.PortSelection{
			Full:      full,
			List:      list,
			Range:     portRange,
			WellKnown: wellKnown,
		},
		NoPing:  noPing,
		Service: service,
	}

	st, err := probe.ParsePortScanType(scanType)
	if err != nil {
		return params, scanexec.NewInvalidOptionsError(err)
	}
	params.ScanType = st
	return params, nil
}

// BindHostScanParams reads the host command flags.
func BindHostScanParams(cmd *cobra.Command, args []string, cfg config.Config) (scanexec.HostScanParams, error) {
	port, _ := cmd.Flags().GetUint16("port")
	params := scanexec.HostScanParams{
		Common:  Common(cfg),
		Targets: args,
		Port:    port,
	}

	proto, err := protocolFlag(cmd, probe.ProtocolICMP)
	if err != nil {
		return params, err
	}
	params.Protocol = proto
	return params, nil
}

// BindPingParams reads the ping command flags. The probe count comes from
// probe.count, which --count/-c overrides.
func BindPingParams(cmd *cobra.Command, args []string, cfg config.Config) (scanexec.PingParams, error) {
	port, _ := cmd.Flags().GetUint16("port")
	params := scanexec.PingParams{
		Common: Common(cfg),
		Target: firstArg(args),
		Port:   port,
		Count:  cfg.Probe.Count,
	}

	proto, err := protocolFlag(cmd, probe.ProtocolICMP)
	if err != nil {
		return params, err
	}
	params.Protocol = proto
	return params, nil
}

// BindTraceParams reads the trace command flags.
func BindTraceParams(cmd *cobra.Command, args []string, cfg config.Config) (scanexec.TraceParams, error) {
	port, _ := cmd.Flags().GetUint16("port")
	params := scanexec.TraceParams{
		Common: Common(cfg),
		Target: firstArg(args),
		Port:   port,
		MaxHop: uint8(cfg.Probe.MaxHop),
	}

	proto, err := protocolFlag(cmd, probe.ProtocolUDP)
	if err != nil {
		return params, err
	}
	params.Protocol = proto
	return params, nil
}

// BindDomainScanParams reads the subdomain command flags. Resolvers come
// from probe.resolvers, which --resolver overrides.
func BindDomainScanParams(cmd *cobra.Command, args []string, cfg config.Config) (scanexec.DomainScanParams, error) {
	wordlist, _ := cmd.Flags().GetString("wordlist")
	words, _ := cmd.Flags().GetStringSlice("word")
	return scanexec.DomainScanParams{
		Common:    Common(cfg),
		Apex:      firstArg(args),
		Words:     words,
		Wordlist:  wordlist,
		Resolvers: cfg.Probe.Resolvers,
	}, nil
}

// BindNeighborParams reads the nei command flags.
func BindNeighborParams(_ *cobra.Command, args []string, cfg config.Config) (scanexec.NeighborParams, error) {
	return scanexec.NeighborParams{
		Common: Common(cfg),
		Target: firstArg(args),
		Count:  cfg.Probe.Count,
	}, nil
}

func protocolFlag(cmd *cobra.Command, def probe.Protocol) (probe.Protocol, error) {
	raw, _ := cmd.Flags().GetString("protocol")
	if raw == "" {
		return def, nil
	}
	proto, err := probe.ParseProtocol(raw)
	if err != nil {
		return "", scanexec.NewInvalidOptionsError(fmt.Errorf("%w: %w", scanexec.ErrUnsupportedProtocol, err))
	}
	return proto, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
