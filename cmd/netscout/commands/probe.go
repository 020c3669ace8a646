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

package commands

import (
	"github.com/spf13/cobra"

	"github.com/vulntor/netscout/cmd/netscout/internal/bind"
	"github.com/vulntor/netscout/pkg/config"
)

func newPingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping <target>",
		Short: "Send repeated probes to one target and report round-trip statistics",
		Example: `  netscout ping 192.168.1.1
  netscout ping example.com -P tcp -p 443 -c 10 --rate 500ms`,
		GroupID: "probe",
		Args:    exactArgs(1, "ping target"),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := session(cmd)
			if err != nil {
				return err
			}
			params, err := bind.BindPingParams(cmd, args, cfg)
			if err != nil {
				return err
			}
			res, err := svc.Ping(cmd.Context(), params)
			return report(cmd, res, err)
		},
	}

	cmd.Flags().IntP("count", "c", config.DefaultConfig().Probe.Count, "Number of probes")
	cmd.Flags().StringP("protocol", "P", "icmp", "Protocol: icmp, tcp or udp")
	cmd.Flags().Uint16P("port", "p", 0, "Destination port for tcp and udp")
	addProbeFlags(cmd)

	return cmd
}

func newNeighborCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nei <ip>",
		Aliases: []string{"neighbor"},
		Short:   "Resolve the MAC address of a neighbor with ARP",
		Example: `  netscout nei 192.168.1.1 -i eth0`,
		GroupID: "probe",
		Args:    exactArgs(1, "neighbor address"),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := session(cmd)
			if err != nil {
				return err
			}
			params, err := bind.BindNeighborParams(cmd, args, cfg)
			if err != nil {
				return err
			}
			res, err := svc.Neighbor(cmd.Context(), params)
			return report(cmd, res, err)
		},
	}

	cmd.Flags().IntP("count", "c", config.DefaultConfig().Probe.Count, "Number of ARP requests")
	addProbeFlags(cmd)

	return cmd
}

func newTraceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trace <target>",
		Aliases: []string{"traceroute"},
		Short:   "Trace the route to a target",
		Example: `  netscout trace example.com
  netscout trace 192.0.2.1 -P icmp --maxhop 30`,
		GroupID: "probe",
		Args:    exactArgs(1, "trace target"),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := session(cmd)
			if err != nil {
				return err
			}
			params, err := bind.BindTraceParams(cmd, args, cfg)
			if err != nil {
				return err
			}
			res, err := svc.Traceroute(cmd.Context(), params)
			return report(cmd, res, err)
		},
	}

	cmd.Flags().StringP("protocol", "P", "udp", "Protocol: udp or icmp")
	cmd.Flags().Uint16P("port", "p", 0, "Base destination port for udp (default 33435)")
	cmd.Flags().Int("maxhop", config.DefaultConfig().Probe.MaxHop, "Maximum number of hops")
	addProbeFlags(cmd)

	return cmd
}

func newSubdomainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subdomain <domain>",
		Short: "Enumerate subdomains of a domain from a word list",
		Example: `  netscout subdomain example.com
  netscout subdomain example.com --wordlist words.txt --resolver 1.1.1.1:53`,
		GroupID: "probe",
		Args:    exactArgs(1, "domain"),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := session(cmd)
			if err != nil {
				return err
			}
			params, err := bind.BindDomainScanParams(cmd, args, cfg)
			if err != nil {
				return err
			}
			res, err := svc.DomainScan(cmd.Context(), params)
			return report(cmd, res, err)
		},
	}

	cmd.Flags().String("wordlist", "", "File with one subdomain label per line")
	cmd.Flags().StringSlice("word", nil, "Subdomain labels to try (repeatable)")
	cmd.Flags().StringSlice("resolver", nil, "DNS server host:port (repeatable; default system resolvers)")
	addProbeFlags(cmd)

	return cmd
}
