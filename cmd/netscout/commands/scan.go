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
)

func newPortCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port <target>...",
		Short: "Scan TCP ports of one or more targets",
		Long: `Scan TCP ports with half-open SYN probes (raw sockets) or full connects.

Without a port selection the default service ports of the reference corpus
are scanned. --full scans 1-65535 and overrides every other selection.`,
		Example: `  netscout port 192.168.1.10 -p 22,80,443
  netscout port 10.0.0.0/28 -r 1-1024 -T connect
  netscout port example.com -W -S`,
		GroupID: "probe",
		Args:    minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := session(cmd)
			if err != nil {
				return err
			}
			params, err := bind.BindPortScanParams(cmd, args, cfg)
			if err != nil {
				return err
			}
			res, err := svc.PortScan(cmd.Context(), params)
			return report(cmd, res, err)
		},
	}

	cmd.Flags().StringP("ports", "p", "", "Ports and ranges, e.g. 22,80,8000-8080")
	cmd.Flags().StringP("range", "r", "", "Port range start-end")
	cmd.Flags().BoolP("full", "F", false, "Scan all ports 1-65535")
	cmd.Flags().BoolP("wellknown", "W", false, "Scan the well-known service ports")
	cmd.Flags().StringP("type", "T", "syn", "Scan type: syn or connect")
	cmd.Flags().Bool("noping", false, "Skip the ICMP liveness check")
	cmd.Flags().BoolP("service", "S", false, "Label open ports with service names")
	addProbeFlags(cmd)

	return cmd
}

func newHostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host <target>...",
		Short: "Discover live hosts",
		Example: `  netscout host 192.168.1.0/24
  netscout host 10.0.0.1-20 -P tcp -p 443
  netscout host 192.168.1.0/24 -P arp -i eth0`,
		GroupID: "probe",
		Args:    minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := session(cmd)
			if err != nil {
				return err
			}
			params, err := bind.BindHostScanParams(cmd, args, cfg)
			if err != nil {
				return err
			}
			res, err := svc.HostScan(cmd.Context(), params)
			return report(cmd, res, err)
		},
	}

	cmd.Flags().StringP("protocol", "P", "icmp", "Protocol: icmp, tcp, udp or arp")
	cmd.Flags().Uint16P("port", "p", 0, "Destination port for tcp and udp")
	addProbeFlags(cmd)

	return cmd
}
