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
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulntor/netscout/cmd/netscout/internal/format"
	"github.com/vulntor/netscout/pkg/fingerprint"
	"github.com/vulntor/netscout/pkg/netutil"
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/stringutil"
)

func newInterfacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "interfaces",
		Aliases: []string{"if"},
		Short:   "List local network interfaces",
		GroupID: "lookup",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ifaces, err := netutil.Interfaces()
			if err != nil {
				return err
			}
			f := formatterFor(cmd)
			if f.Mode() != format.ModeText {
				return f.PrintData(ifaces)
			}

			rows := make([][]string, 0, len(ifaces))
			for _, ifi := range ifaces {
				state := "down"
				if ifi.Up {
					state = "up"
				}
				rows = append(rows, []string{
					strconv.Itoa(ifi.Index),
					ifi.Name,
					stringutil.OrDash(ifi.MAC),
					strconv.Itoa(ifi.MTU),
					state,
					stringutil.OrDash(strings.Join(ifi.Addrs, ", ")),
				})
			}
			return f.PrintTable([]string{"Index", "Name", "MAC", "MTU", "State", "Addresses"}, rows)
		},
	}
}

func newOSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "os",
		Short: "Look up operating systems by TCP signal or TTL",
		Long: `Look up the reference corpus for the operating systems matching an
observed TCP SYN-ACK signal (window size and option order) or a received TTL.`,
		Example: `  netscout os --window 64240 --options MSS,SACK,TS,NOP,WS
  netscout os --ttl 57`,
		GroupID: "lookup",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := session(cmd)
			if err != nil {
				return err
			}
			window, _ := cmd.Flags().GetUint16("window")
			options, _ := cmd.Flags().GetString("options")
			ttl, _ := cmd.Flags().GetUint8("ttl")
			f := formatterFor(cmd)

			switch {
			case cmd.Flags().Changed("ttl"):
				if ttl == 0 {
					return fingerprint.NewInvalidQueryError("ttl must be between 1 and 255")
				}
				initial := probe.GuessInitialTTL(ttl)
				entry, ok, err := svc.Resolver().ResolveOSByTTL(cmd.Context(), initial)
				if err != nil {
					return err
				}
				if !ok {
					return f.PrintSummary(fmt.Sprintf("no operating system registered for initial TTL %d", initial))
				}
				if f.Mode() != format.ModeText {
					return f.PrintData(entry)
				}
				return f.PrintTable([]string{"Initial TTL", "Hops", "Family", "Description"}, [][]string{{
					strconv.Itoa(int(entry.InitialTTL)),
					strconv.Itoa(int(probe.HopsFromTTL(ttl))),
					entry.Family,
					stringutil.OrDash(entry.Description),
				}})

			case cmd.Flags().Changed("window") || options != "":
				if options == "" {
					return fingerprint.NewInvalidQueryError("--options is required with --window")
				}
				candidates, err := svc.Resolver().ResolveOS(cmd.Context(), window, strings.ToUpper(options))
				if err != nil {
					return err
				}
				if len(candidates) == 0 {
					return f.PrintSummary("no matching operating system")
				}
				if f.Mode() != format.ModeText {
					return f.PrintData(candidates)
				}
				rows := make([][]string, 0, len(candidates))
				for _, c := range candidates {
					rows = append(rows, []string{
						c.Name,
						stringutil.OrDash(c.Generation),
						c.Family,
						stringutil.OrDash(c.Vendor),
						strconv.Itoa(int(c.WindowSize)),
						c.Technique,
						strconv.FormatFloat(c.Confidence, 'f', 2, 64),
					})
				}
				return f.PrintTable([]string{"Name", "Generation", "Family", "Vendor", "Window", "Match", "Confidence"}, rows)

			default:
				return fingerprint.NewInvalidQueryError("provide --window and --options, or --ttl")
			}
		},
	}

	cmd.Flags().Uint16("window", 0, "TCP window size of the SYN-ACK")
	cmd.Flags().String("options", "", "TCP option order, e.g. MSS,NOP,WS,SACK,TS")
	cmd.Flags().Uint8("ttl", 0, "Received IP TTL")

	return cmd
}

func newServiceCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "service <port>...",
		Short:   "Look up the service conventionally bound to TCP ports",
		Example: `  netscout service 22 80 8080-8082`,
		GroupID: "lookup",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := session(cmd)
			if err != nil {
				return err
			}
			ports, err := netutil.ParsePortString(strings.Join(args, ","))
			if err != nil {
				return fingerprint.NewInvalidQueryError(err.Error())
			}

			type entry struct {
				Port    uint16 `json:"port" yaml:"port"`
				Service string `json:"service_name" yaml:"service_name"`
			}
			entries := make([]entry, 0, len(ports))
			for _, port := range ports {
				name, err := svc.Resolver().ResolveService(cmd.Context(), port)
				if err != nil {
					return err
				}
				entries = append(entries, entry{Port: port, Service: name})
			}

			f := formatterFor(cmd)
			if f.Mode() != format.ModeText {
				return f.PrintData(entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{strconv.Itoa(int(e.Port)), e.Service})
			}
			return f.PrintTable([]string{"Port", "Service"}, rows)
		},
	}
}
