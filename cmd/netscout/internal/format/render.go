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

package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/stringutil"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// Banner renders the one-line session header shown above text output.
func Banner(s probe.Session, colorEnabled bool) string {
	title := string(s.CommandType)
	if s.ScanType != probe.ScanNone {
		title += " (" + string(s.ScanType) + ")"
	}
	status := string(s.ProbeStatus)
	meta := fmt.Sprintf("%s  %s  %s  %s", s.Target, s.Protocol, stringutil.Millis(s.ElapsedTime), s.ProbeID)
	if !colorEnabled {
		return fmt.Sprintf("%s [%s] %s", title, status, meta)
	}

	statusStyle := warnStyle
	switch s.ProbeStatus {
	case probe.StatusDone:
		statusStyle = doneStyle
	case probe.StatusError:
		statusStyle = errorStyle
	}
	return fmt.Sprintf("%s %s %s",
		titleStyle.Render(title),
		statusStyle.Render("["+status+"]"),
		subtleStyle.Render(meta))
}

// RenderResult writes res in the formatter's mode. Structured modes emit the
// whole result document; text mode prints a banner and one table per result.
func RenderResult(f Formatter, res probe.Result) error {
	if f.Mode() != ModeText {
		return f.PrintData(res)
	}

	if err := f.PrintSummary(Banner(res.Meta(), f.ColorEnabled())); err != nil {
		return err
	}
	if msg := res.Meta().Error; msg != "" {
		if err := f.PrintSummary("error: " + msg); err != nil {
			return err
		}
	}

	switch r := res.(type) {
	case *probe.PortScanResult:
		return renderPortScan(f, r)
	case *probe.HostScanResult:
		return renderHostScan(f, r)
	case *probe.PingResult:
		return renderPing(f, r)
	case *probe.TracerouteResult:
		return renderTrace(f, r)
	case *probe.DomainScanResult:
		return renderDomains(f, r)
	default:
		return fmt.Errorf("unsupported result type %T", res)
	}
}

func renderPortScan(f Formatter, r *probe.PortScanResult) error {
	if len(r.Nodes) == 0 {
		return f.PrintSummary("no responsive hosts")
	}
	for _, node := range r.Nodes {
		if err := f.PrintSummary(nodeTitle(node)); err != nil {
			return err
		}
		rows := make([][]string, 0, len(node.Ports))
		for _, p := range node.Ports {
			rows = append(rows, []string{
				strconv.Itoa(int(p.Number)),
				string(p.State),
				stringutil.OrDash(p.Service),
			})
		}
		if err := f.PrintTable([]string{"Port", "State", "Service"}, rows); err != nil {
			return err
		}
	}
	open := 0
	for _, node := range r.Nodes {
		open += len(node.OpenPorts())
	}
	return f.PrintSummary(fmt.Sprintf("%s, %s", stringutil.Plural(len(r.Nodes), "host"), stringutil.Plural(open, "open port")))
}

func nodeTitle(n probe.Node) string {
	var sb strings.Builder
	sb.WriteString(n.IP)
	if n.HostName != "" && n.HostName != n.IP {
		sb.WriteString(" (" + n.HostName + ")")
	}
	if n.OS != nil {
		sb.WriteString("  os: " + osLabel(n.OS))
	}
	return sb.String()
}

func osLabel(g *probe.OSGuess) string {
	if g == nil {
		return "-"
	}
	label := g.Family
	if g.Name != "" {
		label = g.Name
		if g.Generation != "" {
			label += " " + g.Generation
		}
	}
	return fmt.Sprintf("%s (%s %.2f)", label, g.Technique, g.Confidence)
}

func renderHostScan(f Formatter, r *probe.HostScanResult) error {
	rows := make([][]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		rows = append(rows, []string{
			n.IP,
			stringutil.OrDash(n.HostName),
			ttlString(n.TTL),
			stringutil.OrDash(n.MAC),
			osLabel(n.OS),
		})
	}
	if err := f.PrintTable([]string{"IP", "Hostname", "TTL", "MAC", "OS"}, rows); err != nil {
		return err
	}
	return f.PrintSummary(stringutil.Plural(len(r.Nodes), "host") + " up")
}

func renderPing(f Formatter, r *probe.PingResult) error {
	rows := make([][]string, 0, len(r.Stat.Responses))
	for _, resp := range r.Stat.Responses {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(resp.Seq), 10),
			resp.IP,
			portString(resp.Port),
			ttlString(resp.TTL),
			rttString(resp),
			stringutil.OrDash(resp.MAC),
			string(resp.Status),
		})
	}
	if err := f.PrintTable([]string{"Seq", "IP", "Port", "TTL", "RTT", "MAC", "Status"}, rows); err != nil {
		return err
	}
	return f.PrintSummary(PingSummary(r.Stat))
}

// PingSummary renders the classic ping statistics line.
func PingSummary(s probe.PingStat) string {
	loss := 0.0
	if s.Transmitted > 0 {
		loss = float64(s.Transmitted-s.Received) / float64(s.Transmitted) * 100
	}
	line := fmt.Sprintf("%d transmitted, %d received, %.1f%% loss, time %s",
		s.Transmitted, s.Received, loss, stringutil.Millis(s.ProbeTime))
	if s.Received == 0 {
		return line
	}
	return fmt.Sprintf("%s\nrtt min/avg/max = %s/%s/%s", line,
		stringutil.Millis(s.Min), stringutil.Millis(s.Avg), stringutil.Millis(s.Max))
}

func renderTrace(f Formatter, r *probe.TracerouteResult) error {
	rows := make([][]string, 0, len(r.Nodes))
	for _, hop := range r.Nodes {
		ip := hop.IP
		if hop.Status != probe.StatusDone {
			ip = "*"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(hop.Seq), 10),
			ip,
			stringutil.OrDash(stringutil.Ellipsis(hop.HostName, 48)),
			rttString(hop),
			stringutil.OrDash(string(hop.NodeType)),
		})
	}
	return f.PrintTable([]string{"Hop", "IP", "Hostname", "RTT", "Node"}, rows)
}

func renderDomains(f Formatter, r *probe.DomainScanResult) error {
	rows := make([][]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		rows = append(rows, []string{d.Name, strings.Join(d.IPs, ", ")})
	}
	if err := f.PrintTable([]string{"Domain", "Addresses"}, rows); err != nil {
		return err
	}
	return f.PrintSummary(fmt.Sprintf("%s found under %s", stringutil.Plural(len(r.Domains), "domain"), r.BaseDomain))
}

func ttlString(ttl uint8) string {
	if ttl == 0 {
		return "-"
	}
	return strconv.Itoa(int(ttl))
}

func portString(p *uint16) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(int(*p))
}

func rttString(r probe.Response) string {
	if r.Status != probe.StatusDone {
		return "-"
	}
	return stringutil.Millis(r.RTT)
}
