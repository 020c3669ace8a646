package aggregator

import (
	"cmp"
	"slices"
	"time"

	"github.com/vulntor/netscout/pkg/probe"
)

// DeriveStatus computes the session status from its responses. Done wins
// when any probe succeeded. Otherwise Error is reported when a fatal failure
// was recorded or any probe failed locally, and Timeout when every probe
// simply went unanswered.
func DeriveStatus(responses []probe.Response, fatal bool) probe.Status {
	anyError := fatal
	for _, r := range responses {
		switch r.Status {
		case probe.StatusDone:
			return probe.StatusDone
		case probe.StatusError:
			anyError = true
		}
	}
	if anyError {
		return probe.StatusError
	}
	return probe.StatusTimeout
}

// ComputePingStat summarizes responses. Transmitted counts every folded
// response; RTT statistics only consider Done responses.
func ComputePingStat(responses []probe.Response) probe.PingStat {
	sorted := slices.Clone(responses)
	slices.SortStableFunc(sorted, func(a, b probe.Response) int { return cmp.Compare(a.Seq, b.Seq) })

	stat := probe.PingStat{Responses: sorted, Transmitted: len(sorted)}
	var total time.Duration
	for _, r := range sorted {
		if r.Status != probe.StatusDone {
			continue
		}
		if stat.Received == 0 || r.RTT < stat.Min {
			stat.Min = r.RTT
		}
		if r.RTT > stat.Max {
			stat.Max = r.RTT
		}
		total += r.RTT
		stat.Received++
	}
	if stat.Received > 0 {
		stat.Avg = total / time.Duration(stat.Received)
	}
	return stat
}

// TraceNodes orders hop responses by sequence and stops after the first
// Destination reply.
func TraceNodes(responses []probe.Response) []probe.Response {
	sorted := slices.Clone(responses)
	slices.SortStableFunc(sorted, func(a, b probe.Response) int { return cmp.Compare(a.Seq, b.Seq) })
	for i, r := range sorted {
		if r.Status == probe.StatusDone && r.NodeType == probe.NodeDestination {
			return sorted[:i+1]
		}
	}
	return sorted
}

// Domains lists the names that resolved to at least one address, sorted by
// name.
func Domains(responses []probe.Response) []probe.Domain {
	byName := make(map[string]int)
	var out []probe.Domain
	for _, r := range responses {
		if r.Status != probe.StatusDone || len(r.Addrs) == 0 {
			continue
		}
		if i, ok := byName[r.HostName]; ok {
			out[i].IPs = append(out[i].IPs, r.Addrs...)
			continue
		}
		byName[r.HostName] = len(out)
		out = append(out, probe.Domain{Name: r.HostName, IPs: slices.Clone(r.Addrs)})
	}
	for i := range out {
		slices.Sort(out[i].IPs)
		out[i].IPs = slices.Compact(out[i].IPs)
	}
	slices.SortFunc(out, func(a, b probe.Domain) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
