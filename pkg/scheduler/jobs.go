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

package scheduler

import (
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/prober"
)

// PortJobs probes every port of every target. Sequence numbers follow the
// input order.
func PortJobs(targets []probe.Target, ports []uint16) []Job {
	jobs := make([]Job, 0, len(targets)*len(ports))
	var seq uint32
	for _, t := range targets {
		for _, p := range ports {
			seq++
			jobs = append(jobs, Job{Target: t, Port: p, Seq: seq})
		}
	}
	return jobs
}

// HostJobs probes each target once, on port when the protocol needs one.
func HostJobs(targets []probe.Target, port uint16) []Job {
	jobs := make([]Job, 0, len(targets))
	for i, t := range targets {
		jobs = append(jobs, Job{Target: t, Port: port, Seq: uint32(i + 1)})
	}
	return jobs
}

// PingJobs probes target count times.
func PingJobs(target probe.Target, port uint16, count int) []Job {
	jobs := make([]Job, 0, max(count, 0))
	for i := range count {
		jobs = append(jobs, Job{Target: target, Port: port, Seq: uint32(i + 1)})
	}
	return jobs
}

// TraceJobs probes target with TTL 1..maxHop. UDP traces advance the
// destination port with the hop starting at basePort (TracerouteBasePort
// when zero); other protocols keep basePort unchanged.
func TraceJobs(target probe.Target, proto probe.Protocol, basePort uint16, maxHop uint8) []Job {
	if proto == probe.ProtocolUDP && basePort == 0 {
		basePort = prober.TracerouteBasePort
	}
	jobs := make([]Job, 0, maxHop)
	for hop := uint8(1); hop <= maxHop && hop != 0; hop++ {
		port := basePort
		if proto == probe.ProtocolUDP {
			port = basePort + uint16(hop) - 1
		}
		jobs = append(jobs, Job{Target: target, Port: port, Seq: uint32(hop), TTL: hop, Hop: hop})
	}
	return jobs
}

// DomainJobs resolves one candidate name per word under apex.
func DomainJobs(apex string, words []string) []Job {
	jobs := make([]Job, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		name := prober.SubdomainName(w, apex)
		if w == "" || seen[name] {
			continue
		}
		seen[name] = true
		jobs = append(jobs, Job{Target: probe.Target{Host: name}, Seq: uint32(len(jobs) + 1)})
	}
	return jobs
}
