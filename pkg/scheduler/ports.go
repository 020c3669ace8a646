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
	"context"
	"fmt"
	"slices"

	"github.com/vulntor/netscout/pkg/fingerprint"
	"github.com/vulntor/netscout/pkg/netutil"
)

// PortSelection is the user's choice of ports for a port scan.
type PortSelection struct {
	Full      bool   // All ports 1-65535; overrides everything else
	List      string // Comma separated ports and ranges, e.g. "22,80,8000-8080"
	Range     string // A single start-end range
	WellKnown bool   // The well-known service ports
}

// PortSource enumerates service port subsets.
type PortSource interface {
	ServicePorts(ctx context.Context, subset fingerprint.Subset) ([]uint16, error)
}

// SelectPorts resolves a selection to a sorted port list. Precedence: full,
// then the union of list and range, then well-known, then the default
// service set.
func SelectPorts(ctx context.Context, sel PortSelection, src PortSource) ([]uint16, error) {
	if sel.Full {
		ports := make([]uint16, 0, 65535)
		for p := 1; p <= 65535; p++ {
			ports = append(ports, uint16(p))
		}
		return ports, nil
	}

	if sel.List != "" || sel.Range != "" {
		var ports []uint16
		if sel.List != "" {
			list, err := netutil.ParsePortString(sel.List)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
			}
			ports = append(ports, list...)
		}
		if sel.Range != "" {
			start, end, err := netutil.ParsePortRange(sel.Range)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
			}
			for p := int(start); p <= int(end); p++ {
				ports = append(ports, uint16(p))
			}
		}
		slices.Sort(ports)
		return slices.Compact(ports), nil
	}

	subset := fingerprint.SubsetDefault
	if sel.WellKnown {
		subset = fingerprint.SubsetWellKnown
	}
	ports, err := src.ServicePorts(ctx, subset)
	if err != nil {
		return nil, err
	}
	ports = slices.Clone(ports)
	slices.Sort(ports)
	return slices.Compact(ports), nil
}
