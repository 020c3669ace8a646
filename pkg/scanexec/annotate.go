package scanexec

import (
	"context"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/vulntor/netscout/pkg/fingerprint"
	"github.com/vulntor/netscout/pkg/probe"
)

// nodeAnnotator attaches service labels, an OS guess and a reverse DNS name
// to scan nodes.
type nodeAnnotator struct {
	resolver *fingerprint.Resolver
	names    nameResolver
	services bool
	logger   zerolog.Logger
}

func (a *nodeAnnotator) AnnotateNode(ctx context.Context, n *probe.Node) error {
	if a.services {
		for i := range n.Ports {
			if n.Ports[i].State != probe.PortOpen {
				continue
			}
			name, err := a.resolver.ResolveService(ctx, n.Ports[i].Number)
			if err != nil {
				return err
			}
			n.Ports[i].Service = name
		}
	}

	if n.Signal != nil {
		guess, err := a.resolver.GuessOS(ctx, *n.Signal)
		if err != nil {
			return err
		}
		n.OS = guess
	}

	if n.HostName == "" && a.names != nil {
		addr, err := netip.ParseAddr(n.IP)
		if err != nil {
			return nil
		}
		names, err := a.names.LookupAddr(ctx, addr)
		if err != nil {
			a.logger.Debug().Err(err).Str("ip", n.IP).Msg("reverse lookup failed")
			return nil
		}
		if len(names) > 0 {
			n.HostName = names[0]
		}
	}
	return nil
}
