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

// Package aggregator folds probe outcomes into the immutable result of one
// session. An Aggregator has a single writer: the goroutine that drains the
// scheduler's outcome stream.
package aggregator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/scheduler"
)

// ErrFinalized is returned by Fold after Finalize.
var ErrFinalized = errors.New("session already finalized")

// Annotator enriches port and host scan nodes with service, OS and naming
// information when the session is finalized.
type Annotator interface {
	AnnotateNode(ctx context.Context, node *probe.Node) error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithAnnotator sets the node annotator.
func WithAnnotator(a Annotator) Option {
	return func(g *Aggregator) { g.annotator = a }
}

// WithBaseDomain sets the apex reported by domain scans.
func WithBaseDomain(apex string) Option {
	return func(g *Aggregator) { g.baseDomain = probe.NormalizeHost(apex) }
}

// WithObserver is called with every folded outcome.
func WithObserver(fn func(scheduler.Outcome)) Option {
	return func(g *Aggregator) { g.observer = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Aggregator) { g.now = now }
}

// Aggregator accumulates the outcomes of one session.
type Aggregator struct {
	session    probe.Session
	outcomes   []scheduler.Outcome
	fatal      error
	annotator  Annotator
	observer   func(scheduler.Outcome)
	baseDomain string
	now        func() time.Time
	logger     zerolog.Logger

	result probe.Result
}

// New starts aggregating a session. The session start time is taken as the
// creation time.
func New(session probe.Session, opts ...Option) *Aggregator {
	g := &Aggregator{
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.session.StartTime.IsZero() {
		g.session.StartTime = g.now()
	}
	if g.session.IssuedAt.IsZero() {
		g.session.IssuedAt = g.session.StartTime
	}
	g.logger = log.With().
		Str("component", "aggregator").
		Str("probe_id", g.session.ProbeID).
		Str("command", string(g.session.CommandType)).
		Logger()
	return g
}

// Fold records one outcome.
func (g *Aggregator) Fold(o scheduler.Outcome) error {
	if g.result != nil {
		return ErrFinalized
	}
	g.outcomes = append(g.outcomes, o)
	if g.observer != nil {
		g.observer(o)
	}
	return nil
}

// Fail records a fatal failure that prevented probing.
func (g *Aggregator) Fail(err error) {
	if err != nil && g.fatal == nil {
		g.fatal = err
	}
}

// Consume folds outcomes until ch is closed. It returns the number folded.
func (g *Aggregator) Consume(ch <-chan scheduler.Outcome) int {
	n := 0
	for o := range ch {
		if err := g.Fold(o); err != nil {
			g.logger.Warn().Err(err).Uint32("seq", o.Job.Seq).Msg("outcome dropped")
			continue
		}
		n++
	}
	return n
}

// Responses returns the folded responses in fold order.
func (g *Aggregator) Responses() []probe.Response {
	out := make([]probe.Response, 0, len(g.outcomes))
	for _, o := range g.outcomes {
		out = append(out, o.Response)
	}
	return out
}

// Finalize builds the session result. It is measured once: later calls
// return the same result. An annotation failure is returned together with
// the otherwise complete result.
func (g *Aggregator) Finalize(ctx context.Context) (probe.Result, error) {
	if g.result != nil {
		return g.result, nil
	}

	g.session.EndTime = g.now()
	if g.session.EndTime.Before(g.session.StartTime) {
		g.session.EndTime = g.session.StartTime
	}
	g.session.ElapsedTime = g.session.EndTime.Sub(g.session.StartTime)
	g.session.ProbeStatus = DeriveStatus(g.Responses(), g.fatal != nil)
	if g.fatal != nil {
		g.session.Error = g.fatal.Error()
	}

	var annotateErr error
	switch g.session.CommandType {
	case probe.CommandPing, probe.CommandNeighbor:
		stat := ComputePingStat(g.Responses())
		stat.ProbeTime = g.session.ElapsedTime
		g.result = &probe.PingResult{Session: g.session, Stat: stat}
	case probe.CommandTraceroute:
		g.result = &probe.TracerouteResult{Session: g.session, Nodes: TraceNodes(g.Responses())}
	case probe.CommandDomainScan:
		g.result = &probe.DomainScanResult{Session: g.session, BaseDomain: g.baseDomain, Domains: Domains(g.Responses())}
	case probe.CommandPortScan:
		nodes := g.portNodes()
		annotateErr = g.annotate(ctx, nodes)
		g.result = &probe.PortScanResult{Session: g.session, Nodes: nodes}
	case probe.CommandHostScan:
		nodes := g.hostNodes()
		annotateErr = g.annotate(ctx, nodes)
		g.result = &probe.HostScanResult{Session: g.session, Nodes: nodes}
	default:
		return nil, fmt.Errorf("unknown command type %q", g.session.CommandType)
	}

	g.logger.Debug().
		Str("status", string(g.session.ProbeStatus)).
		Int("outcomes", len(g.outcomes)).
		Dur("elapsed", g.session.ElapsedTime).
		Msg("session finalized")

	return g.result, annotateErr
}

func (g *Aggregator) annotate(ctx context.Context, nodes []probe.Node) error {
	if g.annotator == nil {
		return nil
	}
	var errs []error
	for i := range nodes {
		if err := g.annotator.AnnotateNode(ctx, &nodes[i]); err != nil {
			g.logger.Warn().Err(err).Str("ip", nodes[i].IP).Msg("node annotation failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// nodeBuilder groups outcomes per target address, keeping first-seen order.
type nodeBuilder struct {
	order []netip.Addr
	nodes map[netip.Addr]*probe.Node
}

func (b *nodeBuilder) get(t probe.Target, proto probe.Protocol) *probe.Node {
	if b.nodes == nil {
		b.nodes = make(map[netip.Addr]*probe.Node)
	}
	n, ok := b.nodes[t.Addr]
	if !ok {
		n = &probe.Node{IP: t.Addr.String(), HostName: t.Host, Protocol: proto}
		b.nodes[t.Addr] = n
		b.order = append(b.order, t.Addr)
	}
	return n
}

func (b *nodeBuilder) list() []probe.Node {
	out := make([]probe.Node, 0, len(b.order))
	for _, a := range b.order {
		out = append(out, *b.nodes[a])
	}
	slices.SortStableFunc(out, func(x, y probe.Node) int {
		ax, errX := netip.ParseAddr(x.IP)
		ay, errY := netip.ParseAddr(y.IP)
		if errX != nil || errY != nil {
			return cmp.Compare(x.IP, y.IP)
		}
		return ax.Compare(ay)
	})
	return out
}

// portNodes builds one node per target that answered at least one probe.
// Filtered ports are left out.
func (g *Aggregator) portNodes() []probe.Node {
	var b nodeBuilder
	for _, o := range g.outcomes {
		r := o.Response
		if r.Status != probe.StatusDone {
			continue
		}
		n := b.get(o.Job.Target, r.Protocol)
		if n.TTL == 0 {
			n.TTL = r.TTL
		}
		if r.PortState == probe.PortOpen || r.PortState == probe.PortClosed {
			n.Ports = append(n.Ports, probe.Port{Number: o.Job.Port, State: r.PortState})
		}
		if r.Signal != nil && (n.Signal == nil || (n.Signal.Options == "" && r.Signal.Options != "")) {
			sig := *r.Signal
			n.Signal = &sig
		}
	}
	nodes := b.list()
	for i := range nodes {
		slices.SortFunc(nodes[i].Ports, func(a, b probe.Port) int { return cmp.Compare(a.Number, b.Number) })
		nodes[i].Ports = slices.CompactFunc(nodes[i].Ports, func(a, b probe.Port) bool { return a.Number == b.Number })
	}
	return nodes
}

// hostNodes builds one node per responding target.
func (g *Aggregator) hostNodes() []probe.Node {
	var b nodeBuilder
	for _, o := range g.outcomes {
		r := o.Response
		if r.Status != probe.StatusDone {
			continue
		}
		n := b.get(o.Job.Target, r.Protocol)
		if n.TTL == 0 {
			n.TTL = r.TTL
		}
		if n.MAC == "" {
			n.MAC = r.MAC
		}
		if r.PortState == probe.PortOpen {
			n.Ports = append(n.Ports, probe.Port{Number: o.Job.Port, State: r.PortState})
		}
		if n.Signal == nil && r.Signal != nil {
			sig := *r.Signal
			n.Signal = &sig
		}
		if n.Signal == nil && r.TTL != 0 {
			n.Signal = &probe.Signal{TTL: r.TTL}
		}
	}
	return b.list()
}
