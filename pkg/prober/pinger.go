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

package prober

import (
	"context"
	"net/netip"
	"time"

	"github.com/go-ping/ping"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PingChecker decides whether a target is alive before it is scanned.
type PingChecker interface {
	Alive(ctx context.Context, addr netip.Addr) bool
}

// Pinger is the subset of *ping.Pinger used by the pre-check.
type Pinger interface {
	Run() error
	Stop()
	Statistics() *ping.Statistics

	SetPrivileged(bool)
	SetNetwork(string)
	SetCount(int)
	SetInterval(time.Duration)
	SetTimeout(time.Duration)
	GetTimeout() time.Duration
}

type pingerFactoryFunc func(ip string) (Pinger, error)

// ICMPPingChecker sends a few echo requests with go-ping and reports a target
// alive when any reply arrives.
type ICMPPingChecker struct {
	Count      int
	Interval   time.Duration
	Timeout    time.Duration
	Privileged bool

	pingerFactory pingerFactoryFunc
	logger        zerolog.Logger
}

// NewICMPPingChecker returns a checker sending count echoes within timeout.
func NewICMPPingChecker(count int, timeout time.Duration, privileged bool) *ICMPPingChecker {
	if count <= 0 {
		count = 1
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ICMPPingChecker{
		Count:      count,
		Interval:   100 * time.Millisecond,
		Timeout:    timeout,
		Privileged: privileged,
		pingerFactory: func(ip string) (Pinger, error) {
			p, err := ping.NewPinger(ip)
			if err != nil {
				return nil, err
			}
			return &realPingerAdapter{p: p}, nil
		},
		logger: log.With().Str("component", "prober").Str("check", "ping").Logger(),
	}
}

func (c *ICMPPingChecker) Alive(ctx context.Context, addr netip.Addr) bool {
	pinger, err := c.pingerFactory(addr.String())
	if err != nil {
		c.logger.Debug().Err(err).Str("target", addr.String()).Msg("failed to create pinger")
		return false
	}
	network := "ip4"
	if addr.Is6() && !addr.Is4In6() {
		network = "ip6"
	}
	pinger.SetNetwork(network)
	pinger.SetPrivileged(c.Privileged)
	pinger.SetCount(c.Count)
	pinger.SetInterval(c.Interval)
	pinger.SetTimeout(c.Timeout)

	opCtx, cancel := context.WithTimeout(ctx, pinger.GetTimeout()+500*time.Millisecond)
	defer cancel()
	go func() {
		<-opCtx.Done()
		pinger.Stop()
	}()

	if err := pinger.Run(); err != nil {
		c.logger.Debug().Err(err).Str("target", addr.String()).Msg("ping run failed")
		return false
	}
	stats := pinger.Statistics()
	return stats != nil && stats.PacketsRecv > 0
}

type realPingerAdapter struct {
	p *ping.Pinger
}

func (r *realPingerAdapter) Run() error                   { return r.p.Run() }
func (r *realPingerAdapter) Stop()                        { r.p.Stop() }
func (r *realPingerAdapter) Statistics() *ping.Statistics { return r.p.Statistics() }

func (r *realPingerAdapter) SetPrivileged(v bool)        { r.p.SetPrivileged(v) }
func (r *realPingerAdapter) SetNetwork(n string)         { r.p.SetNetwork(n) }
func (r *realPingerAdapter) SetCount(c int)              { r.p.Count = c }
func (r *realPingerAdapter) SetInterval(i time.Duration) { r.p.Interval = i }
func (r *realPingerAdapter) SetTimeout(t time.Duration)  { r.p.Timeout = t }
func (r *realPingerAdapter) GetTimeout() time.Duration   { return r.p.Timeout }
