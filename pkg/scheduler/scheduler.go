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

// Package scheduler turns a job list into a stream of probe outcomes. It
// orders jobs, paces sends through a rate limiter, bounds the number of
// probes in flight, and guarantees one outcome per dispatched job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/prober"
)

// DefaultConcurrency bounds the probes in flight when Options leaves it unset.
const DefaultConcurrency = 100

var (
	// ErrNoJobs is returned by Run when there is nothing to probe.
	ErrNoJobs = errors.New("no probe jobs")
	// ErrInvalidOptions wraps option validation failures.
	ErrInvalidOptions = errors.New("invalid scheduler options")
)

var validate = validator.New()

// Job is one probe to dispatch.
type Job struct {
	Target probe.Target
	Port   uint16
	Seq    uint32
	TTL    uint8
	Hop    uint8
}

func (j Job) request(timeout time.Duration) prober.Request {
	return prober.Request{
		Target:  j.Target,
		Port:    j.Port,
		Seq:     j.Seq,
		TTL:     j.TTL,
		Hop:     j.Hop,
		Timeout: timeout,
	}
}

// Outcome pairs a dispatched job with its response.
type Outcome struct {
	Job      Job
	Response probe.Response
}

// Options tune a Run.
type Options struct {
	// Random shuffles the job order with a fresh seed per Run.
	Random bool
	// Seed fixes the shuffle seed; zero draws a random one.
	Seed uint64
	// Rate is the minimum interval between two sends; zero disables pacing.
	Rate time.Duration `validate:"gte=0"`
	// WaitTime is the minimum time a probe waits for its reply.
	WaitTime time.Duration `validate:"gte=0"`
	// Timeout is the per-probe reply deadline.
	Timeout time.Duration `validate:"gt=0"`
	// OverallTimeout bounds the whole Run; zero means unbounded.
	OverallTimeout time.Duration `validate:"gte=0"`
	// Concurrency bounds the probes in flight.
	Concurrency int `validate:"gte=0,lte=65535"`

	// Precheck, when set, gates every target: targets it reports dead are
	// skipped without probing.
	Precheck prober.PingChecker
	// OnSkip is called for each target dropped by Precheck.
	OnSkip func(probe.Target)
	// StopWhen stops dispatching further jobs once it returns true for a
	// response. Probes already in flight still complete.
	StopWhen func(probe.Response) bool
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// ProbeTimeout is the per-probe deadline: the larger of Timeout and WaitTime.
func (o Options) ProbeTimeout() time.Duration {
	return max(o.Timeout, o.WaitTime)
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return o.Concurrency
}

func (o Options) limiter() *rate.Limiter {
	if o.Rate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(o.Rate), 1)
}

// Scheduler dispatches jobs to a single Prober.
type Scheduler struct {
	prober prober.Prober
	opts   Options
	logger zerolog.Logger
}

// New returns a Scheduler for p. Options are validated here so that a bad
// configuration fails before any probe is sent.
func New(p prober.Prober, opts Options) (*Scheduler, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil prober", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		prober: p,
		opts:   opts,
		logger: log.With().Str("component", "scheduler").Str("protocol", string(p.Protocol())).Logger(),
	}, nil
}

// Run dispatches jobs and returns the outcome stream. The channel is closed
// once every dispatched job has produced exactly one outcome. Jobs not yet
// dispatched when ctx is cancelled or the overall timeout elapses are never
// sent; probes in flight at that point finish as Timeout.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) (<-chan Outcome, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	jobs = s.order(jobs)

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.opts.OverallTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.opts.OverallTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	workers := s.opts.concurrency()
	out := make(chan Outcome, workers)

	go func() {
		defer cancel()
		defer close(out)

		alive := s.precheck(runCtx, jobs)
		s.dispatch(runCtx, jobs, alive, out)
	}()
	return out, nil
}

// order returns jobs in dispatch order.
func (s *Scheduler) order(jobs []Job) []Job {
	ordered := append([]Job(nil), jobs...)
	if !s.opts.Random {
		return ordered
	}
	seed := s.opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	return ordered
}

// precheck returns the set of targets that passed the pre-check, or nil when
// no pre-check is configured.
func (s *Scheduler) precheck(ctx context.Context, jobs []Job) map[netip.Addr]bool {
	if s.opts.Precheck == nil {
		return nil
	}

	var targets []probe.Target
	seen := make(map[netip.Addr]bool)
	for _, j := range jobs {
		if !seen[j.Target.Addr] {
			seen[j.Target.Addr] = true
			targets = append(targets, j.Target)
		}
	}

	var mu sync.Mutex
	alive := make(map[netip.Addr]bool, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency())
	for _, t := range targets {
		g.Go(func() error {
			ok := s.opts.Precheck.Alive(gctx, t.Addr)
			mu.Lock()
			alive[t.Addr] = ok
			mu.Unlock()
			if !ok {
				s.logger.Info().Str("target", t.String()).Msg("target did not answer the ping pre-check, skipping")
				if s.opts.OnSkip != nil {
					s.opts.OnSkip(t)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return alive
}

func (s *Scheduler) dispatch(ctx context.Context, jobs []Job, alive map[netip.Addr]bool, out chan<- Outcome) {
	sem := semaphore.NewWeighted(int64(s.opts.concurrency()))
	limiter := s.opts.limiter()
	timeout := s.opts.ProbeTimeout()

	// dispatchCtx additionally stops on StopWhen; probes use ctx.
	dispatchCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		wg      sync.WaitGroup
		skipped int
		sent    int
	)
	for _, job := range jobs {
		if dispatchCtx.Err() != nil {
			break
		}
		if alive != nil && !alive[job.Target.Addr] {
			skipped++
			continue
		}
		if err := sem.Acquire(dispatchCtx, 1); err != nil {
			break
		}
		if err := limiter.Wait(dispatchCtx); err != nil {
			sem.Release(1)
			break
		}
		sent++
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer sem.Release(1)

			resp := s.execute(ctx, job, timeout)
			if s.opts.StopWhen != nil && s.opts.StopWhen(resp) {
				stop()
			}
			out <- Outcome{Job: job, Response: resp}
		}(job)
	}
	wg.Wait()

	s.logger.Debug().
		Int("jobs", len(jobs)).
		Int("dispatched", sent).
		Int("skipped", skipped).
		Bool("interrupted", ctx.Err() != nil).
		Msg("dispatch finished")
}

// execute runs one probe. A prober panic becomes an Error response; a probe
// interrupted by cancellation becomes a Timeout.
func (s *Scheduler) execute(ctx context.Context, job Job, timeout time.Duration) (resp probe.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Uint32("seq", job.Seq).Msg("prober panicked")
			resp = probe.Response{
				Seq:      job.Seq,
				IP:       job.Target.Addr.String(),
				HostName: job.Target.Host,
				Port:     probe.PortPtr(job.Port),
				Hop:      job.Hop,
				Status:   probe.StatusError,
				Protocol: s.prober.Protocol(),
				NodeType: probe.NodeDestination,
				Error:    fmt.Sprintf("prober panic: %v", r),
			}
		}
	}()

	resp = s.prober.SendAndWait(ctx, job.request(timeout))
	if ctx.Err() != nil && resp.Status != probe.StatusDone {
		resp.Status = probe.StatusTimeout
		resp.Error = ""
	}
	return resp
}
