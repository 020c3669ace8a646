package scanexec

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/netscout/pkg/aggregator"
	"github.com/vulntor/netscout/pkg/dnsutil"
	"github.com/vulntor/netscout/pkg/fingerprint"
	"github.com/vulntor/netscout/pkg/netutil"
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/prober"
	"github.com/vulntor/netscout/pkg/scheduler"
	"github.com/vulntor/netscout/pkg/storage"
)

// Defaults applied when params leave a knob unset.
const (
	DefaultPingInterval = time.Second
	DefaultPingCount    = 4
	DefaultMaxHop       = 64
	DefaultTCPPort      = 80
)

// persistTimeout bounds the history write after the session context ends.
const persistTimeout = 10 * time.Second

// nameResolver resolves target names and reverse records.
type nameResolver interface {
	LookupIPv4(ctx context.Context, name string) (netip.Addr, error)
	LookupAddr(ctx context.Context, addr netip.Addr) ([]string, error)
}

// ProberFactory opens a prober of the given kind.
type ProberFactory func(kind prober.Kind, cfg prober.Config) (prober.Prober, error)

type ProgressSink interface {
	OnEvent(ProgressEvent)
}

type ProgressEvent struct {
	Phase     string // resolve, probe, finalize, persist
	ProbeID   string
	Target    string
	Status    string
	Message   string
	Timestamp time.Time
}

// Service runs scan sessions: it resolves targets, drives the scheduler over
// one prober, folds outcomes into a result and persists it.
type Service struct {
	openProber   ProberFactory
	resolver     *fingerprint.Resolver
	history      storage.HistoryStore
	names        nameResolver
	pingChecker  func(Timing) prober.PingChecker
	progressSink ProgressSink
	logger       zerolog.Logger
}

// NewService builds a Service over backend's corpus and history.
func NewService(backend storage.Backend) *Service {
	return &Service{
		openProber: prober.Open,
		resolver:   fingerprint.NewResolver(backend.Corpus()),
		history:    backend.History(),
		pingChecker: func(t Timing) prober.PingChecker {
			return prober.NewICMPPingChecker(2, t.Timeout, privileged())
		},
		logger: log.With().Str("component", "scanexec").Logger(),
	}
}

// WithProgressSink attaches a sink to receive progress notifications.
func (s *Service) WithProgressSink(sink ProgressSink) *Service {
	s.progressSink = sink
	return s
}

// WithProberFactory overrides prober construction (useful for tests).
func (s *Service) WithProberFactory(factory ProberFactory) *Service {
	s.openProber = factory
	return s
}

// WithNameResolver overrides the DNS resolver used for targets and PTR names.
func (s *Service) WithNameResolver(r nameResolver) *Service {
	s.names = r
	return s
}

// WithPingChecker overrides the port scan pre-check.
func (s *Service) WithPingChecker(factory func(Timing) prober.PingChecker) *Service {
	s.pingChecker = factory
	return s
}

// WithResolver replaces the fingerprint resolver.
func (s *Service) WithResolver(r *fingerprint.Resolver) *Service {
	s.resolver = r
	return s
}

// Resolver exposes the fingerprint resolver for lookups outside a session.
func (s *Service) Resolver() *fingerprint.Resolver {
	return s.resolver
}

func (s *Service) nameResolver() (nameResolver, error) {
	if s.names != nil {
		return s.names, nil
	}
	r, err := dnsutil.NewResolver(nil, 0)
	if err != nil {
		return nil, err
	}
	s.names = r
	return r, nil
}

// resolveTargets expands CIDRs and ranges and resolves host names. Malformed
// input is a configuration error. A name that does not resolve only drops
// that target; failure is set when no target is left, and the caller then
// finalizes an Error session without probing.
func (s *Service) resolveTargets(ctx context.Context, raw []string) (targets []probe.Target, failure error, err error) {
	var inputs []string
	for _, r := range raw {
		inputs = append(inputs, netutil.SplitTargets(r)...)
	}
	if len(inputs) == 0 {
		return nil, nil, NewInvalidTargetError("", nil)
	}
	expanded, err := netutil.ExpandTargets(inputs)
	if err != nil {
		return nil, nil, WithErrorCode(err, errorCodeInvalidTarget)
	}

	var unresolved []error
	targets = make([]probe.Target, 0, len(expanded))
	for _, host := range expanded {
		if addr, err := netip.ParseAddr(host); err == nil {
			targets = append(targets, probe.Target{Addr: addr.Unmap()})
			continue
		}
		addr, err := s.lookupTarget(ctx, host)
		if err != nil {
			s.logger.Error().Err(err).Str("target", host).Msg("target did not resolve, skipping")
			s.emit("resolve", "", host, "failed", err.Error())
			unresolved = append(unresolved, fmt.Errorf("resolve %s: %w", host, err))
			continue
		}
		targets = append(targets, probe.Target{Addr: addr, Host: probe.NormalizeHost(host)})
		s.emit("resolve", "", host, "completed", addr.String())
	}
	if len(targets) == 0 {
		if len(unresolved) == 0 {
			return nil, nil, NewInvalidTargetError("", nil)
		}
		return nil, WithErrorCode(errors.Join(unresolved...), errorCodeInvalidTarget), nil
	}
	return targets, nil, nil
}

func (s *Service) lookupTarget(ctx context.Context, host string) (netip.Addr, error) {
	names, err := s.nameResolver()
	if err != nil {
		return netip.Addr{}, err
	}
	return names.LookupIPv4(ctx, host)
}

// session describes one run for execute.
type session struct {
	header  probe.Session
	kind    prober.Kind
	cfg     prober.Config
	jobs    []scheduler.Job
	opts    scheduler.Options
	aggOpts []aggregator.Option
	persist bool
	// failure, when set, fails the session before any probe is sent.
	failure error
}

// execute runs a session end to end. A pre-probe failure (sess.failure or a
// prober that cannot be opened) fails the session before any probe is sent;
// the Error result is still returned and persisted.
func (s *Service) execute(ctx context.Context, sess session) (probe.Result, error) {
	logger := s.logger.With().
		Str("probe_id", sess.header.ProbeID).
		Str("command", string(sess.header.CommandType)).
		Str("target", sess.header.Target).
		Logger()

	// Reject bad options before touching sockets.
	if err := sess.opts.Validate(); err != nil {
		return nil, NewInvalidOptionsError(err)
	}

	observer := aggregator.WithObserver(func(o scheduler.Outcome) {
		s.emit("probe", sess.header.ProbeID, o.Job.Target.String(), string(o.Response.Status), o.Response.Error)
	})
	agg := aggregator.New(sess.header, append(sess.aggOpts, observer)...)

	var runErr error
	if sess.failure != nil {
		logger.Error().Err(sess.failure).Msg("session failed before probing")
		runErr = sess.failure
		agg.Fail(runErr)
	} else if p, err := s.openProber(sess.kind, sess.cfg); err != nil {
		logger.Error().Err(err).Str("prober", string(sess.kind)).Msg("failed to open prober")
		runErr = WithErrorCode(fmt.Errorf("open %s prober: %w", sess.kind, err), errorCodeProberUnavailable)
		agg.Fail(runErr)
	} else {
		defer func() {
			if cerr := p.Close(); cerr != nil {
				logger.Debug().Err(cerr).Msg("prober close failed")
			}
		}()
		sc, err := scheduler.New(p, sess.opts)
		if err != nil {
			return nil, NewInvalidOptionsError(err)
		}
		ch, err := sc.Run(ctx, sess.jobs)
		if err != nil {
			return nil, NewInvalidOptionsError(err)
		}
		logger.Info().Int("jobs", len(sess.jobs)).Msg("session started")
		agg.Consume(ch)
	}

	result, err := agg.Finalize(ctx)
	if err != nil {
		if result == nil {
			return nil, WithErrorCode(err, errorCodeScanFailure)
		}
		logger.Warn().Err(err).Msg("node annotation failed")
		runErr = errors.Join(runErr, WithErrorCode(err, errorCodeStorageFailure))
	}
	meta := result.Meta()
	s.emit("finalize", meta.ProbeID, meta.Target, string(meta.ProbeStatus), "")
	logger.Info().
		Str("status", string(meta.ProbeStatus)).
		Dur("elapsed", meta.ElapsedTime).
		Msg("session finished")

	if sess.persist && s.history != nil {
		// An interrupted session still keeps what it folded.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		err := s.history.Persist(pctx, result)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("failed to persist session")
			runErr = errors.Join(runErr, WithErrorCode(fmt.Errorf("persist session: %w", err), errorCodeStorageFailure))
		} else {
			s.emit("persist", meta.ProbeID, meta.Target, "completed", "")
		}
	}
	return result, runErr
}

func (s *Service) emit(phase, probeID, target, status, msg string) {
	if s.progressSink == nil {
		return
	}
	s.progressSink.OnEvent(ProgressEvent{
		Phase:     phase,
		ProbeID:   probeID,
		Target:    target,
		Status:    status,
		Message:   msg,
		Timestamp: time.Now(),
	})
}
