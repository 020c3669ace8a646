package fingerprint

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/netscout/pkg/probe"
)

// Techniques reported on candidates and OS guesses.
const (
	TechniqueExact       = "exact"
	TechniqueApproximate = "approximate"
	TechniqueTTL         = "ttl"
)

// Candidate is one ranked OS identity returned by ResolveOS.
type Candidate struct {
	OSFingerprint
	Confidence float64 `json:"confidence"`
	Technique  string  `json:"technique"`
}

// Guess converts the candidate into the form stored on result nodes.
func (c Candidate) Guess() *probe.OSGuess {
	return &probe.OSGuess{
		Family:     c.Family,
		Name:       c.Name,
		Vendor:     c.Vendor,
		Generation: c.Generation,
		CPE:        c.CPE,
		Confidence: c.Confidence,
		Technique:  c.Technique,
	}
}

// Resolver ranks OS and service identities over a Corpus. It has no side
// effects besides optional telemetry.
type Resolver struct {
	corpus    Corpus
	telemetry *TelemetryWriter
	logger    zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTelemetry records every resolution to w.
func WithTelemetry(w *TelemetryWriter) Option {
	return func(r *Resolver) { r.telemetry = w }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver backed by corpus.
func NewResolver(corpus Corpus, opts ...Option) *Resolver {
	r := &Resolver{
		corpus: corpus,
		logger: log.With().Str("component", "fingerprint").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveOS returns ranked OS candidates for a (window, pattern) pair.
//
// An exact corpus row always wins and is returned alone with confidence 1.
// Otherwise approximate rows are returned newest generation first. An empty
// slice means no candidate; it is not an error.
func (r *Resolver) ResolveOS(ctx context.Context, window uint16, pattern string) ([]Candidate, error) {
	exact, err := r.corpus.LookupOSFingerprint(ctx, window, pattern)
	if err != nil {
		return nil, WrapCorpusError(err)
	}
	if len(exact) > 0 {
		c := Candidate{OSFingerprint: exact[0], Confidence: 1.0, Technique: TechniqueExact}
		r.record(ResolutionEvent{Window: window, Options: pattern, MatchType: TechniqueExact, Candidates: 1, Top: c.Name})
		return []Candidate{c}, nil
	}

	rows, err := r.corpus.LookupOSFingerprintApprox(ctx, window, pattern)
	if err != nil {
		return nil, WrapCorpusError(err)
	}

	// Re-apply the band so it holds for any Corpus implementation.
	kept := make([]OSFingerprint, 0, len(rows))
	for _, row := range rows {
		if MatchesApprox(row, window, pattern) {
			kept = append(kept, row)
		}
	}
	SortByGeneration(kept)

	candidates := make([]Candidate, 0, len(kept))
	for _, row := range kept {
		candidates = append(candidates, Candidate{
			OSFingerprint: row,
			Confidence:    approxConfidence(row.WindowSize, window),
			Technique:     TechniqueApproximate,
		})
	}

	ev := ResolutionEvent{Window: window, Options: pattern, MatchType: TechniqueApproximate, Candidates: len(candidates)}
	if len(candidates) == 0 {
		ev.MatchType = "no_match"
	} else {
		ev.Top = candidates[0].Name
	}
	r.record(ev)

	r.logger.Debug().
		Uint16("window", window).
		Str("options", pattern).
		Int("candidates", len(candidates)).
		Msg("approximate OS resolution")

	return candidates, nil
}

// approxConfidence decays linearly from 0.9 at zero distance to 0.5 at the
// tolerance edge.
func approxConfidence(row, observed uint16) float64 {
	d := float64(windowDistance(row, observed))
	return 0.9 - 0.4*(d/WindowTolerance)
}

// ResolveOSByTTL returns the OS family registered for an initial TTL. The
// lookup is exact; callers holding a received TTL should pass it through
// probe.GuessInitialTTL first.
func (r *Resolver) ResolveOSByTTL(ctx context.Context, initialTTL uint8) (OSTTL, bool, error) {
	entry, ok, err := r.corpus.LookupOSByTTL(ctx, initialTTL)
	if err != nil {
		return OSTTL{}, false, WrapCorpusError(err)
	}
	ev := ResolutionEvent{TTL: initialTTL, MatchType: TechniqueTTL}
	if ok {
		ev.Candidates = 1
		ev.Top = entry.Family
	} else {
		ev.MatchType = "no_match"
	}
	r.record(ev)
	return entry, ok, nil
}

// ResolveService returns the service name for port, or UnknownService.
func (r *Resolver) ResolveService(ctx context.Context, port uint16) (string, error) {
	svc, ok, err := r.corpus.LookupService(ctx, port)
	if err != nil {
		return "", WrapCorpusError(err)
	}
	if !ok || svc.Name == "" {
		return UnknownService, nil
	}
	return svc.Name, nil
}

// Subset selects which service port list ServicePorts returns.
type Subset string

const (
	SubsetDefault   Subset = "default"
	SubsetWellKnown Subset = "wellknown"
)

// ServicePorts enumerates the ports of a service subset.
func (r *Resolver) ServicePorts(ctx context.Context, subset Subset) ([]uint16, error) {
	var (
		ports []uint16
		err   error
	)
	switch subset {
	case SubsetDefault:
		ports, err = r.corpus.DefaultServicePorts(ctx)
	case SubsetWellKnown:
		ports, err = r.corpus.WellKnownServicePorts(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown service subset %q", ErrInvalidQuery, subset)
	}
	if err != nil {
		return nil, WrapCorpusError(err)
	}
	return ports, nil
}

// GuessOS picks the best OS identity for a signal: the top TCP candidate when
// window and options were observed, the TTL family otherwise. It returns nil
// when nothing matches.
func (r *Resolver) GuessOS(ctx context.Context, sig probe.Signal) (*probe.OSGuess, error) {
	if sig.Options != "" {
		candidates, err := r.ResolveOS(ctx, sig.Window, sig.Options)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return candidates[0].Guess(), nil
		}
	}

	if sig.TTL == 0 {
		return nil, nil
	}
	entry, ok, err := r.ResolveOSByTTL(ctx, probe.GuessInitialTTL(sig.TTL))
	if err != nil || !ok {
		return nil, err
	}
	return &probe.OSGuess{
		Family:     entry.Family,
		Name:       entry.Description,
		Confidence: 0.3,
		Technique:  TechniqueTTL,
	}, nil
}

func (r *Resolver) record(ev ResolutionEvent) {
	if r.telemetry == nil {
		return
	}
	if err := r.telemetry.Write(ev); err != nil {
		r.logger.Warn().Err(err).Msg("failed to write fingerprint telemetry")
	}
}
