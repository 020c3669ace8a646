package storage

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/vulntor/netscout/pkg/fingerprint"
)

//go:embed reference/corpus.yaml
var embeddedCorpus []byte

// CorpusVersionConstraint is the range of corpus schema versions this build reads.
const CorpusVersionConstraint = ">=1.0.0, <2.0.0"

// corpusFile is the on-disk layout of a reference corpus.
type corpusFile struct {
	Version        string                      `yaml:"version"`
	OSTTL          []fingerprint.OSTTL         `yaml:"os_ttl"`
	OSFingerprints []fingerprint.OSFingerprint `yaml:"os_fingerprints"`
	TCPServices    []fingerprint.Service       `yaml:"tcp_services"`
}

// MemoryCorpus is a fingerprint.Corpus held fully in memory. It is immutable
// after load and safe for concurrent use.
type MemoryCorpus struct {
	version      *semver.Version
	ttl          map[uint8]fingerprint.OSTTL
	fingerprints []fingerprint.OSFingerprint
	services     map[uint16]fingerprint.Service
	defaults     []uint16
	wellKnown    []uint16
}

var (
	embeddedOnce sync.Once
	embeddedMem  *MemoryCorpus
	embeddedErr  error
)

// EmbeddedCorpus returns the corpus compiled into the binary. It is parsed
// once per process.
func EmbeddedCorpus() (*MemoryCorpus, error) {
	embeddedOnce.Do(func() {
		embeddedMem, embeddedErr = ParseCorpus(embeddedCorpus)
	})
	return embeddedMem, embeddedErr
}

// LoadCorpusFile reads a corpus override from path.
func LoadCorpusFile(path string) (*MemoryCorpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError("corpus", path)
		}
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	c, err := ParseCorpus(data)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return c, nil
}

// ParseCorpus decodes and indexes a YAML corpus after checking its schema version.
func ParseCorpus(data []byte) (*MemoryCorpus, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	v, err := semver.NewVersion(f.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorpusVersion, f.Version, err)
	}
	constraint, err := semver.NewConstraint(CorpusVersionConstraint)
	if err != nil {
		return nil, err
	}
	if !constraint.Check(v) {
		return nil, fmt.Errorf("%w: %s does not satisfy %s", ErrCorpusVersion, v, CorpusVersionConstraint)
	}

	c := &MemoryCorpus{
		version:      v,
		ttl:          make(map[uint8]fingerprint.OSTTL, len(f.OSTTL)),
		fingerprints: f.OSFingerprints,
		services:     make(map[uint16]fingerprint.Service, len(f.TCPServices)),
	}
	for _, e := range f.OSTTL {
		if _, dup := c.ttl[e.InitialTTL]; dup {
			return nil, NewInvalidInputError("os_ttl", fmt.Sprintf("duplicate initial_ttl %d", e.InitialTTL))
		}
		c.ttl[e.InitialTTL] = e
	}
	for _, s := range f.TCPServices {
		if s.Port == 0 {
			return nil, NewInvalidInputError("tcp_services", "port 0 is not a service port")
		}
		c.services[s.Port] = s
		if s.Default {
			c.defaults = append(c.defaults, s.Port)
		}
		if s.WellKnown {
			c.wellKnown = append(c.wellKnown, s.Port)
		}
	}
	slices.Sort(c.defaults)
	slices.Sort(c.wellKnown)
	c.defaults = slices.Compact(c.defaults)
	c.wellKnown = slices.Compact(c.wellKnown)

	return c, nil
}

// Version returns the corpus schema version.
func (c *MemoryCorpus) Version() string {
	return c.version.String()
}

// Size returns the number of OS fingerprint rows.
func (c *MemoryCorpus) Size() int {
	return len(c.fingerprints)
}

func (c *MemoryCorpus) LookupOSByTTL(_ context.Context, ttl uint8) (fingerprint.OSTTL, bool, error) {
	e, ok := c.ttl[ttl]
	return e, ok, nil
}

func (c *MemoryCorpus) LookupOSFingerprint(_ context.Context, window uint16, pattern string) ([]fingerprint.OSFingerprint, error) {
	var out []fingerprint.OSFingerprint
	for _, fp := range c.fingerprints {
		if fp.WindowSize == window && fp.OptionPattern == pattern {
			out = append(out, fp)
		}
	}
	return out, nil
}

func (c *MemoryCorpus) LookupOSFingerprintApprox(_ context.Context, window uint16, pattern string) ([]fingerprint.OSFingerprint, error) {
	var out []fingerprint.OSFingerprint
	for _, fp := range c.fingerprints {
		if fingerprint.MatchesApprox(fp, window, pattern) {
			out = append(out, fp)
		}
	}
	fingerprint.SortByGeneration(out)
	return out, nil
}

func (c *MemoryCorpus) LookupService(_ context.Context, port uint16) (fingerprint.Service, bool, error) {
	s, ok := c.services[port]
	return s, ok, nil
}

func (c *MemoryCorpus) DefaultServicePorts(context.Context) ([]uint16, error) {
	return slices.Clone(c.defaults), nil
}

func (c *MemoryCorpus) WellKnownServicePorts(context.Context) ([]uint16, error) {
	return slices.Clone(c.wellKnown), nil
}

var _ fingerprint.Corpus = (*MemoryCorpus)(nil)
