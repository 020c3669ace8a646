package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/netscout/pkg/fingerprint"
)

// Backend bundles the reference corpus and session history.
type Backend interface {
	// Initialize prepares the workspace and loads the corpus.
	Initialize(ctx context.Context) error

	// Close releases resources. Further calls fail with ErrClosed.
	Close() error

	// Corpus returns the reference corpus used by the fingerprint resolver.
	Corpus() fingerprint.Corpus

	// History returns the session history store.
	History() HistoryStore
}

// LocalBackend is the file-based Backend.
type LocalBackend struct {
	cfg     *Config
	history *LocalHistory

	mu     sync.RWMutex
	corpus *MemoryCorpus
	closed bool
}

// NewLocalBackend creates a file-based backend. Call Initialize before use.
func NewLocalBackend(_ context.Context, cfg *Config) (Backend, error) {
	if cfg == nil {
		return nil, NewInvalidInputError("", "config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LocalBackend{
		cfg:     cfg,
		history: NewLocalHistory(cfg.WorkspaceRoot),
	}, nil
}

func (b *LocalBackend) Initialize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(b.history.Dir(), 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", b.cfg.WorkspaceRoot, err)
	}

	var (
		corpus *MemoryCorpus
		err    error
		source = "embedded"
	)
	if b.cfg.CorpusPath != "" {
		corpus, err = LoadCorpusFile(b.cfg.CorpusPath)
		source = b.cfg.CorpusPath
	} else {
		corpus, err = EmbeddedCorpus()
	}
	if err != nil {
		return fmt.Errorf("load reference corpus: %w", err)
	}
	b.corpus = corpus

	log.Debug().
		Str("component", "storage").
		Str("workspace", b.cfg.WorkspaceRoot).
		Str("corpus", source).
		Str("corpus_version", corpus.Version()).
		Int("os_fingerprints", corpus.Size()).
		Msg("storage initialized")
	return nil
}

func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.closed = true
	return nil
}

// Corpus returns the loaded corpus, or a corpus that reports ErrClosed when
// the backend is closed or not initialized.
func (b *LocalBackend) Corpus() fingerprint.Corpus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || b.corpus == nil {
		return unavailableCorpus{}
	}
	return b.corpus
}

func (b *LocalBackend) History() HistoryStore {
	return b.history
}

// unavailableCorpus fails every lookup.
type unavailableCorpus struct{}

func (unavailableCorpus) LookupOSByTTL(context.Context, uint8) (fingerprint.OSTTL, bool, error) {
	return fingerprint.OSTTL{}, false, ErrClosed
}

func (unavailableCorpus) LookupOSFingerprint(context.Context, uint16, string) ([]fingerprint.OSFingerprint, error) {
	return nil, ErrClosed
}

func (unavailableCorpus) LookupOSFingerprintApprox(context.Context, uint16, string) ([]fingerprint.OSFingerprint, error) {
	return nil, ErrClosed
}

func (unavailableCorpus) LookupService(context.Context, uint16) (fingerprint.Service, bool, error) {
	return fingerprint.Service{}, false, ErrClosed
}

func (unavailableCorpus) DefaultServicePorts(context.Context) ([]uint16, error) {
	return nil, ErrClosed
}

func (unavailableCorpus) WellKnownServicePorts(context.Context) ([]uint16, error) {
	return nil, ErrClosed
}
