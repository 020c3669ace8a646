package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vulntor/netscout/pkg/probe"
)

const (
	sessionsDir   = "sessions"
	lockFileName  = ".lock"
	sessionSuffix = ".json"

	// DefaultListLimit caps a history page when the filter sets no limit.
	DefaultListLimit = 50
	maxListLimit     = 1000
)

var probeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// HistoryStore persists finished sessions.
type HistoryStore interface {
	// Persist writes result keyed by its probe_id. Persisting the same
	// probe_id again replaces the record.
	Persist(ctx context.Context, result probe.Result) error

	// Get loads one session result.
	Get(ctx context.Context, probeID string) (probe.Result, error)

	// List returns session headers newest first.
	List(ctx context.Context, filter ListFilter) (*ListPage, error)

	// Stats counts stored sessions per command type.
	Stats(ctx context.Context) (map[probe.CommandType]int, error)

	// Targets returns the distinct probed targets, sorted.
	Targets(ctx context.Context) ([]string, error)

	// Follow streams headers of sessions persisted after the call until ctx
	// is done.
	Follow(ctx context.Context, filter ListFilter) (<-chan probe.Session, error)
}

// ListFilter narrows a history listing.
type ListFilter struct {
	Target string
	Types  []probe.CommandType
	Since  time.Time
	Until  time.Time
	Limit  int
	Cursor string
}

func (f ListFilter) matches(s probe.Session) bool {
	if f.Target != "" && !strings.EqualFold(s.Target, f.Target) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, s.CommandType) {
		return false
	}
	if !f.Since.IsZero() && s.IssuedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && s.IssuedAt.After(f.Until) {
		return false
	}
	return true
}

// ListPage is one page of history.
type ListPage struct {
	Sessions   []probe.Session `json:"sessions"`
	NextCursor string          `json:"next_cursor,omitempty"`
	Total      int             `json:"total"`
}

// LocalHistory stores one JSON document per session under
// <workspace>/sessions. Writers serialize through a file lock so that
// concurrent netscout processes never interleave a record.
type LocalHistory struct {
	dir    string
	lock   *flock.Flock
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewLocalHistory returns a history store rooted at workspaceRoot. The
// sessions directory is created lazily on first write.
func NewLocalHistory(workspaceRoot string) *LocalHistory {
	dir := filepath.Join(workspaceRoot, sessionsDir)
	return &LocalHistory{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockFileName)),
		logger: log.With().Str("component", "history").Logger(),
	}
}

// Dir returns the sessions directory.
func (h *LocalHistory) Dir() string {
	return h.dir
}

func (h *LocalHistory) path(probeID string) (string, error) {
	if !probeIDPattern.MatchString(probeID) {
		return "", NewInvalidInputError("probe_id", fmt.Sprintf("malformed probe id %q", probeID))
	}
	return filepath.Join(h.dir, probeID+sessionSuffix), nil
}

func (h *LocalHistory) Persist(ctx context.Context, result probe.Result) error {
	if result == nil {
		return NewInvalidInputError("result", "nil result")
	}
	meta := result.Meta()
	path, err := h.path(meta.ProbeID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", meta.ProbeID, err)
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	locked, err := h.lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history: %w", ctx.Err())
	}
	defer func() {
		if err := h.lock.Unlock(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to release history lock")
		}
	}()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", meta.ProbeID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit session %s: %w", meta.ProbeID, err)
	}

	h.logger.Debug().
		Str("probe_id", meta.ProbeID).
		Str("command", string(meta.CommandType)).
		Msg("session persisted")
	return nil
}

func (h *LocalHistory) Get(_ context.Context, probeID string) (probe.Result, error) {
	path, err := h.path(probeID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError("session", probeID)
		}
		return nil, fmt.Errorf("read session %s: %w", probeID, err)
	}
	return probe.DecodeResult(data)
}

// headers loads every stored session header. Unreadable files are skipped
// with a warning.
func (h *LocalHistory) headers(ctx context.Context) ([]probe.Session, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sessionSuffix) {
			continue
		}
		names = append(names, e.Name())
	}

	out := make([]*probe.Session, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := readHeader(filepath.Join(h.dir, name))
			if err != nil {
				h.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable session")
				return nil
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sessions := make([]probe.Session, 0, len(out))
	for _, s := range out {
		if s != nil {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func readHeader(path string) (*probe.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s probe.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if s.ProbeID == "" {
		return nil, fmt.Errorf("decode %s: missing probe_id", filepath.Base(path))
	}
	return &s, nil
}

func (h *LocalHistory) List(ctx context.Context, filter ListFilter) (*ListPage, error) {
	cursor, err := DecodeCursor(filter.Cursor)
	if err != nil {
		return nil, NewInvalidInputError("cursor", err.Error())
	}
	limit := filter.Limit
	switch {
	case limit < 0:
		return nil, NewInvalidInputError("limit", "must not be negative")
	case limit == 0:
		limit = DefaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	all, err := h.headers(ctx)
	if err != nil {
		return nil, err
	}

	matched := all[:0]
	for _, s := range all {
		if filter.matches(s) {
			matched = append(matched, s)
		}
	}
	slices.SortFunc(matched, func(a, b probe.Session) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ProbeID, a.ProbeID)
	})

	page := &ListPage{Total: len(matched)}
	start := 0
	if cursor != nil {
		start = len(matched)
		for i, s := range matched {
			if cursor.after(s.IssuedAt.UnixNano(), s.ProbeID) {
				start = i
				break
			}
		}
	}
	end := min(start+limit, len(matched))
	page.Sessions = slices.Clone(matched[start:end])
	if end < len(matched) && len(page.Sessions) > 0 {
		last := page.Sessions[len(page.Sessions)-1]
		page.NextCursor = EncodeCursor(&Cursor{LastProbeID: last.ProbeID, LastTime: last.IssuedAt.UnixNano()})
	}
	return page, nil
}

func (h *LocalHistory) Stats(ctx context.Context) (map[probe.CommandType]int, error) {
	all, err := h.headers(ctx)
	if err != nil {
		return nil, err
	}
	stats := make(map[probe.CommandType]int)
	for _, s := range all {
		stats[s.CommandType]++
	}
	return stats, nil
}

func (h *LocalHistory) Targets(ctx context.Context) ([]string, error) {
	all, err := h.headers(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(all))
	targets := make([]string, 0, len(all))
	for _, s := range all {
		if s.Target == "" {
			continue
		}
		if _, ok := seen[s.Target]; ok {
			continue
		}
		seen[s.Target] = struct{}{}
		targets = append(targets, s.Target)
	}
	slices.Sort(targets)
	return targets, nil
}

func (h *LocalHistory) Follow(ctx context.Context, filter ListFilter) (<-chan probe.Session, error) {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(h.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", h.dir, err)
	}

	out := make(chan probe.Session)
	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if !strings.HasSuffix(ev.Name, sessionSuffix) {
					continue
				}
				s, err := readHeader(ev.Name)
				if err != nil {
					// Partially written files are retried on the next event.
					continue
				}
				if !filter.matches(*s) {
					continue
				}
				select {
				case out <- *s:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.Warn().Err(err).Msg("history watcher error")
			}
		}
	}()
	return out, nil
}

var _ HistoryStore = (*LocalHistory)(nil)
