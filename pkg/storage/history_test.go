package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/netscout/pkg/probe"
)

func pingResult(id, target string, issued time.Time) *probe.PingResult {
	s := probe.NewSession(probe.CommandPing, probe.ScanICMPPing, probe.ProtocolICMP, target)
	s.ProbeID = id
	s.IssuedAt = issued
	s.StartTime = issued
	s.ProbeStatus = probe.StatusDone
	return &probe.PingResult{Session: s, Stat: probe.PingStat{Transmitted: 4, Received: 4}}
}

func portResult(id, target string, issued time.Time) *probe.PortScanResult {
	s := probe.NewSession(probe.CommandPortScan, probe.ScanTCPSyn, probe.ProtocolTCP, target)
	s.ProbeID = id
	s.IssuedAt = issued
	return &probe.PortScanResult{Session: s}
}

func TestLocalHistory_PersistGet(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHistory(t.TempDir())
	now := time.Now()

	res := pingResult("p1", "192.0.2.1", now)
	require.NoError(t, h.Persist(ctx, res))

	got, err := h.Get(ctx, "p1")
	require.NoError(t, err)
	ping, ok := got.(*probe.PingResult)
	require.True(t, ok)
	assert.Equal(t, 4, ping.Stat.Received)
	assert.Equal(t, probe.StatusDone, ping.ProbeStatus)

	_, err = h.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	_, err = h.Get(ctx, "../etc/passwd")
	assert.True(t, IsInvalidInput(err))
}

func TestLocalHistory_PersistIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHistory(t.TempDir())
	now := time.Now()

	res := pingResult("same", "192.0.2.1", now)
	require.NoError(t, h.Persist(ctx, res))
	res.Stat.Received = 2
	require.NoError(t, h.Persist(ctx, res))

	page, err := h.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 1)

	got, err := h.Get(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, 2, got.(*probe.PingResult).Stat.Received)

	entries, err := os.ReadDir(h.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()))
	}
}

func TestLocalHistory_ConcurrentPersist(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHistory(t.TempDir())
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, h.Persist(ctx, pingResult(fmt.Sprintf("c%d", i), "192.0.2.1", now)))
		}(i)
	}
	wg.Wait()

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats[probe.CommandPing])
}

func TestLocalHistory_ListFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHistory(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Persist(ctx, pingResult(fmt.Sprintf("ping%d", i), "192.0.2.1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, h.Persist(ctx, portResult("port0", "example.com", base.Add(10*time.Minute))))

	page, err := h.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 6)
	assert.Equal(t, "port0", page.Sessions[0].ProbeID, "newest first")
	assert.Empty(t, page.NextCursor)

	page, err = h.List(ctx, ListFilter{Types: []probe.CommandType{probe.CommandPing}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, "ping4", page.Sessions[0].ProbeID)
	assert.Equal(t, "ping3", page.Sessions[1].ProbeID)
	require.NotEmpty(t, page.NextCursor)

	var ids []string
	cursor := page.NextCursor
	for cursor != "" {
		next, err := h.List(ctx, ListFilter{Types: []probe.CommandType{probe.CommandPing}, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, s := range next.Sessions {
			ids = append(ids, s.ProbeID)
		}
		cursor = next.NextCursor
	}
	assert.Equal(t, []string{"ping2", "ping1", "ping0"}, ids)

	page, err = h.List(ctx, ListFilter{Target: "EXAMPLE.com"})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 1)

	page, err = h.List(ctx, ListFilter{Since: base.Add(90 * time.Second), Until: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 2)

	_, err = h.List(ctx, ListFilter{Cursor: "!!"})
	assert.True(t, IsInvalidInput(err))
	_, err = h.List(ctx, ListFilter{Limit: -1})
	assert.True(t, IsInvalidInput(err))
}

func TestLocalHistory_EmptyWorkspace(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHistory(filepath.Join(t.TempDir(), "never-created"))

	page, err := h.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Sessions)

	targets, err := h.Targets(ctx)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestLocalHistory_StatsTargetsSkipCorrupt(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHistory(t.TempDir())
	now := time.Now()

	require.NoError(t, h.Persist(ctx, pingResult("a", "192.0.2.2", now)))
	require.NoError(t, h.Persist(ctx, pingResult("b", "192.0.2.1", now)))
	require.NoError(t, h.Persist(ctx, portResult("c", "192.0.2.1", now)))
	require.NoError(t, os.WriteFile(filepath.Join(h.Dir(), "junk.json"), []byte("{"), 0o644))

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[probe.CommandType]int{probe.CommandPing: 2, probe.CommandPortScan: 1}, stats)

	targets, err := h.Targets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, targets)
}

func TestLocalHistory_Follow(t *testing.T) {
	h := NewLocalHistory(t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := h.Follow(ctx, ListFilter{Types: []probe.CommandType{probe.CommandPing}})
	require.NoError(t, err)

	require.NoError(t, h.Persist(ctx, portResult("skip", "192.0.2.1", time.Now())))
	require.NoError(t, h.Persist(ctx, pingResult("seen", "192.0.2.1", time.Now())))

	select {
	case s := <-ch:
		assert.Equal(t, "seen", s.ProbeID)
	case <-ctx.Done():
		t.Fatal("no session followed")
	}

	cancel()
	for range ch {
	}
}
