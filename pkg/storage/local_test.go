package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocalBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "valid config", cfg: &Config{WorkspaceRoot: t.TempDir()}},
		{name: "empty workspace", cfg: &Config{}, wantErr: true},
		{name: "nil config", cfg: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewLocalBackend(context.Background(), tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, backend)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, backend.History())
		})
	}
}

func TestLocalBackend_Initialize(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	backend, err := NewLocalBackend(ctx, &Config{WorkspaceRoot: root})
	require.NoError(t, err)

	// Before Initialize the corpus is unavailable.
	_, _, err = backend.Corpus().LookupOSByTTL(ctx, 64)
	require.ErrorIs(t, err, ErrClosed)

	require.NoError(t, backend.Initialize(ctx))

	info, err := os.Stat(filepath.Join(root, "sessions"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	e, ok, err := backend.Corpus().LookupOSByTTL(ctx, 64)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Linux", e.Family)
}

func TestLocalBackend_CorpusOverride(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"3.0.0\"\n"), 0o644))

	backend, err := NewLocalBackend(ctx, &Config{WorkspaceRoot: dir, CorpusPath: path})
	require.NoError(t, err)

	err = backend.Initialize(ctx)
	require.ErrorIs(t, err, ErrCorpusVersion)
}

func TestLocalBackend_Close(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(ctx, &Config{WorkspaceRoot: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(ctx))

	require.NoError(t, backend.Close())
	require.ErrorIs(t, backend.Close(), ErrClosed)
	require.ErrorIs(t, backend.Initialize(ctx), ErrClosed)

	_, err = backend.Corpus().DefaultServicePorts(ctx)
	require.ErrorIs(t, err, ErrClosed)
}
