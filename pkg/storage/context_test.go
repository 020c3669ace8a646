package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackendContext(t *testing.T) {
	_, ok := BackendFromContext(context.Background())
	require.False(t, ok)

	backend, err := NewLocalBackend(context.Background(), &Config{WorkspaceRoot: t.TempDir()})
	require.NoError(t, err)

	ctx := WithBackend(context.Background(), backend)
	got, ok := BackendFromContext(ctx)
	require.True(t, ok)
	require.Same(t, backend, got)
}
