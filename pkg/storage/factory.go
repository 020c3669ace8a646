package storage

import (
	"context"
	"fmt"
)

// Factory is a function that creates a Backend instance.
type Factory func(ctx context.Context, cfg *Config) (Backend, error)

// DefaultFactory is the backend factory used by NewBackend. Tests and
// alternative builds may replace it.
var DefaultFactory Factory = NewLocalBackend

// NewBackend validates cfg and creates a backend with DefaultFactory.
//
// Example:
//
//	cfg, _ := storage.DefaultConfig()
//	backend, err := storage.NewBackend(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
func NewBackend(ctx context.Context, cfg *Config) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", NewInvalidInputError("", "config is nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	if DefaultFactory == nil {
		return nil, fmt.Errorf("no storage backend factory registered")
	}

	backend, err := DefaultFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	return backend, nil
}
