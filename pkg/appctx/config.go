// Package appctx carries process-wide collaborators of a CLI invocation on
// its context.
package appctx

import (
	"context"

	"github.com/vulntor/netscout/pkg/config"
	"github.com/vulntor/netscout/pkg/scanexec"
)

type key string

const (
	configKey  key = "netscout.config.manager"
	serviceKey key = "netscout.scanexec.service"
)

// WithConfig stores the shared config manager on context.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the shared config manager from context.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// Settings returns the loaded configuration, or the defaults when no
// manager is attached.
func Settings(ctx context.Context) config.Config {
	if mgr, ok := Config(ctx); ok {
		return mgr.Get()
	}
	return config.DefaultConfig()
}

// WithService stores the session service on context.
func WithService(ctx context.Context, svc *scanexec.Service) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, serviceKey, svc)
}

// Service retrieves the session service from context.
func Service(ctx context.Context) (*scanexec.Service, bool) {
	if ctx == nil {
		return nil, false
	}
	svc, ok := ctx.Value(serviceKey).(*scanexec.Service)
	return svc, ok && svc != nil
}
