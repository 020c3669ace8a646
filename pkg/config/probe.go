package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ProbeConfigFromMap overlays raw probe settings on base. Values may be
// typed (flags, YAML numbers) or strings (environment).
func ProbeConfigFromMap(raw map[string]interface{}, base ProbeConfig) (ProbeConfig, error) {
	cfg := base
	var err error

	durations := map[string]*time.Duration{
		"timeout":         &cfg.Timeout,
		"wait_time":       &cfg.WaitTime,
		"rate":            &cfg.Rate,
		"overall_timeout": &cfg.OverallTimeout,
	}
	for key, dst := range durations {
		if v, ok := raw[key]; ok {
			if *dst, err = cast.ToDurationE(v); err != nil {
				return base, fmt.Errorf("probe.%s: %w", key, err)
			}
		}
	}

	ints := map[string]*int{
		"concurrency": &cfg.Concurrency,
		"max_hop":     &cfg.MaxHop,
		"count":       &cfg.Count,
	}
	for key, dst := range ints {
		if v, ok := raw[key]; ok {
			if *dst, err = cast.ToIntE(v); err != nil {
				return base, fmt.Errorf("probe.%s: %w", key, err)
			}
		}
	}

	if v, ok := raw["random"]; ok {
		if cfg.Random, err = cast.ToBoolE(v); err != nil {
			return base, fmt.Errorf("probe.random: %w", err)
		}
	}
	if v, ok := raw["interface"]; ok {
		cfg.Interface = cast.ToString(v)
	}
	if v, ok := raw["resolvers"]; ok {
		if s, isString := v.(string); isString {
			cfg.Resolvers = splitList(s)
		} else if cfg.Resolvers, err = cast.ToStringSliceE(v); err != nil {
			return base, fmt.Errorf("probe.resolvers: %w", err)
		}
	}

	if cfg.Timeout <= 0 {
		return base, fmt.Errorf("probe.timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.Concurrency < 0 || cfg.MaxHop < 0 || cfg.MaxHop > 255 || cfg.Count < 0 {
		return base, fmt.Errorf("probe settings out of range: concurrency=%d max_hop=%d count=%d", cfg.Concurrency, cfg.MaxHop, cfg.Count)
	}
	return cfg, nil
}

// splitList splits a comma separated environment value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
