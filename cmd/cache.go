package main

import (
	"context"
	"fmt"

	"github.com/crmbridge/target-salesforce/internal/cache"
	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheInit creates the cache database and its schema.
func (r *Runner) CacheInit(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if config.CachePath == "" {
		return fmt.Errorf("%w: cache_path not set", shared.ErrMissingConfig)
	}

	c, err := cache.Open(config.CachePath)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer c.Close()

	r.logger.Infof("cache initialized at %s", config.CachePath)
	return r.writePlain("✓ Cache ready: %s\n", config.CachePath)
}

// CacheStats prints lookup and journal counts.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if config.CachePath == "" {
		return fmt.Errorf("%w: cache_path not set", shared.ErrMissingConfig)
	}

	c, err := cache.Open(config.CachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	stats, err := c.Stats()
	if err != nil {
		return err
	}

	return r.writeJSON(stats, true)
}
