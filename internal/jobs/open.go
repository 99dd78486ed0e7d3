package jobs

import (
	"context"
	"fmt"
	"time"

	"studai/internal/config"
)

// Open builds the registry backend selected in configuration.
func Open(ctx context.Context, cfg *config.Config) (Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch cfg.Registry.Backend {
	case config.RegistryRedis:
		ttl := 2 * cfg.Retention()
		if ttl < time.Hour {
			ttl = time.Hour
		}
		return NewRedisRegistry(ctx, RedisOptions{
			Addr:     cfg.Registry.RedisAddr,
			Password: cfg.Registry.RedisPassword,
			DB:       cfg.Registry.RedisDB,
			Prefix:   cfg.Registry.KeyPrefix,
			TTL:      ttl,
		})
	case config.RegistryMemory, "":
		return NewMemoryRegistry(), nil
	default:
		return nil, fmt.Errorf("unsupported registry backend %q", cfg.Registry.Backend)
	}
}
