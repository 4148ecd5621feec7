package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/collection"
	"github.com/conduit-lang/metabridge/internal/config"
	"github.com/conduit-lang/metabridge/internal/events"
	"github.com/conduit-lang/metabridge/internal/native"
	"github.com/conduit-lang/metabridge/internal/native/memstore"
	"github.com/conduit-lang/metabridge/internal/native/sqlstore"
	"github.com/conduit-lang/metabridge/internal/ratelimit"
	"github.com/conduit-lang/metabridge/internal/registry"
)

type closer func() error

func openStore(ctx context.Context, cfg config.StoreConfig) (native.Store, closer, error) {
	if cfg.Driver == "memory" {
		return memstore.New(), func() error { return nil }, nil
	}
	store, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func openRegistry(cfg config.RegistryConfig) (registry.Registry, closer, error) {
	if cfg.RedisAddr == "" {
		return registry.NewMemory(), func() error { return nil }, nil
	}
	reg, err := registry.NewRedis(registry.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.Prefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to type registry at %s: %w", cfg.RedisAddr, err)
	}
	return reg, reg.Close, nil
}

// openCollection builds the metadata collection described by cfg. The returned
// func releases the store and registry connections.
func openCollection(ctx context.Context, cfg *config.Config, publisher events.Publisher, logger *zap.Logger) (*collection.MetadataCollection, func(), error) {
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	reg, closeRegistry, err := openRegistry(cfg.Registry)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	release := func() {
		for _, c := range []closer{closeRegistry, closeStore} {
			if err := c(); err != nil {
				logger.Warn("failed to close connection", zap.Error(err))
			}
		}
	}

	mc := collection.New(store, reg, publisher, collection.Config{
		CollectionID:   cfg.Repository.MetadataCollectionID,
		CollectionName: cfg.Repository.MetadataCollectionName,
		DeleteMode:     cfg.DeleteMode(),
	}, logger)
	return mc, release, nil
}

// openLimiter returns nil when rate limiting is off. With a shared registry the
// counters live in the same Redis so every adapter process enforces one limit.
func openLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, closer, error) {
	if cfg.Server.RateLimit == 0 {
		return nil, func() error { return nil }, nil
	}
	if cfg.Registry.RedisAddr == "" {
		m, err := ratelimit.NewMemory(cfg.Server.RateLimit, time.Minute)
		if err != nil {
			return nil, nil, err
		}
		go m.Run(ctx, 5*time.Minute)
		return m, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Registry.RedisAddr,
		Password: cfg.Registry.RedisPassword,
		DB:       cfg.Registry.RedisDB,
	})
	r, err := ratelimit.NewRedis(client, cfg.Server.RateLimit, time.Minute, cfg.Registry.Prefix+"ratelimit:")
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return r, client.Close, nil
}
