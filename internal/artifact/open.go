package artifact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backends accepted by Open.
var Backends = []string{"memory", "disk", "s3", "postgres", "redis"}

type Config struct {
	Backend     string        `yaml:"backend"`
	Dir         string        `yaml:"dir"`
	S3          S3Config      `yaml:"s3"`
	DatabaseURL string        `yaml:"database_url"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`
	// Cache fronts remote backends with an in-process LRU.
	Cache bool `yaml:"cache"`
}

// Open builds the configured backend. The returned close func releases its
// connections and is never nil.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }
	var (
		st      Store
		closeFn = noop
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "", "disk":
		ds, err := NewDiskStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return ds, noop, nil
	case "s3":
		s3, err := NewS3Store(cfg.S3)
		if err != nil {
			return nil, noop, err
		}
		st = s3
	case "postgres":
		pg, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		st, closeFn = pg, pg.Close
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		st, closeFn = NewRedisStore(client, cfg.RedisTTL), client.Close
	default:
		return nil, noop, fmt.Errorf("unknown artifact backend %q (have %s)", cfg.Backend, strings.Join(Backends, ", "))
	}
	if cfg.Cache {
		st = NewCachedStore(st, DefaultCacheConfig())
	}
	return st, closeFn, nil
}
