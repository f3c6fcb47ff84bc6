package cache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/stremio-resolver/services/common"
)

const (
	cacheBackendFlag = "cache-backend"
	cachePrefixFlag  = "cache-prefix"
)

const (
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   cacheBackendFlag,
			Usage:  "cache backend (redis, bolt or memory)",
			Value:  BackendBolt,
			EnvVar: "CACHE_BACKEND",
		},
		cli.StringFlag{
			Name:   cachePrefixFlag,
			Usage:  "key prefix for shared cache backends",
			Value:  "resolver:",
			EnvVar: "CACHE_PREFIX",
		},
	)
}

// Cache is a key/value store with per-entry TTL. Values are JSON encoded.
type Cache interface {
	// Get decodes the entry into v and reports whether it was found.
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store is a Cache owned by the process.
type Store interface {
	Cache
	// Purge drops expired entries and returns how many were removed.
	Purge(ctx context.Context) (int, error)
	Close() error
}

// New builds the configured backend. rc is only used by the redis backend.
func New(c *cli.Context, rc *cs.RedisClient) (Store, error) {
	backend := c.String(cacheBackendFlag)
	log.WithField("backend", backend).Info("setting up cache")
	switch backend {
	case BackendRedis:
		if rc == nil {
			return nil, errors.New("redis client is not configured")
		}
		return NewRedis(rc.Get(), c.String(cachePrefixFlag)), nil
	case BackendBolt:
		return NewBolt(filepath.Join(c.String(common.DataFolderFlag), "cache.db"))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("unknown cache backend %v", backend)
	}
}

// Remember returns the cached value for key or computes and stores it.
// ttl receives the computed value so that empty results may expire sooner.
func Remember[T any](ctx context.Context, c Cache, key string, ttl func(T) time.Duration, f func() (T, error)) (T, error) {
	var v T
	ok, err := c.Get(ctx, key, &v)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to read cache")
	}
	if ok {
		log.WithField("key", key).Debug("cache hit")
		return v, nil
	}
	v, err = f()
	if err != nil {
		return v, err
	}
	if d := ttl(v); d > 0 {
		if err := c.Set(ctx, key, v, d); err != nil {
			log.WithError(err).WithField("key", key).Warn("failed to write cache")
		}
	}
	return v, nil
}

func Fixed[T any](d time.Duration) func(T) time.Duration {
	return func(T) time.Duration {
		return d
	}
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode cache value")
	}
	return b, nil
}

func decode(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrap(err, "failed to decode cache value")
	}
	return nil
}
