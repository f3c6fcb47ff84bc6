package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Redis struct {
	cl     redis.UniversalClient
	prefix string
}

var _ Store = (*Redis)(nil)

func NewRedis(cl redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		cl:     cl,
		prefix: prefix,
	}
}

func (s *Redis) Get(ctx context.Context, key string, v any) (bool, error) {
	b, err := s.cl.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "failed to get key %v", key)
	}
	if err := decode(b, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	if err := s.cl.Set(ctx, s.prefix+key, b, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set key %v", key)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.cl.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete key %v", key)
	}
	return nil
}

// Purge is a no-op, redis expires keys by itself.
func (s *Redis) Purge(_ context.Context) (int, error) {
	return 0, nil
}

// Close leaves the shared client open, it belongs to the caller.
func (s *Redis) Close() error {
	return nil
}
