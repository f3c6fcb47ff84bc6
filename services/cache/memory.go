package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Memory struct {
	c *gocache.Cache
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		c: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

func (s *Memory) Get(_ context.Context, key string, v any) (bool, error) {
	raw, ok := s.c.Get(key)
	if !ok {
		return false, nil
	}
	if err := decode(raw.([]byte), v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Memory) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	s.c.Set(key, b, ttl)
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *Memory) Purge(_ context.Context) (int, error) {
	before := s.c.ItemCount()
	s.c.DeleteExpired()
	return before - s.c.ItemCount(), nil
}

func (s *Memory) Close() error {
	return nil
}
