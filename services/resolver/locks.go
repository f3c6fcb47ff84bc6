package resolver

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// locks allows at most one unit of work per key. Waiters are woken when
// the holder releases and then compete for the key again.
type locks struct {
	name string
	mu   sync.Mutex
	m    map[string]chan struct{}
}

func newLocks(name string) *locks {
	return &locks{
		name: name,
		m:    map[string]chan struct{}{},
	}
}

func (l *locks) acquire(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		ch, ok := l.m[key]
		if !ok {
			ch = make(chan struct{})
			l.m[key] = ch
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.m, key)
				l.mu.Unlock()
				close(ch)
			}, nil
		}
		l.mu.Unlock()
		log.WithFields(log.Fields{
			"lock": l.name,
			"key":  key,
		}).Debug("waiting for lock")
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *locks) held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.m[key]
	return ok
}
