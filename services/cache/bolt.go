package cache

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("cache")

// Bolt keeps entries in a single bucket. Each value is prefixed
// with its expiry as unix nanoseconds, zero meaning no expiry.
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
}

var _ Store = (*Bolt)(nil)

func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open cache database %v", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create cache bucket")
	}
	return &Bolt{
		db:  db,
		now: time.Now,
	}, nil
}

func (s *Bolt) expired(raw []byte) bool {
	if len(raw) < 8 {
		return true
	}
	exp := int64(binary.BigEndian.Uint64(raw[:8]))
	return exp != 0 && exp <= s.now().UnixNano()
}

func (s *Bolt) Get(_ context.Context, key string, v any) (bool, error) {
	var b []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil || s.expired(raw) {
			return nil
		}
		b = make([]byte, len(raw)-8)
		copy(b, raw[8:])
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to get key %v", key)
	}
	if b == nil {
		return false, nil
	}
	if err := decode(b, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Bolt) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	var exp int64
	if ttl > 0 {
		exp = s.now().Add(ttl).UnixNano()
	}
	raw := make([]byte, 8+len(b))
	binary.BigEndian.PutUint64(raw[:8], uint64(exp))
	copy(raw[8:], b)
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to set key %v", key)
	}
	return nil
}

func (s *Bolt) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return errors.Wrapf(err, "failed to delete key %v", key)
	}
	return nil
}

func (s *Bolt) Purge(ctx context.Context) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.expired(v) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge cache")
	}
	return n, nil
}

func (s *Bolt) Close() error {
	return s.db.Close()
}
