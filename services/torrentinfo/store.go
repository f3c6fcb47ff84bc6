package torrentinfo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const torrentExt = ".torrent"

// Store keeps raw torrent payloads on disk until they are swept.
type Store struct {
	fs  afero.Fs
	dir string
}

func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create torrent folder %v", dir)
	}
	return &Store{
		fs:  fs,
		dir: dir,
	}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+torrentExt)
}

// Write stores b under id and returns its location.
func (s *Store) Write(id string, b []byte) (string, error) {
	tmp := filepath.Join(s.dir, "."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(s.fs, tmp, b, 0644); err != nil {
		return "", errors.Wrap(err, "failed to write torrent file")
	}
	p := s.path(id)
	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return "", errors.Wrap(err, "failed to move torrent file")
	}
	return p, nil
}

func (s *Store) Read(location string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, location)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read torrent file %v", location)
	}
	return b, nil
}

// Sweep removes torrent files not modified within horizon.
func (s *Store) Sweep(horizon time.Duration) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list torrent folder")
	}
	expire := time.Now().Add(-horizon)
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), torrentExt) {
			continue
		}
		if !e.ModTime().Before(expire) {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("file", e.Name()).Warn("failed to remove torrent file")
			continue
		}
		n++
	}
	return n, nil
}
