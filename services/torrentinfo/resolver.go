package torrentinfo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"github.com/webtor-io/stremio-resolver/services/common"
)

const (
	InfoTTL      = 14 * 24 * time.Hour
	StoreHorizon = 14 * 24 * time.Hour
)

var (
	ErrInvalidLink  = errors.New("invalid link")
	ErrInfosExpired = errors.New("torrent infos cache expired")
)

type Resolver struct {
	cl    *http.Client
	store *Store
	cache cache.Cache
}

func StoreDir(c *cli.Context) string {
	return filepath.Join(c.String(common.DataFolderFlag), "torrents")
}

func New(c *cli.Context, cl *http.Client, ch cache.Cache) (*Resolver, *Store, error) {
	st, err := NewStore(afero.NewOsFs(), StoreDir(c))
	if err != nil {
		return nil, nil, err
	}
	return NewResolver(cl, st, ch), st, nil
}

func NewResolver(cl *http.Client, st *Store, ch cache.Cache) *Resolver {
	dl := *cl
	dl.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Resolver{
		cl:    &dl,
		store: st,
		cache: ch,
	}
}

func infoKey(id string) string {
	return "torrentInfos:" + id
}

// GetByID loads previously resolved infos. It fails with ErrInfosExpired
// once the cache entry is gone and the candidate must be searched again.
func (s *Resolver) GetByID(ctx context.Context, id string) (*models.TorrentInfo, error) {
	var ti models.TorrentInfo
	ok, err := s.cache.Get(ctx, infoKey(id), &ti)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrInfosExpired, "id %v", id)
	}
	return &ti, nil
}

// Get resolves infos for a search candidate and caches them by candidate id.
func (s *Resolver) Get(ctx context.Context, c *models.Candidate) (*models.TorrentInfo, error) {
	if ti, err := s.GetByID(ctx, c.ID); err == nil {
		return ti, nil
	}
	link := c.Link
	var ti *models.TorrentInfo
	if strings.HasPrefix(link, "http") {
		b, redirect, err := s.download(ctx, link)
		if err != nil {
			return nil, err
		}
		if redirect != "" {
			link = redirect
		} else {
			ti, err = parseTorrent(b)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidLink, "%v: %v", common.RedactURL(link), err)
			}
			ti.TorrentLocation, err = s.store.Write(c.ID, b)
			if err != nil {
				log.WithError(err).WithField("id", c.ID).Warn("failed to store torrent file")
			}
		}
	}
	if strings.HasPrefix(link, "magnet:") {
		var err error
		ti, err = parseMagnet(link)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidLink, "%v", err)
		}
	}
	if ti == nil {
		return nil, errors.Wrapf(ErrInvalidLink, "%v", common.RedactURL(link))
	}
	ti.ID = c.ID
	ti.Link = link
	if err := s.cache.Set(ctx, infoKey(c.ID), ti, InfoTTL); err != nil {
		log.WithError(err).WithField("id", c.ID).Warn("failed to cache torrent infos")
	}
	log.WithFields(log.Fields{
		"id":        ti.ID,
		"info_hash": ti.InfoHash,
		"private":   ti.Private,
		"files":     len(ti.Files),
	}).Debug("torrent infos resolved")
	return ti, nil
}

// TorrentFile returns raw torrent bytes from the store, downloading them again if needed.
func (s *Resolver) TorrentFile(ctx context.Context, ti *models.TorrentInfo) ([]byte, error) {
	if ti.TorrentLocation != "" {
		b, err := s.store.Read(ti.TorrentLocation)
		if err == nil {
			return b, nil
		}
		log.WithError(err).WithField("id", ti.ID).Debug("torrent file is gone, downloading again")
	}
	if !strings.HasPrefix(ti.Link, "http") {
		return nil, errors.Wrapf(ErrInvalidLink, "no torrent file for %v", ti.ID)
	}
	b, redirect, err := s.download(ctx, ti.Link)
	if err != nil {
		return nil, err
	}
	if redirect != "" {
		return nil, errors.Wrapf(ErrInvalidLink, "torrent file link redirects to magnet")
	}
	if _, err := s.store.Write(ti.ID, b); err != nil {
		log.WithError(err).WithField("id", ti.ID).Warn("failed to store torrent file")
	}
	return b, nil
}

// download fetches a torrent file. A redirect to a magnet uri is returned
// as redirect instead of being followed.
func (s *Resolver) download(ctx context.Context, link string) (b []byte, redirect string, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "create request")
	}
	resp, err := s.cl.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	if loc := resp.Header.Get("Location"); loc != "" {
		if strings.HasPrefix(loc, "magnet:") {
			return nil, loc, nil
		}
		return nil, "", errors.Errorf("redirection detected to %v", common.RedactURL(loc))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/x-bittorrent") {
		return nil, "", errors.Errorf("invalid content-type: %v", ct)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Errorf("invalid status: %v", resp.StatusCode)
	}
	b, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "read torrent file")
	}
	return b, "", nil
}

func parseTorrent(b []byte) (*models.TorrentInfo, error) {
	mi, err := metainfo.Load(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load metainfo")
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal info")
	}
	ti := &models.TorrentInfo{
		InfoHash: strings.ToLower(mi.HashInfoBytes().HexString()),
		Name:     info.BestName(),
		Private:  info.Private != nil && *info.Private,
		Size:     info.TotalLength(),
	}
	if ti.Size <= 0 {
		ti.Size = -1
	}
	for _, f := range info.UpvertedFiles() {
		ti.Files = append(ti.Files, models.TorrentFile{
			Name: path.Base(f.DisplayPath(&info)),
			Size: f.Length,
		})
	}
	if !ti.Private {
		ti.MagnetURL = mi.Magnet(nil, &info).String()
	}
	return ti, nil
}

func parseMagnet(link string) (*models.TorrentInfo, error) {
	m, err := metainfo.ParseMagnetUri(link)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse magnet")
	}
	return &models.TorrentInfo{
		MagnetURL: link,
		InfoHash:  strings.ToLower(m.InfoHash.HexString()),
		Name:      m.DisplayName,
		Size:      -1,
		Files:     []models.TorrentFile{},
	}, nil
}
