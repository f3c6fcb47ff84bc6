package providers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/debrid"
	"github.com/webtor-io/stremio-resolver/services/torbox"
)

const TorBoxID = "torbox"

func torBoxDescriptor(cfg Config, cl *http.Client) debrid.Descriptor {
	return debrid.Descriptor{
		Meta: debrid.Meta{
			ID:           TorBoxID,
			Name:         "TorBox",
			ShortName:    "TB",
			ConfigFields: debrid.APIKeyField("TorBox API Key", "https://torbox.app/settings"),
		},
		New: func(o debrid.Options) debrid.Provider {
			return NewTorBox(torbox.NewClient(cl, cfg.TorBoxURL, o.APIKey, o.IP), o.APIKey)
		},
	}
}

type TorBox struct {
	cl     *torbox.Client
	apiKey string
}

var _ debrid.Provider = (*TorBox)(nil)

func NewTorBox(cl *torbox.Client, apiKey string) *TorBox {
	return &TorBox{
		cl:     cl,
		apiKey: apiKey,
	}
}

func (s *TorBox) Meta() debrid.Meta {
	return torBoxDescriptor(Config{}, nil).Meta
}

func (s *TorBox) GetUserHash() string {
	return debrid.UserHash(s.apiKey)
}

func (s *TorBox) GetTorrentsCached(ctx context.Context, infos []*models.TorrentInfo, isValid debrid.FilesPredicate) ([]*models.TorrentInfo, error) {
	cached, err := s.cl.CheckCached(ctx, debrid.InfoHashes(infos), true)
	if err != nil {
		return nil, s.wrap(err)
	}
	byHash := make(map[string]torbox.CachedTorrent, len(cached))
	for h, c := range cached {
		byHash[strings.ToLower(h)] = c
	}
	var res []*models.TorrentInfo
	for _, ti := range infos {
		c, ok := byHash[ti.InfoHash]
		if !ok {
			continue
		}
		files := make([]models.TorrentFile, 0, len(c.Files))
		for _, f := range c.Files {
			files = append(files, models.TorrentFile{Name: path.Base(f.Name), Size: f.Size})
		}
		if isValid.Match(ti, files) {
			res = append(res, ti)
		}
	}
	return res, nil
}

func (s *TorBox) GetProgressTorrents(ctx context.Context, infos []*models.TorrentInfo) (map[string]debrid.Progress, error) {
	list, err := s.cl.ListTorrents(ctx)
	if err != nil {
		return nil, s.wrap(err)
	}
	wanted := map[string]struct{}{}
	for _, h := range debrid.InfoHashes(infos) {
		wanted[h] = struct{}{}
	}
	res := map[string]debrid.Progress{}
	for _, t := range list {
		h := strings.ToLower(t.Hash)
		if _, ok := wanted[h]; !ok {
			continue
		}
		res[h] = debrid.Progress{
			Percent: t.Progress * 100,
			Speed:   t.DownloadSpeed,
		}
	}
	return res, nil
}

func (s *TorBox) GetFilesFromMagnet(ctx context.Context, magnet string, infoHash string) ([]debrid.File, error) {
	d, err := s.cl.CreateTorrent(ctx, magnet)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, d.TorrentID)
}

func (s *TorBox) GetFilesFromHash(ctx context.Context, infoHash string) ([]debrid.File, error) {
	return s.GetFilesFromMagnet(ctx, magnetFromHash(infoHash), infoHash)
}

func (s *TorBox) GetFilesFromBuffer(ctx context.Context, b []byte, infoHash string) ([]debrid.File, error) {
	d, err := s.cl.CreateTorrentFile(ctx, b)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, d.TorrentID)
}

func (s *TorBox) files(ctx context.Context, id int) ([]debrid.File, error) {
	t, err := s.cl.GetTorrent(ctx, id)
	if err != nil {
		return nil, s.wrap(err)
	}
	if len(t.Files) == 0 {
		return nil, debrid.NotReady(TorBoxID)
	}
	res := make([]debrid.File, 0, len(t.Files))
	for _, f := range t.Files {
		name := f.ShortName
		if name == "" {
			name = path.Base(f.Name)
		}
		res = append(res, debrid.File{
			Name:  name,
			Size:  f.Size,
			ID:    fmt.Sprintf("%v:%v", id, f.ID),
			Ready: debrid.Ready(t.DownloadPresent),
		})
	}
	return res, nil
}

func (s *TorBox) GetDownload(ctx context.Context, f debrid.File) (string, error) {
	if !f.IsReady() {
		return "", debrid.NotReady(TorBoxID)
	}
	var torrentID, fileID int
	if _, err := fmt.Sscanf(f.ID, "%d:%d", &torrentID, &fileID); err != nil {
		return "", errors.Wrapf(err, "malformed torbox file id %v", f.ID)
	}
	u, err := s.cl.RequestDownloadLink(ctx, torrentID, fileID)
	if err != nil {
		return "", s.wrap(err)
	}
	return u, nil
}

func (s *TorBox) wrap(err error) error {
	var apiErr *torbox.APIError
	if !errors.As(err, &apiErr) {
		return debrid.NewError(TorBoxID, debrid.KindUnknown, err)
	}
	switch apiErr.Code {
	case torbox.ErrorBadToken, torbox.ErrorNoAuth, torbox.ErrorAuth:
		return debrid.NewError(TorBoxID, debrid.KindExpiredAPIKey, err)
	case torbox.ErrorPlanRestrictedFeature:
		return debrid.NewError(TorBoxID, debrid.KindNotPremium, err)
	default:
		return debrid.NewError(TorBoxID, debrid.KindUnknown, err)
	}
}
