package providers

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/debrid"
	"github.com/webtor-io/stremio-resolver/services/debridlink"
)

const DebridLinkID = "debridlink"

func debridLinkDescriptor(cfg Config, cl *http.Client) debrid.Descriptor {
	return debrid.Descriptor{
		Meta: debrid.Meta{
			ID:           DebridLinkID,
			Name:         "Debrid-Link",
			ShortName:    "DL",
			ConfigFields: debrid.APIKeyField("Debrid-Link API Key", "https://debrid-link.com/webapp/apikey"),
		},
		New: func(o debrid.Options) debrid.Provider {
			return NewDebridLink(debridlink.New(cl, cfg.DebridLinkURL, o.APIKey, o.IP), o.APIKey)
		},
	}
}

type DebridLink struct {
	cl     *debridlink.Client
	apiKey string
}

var _ debrid.Provider = (*DebridLink)(nil)

func NewDebridLink(cl *debridlink.Client, apiKey string) *DebridLink {
	return &DebridLink{
		cl:     cl,
		apiKey: apiKey,
	}
}

func (s *DebridLink) Meta() debrid.Meta {
	return debridLinkDescriptor(Config{}, nil).Meta
}

func (s *DebridLink) GetUserHash() string {
	return debrid.UserHash(s.apiKey)
}

func (s *DebridLink) GetTorrentsCached(ctx context.Context, infos []*models.TorrentInfo, isValid debrid.FilesPredicate) ([]*models.TorrentInfo, error) {
	hashes := debrid.InfoHashes(infos)
	if len(hashes) == 0 {
		return nil, nil
	}
	cached, err := s.cl.Cached(ctx, hashes)
	if err != nil {
		return nil, s.wrap(err)
	}
	byHash := make(map[string]debridlink.Cached, len(cached))
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
			files = append(files, models.TorrentFile{Name: f.Name, Size: f.Size})
		}
		if isValid.Match(ti, files) {
			res = append(res, ti)
		}
	}
	return res, nil
}

func (s *DebridLink) GetProgressTorrents(ctx context.Context, infos []*models.TorrentInfo) (map[string]debrid.Progress, error) {
	list, err := s.cl.List(ctx)
	if err != nil {
		return nil, s.wrap(err)
	}
	wanted := map[string]struct{}{}
	for _, h := range debrid.InfoHashes(infos) {
		wanted[h] = struct{}{}
	}
	res := map[string]debrid.Progress{}
	for _, t := range list {
		h := strings.ToLower(t.HashString)
		if _, ok := wanted[h]; !ok {
			continue
		}
		res[h] = debrid.Progress{
			Percent: float64(t.DownloadPercent),
			Speed:   t.DownloadSpeed,
		}
	}
	return res, nil
}

func (s *DebridLink) GetFilesFromMagnet(ctx context.Context, magnet string, infoHash string) ([]debrid.File, error) {
	t, err := s.cl.Add(ctx, magnet)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(t)
}

func (s *DebridLink) GetFilesFromHash(ctx context.Context, infoHash string) ([]debrid.File, error) {
	return s.GetFilesFromMagnet(ctx, infoHash, infoHash)
}

func (s *DebridLink) GetFilesFromBuffer(ctx context.Context, b []byte, infoHash string) ([]debrid.File, error) {
	t, err := s.cl.AddFile(ctx, b)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(t)
}

func (s *DebridLink) files(t *debridlink.Torrent) ([]debrid.File, error) {
	if len(t.Files) == 0 {
		return nil, debrid.NotReady(DebridLinkID)
	}
	res := make([]debrid.File, 0, len(t.Files))
	for _, f := range t.Files {
		res = append(res, debrid.File{
			Name:  f.Name,
			Size:  f.Size,
			ID:    t.ID + ":" + f.ID,
			URL:   f.DownloadURL,
			Ready: debrid.Ready(f.DownloadPercent == 100),
		})
	}
	return res, nil
}

func (s *DebridLink) GetDownload(ctx context.Context, f debrid.File) (string, error) {
	if !f.IsReady() || f.URL == "" {
		return "", debrid.NotReady(DebridLinkID)
	}
	return f.URL, nil
}

func (s *DebridLink) wrap(err error) error {
	var apiErr *debridlink.APIError
	if !errors.As(err, &apiErr) {
		return debrid.NewError(DebridLinkID, debrid.KindUnknown, err)
	}
	switch apiErr.Code {
	case debridlink.ErrorBadToken:
		return debrid.NewError(DebridLinkID, debrid.KindExpiredAPIKey, err)
	case debridlink.ErrorMaxTorrent:
		return debrid.NewError(DebridLinkID, debrid.KindNotPremium, err)
	case debridlink.ErrorAccessDenied:
		return debrid.NewError(DebridLinkID, debrid.KindAccessDenied, err)
	default:
		return debrid.NewError(DebridLinkID, debrid.KindUnknown, err)
	}
}
