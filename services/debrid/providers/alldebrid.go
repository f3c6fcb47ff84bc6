package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/alldebrid"
	"github.com/webtor-io/stremio-resolver/services/debrid"
)

const AllDebridID = "alldebrid"

func allDebridDescriptor(cfg Config, cl *http.Client) debrid.Descriptor {
	return debrid.Descriptor{
		Meta: debrid.Meta{
			ID:           AllDebridID,
			Name:         "AllDebrid",
			ShortName:    "AD",
			ConfigFields: debrid.APIKeyField("AllDebrid API Key", "https://alldebrid.com/apikeys"),
		},
		New: func(o debrid.Options) debrid.Provider {
			return NewAllDebrid(alldebrid.New(cl, cfg.AllDebridURL, o.APIKey, cfg.Agent, o.IP), o.APIKey)
		},
	}
}

type AllDebrid struct {
	cl     *alldebrid.Client
	apiKey string
}

var _ debrid.Provider = (*AllDebrid)(nil)

func NewAllDebrid(cl *alldebrid.Client, apiKey string) *AllDebrid {
	return &AllDebrid{
		cl:     cl,
		apiKey: apiKey,
	}
}

func (s *AllDebrid) Meta() debrid.Meta {
	return allDebridDescriptor(Config{}, nil).Meta
}

func (s *AllDebrid) GetUserHash() string {
	return debrid.UserHash(s.apiKey)
}

func (s *AllDebrid) GetTorrentsCached(ctx context.Context, infos []*models.TorrentInfo, isValid debrid.FilesPredicate) ([]*models.TorrentInfo, error) {
	hashes := debrid.InfoHashes(infos)
	if len(hashes) == 0 {
		return nil, nil
	}
	magnets, err := s.cl.Instant(ctx, hashes)
	if err != nil {
		return nil, s.wrap(err)
	}
	instant := map[string]bool{}
	for _, m := range magnets {
		if m.Instant {
			instant[strings.ToLower(m.Hash)] = true
		}
	}
	var res []*models.TorrentInfo
	for _, ti := range infos {
		if instant[ti.InfoHash] && isValid.Match(ti, nil) {
			res = append(res, ti)
		}
	}
	return res, nil
}

func (s *AllDebrid) GetProgressTorrents(ctx context.Context, infos []*models.TorrentInfo) (map[string]debrid.Progress, error) {
	list, err := s.cl.StatusAll(ctx)
	if err != nil {
		return nil, s.wrap(err)
	}
	wanted := map[string]struct{}{}
	for _, h := range debrid.InfoHashes(infos) {
		wanted[h] = struct{}{}
	}
	res := map[string]debrid.Progress{}
	for _, m := range list {
		h := strings.ToLower(m.Hash)
		if _, ok := wanted[h]; !ok {
			continue
		}
		p := debrid.Progress{Speed: m.DownloadSpeed}
		switch {
		case m.Status == alldebrid.StatusReady:
			p.Percent = 100
		case m.Size > 0:
			p.Percent = float64(m.Downloaded) * 100 / float64(m.Size)
		}
		res[h] = p
	}
	return res, nil
}

func (s *AllDebrid) GetFilesFromMagnet(ctx context.Context, magnet string, infoHash string) ([]debrid.File, error) {
	m, err := s.cl.UploadMagnet(ctx, magnet)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, m.ID)
}

func (s *AllDebrid) GetFilesFromHash(ctx context.Context, infoHash string) ([]debrid.File, error) {
	return s.GetFilesFromMagnet(ctx, infoHash, infoHash)
}

func (s *AllDebrid) GetFilesFromBuffer(ctx context.Context, b []byte, infoHash string) ([]debrid.File, error) {
	m, err := s.cl.UploadFile(ctx, b)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, m.ID)
}

func (s *AllDebrid) files(ctx context.Context, id int) ([]debrid.File, error) {
	m, err := s.cl.Status(ctx, id)
	if err != nil {
		return nil, s.wrap(err)
	}
	if m.Status != alldebrid.StatusReady || len(m.Links) == 0 {
		return nil, debrid.NotReady(AllDebridID)
	}
	res := make([]debrid.File, 0, len(m.Links))
	for i, l := range m.Links {
		res = append(res, debrid.File{
			Name:  l.Filename,
			Size:  l.Size,
			ID:    fmt.Sprintf("%v:%v", id, i),
			URL:   l.Link,
			Ready: debrid.Ready(true),
		})
	}
	return res, nil
}

func (s *AllDebrid) GetDownload(ctx context.Context, f debrid.File) (string, error) {
	if f.URL == "" {
		return "", errors.Errorf("no alldebrid link for file %v", f.ID)
	}
	u, err := s.cl.UnlockLink(ctx, f.URL)
	if err != nil {
		return "", s.wrap(err)
	}
	return u, nil
}

func (s *AllDebrid) wrap(err error) error {
	var apiErr *alldebrid.APIError
	if !errors.As(err, &apiErr) {
		return debrid.NewError(AllDebridID, debrid.KindUnknown, err)
	}
	switch apiErr.Code {
	case alldebrid.ErrorBadAPIKey, alldebrid.ErrorMissingAPIKey:
		return debrid.NewError(AllDebridID, debrid.KindExpiredAPIKey, err)
	case alldebrid.ErrorAuthBlocked:
		return debrid.NewError(AllDebridID, debrid.KindTwoFactorAuth, err)
	case alldebrid.ErrorMagnetMustBePremium, alldebrid.ErrorFreeTrialLimit, alldebrid.ErrorMustBePremium:
		return debrid.NewError(AllDebridID, debrid.KindNotPremium, err)
	default:
		return debrid.NewError(AllDebridID, debrid.KindUnknown, err)
	}
}
