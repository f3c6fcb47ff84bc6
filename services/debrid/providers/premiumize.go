package providers

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/debrid"
	"github.com/webtor-io/stremio-resolver/services/premiumize"
)

const PremiumizeID = "premiumize"

func premiumizeDescriptor(cfg Config, cl *http.Client) debrid.Descriptor {
	return debrid.Descriptor{
		Meta: debrid.Meta{
			ID:           PremiumizeID,
			Name:         "Premiumize",
			ShortName:    "PM",
			ConfigFields: debrid.APIKeyField("Premiumize API Key", "https://www.premiumize.me/account"),
		},
		New: func(o debrid.Options) debrid.Provider {
			return NewPremiumize(premiumize.New(cl, cfg.PremiumizeURL, o.APIKey, o.IP), o.APIKey)
		},
	}
}

type Premiumize struct {
	cl     *premiumize.Client
	apiKey string
}

var _ debrid.Provider = (*Premiumize)(nil)

func NewPremiumize(cl *premiumize.Client, apiKey string) *Premiumize {
	return &Premiumize{
		cl:     cl,
		apiKey: apiKey,
	}
}

func (s *Premiumize) Meta() debrid.Meta {
	return premiumizeDescriptor(Config{}, nil).Meta
}

func (s *Premiumize) GetUserHash() string {
	return debrid.UserHash(s.apiKey)
}

func (s *Premiumize) GetTorrentsCached(ctx context.Context, infos []*models.TorrentInfo, isValid debrid.FilesPredicate) ([]*models.TorrentInfo, error) {
	var withHash []*models.TorrentInfo
	for _, ti := range infos {
		if ti.InfoHash != "" {
			withHash = append(withHash, ti)
		}
	}
	if len(withHash) == 0 {
		return nil, nil
	}
	r, err := s.cl.CacheCheck(ctx, debrid.InfoHashes(withHash))
	if err != nil {
		return nil, s.wrap(err)
	}
	var res []*models.TorrentInfo
	for i, ti := range withHash {
		if i < len(r.Response) && r.Response[i] && isValid.Match(ti, nil) {
			res = append(res, ti)
		}
	}
	return res, nil
}

// GetProgressTorrents matches transfers by name, transfers carry no hash.
func (s *Premiumize) GetProgressTorrents(ctx context.Context, infos []*models.TorrentInfo) (map[string]debrid.Progress, error) {
	list, err := s.cl.TransferList(ctx)
	if err != nil {
		return nil, s.wrap(err)
	}
	byName := map[string]premiumize.Transfer{}
	for _, t := range list {
		byName[t.Name] = t
	}
	res := map[string]debrid.Progress{}
	for _, ti := range infos {
		t, ok := byName[ti.Name]
		if !ok || ti.InfoHash == "" {
			continue
		}
		p := debrid.Progress{Percent: t.Progress * 100}
		if t.Ready() {
			p.Percent = 100
		}
		res[ti.InfoHash] = p
	}
	return res, nil
}

func (s *Premiumize) GetFilesFromMagnet(ctx context.Context, magnet string, infoHash string) ([]debrid.File, error) {
	id, err := s.cl.TransferCreate(ctx, magnet)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, id)
}

func (s *Premiumize) GetFilesFromHash(ctx context.Context, infoHash string) ([]debrid.File, error) {
	return s.GetFilesFromMagnet(ctx, infoHash, infoHash)
}

func (s *Premiumize) GetFilesFromBuffer(ctx context.Context, b []byte, infoHash string) ([]debrid.File, error) {
	id, err := s.cl.TransferCreateFile(ctx, b)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, id)
}

func (s *Premiumize) files(ctx context.Context, id string) ([]debrid.File, error) {
	list, err := s.cl.TransferList(ctx)
	if err != nil {
		return nil, s.wrap(err)
	}
	var tr *premiumize.Transfer
	for i := range list {
		if list[i].ID == id {
			tr = &list[i]
			break
		}
	}
	if tr == nil || !tr.Ready() || tr.FolderID == "" {
		return nil, debrid.NotReady(PremiumizeID)
	}
	items, err := s.cl.FolderList(ctx, tr.FolderID)
	if err != nil {
		return nil, s.wrap(err)
	}
	var res []debrid.File
	for _, it := range items {
		if it.Type != "file" {
			continue
		}
		res = append(res, debrid.File{
			Name:  it.Name,
			Size:  it.Size,
			ID:    it.ID,
			URL:   it.Link,
			Ready: debrid.Ready(true),
		})
	}
	if len(res) == 0 {
		return nil, debrid.NotReady(PremiumizeID)
	}
	return res, nil
}

func (s *Premiumize) GetDownload(ctx context.Context, f debrid.File) (string, error) {
	if !f.IsReady() || f.URL == "" {
		return "", debrid.NotReady(PremiumizeID)
	}
	return f.URL, nil
}

func (s *Premiumize) wrap(err error) error {
	var apiErr *premiumize.APIError
	if !errors.As(err, &apiErr) {
		return debrid.NewError(PremiumizeID, debrid.KindUnknown, err)
	}
	switch apiErr.Message {
	case premiumize.MessageNotLoggedIn:
		return debrid.NewError(PremiumizeID, debrid.KindExpiredAPIKey, err)
	case premiumize.MessageNotPremium:
		return debrid.NewError(PremiumizeID, debrid.KindNotPremium, err)
	default:
		return debrid.NewError(PremiumizeID, debrid.KindUnknown, err)
	}
}
