package providers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/common"
	"github.com/webtor-io/stremio-resolver/services/debrid"
	"github.com/webtor-io/stremio-resolver/services/realdebrid"
)

const RealDebridID = "realdebrid"

func realDebridDescriptor(cfg Config, cl *http.Client) debrid.Descriptor {
	return debrid.Descriptor{
		Meta: debrid.Meta{
			ID:           RealDebridID,
			Name:         "Real-Debrid",
			ShortName:    "RD",
			ConfigFields: debrid.APIKeyField("Real-Debrid API Key", "https://real-debrid.com/apitoken"),
		},
		New: func(o debrid.Options) debrid.Provider {
			return NewRealDebrid(realdebrid.New(cl, cfg.RealDebridURL, o.APIKey, o.IP), o.APIKey)
		},
	}
}

type RealDebrid struct {
	cl     *realdebrid.Client
	apiKey string
}

var _ debrid.Provider = (*RealDebrid)(nil)

func NewRealDebrid(cl *realdebrid.Client, apiKey string) *RealDebrid {
	return &RealDebrid{
		cl:     cl,
		apiKey: apiKey,
	}
}

func (s *RealDebrid) Meta() debrid.Meta {
	return realDebridDescriptor(Config{}, nil).Meta
}

func (s *RealDebrid) GetUserHash() string {
	return debrid.UserHash(s.apiKey)
}

func (s *RealDebrid) GetTorrentsCached(ctx context.Context, infos []*models.TorrentInfo, isValid debrid.FilesPredicate) ([]*models.TorrentInfo, error) {
	avail, err := s.cl.InstantAvailability(ctx, debrid.InfoHashes(infos))
	if err != nil {
		return nil, s.wrap(err)
	}
	var res []*models.TorrentInfo
	for _, ti := range infos {
		for _, v := range avail[ti.InfoHash] {
			files := variantFiles(v)
			// archive only caches can not be streamed
			if len(files) == 0 || !allVideo(files) {
				continue
			}
			if isValid.Match(ti, files) {
				res = append(res, ti)
				break
			}
		}
	}
	return res, nil
}

func (s *RealDebrid) GetProgressTorrents(ctx context.Context, infos []*models.TorrentInfo) (map[string]debrid.Progress, error) {
	list, err := s.cl.GetTorrents(ctx, 0, 100, true)
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
			Percent: t.Progress,
			Speed:   t.Speed,
		}
	}
	return res, nil
}

func (s *RealDebrid) GetFilesFromMagnet(ctx context.Context, magnet string, infoHash string) ([]debrid.File, error) {
	r, err := s.cl.AddMagnet(ctx, magnet, "")
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, r.ID, infoHash)
}

func (s *RealDebrid) GetFilesFromHash(ctx context.Context, infoHash string) ([]debrid.File, error) {
	return s.GetFilesFromMagnet(ctx, magnetFromHash(infoHash), infoHash)
}

func (s *RealDebrid) GetFilesFromBuffer(ctx context.Context, b []byte, infoHash string) ([]debrid.File, error) {
	r, err := s.cl.AddTorrent(ctx, b, "")
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.files(ctx, r.ID, infoHash)
}

func (s *RealDebrid) files(ctx context.Context, id string, infoHash string) ([]debrid.File, error) {
	info, err := s.cl.GetTorrentInfo(ctx, id)
	if err != nil {
		return nil, s.wrap(err)
	}
	if len(info.Files) == 0 {
		return nil, debrid.NotReady(RealDebridID)
	}
	res := make([]debrid.File, 0, len(info.Files))
	for _, f := range info.Files {
		res = append(res, debrid.File{
			Name: path.Base(f.Path),
			Size: f.Bytes,
			ID:   fmt.Sprintf("%v:%v:%v", id, f.ID, infoHash),
		})
	}
	return res, nil
}

// GetDownload selects the widest cached variant holding the file, so that
// selection does not start a fresh uncached download.
func (s *RealDebrid) GetDownload(ctx context.Context, f debrid.File) (string, error) {
	parts := strings.SplitN(f.ID, ":", 3)
	if len(parts) != 3 {
		return "", errors.Errorf("malformed real-debrid file id %v", f.ID)
	}
	torrentID, fileID, hash := parts[0], parts[1], parts[2]
	selection := []string{fileID}
	avail, err := s.cl.InstantAvailability(ctx, []string{hash})
	if err != nil {
		log.WithError(err).Warn("failed to get real-debrid availability for selection")
	} else if v := bestVariant(avail[strings.ToLower(hash)], fileID); v != nil {
		selection = v
	}
	if err := s.cl.SelectTorrentFiles(ctx, torrentID, selection); err != nil {
		// files may already be selected
		log.WithError(err).WithField("torrent_id", torrentID).Debug("failed to select real-debrid files")
	}
	info, err := s.cl.GetTorrentInfo(ctx, torrentID)
	if err != nil {
		return "", s.wrap(err)
	}
	if info.Status != realdebrid.TorrentStatusDownloaded {
		return "", debrid.NotReady(RealDebridID)
	}
	idx := 0
	found := false
	for _, tf := range info.Files {
		if tf.Selected != 1 {
			continue
		}
		if strconv.Itoa(tf.ID) == fileID {
			found = true
			break
		}
		idx++
	}
	if !found || idx >= len(info.Links) {
		return "", errors.Errorf("no real-debrid link for file %v", fileID)
	}
	d, err := s.cl.UnrestrictLink(ctx, info.Links[idx], "", false)
	if err != nil {
		return "", s.wrap(err)
	}
	return d.Download, nil
}

func (s *RealDebrid) wrap(err error) error {
	var apiErr *realdebrid.APIError
	if !errors.As(err, &apiErr) {
		return debrid.NewError(RealDebridID, debrid.KindUnknown, err)
	}
	switch apiErr.ErrorCode {
	case realdebrid.ErrorCodeBadToken:
		return debrid.NewError(RealDebridID, debrid.KindExpiredAPIKey, err)
	case realdebrid.ErrorCodePermissionDenied:
		return debrid.NewError(RealDebridID, debrid.KindAccessDenied, err)
	case realdebrid.ErrorCodeTwoFactorRequired, realdebrid.ErrorCodeTwoFactorPending:
		return debrid.NewError(RealDebridID, debrid.KindTwoFactorAuth, err)
	case realdebrid.ErrorCodeNotPremium:
		return debrid.NewError(RealDebridID, debrid.KindNotPremium, err)
	default:
		return debrid.NewError(RealDebridID, debrid.KindUnknown, err)
	}
}

func variantFiles(v realdebrid.Variant) []models.TorrentFile {
	res := make([]models.TorrentFile, 0, len(v))
	for _, f := range v {
		res = append(res, models.TorrentFile{
			Name: f.Filename,
			Size: f.Filesize,
		})
	}
	return res
}

func allVideo(files []models.TorrentFile) bool {
	for _, f := range files {
		if !common.IsVideo(f.Name) {
			return false
		}
	}
	return true
}

// bestVariant returns sorted file ids of the largest all-video variant
// containing fileID.
func bestVariant(variants []realdebrid.Variant, fileID string) []string {
	var best realdebrid.Variant
	for _, v := range variants {
		if _, ok := v[fileID]; !ok {
			continue
		}
		if !allVideo(variantFiles(v)) {
			continue
		}
		if len(v) > len(best) {
			best = v
		}
	}
	if best == nil {
		return nil
	}
	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	return ids
}
