package debrid

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"

	"github.com/webtor-io/stremio-resolver/models"
)

// File is one file of a provider side transfer. Ready is nil when
// availability is only known after selection.
type File struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	ID    string `json:"id"`
	URL   string `json:"url"`
	Ready *bool  `json:"ready"`
}

func (f *File) IsReady() bool {
	return f.Ready != nil && *f.Ready
}

func Ready(v bool) *bool {
	return &v
}

type Progress struct {
	Percent float64 `json:"percent"`
	Speed   int64   `json:"speed"`
}

// FilesPredicate tells whether a cached file set is usable for the request.
type FilesPredicate func(files []models.TorrentFile) bool

// Match applies p to the provider reported files, falling back to the
// files known from the torrent itself. Unknown file sets are accepted.
func (p FilesPredicate) Match(ti *models.TorrentInfo, files []models.TorrentFile) bool {
	if p == nil {
		return true
	}
	if len(files) == 0 {
		files = ti.Files
	}
	if len(files) == 0 {
		return true
	}
	return p(files)
}

type Href struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type ConfigField struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Href     *Href  `json:"href,omitempty"`
}

type Meta struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ShortName    string        `json:"shortName"`
	ConfigFields []ConfigField `json:"configFields"`
}

func APIKeyField(label string, href string) []ConfigField {
	return []ConfigField{
		{
			Type:     "text",
			Name:     "debridApiKey",
			Label:    label,
			Required: true,
			Href:     &Href{Value: href, Label: "Get API Key Here"},
		},
	}
}

type Provider interface {
	Meta() Meta
	// GetTorrentsCached returns the subset of infos instantly available
	// whose cached files satisfy isValid.
	GetTorrentsCached(ctx context.Context, infos []*models.TorrentInfo, isValid FilesPredicate) ([]*models.TorrentInfo, error)
	// GetProgressTorrents maps info hashes to known transfer progress.
	GetProgressTorrents(ctx context.Context, infos []*models.TorrentInfo) (map[string]Progress, error)
	GetFilesFromMagnet(ctx context.Context, magnet string, infoHash string) ([]File, error)
	GetFilesFromHash(ctx context.Context, infoHash string) ([]File, error)
	GetFilesFromBuffer(ctx context.Context, b []byte, infoHash string) ([]File, error)
	GetDownload(ctx context.Context, f File) (string, error)
	// GetUserHash identifies the account without exposing its credential.
	GetUserHash() string
}

func UserHash(apiKey string) string {
	h := md5.Sum([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

func InfoHashes(infos []*models.TorrentInfo) []string {
	res := make([]string, 0, len(infos))
	for _, ti := range infos {
		if ti.InfoHash != "" {
			res = append(res, ti.InfoHash)
		}
	}
	return res
}

// SortBySize orders files largest first.
func SortBySize(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Size > files[j].Size
	})
}
