package resolver

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/debrid"
)

const disabledURL = "#"

func streamName(addonName string, t *torrent, p debrid.Provider) string {
	prefix := "P2P"
	if p != nil {
		prefix = p.Meta().ShortName
		if t.cached {
			prefix += "+"
		}
	}
	name := fmt.Sprintf("[%v] %v", prefix, addonName)
	if q := models.QualityLabel(t.Quality); q != "" {
		name += " " + q
	}
	return name
}

// episodeFile returns the index of the requested episode inside the
// torrent, falling back to the largest file.
func episodeFile(t *torrent, req *models.MediaRequest) int {
	files := t.info.Files
	if len(files) == 0 {
		return -1
	}
	if req.IsSeries() {
		if i := searchEpisodeFile(files, torrentFileName, req.Season, req.Episode); i >= 0 {
			return i
		}
	}
	best := 0
	for i, f := range files {
		if f.Size > files[best].Size {
			best = i
		}
	}
	return best
}

func streamTitle(t *torrent, req *models.MediaRequest) string {
	rows := []string{t.Name}
	if req.IsSeries() && t.info != nil {
		if i := searchEpisodeFile(t.info.Files, torrentFileName, req.Season, req.Episode); i >= 0 {
			rows = append(rows, t.info.Files[i].Name)
		}
	}
	if t.infoText != "" {
		rows = append(rows, "ℹ️ "+t.infoText)
	}
	summary := []string{
		"💾" + humanize.IBytes(uint64(max(t.Size, 0))),
		"👥" + fmt.Sprint(t.Seeders),
		"⚙️" + t.IndexerID,
	}
	for _, l := range t.Languages {
		if e := models.LanguageEmoji(l); e != "" {
			summary = append(summary, e)
		}
	}
	rows = append(rows, strings.Join(summary, " "))
	if t.progress != nil && !t.cached {
		rows = append(rows, fmt.Sprintf("⬇️ %v%% %v/s",
			math.Round(t.progress.Percent),
			humanize.IBytes(uint64(max(t.progress.Speed, 0)))))
	}
	return strings.Join(rows, "\n")
}

func (s *Resolver) streamEntry(t *torrent, req *models.MediaRequest, p debrid.Provider, ref func(t *torrent) (string, error)) (*models.StreamEntry, error) {
	e := &models.StreamEntry{
		Name:     streamName(s.cfg.AddonName, t, p),
		Title:    streamTitle(t, req),
		Disabled: t.disabled,
		FileIdx:  -1,
	}
	if p == nil {
		e.InfoHash = t.info.InfoHash
		e.FileIdx = episodeFile(t, req)
		return e, nil
	}
	if t.disabled {
		e.URL = disabledURL
		return e, nil
	}
	u, err := ref(t)
	if err != nil {
		return nil, err
	}
	e.URL = u
	return e, nil
}
