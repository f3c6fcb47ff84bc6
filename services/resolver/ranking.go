package resolver

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/common"
	"github.com/webtor-io/stremio-resolver/services/debrid"
)

// torrent is a candidate travelling through one resolution.
type torrent struct {
	models.Candidate
	pack     bool
	info     *models.TorrentInfo
	cached   bool
	disabled bool
	infoText string
	progress *debrid.Progress
}

func sortValue(t *torrent, f models.SortField) int64 {
	switch f {
	case models.SortFieldQuality:
		return int64(t.Quality)
	case models.SortFieldSize:
		return t.Size
	case models.SortFieldSeeders:
		return int64(t.Seeders)
	case models.SortFieldPeers:
		return int64(t.Peers)
	}
	return 0
}

// sortTorrents orders ts in place by keys, ties keep their order.
func sortTorrents(ts []*torrent, keys []models.SortKey) {
	sort.SliceStable(ts, func(i, j int) bool {
		for _, k := range keys {
			a, b := sortValue(ts[i], k.Field), sortValue(ts[j], k.Field)
			if a == b {
				continue
			}
			if k.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
}

// prioritize moves the torrents matching pred to the front. When max is
// positive at most max of them are moved.
func prioritize(ts []*torrent, pred func(t *torrent) bool, max int) []*torrent {
	var front, rest []*torrent
	for _, t := range ts {
		if pred(t) && (max <= 0 || len(front) < max) {
			front = append(front, t)
		} else {
			rest = append(rest, t)
		}
	}
	return append(front, rest...)
}

func languageCap(maxTorrents int) int {
	return int(math.Max(1, math.Round(float64(maxTorrents)*0.33)))
}

func languageFilter(cfg *models.UserConfig) func(t *torrent) bool {
	return func(t *torrent) bool {
		if len(cfg.PriotizeLanguages) == 0 {
			return true
		}
		for _, l := range t.Languages {
			if l == models.LanguageMulti {
				return true
			}
			for _, p := range cfg.PriotizeLanguages {
				if strings.EqualFold(l, p) {
					return true
				}
			}
		}
		return false
	}
}

// acceptable applies the quality and excluded keyword filters.
func acceptable(cfg *models.UserConfig, c *models.Candidate) bool {
	if !cfg.HasQuality(c.Quality) {
		return false
	}
	words := common.ParseWords(strings.ToLower(c.Name))
	for _, k := range cfg.ExcludeKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		for _, w := range words {
			if w == k {
				return false
			}
		}
	}
	return true
}

var (
	seasonRangeR  = regexp.MustCompile(`s(\d{2,}) s(\d{2,})`)
	seasonMarkerR = regexp.MustCompile(` (s\d{2,}|season \d) `)
)

// isSeasonPack reports whether a release title plausibly holds the season.
func isSeasonPack(name string, season int) bool {
	words := common.ParseWords(strings.ToLower(name))
	joined := strings.Join(words, " ")
	if strings.Contains(joined, fmt.Sprintf("season %v", season)) {
		return true
	}
	sn := "s" + common.NumberPad(season)
	for _, w := range words {
		if w == sn {
			return true
		}
	}
	if m := seasonRangeR.FindStringSubmatch(joined); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		if season >= from && season <= to {
			return true
		}
	}
	complete := false
	for _, w := range words {
		if w == "complete" {
			complete = true
			break
		}
	}
	return complete && !seasonMarkerR.MatchString(" "+joined+" ")
}

// forcePacks replaces the tail of ts with the first n packs, kept in
// indexer order, when no pack made it into the selection. Replaced entries
// are dropped.
func forcePacks(ts []*torrent, packs []*torrent, n int) []*torrent {
	if n <= 0 || len(packs) == 0 {
		return ts
	}
	for _, t := range ts {
		if t.pack {
			return ts
		}
	}
	if len(packs) > n {
		packs = packs[:n]
	}
	start := len(ts) - len(packs)
	if start < 0 {
		start = 0
	}
	res := make([]*torrent, 0, start+len(packs))
	res = append(res, ts[:start]...)
	return append(res, packs...)
}

// searchEpisodeFile returns the index of the file best matching the episode
// or -1. Rules loosen progressively: S01E02, then 102, then 02.
func searchEpisodeFile[T any](files []T, name func(T) string, season, episode int) int {
	patterns := []string{
		fmt.Sprintf("S%vE%v", common.NumberPad(season), common.NumberPad(episode)),
		fmt.Sprintf("%v%v", season, common.NumberPad(episode)),
		common.NumberPad(episode),
	}
	for _, p := range patterns {
		for i, f := range files {
			if strings.Contains(strings.ToUpper(name(f)), p) {
				return i
			}
		}
	}
	return -1
}

func torrentFileName(f models.TorrentFile) string {
	return f.Name
}

func debridFileName(f debrid.File) string {
	return f.Name
}

// episodePredicate accepts cached file sets holding the requested episode.
func episodePredicate(req *models.MediaRequest) debrid.FilesPredicate {
	if !req.IsSeries() {
		return nil
	}
	return func(files []models.TorrentFile) bool {
		return searchEpisodeFile(files, torrentFileName, req.Season, req.Episode) >= 0
	}
}
