package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"github.com/webtor-io/stremio-resolver/services/debrid"
	"github.com/webtor-io/stremio-resolver/services/jackett"
	"github.com/webtor-io/stremio-resolver/services/meta"
)

type fakeSearcher struct {
	indexers []jackett.Indexer
	results  map[jackett.SearchType]map[string][]models.Candidate
	block    string
}

func (s *fakeSearcher) Search(ctx context.Context, t jackett.SearchType, q jackett.Query) ([]models.Candidate, error) {
	if q.Indexer == s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.results[t][q.Indexer], nil
}

func (s *fakeSearcher) Indexers(_ context.Context) ([]jackett.Indexer, error) {
	return s.indexers, nil
}

type fakeInfos struct {
	infos map[string]*models.TorrentInfo
	files map[string][]byte
	// auto builds infos from candidates carrying an info hash
	auto bool
}

func (s *fakeInfos) Get(_ context.Context, c *models.Candidate) (*models.TorrentInfo, error) {
	if ti, ok := s.infos[c.ID]; ok {
		return ti, nil
	}
	if s.auto && c.InfoHash != "" {
		return &models.TorrentInfo{ID: c.ID, InfoHash: c.InfoHash, Name: c.Name, MagnetURL: "magnet:?xt=urn:btih:" + c.InfoHash}, nil
	}
	return nil, errors.New("link is dead")
}

func (s *fakeInfos) GetByID(_ context.Context, id string) (*models.TorrentInfo, error) {
	if ti, ok := s.infos[id]; ok {
		return ti, nil
	}
	return nil, errors.New("infos expired")
}

func (s *fakeInfos) TorrentFile(_ context.Context, ti *models.TorrentInfo) ([]byte, error) {
	return s.files[ti.ID], nil
}

type fakeMeta struct{}

func (s *fakeMeta) GetMovieByID(_ context.Context, id string) (*meta.Meta, error) {
	return &meta.Meta{Name: "Movie", Year: 2020, ImdbID: id, Type: models.ContentTypeMovie}, nil
}

func (s *fakeMeta) GetEpisodeByID(_ context.Context, id string, season, episode int) (*meta.Meta, error) {
	return &meta.Meta{
		Name:    "Show",
		Year:    2011,
		ImdbID:  id,
		Type:    models.ContentTypeSeries,
		Season:  season,
		Episode: episode,
		Episodes: []meta.Episode{
			{Season: 1, Episode: 1},
			{Season: 1, Episode: 2},
			{Season: 1, Episode: 3},
		},
	}, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	cached    map[string]bool
	cacheErr  error
	progress  map[string]debrid.Progress
	files     []debrid.File
	downloads int
	magnets   []string
	hashes    []string
	buffers   [][]byte
}

func (s *fakeProvider) Meta() debrid.Meta {
	return debrid.Meta{ID: "fake", Name: "Fake", ShortName: "FK"}
}

func (s *fakeProvider) GetTorrentsCached(_ context.Context, infos []*models.TorrentInfo, isValid debrid.FilesPredicate) ([]*models.TorrentInfo, error) {
	if s.cacheErr != nil {
		return nil, s.cacheErr
	}
	var res []*models.TorrentInfo
	for _, ti := range infos {
		if s.cached[ti.InfoHash] && isValid.Match(ti, nil) {
			res = append(res, ti)
		}
	}
	return res, nil
}

func (s *fakeProvider) GetProgressTorrents(_ context.Context, _ []*models.TorrentInfo) (map[string]debrid.Progress, error) {
	return s.progress, nil
}

func (s *fakeProvider) GetFilesFromMagnet(_ context.Context, magnet string, _ string) ([]debrid.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.magnets = append(s.magnets, magnet)
	return append([]debrid.File(nil), s.files...), nil
}

func (s *fakeProvider) GetFilesFromHash(_ context.Context, infoHash string) ([]debrid.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes = append(s.hashes, infoHash)
	return append([]debrid.File(nil), s.files...), nil
}

func (s *fakeProvider) GetFilesFromBuffer(_ context.Context, b []byte, _ string) ([]debrid.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers = append(s.buffers, b)
	return append([]debrid.File(nil), s.files...), nil
}

func (s *fakeProvider) GetDownload(_ context.Context, f debrid.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	return "https://cdn.example/" + f.Name, nil
}

func (s *fakeProvider) GetUserHash() string {
	return "user"
}

func newTestResolver(t *testing.T, se Searcher, ir InfoResolver, fp *fakeProvider) (*Resolver, *Config) {
	t.Helper()
	cfg := DefaultConfig()
	reg := debrid.NewRegistry()
	if fp != nil {
		reg = debrid.NewRegistry(debrid.Descriptor{
			Meta: fp.Meta(),
			New: func(_ debrid.Options) debrid.Provider {
				return fp
			},
		})
	}
	r := New(cfg, se, ir, &fakeMeta{}, reg, cache.NewMemory(), NewSigner("secret"))
	t.Cleanup(r.Wait)
	return r, cfg
}

func input(t *testing.T, kv map[string]any) models.UserConfigInput {
	t.Helper()
	in := models.UserConfigInput{}
	for k, v := range kv {
		require.NoError(t, in.Set(k, v))
	}
	return in
}

func candidate(id, name, indexer string, seeders, quality int) models.Candidate {
	return models.Candidate{
		ID:        id,
		Name:      name,
		IndexerID: indexer,
		Size:      1 << 30,
		Seeders:   seeders,
		Quality:   quality,
	}
}

func info(id, hash string, private bool, files ...string) *models.TorrentInfo {
	ti := &models.TorrentInfo{ID: id, InfoHash: hash, Name: id, Private: private}
	if !private {
		ti.MagnetURL = "magnet:?xt=urn:btih:" + hash
	}
	for i, f := range files {
		ti.Files = append(ti.Files, models.TorrentFile{Name: f, Size: int64(1000 - i)})
	}
	return ti
}

var (
	movieIndexer  = jackett.Indexer{ID: "one", Movie: jackett.Searching{Available: true}}
	movieIndexer2 = jackett.Indexer{ID: "two", Movie: jackett.Searching{Available: true}}
	seriesIndexer = jackett.Indexer{ID: "one", Series: jackett.Searching{Available: true}}
)

func TestResolver_ListStreamsMovieWithoutDebrid(t *testing.T) {
	se := &fakeSearcher{
		indexers: []jackett.Indexer{movieIndexer, movieIndexer2},
		results: map[jackett.SearchType]map[string][]models.Candidate{
			jackett.SearchTypeMovie: {
				"one": {
					candidate("c1", "Movie 2020 1080p", "one", 10, 1080),
					candidate("c2", "Movie 2020 720p", "one", 50, 720),
					candidate("c3", "Movie 2020 CAM 1080p", "one", 100, 1080),
				},
				"two": {
					candidate("c4", "Movie 2020 2160p", "two", 200, 2160),
					candidate("c5", "Movie 2020 1080p REPACK", "two", 20, 1080),
				},
			},
		},
	}
	ir := &fakeInfos{infos: map[string]*models.TorrentInfo{
		"c1": info("c1", "h1", false, "movie.mkv"),
		"c2": info("c2", "h2", false, "sample.mkv", "movie.mkv"),
		"c3": info("c3", "h3", false, "movie.mkv"),
		"c4": info("c4", "h4", false, "movie.mkv"),
		"c5": info("c5", "h1", false, "movie.mkv"),
	}}
	r, _ := newTestResolver(t, se, ir, nil)

	res, err := r.ListStreams(context.Background(), input(t, map[string]any{
		"excludeKeywords": []string{"cam"},
	}), "movie", "tt1", "http://addon.example")
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "[P2P] Resolver 720p", res[0].Name)
	assert.Equal(t, "h2", res[0].InfoHash)
	assert.Equal(t, 0, res[0].FileIdx)
	assert.Empty(t, res[0].URL)
	assert.Contains(t, res[0].Title, "👥50")
	assert.Contains(t, res[0].Title, "⚙️one")

	assert.Equal(t, "[P2P] Resolver 1080p", res[1].Name)
	assert.Equal(t, "h1", res[1].InfoHash)
	assert.True(t, strings.HasPrefix(res[1].Title, "Movie 2020 1080p REPACK"))
}

func seriesSearcher() *fakeSearcher {
	return &fakeSearcher{
		indexers: []jackett.Indexer{seriesIndexer},
		results: map[jackett.SearchType]map[string][]models.Candidate{
			jackett.SearchTypeEpisode: {
				"one": {
					candidate("e1", "Show S01E02 1080p", "one", 5, 1080),
					candidate("e2", "Show S01E02 720p", "one", 30, 720),
				},
			},
			jackett.SearchTypeSeries: {
				"one": {
					candidate("p1", "Show S01 COMPLETE 1080p", "one", 100, 1080),
					candidate("p2", "Show S03 1080p", "one", 300, 1080),
				},
			},
		},
	}
}

func seriesInfos() *fakeInfos {
	return &fakeInfos{infos: map[string]*models.TorrentInfo{
		"e1": info("e1", "h1", false, "Show.S01E02.1080p.mkv"),
		"e2": info("e2", "h2", true, "Show.S01E02.720p.mkv"),
		"p1": info("p1", "hp", false, "Show.S01E01.mkv", "Show.S01E02.mkv"),
		"p2": info("p2", "hq", false, "Show.S03E01.mkv"),
	}}
}

func TestResolver_ListStreamsSeriesWithDebrid(t *testing.T) {
	fp := &fakeProvider{
		cached: map[string]bool{"hp": true},
		progress: map[string]debrid.Progress{
			"h1": {Percent: 42.4, Speed: 1 << 20},
			"hp": {Percent: 100},
		},
	}
	r, cfg := newTestResolver(t, seriesSearcher(), seriesInfos(), fp)
	require.NoError(t, cfg.SetPasskey("OPERATORKEY", ""))

	res, err := r.ListStreams(context.Background(), input(t, map[string]any{
		"debridId":     "fake",
		"debridApiKey": "key",
	}), "series", "tt1:1:2", "http://addon.example")
	require.NoError(t, err)
	require.Len(t, res, 3)

	p1, e2, e1 := res[0], res[1], res[2]

	assert.Equal(t, "[FK+] Resolver 1080p", p1.Name)
	assert.Contains(t, p1.Title, "\nShow.S01E02.mkv\n")
	assert.NotContains(t, p1.Title, "⬇️")
	require.True(t, strings.HasPrefix(p1.URL, "http://addon.example/download/"))
	ref, err := r.signer.Parse(strings.TrimPrefix(p1.URL, "http://addon.example/download/"))
	require.NoError(t, err)
	assert.Equal(t, "p1", ref.TorrentID)
	assert.Equal(t, "tt1:1:2", ref.StremioID)
	assert.Equal(t, "series", ref.Type)
	in, err := models.DecodeUserConfigInput(ref.Config)
	require.NoError(t, err)
	assert.Contains(t, in, "debridApiKey")

	assert.Equal(t, "[FK] Resolver 720p", e2.Name)
	assert.True(t, e2.Disabled)
	assert.Equal(t, "#", e2.URL)
	assert.Contains(t, e2.Title, "ℹ️ Uncached torrent require a passkey configuration")

	assert.Equal(t, "[FK] Resolver 1080p", e1.Name)
	assert.False(t, e1.Disabled)
	assert.Contains(t, e1.Title, "⬇️ 42% 1.0 MiB/s")
}

func TestResolver_ListStreamsExpiredAPIKey(t *testing.T) {
	fp := &fakeProvider{
		cacheErr: debrid.NewError("fake", debrid.KindExpiredAPIKey, errors.New("bad token")),
	}
	r, _ := newTestResolver(t, seriesSearcher(), seriesInfos(), fp)

	res, err := r.ListStreams(context.Background(), input(t, map[string]any{
		"debridId":     "fake",
		"debridApiKey": "key",
	}), "series", "tt1:1:2", "http://addon.example")
	require.NoError(t, err)
	require.NotEmpty(t, res)
	for _, e := range res {
		assert.True(t, e.Disabled)
		assert.Equal(t, "#", e.URL)
		assert.Contains(t, e.Title, "ℹ️ Unable to verify cache (+): Expired Debrid API Key.")
	}
}

func TestResolver_ListStreamsForcesPacks(t *testing.T) {
	se := seriesSearcher()
	se.results[jackett.SearchTypeSeries]["one"][0].Seeders = 1
	// dead links outranking every resolvable torrent
	se.results[jackett.SearchTypeEpisode]["one"] = append(se.results[jackett.SearchTypeEpisode]["one"],
		candidate("e3", "Show S01E02 1080p WEB", "one", 60, 1080),
		candidate("e4", "Show S01E02 720p WEB", "one", 50, 720),
	)
	// later in indexer order but better seeded, forcing keeps indexer order
	se.results[jackett.SearchTypeSeries]["one"] = append(se.results[jackett.SearchTypeSeries]["one"],
		candidate("p3", "Show Season 1 720p", "one", 3, 720),
	)
	ir := seriesInfos()
	ir.infos["p3"] = info("p3", "hr", false, "Show.S01E01.mkv", "Show.S01E02.mkv")
	r, _ := newTestResolver(t, se, ir, nil)

	res, err := r.ListStreams(context.Background(), input(t, map[string]any{
		"maxTorrents":          1,
		"priotizePackTorrents": 1,
	}), "series", "tt1:1:2", "http://addon.example")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "hp", res[0].InfoHash)
	assert.Equal(t, 1, res[0].FileIdx)
}

func TestResolver_NoTorrentInfos(t *testing.T) {
	r, _ := newTestResolver(t, seriesSearcher(), &fakeInfos{}, nil)
	_, err := r.ListStreams(context.Background(), input(t, nil), "series", "tt1:1:2", "http://addon.example")
	assert.ErrorIs(t, err, ErrNoTorrentInfos)
}

func TestResolver_IndexerTimeout(t *testing.T) {
	se := &fakeSearcher{
		indexers: []jackett.Indexer{movieIndexer, movieIndexer2},
		results: map[jackett.SearchType]map[string][]models.Candidate{
			jackett.SearchTypeMovie: {
				"one": {candidate("c1", "Movie 2020 1080p", "one", 10, 1080)},
			},
		},
		block: "two",
	}
	ir := &fakeInfos{infos: map[string]*models.TorrentInfo{"c1": info("c1", "h1", false, "movie.mkv")}}
	r, _ := newTestResolver(t, se, ir, nil)

	start := time.Now()
	res, err := r.ListStreams(context.Background(), input(t, map[string]any{
		"indexerTimeoutSec": 1,
	}), "movie", "tt1", "http://addon.example")
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResolver_SelectIndexers(t *testing.T) {
	se := &fakeSearcher{indexers: []jackett.Indexer{
		movieIndexer,
		{ID: "two", Series: jackett.Searching{Available: true}},
	}}
	r, _ := newTestResolver(t, se, &fakeInfos{}, nil)
	ctx := context.Background()

	res, err := r.selectIndexers(ctx, &models.UserConfig{Indexers: []string{"two"}}, true)
	require.NoError(t, err)
	assert.Equal(t, "two", res[0].ID)

	res, err = r.selectIndexers(ctx, &models.UserConfig{Indexers: []string{"two"}}, false)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "one", res[0].ID)

	se.indexers = []jackett.Indexer{{ID: "three"}}
	res, err = r.selectIndexers(ctx, &models.UserConfig{Indexers: []string{"all"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "three", res[0].ID)

	se.indexers = nil
	_, err = r.selectIndexers(ctx, &models.UserConfig{Indexers: []string{"all"}}, false)
	assert.ErrorIs(t, err, ErrNoIndexerConfigured)
}

func TestResolver_ResolveDownload(t *testing.T) {
	fp := &fakeProvider{files: []debrid.File{
		{Name: "sample.mkv", Size: 10},
		{Name: "Show.S01E01.mkv", Size: 900},
		{Name: "Show.S01E02.mkv", Size: 800},
	}}
	r, _ := newTestResolver(t, seriesSearcher(), seriesInfos(), fp)
	in := input(t, map[string]any{
		"debridId":     "fake",
		"debridApiKey": "key",
	})

	u, err := r.ResolveDownload(context.Background(), in, "series", "tt1:1:2", "p1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/Show.S01E02.mkv", u)
	assert.Equal(t, []string{"magnet:?xt=urn:btih:hp"}, fp.magnets)

	u, err = r.ResolveDownload(context.Background(), in, "series", "tt1:1:2", "p1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/Show.S01E02.mkv", u)
	assert.Equal(t, 1, fp.downloads)

	u, err = r.ResolveDownload(context.Background(), in, "movie", "tt1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/Show.S01E01.mkv", u)

	_, err = r.ResolveDownload(context.Background(), input(t, nil), "series", "tt1:1:2", "p1")
	assert.ErrorIs(t, err, ErrNoDebrid)

	_, err = r.ResolveDownload(context.Background(), in, "series", "tt1:1:2", "missing")
	assert.Error(t, err)
}

func TestResolver_ResolveDownloadPasskey(t *testing.T) {
	payload := privateTorrent(t, "http://tracker.example/OPERATORKEY/announce")
	files := []debrid.File{{Name: "Movie.2020.1080p.mkv", Size: 1000}}
	newResolver := func(t *testing.T) (*Resolver, *fakeProvider) {
		fp := &fakeProvider{files: files}
		ir := &fakeInfos{
			infos: map[string]*models.TorrentInfo{"m1": info("m1", "hm", true)},
			files: map[string][]byte{"m1": payload},
		}
		r, cfg := newTestResolver(t, &fakeSearcher{}, ir, fp)
		require.NoError(t, cfg.SetPasskey("OPERATORKEY", ""))
		return r, fp
	}
	base := map[string]any{"debridId": "fake", "debridApiKey": "key"}
	with := func(k string, v any) map[string]any {
		m := map[string]any{k: v}
		for bk, bv := range base {
			m[bk] = bv
		}
		return m
	}

	t.Run("rewritten", func(t *testing.T) {
		r, fp := newResolver(t)
		_, err := r.ResolveDownload(context.Background(), input(t, with("passkey", "userkey")), "movie", "tt1", "m1")
		require.NoError(t, err)
		require.Len(t, fp.buffers, 1)
		assert.Contains(t, string(fp.buffers[0]), "userkey")
		assert.NotContains(t, string(fp.buffers[0]), "OPERATORKEY")
	})
	t.Run("invalid", func(t *testing.T) {
		r, fp := newResolver(t)
		_, err := r.ResolveDownload(context.Background(), input(t, with("passkey", "bad/key")), "movie", "tt1", "m1")
		assert.ErrorIs(t, err, ErrInvalidPasskey)
		assert.Empty(t, fp.buffers)
	})
	t.Run("missing", func(t *testing.T) {
		r, fp := newResolver(t)
		_, err := r.ResolveDownload(context.Background(), input(t, base), "movie", "tt1", "m1")
		require.NoError(t, err)
		assert.Equal(t, []string{"hm"}, fp.hashes)
		assert.Empty(t, fp.buffers)
	})
}

const lockIndexersXML = `<?xml version="1.0" encoding="UTF-8"?>
<indexers>
  <indexer id="tracker" configured="true">
    <title>Tracker</title>
    <caps>
      <searching>
        <movie-search available="yes" supportedParams="q" />
      </searching>
    </caps>
  </indexer>
</indexers>`

const lockSearchXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Movie 2020 1080p</title>
      <guid>https://tracker.example/details/1</guid>
      <jackettindexer id="tracker">Tracker</jackettindexer>
      <link>http://jackett/dl/tracker/1</link>
      <torznab:attr name="seeders" value="10" />
      <torznab:attr name="infohash" value="0123456789abcdef0123456789abcdef01234567" />
    </item>
  </channel>
</rss>`

func TestResolver_ConcurrentListStreamsSearchOnce(t *testing.T) {
	var searches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") == "indexers" {
			_, _ = w.Write([]byte(lockIndexersXML))
			return
		}
		atomic.AddInt32(&searches, 1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(lockSearchXML))
	}))
	defer srv.Close()

	se := jackett.NewClient(srv.Client(), srv.URL, "key", cache.NewMemory())
	r, _ := newTestResolver(t, se, &fakeInfos{auto: true}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.ListStreams(context.Background(), input(t, nil), "movie", "tt1", "http://addon.example")
			if assert.NoError(t, err) {
				assert.Len(t, res, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&searches))
	assert.False(t, r.searches.held("tt1"))
}

func TestResolver_ResolveDownloadForcesNextEpisode(t *testing.T) {
	for _, force := range []bool{true, false} {
		fp := &fakeProvider{files: []debrid.File{{Name: "Show.S01E02.1080p.mkv", Size: 800}}}
		r, _ := newTestResolver(t, seriesSearcher(), seriesInfos(), fp)
		u, err := r.ResolveDownload(context.Background(), input(t, map[string]any{
			"debridId":              "fake",
			"debridApiKey":          "key",
			"forceCacheNextEpisode": force,
		}), "series", "tt1:1:2", "e1")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/Show.S01E02.1080p.mkv", u)
		r.Wait()

		fp.mu.Lock()
		if force {
			assert.ElementsMatch(t, []string{"magnet:?xt=urn:btih:h1", "magnet:?xt=urn:btih:hp"}, fp.magnets)
		} else {
			assert.Equal(t, []string{"magnet:?xt=urn:btih:h1"}, fp.magnets)
		}
		fp.mu.Unlock()
	}
}

func titleNames(es []models.StreamEntry) []string {
	var res []string
	for _, e := range es {
		res = append(res, strings.SplitN(e.Title, "\n", 2)[0])
	}
	return res
}

func TestResolver_ListStreamsSortsCachedAndUncached(t *testing.T) {
	sized := func(c models.Candidate, size int64) models.Candidate {
		c.Size = size
		return c
	}
	se := &fakeSearcher{
		indexers: []jackett.Indexer{movieIndexer},
		results: map[jackett.SearchType]map[string][]models.Candidate{
			jackett.SearchTypeMovie: {
				"one": {
					sized(candidate("c1", "Movie A 720p", "one", 100, 720), 5<<30),
					sized(candidate("c2", "Movie B 1080p", "one", 1, 1080), 2<<30),
					candidate("c3", "Movie C 1080p", "one", 10, 1080),
					candidate("c4", "Movie D 720p", "one", 50, 720),
					candidate("c5", "Movie E", "one", 20, 0),
				},
			},
		},
	}
	ir := &fakeInfos{infos: map[string]*models.TorrentInfo{
		"c1": info("c1", "h1", false, "a.mkv"),
		"c2": info("c2", "h2", false, "b.mkv"),
		"c3": info("c3", "h3", false, "c.mkv"),
		"c4": info("c4", "h4", false, "d.mkv"),
		"c5": info("c5", "h5", false, "e.mkv"),
	}}
	base := map[string]any{"debridId": "fake", "debridApiKey": "key"}

	for _, tc := range []struct {
		name   string
		extra  map[string]any
		expect []string
	}{
		{
			name:   "defaults",
			expect: []string{"Movie B 1080p", "Movie A 720p", "Movie D 720p", "Movie E", "Movie C 1080p"},
		},
		{
			name: "custom",
			extra: map[string]any{
				"sortCached":   []models.SortKey{{Field: models.SortFieldSize, Desc: true}},
				"sortUncached": []models.SortKey{{Field: models.SortFieldQuality, Desc: true}, {Field: models.SortFieldSeeders}},
			},
			expect: []string{"Movie A 720p", "Movie B 1080p", "Movie C 1080p", "Movie D 720p", "Movie E"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fp := &fakeProvider{cached: map[string]bool{"h1": true, "h2": true}}
			r, _ := newTestResolver(t, se, ir, fp)
			kv := map[string]any{}
			for k, v := range base {
				kv[k] = v
			}
			for k, v := range tc.extra {
				kv[k] = v
			}
			res, err := r.ListStreams(context.Background(), input(t, kv), "movie", "tt1", "http://addon.example")
			require.NoError(t, err)
			assert.Equal(t, tc.expect, titleNames(res))
			for i, e := range res {
				assert.Equal(t, i < 2, strings.HasPrefix(e.Name, "[FK+]"), e.Name)
			}
		})
	}
}

func TestResolver_ConcurrentResolveDownloadSubmitsOnce(t *testing.T) {
	fp := &fakeProvider{files: []debrid.File{
		{Name: "Show.S01E01.mkv", Size: 900},
		{Name: "Show.S01E02.mkv", Size: 800},
	}}
	r, _ := newTestResolver(t, seriesSearcher(), seriesInfos(), fp)
	in := input(t, map[string]any{
		"debridId":     "fake",
		"debridApiKey": "key",
	})

	const n = 8
	urls := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := r.ResolveDownload(context.Background(), in.Clone(), "series", "tt1:1:2", "p1")
			if assert.NoError(t, err) {
				urls[i] = u
			}
		}(i)
	}
	wg.Wait()

	for _, u := range urls {
		assert.Equal(t, "https://cdn.example/Show.S01E02.mkv", u)
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Len(t, fp.magnets, 1)
	assert.Equal(t, 1, fp.downloads)
}
