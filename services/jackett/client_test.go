package jackett

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webtor-io/stremio-resolver/services/cache"
)

const searchXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Movie.X.2020.1080p.FRENCH.WEB-DL</title>
      <guid>https://tracker.example/details/1</guid>
      <jackettindexer id="tracker">Tracker</jackettindexer>
      <type>private</type>
      <size>2147483648</size>
      <link>http://jackett/dl/tracker/?jackett_apikey=abc&amp;path=1</link>
      <torznab:attr name="seeders" value="42" />
      <torznab:attr name="peers" value="50" />
      <torznab:attr name="infohash" value="ABCDEF0123456789ABCDEF0123456789ABCDEF01" />
    </item>
    <item>
      <title>Movie X 2020 DVDRip</title>
      <guid>https://tracker.example/details/2</guid>
      <jackettindexer id="tracker">Tracker</jackettindexer>
      <link>magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567</link>
    </item>
  </channel>
</rss>`

const indexersXML = `<?xml version="1.0" encoding="UTF-8"?>
<indexers>
  <indexer id="tracker" configured="true">
    <title>Tracker</title>
    <language>fr-FR</language>
    <type>private</type>
    <caps>
      <searching>
        <search available="yes" supportedParams="q" />
        <tv-search available="yes" supportedParams="q,season,ep" />
        <movie-search available="no" supportedParams="q" />
      </searching>
      <categories>
        <category id="2000" name="Movies" />
        <category id="5000" name="TV" />
      </categories>
    </caps>
  </indexer>
</indexers>`

func TestClient_SearchMovie(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/api/v2.0/indexers/tracker/results/torznab/api", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "movie", q.Get("t"))
		assert.Equal(t, "Movie X", q.Get("q"))
		assert.Equal(t, "2020", q.Get("year"))
		assert.Equal(t, "key", q.Get("apikey"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(searchXML))
	}))
	defer srv.Close()

	s := NewClient(srv.Client(), srv.URL, "key", cache.NewMemory())
	res, err := s.Search(context.Background(), SearchTypeMovie, Query{Indexer: "tracker", Name: "Movie X", Year: 2020})
	require.NoError(t, err)
	require.Len(t, res, 2)

	c := res[0]
	assert.Len(t, c.ID, 40)
	assert.Equal(t, "tracker", c.IndexerID)
	assert.Equal(t, int64(2147483648), c.Size)
	assert.Equal(t, 42, c.Seeders)
	assert.Equal(t, 50, c.Peers)
	assert.Equal(t, 1080, c.Quality)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", c.InfoHash)
	assert.Contains(t, c.Languages, "french")

	c = res[1]
	assert.Equal(t, int64(-1), c.Size)
	assert.Equal(t, 0, c.Seeders)
	assert.Equal(t, 0, c.Quality)
	assert.NotEqual(t, res[0].ID, c.ID)

	_, err = s.Search(context.Background(), SearchTypeMovie, Query{Indexer: "tracker", Name: "Movie X", Year: 2020})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_SearchEpisodeQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tvsearch", q.Get("t"))
		assert.Equal(t, "Show S02E05", q.Get("q"))
		_, _ = w.Write([]byte(`<rss><channel></channel></rss>`))
	}))
	defer srv.Close()

	s := NewClient(srv.Client(), srv.URL, "key", cache.NewMemory())
	res, err := s.Search(context.Background(), SearchTypeEpisode, Query{Name: "Show", Season: 2, Episode: 5})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestClient_ErrorIsRedacted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><error code="100" description="Invalid API Key" />`))
	}))
	defer srv.Close()

	s := NewClient(srv.Client(), srv.URL, "secretkey", cache.NewMemory())
	_, err := s.Search(context.Background(), SearchTypeSeries, Query{Name: "Show"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API Key")
	assert.Contains(t, err.Error(), "apikey=****")
	assert.NotContains(t, err.Error(), "secretkey")
}

func TestClient_Indexers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "indexers", r.URL.Query().Get("t"))
		assert.Equal(t, "true", r.URL.Query().Get("configured"))
		_, _ = w.Write([]byte(indexersXML))
	}))
	defer srv.Close()

	s := NewClient(srv.Client(), srv.URL, "key", cache.NewMemory())
	res, err := s.Indexers(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)
	i := res[0]
	assert.Equal(t, "tracker", i.ID)
	assert.True(t, i.Configured)
	assert.Equal(t, []int{CategoryMovie, CategorySeries}, i.Categories)
	assert.False(t, i.Supports(false))
	assert.True(t, i.Supports(true))
	assert.Equal(t, []string{"q", "season", "ep"}, i.Series.SupportedParams)
}
