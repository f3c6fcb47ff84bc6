package meta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
)

func TestCinemeta_GetEpisodeByID(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		require.Equal(t, "/meta/series/tt0903747.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"meta":{"name":"Breaking Bad","releaseInfo":"2008-2013","imdb_id":"tt0903747","videos":[
			{"id":"tt0903747:1:1","season":1,"number":1},
			{"id":"tt0903747:1:2","season":1,"number":2},
			{"id":"tt0903747:2:1","season":2,"number":1}
		]}}`))
	}))
	defer srv.Close()

	s := NewCinemeta(srv.Client(), srv.URL, cache.NewMemory())
	m, err := s.GetEpisodeByID(context.Background(), "tt0903747", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", m.Name)
	assert.Equal(t, 2008, m.Year)
	assert.Equal(t, models.ContentTypeSeries, m.Type)
	assert.Equal(t, "tt0903747:1:2", m.StremioID)
	require.Len(t, m.Episodes, 3)

	next := m.NextEpisode()
	require.NotNil(t, next)
	assert.Equal(t, 2, next.Season)
	assert.Equal(t, 1, next.Episode)

	_, err = s.GetEpisodeByID(context.Background(), "tt0903747", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCinemeta_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewCinemeta(srv.Client(), srv.URL, cache.NewMemory())
	_, err := s.GetMovieByID(context.Background(), "tt0000001")
	require.Error(t, err)
}

func TestTMDB_GetEpisodeByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/3/find/tt0903747":
			assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))
			_, _ = w.Write([]byte(`{"movie_results":[],"tv_results":[{"id":1396}]}`))
		case "/3/tv/1396":
			_, _ = w.Write([]byte(`{"name":"Breaking Bad","first_air_date":"2008-01-20","seasons":[
				{"season_number":1,"episode_count":2},{"season_number":2,"episode_count":1}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewTMDB(srv.Client(), srv.URL, "token", cache.NewMemory())
	m, err := s.GetEpisodeByID(context.Background(), "tt0903747", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2008, m.Year)
	assert.Equal(t, []Episode{
		{Season: 1, Episode: 1, StremioID: "tt0903747:1:1"},
		{Season: 1, Episode: 2, StremioID: "tt0903747:1:2"},
		{Season: 2, Episode: 1, StremioID: "tt0903747:2:1"},
	}, m.Episodes)

	_, err = s.GetMovieByID(context.Background(), "tt0903747")
	require.Error(t, err)
}

func TestCinemeta_SharedFetchSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			close(started)
		}
		<-release
		_, _ = w.Write([]byte(`{"meta":{"name":"Heat","releaseInfo":"1995","imdb_id":"tt0113277"}}`))
	}))
	defer srv.Close()

	s := NewCinemeta(srv.Client(), srv.URL, cache.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		m   *Meta
		err error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)
	go func() {
		m, err := s.GetMovieByID(ctx, "tt0113277")
		first <- result{m, err}
	}()
	<-started
	go func() {
		m, err := s.GetMovieByID(context.Background(), "tt0113277")
		second <- result{m, err}
	}()
	cancel()
	close(release)

	for _, ch := range []chan result{first, second} {
		r := <-ch
		require.NoError(t, r.err)
		assert.Equal(t, "Heat", r.m.Name)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
