package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"golang.org/x/sync/singleflight"
)

type tmdbFindResult struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

type tmdbFindResponse struct {
	MovieResults []tmdbFindResult `json:"movie_results"`
	TvResults    []tmdbFindResult `json:"tv_results"`
}

type tmdbSeason struct {
	SeasonNumber int `json:"season_number"`
	EpisodeCount int `json:"episode_count"`
}

type tmdbTvResponse struct {
	Name         string       `json:"name"`
	FirstAirDate string       `json:"first_air_date"`
	Seasons      []tmdbSeason `json:"seasons"`
}

type TMDB struct {
	cl    *http.Client
	url   string
	token string
	cache cache.Cache
	sf    singleflight.Group
}

var _ Resolver = (*TMDB)(nil)

func NewTMDB(cl *http.Client, url string, token string, ch cache.Cache) *TMDB {
	return &TMDB{
		cl:    cl,
		url:   strings.TrimRight(url, "/"),
		token: token,
		cache: ch,
	}
}

func (s *TMDB) get(ctx context.Context, path string, q url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url+path, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	log.WithField("path", path).Debug("tmdb request")
	resp, err := s.cl.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("invalid tmdb api result status=%v body=%v", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (s *TMDB) find(ctx context.Context, imdbID string) (*tmdbFindResponse, error) {
	key := "tmdb:searchId:" + imdbID
	v, err, _ := s.sf.Do(key, func() (any, error) {
		ctx, cancel := sharedContext(ctx)
		defer cancel()
		return cache.Remember(ctx, s.cache, key, cache.Fixed[*tmdbFindResponse](metaTTL), func() (*tmdbFindResponse, error) {
			var r tmdbFindResponse
			err := s.get(ctx, "/3/find/"+imdbID, url.Values{"external_source": {"imdb_id"}}, &r)
			return &r, err
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*tmdbFindResponse), nil
}

func (s *TMDB) GetMovieByID(ctx context.Context, id string) (*Meta, error) {
	f, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(f.MovieResults) == 0 {
		return nil, errors.Errorf("meta not found for movie %v", id)
	}
	m := f.MovieResults[0]
	name := m.OriginalTitle
	if name == "" {
		name = m.Title
	}
	return &Meta{
		Name:      name,
		Year:      models.ParseYear(m.ReleaseDate),
		ImdbID:    id,
		Type:      models.ContentTypeMovie,
		StremioID: id,
		ID:        id,
	}, nil
}

func (s *TMDB) GetEpisodeByID(ctx context.Context, id string, season, episode int) (*Meta, error) {
	f, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(f.TvResults) == 0 {
		return nil, errors.Errorf("meta not found for series %v", id)
	}
	key := "tmdb:" + id
	v, err, _ := s.sf.Do(key, func() (any, error) {
		ctx, cancel := sharedContext(ctx)
		defer cancel()
		return cache.Remember(ctx, s.cache, key, cache.Fixed[*tmdbTvResponse](metaTTL), func() (*tmdbTvResponse, error) {
			var r tmdbTvResponse
			err := s.get(ctx, fmt.Sprintf("/3/tv/%v", f.TvResults[0].ID), url.Values{"language": {"en-US"}}, &r)
			return &r, err
		})
	})
	if err != nil {
		return nil, err
	}
	tv := v.(*tmdbTvResponse)
	var episodes []Episode
	for _, se := range tv.Seasons {
		for e := 1; e <= se.EpisodeCount; e++ {
			episodes = append(episodes, Episode{
				Season:    se.SeasonNumber,
				Episode:   e,
				StremioID: fmt.Sprintf("%v:%v:%v", id, se.SeasonNumber, e),
			})
		}
	}
	return &Meta{
		Name:      tv.Name,
		Year:      models.ParseYear(tv.FirstAirDate),
		ImdbID:    id,
		Type:      models.ContentTypeSeries,
		StremioID: fmt.Sprintf("%v:%v:%v", id, season, episode),
		ID:        id,
		Season:    season,
		Episode:   episode,
		Episodes:  episodes,
	}, nil
}
