package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"golang.org/x/sync/singleflight"
)

const (
	metaTTL = 3 * time.Hour
	// collapsed fetches outlive the caller that started them
	sharedFetchTimeout = 30 * time.Second
)

func sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
}

type cinemetaVideo struct {
	ID      string `json:"id"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
	Number  int    `json:"number"`
}

type cinemetaMeta struct {
	Name        string          `json:"name"`
	ReleaseInfo string          `json:"releaseInfo"`
	Year        json.RawMessage `json:"year"`
	ImdbID      string          `json:"imdb_id"`
	Videos      []cinemetaVideo `json:"videos"`
}

type cinemetaResponse struct {
	Meta *cinemetaMeta `json:"meta"`
}

type Cinemeta struct {
	cl    *http.Client
	url   string
	cache cache.Cache
	sf    singleflight.Group
}

var _ Resolver = (*Cinemeta)(nil)

func NewCinemeta(cl *http.Client, url string, ch cache.Cache) *Cinemeta {
	return &Cinemeta{
		cl:    cl,
		url:   strings.TrimRight(url, "/"),
		cache: ch,
	}
}

func (s *Cinemeta) fetch(ctx context.Context, t models.ContentType, id string) (*cinemetaMeta, error) {
	key := fmt.Sprintf("cinemeta:%v:%v", t, id)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		ctx, cancel := sharedContext(ctx)
		defer cancel()
		return cache.Remember(ctx, s.cache, key, cache.Fixed[*cinemetaResponse](metaTTL), func() (*cinemetaResponse, error) {
			return s.request(ctx, fmt.Sprintf("/meta/%v/%v.json", t, id))
		})
	})
	if err != nil {
		return nil, err
	}
	r := v.(*cinemetaResponse)
	if r.Meta == nil {
		return nil, errors.Errorf("meta not found for %v %v", t, id)
	}
	return r.Meta, nil
}

func (s *Cinemeta) request(ctx context.Context, path string) (*cinemetaResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	log.WithField("url", req.URL.String()).Debug("cinemeta request")
	resp, err := s.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("invalid cinemeta api result status=%v body=%v", resp.StatusCode, string(body))
	}
	var r cinemetaResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &r, nil
}

func (s *Cinemeta) GetMovieByID(ctx context.Context, id string) (*Meta, error) {
	m, err := s.fetch(ctx, models.ContentTypeMovie, id)
	if err != nil {
		return nil, err
	}
	year := models.ParseYear(m.ReleaseInfo)
	if year == 0 {
		year = models.ParseYear(strings.Trim(string(m.Year), `"`))
	}
	return &Meta{
		Name:      m.Name,
		Year:      year,
		ImdbID:    m.ImdbID,
		Type:      models.ContentTypeMovie,
		StremioID: id,
		ID:        id,
	}, nil
}

func (s *Cinemeta) GetEpisodeByID(ctx context.Context, id string, season, episode int) (*Meta, error) {
	m, err := s.fetch(ctx, models.ContentTypeSeries, id)
	if err != nil {
		return nil, err
	}
	episodes := make([]Episode, 0, len(m.Videos))
	for _, v := range m.Videos {
		n := v.Number
		if n == 0 {
			n = v.Episode
		}
		episodes = append(episodes, Episode{
			Season:    v.Season,
			Episode:   n,
			StremioID: v.ID,
		})
	}
	return &Meta{
		Name:      m.Name,
		Year:      models.ParseYear(m.ReleaseInfo),
		ImdbID:    m.ImdbID,
		Type:      models.ContentTypeSeries,
		StremioID: fmt.Sprintf("%v:%v:%v", id, season, episode),
		ID:        id,
		Season:    season,
		Episode:   episode,
		Episodes:  episodes,
	}, nil
}
