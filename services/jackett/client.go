package jackett

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/webtor-io/lazymap"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"github.com/webtor-io/stremio-resolver/services/common"
)

const (
	jackettURLFlag    = "jackett-url"
	jackettAPIKeyFlag = "jackett-api-key"
)

const (
	searchTTL      = 36 * time.Hour
	emptySearchTTL = 60 * time.Second
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   jackettURLFlag,
			Usage:  "jackett base url",
			Value:  "http://localhost:9117",
			EnvVar: "JACKETT_URL",
		},
		cli.StringFlag{
			Name:   jackettAPIKeyFlag,
			Usage:  "jackett api key",
			EnvVar: "JACKETT_API_KEY",
		},
	)
}

type Client struct {
	cl       *http.Client
	url      string
	apiKey   string
	cache    cache.Cache
	indexers *lazymap.LazyMap[[]Indexer]
}

func New(c *cli.Context, cl *http.Client, ch cache.Cache) *Client {
	u := c.String(jackettURLFlag)
	log.Infof("jackett endpoint %v", u)
	return NewClient(cl, u, c.String(jackettAPIKeyFlag), ch)
}

func NewClient(cl *http.Client, u string, apiKey string, ch cache.Cache) *Client {
	return &Client{
		cl:     cl,
		url:    strings.TrimRight(u, "/"),
		apiKey: apiKey,
		cache:  ch,
		indexers: lazymap.New[[]Indexer](&lazymap.Config{
			Expire:      10 * time.Minute,
			ErrorExpire: 10 * time.Second,
		}),
	}
}

func (s *Client) request(ctx context.Context, indexer string, q url.Values) ([]byte, error) {
	q.Set("apikey", s.apiKey)
	u := fmt.Sprintf("%v/api/v2.0/indexers/%v/results/torznab/api?%v", s.url, url.PathEscape(indexer), q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	resp, err := s.cl.Do(req)
	if err != nil {
		// url.Error carries the full query string
		return nil, errors.Errorf("jackett request %v failed: %v", common.RedactURL(u), common.RedactURL(err.Error()))
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if e := parseError(body); e != nil {
		return nil, errors.Errorf("jackett api %v: %v", common.RedactURL(u), e.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("jackett api %v: unexpected status %v", common.RedactURL(u), resp.StatusCode)
	}
	return body, nil
}

func parseError(body []byte) *apiError {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		if i := bytes.Index(trimmed, []byte("?>")); i >= 0 {
			trimmed = bytes.TrimSpace(trimmed[i+2:])
		}
	}
	if !bytes.HasPrefix(trimmed, []byte("<error")) {
		return nil
	}
	var e apiError
	if err := xml.Unmarshal(trimmed, &e); err != nil {
		return &apiError{Description: string(trimmed)}
	}
	if e.Description == "" {
		e.Description = "code " + e.Code
	}
	return &e
}

func searchKey(t SearchType, q *Query) string {
	k := fmt.Sprintf("jackettItems:2:%v:%v:%v:%v", t, q.Indexer, q.Name, q.Year)
	switch t {
	case SearchTypeSeason:
		k += fmt.Sprintf(":%v", q.Season)
	case SearchTypeEpisode:
		k += fmt.Sprintf(":%v:%v", q.Season, q.Episode)
	}
	return k
}

func searchParams(t SearchType, q *Query) url.Values {
	v := url.Values{}
	switch t {
	case SearchTypeMovie:
		v.Set("t", "movie")
		v.Set("q", q.Name)
		if q.Year > 0 {
			v.Set("year", strconv.Itoa(q.Year))
		}
	case SearchTypeSeries:
		v.Set("t", "tvsearch")
		v.Set("q", q.Name)
	case SearchTypeSeason:
		v.Set("t", "tvsearch")
		v.Set("q", fmt.Sprintf("%v S%v", q.Name, common.NumberPad(q.Season)))
	case SearchTypeEpisode:
		v.Set("t", "tvsearch")
		v.Set("q", fmt.Sprintf("%v S%vE%v", q.Name, common.NumberPad(q.Season), common.NumberPad(q.Episode)))
	}
	return v
}

// Search runs one torznab query. Raw items are cached for a long time
// when non empty and briefly otherwise.
func (s *Client) Search(ctx context.Context, t SearchType, q Query) ([]models.Candidate, error) {
	if q.Indexer == "" {
		q.Indexer = "all"
	}
	ttl := func(items []Item) time.Duration {
		if len(items) > 0 {
			return searchTTL
		}
		return emptySearchTTL
	}
	items, err := cache.Remember(ctx, s.cache, searchKey(t, &q), ttl, func() ([]Item, error) {
		body, err := s.request(ctx, q.Indexer, searchParams(t, &q))
		if err != nil {
			return nil, err
		}
		var r rss
		if err := xml.Unmarshal(body, &r); err != nil {
			return nil, errors.Wrap(err, "failed to parse torznab response")
		}
		return r.Channel.Items, nil
	})
	if err != nil {
		return nil, err
	}
	res := make([]models.Candidate, 0, len(items))
	for i := range items {
		res = append(res, normalize(&items[i]))
	}
	log.WithFields(log.Fields{
		"type":    t,
		"indexer": q.Indexer,
		"name":    q.Name,
		"count":   len(res),
	}).Debug("jackett search done")
	return res, nil
}

var qualityR = regexp.MustCompile(`(2160|1080|720|480|360)p`)

func parseInt(s string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func normalize(item *Item) models.Candidate {
	h := sha1.Sum([]byte(item.GUID))
	quality := 0
	if m := qualityR.FindStringSubmatch(item.Title); m != nil {
		quality, _ = strconv.Atoi(m[1])
	}
	words := strings.Join(common.ParseWords(strings.ToLower(item.Title)), " ")
	return models.Candidate{
		ID:        hex.EncodeToString(h[:]),
		Name:      item.Title,
		GUID:      item.GUID,
		IndexerID: item.Indexer.ID,
		Size:      parseInt(item.Size, -1),
		Link:      item.Link,
		Seeders:   int(parseInt(item.attr("seeders"), 0)),
		Peers:     int(parseInt(item.attr("peers"), 0)),
		InfoHash:  strings.ToLower(item.attr("infohash")),
		MagnetURL: item.attr("magneturl"),
		Type:      item.Type,
		Quality:   quality,
		Languages: models.DetectLanguages(words),
	}
}

// Indexers lists configured indexers with their search capabilities.
func (s *Client) Indexers(ctx context.Context) ([]Indexer, error) {
	return s.indexers.Get("all", func() ([]Indexer, error) {
		return retry.DoWithData(
			func() ([]Indexer, error) {
				return s.getIndexers(ctx)
			},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(500*time.Millisecond),
			retry.LastErrorOnly(true),
		)
	})
}

func (s *Client) getIndexers(ctx context.Context) ([]Indexer, error) {
	body, err := s.request(ctx, "all", url.Values{"t": {"indexers"}, "configured": {"true"}})
	if err != nil {
		return nil, err
	}
	var r indexersResponse
	if err := xml.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrap(err, "failed to parse indexers response")
	}
	res := make([]Indexer, 0, len(r.Indexers))
	for _, ri := range r.Indexers {
		cats := make([]int, 0, len(ri.Caps.Categories.Category))
		for _, c := range ri.Caps.Categories.Category {
			cats = append(cats, c.ID)
		}
		res = append(res, Indexer{
			ID:         ri.ID,
			Configured: ri.Configured == "true",
			Title:      ri.Title,
			Language:   ri.Language,
			Type:       ri.Type,
			Categories: cats,
			Movie:      toSearching(ri.Caps.Searching.Movie),
			Series:     toSearching(ri.Caps.Searching.Series),
		})
	}
	return res, nil
}

func toSearching(c searchCaps) Searching {
	var params []string
	if c.SupportedParams != "" {
		params = strings.Split(c.SupportedParams, ",")
	}
	return Searching{
		Available:       c.Available == "yes",
		SupportedParams: params,
	}
}
