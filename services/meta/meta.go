package meta

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
)

const (
	metaProviderFlag    = "meta-provider"
	cinemetaURLFlag     = "cinemeta-url"
	tmdbURLFlag         = "tmdb-url"
	tmdbAccessTokenFlag = "tmdb-access-token"
)

const (
	ProviderCinemeta = "cinemeta"
	ProviderTMDB     = "tmdb"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   metaProviderFlag,
			Usage:  "metadata provider (cinemeta or tmdb)",
			Value:  ProviderCinemeta,
			EnvVar: "META_PROVIDER",
		},
		cli.StringFlag{
			Name:   cinemetaURLFlag,
			Usage:  "cinemeta base url",
			Value:  "https://v3-cinemeta.strem.io",
			EnvVar: "CINEMETA_URL",
		},
		cli.StringFlag{
			Name:   tmdbURLFlag,
			Usage:  "tmdb api base url",
			Value:  "https://api.themoviedb.org",
			EnvVar: "TMDB_URL",
		},
		cli.StringFlag{
			Name:   tmdbAccessTokenFlag,
			Usage:  "tmdb api read access token",
			EnvVar: "TMDB_ACCESS_TOKEN",
		},
	)
}

type Episode struct {
	Season    int    `json:"season"`
	Episode   int    `json:"episode"`
	StremioID string `json:"stremioId"`
}

type Meta struct {
	Name      string             `json:"name"`
	Year      int                `json:"year"`
	ImdbID    string             `json:"imdbId"`
	Type      models.ContentType `json:"type"`
	StremioID string             `json:"stremioId"`
	ID        string             `json:"id"`
	Season    int                `json:"season,omitempty"`
	Episode   int                `json:"episode,omitempty"`
	Episodes  []Episode          `json:"episodes,omitempty"`
}

// NextEpisode returns the episode listed right after the requested one.
func (m *Meta) NextEpisode() *Episode {
	for i, e := range m.Episodes {
		if e.Season == m.Season && e.Episode == m.Episode {
			if i+1 < len(m.Episodes) {
				return &m.Episodes[i+1]
			}
			return nil
		}
	}
	return nil
}

type Resolver interface {
	GetMovieByID(ctx context.Context, id string) (*Meta, error)
	GetEpisodeByID(ctx context.Context, id string, season, episode int) (*Meta, error)
}

// Get dispatches on the request type.
func Get(ctx context.Context, r Resolver, req *models.MediaRequest) (*Meta, error) {
	if req.IsSeries() {
		return r.GetEpisodeByID(ctx, req.ID, req.Season, req.Episode)
	}
	return r.GetMovieByID(ctx, req.ID)
}

func New(c *cli.Context, cl *http.Client, ch cache.Cache) (Resolver, error) {
	p := c.String(metaProviderFlag)
	log.WithField("provider", p).Info("setting up meta resolver")
	switch p {
	case ProviderCinemeta:
		return NewCinemeta(cl, c.String(cinemetaURLFlag), ch), nil
	case ProviderTMDB:
		token := c.String(tmdbAccessTokenFlag)
		if token == "" {
			return nil, errors.New("tmdb access token is not configured")
		}
		return NewTMDB(cl, c.String(tmdbURLFlag), token, ch), nil
	default:
		return nil, errors.Errorf("unknown meta provider %v", p)
	}
}
