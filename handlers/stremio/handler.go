package stremio

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/debrid"
	"github.com/webtor-io/stremio-resolver/services/resolver"
	"github.com/webtor-io/stremio-resolver/services/stremio"
)

type Resolver interface {
	ListStreams(ctx context.Context, in models.UserConfigInput, contentType string, stremioID string, publicURL string) ([]models.StreamEntry, error)
	ResolveDownload(ctx context.Context, in models.UserConfigInput, contentType string, stremioID string, torrentID string) (string, error)
	Config() *resolver.Config
}

type Handler struct {
	rs     Resolver
	sg     *resolver.Signer
	reg    *debrid.Registry
	domain string
}

// RegisterHandler mounts the addon routes. domain overrides the public
// base url derived from the request when not empty.
func RegisterHandler(r *gin.Engine, rs Resolver, sg *resolver.Signer, reg *debrid.Registry, domain string) {
	h := &Handler{
		rs:     rs,
		sg:     sg,
		reg:    reg,
		domain: strings.TrimRight(domain, "/"),
	}

	gr := r.Group("")
	gr.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"*"},
	}))
	gr.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/configure")
	})
	gr.GET("/configure", h.configure)
	gr.GET("/download/*reference", h.download)
	gr.GET("/:userConfig/manifest.json", h.manifest)
	gr.GET("/:userConfig/stream/:type/:id", h.stream)
}

func (s *Handler) publicURL(c *gin.Context) string {
	if s.domain != "" {
		return s.domain
	}
	scheme := "https"
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	} else if strings.HasPrefix(c.Request.Host, "localhost") || strings.HasPrefix(c.Request.Host, "127.0.0.1") {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host
}

func (s *Handler) userConfig(c *gin.Context, encoded string) (models.UserConfigInput, error) {
	in, err := models.DecodeUserConfigInput(encoded)
	if err != nil {
		return nil, err
	}
	if err := in.Set("ip", c.ClientIP()); err != nil {
		return nil, err
	}
	return in, nil
}

func cleanResourceID(rawID string) string {
	return strings.TrimPrefix(strings.TrimSuffix(rawID, ".json"), "/")
}

type addonInfo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

type passkeyInfo struct {
	Enabled bool   `json:"enabled"`
	InfoURL string `json:"infoUrl"`
	Pattern string `json:"pattern"`
}

type configureResponse struct {
	Addon                   addonInfo           `json:"addon"`
	Debrids                 []debrid.Meta       `json:"debrids"`
	DefaultUserConfig       models.UserConfig   `json:"defaultUserConfig"`
	Qualities               []models.Quality    `json:"qualities"`
	Sorts                   []models.SortPreset `json:"sorts"`
	Languages               []models.Language   `json:"languages"`
	Passkey                 passkeyInfo         `json:"passkey"`
	ImmutableUserConfigKeys []string            `json:"immutableUserConfigKeys"`
}

func (s *Handler) configure(c *gin.Context) {
	cfg := s.rs.Config()
	c.JSON(http.StatusOK, &configureResponse{
		Addon: addonInfo{
			Version: stremio.Version,
			Name:    cfg.AddonName,
		},
		Debrids:           s.reg.List(),
		DefaultUserConfig: cfg.Defaults,
		Qualities:         models.Qualities,
		Sorts:             models.SortPresets,
		Languages:         models.Languages,
		Passkey: passkeyInfo{
			Enabled: cfg.ReplacePasskey != nil,
			InfoURL: cfg.PasskeyInfoURL,
			Pattern: cfg.PasskeyPattern,
		},
		ImmutableUserConfigKeys: append([]string{}, cfg.ImmutableKeys...),
	})
}

func (s *Handler) manifest(c *gin.Context) {
	in, err := models.DecodeUserConfigInput(c.Param("userConfig"))
	if err != nil {
		log.WithError(err).Warn("failed to decode user config")
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	cfg := s.rs.Config()
	uc, err := models.MergeUserConfig(cfg.Defaults, in, cfg.ImmutableKeys)
	if err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	shortName := ""
	for _, m := range s.reg.List() {
		if m.ID == uc.DebridID {
			shortName = m.ShortName
		}
	}
	c.JSON(http.StatusOK, stremio.NewManifest(cfg.AddonID, cfg.AddonName, shortName).GetManifest())
}

func (s *Handler) stream(c *gin.Context) {
	ct := c.Param("type")
	id := cleanResourceID(c.Param("id"))
	l := log.WithFields(log.Fields{
		"type": ct,
		"id":   id,
	})
	in, err := s.userConfig(c, c.Param("userConfig"))
	if err != nil {
		l.WithError(err).Warn("failed to decode user config")
		c.JSON(http.StatusOK, stremio.NewStreamsResponse(nil))
		return
	}
	entries, err := s.rs.ListStreams(c.Request.Context(), in, ct, id, s.publicURL(c))
	if err != nil {
		l.WithError(err).Error("failed to get streams")
		c.JSON(http.StatusOK, stremio.NewStreamsResponse(nil))
		return
	}
	c.JSON(http.StatusOK, stremio.NewStreamsResponse(entries))
}

// errorVideo maps download failures to the placeholder video explaining them.
func errorVideo(err error) string {
	if errors.Is(err, resolver.ErrInvalidPasskey) {
		return "/videos/error.mp4"
	}
	switch debrid.KindOf(err) {
	case debrid.KindNotReady:
		return "/videos/not_ready.mp4"
	case debrid.KindExpiredAPIKey:
		return "/videos/expired_api_key.mp4"
	case debrid.KindNotPremium:
		return "/videos/not_premium.mp4"
	case debrid.KindAccessDenied:
		return "/videos/access_denied.mp4"
	case debrid.KindTwoFactorAuth:
		return "/videos/two_factor_auth.mp4"
	case debrid.KindUnknown:
		return "/videos/error.mp4"
	default:
		return "/videos/error.mp4"
	}
}

func (s *Handler) download(c *gin.Context) {
	data := strings.TrimPrefix(c.Param("reference"), "/")
	if data == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	ref, err := s.sg.Parse(data)
	if err != nil {
		log.WithError(err).Warn("failed to parse download reference")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	l := log.WithFields(log.Fields{
		"type":       ref.Type,
		"id":         ref.StremioID,
		"torrent_id": ref.TorrentID,
	})
	in, err := s.userConfig(c, ref.Config)
	if err != nil {
		l.WithError(err).Warn("failed to decode user config")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	u, err := s.rs.ResolveDownload(c.Request.Context(), in, ref.Type, ref.StremioID, ref.TorrentID)
	if err != nil {
		l.WithError(err).Error("failed to resolve download")
		c.Redirect(http.StatusFound, errorVideo(err))
		return
	}
	c.Redirect(http.StatusFound, u)
}
